package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the question-answering core.
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Pinecone  PineconeConfig  `mapstructure:"pinecone"`
	Query     QueryConfig     `mapstructure:"query"`
	Memory    MemoryConfig    `mapstructure:"memory"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug             bool   `mapstructure:"debug"`
	LogLevel          string `mapstructure:"log_level"`
	MaxQuestionLength int    `mapstructure:"max_question_length"`
}

// LLMConfig contains OpenAI model settings for generation, question
// rewriting and embedding.
type LLMConfig struct {
	APIKey              string        `mapstructure:"api_key"`
	BaseURL             string        `mapstructure:"base_url"`
	CompletionModel     string        `mapstructure:"completion_model"`
	RewriteModel        string        `mapstructure:"rewrite_model"`
	EmbeddingModel      string        `mapstructure:"embedding_model"`
	EmbeddingDimensions int           `mapstructure:"embedding_dimensions"`
	Temperature         float64       `mapstructure:"temperature"`
	MaxTokens           int           `mapstructure:"max_tokens"`
	RewriteMaxTokens    int           `mapstructure:"rewrite_max_tokens"`
	Timeout             time.Duration `mapstructure:"timeout"`
}

// PineconeConfig contains vector index connection settings. IndexHost is the
// data-plane host of an existing, already-populated index.
type PineconeConfig struct {
	APIKey     string        `mapstructure:"api_key"`
	IndexHost  string        `mapstructure:"index_host"`
	IndexName  string        `mapstructure:"index_name"`
	Namespaces []string      `mapstructure:"namespaces"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// QueryConfig contains retrieval and answer-gating settings.
type QueryConfig struct {
	TopK                int      `mapstructure:"top_k"`
	SimilarityThreshold float64  `mapstructure:"similarity_threshold"`
	Categories          []string `mapstructure:"categories"`
	RefusalPhrases      []string `mapstructure:"refusal_phrases"`

	// Confidence grade cutoffs. Hand-tuned, not calibrated against an
	// evaluation set; treat as defaults, not ground truth.
	ConfidenceHighAvg   float64 `mapstructure:"confidence_high_avg"`
	ConfidenceHighMax   float64 `mapstructure:"confidence_high_max"`
	ConfidenceMediumAvg float64 `mapstructure:"confidence_medium_avg"`
	ConfidenceMediumMax float64 `mapstructure:"confidence_medium_max"`
}

// MemoryConfig contains conversation memory settings.
type MemoryConfig struct {
	Redis        RedisConfig   `mapstructure:"redis"`
	TTL          time.Duration `mapstructure:"ttl"`
	MaxTurns     int           `mapstructure:"max_turns"`
	ContextTurns int           `mapstructure:"context_turns"`
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// TelemetryConfig contains metrics settings.
type TelemetryConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	MetricsPort int  `mapstructure:"metrics_port"`
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("kennisbot")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("KENNISBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Config file is optional; defaults plus env vars are enough to run.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && path != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	overrideFromEnv(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("general.debug", false)
	v.SetDefault("general.log_level", "info")
	v.SetDefault("general.max_question_length", 500)

	v.SetDefault("llm.completion_model", "gpt-4o")
	v.SetDefault("llm.rewrite_model", "gpt-4o-mini")
	v.SetDefault("llm.embedding_model", "text-embedding-3-large")
	v.SetDefault("llm.embedding_dimensions", 3072)
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.max_tokens", 600)
	v.SetDefault("llm.rewrite_max_tokens", 120)
	v.SetDefault("llm.timeout", "30s")

	v.SetDefault("pinecone.index_name", "kennisbot")
	v.SetDefault("pinecone.namespaces", []string{"company-docs"})
	v.SetDefault("pinecone.timeout", "10s")

	v.SetDefault("query.top_k", 7)
	v.SetDefault("query.similarity_threshold", 0.0)
	v.SetDefault("query.categories", []string{"menu", "sop", "hr", "equipment", "franchise", "operations", "general"})
	v.SetDefault("query.refusal_phrases", []string{
		"i don't have that information",
		"ik heb die informatie niet",
		"not found in the documents",
		"niet in de documenten",
		"cannot find",
		"kan niet vinden",
		"no information about",
		"geen informatie over",
	})
	v.SetDefault("query.confidence_high_avg", 0.80)
	v.SetDefault("query.confidence_high_max", 0.85)
	v.SetDefault("query.confidence_medium_avg", 0.60)
	v.SetDefault("query.confidence_medium_max", 0.75)

	v.SetDefault("memory.redis.host", "localhost")
	v.SetDefault("memory.redis.port", 6379)
	v.SetDefault("memory.redis.db", 0)
	v.SetDefault("memory.redis.timeout", "5s")
	v.SetDefault("memory.ttl", "30m")
	v.SetDefault("memory.max_turns", 10)
	v.SetDefault("memory.context_turns", 5)

	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("telemetry.metrics_port", 9090)
}

// overrideFromEnv overrides configuration with the well-known environment
// variables used across deployments, so secrets stay out of config files.
func overrideFromEnv(v *viper.Viper) {
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		v.Set("llm.api_key", apiKey)
	}
	if apiKey := os.Getenv("PINECONE_API_KEY"); apiKey != "" {
		v.Set("pinecone.api_key", apiKey)
	}
	if host := os.Getenv("PINECONE_INDEX_HOST"); host != "" {
		v.Set("pinecone.index_host", host)
	}
	if name := os.Getenv("PINECONE_INDEX_NAME"); name != "" {
		v.Set("pinecone.index_name", name)
	}
	if host := os.Getenv("REDIS_HOST"); host != "" {
		v.Set("memory.redis.host", host)
	}
	if port := os.Getenv("REDIS_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			v.Set("memory.redis.port", p)
		}
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		v.Set("memory.redis.password", password)
	}
	if db := os.Getenv("REDIS_DB"); db != "" {
		if n, err := strconv.Atoi(db); err == nil {
			v.Set("memory.redis.db", n)
		}
	}
}

// Validate checks that the configuration is usable. Missing credentials or
// an empty namespace list are startup errors, not something to limp past.
func (c *Config) Validate() error {
	var errs []string

	if c.LLM.APIKey == "" {
		errs = append(errs, "llm.api_key missing (set OPENAI_API_KEY)")
	}
	if c.Pinecone.APIKey == "" {
		errs = append(errs, "pinecone.api_key missing (set PINECONE_API_KEY)")
	}
	if c.Pinecone.IndexHost == "" {
		errs = append(errs, "pinecone.index_host missing (set PINECONE_INDEX_HOST)")
	}
	if len(c.Pinecone.Namespaces) == 0 {
		errs = append(errs, "pinecone.namespaces must list at least one namespace")
	}
	if c.Query.TopK < 1 || c.Query.TopK > 20 {
		errs = append(errs, fmt.Sprintf("query.top_k must be between 1 and 20, got %d", c.Query.TopK))
	}
	if c.Query.SimilarityThreshold < 0 || c.Query.SimilarityThreshold > 1 {
		errs = append(errs, fmt.Sprintf("query.similarity_threshold must be in [0,1], got %g", c.Query.SimilarityThreshold))
	}
	if c.Memory.MaxTurns < 1 {
		errs = append(errs, "memory.max_turns must be at least 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config errors:\n%s", strings.Join(errs, "\n"))
	}
	return nil
}
