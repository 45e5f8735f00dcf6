package provider

import (
	"context"
	"errors"

	"github.com/joostvdm/kennisbot/config"
	openai_provider "github.com/joostvdm/kennisbot/provider/openai"
)

// Client represents different LLM providers
type Client string

const (
	OpenAI    Client = "openai"
	Anthropic Client = "anthropic"
)

// Message is a single chat message sent to the completion endpoint.
type Message = openai_provider.Message

// Options control a single completion call.
type Options = openai_provider.Options

// Result is the typed completion result, converted at the provider boundary.
type Result = openai_provider.Result

// Provider is the interface every LLM implementation must satisfy.
type Provider interface {
	// Complete runs a chat completion and returns the generated text plus
	// token usage.
	Complete(ctx context.Context, messages []Message, opts Options) (Result, error)

	// Embed generates vector embeddings for the provided inputs.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// NewProvider creates an LLM client based on the provided configuration.
func NewProvider(client Client, cfg config.LLMConfig) (Provider, error) {
	switch client {
	case OpenAI:
		if cfg.APIKey == "" {
			return nil, errors.New("OpenAI API key not configured")
		}
		return openai_provider.NewClient(cfg), nil
	case Anthropic:
		return nil, errors.New("anthropic client not implemented yet")
	default:
		return nil, errors.New("unsupported LLM provider")
	}
}
