package openai_provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/joostvdm/kennisbot/config"
	"github.com/joostvdm/kennisbot/models"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Message represents a message in a conversation
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options control a single completion call. A zero Temperature is sent as-is
// (greedy decoding), not omitted.
type Options struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// Result carries the generated text and token usage counts.
type Result struct {
	Content          string
	PromptTokens     int64
	CompletionTokens int64
}

// Client talks to the OpenAI REST API.
type Client struct {
	cfg        config.LLMConfig
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new OpenAI client.
func NewClient(cfg config.LLMConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		cfg:        cfg,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// chatRequest represents a request to the chat completions API.
type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// chatResponse represents a response from the chat completions API.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
	} `json:"usage"`
}

// Complete runs a chat completion.
func (c *Client) Complete(ctx context.Context, messages []Message, opts Options) (Result, error) {
	model := opts.Model
	if model == "" {
		model = c.cfg.CompletionModel
	}

	body := chatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}

	var out chatResponse
	if err := c.postJSON(ctx, "/chat/completions", body, &out); err != nil {
		return Result{}, err
	}
	if len(out.Choices) == 0 {
		return Result{}, fmt.Errorf("no choices in response")
	}

	return Result{
		Content:          out.Choices[0].Message.Content,
		PromptTokens:     out.Usage.PromptTokens,
		CompletionTokens: out.Usage.CompletionTokens,
	}, nil
}

// Embed generates embeddings for the given texts.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body := map[string]interface{}{
		"model": c.cfg.EmbeddingModel,
		"input": texts,
	}
	if c.cfg.EmbeddingDimensions > 0 {
		body["dimensions"] = c.cfg.EmbeddingDimensions
	}

	var out struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
	}
	if err := c.postJSON(ctx, "/embeddings", body, &out); err != nil {
		return nil, err
	}

	vecs := make([][]float32, len(out.Data))
	for i, d := range out.Data {
		vecs[i] = d.Embedding
	}
	return vecs, nil
}

func (c *Client) postJSON(ctx context.Context, path string, body interface{}, out interface{}) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Connection failures and client timeouts are worth retrying.
		return models.Transient(fmt.Errorf("failed to send request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return classifyStatus(resp.StatusCode, b)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// classifyStatus converts a non-200 response into an error, tagging
// rate limits, upstream timeouts and 5xx responses as transient. Auth and
// other 4xx failures are permanent.
func classifyStatus(status int, body []byte) error {
	err := fmt.Errorf("OpenAI status %d: %s", status, bytes.TrimSpace(body))
	if status == http.StatusTooManyRequests || status == http.StatusRequestTimeout || status >= 500 {
		return models.Transient(err)
	}
	return err
}
