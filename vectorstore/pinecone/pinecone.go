package pinecone

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/joostvdm/kennisbot/config"
	"github.com/joostvdm/kennisbot/models"
	"github.com/joostvdm/kennisbot/vectorstore"
)

// Client talks to the Pinecone data plane of a single index.
type Client struct {
	host       string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a client for the index at cfg.IndexHost.
func NewClient(cfg config.PineconeConfig) *Client {
	host := strings.TrimSuffix(cfg.IndexHost, "/")
	if host != "" && !strings.HasPrefix(host, "http") {
		host = "https://" + host
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		host:       host,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type queryRequest struct {
	Namespace       string    `json:"namespace"`
	Vector          []float32 `json:"vector"`
	TopK            int       `json:"topK"`
	IncludeMetadata bool      `json:"includeMetadata"`
}

type queryResponse struct {
	Matches []struct {
		ID       string                 `json:"id"`
		Score    float64                `json:"score"`
		Metadata map[string]interface{} `json:"metadata"`
	} `json:"matches"`
}

// Query runs a similarity search against one namespace.
func (c *Client) Query(ctx context.Context, namespace string, vector []float32, topK int) ([]vectorstore.Match, error) {
	body := queryRequest{
		Namespace:       namespace,
		Vector:          vector,
		TopK:            topK,
		IncludeMetadata: true,
	}

	var out queryResponse
	if err := c.postJSON(ctx, "/query", body, &out); err != nil {
		return nil, err
	}

	matches := make([]vectorstore.Match, len(out.Matches))
	for i, m := range out.Matches {
		matches[i] = vectorstore.Match{ID: m.ID, Score: m.Score, Metadata: m.Metadata}
	}
	return matches, nil
}

type statsResponse struct {
	Dimension        int `json:"dimension"`
	TotalVectorCount int `json:"totalVectorCount"`
	Namespaces       map[string]struct {
		VectorCount int `json:"vectorCount"`
	} `json:"namespaces"`
}

// Stats describes the index and its namespaces.
func (c *Client) Stats(ctx context.Context) (vectorstore.IndexStats, error) {
	var out statsResponse
	if err := c.postJSON(ctx, "/describe_index_stats", struct{}{}, &out); err != nil {
		return vectorstore.IndexStats{}, err
	}

	stats := vectorstore.IndexStats{
		Dimension:        out.Dimension,
		TotalVectorCount: out.TotalVectorCount,
		Namespaces:       make(map[string]vectorstore.NamespaceStats, len(out.Namespaces)),
	}
	for name, ns := range out.Namespaces {
		stats.Namespaces[name] = vectorstore.NamespaceStats{VectorCount: ns.VectorCount}
	}
	return stats, nil
}

func (c *Client) postJSON(ctx context.Context, path string, body interface{}, out interface{}) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.host+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Api-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
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

func classifyStatus(status int, body []byte) error {
	err := fmt.Errorf("Pinecone status %d: %s", status, bytes.TrimSpace(body))
	if status == http.StatusTooManyRequests || status == http.StatusRequestTimeout || status >= 500 {
		return models.Transient(err)
	}
	return err
}
