package openai_provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/joostvdm/kennisbot/config"
	"github.com/joostvdm/kennisbot/models"
)

func TestCompleteSendsZeroTemperature(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer sk-test" {
			t.Fatalf("unexpected auth header: %q", auth)
		}

		var req map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		temp, present := req["temperature"]
		if !present || temp != float64(0) {
			t.Fatalf("expected explicit temperature 0, got %v (present=%v)", temp, present)
		}
		if req["model"] != "gpt-4o-mini" {
			t.Fatalf("unexpected model: %v", req["model"])
		}

		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": "rewritten question"}},
			},
			"usage": map[string]int64{"prompt_tokens": 42, "completion_tokens": 7},
		})
	}))
	defer srv.Close()

	c := NewClient(config.LLMConfig{APIKey: "sk-test", BaseURL: srv.URL})
	result, err := c.Complete(context.Background(), []Message{
		{Role: "user", Content: "hi"},
	}, Options{Model: "gpt-4o-mini", Temperature: 0, MaxTokens: 120})
	if err != nil {
		t.Fatalf("unexpected complete error: %v", err)
	}
	if result.Content != "rewritten question" {
		t.Fatalf("unexpected content: %q", result.Content)
	}
	if result.PromptTokens != 42 || result.CompletionTokens != 7 {
		t.Fatalf("unexpected usage: %+v", result)
	}
}

func TestCompleteFallsBackToConfiguredModel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]interface{}
		json.NewDecoder(r.Body).Decode(&req)
		if req["model"] != "gpt-4o" {
			t.Fatalf("expected configured model, got %v", req["model"])
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": "ok"}},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(config.LLMConfig{APIKey: "sk-test", BaseURL: srv.URL, CompletionModel: "gpt-4o"})
	if _, err := c.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}}, Options{}); err != nil {
		t.Fatalf("unexpected complete error: %v", err)
	}
}

func TestEmbedSendsDimensions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		var req map[string]interface{}
		json.NewDecoder(r.Body).Decode(&req)
		if req["dimensions"] != float64(3072) {
			t.Fatalf("expected dimensions 3072, got %v", req["dimensions"])
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]interface{}{
				{"embedding": []float32{0.1, 0.2}, "index": 0},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(config.LLMConfig{APIKey: "sk-test", BaseURL: srv.URL, EmbeddingModel: "text-embedding-3-large", EmbeddingDimensions: 3072})
	vecs, err := c.Embed(context.Background(), []string{"hello"})
	if err != nil {
		t.Fatalf("unexpected embed error: %v", err)
	}
	if len(vecs) != 1 || len(vecs[0]) != 2 {
		t.Fatalf("unexpected vectors: %v", vecs)
	}
}

func TestEmbedEmptyInput(t *testing.T) {
	c := NewClient(config.LLMConfig{APIKey: "sk-test"})
	vecs, err := c.Embed(context.Background(), nil)
	if err != nil || vecs != nil {
		t.Fatalf("expected nil result for empty input, got %v / %v", vecs, err)
	}
}

func TestStatusClassification(t *testing.T) {
	cases := []struct {
		status    int
		transient bool
	}{
		{http.StatusInternalServerError, true},
		{http.StatusServiceUnavailable, true},
		{http.StatusTooManyRequests, true},
		{http.StatusRequestTimeout, true},
		{http.StatusUnauthorized, false},
		{http.StatusBadRequest, false},
	}

	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			w.Write([]byte("upstream error"))
		}))

		c := NewClient(config.LLMConfig{APIKey: "sk-test", BaseURL: srv.URL})
		_, err := c.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}}, Options{Model: "gpt-4o"})
		if err == nil {
			t.Fatalf("status %d: expected error", tc.status)
		}
		if models.IsTransient(err) != tc.transient {
			t.Fatalf("status %d: expected transient=%v, got error %v", tc.status, tc.transient, err)
		}
		srv.Close()
	}
}
