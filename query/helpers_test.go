package query

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/joostvdm/kennisbot/config"
	"github.com/joostvdm/kennisbot/models"
	"github.com/joostvdm/kennisbot/provider"
	"github.com/joostvdm/kennisbot/vectorstore"
)

func testConfig() *config.Config {
	return &config.Config{
		General: config.GeneralConfig{MaxQuestionLength: 500},
		LLM: config.LLMConfig{
			APIKey:           "sk-test",
			CompletionModel:  "gpt-4o",
			RewriteModel:     "gpt-4o-mini",
			EmbeddingModel:   "text-embedding-3-large",
			Temperature:      0.2,
			MaxTokens:        600,
			RewriteMaxTokens: 120,
		},
		Pinecone: config.PineconeConfig{
			APIKey:     "pc-test",
			IndexHost:  "test.svc.pinecone.io",
			IndexName:  "kennisbot",
			Namespaces: []string{"company-docs"},
		},
		Query: config.QueryConfig{
			TopK:                7,
			SimilarityThreshold: 0.0,
			Categories:          []string{"menu", "sop", "hr", "equipment", "franchise", "operations", "general"},
			RefusalPhrases: []string{
				"i don't have that information",
				"ik heb die informatie niet",
			},
			ConfidenceHighAvg:   0.80,
			ConfidenceHighMax:   0.85,
			ConfidenceMediumAvg: 0.60,
			ConfidenceMediumMax: 0.75,
		},
		Memory: config.MemoryConfig{
			TTL:          30 * time.Minute,
			MaxTurns:     10,
			ContextTurns: 5,
		},
	}
}

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// fakeProvider scripts completion and embedding behavior per test.
type fakeProvider struct {
	completeFn func(messages []provider.Message, opts provider.Options) (provider.Result, error)
	embedFn    func(texts []string) ([][]float32, error)

	completeCalls int
	embedCalls    int
}

func (f *fakeProvider) Complete(ctx context.Context, messages []provider.Message, opts provider.Options) (provider.Result, error) {
	f.completeCalls++
	if f.completeFn == nil {
		return provider.Result{Content: "ok"}, nil
	}
	return f.completeFn(messages, opts)
}

func (f *fakeProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.embedCalls++
	if f.embedFn == nil {
		return [][]float32{{0.1, 0.2, 0.3}}, nil
	}
	return f.embedFn(texts)
}

// fakeIndex serves canned matches per namespace.
type fakeIndex struct {
	stats   vectorstore.IndexStats
	matches map[string][]vectorstore.Match
	queryFn func(namespace string, topK int) ([]vectorstore.Match, error)

	queryCalls []string
	topKSeen   []int
}

func (f *fakeIndex) Stats(ctx context.Context) (vectorstore.IndexStats, error) {
	return f.stats, nil
}

func (f *fakeIndex) Query(ctx context.Context, namespace string, vector []float32, topK int) ([]vectorstore.Match, error) {
	f.queryCalls = append(f.queryCalls, namespace)
	f.topKSeen = append(f.topKSeen, topK)
	if f.queryFn != nil {
		return f.queryFn(namespace, topK)
	}
	return f.matches[namespace], nil
}

func match(score float64, text, source, category string) vectorstore.Match {
	return vectorstore.Match{
		ID:    fmt.Sprintf("%s-%g", source, score),
		Score: score,
		Metadata: map[string]interface{}{
			"text":        text,
			"source_path": source,
			"category":    category,
		},
	}
}

// fakeMemory is an in-process ConversationStore.
type fakeMemory struct {
	turns   map[string][]models.ConversationTurn
	appends int
}

func newFakeMemory() *fakeMemory {
	return &fakeMemory{turns: map[string][]models.ConversationTurn{}}
}

func (f *fakeMemory) Turns(ctx context.Context, userID string) []models.ConversationTurn {
	return f.turns[userID]
}

func (f *fakeMemory) Append(ctx context.Context, userID, question, answer string) bool {
	f.appends++
	f.turns[userID] = append(f.turns[userID], models.ConversationTurn{
		Question: question, Answer: answer, Timestamp: time.Now(),
	})
	return true
}
