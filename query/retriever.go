package query

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/joostvdm/kennisbot/config"
	"github.com/joostvdm/kennisbot/models"
	"github.com/joostvdm/kennisbot/provider"
	"github.com/joostvdm/kennisbot/vectorstore"
)

// minPerNamespaceK is the floor for per-namespace fan-out when more than one
// namespace is searched, so the merged candidate pool is never starved by a
// small top_k.
const minPerNamespaceK = 5

// Retriever embeds questions and searches the vector index across the
// configured namespaces, merging and reranking the results.
type Retriever struct {
	cfg      *config.Config
	index    vectorstore.Index
	provider provider.Provider
	logger   *log.Logger

	mu         sync.RWMutex
	namespaces []string
}

// NewRetriever verifies the index is reachable and keeps only the configured
// namespaces that actually hold vectors. Fails when the index is unreachable
// or when no namespace has data.
func NewRetriever(ctx context.Context, cfg *config.Config, index vectorstore.Index, p provider.Provider, logger *log.Logger) (*Retriever, error) {
	if logger == nil {
		logger = log.New(log.Writer(), "[RETRIEVER] ", log.LstdFlags)
	}

	stats, err := index.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("vector index unreachable: %w", err)
	}

	var namespaces []string
	for _, ns := range cfg.Pinecone.Namespaces {
		if stats.Namespaces[ns].VectorCount > 0 {
			namespaces = append(namespaces, ns)
		} else {
			logger.Printf("WARNING: namespace %q is empty, skipping", ns)
		}
	}
	if len(namespaces) == 0 {
		return nil, fmt.Errorf("no configured namespace contains vectors, run ingestion first")
	}

	logger.Printf("index %q ready: %d vectors, searching namespaces %v",
		cfg.Pinecone.IndexName, stats.TotalVectorCount, namespaces)

	return &Retriever{
		cfg:        cfg,
		index:      index,
		provider:   p,
		logger:     logger,
		namespaces: namespaces,
	}, nil
}

// Retrieve runs a similarity search for the request across all active
// namespaces and returns the merged results, best first. An empty result is
// not an error.
func (r *Retriever) Retrieve(ctx context.Context, req models.QueryRequest) ([]models.Passage, error) {
	if req.TopK == 0 {
		req.TopK = r.cfg.Query.TopK
	}
	if err := req.Validate(r.cfg.Query.Categories); err != nil {
		return nil, err
	}

	var vectors [][]float32
	err := withRetry(ctx, r.logger, "embedding", func() error {
		var embErr error
		vectors, embErr = r.provider.Embed(ctx, []string{req.Question})
		return embErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedding response was empty")
	}
	vector := vectors[0]

	namespaces := r.Namespaces()
	perNamespaceK := req.TopK
	if len(namespaces) > 1 && perNamespaceK < minPerNamespaceK {
		perNamespaceK = minPerNamespaceK
	}

	var passages []models.Passage
	for _, ns := range namespaces {
		var matches []vectorstore.Match
		err := withRetry(ctx, r.logger, "vector query", func() error {
			var qErr error
			matches, qErr = r.index.Query(ctx, ns, vector, perNamespaceK)
			return qErr
		})
		if err != nil {
			return nil, fmt.Errorf("failed to query namespace %s: %w", ns, err)
		}
		for _, m := range matches {
			passages = append(passages, passageFromMatch(m, ns))
		}
	}

	filtered := passages[:0]
	for _, p := range passages {
		if p.Score < r.cfg.Query.SimilarityThreshold {
			continue
		}
		if req.CategoryFilter != "" && p.Category != req.CategoryFilter {
			continue
		}
		filtered = append(filtered, p)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Score > filtered[j].Score
	})
	if len(filtered) > req.TopK {
		filtered = filtered[:req.TopK]
	}

	if r.cfg.General.Debug {
		byNamespace := map[string]int{}
		byCategory := map[string]int{}
		for i, p := range filtered {
			byNamespace[p.Namespace]++
			byCategory[p.Category]++
			r.logger.Printf("  %d. %s namespace=%s category=%s", i+1, p, p.Namespace, p.Category)
		}
		r.logger.Printf("namespace distribution: %v, category distribution: %v", byNamespace, byCategory)
	}
	r.logger.Printf("retrieved %d passages for %q", len(filtered), req.Question)

	if filtered == nil {
		return []models.Passage{}, nil
	}
	return filtered, nil
}

// passageFromMatch converts a raw index match into a passage, filling in
// provenance from the vector metadata.
func passageFromMatch(m vectorstore.Match, namespace string) models.Passage {
	p := models.Passage{
		Score:     m.Score,
		Namespace: namespace,
		Category:  "general",
		Source:    "unknown",
		Metadata:  m.Metadata,
	}
	if text, ok := m.Metadata["text"].(string); ok {
		p.Text = text
	}
	if src, ok := m.Metadata["source_path"].(string); ok && src != "" {
		p.Source = src
	} else if name, ok := m.Metadata["file_name"].(string); ok && name != "" {
		p.Source = name
	}
	if cat, ok := m.Metadata["category"].(string); ok && cat != "" {
		p.Category = cat
	}
	return p
}

// Namespaces returns a copy of the currently searched namespaces.
func (r *Retriever) Namespaces() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.namespaces))
	copy(out, r.namespaces)
	return out
}

// AddNamespace adds a namespace to the search set. Adding an existing
// namespace is a no-op.
func (r *Retriever) AddNamespace(name string) error {
	if name == "" {
		return fmt.Errorf("namespace name cannot be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ns := range r.namespaces {
		if ns == name {
			return nil
		}
	}
	r.namespaces = append(r.namespaces, name)
	return nil
}

// RemoveNamespace removes a namespace from the search set. The last
// namespace cannot be removed.
func (r *Retriever) RemoveNamespace(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.namespaces) == 1 && r.namespaces[0] == name {
		return fmt.Errorf("cannot remove the last namespace")
	}
	for i, ns := range r.namespaces {
		if ns == name {
			r.namespaces = append(r.namespaces[:i], r.namespaces[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("namespace %s is not active", name)
}

// Stats describes the index as seen right now.
func (r *Retriever) Stats(ctx context.Context) (map[string]interface{}, error) {
	stats, err := r.index.Stats(ctx)
	if err != nil {
		return nil, err
	}

	namespaces := make(map[string]interface{}, len(stats.Namespaces))
	for name, ns := range stats.Namespaces {
		namespaces[name] = map[string]interface{}{"vector_count": ns.VectorCount}
	}
	return map[string]interface{}{
		"index_name":         r.cfg.Pinecone.IndexName,
		"dimension":          stats.Dimension,
		"total_vector_count": stats.TotalVectorCount,
		"namespaces":         namespaces,
		"active_namespaces":  r.Namespaces(),
	}, nil
}
