package vectorstore

import "context"

// Match is a raw similarity hit from the index, before it is converted into
// a domain passage. Metadata is whatever the ingestion side stored with the
// vector; callers convert it to typed fields immediately.
type Match struct {
	ID       string
	Score    float64
	Metadata map[string]interface{}
}

// NamespaceStats describes one namespace of the index.
type NamespaceStats struct {
	VectorCount int
}

// IndexStats describes the whole index.
type IndexStats struct {
	Dimension        int
	TotalVectorCount int
	Namespaces       map[string]NamespaceStats
}

// Index is the interface to an external, already-populated vector index.
type Index interface {
	// Stats describes the index and its namespaces. Used at startup to
	// verify the index exists and which namespaces hold data.
	Stats(ctx context.Context) (IndexStats, error)

	// Query runs a similarity search against one namespace and returns the
	// topK best matches, highest score first.
	Query(ctx context.Context, namespace string, vector []float32, topK int) ([]Match, error)
}
