package memory

import "context"

// SearchResult pairs a candidate record with its raw cosine similarity
// to the query vector, as reported by the Store.
type SearchResult struct {
	Record     *Record
	Similarity float64
}

// Store is the vector storage backend interface.
// Implementations: ChromemStore (local SDK); production deployments
// can swap in a pgvector-backed store behind the same interface.
type Store interface {
	// Search returns records for the persona whose cosine similarity
	// to the query is >= threshold, highest first, at most limit.
	Search(ctx context.Context, personaID string, query []float32, threshold float64, limit int) ([]SearchResult, error)

	// Insert persists a record. The record must have its embedding set.
	// Writes are all-or-nothing per record.
	Insert(ctx context.Context, rec *Record) (*Record, error)

	// Close releases resources.
	Close() error
}

// Embedder converts text to vector embeddings.
// Implementations: mock (testing), onnx (local, build-tagged),
// cached (ristretto decorator over any of these).
type Embedder interface {
	// Embed converts a single text to an embedding vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding vector size.
	Dimensions() int
}
