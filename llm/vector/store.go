package vector

import (
	"context"

	"docsdoctor/llm"
)

// Entry pairs a chunk with its embedding vector. Vectors are assumed
// L2-normalized (EmbeddingService guarantees this), so stores rank by
// dot product.
type Entry struct {
	Vector []float32
	Chunk  llm.Chunk
}

// VectorStore stores (vector, chunk) entries and answers top-k nearest
// neighbor lookups. All entries in one store share the same dimension and
// the same embedding model identity; implementations must reject a batch
// tagged with a different model.
type VectorStore interface {
	// Add appends a batch of entries.
	Add(ctx context.Context, entries []Entry) error

	// Search returns up to topK entries by descending similarity to the
	// query vector. The in-memory backend breaks score ties by insertion
	// order (earlier wins); the chromem and redis backends follow their
	// engine's tie order. An empty store yields an empty result, not an
	// error.
	Search(ctx context.Context, query []float32, topK int) ([]llm.ScoredChunk, error)

	// DeleteBySource removes all chunks derived from the given filename.
	DeleteBySource(ctx context.Context, filename string) error

	// Count returns the number of indexed entries.
	Count(ctx context.Context) (int, error)

	// ModelID returns the embedding model identity recorded for the store.
	ModelID(ctx context.Context) (string, error)

	// Close releases any connections or resources.
	Close() error
}

// StoreConfig holds configuration shared by vector store implementations.
type StoreConfig struct {
	// Collection names the index; persistent backends key storage by it.
	Collection string

	// EmbeddingModelID tags the store with the model that produced its
	// vectors. Adds and queries against a mismatched tag are rejected.
	EmbeddingModelID string
}

// DefaultStoreConfig returns the default store configuration.
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{Collection: "docsdoctor"}
}
