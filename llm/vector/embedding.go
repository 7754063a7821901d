package vector

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/cloudwego/eino/components/embedding"
)

// EmbeddingService wraps an embedding model for vector generation.
// Passages and queries go through the same model so their vectors are
// comparable, and every vector is L2-normalized before it leaves this
// package: similarity is then a plain dot product.
type EmbeddingService struct {
	embedder embedding.Embedder
	modelID  string

	mu  sync.Mutex
	dim int // learned from the first embedding, then enforced
}

// NewEmbeddingService creates a new embedding service. modelID identifies
// the underlying model (e.g. "openai/text-embedding-3-small") and is
// recorded by the vector index to guard against mixing models.
func NewEmbeddingService(embedder embedding.Embedder, modelID string) (*EmbeddingService, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedding model is required")
	}
	if modelID == "" {
		return nil, fmt.Errorf("embedding model identity is required")
	}
	return &EmbeddingService{embedder: embedder, modelID: modelID}, nil
}

// ModelID returns the identity tag of the underlying model.
func (s *EmbeddingService) ModelID() string { return s.modelID }

// Dimension returns the vector dimension, or 0 before the first call.
func (s *EmbeddingService) Dimension() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dim
}

// Embed generates a normalized embedding vector for a single text.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch generates normalized embedding vectors for multiple texts.
// Batching is an optimization only; the result is identical to embedding
// each text individually.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("texts cannot be empty")
	}
	for i, t := range texts {
		if t == "" {
			return nil, fmt.Errorf("text %d is empty", i)
		}
	}

	vectors, err := s.embedder.EmbedStrings(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embeddings: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d for %d texts", len(vectors), len(texts))
	}

	out := make([][]float32, len(vectors))
	for i, vec := range vectors {
		if len(vec) == 0 {
			return nil, fmt.Errorf("empty embedding returned for text %d", i)
		}
		if err := s.checkDim(len(vec)); err != nil {
			return nil, err
		}
		out[i] = normalize(vec)
	}
	return out, nil
}

// checkDim learns the model dimension from the first vector and rejects
// any later vector of a different length.
func (s *EmbeddingService) checkDim(n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dim == 0 {
		s.dim = n
		return nil
	}
	if s.dim != n {
		return fmt.Errorf("embedding dimension changed: expected %d, got %d", s.dim, n)
	}
	return nil
}

// normalize converts to float32 and scales to unit L2 norm.
func normalize(vec []float64) []float32 {
	var sum float64
	for _, v := range vec {
		sum += v * v
	}
	norm := math.Sqrt(sum)
	out := make([]float32, len(vec))
	if norm == 0 {
		return out
	}
	for i, v := range vec {
		out[i] = float32(v / norm)
	}
	return out
}
