package vector

import (
	"context"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"docsdoctor/llm"
)

// MemoryStore is the default vector index: an exact brute-force search
// over an insertion-ordered slice. At the scale of document collections
// (tens of thousands of chunks) a full scan is effectively instant and
// recall is exact by construction.
//
// The store is safe for concurrent use; a search observes either the
// whole of a concurrent Add or none of it.
type MemoryStore struct {
	mu      sync.RWMutex
	modelID string
	dim     int
	entries []Entry
}

// NewMemoryStore creates an empty in-memory store tagged with the
// embedding model identity from cfg.
func NewMemoryStore(cfg StoreConfig) *MemoryStore {
	return &MemoryStore{modelID: cfg.EmbeddingModelID}
}

// Add appends a batch of entries under the write lock.
func (s *MemoryStore) Add(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		if s.dim == 0 {
			s.dim = len(e.Vector)
		}
		if len(e.Vector) != s.dim {
			return fmt.Errorf("vector dimension mismatch: expected %d, got %d", s.dim, len(e.Vector))
		}
	}
	s.entries = append(s.entries, entries...)
	return nil
}

// Search scans every entry and returns the topK most similar chunks in
// non-increasing score order. Equal scores resolve to the earlier
// inserted entry.
func (s *MemoryStore) Search(ctx context.Context, query []float32, topK int) ([]llm.ScoredChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if topK <= 0 || len(s.entries) == 0 {
		return nil, nil
	}
	if len(query) != s.dim {
		return nil, fmt.Errorf("query dimension mismatch: expected %d, got %d", s.dim, len(query))
	}

	idxs := make([]int, len(s.entries))
	scores := make([]float32, len(s.entries))
	for i, e := range s.entries {
		idxs[i] = i
		scores[i] = dot(e.Vector, query)
	}
	// Stable sort over insertion order gives earlier entries precedence
	// on score ties.
	sort.SliceStable(idxs, func(a, b int) bool {
		return scores[idxs[a]] > scores[idxs[b]]
	})

	if topK > len(idxs) {
		topK = len(idxs)
	}
	results := make([]llm.ScoredChunk, 0, topK)
	for _, i := range idxs[:topK] {
		results = append(results, llm.ScoredChunk{Chunk: s.entries[i].Chunk, Score: scores[i]})
	}
	return results, nil
}

// DeleteBySource removes all entries whose chunk came from filename.
func (s *MemoryStore) DeleteBySource(ctx context.Context, filename string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.entries[:0]
	for _, e := range s.entries {
		if e.Chunk.Source != filename {
			kept = append(kept, e)
		}
	}
	s.entries = kept
	return nil
}

// Count returns the number of indexed entries.
func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}

// ModelID returns the embedding model identity recorded for the store.
func (s *MemoryStore) ModelID(ctx context.Context) (string, error) {
	return s.modelID, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }

// snapshot is the on-disk shape of a memory store.
type snapshot struct {
	ModelID string
	Dim     int
	Entries []Entry
}

// SaveFile writes a snapshot of the store to path, recording the
// embedding model identity so a reload can validate compatibility.
func (s *MemoryStore) SaveFile(path string) error {
	s.mu.RLock()
	snap := snapshot{ModelID: s.modelID, Dim: s.dim, Entries: append([]Entry(nil), s.entries...)}
	s.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create snapshot file: %w", err)
	}
	defer f.Close()
	if err := gob.NewEncoder(f).Encode(snap); err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return nil
}

// LoadFile restores a snapshot written by SaveFile. The snapshot's model
// identity must match cfg.EmbeddingModelID; a mismatch would silently
// corrupt similarity ranking and is rejected outright.
func LoadFile(path string, cfg StoreConfig) (*MemoryStore, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot file: %w", err)
	}
	defer f.Close()

	var snap snapshot
	if err := gob.NewDecoder(f).Decode(&snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if cfg.EmbeddingModelID != "" && snap.ModelID != cfg.EmbeddingModelID {
		return nil, fmt.Errorf("snapshot was built with embedding model %q, want %q", snap.ModelID, cfg.EmbeddingModelID)
	}
	return &MemoryStore{modelID: snap.ModelID, dim: snap.Dim, entries: snap.Entries}, nil
}

// dot computes the inner product of two equal-length vectors.
func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
