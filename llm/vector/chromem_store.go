package vector

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"docsdoctor/llm"
)

// ChromemConfig configures the embedded persistent vector store.
type ChromemConfig struct {
	// Path is the directory for persistent storage.
	Path string

	// Compress enables gzip compression for stored data.
	Compress bool

	StoreConfig
}

// ApplyDefaults sets default values for unset fields.
func (c *ChromemConfig) ApplyDefaults() {
	if c.Path == "" {
		c.Path = "./data/index"
	}
	if c.Collection == "" {
		c.Collection = DefaultStoreConfig().Collection
	}
}

// ChromemStore implements VectorStore on chromem-go, an embeddable vector
// database with gob-file persistence. It needs no external service; the
// index survives process restarts under cfg.Path, keyed by collection.
//
// A manifest file next to the database records the embedding model
// identity; reopening with a different model is rejected before any
// query can run against incompatible vectors.
type ChromemStore struct {
	db         *chromem.DB
	collection *chromem.Collection
	cfg        ChromemConfig

	mu sync.Mutex // serializes Add batches so readers never see a torn batch
}

// chromemManifest is persisted alongside the database directory.
type chromemManifest struct {
	Collection       string `json:"collection"`
	EmbeddingModelID string `json:"embedding_model_id"`
}

// NewChromemStore opens (or creates) a persistent store under cfg.Path.
func NewChromemStore(cfg ChromemConfig) (*ChromemStore, error) {
	cfg.ApplyDefaults()
	if cfg.EmbeddingModelID == "" {
		return nil, fmt.Errorf("embedding model identity is required")
	}

	if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	if err := checkManifest(cfg); err != nil {
		return nil, err
	}

	db, err := chromem.NewPersistentDB(cfg.Path, cfg.Compress)
	if err != nil {
		return nil, fmt.Errorf("failed to open chromem db: %w", err)
	}

	col, err := db.GetOrCreateCollection(cfg.Collection,
		map[string]string{"embedding_model": cfg.EmbeddingModelID},
		rejectTextEmbedding)
	if err != nil {
		return nil, fmt.Errorf("failed to open collection %q: %w", cfg.Collection, err)
	}

	return &ChromemStore{db: db, collection: col, cfg: cfg}, nil
}

// rejectTextEmbedding is installed as the collection's embedding function.
// Every document and query in this store carries a precomputed vector, so
// a text-embedding request here means a caller bypassed EmbeddingService.
func rejectTextEmbedding(ctx context.Context, text string) ([]float32, error) {
	return nil, fmt.Errorf("store only accepts precomputed embeddings")
}

// checkManifest validates the recorded model identity, writing the
// manifest on first use.
func checkManifest(cfg ChromemConfig) error {
	path := filepath.Join(cfg.Path, "manifest.json")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		m := chromemManifest{Collection: cfg.Collection, EmbeddingModelID: cfg.EmbeddingModelID}
		out, err := json.MarshalIndent(m, "", "  ")
		if err != nil {
			return err
		}
		return os.WriteFile(path, out, 0o644)
	}
	if err != nil {
		return fmt.Errorf("failed to read store manifest: %w", err)
	}
	var m chromemManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("failed to parse store manifest: %w", err)
	}
	if m.EmbeddingModelID != cfg.EmbeddingModelID {
		return fmt.Errorf("index was built with embedding model %q, want %q", m.EmbeddingModelID, cfg.EmbeddingModelID)
	}
	return nil
}

// Add appends a batch of entries.
func (s *ChromemStore) Add(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	docs := make([]chromem.Document, len(entries))
	for i, e := range entries {
		docs[i] = chromem.Document{
			ID:        e.Chunk.Source + "#" + strconv.Itoa(e.Chunk.ChunkIndex),
			Content:   e.Chunk.Text,
			Embedding: e.Vector,
			Metadata: map[string]string{
				"source":      e.Chunk.Source,
				"chunk_index": strconv.Itoa(e.Chunk.ChunkIndex),
			},
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.collection.AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	return nil
}

// Search returns up to topK chunks by descending similarity. Tie order
// among equal scores follows the backend, not insertion order.
func (s *ChromemStore) Search(ctx context.Context, query []float32, topK int) ([]llm.ScoredChunk, error) {
	if topK <= 0 {
		return nil, nil
	}
	if n := s.collection.Count(); n < topK {
		topK = n
	}
	if topK == 0 {
		return nil, nil
	}

	res, err := s.collection.QueryEmbedding(ctx, query, topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	results := make([]llm.ScoredChunk, 0, len(res))
	for _, r := range res {
		idx, _ := strconv.Atoi(r.Metadata["chunk_index"])
		results = append(results, llm.ScoredChunk{
			Chunk: llm.Chunk{Text: r.Content, Source: r.Metadata["source"], ChunkIndex: idx},
			Score: r.Similarity,
		})
	}
	return results, nil
}

// DeleteBySource removes all chunks derived from the given filename.
func (s *ChromemStore) DeleteBySource(ctx context.Context, filename string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.collection.Count() == 0 {
		return nil
	}
	if err := s.collection.Delete(ctx, map[string]string{"source": filename}, nil); err != nil {
		return fmt.Errorf("failed to delete by source: %w", err)
	}
	return nil
}

// Count returns the number of indexed entries.
func (s *ChromemStore) Count(ctx context.Context) (int, error) {
	return s.collection.Count(), nil
}

// ModelID returns the embedding model identity recorded for the store.
func (s *ChromemStore) ModelID(ctx context.Context) (string, error) {
	return s.cfg.EmbeddingModelID, nil
}

// Close is a no-op: chromem persists on every write.
func (s *ChromemStore) Close() error { return nil }
