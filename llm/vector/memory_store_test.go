package vector

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docsdoctor/llm"
)

func entry(text, source string, idx int, vec ...float32) Entry {
	return Entry{Vector: vec, Chunk: llm.Chunk{Text: text, Source: source, ChunkIndex: idx}}
}

func TestMemoryStore_EmptySearch(t *testing.T) {
	s := NewMemoryStore(StoreConfig{})
	results, err := s.Search(context.Background(), []float32{1, 0}, 3)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestMemoryStore_SearchRanksBySimilarity(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(StoreConfig{})
	require.NoError(t, s.Add(ctx, []Entry{
		entry("east", "a.txt", 0, 1, 0),
		entry("north", "a.txt", 1, 0, 1),
		entry("northeast", "a.txt", 2, 0.7071, 0.7071),
	}))

	results, err := s.Search(ctx, []float32{1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "east", results[0].Chunk.Text)
	assert.Equal(t, "northeast", results[1].Chunk.Text)
	assert.Equal(t, "north", results[2].Chunk.Text)
	for i := 0; i+1 < len(results); i++ {
		assert.GreaterOrEqual(t, results[i].Score, results[i+1].Score)
	}
}

func TestMemoryStore_TopKBounds(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(StoreConfig{})
	require.NoError(t, s.Add(ctx, []Entry{
		entry("a", "f", 0, 1, 0),
		entry("b", "f", 1, 0, 1),
	}))

	results, err := s.Search(ctx, []float32{1, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, results, 2, "never more than indexed")

	results, err = s.Search(ctx, []float32{1, 0}, 1)
	require.NoError(t, err)
	assert.Len(t, results, 1, "never more than k")
}

func TestMemoryStore_TiesBreakByInsertionOrder(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(StoreConfig{})
	require.NoError(t, s.Add(ctx, []Entry{
		entry("first", "f", 0, 1, 0),
		entry("second", "f", 1, 1, 0),
		entry("third", "f", 2, 1, 0),
	}))

	results, err := s.Search(ctx, []float32{1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "first", results[0].Chunk.Text)
	assert.Equal(t, "second", results[1].Chunk.Text)
	assert.Equal(t, "third", results[2].Chunk.Text)
}

func TestMemoryStore_DimensionMismatch(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(StoreConfig{})
	require.NoError(t, s.Add(ctx, []Entry{entry("a", "f", 0, 1, 0)}))

	err := s.Add(ctx, []Entry{entry("b", "f", 1, 1, 0, 0)})
	assert.Error(t, err)

	_, err = s.Search(ctx, []float32{1}, 1)
	assert.Error(t, err)
}

func TestMemoryStore_DeleteBySource(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(StoreConfig{})
	require.NoError(t, s.Add(ctx, []Entry{
		entry("a0", "a.txt", 0, 1, 0),
		entry("b0", "b.txt", 0, 0, 1),
		entry("a1", "a.txt", 1, 1, 0),
	}))

	require.NoError(t, s.DeleteBySource(ctx, "a.txt"))
	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	results, err := s.Search(ctx, []float32{0, 1}, 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b.txt", results[0].Chunk.Source)
}

func TestMemoryStore_SnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(StoreConfig{EmbeddingModelID: "openai/test-model"})
	require.NoError(t, s.Add(ctx, []Entry{
		entry("a", "a.txt", 0, 1, 0),
		entry("b", "b.txt", 0, 0, 1),
	}))

	path := filepath.Join(t.TempDir(), "index.gob")
	require.NoError(t, s.SaveFile(path))

	loaded, err := LoadFile(path, StoreConfig{EmbeddingModelID: "openai/test-model"})
	require.NoError(t, err)

	n, err := loaded.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	results, err := loaded.Search(ctx, []float32{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a.txt", results[0].Chunk.Source)
}

func TestMemoryStore_SnapshotRejectsModelMismatch(t *testing.T) {
	s := NewMemoryStore(StoreConfig{EmbeddingModelID: "openai/model-a"})
	require.NoError(t, s.Add(context.Background(), []Entry{entry("a", "a.txt", 0, 1, 0)}))

	path := filepath.Join(t.TempDir(), "index.gob")
	require.NoError(t, s.SaveFile(path))

	_, err := LoadFile(path, StoreConfig{EmbeddingModelID: "openai/model-b"})
	assert.ErrorContains(t, err, "embedding model")
}
