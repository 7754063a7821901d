package vector

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"

	"docsdoctor/llm"
)

const (
	defaultEFConstruction = 200
	defaultM              = 16

	fieldContent    = "content"
	fieldVector     = "vector"
	fieldSource     = "source"
	fieldChunkIndex = "chunk_index"
	fieldScore      = "score"
)

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr           string
	Password       string
	DB             int
	PoolSize       int
	EFConstruction int
	M              int

	StoreConfig
}

// ApplyDefaults sets default values for unset fields.
func (c *RedisConfig) ApplyDefaults() {
	if c.Addr == "" {
		c.Addr = "localhost:6379"
	}
	if c.PoolSize == 0 {
		c.PoolSize = 10
	}
	if c.EFConstruction == 0 {
		c.EFConstruction = defaultEFConstruction
	}
	if c.M == 0 {
		c.M = defaultM
	}
	if c.Collection == "" {
		c.Collection = DefaultStoreConfig().Collection
	}
}

// RedisStore implements VectorStore using Redis with a RediSearch HNSW
// index. Entries carry precomputed vectors; the embedding model identity
// is recorded under a dedicated key and validated when the store is
// reopened against an existing index.
type RedisStore struct {
	client *redis.Client
	cfg    RedisConfig
	dim    int

	mu sync.Mutex
}

// NewRedisStore connects to Redis and prepares the vector index. dim is
// the embedding dimension and must match the model tagged in cfg.
func NewRedisStore(ctx context.Context, cfg RedisConfig, dim int) (*RedisStore, error) {
	cfg.ApplyDefaults()
	if cfg.EmbeddingModelID == "" {
		return nil, fmt.Errorf("embedding model identity is required")
	}
	if dim <= 0 {
		return nil, fmt.Errorf("embedding dimension must be positive")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	s := &RedisStore{client: client, cfg: cfg, dim: dim}
	if err := s.checkModelTag(ctx); err != nil {
		client.Close()
		return nil, err
	}
	if err := s.ensureIndex(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to create vector index: %w", err)
	}
	return s, nil
}

func (s *RedisStore) keyPrefix() string { return s.cfg.Collection + ":chunk:" }

func (s *RedisStore) modelKey() string { return s.cfg.Collection + ":embedding_model" }

// checkModelTag records the embedding model identity on first use and
// rejects a mismatch on reopen.
func (s *RedisStore) checkModelTag(ctx context.Context) error {
	existing, err := s.client.Get(ctx, s.modelKey()).Result()
	if err == redis.Nil {
		return s.client.Set(ctx, s.modelKey(), s.cfg.EmbeddingModelID, 0).Err()
	}
	if err != nil {
		return fmt.Errorf("failed to read embedding model tag: %w", err)
	}
	if existing != s.cfg.EmbeddingModelID {
		return fmt.Errorf("index was built with embedding model %q, want %q", existing, s.cfg.EmbeddingModelID)
	}
	return nil
}

// ensureIndex creates the HNSW vector index if it doesn't exist.
func (s *RedisStore) ensureIndex(ctx context.Context) error {
	if _, err := s.client.Do(ctx, "FT.INFO", s.cfg.Collection).Result(); err == nil {
		return nil
	}

	// FT.CREATE <collection>
	//   ON HASH PREFIX 1 "<collection>:chunk:"
	//   SCHEMA vector VECTOR HNSW 10 TYPE FLOAT32 DIM <dim>
	//          DISTANCE_METRIC COSINE EF_CONSTRUCTION 200 M 16
	//          content TEXT source TAG chunk_index NUMERIC
	_, err := s.client.Do(ctx, "FT.CREATE", s.cfg.Collection,
		"ON", "HASH",
		"PREFIX", "1", s.keyPrefix(),
		"SCHEMA",
		fieldVector, "VECTOR", "HNSW", "10",
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(s.dim),
		"DISTANCE_METRIC", "COSINE",
		"EF_CONSTRUCTION", strconv.Itoa(s.cfg.EFConstruction),
		"M", strconv.Itoa(s.cfg.M),
		fieldContent, "TEXT",
		fieldSource, "TAG",
		fieldChunkIndex, "NUMERIC",
	).Result()
	return err
}

// Add appends a batch of entries via a pipeline.
func (s *RedisStore) Add(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	pipe := s.client.Pipeline()
	for _, e := range entries {
		if len(e.Vector) != s.dim {
			return fmt.Errorf("vector dimension mismatch: expected %d, got %d", s.dim, len(e.Vector))
		}
		key := s.keyPrefix() + e.Chunk.Source + "#" + strconv.Itoa(e.Chunk.ChunkIndex)
		pipe.HSet(ctx, key,
			fieldContent, e.Chunk.Text,
			fieldVector, encodeVector(e.Vector),
			fieldSource, escapeTagValue(e.Chunk.Source),
			fieldChunkIndex, e.Chunk.ChunkIndex,
		)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to insert entries: %w", err)
	}
	return nil
}

// Search performs a KNN query over the HNSW index.
func (s *RedisStore) Search(ctx context.Context, query []float32, topK int) ([]llm.ScoredChunk, error) {
	if topK <= 0 {
		return nil, nil
	}
	if n, err := s.Count(ctx); err != nil {
		return nil, err
	} else if n == 0 {
		return nil, nil
	}

	queryStr := fmt.Sprintf("*=>[KNN %d @%s $query_vector AS %s]", topK, fieldVector, fieldScore)
	result, err := s.client.Do(ctx, "FT.SEARCH", s.cfg.Collection, queryStr,
		"PARAMS", "2", "query_vector", encodeVector(query),
		"RETURN", "4", fieldContent, fieldSource, fieldChunkIndex, fieldScore,
		"SORTBY", fieldScore,
		"LIMIT", "0", strconv.Itoa(topK),
		"DIALECT", "2",
	).Result()
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	return parseSearchResults(result)
}

// parseSearchResults decodes the FT.SEARCH reply: a count followed by
// alternating key / field-list pairs.
func parseSearchResults(result interface{}) ([]llm.ScoredChunk, error) {
	values, ok := result.([]interface{})
	if !ok || len(values) == 0 {
		return nil, fmt.Errorf("unexpected search result format")
	}

	var results []llm.ScoredChunk
	for i := 1; i+1 < len(values); i += 2 {
		fields, ok := values[i+1].([]interface{})
		if !ok {
			continue
		}
		var sc llm.ScoredChunk
		for j := 0; j+1 < len(fields); j += 2 {
			name, _ := fields[j].(string)
			val, _ := fields[j+1].(string)
			switch name {
			case fieldContent:
				sc.Chunk.Text = val
			case fieldSource:
				sc.Chunk.Source = unescapeTagValue(val)
			case fieldChunkIndex:
				sc.Chunk.ChunkIndex, _ = strconv.Atoi(val)
			case fieldScore:
				// RediSearch returns cosine distance; similarity = 1 - dist.
				if dist, err := strconv.ParseFloat(val, 32); err == nil {
					sc.Score = float32(1 - dist)
				}
			}
		}
		results = append(results, sc)
	}
	return results, nil
}

// DeleteBySource removes all chunks derived from the given filename.
func (s *RedisStore) DeleteBySource(ctx context.Context, filename string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var cursor uint64
	pattern := s.keyPrefix() + filename + "#*"
	for {
		keys, next, err := s.client.Scan(ctx, cursor, pattern, 256).Result()
		if err != nil {
			return fmt.Errorf("failed to scan keys: %w", err)
		}
		if len(keys) > 0 {
			if err := s.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("failed to delete keys: %w", err)
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// Count returns the number of indexed entries.
func (s *RedisStore) Count(ctx context.Context) (int, error) {
	var count int
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, s.keyPrefix()+"*", 256).Result()
		if err != nil {
			return 0, fmt.Errorf("failed to scan keys: %w", err)
		}
		count += len(keys)
		cursor = next
		if cursor == 0 {
			return count, nil
		}
	}
}

// ModelID returns the embedding model identity recorded in Redis.
func (s *RedisStore) ModelID(ctx context.Context) (string, error) {
	return s.client.Get(ctx, s.modelKey()).Result()
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error { return s.client.Close() }

// encodeVector encodes a float32 vector as the little-endian byte blob
// RediSearch expects for FLOAT32 vector fields.
func encodeVector(vector []float32) []byte {
	buf := make([]byte, 4*len(vector))
	for i, v := range vector {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// escapeTagValue escapes separators in TAG field values.
func escapeTagValue(value string) string {
	value = strings.ReplaceAll(value, ",", "\\,")
	return strings.ReplaceAll(value, " ", "\\ ")
}

func unescapeTagValue(value string) string {
	value = strings.ReplaceAll(value, "\\,", ",")
	return strings.ReplaceAll(value, "\\ ", " ")
}
