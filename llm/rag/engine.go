// Package rag wires extraction, chunking, embedding, retrieval and
// generation into a document question-answering pipeline.
package rag

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"

	"docsdoctor/llm"
	"docsdoctor/llm/parser"
	"docsdoctor/llm/vector"
	"docsdoctor/pubsub"
)

// excerptLimit caps the length of a citation excerpt.
const excerptLimit = 200

// Extractor converts a file into a parsed document. *parser.Registry is
// the production implementation.
type Extractor interface {
	ParseFile(ctx context.Context, filePath string) (*parser.Document, error)
}

// Progress is the payload of pipeline events published during ingestion
// and querying. Documents counts whole documents on batch-level events;
// Chunks counts chunks on per-document and answer events.
type Progress struct {
	Filename  string
	Documents int
	Chunks    int
	Question  string
	Err       string
}

// Options tune an Engine. Zero values fall back to defaults.
type Options struct {
	// TopK is the number of passages retrieved per question. Default 3.
	TopK int

	// Chunk configures the document splitter.
	Chunk vector.ChunkConfig

	// CallTimeout bounds each external embed/generate call. Zero means
	// no timeout beyond the caller's context.
	CallTimeout time.Duration

	// Extractor parses files for IngestFiles. Defaults to
	// parser.DefaultRegistry().
	Extractor Extractor

	// Logger receives structured pipeline logs. Defaults to zap.NewNop().
	Logger *zap.Logger
}

// Engine owns the vector index, embedding service and generator for its
// lifetime and is the only component that touches all three. It moves
// from uninitialized to ready on the first successful ingestion; asking
// before that fails with a not-ready error.
type Engine struct {
	embedder  *vector.EmbeddingService
	store     vector.VectorStore
	generator *Generator
	extractor Extractor
	broker    *pubsub.Broker[Progress]
	log       *zap.Logger

	topK     int
	chunkCfg vector.ChunkConfig
	timeout  time.Duration

	mu    sync.RWMutex
	ready bool
}

// NewEngine assembles the pipeline. The store's recorded embedding model
// identity must match the embedder's; mixing models silently corrupts
// similarity ranking, so a mismatch is rejected here, before any data
// moves. A store reloaded with existing entries starts the engine ready.
func NewEngine(ctx context.Context, embedder *vector.EmbeddingService, store vector.VectorStore, generator *Generator, opts Options) (*Engine, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedding service is required")
	}
	if store == nil {
		return nil, fmt.Errorf("vector store is required")
	}
	if generator == nil {
		return nil, fmt.Errorf("generator is required")
	}

	storeModel, err := store.ModelID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read store model identity: %w", err)
	}
	if storeModel != "" && storeModel != embedder.ModelID() {
		return nil, fmt.Errorf("store was built with embedding model %q, embedder is %q", storeModel, embedder.ModelID())
	}

	if opts.TopK <= 0 {
		opts.TopK = 3
	}
	if opts.Chunk.Size <= 0 {
		opts.Chunk = vector.DefaultChunkConfig()
	}
	if opts.Extractor == nil {
		opts.Extractor = parser.DefaultRegistry()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	e := &Engine{
		embedder:  embedder,
		store:     store,
		generator: generator,
		extractor: opts.Extractor,
		broker:    pubsub.NewBroker[Progress](),
		log:       opts.Logger,
		topK:      opts.TopK,
		chunkCfg:  opts.Chunk,
		timeout:   opts.CallTimeout,
	}

	if n, err := store.Count(ctx); err == nil && n > 0 {
		e.ready = true
		e.log.Info("index reloaded", zap.Int("chunks", n))
	}
	return e, nil
}

// Events exposes the pipeline progress event stream.
func (e *Engine) Events() pubsub.Subscriber[Progress] { return e.broker }

// Ready reports whether at least one document has been indexed.
func (e *Engine) Ready() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ready
}

// Ingest chunks, embeds and indexes a batch of documents, returning the
// number of documents indexed. A document that yields no chunks is
// skipped; if the whole batch yields nothing the engine stays
// uninitialized and ErrNoUsableChunks is returned. A failure mid-batch
// returns the count indexed so far; those documents stay queryable.
// Re-ingesting a filename replaces its previously indexed chunks.
func (e *Engine) Ingest(ctx context.Context, docs []llm.Document) (int, error) {
	e.broker.Publish(pubsub.IngestStartedEvent, Progress{Documents: len(docs)})

	indexed := 0
	for _, doc := range docs {
		texts := vector.SplitText(doc.Content, e.chunkCfg)
		if len(texts) == 0 {
			e.log.Warn("document produced no chunks, skipping", zap.String("filename", doc.Filename))
			e.broker.Publish(pubsub.DocumentSkippedEvent, Progress{Filename: doc.Filename, Err: "no chunks"})
			continue
		}

		vecs, err := e.embedBatch(ctx, texts)
		if err != nil {
			return indexed, &EmbeddingError{Op: "ingest", Err: err}
		}

		entries := make([]vector.Entry, len(texts))
		for i, text := range texts {
			entries[i] = vector.Entry{
				Vector: vecs[i],
				Chunk:  llm.Chunk{Text: text, Source: doc.Filename, ChunkIndex: i},
			}
		}

		// Replace-then-add keeps (filename, chunk_index) unique across
		// repeated ingestion of the same file.
		if err := e.store.DeleteBySource(ctx, doc.Filename); err != nil {
			return indexed, fmt.Errorf("failed to replace prior chunks of %s: %w", doc.Filename, err)
		}
		if err := e.store.Add(ctx, entries); err != nil {
			return indexed, fmt.Errorf("failed to index %s: %w", doc.Filename, err)
		}

		indexed++
		e.markReady()
		e.log.Info("document indexed",
			zap.String("filename", doc.Filename),
			zap.Int("chunks", len(texts)))
		e.broker.Publish(pubsub.DocumentIndexedEvent, Progress{Filename: doc.Filename, Chunks: len(texts)})
	}

	if indexed == 0 {
		return 0, ErrNoUsableChunks
	}

	e.broker.Publish(pubsub.IngestFinishedEvent, Progress{Documents: indexed})
	return indexed, nil
}

// markReady flips the engine to ready. Called as soon as the first
// document lands in the index, so a failure later in the same batch does
// not hide chunks that are already retrievable.
func (e *Engine) markReady() {
	e.mu.Lock()
	e.ready = true
	e.mu.Unlock()
}

// IngestFiles expands glob patterns, extracts text from each matching
// file and ingests the result. Unreadable files are logged and skipped;
// the batch continues so one corrupt file never sinks the rest.
func (e *Engine) IngestFiles(ctx context.Context, patterns []string) (int, error) {
	paths := expandPatterns(patterns)

	var docs []llm.Document
	for _, path := range paths {
		parsed, err := e.extractor.ParseFile(ctx, path)
		if err != nil {
			extractErr := &ExtractError{Path: path, Reason: err}
			e.log.Warn("skipping unreadable file", zap.String("path", path), zap.Error(err))
			e.broker.Publish(pubsub.DocumentSkippedEvent, Progress{Filename: path, Err: extractErr.Error()})
			continue
		}
		docs = append(docs, llm.Document{Filename: filepath.Base(path), Content: parsed.Content})
	}

	if len(docs) == 0 {
		return 0, ErrNoUsableChunks
	}
	return e.Ingest(ctx, docs)
}

// expandPatterns resolves doublestar globs, passing non-matching
// arguments through as literal paths.
func expandPatterns(patterns []string) []string {
	var paths []string
	for _, p := range patterns {
		matches, err := doublestar.FilepathGlob(p)
		if err != nil || len(matches) == 0 {
			paths = append(paths, p)
			continue
		}
		paths = append(paths, matches...)
	}
	return paths
}

// Ask answers one question against the current index: embed the
// question, retrieve the top-k passages, generate a grounded answer and
// cite the passages in retrieval order. Each question is independent;
// the engine keeps no conversation state.
func (e *Engine) Ask(ctx context.Context, question string) (llm.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return llm.Answer{}, &QueryError{Kind: KindBadQuestion, Err: fmt.Errorf("question is empty")}
	}
	if !e.Ready() {
		return llm.Answer{}, &QueryError{Kind: KindNotReady, Err: fmt.Errorf("no documents ingested yet")}
	}

	queryVec, err := e.embedOne(ctx, question)
	if err != nil {
		return llm.Answer{}, &EmbeddingError{Op: "query", Err: err}
	}

	passages, err := e.store.Search(ctx, queryVec, e.topK)
	if err != nil {
		return llm.Answer{}, fmt.Errorf("retrieval failed: %w", err)
	}

	text, err := e.generate(ctx, question, passages)
	if err != nil {
		return llm.Answer{}, &QueryError{Kind: KindGeneratorUnavailable, Err: err}
	}

	answer := llm.Answer{Text: text, Sources: buildCitations(passages)}
	e.log.Info("question answered",
		zap.String("question", question),
		zap.Int("passages", len(passages)))
	e.broker.Publish(pubsub.AnswerReadyEvent, Progress{Question: question, Chunks: len(passages)})
	return answer, nil
}

// Close releases the index and model resources. The engine must not be
// used afterwards.
func (e *Engine) Close() error {
	e.broker.Shutdown()
	return e.store.Close()
}

func (e *Engine) embedOne(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := e.callCtx(ctx)
	defer cancel()
	return e.embedder.Embed(ctx, text)
}

func (e *Engine) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, cancel := e.callCtx(ctx)
	defer cancel()
	return e.embedder.EmbedBatch(ctx, texts)
}

func (e *Engine) generate(ctx context.Context, question string, passages []llm.ScoredChunk) (string, error) {
	ctx, cancel := e.callCtx(ctx)
	defer cancel()
	return e.generator.Generate(ctx, question, passages)
}

func (e *Engine) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, e.timeout)
}

// buildCitations maps the retrieval result to citations in the same
// order, excerpts capped at excerptLimit characters.
func buildCitations(passages []llm.ScoredChunk) []llm.SourceCitation {
	citations := make([]llm.SourceCitation, 0, len(passages))
	for _, p := range passages {
		citations = append(citations, llm.SourceCitation{
			Filename:   p.Chunk.Source,
			ChunkIndex: p.Chunk.ChunkIndex,
			Excerpt:    excerpt(p.Chunk.Text),
		})
	}
	return citations
}

func excerpt(text string) string {
	runes := []rune(text)
	if len(runes) <= excerptLimit {
		return text
	}
	return string(runes[:excerptLimit]) + "..."
}
