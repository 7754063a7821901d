package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docsdoctor/llm"
	"docsdoctor/llm/parser"
	"docsdoctor/llm/vector"
	"docsdoctor/pubsub"
)

// letterEmbedder embeds text as its letter-frequency profile, a cheap
// deterministic stand-in with meaningful similarity between texts that
// share words.
type letterEmbedder struct{}

func (letterEmbedder) EmbedStrings(ctx context.Context, texts []string, opts ...embedding.Option) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, t := range texts {
		vec := make([]float64, 27)
		for _, r := range strings.ToLower(t) {
			if r >= 'a' && r <= 'z' {
				vec[r-'a']++
			} else {
				vec[26]++
			}
		}
		out[i] = vec
	}
	return out, nil
}

// fakeChatModel returns a canned answer, or fails when told to.
type fakeChatModel struct {
	answer string
	fail   bool
	calls  int
	lastIn []*schema.Message
}

func (f *fakeChatModel) Generate(ctx context.Context, in []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	f.calls++
	f.lastIn = in
	if f.fail {
		return nil, fmt.Errorf("generator unreachable")
	}
	return schema.AssistantMessage(f.answer, nil), nil
}

func (f *fakeChatModel) Stream(ctx context.Context, in []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, fmt.Errorf("streaming not supported")
}

// fakeExtractor serves canned file contents and simulated failures.
type fakeExtractor struct {
	files  map[string]string
	broken map[string]bool
}

func (f *fakeExtractor) ParseFile(ctx context.Context, path string) (*parser.Document, error) {
	if f.broken[path] {
		return nil, fmt.Errorf("corrupt file")
	}
	content, ok := f.files[path]
	if !ok {
		return nil, fmt.Errorf("no such file")
	}
	return &parser.Document{Content: content}, nil
}

func newTestEngine(t *testing.T, chat *fakeChatModel, extractor Extractor) *Engine {
	t.Helper()
	embedder, err := vector.NewEmbeddingService(letterEmbedder{}, "fake/letters")
	require.NoError(t, err)
	gen, err := NewGenerator(chat)
	require.NoError(t, err)
	store := vector.NewMemoryStore(vector.StoreConfig{EmbeddingModelID: "fake/letters"})
	engine, err := NewEngine(context.Background(), embedder, store, gen, Options{Extractor: extractor})
	require.NoError(t, err)
	return engine
}

func TestEngine_RejectsModelMismatch(t *testing.T) {
	embedder, err := vector.NewEmbeddingService(letterEmbedder{}, "fake/letters")
	require.NoError(t, err)
	gen, err := NewGenerator(&fakeChatModel{answer: "x"})
	require.NoError(t, err)
	store := vector.NewMemoryStore(vector.StoreConfig{EmbeddingModelID: "other/model"})

	_, err = NewEngine(context.Background(), embedder, store, gen, Options{})
	assert.ErrorContains(t, err, "embedding model")
}

func TestEngine_SingleDocumentCitation(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t, &fakeChatModel{answer: "The sky is blue."}, nil)

	count, err := engine.Ingest(ctx, []llm.Document{{Filename: "a.txt", Content: "The sky is blue."}})
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	answer, err := engine.Ask(ctx, "What color is the sky?")
	require.NoError(t, err)
	assert.NotEmpty(t, answer.Text)
	require.Len(t, answer.Sources, 1)
	assert.Equal(t, "a.txt", answer.Sources[0].Filename)
	assert.Equal(t, 0, answer.Sources[0].ChunkIndex)
	assert.Equal(t, "The sky is blue.", answer.Sources[0].Excerpt)
}

func TestEngine_IngestFilesSkipsUnreadable(t *testing.T) {
	ctx := context.Background()
	extractor := &fakeExtractor{
		files: map[string]string{
			"good.txt": "First paragraph about rivers.\n\nSecond paragraph about lakes.\n\nThird paragraph about seas.",
		},
		broken: map[string]bool{"bad.pdf": true},
	}
	engine := newTestEngine(t, &fakeChatModel{answer: "ok"}, extractor)

	count, err := engine.IngestFiles(ctx, []string{"bad.pdf", "good.txt"})
	require.NoError(t, err)
	assert.Equal(t, 1, count, "only the readable document counts")
	assert.True(t, engine.Ready())
}

func TestEngine_AllFilesUnreadable(t *testing.T) {
	extractor := &fakeExtractor{broken: map[string]bool{"bad.pdf": true}}
	engine := newTestEngine(t, &fakeChatModel{answer: "ok"}, extractor)

	_, err := engine.IngestFiles(context.Background(), []string{"bad.pdf"})
	assert.ErrorIs(t, err, ErrNoUsableChunks)
	assert.False(t, engine.Ready())
}

func TestEngine_AskBeforeIngest(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t, &fakeChatModel{answer: "ok"}, nil)

	_, err := engine.Ask(ctx, "anything?")
	var qerr *QueryError
	require.ErrorAs(t, err, &qerr)
	assert.Equal(t, KindNotReady, qerr.Kind)
	assert.False(t, qerr.Retryable())

	// The same question succeeds once a document is in.
	_, err = engine.Ingest(ctx, []llm.Document{{Filename: "a.txt", Content: "Some content."}})
	require.NoError(t, err)
	_, err = engine.Ask(ctx, "anything?")
	assert.NoError(t, err)
}

func TestEngine_BlankQuestion(t *testing.T) {
	engine := newTestEngine(t, &fakeChatModel{answer: "ok"}, nil)
	_, err := engine.Ask(context.Background(), "   ")
	var qerr *QueryError
	require.ErrorAs(t, err, &qerr)
	assert.Equal(t, KindBadQuestion, qerr.Kind)
}

func TestEngine_EmptyBatchKeepsUninitialized(t *testing.T) {
	engine := newTestEngine(t, &fakeChatModel{answer: "ok"}, nil)
	_, err := engine.Ingest(context.Background(), []llm.Document{{Filename: "empty.txt", Content: ""}})
	assert.ErrorIs(t, err, ErrNoUsableChunks)
	assert.False(t, engine.Ready())
}

func TestEngine_GeneratorFailureIsRetryable(t *testing.T) {
	ctx := context.Background()
	chat := &fakeChatModel{answer: "The sky is blue.", fail: true}
	engine := newTestEngine(t, chat, nil)

	_, err := engine.Ingest(ctx, []llm.Document{{Filename: "a.txt", Content: "The sky is blue."}})
	require.NoError(t, err)

	_, err = engine.Ask(ctx, "What color is the sky?")
	var qerr *QueryError
	require.ErrorAs(t, err, &qerr)
	assert.Equal(t, KindGeneratorUnavailable, qerr.Kind)
	assert.True(t, qerr.Retryable())

	// The index stays usable: a recovered generator answers.
	chat.fail = false
	_, err = engine.Ask(ctx, "What color is the sky?")
	assert.NoError(t, err)
}

func TestEngine_SourcesAreDeterministic(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t, &fakeChatModel{answer: "whatever"}, nil)

	_, err := engine.Ingest(ctx, []llm.Document{
		{Filename: "sky.txt", Content: "The sky is blue."},
		{Filename: "grass.txt", Content: "The grass is green."},
	})
	require.NoError(t, err)

	first, err := engine.Ask(ctx, "What color is the sky?")
	require.NoError(t, err)
	second, err := engine.Ask(ctx, "What color is the sky?")
	require.NoError(t, err)
	assert.Equal(t, first.Sources, second.Sources)
}

func TestEngine_ReingestReplacesChunks(t *testing.T) {
	ctx := context.Background()
	embedder, err := vector.NewEmbeddingService(letterEmbedder{}, "fake/letters")
	require.NoError(t, err)
	gen, err := NewGenerator(&fakeChatModel{answer: "ok"})
	require.NoError(t, err)
	store := vector.NewMemoryStore(vector.StoreConfig{EmbeddingModelID: "fake/letters"})
	engine, err := NewEngine(ctx, embedder, store, gen, Options{})
	require.NoError(t, err)

	_, err = engine.Ingest(ctx, []llm.Document{{Filename: "a.txt", Content: "Version one."}})
	require.NoError(t, err)
	before, err := store.Count(ctx)
	require.NoError(t, err)

	_, err = engine.Ingest(ctx, []llm.Document{{Filename: "a.txt", Content: "Version two, revised."}})
	require.NoError(t, err)
	after, err := store.Count(ctx)
	require.NoError(t, err)

	assert.Equal(t, before, after, "re-ingestion must not duplicate chunks")
}

func TestEngine_LongExcerptIsTruncated(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t, &fakeChatModel{answer: "ok"}, nil)

	long := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 10)
	_, err := engine.Ingest(ctx, []llm.Document{{Filename: "long.txt", Content: long}})
	require.NoError(t, err)

	answer, err := engine.Ask(ctx, "What does the fox do?")
	require.NoError(t, err)
	require.NotEmpty(t, answer.Sources)
	ex := answer.Sources[0].Excerpt
	assert.LessOrEqual(t, len([]rune(ex)), excerptLimit+3)
	assert.True(t, strings.HasSuffix(ex, "..."))
}

// flakyEmbedder fails on exactly one call and delegates to the letter
// embedder otherwise.
type flakyEmbedder struct {
	calls  int
	failOn int
}

func (f *flakyEmbedder) EmbedStrings(ctx context.Context, texts []string, opts ...embedding.Option) ([][]float64, error) {
	f.calls++
	if f.calls == f.failOn {
		return nil, fmt.Errorf("provider outage")
	}
	return letterEmbedder{}.EmbedStrings(ctx, texts)
}

func TestEngine_MidBatchFailureKeepsIndexedDocuments(t *testing.T) {
	ctx := context.Background()
	embedder, err := vector.NewEmbeddingService(&flakyEmbedder{failOn: 2}, "fake/letters")
	require.NoError(t, err)
	gen, err := NewGenerator(&fakeChatModel{answer: "ok"})
	require.NoError(t, err)
	store := vector.NewMemoryStore(vector.StoreConfig{EmbeddingModelID: "fake/letters"})
	engine, err := NewEngine(ctx, embedder, store, gen, Options{})
	require.NoError(t, err)

	_, err = engine.Ingest(ctx, []llm.Document{
		{Filename: "a.txt", Content: "The sky is blue."},
		{Filename: "b.txt", Content: "The grass is green."},
	})
	var embErr *EmbeddingError
	require.ErrorAs(t, err, &embErr)

	// The first document made it in before the outage and must stay
	// queryable.
	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, engine.Ready())

	answer, err := engine.Ask(ctx, "What color is the sky?")
	require.NoError(t, err)
	require.NotEmpty(t, answer.Sources)
	assert.Equal(t, "a.txt", answer.Sources[0].Filename)
}

func TestEngine_IngestEventsCarryDocumentCounts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	engine := newTestEngine(t, &fakeChatModel{answer: "ok"}, nil)
	events := engine.Events().Subscribe(ctx)

	_, err := engine.Ingest(ctx, []llm.Document{{Filename: "a.txt", Content: "The sky is blue."}})
	require.NoError(t, err)

	var got []pubsub.Event[Progress]
	deadline := time.After(time.Second)
	for {
		select {
		case ev := <-events:
			got = append(got, ev)
		case <-deadline:
			t.Fatal("timed out waiting for ingest events")
		}
		if got[len(got)-1].Type == pubsub.IngestFinishedEvent {
			break
		}
	}

	require.Equal(t, pubsub.IngestStartedEvent, got[0].Type)
	assert.Equal(t, 1, got[0].Payload.Documents)
	assert.Zero(t, got[0].Payload.Chunks)

	finished := got[len(got)-1]
	assert.Equal(t, 1, finished.Payload.Documents)
}

func TestQueryError_Unwrap(t *testing.T) {
	inner := errors.New("boom")
	err := &QueryError{Kind: KindGeneratorUnavailable, Err: inner}
	assert.ErrorIs(t, err, inner)
}
