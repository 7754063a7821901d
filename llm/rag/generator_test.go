package rag

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docsdoctor/llm"
)

func TestNewGenerator_RequiresModel(t *testing.T) {
	_, err := NewGenerator(nil)
	assert.Error(t, err)
}

func TestGenerator_PromptCarriesPassagesAndQuestion(t *testing.T) {
	chat := &fakeChatModel{answer: "Blue."}
	gen, err := NewGenerator(chat)
	require.NoError(t, err)

	passages := []llm.ScoredChunk{
		{Chunk: llm.Chunk{Text: "The sky is blue.", Source: "sky.txt", ChunkIndex: 0}, Score: 0.9},
		{Chunk: llm.Chunk{Text: "The grass is green.", Source: "grass.txt", ChunkIndex: 2}, Score: 0.4},
	}
	answer, err := gen.Generate(context.Background(), "What color is the sky?", passages)
	require.NoError(t, err)
	assert.Equal(t, "Blue.", answer)

	require.Len(t, chat.lastIn, 2, "system prompt plus user prompt")
	user := chat.lastIn[1].Content
	assert.Contains(t, user, "The sky is blue.")
	assert.Contains(t, user, "[Source: sky.txt / chunk 0]")
	assert.Contains(t, user, "[Source: grass.txt / chunk 2]")
	assert.Contains(t, user, "What color is the sky?")
}

func TestGenerator_NoPassages(t *testing.T) {
	chat := &fakeChatModel{answer: "I don't know."}
	gen, err := NewGenerator(chat)
	require.NoError(t, err)

	_, err = gen.Generate(context.Background(), "Anything?", nil)
	require.NoError(t, err)
	assert.Contains(t, chat.lastIn[1].Content, "(no passages retrieved)")
}

func TestGenerator_RejectsEmptyAnswer(t *testing.T) {
	gen, err := NewGenerator(&fakeChatModel{answer: "   "})
	require.NoError(t, err)

	_, err = gen.Generate(context.Background(), "q", nil)
	assert.ErrorContains(t, err, "empty answer")
}
