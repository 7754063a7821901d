package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"docsdoctor/llm"
)

// groundedAnswerPrompt keeps the model inside the retrieved context.
// Answers must come from the passages alone; a gap in the context is
// stated, never papered over.
const groundedAnswerPrompt = `You are a document assistant. Answer the user's question using ONLY the
context passages provided below.

RULES
- Base every statement on the provided context. Do not use outside knowledge.
- If the context does not contain the answer, say so explicitly instead of guessing.
- Be concise and direct. Quote the context where it helps.
- Mention which source a fact came from when several sources disagree.`

// Generator produces a natural-language answer grounded in retrieved
// passages. It is stateless: every call carries its full context.
type Generator struct {
	chatModel model.BaseChatModel
}

// NewGenerator creates a generator over the given chat model.
func NewGenerator(chatModel model.BaseChatModel) (*Generator, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("chat model is required")
	}
	return &Generator{chatModel: chatModel}, nil
}

// Generate answers question from the passages, concatenated in retrieval
// order. The call is synchronous and may take seconds.
func (g *Generator) Generate(ctx context.Context, question string, passages []llm.ScoredChunk) (string, error) {
	msg, err := g.chatModel.Generate(ctx, []*schema.Message{
		schema.SystemMessage(groundedAnswerPrompt),
		schema.UserMessage(buildUserPrompt(question, passages)),
	})
	if err != nil {
		return "", fmt.Errorf("generation failed: %w", err)
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return "", fmt.Errorf("generator returned an empty answer")
	}
	return msg.Content, nil
}

// buildUserPrompt labels each passage with its provenance so the model
// can reference sources, then appends the question.
func buildUserPrompt(question string, passages []llm.ScoredChunk) string {
	var sb strings.Builder
	sb.WriteString("CONTEXT\n")
	if len(passages) == 0 {
		sb.WriteString("(no passages retrieved)\n")
	}
	for _, p := range passages {
		fmt.Fprintf(&sb, "\n[Source: %s / chunk %d]\n%s\n", p.Chunk.Source, p.Chunk.ChunkIndex, p.Chunk.Text)
	}
	sb.WriteString("\nQUESTION\n")
	sb.WriteString(question)
	return sb.String()
}
