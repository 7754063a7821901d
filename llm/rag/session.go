package rag

import (
	"context"
	"time"

	"github.com/google/uuid"

	"docsdoctor/llm"
)

// Turn is one question/answer exchange in a session.
type Turn struct {
	Question string
	Answer   llm.Answer
	AskedAt  time.Time
}

// Session is the caller-owned conversation state around an engine: one
// per user session, mutated only by Ingest/Ask, discarded when the
// session ends. The engine itself stores no history, so sessions can
// share one engine without leaking turns into each other.
type Session struct {
	ID        string
	CreatedAt time.Time

	engine  *Engine
	history []Turn
}

// NewSession creates a session over an engine.
func NewSession(engine *Engine) *Session {
	return &Session{
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
		engine:    engine,
	}
}

// Ingest forwards to the engine.
func (s *Session) Ingest(ctx context.Context, docs []llm.Document) (int, error) {
	return s.engine.Ingest(ctx, docs)
}

// IngestFiles forwards to the engine.
func (s *Session) IngestFiles(ctx context.Context, patterns []string) (int, error) {
	return s.engine.IngestFiles(ctx, patterns)
}

// Ask answers a question and records the turn in the session history.
// Failed questions are not recorded.
func (s *Session) Ask(ctx context.Context, question string) (llm.Answer, error) {
	answer, err := s.engine.Ask(ctx, question)
	if err != nil {
		return llm.Answer{}, err
	}
	s.history = append(s.history, Turn{Question: question, Answer: answer, AskedAt: time.Now()})
	return answer, nil
}

// History returns the recorded turns in order.
func (s *Session) History() []Turn {
	return s.history
}
