package rag

import (
	"errors"
	"fmt"
)

// ErrNoUsableChunks is returned by Ingest when no document in the batch
// produced any chunks; the engine stays uninitialized.
var ErrNoUsableChunks = errors.New("no usable chunks in ingested batch")

// ExtractError reports a source file that could not be converted to text.
// It is recovered locally during batch ingestion: the file is skipped and
// the rest of the batch continues.
type ExtractError struct {
	Path   string
	Reason error
}

func (e *ExtractError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Path, e.Reason)
}

func (e *ExtractError) Unwrap() error { return e.Reason }

// EmbeddingError wraps a failure of the embedding provider. At pipeline
// construction it is fatal; on a per-call basis it may be transient.
type EmbeddingError struct {
	Op  string
	Err error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding %s: %v", e.Op, e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

// QueryErrorKind classifies per-question failures so callers can tell
// apart "not ready", a retryable generator outage, and a bad question.
type QueryErrorKind string

const (
	KindNotReady             QueryErrorKind = "not_ready"
	KindGeneratorUnavailable QueryErrorKind = "generator_unavailable"
	KindBadQuestion          QueryErrorKind = "bad_question"
)

// QueryError is returned by Ask. It never corrupts index state; the
// engine remains usable for subsequent questions.
type QueryError struct {
	Kind QueryErrorKind
	Err  error
}

func (e *QueryError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("query failed: %s", e.Kind)
	}
	return fmt.Sprintf("query failed (%s): %v", e.Kind, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// Retryable reports whether the failure is worth retrying as-is.
func (e *QueryError) Retryable() bool {
	return e.Kind == KindGeneratorUnavailable
}
