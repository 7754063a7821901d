package pubsub

import "context"

const (
	// IngestStartedEvent fires when a document batch begins ingestion.
	IngestStartedEvent EventType = "ingest_started"
	// DocumentIndexedEvent fires after one document's chunks are indexed.
	DocumentIndexedEvent EventType = "document_indexed"
	// DocumentSkippedEvent fires when an unreadable file is skipped.
	DocumentSkippedEvent EventType = "document_skipped"
	// IngestFinishedEvent fires when the whole batch is done.
	IngestFinishedEvent EventType = "ingest_finished"
	// AnswerReadyEvent fires when a question has been answered.
	AnswerReadyEvent EventType = "answer_ready"
)

type (
	// EventType identifies the kind of event.
	EventType string

	// Event is one occurrence in a resource's lifecycle.
	Event[T any] struct {
		Type    EventType
		Payload T
	}

	// Publisher publishes events to all subscribers.
	Publisher[T any] interface {
		Publish(EventType, T)
	}
)

// Subscriber exposes a read-only event channel that closes automatically
// when the context ends.
type Subscriber[T any] interface {
	Subscribe(context.Context) <-chan Event[T]
}
