package async

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrAlreadyQueued is returned when a document is already waiting or running.
	ErrAlreadyQueued = errors.New("document already queued for processing")
	ErrQueueClosed   = errors.New("processing queue is shutting down")
)

// Job asks for one processing attempt of a document.
type Job struct {
	DocumentID  string
	SubmittedAt time.Time
	TraceID     string
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}

// Processor runs a single processing attempt.
type Processor interface {
	ProcessDocument(ctx context.Context, documentID string) error
}
