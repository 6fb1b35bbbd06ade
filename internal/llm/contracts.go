package llm

import (
	"context"
	"errors"
)

// ErrNoContent is returned when the service answers without any message content.
var ErrNoContent = errors.New("ai service returned no content")

// CompletionRequest is one prompt to the AI text-analysis service.
type CompletionRequest struct {
	Model       string // empty -> client default
	Temperature float32
	System      string
	User        string
	// JSON asks for a single JSON object response. Schema, when set, is sent
	// along as the shape the object must follow.
	JSON   bool
	Schema map[string]any
}

// Completer is the AI service contract the pipeline depends on.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}
