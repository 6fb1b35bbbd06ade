// Package testutil holds fakes shared by package tests.
package testutil

import (
	"context"
	"sync"

	"github.com/joseph-ayodele/legal-docs/internal/llm"
)

// StubCompleter answers every request through Fn, recording requests.
type StubCompleter struct {
	Fn func(req llm.CompletionRequest) (string, error)

	mu    sync.Mutex
	calls []llm.CompletionRequest
}

// Reply returns a completer that always answers content.
func Reply(content string) *StubCompleter {
	return &StubCompleter{Fn: func(llm.CompletionRequest) (string, error) { return content, nil }}
}

// Fail returns a completer that always fails with err.
func Fail(err error) *StubCompleter {
	return &StubCompleter{Fn: func(llm.CompletionRequest) (string, error) { return "", err }}
}

func (s *StubCompleter) Complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return s.Fn(req)
}

// Calls returns a copy of the recorded requests.
func (s *StubCompleter) Calls() []llm.CompletionRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]llm.CompletionRequest, len(s.calls))
	copy(out, s.calls)
	return out
}
