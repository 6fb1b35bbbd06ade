package clarify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joseph-ayodele/legal-docs/internal/llm"
)

// HighConfidence is the confidence above which a single question suffices.
const HighConfidence = 0.85

// QuestionCount sizes the question set: 1 when confidence > 0.85, else 3.
func QuestionCount(confidence float64) int {
	if confidence > HighConfidence {
		return 1
	}
	return 3
}

// Engine generates clarifying questions through the AI service.
type Engine struct {
	ai     llm.Completer
	model  string
	logger *slog.Logger
}

func NewEngine(ai llm.Completer, model string, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{ai: ai, model: model, logger: logger}
}

// GenerateQuestions asks for QuestionCount(confidence) questions about the
// document and returns the non-blank lines of the answer in order.
func (e *Engine) GenerateQuestions(ctx context.Context, documentType string, confidence float64, facts any) ([]string, error) {
	start := time.Now()
	n := QuestionCount(confidence)
	content, err := e.ai.Complete(ctx, llm.CompletionRequest{
		Model:       e.model,
		Temperature: 0.3,
		System:      llm.ClarifySystemPrompt(),
		User:        llm.BuildClarifyPrompt(documentType, confidence, facts, n),
	})
	if err != nil {
		e.logger.Error("clarify.questions.failed", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, fmt.Errorf("generate questions: %w", err)
	}

	questions := splitLines(content)
	e.logger.Info("clarify.questions.ok",
		"document_type", documentType,
		"confidence", confidence,
		"requested", n,
		"returned", len(questions),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return questions, nil
}

func splitLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if q := strings.TrimSpace(line); q != "" {
			out = append(out, q)
		}
	}
	return out
}

// SuggestAnswers offers canned answers for recognizable questions, or nil.
func SuggestAnswers(question string) []string {
	q := strings.ToLower(question)
	switch {
	case strings.Contains(q, "jurisdiction"):
		return []string{"Federal", "State", "County"}
	case strings.Contains(q, "filing date"):
		return []string{"Today", "Next Week", "Custom Date"}
	default:
		return nil
	}
}
