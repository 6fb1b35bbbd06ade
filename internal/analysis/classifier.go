package analysis

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"time"

	"github.com/joseph-ayodele/legal-docs/constants"
	"github.com/joseph-ayodele/legal-docs/internal/common"
	"github.com/joseph-ayodele/legal-docs/internal/entity"
	"github.com/joseph-ayodele/legal-docs/internal/llm"
)

// Classifier infers a document's type, category and confidence. It never
// fails: any service or parse problem yields entity.DefaultClassification.
type Classifier struct {
	ai     llm.Completer
	model  string
	logger *slog.Logger
}

func NewClassifier(ai llm.Completer, model string, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{ai: ai, model: model, logger: logger}
}

func (c *Classifier) Classify(ctx context.Context, text string) entity.Classification {
	start := time.Now()
	log := common.LoggerFromContext(ctx, c.logger)
	schema := llm.BuildClassificationJSONSchema()
	content, err := c.ai.Complete(ctx, llm.CompletionRequest{
		Model:       c.model,
		Temperature: 0.1,
		User:        llm.BuildClassifyPrompt(text),
		JSON:        true,
		Schema:      schema,
	})
	if err != nil {
		return fallback(log, "service_error", err, start)
	}
	if err := llm.ValidateJSONAgainstSchema(schema, []byte(content)); err != nil {
		return fallback(log, "invalid_response", err, start)
	}

	var out struct {
		Type       string  `json:"type"`
		Category   string  `json:"category"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return fallback(log, "decode_error", err, start)
	}

	res := entity.Classification{
		Type:       string(constants.CanonicalType(out.Type)),
		Category:   string(constants.CanonicalCategory(out.Category)),
		Confidence: clamp01(out.Confidence),
	}
	log.Info("llm.classify.ok",
		"type", res.Type,
		"category", res.Category,
		"confidence", res.Confidence,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res
}

func fallback(log *slog.Logger, reason string, err error, start time.Time) entity.Classification {
	log.Warn("llm.classify.fallback",
		"reason", reason,
		"error", err,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return entity.DefaultClassification()
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
