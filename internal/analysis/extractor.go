package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/legal-docs/internal/common"
	"github.com/joseph-ayodele/legal-docs/internal/entity"
	"github.com/joseph-ayodele/legal-docs/internal/llm"
)

// FactExtractor turns document text into a structured fact record.
type FactExtractor struct {
	ai     llm.Completer
	model  string
	logger *slog.Logger
}

func NewFactExtractor(ai llm.Completer, model string, logger *slog.Logger) *FactExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &FactExtractor{ai: ai, model: model, logger: logger}
}

// ExtractFacts returns the facts found in text. The record has no ID or
// document yet; the caller owns persistence. No partial parse is attempted:
// an empty answer is an ExtractionServiceError, anything that is not a JSON
// object of facts is a MalformedResponseError.
func (e *FactExtractor) ExtractFacts(ctx context.Context, text string) (entity.FactRecord, error) {
	start := time.Now()
	log := common.LoggerFromContext(ctx, e.logger)
	schema := llm.BuildFactsJSONSchema()

	content, err := e.ai.Complete(ctx, llm.CompletionRequest{
		Model:       e.model,
		Temperature: 0.1,
		System:      llm.ExtractSystemPrompt(),
		User:        llm.BuildExtractPrompt(text),
		JSON:        true,
		Schema:      schema,
	})
	if err != nil {
		log.Error("llm.extract.service_error", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		if errors.Is(err, llm.ErrNoContent) {
			return entity.FactRecord{}, common.ExtractionServiceError("no response from AI service", nil)
		}
		return entity.FactRecord{}, common.ExtractionServiceError("AI service call failed", err)
	}

	fields, err := decodeFacts(schema, content)
	if err != nil {
		log.Error("llm.extract.malformed",
			"error", err,
			"content_len", len(content),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return entity.FactRecord{}, common.MalformedResponseError(err)
	}

	var rec entity.FactRecord
	if err := rec.Merge(fields, false); err != nil {
		return entity.FactRecord{}, common.MalformedResponseError(err)
	}

	log.Info("llm.extract.ok",
		"facts", rec.Count(),
		"additional", len(rec.AdditionalInfo),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return rec, nil
}

func decodeFacts(schema map[string]any, content string) (map[string]any, error) {
	if err := llm.ValidateJSONAgainstSchema(schema, []byte(content)); err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(content)))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("decode facts: %w", err)
	}
	return fields, nil
}
