package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/legal-docs/internal/common"
	"github.com/joseph-ayodele/legal-docs/internal/llm"
)

var _ llm.Completer = (*Client)(nil)

// Complete implements llm.Completer over chat/completions.
func (c *Client) Complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	rid := uuid.New().String()
	start := time.Now()

	model := req.Model
	if model == "" {
		model = c.cfg.Model
	}
	c.log.Info("llm.complete.start",
		"req_id", rid,
		"model", model,
		"temp", req.Temperature,
		"json", req.JSON,
		"prompt_len", len(req.User),
		"document_id", common.DocumentIDFromContext(ctx),
	)

	messages := make([]map[string]any, 0, 3)
	if req.System != "" {
		messages = append(messages, map[string]any{"role": "system", "content": req.System})
	}
	user := req.User
	if req.JSON {
		user += "\n\nReturn ONLY a JSON object."
	}
	messages = append(messages, map[string]any{"role": "user", "content": user})
	if req.JSON && req.Schema != nil {
		messages = append(messages, map[string]any{"role": "system", "content": "JSON Schema:\n" + mustJSON(req.Schema)})
	}

	body := map[string]any{
		"model":       model,
		"temperature": req.Temperature,
		"messages":    messages,
	}
	if req.JSON {
		body["response_format"] = map[string]any{"type": "json_object"}
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	raw, err := c.post(ctx, endpoint, body)
	if err != nil {
		c.log.Error("llm.complete.http_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", err
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content *string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.log.Error("llm.complete.decode_error",
			"req_id", rid, "error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", fmt.Errorf("decode openai response: %w", err)
	}
	if len(cc.Choices) == 0 || cc.Choices[0].Message.Content == nil {
		c.log.Warn("llm.complete.no_content",
			"req_id", rid, "choices", len(cc.Choices),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", llm.ErrNoContent
	}
	content := strings.TrimSpace(*cc.Choices[0].Message.Content)
	if content == "" {
		c.log.Warn("llm.complete.no_content", "req_id", rid, "elapsed_ms", time.Since(start).Milliseconds())
		return "", llm.ErrNoContent
	}

	c.log.Info("llm.complete.ok",
		"req_id", rid,
		"content_len", len(content),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return content, nil
}

func (c *Client) post(ctx context.Context, url string, body map[string]any) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai http error: %w", err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			c.log.Warn("openai response body close error", "error", err)
		}
	}(resp.Body)

	buf := new(bytes.Buffer)
	_, _ = buf.ReadFrom(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("openai status %d: %s", resp.StatusCode, truncate(buf.String(), 2048))
	}
	return buf.Bytes(), nil
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
