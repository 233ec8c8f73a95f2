package aiserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/kirillkom/collision-fault-assistant/internal/core/domain"
)

const maxResponseBytes = 8 << 20

func (c *Client) postJSON(ctx context.Context, path string, payload any, out any, operation string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", operation, err)
	}
	return c.post(ctx, path, "application/json", bytes.NewReader(body), out, operation)
}

func (c *Client) post(ctx context.Context, path, contentType string, body io.Reader, out any, operation string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyError(operation, fmt.Errorf("aiserver %s request: %w", operation, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return classifyError(operation, &HTTPStatusError{
			Operation:  operation,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(raw),
		})
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return classifyError(operation, fmt.Errorf("read %s response: %w", operation, err))
	}
	return decodeEnvelope(operation, raw, out)
}

// decodeEnvelope rejects 200 responses that carry an "error" field.
func decodeEnvelope(operation string, raw []byte, out any) error {
	var probe struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return domain.WrapError(domain.ErrUpstreamContract, operation, fmt.Errorf("decode response: %w", err))
	}
	if msg := errorMessage(probe.Error); msg != "" {
		return domain.WrapError(domain.ErrUpstreamContract, operation, &ServerError{Operation: operation, Message: msg})
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return domain.WrapError(domain.ErrUpstreamContract, operation, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func errorMessage(raw json.RawMessage) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return ""
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return strings.TrimSpace(text)
	}
	return trimmed
}
