package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/spaceboy202105/chatbot-test/internal/domain"
)

const (
	// maxSSELineSize caps a single SSE line.
	maxSSELineSize = 1 * 1024 * 1024
	// maxResponseBodySize caps how much of a reply body is read.
	maxResponseBodySize int64 = 10 * 1024 * 1024
	// maxErrorBodyLen caps the provider error text carried in an AdapterError.
	maxErrorBodyLen = 512
)

// errStreamDone is returned by sseScanner.Next on the [DONE] sentinel.
var errStreamDone = errors.New("stream done")

// postJSON sends body to url. Transport failures and non-2xx replies are
// returned as *domain.AdapterError; on success the caller owns resp.Body.
func postJSON(ctx context.Context, client *http.Client, provider, url string, headers map[string]string, body any) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, &domain.AdapterError{Provider: provider, Cause: fmt.Errorf("failed to send request: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer closeBody(resp.Body)
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
		return nil, &domain.AdapterError{
			Provider:   provider,
			StatusCode: resp.StatusCode,
			Cause:      errors.New(providerErrorMessage(respBody)),
		}
	}
	return resp, nil
}

// decodeJSON reads a whole reply body into v.
func decodeJSON(provider string, body io.Reader, v any) error {
	data, err := io.ReadAll(io.LimitReader(body, maxResponseBodySize))
	if err != nil {
		return &domain.AdapterError{Provider: provider, Cause: fmt.Errorf("failed to read response: %w", err)}
	}
	if err := json.Unmarshal(data, v); err != nil {
		return domain.NewMalformedError(provider, err)
	}
	return nil
}

// providerErrorMessage extracts a readable message from an error body.
func providerErrorMessage(body []byte) string {
	var envelope struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
		Code    string          `json:"code"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		if len(envelope.Error) > 0 {
			var nested struct {
				Message string `json:"message"`
				Type    string `json:"type"`
			}
			if json.Unmarshal(envelope.Error, &nested) == nil && nested.Message != "" {
				if nested.Type != "" {
					return fmt.Sprintf("%s (type: %s)", nested.Message, nested.Type)
				}
				return nested.Message
			}
			var flat string
			if json.Unmarshal(envelope.Error, &flat) == nil && flat != "" {
				return flat
			}
		}
		if envelope.Message != "" {
			if envelope.Code != "" {
				return fmt.Sprintf("%s (code: %s)", envelope.Message, envelope.Code)
			}
			return envelope.Message
		}
	}
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return "empty error response"
	}
	if len(msg) > maxErrorBodyLen {
		msg = msg[:maxErrorBodyLen] + "..."
	}
	return msg
}

func closeBody(body io.Closer) {
	if err := body.Close(); err != nil {
		slog.Debug("failed to close response body", "error", err)
	}
}

// sseScanner reads the data payloads of a server-sent event stream.
type sseScanner struct {
	scanner *bufio.Scanner
}

func newSSEScanner(r io.Reader) *sseScanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxSSELineSize)
	return &sseScanner{scanner: scanner}
}

// Next returns the next event's data. Consecutive data lines are joined with
// newlines. It returns errStreamDone on the [DONE] sentinel and io.EOF at the
// end of the body.
func (s *sseScanner) Next() (string, error) {
	var dataLines []string

	for s.scanner.Scan() {
		line := s.scanner.Text()

		if line == "" {
			if len(dataLines) > 0 {
				return strings.Join(dataLines, "\n"), nil
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		if strings.HasPrefix(line, "data:") {
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "[DONE]" {
				return "", errStreamDone
			}
			dataLines = append(dataLines, data)
		}
	}

	if err := s.scanner.Err(); err != nil {
		return "", fmt.Errorf("failed to read stream: %w", err)
	}
	if len(dataLines) > 0 {
		return strings.Join(dataLines, "\n"), nil
	}
	return "", io.EOF
}
