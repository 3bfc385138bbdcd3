package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spaceboy202105/chatbot-test/internal/domain"
)

const (
	anthropicVersion          = "2023-06-01"
	anthropicDefaultMaxTokens = 1024
)

// AnthropicAdapter talks to the Anthropic Messages API. The system prompt is
// sent in the dedicated system field.
type AnthropicAdapter struct {
	providerBase
}

// NewAnthropicAdapter creates an Anthropic adapter.
func NewAnthropicAdapter(opts ProviderOptions) *AnthropicAdapter {
	if opts.Name == "" {
		opts.Name = "anthropic"
	}
	return &AnthropicAdapter{providerBase: newProviderBase(opts)}
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature *float64           `json:"temperature,omitempty"`
	TopP        *float64           `json:"top_p,omitempty"`
	TopK        *int               `json:"top_k,omitempty"`
	Stream      bool               `json:"stream,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	ID         string                  `json:"id"`
	Content    []anthropicContentBlock `json:"content"`
	StopReason string                  `json:"stop_reason"`
}

type anthropicContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type anthropicStreamEvent struct {
	Type  string `json:"type"`
	Delta *struct {
		Type string `json:"type,omitempty"`
		Text string `json:"text,omitempty"`
	} `json:"delta,omitempty"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (a *AnthropicAdapter) buildRequest(req *domain.NormalizedRequest, stream bool) *anthropicRequest {
	params := a.params(req)
	system := []string{}
	if req.SystemPrompt != "" {
		system = append(system, req.SystemPrompt)
	}

	messages := make([]anthropicMessage, 0, len(req.History)+1)
	for _, turn := range req.History {
		if turn.Role == domain.RoleSystem {
			system = append(system, turn.Content)
			continue
		}
		messages = append(messages, anthropicMessage{Role: string(turn.Role), Content: turn.Content})
	}
	messages = append(messages, anthropicMessage{Role: string(domain.RoleUser), Content: req.CurrentMessage})

	maxTokens := anthropicDefaultMaxTokens
	if params.MaxTokens != nil {
		maxTokens = *params.MaxTokens
	}
	return &anthropicRequest{
		Model:       a.model(req),
		System:      strings.Join(system, "\n\n"),
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: params.Temperature,
		TopP:        params.TopP,
		TopK:        params.TopK,
		Stream:      stream,
	}
}

func (a *AnthropicAdapter) headers() map[string]string {
	return map[string]string{
		"x-api-key":         a.apiKey,
		"anthropic-version": anthropicVersion,
	}
}

// Generate sends a non-streaming messages request.
func (a *AnthropicAdapter) Generate(ctx context.Context, req *domain.NormalizedRequest) (string, error) {
	resp, err := postJSON(ctx, a.httpClient, a.name, a.baseURL+"/v1/messages", a.headers(), a.buildRequest(req, false))
	if err != nil {
		return "", err
	}
	defer closeBody(resp.Body)

	var result anthropicResponse
	if err := decodeJSON(a.name, resp.Body, &result); err != nil {
		return "", err
	}
	if len(result.Content) == 0 {
		return "", domain.NewMalformedError(a.name, errors.New("response has no content blocks"))
	}

	var sb strings.Builder
	for _, block := range result.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}

// GenerateStream sends a streaming messages request.
func (a *AnthropicAdapter) GenerateStream(ctx context.Context, req *domain.NormalizedRequest) (FragmentSeq, error) {
	headers := a.headers()
	headers["Accept"] = "text/event-stream"
	resp, err := postJSON(ctx, a.httpClient, a.name, a.baseURL+"/v1/messages", headers, a.buildRequest(req, true))
	if err != nil {
		return nil, err
	}

	return newFragmentSeq(func(yield func(string, error) bool) {
		defer closeBody(resp.Body)
		scanner := newSSEScanner(resp.Body)

		for {
			data, err := scanner.Next()
			if errors.Is(err, io.EOF) || errors.Is(err, errStreamDone) {
				yield("", &domain.AdapterError{Provider: a.name, Cause: io.ErrUnexpectedEOF})
				return
			}
			if err != nil {
				yield("", &domain.AdapterError{Provider: a.name, Cause: err})
				return
			}

			var event anthropicStreamEvent
			if err := json.Unmarshal([]byte(data), &event); err != nil {
				yield("", domain.NewMalformedError(a.name, err))
				return
			}

			switch event.Type {
			case "content_block_delta":
				if event.Delta == nil || event.Delta.Type != "text_delta" || event.Delta.Text == "" {
					continue
				}
				if !yield(event.Delta.Text, nil) {
					return
				}
			case "message_stop":
				return
			case "error":
				msg := "unknown stream error"
				if event.Error != nil {
					msg = fmt.Sprintf("%s (type: %s)", event.Error.Message, event.Error.Type)
				}
				yield("", &domain.AdapterError{Provider: a.name, Cause: errors.New(msg)})
				return
			}
		}
	}), nil
}
