package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spaceboy202105/chatbot-test/internal/domain"
)

// OpenAIAdapter talks to OpenAI-compatible chat completion APIs. It also
// serves providers that expose the same wire format under another base URL.
type OpenAIAdapter struct {
	providerBase
}

// NewOpenAIAdapter creates an adapter for an OpenAI-compatible endpoint.
func NewOpenAIAdapter(opts ProviderOptions) *OpenAIAdapter {
	if opts.Name == "" {
		opts.Name = "openai"
	}
	return &OpenAIAdapter{providerBase: newProviderBase(opts)}
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	TopP        *float64      `json:"top_p,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
}

type chatChoice struct {
	Index        int          `json:"index"`
	Message      *chatMessage `json:"message,omitempty"`
	Delta        *chatMessage `json:"delta,omitempty"`
	FinishReason *string      `json:"finish_reason,omitempty"`
}

type chatStreamChunk struct {
	Choices []chatChoice    `json:"choices"`
	Error   json.RawMessage `json:"error,omitempty"`
}

func (a *OpenAIAdapter) buildRequest(req *domain.NormalizedRequest, stream bool) *chatCompletionRequest {
	params := a.params(req)
	messages := make([]chatMessage, 0, len(req.History)+2)
	if req.SystemPrompt != "" {
		messages = append(messages, chatMessage{Role: string(domain.RoleSystem), Content: req.SystemPrompt})
	}
	for _, turn := range req.History {
		messages = append(messages, chatMessage{Role: string(turn.Role), Content: turn.Content})
	}
	messages = append(messages, chatMessage{Role: string(domain.RoleUser), Content: req.CurrentMessage})

	return &chatCompletionRequest{
		Model:       a.model(req),
		Messages:    messages,
		Temperature: params.Temperature,
		TopP:        params.TopP,
		MaxTokens:   params.MaxTokens,
		Stream:      stream,
	}
}

func (a *OpenAIAdapter) headers() map[string]string {
	h := map[string]string{}
	if a.apiKey != "" {
		h["Authorization"] = "Bearer " + a.apiKey
	}
	return h
}

// Generate sends a non-streaming chat completion request.
func (a *OpenAIAdapter) Generate(ctx context.Context, req *domain.NormalizedRequest) (string, error) {
	resp, err := postJSON(ctx, a.httpClient, a.name, a.baseURL+"/chat/completions", a.headers(), a.buildRequest(req, false))
	if err != nil {
		return "", err
	}
	defer closeBody(resp.Body)

	var result chatCompletionResponse
	if err := decodeJSON(a.name, resp.Body, &result); err != nil {
		return "", err
	}
	if len(result.Choices) == 0 || result.Choices[0].Message == nil {
		return "", domain.NewMalformedError(a.name, errors.New("response has no choices"))
	}
	return result.Choices[0].Message.Content, nil
}

// GenerateStream sends a streaming chat completion request.
func (a *OpenAIAdapter) GenerateStream(ctx context.Context, req *domain.NormalizedRequest) (FragmentSeq, error) {
	headers := a.headers()
	headers["Accept"] = "text/event-stream"
	resp, err := postJSON(ctx, a.httpClient, a.name, a.baseURL+"/chat/completions", headers, a.buildRequest(req, true))
	if err != nil {
		return nil, err
	}

	return newFragmentSeq(func(yield func(string, error) bool) {
		defer closeBody(resp.Body)
		scanner := newSSEScanner(resp.Body)
		finished := false

		for {
			data, err := scanner.Next()
			if errors.Is(err, errStreamDone) {
				return
			}
			if errors.Is(err, io.EOF) {
				if !finished {
					yield("", &domain.AdapterError{Provider: a.name, Cause: io.ErrUnexpectedEOF})
				}
				return
			}
			if err != nil {
				yield("", &domain.AdapterError{Provider: a.name, Cause: err})
				return
			}

			var chunk chatStreamChunk
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				yield("", domain.NewMalformedError(a.name, err))
				return
			}
			if len(chunk.Error) > 0 {
				yield("", &domain.AdapterError{Provider: a.name, Cause: fmt.Errorf("stream error: %s", providerErrorMessage([]byte(data)))})
				return
			}
			for _, choice := range chunk.Choices {
				if choice.FinishReason != nil && *choice.FinishReason != "" {
					finished = true
				}
				if choice.Delta == nil || choice.Delta.Content == "" {
					continue
				}
				if !yield(choice.Delta.Content, nil) {
					return
				}
			}
		}
	}), nil
}
