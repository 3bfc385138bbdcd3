package llm

import (
	"context"
	"errors"

	"github.com/spaceboy202105/chatbot-test/internal/domain"
)

// QwenAdapter talks to the DashScope text-generation API, which this gateway
// uses in blocking mode only. Streaming runs the blocking call on a worker
// goroutine and yields the whole reply as a single fragment.
type QwenAdapter struct {
	providerBase
}

// NewQwenAdapter creates a Qwen adapter.
func NewQwenAdapter(opts ProviderOptions) *QwenAdapter {
	if opts.Name == "" {
		opts.Name = "qwen"
	}
	return &QwenAdapter{providerBase: newProviderBase(opts)}
}

type qwenRequest struct {
	Model      string         `json:"model"`
	Input      qwenInput      `json:"input"`
	Parameters qwenParameters `json:"parameters"`
}

type qwenInput struct {
	Messages []chatMessage `json:"messages"`
}

type qwenParameters struct {
	ResultFormat string   `json:"result_format"`
	Temperature  *float64 `json:"temperature,omitempty"`
	TopP         *float64 `json:"top_p,omitempty"`
	TopK         *int     `json:"top_k,omitempty"`
	MaxTokens    *int     `json:"max_tokens,omitempty"`
}

type qwenResponse struct {
	RequestID string `json:"request_id"`
	Output    *struct {
		Text    string       `json:"text,omitempty"`
		Choices []chatChoice `json:"choices,omitempty"`
	} `json:"output"`
}

func (a *QwenAdapter) buildRequest(req *domain.NormalizedRequest) *qwenRequest {
	params := a.params(req)
	messages := make([]chatMessage, 0, len(req.History)+2)
	if req.SystemPrompt != "" {
		messages = append(messages, chatMessage{Role: string(domain.RoleSystem), Content: req.SystemPrompt})
	}
	for _, turn := range req.History {
		messages = append(messages, chatMessage{Role: string(turn.Role), Content: turn.Content})
	}
	messages = append(messages, chatMessage{Role: string(domain.RoleUser), Content: req.CurrentMessage})

	return &qwenRequest{
		Model: a.model(req),
		Input: qwenInput{Messages: messages},
		Parameters: qwenParameters{
			ResultFormat: "message",
			Temperature:  params.Temperature,
			TopP:         params.TopP,
			TopK:         params.TopK,
			MaxTokens:    params.MaxTokens,
		},
	}
}

// Generate sends a blocking text-generation request.
func (a *QwenAdapter) Generate(ctx context.Context, req *domain.NormalizedRequest) (string, error) {
	headers := map[string]string{"Authorization": "Bearer " + a.apiKey}
	resp, err := postJSON(ctx, a.httpClient, a.name, a.baseURL+"/services/aigc/text-generation/generation", headers, a.buildRequest(req))
	if err != nil {
		return "", err
	}
	defer closeBody(resp.Body)

	var result qwenResponse
	if err := decodeJSON(a.name, resp.Body, &result); err != nil {
		return "", err
	}
	if result.Output == nil {
		return "", domain.NewMalformedError(a.name, errors.New("response has no output"))
	}
	if len(result.Output.Choices) > 0 && result.Output.Choices[0].Message != nil {
		return result.Output.Choices[0].Message.Content, nil
	}
	if result.Output.Text != "" {
		return result.Output.Text, nil
	}
	return "", domain.NewMalformedError(a.name, errors.New("response output has no text"))
}

// GenerateStream exposes Generate as a one-fragment stream.
func (a *QwenAdapter) GenerateStream(ctx context.Context, req *domain.NormalizedRequest) (FragmentSeq, error) {
	return streamBlocking(ctx, func(ctx context.Context) (string, error) {
		return a.Generate(ctx, req)
	}), nil
}
