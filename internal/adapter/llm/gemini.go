package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/spaceboy202105/chatbot-test/internal/domain"
)

// GeminiAdapter talks to the Gemini generateContent API. The system prompt
// is synthesized as a leading user turn and assistant turns use the "model"
// role.
type GeminiAdapter struct {
	providerBase
}

// NewGeminiAdapter creates a Gemini adapter.
func NewGeminiAdapter(opts ProviderOptions) *GeminiAdapter {
	if opts.Name == "" {
		opts.Name = "google"
	}
	return &GeminiAdapter{providerBase: newProviderBase(opts)}
}

type geminiRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	TopP            *float64 `json:"topP,omitempty"`
	TopK            *int     `json:"topK,omitempty"`
	MaxOutputTokens *int     `json:"maxOutputTokens,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason,omitempty"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason,omitempty"`
	} `json:"promptFeedback,omitempty"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

// text concatenates the parts of the first candidate.
func (r *geminiResponse) text() (string, bool) {
	if len(r.Candidates) == 0 {
		return "", false
	}
	var sb strings.Builder
	for _, p := range r.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String(), true
}

func geminiRole(role domain.Role) string {
	if role == domain.RoleAssistant {
		return "model"
	}
	return "user"
}

func (a *GeminiAdapter) buildRequest(req *domain.NormalizedRequest) *geminiRequest {
	params := a.params(req)
	contents := make([]geminiContent, 0, len(req.History)+2)
	if req.SystemPrompt != "" {
		contents = append(contents, geminiContent{
			Role:  "user",
			Parts: []geminiPart{{Text: "System: " + req.SystemPrompt}},
		})
	}
	for _, turn := range req.History {
		text := turn.Content
		if turn.Role == domain.RoleSystem {
			text = "System: " + text
		}
		contents = append(contents, geminiContent{Role: geminiRole(turn.Role), Parts: []geminiPart{{Text: text}}})
	}
	contents = append(contents, geminiContent{Role: "user", Parts: []geminiPart{{Text: req.CurrentMessage}}})

	return &geminiRequest{
		Contents: contents,
		GenerationConfig: &geminiGenerationConfig{
			Temperature:     params.Temperature,
			TopP:            params.TopP,
			TopK:            params.TopK,
			MaxOutputTokens: params.MaxTokens,
		},
	}
}

func (a *GeminiAdapter) endpoint(req *domain.NormalizedRequest, method string) string {
	return fmt.Sprintf("%s/models/%s:%s", a.baseURL, url.PathEscape(a.model(req)), method)
}

func (a *GeminiAdapter) headers() map[string]string {
	return map[string]string{"x-goog-api-key": a.apiKey}
}

// checkResponse turns an error or blocked reply into an AdapterError.
func (a *GeminiAdapter) checkResponse(r *geminiResponse) error {
	if r.Error != nil {
		return &domain.AdapterError{Provider: a.name, StatusCode: r.Error.Code, Cause: fmt.Errorf("%s (status: %s)", r.Error.Message, r.Error.Status)}
	}
	if len(r.Candidates) == 0 && r.PromptFeedback != nil && r.PromptFeedback.BlockReason != "" {
		return &domain.AdapterError{Provider: a.name, Cause: fmt.Errorf("prompt blocked: %s", r.PromptFeedback.BlockReason)}
	}
	return nil
}

// Generate sends a generateContent request.
func (a *GeminiAdapter) Generate(ctx context.Context, req *domain.NormalizedRequest) (string, error) {
	resp, err := postJSON(ctx, a.httpClient, a.name, a.endpoint(req, "generateContent"), a.headers(), a.buildRequest(req))
	if err != nil {
		return "", err
	}
	defer closeBody(resp.Body)

	var result geminiResponse
	if err := decodeJSON(a.name, resp.Body, &result); err != nil {
		return "", err
	}
	if err := a.checkResponse(&result); err != nil {
		return "", err
	}
	text, ok := result.text()
	if !ok {
		return "", domain.NewMalformedError(a.name, errors.New("response has no candidates"))
	}
	return text, nil
}

// GenerateStream sends a streamGenerateContent request over SSE.
func (a *GeminiAdapter) GenerateStream(ctx context.Context, req *domain.NormalizedRequest) (FragmentSeq, error) {
	headers := a.headers()
	headers["Accept"] = "text/event-stream"
	resp, err := postJSON(ctx, a.httpClient, a.name, a.endpoint(req, "streamGenerateContent")+"?alt=sse", headers, a.buildRequest(req))
	if err != nil {
		return nil, err
	}

	return newFragmentSeq(func(yield func(string, error) bool) {
		defer closeBody(resp.Body)
		scanner := newSSEScanner(resp.Body)
		finished := false

		for {
			data, err := scanner.Next()
			if errors.Is(err, io.EOF) || errors.Is(err, errStreamDone) {
				if !finished {
					yield("", &domain.AdapterError{Provider: a.name, Cause: io.ErrUnexpectedEOF})
				}
				return
			}
			if err != nil {
				yield("", &domain.AdapterError{Provider: a.name, Cause: err})
				return
			}

			var chunk geminiResponse
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				yield("", domain.NewMalformedError(a.name, err))
				return
			}
			if err := a.checkResponse(&chunk); err != nil {
				yield("", err)
				return
			}
			if len(chunk.Candidates) > 0 && chunk.Candidates[0].FinishReason != "" {
				finished = true
			}
			text, _ := chunk.text()
			if text == "" {
				continue
			}
			if !yield(text, nil) {
				return
			}
		}
	}), nil
}
