package llm

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaceboy202105/chatbot-test/internal/domain"
)

func newTestOpenAI(url string) *OpenAIAdapter {
	return NewOpenAIAdapter(ProviderOptions{
		BaseURL:      url,
		APIKey:       "sk-test",
		DefaultModel: "gpt-3.5-turbo",
		Defaults:     domain.GenerationParams{Temperature: ptr(0.7), MaxTokens: ptr(512)},
		Timeout:      5 * time.Second,
	})
}

func TestOpenAIGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var body chatCompletionRequest
		decodeBody(t, r, &body)
		assert.Equal(t, "gpt-4", body.Model)
		assert.False(t, body.Stream)
		require.Len(t, body.Messages, 4)
		assert.Equal(t, chatMessage{Role: "system", Content: "Be brief."}, body.Messages[0])
		assert.Equal(t, chatMessage{Role: "assistant", Content: "Hello!"}, body.Messages[2])
		assert.Equal(t, chatMessage{Role: "user", Content: "What is Go?"}, body.Messages[3])
		assert.Equal(t, 0.2, *body.Temperature)
		assert.Equal(t, 512, *body.MaxTokens)

		w.Write([]byte(`{"id":"c1","choices":[{"index":0,"message":{"role":"assistant","content":"A language."},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	req := testRequest()
	req.Model = "gpt-4"
	req.Params.Temperature = ptr(0.2)

	text, err := newTestOpenAI(server.URL).Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "A language.", text)
}

func TestOpenAIGenerateUsesDefaultModelAndNoSystemMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body chatCompletionRequest
		decodeBody(t, r, &body)
		assert.Equal(t, "gpt-3.5-turbo", body.Model)
		require.Len(t, body.Messages, 1)
		assert.Equal(t, "user", body.Messages[0].Role)
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`))
	}))
	defer server.Close()

	text, err := newTestOpenAI(server.URL).Generate(context.Background(), &domain.NormalizedRequest{CurrentMessage: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
}

func TestOpenAIGenerateErrors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
		malformed  bool
		contains   string
	}{
		{name: "provider error", status: 500, body: `{"error":{"message":"overloaded","type":"server_error"}}`, wantStatus: 500, contains: "overloaded"},
		{name: "plain error body", status: 401, body: `unauthorized`, wantStatus: 401, contains: "unauthorized"},
		{name: "invalid json", status: 200, body: `not json`, malformed: true},
		{name: "no choices", status: 200, body: `{"choices":[]}`, malformed: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := newTestOpenAI(server.URL).Generate(context.Background(), testRequest())
			require.Error(t, err)

			var ae *domain.AdapterError
			require.True(t, errors.As(err, &ae))
			assert.Equal(t, "openai", ae.Provider)
			assert.Equal(t, tt.wantStatus, ae.StatusCode)
			assert.Equal(t, tt.malformed, errors.Is(err, domain.ErrMalformedPayload))
			if tt.contains != "" {
				assert.Contains(t, err.Error(), tt.contains)
			}
		})
	}
}

func TestOpenAIGenerateTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := newTestOpenAI(url).Generate(context.Background(), testRequest())
	assert.True(t, domain.IsAdapterError(err))
}

func TestOpenAIGenerateStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body chatCompletionRequest
		decodeBody(t, r, &body)
		assert.True(t, body.Stream)

		w.Header().Set("Content-Type", "text/event-stream")
		writeSSE(t, w, `{"choices":[{"delta":{"role":"assistant","content":""}}]}`)
		writeSSE(t, w, `{"choices":[{"delta":{"content":"Hello"}}]}`)
		writeSSE(t, w, `{"choices":[{"delta":{"content":", "}}]}`)
		writeSSE(t, w, `{"choices":[{"delta":{"content":"world"}}]}`)
		writeSSE(t, w, `{"choices":[{"delta":{},"finish_reason":"stop"}]}`)
		writeSSE(t, w, `[DONE]`)
	}))
	defer server.Close()

	seq, err := newTestOpenAI(server.URL).GenerateStream(context.Background(), testRequest())
	require.NoError(t, err)

	fragments, err := collect(seq)
	require.NoError(t, err)
	assert.Equal(t, []string{"Hello", ", ", "world"}, fragments)

	_, err = collect(seq)
	assert.ErrorIs(t, err, domain.ErrStreamConsumed)
}

func TestOpenAIGenerateStreamFailures(t *testing.T) {
	t.Run("pre-stream status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":{"message":"slow down"}}`))
		}))
		defer server.Close()

		seq, err := newTestOpenAI(server.URL).GenerateStream(context.Background(), testRequest())
		assert.Nil(t, seq)
		var ae *domain.AdapterError
		require.True(t, errors.As(err, &ae))
		assert.Equal(t, http.StatusTooManyRequests, ae.StatusCode)
	})

	t.Run("connection closed mid-stream", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeSSE(t, w, `{"choices":[{"delta":{"content":"Hel"}}]}`)
		}))
		defer server.Close()

		seq, err := newTestOpenAI(server.URL).GenerateStream(context.Background(), testRequest())
		require.NoError(t, err)
		fragments, err := collect(seq)
		assert.Equal(t, []string{"Hel"}, fragments)
		assert.True(t, domain.IsAdapterError(err))
	})

	t.Run("malformed chunk", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeSSE(t, w, `{"choices":[{"delta":{"content":"a"}}]}`)
			writeSSE(t, w, `{broken`)
		}))
		defer server.Close()

		seq, err := newTestOpenAI(server.URL).GenerateStream(context.Background(), testRequest())
		require.NoError(t, err)
		fragments, err := collect(seq)
		assert.Equal(t, []string{"a"}, fragments)
		assert.ErrorIs(t, err, domain.ErrMalformedPayload)
	})

	t.Run("error chunk", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeSSE(t, w, `{"error":{"message":"context length exceeded"}}`)
		}))
		defer server.Close()

		seq, err := newTestOpenAI(server.URL).GenerateStream(context.Background(), testRequest())
		require.NoError(t, err)
		_, err = collect(seq)
		assert.ErrorContains(t, err, "context length exceeded")
	})
}

func TestOpenAIGenerateStreamStopsWhenConsumerBreaks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeSSE(t, w, `{"choices":[{"delta":{"content":"one"}}]}`)
		writeSSE(t, w, `{"choices":[{"delta":{"content":"two"}}]}`)
		writeSSE(t, w, `[DONE]`)
	}))
	defer server.Close()

	seq, err := newTestOpenAI(server.URL).GenerateStream(context.Background(), testRequest())
	require.NoError(t, err)

	var got []string
	for frag, err := range seq {
		require.NoError(t, err)
		got = append(got, frag)
		break
	}
	assert.Equal(t, []string{"one"}, got)
}

func TestOpenAIDescribe(t *testing.T) {
	info := NewOpenAIAdapter(ProviderOptions{Name: "deepseek", DefaultModel: "deepseek-chat", Defaults: domain.GenerationParams{TopP: ptr(0.9)}}).Describe()
	assert.Equal(t, "deepseek", info.Provider)
	assert.Equal(t, "deepseek-chat", info.Model)
	assert.Equal(t, 0.9, *info.Parameters.TopP)
}
