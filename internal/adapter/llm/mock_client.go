package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/spaceboy202105/chatbot-test/internal/domain"
)

// MockAdapter is a ModelAdapter that echoes the user's message. It is used in
// MOCK mode and in tests.
type MockAdapter struct {
	name       string
	chunkSize  int
	chunkDelay time.Duration
}

// NewMockAdapter creates a mock adapter. chunkDelay is slept between streamed fragments.
func NewMockAdapter(name string, chunkDelay time.Duration) *MockAdapter {
	if name == "" {
		name = "mock"
	}
	return &MockAdapter{name: name, chunkSize: 10, chunkDelay: chunkDelay}
}

// Generate returns a mock response.
func (m *MockAdapter) Generate(ctx context.Context, req *domain.NormalizedRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return m.generateMockResponse(req), nil
}

// GenerateStream simulates a streaming response.
func (m *MockAdapter) GenerateStream(ctx context.Context, req *domain.NormalizedRequest) (FragmentSeq, error) {
	chunks := m.splitIntoChunks(m.generateMockResponse(req), m.chunkSize)

	return newFragmentSeq(func(yield func(string, error) bool) {
		for i, chunk := range chunks {
			if i > 0 && m.chunkDelay > 0 {
				select {
				case <-ctx.Done():
					yield("", ctx.Err())
					return
				case <-time.After(m.chunkDelay):
				}
			}
			if err := ctx.Err(); err != nil {
				yield("", err)
				return
			}
			if !yield(chunk, nil) {
				return
			}
		}
	}), nil
}

// Describe reports the mock provider.
func (m *MockAdapter) Describe() domain.AdapterInfo {
	return domain.AdapterInfo{Provider: m.name, Model: "mock"}
}

// generateMockResponse generates a mock response based on the request.
func (m *MockAdapter) generateMockResponse(req *domain.NormalizedRequest) string {
	if req.CurrentMessage == "" {
		return "[MOCK] This is a mock response."
	}
	return fmt.Sprintf("[MOCK] Received your message: %q. This is a mock response.", truncate(req.CurrentMessage, 100))
}

// splitIntoChunks splits a string into chunks of at most chunkSize runes.
func (m *MockAdapter) splitIntoChunks(s string, chunkSize int) []string {
	runes := []rune(s)
	var chunks []string
	for i := 0; i < len(runes); i += chunkSize {
		end := min(i+chunkSize, len(runes))
		chunks = append(chunks, string(runes[i:end]))
	}
	return chunks
}

// truncate truncates a string to the given number of runes.
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
