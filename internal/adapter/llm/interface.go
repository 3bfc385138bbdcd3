// Package llm provides the provider adapters behind a single chat contract.
package llm

import (
	"context"
	"iter"

	"github.com/spaceboy202105/chatbot-test/internal/domain"
)

// FragmentSeq is a finite, single-use sequence of generated text fragments.
// A mid-stream failure is yielded once as ("", err) and ends the sequence.
type FragmentSeq = iter.Seq2[string, error]

// ModelAdapter defines the operations every provider adapter supports.
type ModelAdapter interface {
	// Generate performs one full request/response cycle.
	Generate(ctx context.Context, req *domain.NormalizedRequest) (string, error)

	// GenerateStream opens a streaming generation. Failures before the first
	// fragment are returned directly. The sequence must be iterated to release
	// the underlying connection.
	GenerateStream(ctx context.Context, req *domain.NormalizedRequest) (FragmentSeq, error)

	// Describe reports the provider name and active parameters. It does no I/O.
	Describe() domain.AdapterInfo
}

// Ensure adapters implement ModelAdapter interface.
var (
	_ ModelAdapter = (*OpenAIAdapter)(nil)
	_ ModelAdapter = (*AnthropicAdapter)(nil)
	_ ModelAdapter = (*GeminiAdapter)(nil)
	_ ModelAdapter = (*QwenAdapter)(nil)
	_ ModelAdapter = (*MockAdapter)(nil)
)
