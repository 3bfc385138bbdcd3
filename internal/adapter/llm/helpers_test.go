package llm

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spaceboy202105/chatbot-test/internal/domain"
)

// collect drains seq and returns the fragments and the first error.
func collect(seq FragmentSeq) ([]string, error) {
	var out []string
	for frag, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, frag)
	}
	return out, nil
}

// writeSSE writes one data event and flushes.
func writeSSE(t *testing.T, w http.ResponseWriter, data string) {
	t.Helper()
	_, err := fmt.Fprintf(w, "data: %s\n\n", data)
	require.NoError(t, err)
	w.(http.Flusher).Flush()
}

func decodeBody(t *testing.T, r *http.Request, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(r.Body).Decode(v))
}

func testRequest() *domain.NormalizedRequest {
	return &domain.NormalizedRequest{
		CurrentMessage: "What is Go?",
		History: []domain.Turn{
			{Role: domain.RoleUser, Content: "Hi"},
			{Role: domain.RoleAssistant, Content: "Hello!"},
		},
		SystemPrompt: "Be brief.",
	}
}

func ptr[T any](v T) *T { return &v }
