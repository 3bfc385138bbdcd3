package policy

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaceboy202105/chatbot-test/internal/domain"
)

func newTestEngine(t *testing.T, maxChars int) *Engine {
	t.Helper()
	engine, err := NewEngine(context.Background(), DefaultPolicy, maxChars)
	require.NoError(t, err)
	return engine
}

func TestDefaultPolicy(t *testing.T) {
	engine := newTestEngine(t, 10)
	ctx := context.Background()

	tests := []struct {
		name     string
		message  string
		decision string
		reason   string
	}{
		{name: "plain message", message: "hello", decision: DecisionAllow},
		{name: "exactly at limit", message: "0123456789", decision: DecisionAllow},
		{name: "multibyte counted as runes", message: "你好你好你好你好你好", decision: DecisionAllow},
		{name: "empty", message: "", decision: DecisionBlock, reason: "message must not be empty"},
		{name: "whitespace only", message: " \n\t ", decision: DecisionBlock, reason: "message must not be empty"},
		{name: "too long", message: strings.Repeat("a", 11), decision: DecisionBlock, reason: "message exceeds 10 characters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision, err := engine.Evaluate(ctx, Input{Message: tt.message, Model: "gpt-4"})
			require.NoError(t, err)
			assert.Equal(t, tt.decision, decision.Decision)
			if tt.reason != "" {
				assert.Equal(t, []string{tt.reason}, decision.Reasons)
			} else {
				assert.Empty(t, decision.Reasons)
			}
		})
	}
}

func TestCheckWrapsPolicyViolation(t *testing.T) {
	engine := newTestEngine(t, 5)

	err := engine.Check(context.Background(), Input{Message: "too long for this"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPolicyViolation)
	assert.Contains(t, err.Error(), "message exceeds 5 characters")

	assert.NoError(t, engine.Check(context.Background(), Input{Message: "ok"}))
}

func TestNilEngineAllows(t *testing.T) {
	var engine *Engine
	assert.NoError(t, engine.Check(context.Background(), Input{}))
}

func TestCustomPolicyFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.rego")
	custom := `
package chat_policy

default decision = "allow"

decision = "block" {
	input.model == "gpt-4"
	input.new_conversation
}

result = {"decision": decision, "reasons": ["gpt-4 needs an existing conversation"]}
`
	require.NoError(t, os.WriteFile(path, []byte(custom), 0o600))

	engine, err := Load(context.Background(), path, 100)
	require.NoError(t, err)

	err = engine.Check(context.Background(), Input{Message: "hi", Model: "gpt-4", NewConversation: true})
	assert.ErrorIs(t, err, domain.ErrPolicyViolation)

	err = engine.Check(context.Background(), Input{Message: "hi", Model: "gpt-4", ConversationID: "c1"})
	assert.NoError(t, err)
}

func TestPolicyWithoutResultAllows(t *testing.T) {
	engine, err := NewEngine(context.Background(), "package chat_policy\n\nother = true\n", 100)
	require.NoError(t, err)

	decision, err := engine.Evaluate(context.Background(), Input{Message: ""})
	require.NoError(t, err)
	assert.True(t, decision.Allowed())
}

func TestInvalidPolicy(t *testing.T) {
	_, err := NewEngine(context.Background(), "package chat_policy\n\nresult = {", 100)
	assert.Error(t, err)

	_, err = Load(context.Background(), filepath.Join(t.TempDir(), "missing.rego"), 100)
	assert.Error(t, err)
}
