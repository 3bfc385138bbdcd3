// Package policy evaluates the chat admission policy with OPA.
package policy

import (
	"context"
	"fmt"
	"os"
	"sort"
	"unicode/utf8"

	"github.com/open-policy-agent/opa/rego"

	"github.com/spaceboy202105/chatbot-test/internal/domain"
)

// Decisions returned by the policy.
const (
	DecisionAllow = "allow"
	DecisionBlock = "block"
)

// Input is the document the policy sees as `input`.
type Input struct {
	Message         string
	Model           string
	ConversationID  string
	NewConversation bool
	MaxMessageChars int
}

func (in Input) document() map[string]interface{} {
	return map[string]interface{}{
		"message":           in.Message,
		"message_chars":     utf8.RuneCountInString(in.Message),
		"model":             in.Model,
		"conversation_id":   in.ConversationID,
		"new_conversation":  in.NewConversation,
		"max_message_chars": in.MaxMessageChars,
	}
}

// Decision is the evaluated outcome.
type Decision struct {
	Decision string
	Reasons  []string
}

// Allowed reports whether the message may proceed.
func (d Decision) Allowed() bool {
	return d.Decision != DecisionBlock
}

// Engine is the OPA policy engine.
type Engine struct {
	query    rego.PreparedEvalQuery
	maxChars int
}

// NewEngine creates a new policy engine with the given policy content.
func NewEngine(ctx context.Context, policyContent string, maxChars int) (*Engine, error) {
	r := rego.New(
		rego.Query("data.chat_policy.result"),
		rego.Module("chat_policy.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query, maxChars: maxChars}, nil
}

// Load builds the engine from path, or from DefaultPolicy when path is empty.
func Load(ctx context.Context, path string, maxChars int) (*Engine, error) {
	content := DefaultPolicy
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read policy: %w", err)
		}
		content = string(data)
	}
	return NewEngine(ctx, content, maxChars)
}

// Evaluate runs the policy against in.
func (e *Engine) Evaluate(ctx context.Context, in Input) (Decision, error) {
	if in.MaxMessageChars == 0 {
		in.MaxMessageChars = e.maxChars
	}
	results, err := e.query.Eval(ctx, rego.EvalInput(in.document()))
	if err != nil {
		return Decision{}, fmt.Errorf("failed to evaluate policy: %w", err)
	}

	// A policy without a result rule allows everything.
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return Decision{Decision: DecisionAllow}, nil
	}

	obj, ok := results[0].Expressions[0].Value.(map[string]interface{})
	if !ok {
		return Decision{}, fmt.Errorf("unexpected policy result type %T", results[0].Expressions[0].Value)
	}
	decision := Decision{Decision: DecisionAllow}
	if s, ok := obj["decision"].(string); ok && s != "" {
		decision.Decision = s
	}
	if reasons, ok := obj["reasons"].([]interface{}); ok {
		for _, r := range reasons {
			if s, ok := r.(string); ok {
				decision.Reasons = append(decision.Reasons, s)
			}
		}
		sort.Strings(decision.Reasons)
	}
	return decision, nil
}

// Check evaluates in and returns domain.ErrPolicyViolation when blocked.
// A nil engine allows everything.
func (e *Engine) Check(ctx context.Context, in Input) error {
	if e == nil {
		return nil
	}
	decision, err := e.Evaluate(ctx, in)
	if err != nil {
		return err
	}
	if decision.Allowed() {
		return nil
	}
	reason := "blocked"
	if len(decision.Reasons) > 0 {
		reason = decision.Reasons[0]
	}
	return fmt.Errorf("%w: %s", domain.ErrPolicyViolation, reason)
}

// DefaultPolicy is the default policy content.
const DefaultPolicy = `
package chat_policy

default decision = "allow"

deny["message must not be empty"] {
	count(trim_space(input.message)) == 0
}

deny[msg] {
	input.max_message_chars > 0
	input.message_chars > input.max_message_chars
	msg := sprintf("message exceeds %d characters", [input.max_message_chars])
}

decision = "block" {
	count(deny) > 0
}

result = {"decision": decision, "reasons": [r | deny[r]]}
`
