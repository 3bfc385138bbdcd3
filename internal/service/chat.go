package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spaceboy202105/chatbot-test/internal/adapter/llm"
	"github.com/spaceboy202105/chatbot-test/internal/domain"
	"github.com/spaceboy202105/chatbot-test/internal/logging"
	"github.com/spaceboy202105/chatbot-test/internal/metrics"
	"github.com/spaceboy202105/chatbot-test/internal/policy"
)

const (
	titleMaxRunes = 30
	titleEllipsis = "..."
)

// FragmentHandler receives each fragment as soon as the adapter yields it.
// Returning an error abandons the stream.
type FragmentHandler func(fragment string) error

// turn is a chat cycle after the user message has been appended.
type turn struct {
	conv     *domain.Conversation
	model    string
	provider string
	adapter  llm.ModelAdapter
	request  *domain.NormalizedRequest
	logger   *slog.Logger
	unlock   func()
}

// Chat runs one blocking cycle and returns the committed assistant message.
func (s *Service) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResult, error) {
	t, err := s.beginTurn(ctx, req)
	if err != nil {
		return nil, err
	}
	defer t.unlock()

	start := time.Now()
	content, err := t.adapter.Generate(ctx, t.request)
	if err != nil {
		s.metrics.ObserveAdapter(t.provider, t.model, string(domain.ModeBlocking), metrics.OutcomeError, time.Since(start))
		t.logger.Error("generation failed", "error", err)
		return nil, fmt.Errorf("failed to generate response: %w", err)
	}
	s.metrics.ObserveAdapter(t.provider, t.model, string(domain.ModeBlocking), metrics.OutcomeSuccess, time.Since(start))

	return s.commit(ctx, t, content, false)
}

// ChatStream runs one streaming cycle, forwarding fragments to handler as
// they arrive. When the caller abandons the stream, the text forwarded so
// far is committed and the error wraps domain.ErrStreamAborted; the result
// is then flagged Partial.
func (s *Service) ChatStream(ctx context.Context, req domain.ChatRequest, handler FragmentHandler) (*domain.ChatResult, error) {
	if handler == nil {
		handler = func(string) error { return nil }
	}

	t, err := s.beginTurn(ctx, req)
	if err != nil {
		return nil, err
	}
	defer t.unlock()

	mode := string(domain.ModeStreaming)
	start := time.Now()
	seq, err := t.adapter.GenerateStream(ctx, t.request)
	if err != nil {
		s.metrics.ObserveAdapter(t.provider, t.model, mode, metrics.OutcomeError, time.Since(start))
		t.logger.Error("stream failed to start", "error", err)
		return nil, fmt.Errorf("failed to start stream: %w", err)
	}

	done := s.metrics.StreamStarted()
	defer done()

	var (
		text      strings.Builder
		streamErr error
		abortErr  error
	)
	for fragment, ferr := range seq {
		if ferr != nil {
			streamErr = ferr
			break
		}
		if ctx.Err() != nil {
			abortErr = ctx.Err()
			break
		}
		if fragment == "" {
			continue
		}
		if herr := handler(fragment); herr != nil {
			abortErr = herr
			break
		}
		text.WriteString(fragment)
		s.metrics.AddFragment(t.provider)
	}
	// A failure caused by the caller going away is an abort, not a provider fault.
	if streamErr != nil && ctx.Err() != nil {
		abortErr = ctx.Err()
		streamErr = nil
	}

	switch {
	case abortErr != nil:
		s.metrics.ObserveAdapter(t.provider, t.model, mode, metrics.OutcomePartial, time.Since(start))
		t.logger.Warn("stream abandoned by caller", "error", abortErr, "committed_chars", text.Len())
		abort := fmt.Errorf("%w: %v", domain.ErrStreamAborted, abortErr)
		if text.Len() == 0 {
			return &domain.ChatResult{
				ConversationID: t.conv.ID,
				Model:          t.model,
				Provider:       t.provider,
				Partial:        true,
			}, abort
		}
		result, err := s.commit(context.WithoutCancel(ctx), t, text.String(), true)
		if err != nil {
			return nil, errors.Join(abort, err)
		}
		return result, abort
	case streamErr != nil:
		s.metrics.ObserveAdapter(t.provider, t.model, mode, metrics.OutcomeError, time.Since(start))
		t.logger.Error("stream failed", "error", streamErr, "discarded_chars", text.Len())
		return nil, fmt.Errorf("failed to stream response: %w", streamErr)
	}

	s.metrics.ObserveAdapter(t.provider, t.model, mode, metrics.OutcomeSuccess, time.Since(start))
	return s.commit(ctx, t, text.String(), false)
}

// beginTurn runs every routing check, then creates or loads the
// conversation and appends the user message. No state changes when a
// check fails. On success the caller owns t.unlock.
func (s *Service) beginTurn(ctx context.Context, req domain.ChatRequest) (*turn, error) {
	if req.Message == "" {
		return nil, fmt.Errorf("%w: message is required", domain.ErrInvalidRequest)
	}

	var (
		conv   *domain.Conversation
		unlock = func() {}
	)
	if req.ConversationID != "" {
		release, err := s.locks.Lock(ctx, req.ConversationID)
		if err != nil {
			return nil, err
		}
		unlock = release
		conv, err = s.store.GetConversation(ctx, req.ConversationID)
		if err != nil {
			unlock()
			return nil, err
		}
	}

	t, err := s.route(ctx, req, conv)
	if err != nil {
		unlock()
		return nil, err
	}
	t.unlock = unlock

	if conv == nil {
		id := newConversationID()
		release, err := s.locks.Lock(ctx, id)
		if err != nil {
			return nil, err
		}
		t.unlock = release
		conv, err = s.newConversation(ctx, id, req, t.model)
		if err != nil {
			t.unlock()
			return nil, err
		}
	}
	t.conv = conv
	t.logger = t.logger.With("conversation_id", conv.ID)

	userMsg := domain.Message{Role: domain.RoleUser, Content: req.Message, CreatedAt: s.clock.Now()}
	if err := s.store.AppendMessage(ctx, conv.ID, userMsg); err != nil {
		t.unlock()
		return nil, fmt.Errorf("failed to append user message: %w", err)
	}

	t.request = &domain.NormalizedRequest{
		Model:          t.model,
		CurrentMessage: req.Message,
		History:        history(conv.Messages),
		SystemPrompt:   s.systemPrompt(conv, req),
		Params:         req.GenerationParams,
	}
	conv.Messages = append(conv.Messages, userMsg)
	conv.UpdatedAt = userMsg.CreatedAt
	return t, nil
}

// route picks the model and adapter and applies the admission policy.
func (s *Service) route(ctx context.Context, req domain.ChatRequest, conv *domain.Conversation) (*turn, error) {
	model := req.Model
	if model == "" && conv != nil {
		model = conv.Model
	}
	if model == "" {
		model = s.config.DefaultModel
	}
	if model == "" {
		return nil, domain.ErrNoModelSpecified
	}

	adapter, err := s.registry.Resolve(model)
	if err != nil {
		return nil, err
	}

	in := policy.Input{
		Message:         req.Message,
		Model:           model,
		ConversationID:  req.ConversationID,
		NewConversation: conv == nil,
		MaxMessageChars: s.config.MaxMessageChars,
	}
	if err := s.policyEngine.Check(ctx, in); err != nil {
		if errors.Is(err, domain.ErrPolicyViolation) {
			s.metrics.ObservePolicy(policy.DecisionBlock)
		}
		return nil, err
	}
	if s.policyEngine != nil {
		s.metrics.ObservePolicy(policy.DecisionAllow)
	}

	provider := adapter.Describe().Provider
	return &turn{
		model:    model,
		provider: provider,
		adapter:  adapter,
		logger:   logging.FromContext(ctx, s.logger).With("model", model, "provider", provider),
	}, nil
}

func (s *Service) newConversation(ctx context.Context, id string, req domain.ChatRequest, model string) (*domain.Conversation, error) {
	prompt := req.SystemPrompt
	if prompt == "" {
		prompt = s.config.DefaultSystemPrompt
	}
	now := s.clock.Now()
	conv := &domain.Conversation{
		ID:           id,
		SystemPrompt: prompt,
		Model:        model,
		Messages:     []domain.Message{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateConversation(ctx, conv); err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	return conv, nil
}

// commit appends the assistant message, binds an unbound conversation to
// the model and derives the title after the first exchange.
func (s *Service) commit(ctx context.Context, t *turn, content string, partial bool) (*domain.ChatResult, error) {
	msg := domain.Message{Role: domain.RoleAssistant, Content: content, CreatedAt: s.clock.Now()}
	if err := s.store.AppendMessage(ctx, t.conv.ID, msg); err != nil {
		t.logger.Error("failed to commit assistant message", "error", err)
		return nil, fmt.Errorf("failed to append assistant message: %w", err)
	}
	t.conv.Messages = append(t.conv.Messages, msg)

	var patch domain.ConversationPatch
	if t.conv.Model == "" {
		patch.Model = &t.model
	}
	title := t.conv.Title
	if title == "" && len(t.conv.Messages) == 2 {
		title = deriveTitle(t.conv.Messages[0].Content)
		patch.Title = &title
	}
	if !patch.Empty() {
		if _, err := s.store.UpdateConversation(ctx, t.conv.ID, patch, msg.CreatedAt); err != nil {
			t.logger.Error("failed to update conversation", "error", err)
			return nil, fmt.Errorf("failed to update conversation: %w", err)
		}
	}

	return &domain.ChatResult{
		ConversationID: t.conv.ID,
		Message:        msg,
		Model:          t.model,
		Provider:       t.provider,
		Title:          title,
		Partial:        partial,
	}, nil
}

// systemPrompt prefers the conversation's prompt, then the request's, then
// the configured default.
func (s *Service) systemPrompt(conv *domain.Conversation, req domain.ChatRequest) string {
	if conv.SystemPrompt != "" {
		return conv.SystemPrompt
	}
	if req.SystemPrompt != "" {
		return req.SystemPrompt
	}
	return s.config.DefaultSystemPrompt
}

func history(messages []domain.Message) []domain.Turn {
	turns := make([]domain.Turn, 0, len(messages))
	for _, m := range messages {
		turns = append(turns, domain.Turn{Role: m.Role, Content: m.Content})
	}
	return turns
}

// deriveTitle returns the first titleMaxRunes runes of text, with an
// ellipsis when truncated.
func deriveTitle(text string) string {
	runes := []rune(text)
	if len(runes) <= titleMaxRunes {
		return text
	}
	return string(runes[:titleMaxRunes]) + titleEllipsis
}

func newConversationID() string {
	return "conv_" + uuid.New().String()
}
