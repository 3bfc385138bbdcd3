package service

import (
	"context"
	"fmt"

	"github.com/spaceboy202105/chatbot-test/internal/domain"
)

// CreateConversation creates an empty conversation.
func (s *Service) CreateConversation(ctx context.Context, req domain.CreateConversationRequest) (*domain.Conversation, error) {
	if req.Model != "" {
		if _, err := s.registry.Resolve(req.Model); err != nil {
			return nil, err
		}
	}
	prompt := req.SystemPrompt
	if prompt == "" {
		prompt = s.config.DefaultSystemPrompt
	}

	now := s.clock.Now()
	conv := &domain.Conversation{
		ID:           newConversationID(),
		Title:        req.Title,
		SystemPrompt: prompt,
		Model:        req.Model,
		Messages:     []domain.Message{},
		CreatedAt:    now,
		UpdatedAt:    now,
		Metadata:     req.Metadata,
	}
	if err := s.store.CreateConversation(ctx, conv); err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	s.logger.Info("conversation created", "conversation_id", conv.ID, "model", conv.Model)
	return conv.Clone(), nil
}

// GetConversation returns the conversation with its messages.
func (s *Service) GetConversation(ctx context.Context, id string) (*domain.Conversation, error) {
	return s.store.GetConversation(ctx, id)
}

// ListConversations returns a page of summaries, most recently updated first.
func (s *Service) ListConversations(ctx context.Context, limit, offset int) ([]domain.ConversationSummary, error) {
	if limit < 0 || offset < 0 {
		return nil, fmt.Errorf("%w: limit and offset must not be negative", domain.ErrInvalidRequest)
	}
	return s.store.ListConversations(ctx, limit, offset)
}

// UpdateConversation applies patch. A non-empty model binding must resolve.
func (s *Service) UpdateConversation(ctx context.Context, id string, patch domain.ConversationPatch) (*domain.Conversation, error) {
	if patch.Model != nil && *patch.Model != "" {
		if _, err := s.registry.Resolve(*patch.Model); err != nil {
			return nil, err
		}
	}

	unlock, err := s.locks.Lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return s.store.UpdateConversation(ctx, id, patch, s.clock.Now())
}

// DeleteConversation removes the conversation and its messages.
func (s *Service) DeleteConversation(ctx context.Context, id string) error {
	unlock, err := s.locks.Lock(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()
	if err := s.store.DeleteConversation(ctx, id); err != nil {
		return err
	}
	s.logger.Info("conversation deleted", "conversation_id", id)
	return nil
}
