package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/spaceboy202105/chatbot-test/internal/domain"
)

// MemoryStore implements ConversationStore in process memory.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]*domain.Conversation
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{conversations: make(map[string]*domain.Conversation)}
}

// CreateConversation stores a copy of conv.
func (s *MemoryStore) CreateConversation(ctx context.Context, conv *domain.Conversation) error {
	if conv == nil || conv.ID == "" {
		return fmt.Errorf("conversation id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.conversations[conv.ID]; exists {
		return fmt.Errorf("conversation already exists: %s", conv.ID)
	}
	s.conversations[conv.ID] = conv.Clone()
	return nil
}

// GetConversation returns a copy of the conversation.
func (s *MemoryStore) GetConversation(ctx context.Context, id string) (*domain.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.conversations[id]
	if !ok {
		return nil, fmt.Errorf("conversation %s: %w", id, domain.ErrNotFound)
	}
	return conv.Clone(), nil
}

// ListConversations returns summaries ordered by UpdatedAt descending.
func (s *MemoryStore) ListConversations(ctx context.Context, limit, offset int) ([]domain.ConversationSummary, error) {
	s.mu.RLock()
	items := make([]domain.ConversationSummary, 0, len(s.conversations))
	for _, conv := range s.conversations {
		items = append(items, conv.Summary())
	}
	s.mu.RUnlock()
	return sortSummaries(items, limit, offset), nil
}

// UpdateConversation applies patch and refreshes UpdatedAt.
func (s *MemoryStore) UpdateConversation(ctx context.Context, id string, patch domain.ConversationPatch, updatedAt time.Time) (*domain.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[id]
	if !ok {
		return nil, fmt.Errorf("conversation %s: %w", id, domain.ErrNotFound)
	}
	patch.Apply(conv)
	conv.UpdatedAt = updatedAt
	return conv.Clone(), nil
}

// AppendMessage appends msg to the conversation.
func (s *MemoryStore) AppendMessage(ctx context.Context, id string, msg domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[id]
	if !ok {
		return fmt.Errorf("conversation %s: %w", id, domain.ErrNotFound)
	}
	conv.Messages = append(conv.Messages, msg)
	conv.UpdatedAt = msg.CreatedAt
	return nil
}

// DeleteConversation removes the conversation.
func (s *MemoryStore) DeleteConversation(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conversations[id]; !ok {
		return fmt.Errorf("conversation %s: %w", id, domain.ErrNotFound)
	}
	delete(s.conversations, id)
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}
