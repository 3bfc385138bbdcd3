// Package repository provides the conversation store and its backends.
package repository

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spaceboy202105/chatbot-test/internal/config"
	"github.com/spaceboy202105/chatbot-test/internal/domain"
)

// ConversationStore owns the collection of conversations. Every method
// returns copies; mutating a returned value never changes stored state.
type ConversationStore interface {
	// CreateConversation stores a new conversation with its id already set.
	CreateConversation(ctx context.Context, conv *domain.Conversation) error
	// GetConversation returns the conversation with its messages or domain.ErrNotFound.
	GetConversation(ctx context.Context, id string) (*domain.Conversation, error)
	// ListConversations returns summaries ordered by UpdatedAt descending.
	// Paging past the end yields an empty slice.
	ListConversations(ctx context.Context, limit, offset int) ([]domain.ConversationSummary, error)
	// UpdateConversation applies the present fields of patch and sets UpdatedAt.
	UpdateConversation(ctx context.Context, id string, patch domain.ConversationPatch, updatedAt time.Time) (*domain.Conversation, error)
	// AppendMessage appends msg and sets UpdatedAt to msg.CreatedAt.
	AppendMessage(ctx context.Context, id string, msg domain.Message) error
	// DeleteConversation removes the conversation and its messages.
	DeleteConversation(ctx context.Context, id string) error
	// Close releases the backend.
	Close() error
}

// Open builds the store selected by STORE_BACKEND.
func Open(ctx context.Context, cfg *config.Config) (ConversationStore, error) {
	switch cfg.StoreBackend {
	case config.StoreMemory, "":
		return NewMemoryStore(), nil
	case config.StoreSQLite:
		store, err := NewSQLiteStore(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.StorePostgres:
		store, err := OpenPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// sortSummaries orders by UpdatedAt descending, then id, and applies paging.
func sortSummaries(items []domain.ConversationSummary, limit, offset int) []domain.ConversationSummary {
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].UpdatedAt.Equal(items[j].UpdatedAt) {
			return items[i].UpdatedAt.After(items[j].UpdatedAt)
		}
		return items[i].ID < items[j].ID
	})
	return page(items, limit, offset)
}

func page[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	end := len(items)
	if limit >= 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}
