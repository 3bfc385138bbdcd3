package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/spaceboy202105/chatbot-test/internal/domain"
)

// Health statuses.
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
)

// ListModels returns the catalog in registration order.
func (s *Service) ListModels() []domain.ModelInfo {
	return s.registry.ListModels()
}

// ListModelsByProvider returns the catalog entries of one provider.
func (s *Service) ListModelsByProvider(provider string) []domain.ModelInfo {
	return s.registry.ListByProvider(provider)
}

// GetModel returns one catalog entry, or domain.ErrNotFound.
func (s *Service) GetModel(id string) (domain.ModelInfo, error) {
	info, err := s.registry.GetModel(id)
	if errors.Is(err, domain.ErrUnsupportedModel) {
		return domain.ModelInfo{}, fmt.Errorf("model %s: %w", id, domain.ErrNotFound)
	}
	return info, err
}

// DefaultSystemPrompt returns the configured default system prompt.
func (s *Service) DefaultSystemPrompt() string {
	return s.config.DefaultSystemPrompt
}

// Health reports the store status and each adapter's description.
func (s *Service) Health(ctx context.Context) domain.HealthResponse {
	status := StatusOK
	if _, err := s.store.ListConversations(ctx, 1, 0); err != nil {
		s.logger.Warn("health check: store unavailable", "error", err)
		status = StatusDegraded
	}
	return domain.HealthResponse{
		Status:   status,
		Version:  Version,
		Adapters: s.registry.Describe(),
	}
}
