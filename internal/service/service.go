// Package service implements the conversation orchestrator: it resolves
// conversations and adapters, invokes generation and commits the results.
package service

import (
	"log/slog"
	"sync"
	"time"

	"github.com/spaceboy202105/chatbot-test/internal/adapter/llm"
	"github.com/spaceboy202105/chatbot-test/internal/config"
	"github.com/spaceboy202105/chatbot-test/internal/metrics"
	"github.com/spaceboy202105/chatbot-test/internal/policy"
	"github.com/spaceboy202105/chatbot-test/internal/repository"
)

// Version is reported by the health endpoint. Overridden at link time.
var Version = "dev"

type Service struct {
	store        repository.ConversationStore
	registry     *llm.Registry
	policyEngine *policy.Engine
	metrics      *metrics.Collector
	config       *config.Config
	logger       *slog.Logger
	locks        *keyedMutex
	clock        *clock
}

// Option customizes a Service.
type Option func(*Service)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.clock = newClock(now)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(collector *metrics.Collector) Option {
	return func(s *Service) {
		s.metrics = collector
	}
}

func New(store repository.ConversationStore, registry *llm.Registry, cfg *config.Config, policyEngine *policy.Engine, opts ...Option) *Service {
	s := &Service{
		store:        store,
		registry:     registry,
		policyEngine: policyEngine,
		config:       cfg,
		logger:       slog.Default(),
		locks:        newKeyedMutex(),
		clock:        newClock(time.Now),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// clock hands out strictly increasing UTC timestamps at microsecond
// resolution, the finest every store backend keeps.
type clock struct {
	mu   sync.Mutex
	now  func() time.Time
	last time.Time
}

func newClock(now func() time.Time) *clock {
	return &clock{now: now}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now().UTC().Truncate(time.Microsecond)
	if !t.After(c.last) {
		t = c.last.Add(time.Microsecond)
	}
	c.last = t
	return t
}
