package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spaceboy202105/chatbot-test/internal/adapter/llm"
	"github.com/spaceboy202105/chatbot-test/internal/config"
	"github.com/spaceboy202105/chatbot-test/internal/domain"
	"github.com/spaceboy202105/chatbot-test/internal/logging"
	"github.com/spaceboy202105/chatbot-test/internal/policy"
	"github.com/spaceboy202105/chatbot-test/internal/repository"
	"github.com/spaceboy202105/chatbot-test/internal/testutil"
)

const defaultPrompt = "You are a helpful AI assistant."

type fixture struct {
	svc     *Service
	store   repository.ConversationStore
	adapter *testutil.FakeAdapter
	config  *config.Config
}

func testConfig() *config.Config {
	return &config.Config{
		DefaultSystemPrompt: defaultPrompt,
		MaxMessageChars:     200,
	}
}

func newFixture(t *testing.T, adapter *testutil.FakeAdapter, opts ...Option) *fixture {
	t.Helper()
	if adapter == nil {
		adapter = &testutil.FakeAdapter{Name: "acme", Reply: "Hi there!"}
	}
	cfg := testConfig()
	registry := testutil.NewRegistry(t,
		map[string]llm.ModelAdapter{"acme": adapter},
		domain.ModelInfo{ID: "acme-large", DisplayName: "Acme Large", Provider: "acme"},
	)
	engine, err := policy.NewEngine(context.Background(), policy.DefaultPolicy, cfg.MaxMessageChars)
	require.NoError(t, err)

	store := testutil.NewTestSQLiteStore(t)
	opts = append([]Option{WithLogger(logging.Discard())}, opts...)
	return &fixture{
		svc:     New(store, registry, cfg, engine, opts...),
		store:   store,
		adapter: adapter,
		config:  cfg,
	}
}

func (f *fixture) conversation(t *testing.T, id string) *domain.Conversation {
	t.Helper()
	conv, err := f.store.GetConversation(context.Background(), id)
	require.NoError(t, err)
	return conv
}

func (f *fixture) conversationCount(t *testing.T) int {
	t.Helper()
	items, err := f.store.ListConversations(context.Background(), -1, 0)
	require.NoError(t, err)
	return len(items)
}

// fixedClock returns the same instant forever; the service clock must still
// hand out increasing timestamps.
func fixedClock() func() time.Time {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return func() time.Time { return at }
}
