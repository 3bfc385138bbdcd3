package http

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaceboy202105/chatbot-test/internal/adapter/llm"
	"github.com/spaceboy202105/chatbot-test/internal/config"
	"github.com/spaceboy202105/chatbot-test/internal/domain"
	"github.com/spaceboy202105/chatbot-test/internal/logging"
	"github.com/spaceboy202105/chatbot-test/internal/metrics"
	"github.com/spaceboy202105/chatbot-test/internal/policy"
	"github.com/spaceboy202105/chatbot-test/internal/service"
	"github.com/spaceboy202105/chatbot-test/internal/testutil"
	"github.com/spaceboy202105/chatbot-test/internal/transport/ws"
)

func newTestServer(t *testing.T, metricsEnabled bool) (*Server, *metrics.Collector) {
	t.Helper()
	cfg := &config.Config{
		APIPrefix:           "/api",
		DefaultSystemPrompt: "You are a helpful AI assistant.",
		MaxMessageChars:     100,
		MetricsEnabled:      metricsEnabled,
	}
	registry := testutil.NewRegistry(t,
		map[string]llm.ModelAdapter{"acme": &testutil.FakeAdapter{Name: "acme", Reply: "ok"}},
		domain.ModelInfo{ID: "acme-large", Provider: "acme"},
	)
	engine, err := policy.NewEngine(context.Background(), policy.DefaultPolicy, cfg.MaxMessageChars)
	require.NoError(t, err)

	logger := logging.Discard()
	collector := metrics.New()
	svc := service.New(testutil.NewTestSQLiteStore(t), registry, cfg, engine,
		service.WithLogger(logger), service.WithMetrics(collector))
	wsServer := ws.NewServer(cfg, ws.NewHub(logger), svc, logger)

	return NewServer(cfg, svc, wsServer, collector, logger), collector
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestServerRoutesUnderPrefix(t *testing.T) {
	s, _ := newTestServer(t, false)

	rec := get(t, s, "/api/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))

	rec = get(t, s, "/health")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServerMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t, true)

	require.Equal(t, http.StatusOK, get(t, s, "/api/models/acme-large").Code)
	require.Equal(t, http.StatusNotFound, get(t, s, "/api/models/unknown").Code)

	rec := get(t, s, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `chatgate_http_requests_total{method="GET",route="/api/models/:model_id",status="200"} 1`)
	assert.Contains(t, string(body), `chatgate_http_requests_total{method="GET",route="/api/models/:model_id",status="404"} 1`)
}

func TestServerMetricsDisabled(t *testing.T) {
	s, _ := newTestServer(t, false)

	assert.Equal(t, http.StatusNotFound, get(t, s, "/metrics").Code)
}
