package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveAdapter(t *testing.T) {
	c := New()
	c.ObserveAdapter("openai", "gpt-4", "streaming", OutcomeSuccess, 1200*time.Millisecond)
	c.ObserveAdapter("openai", "gpt-4", "streaming", OutcomeSuccess, 300*time.Millisecond)
	c.ObserveAdapter("openai", "gpt-4", "blocking", OutcomeError, time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.adapterRequests.WithLabelValues("openai", "gpt-4", "streaming", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.adapterRequests.WithLabelValues("openai", "gpt-4", "blocking", OutcomeError)))
	assert.Equal(t, 2, testutil.CollectAndCount(c.adapterDuration))
}

func TestFragmentsAndPolicy(t *testing.T) {
	c := New()
	for i := 0; i < 3; i++ {
		c.AddFragment("anthropic")
	}
	c.ObservePolicy("block")

	assert.Equal(t, 3.0, testutil.ToFloat64(c.streamFragments.WithLabelValues("anthropic")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.policyDecisions.WithLabelValues("block")))
}

func TestStreamGauge(t *testing.T) {
	c := New()
	done := c.StreamStarted()
	assert.Equal(t, 1.0, testutil.ToFloat64(c.activeStreams))
	done()
	assert.Equal(t, 0.0, testutil.ToFloat64(c.activeStreams))
}

func TestObserveHTTP(t *testing.T) {
	c := New()
	c.ObserveHTTP(http.MethodGet, "/api/models", http.StatusOK, 5*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.httpRequests.WithLabelValues(http.MethodGet, "/api/models", "200")))
}

func TestNilCollectorIsNoop(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.ObserveAdapter("openai", "gpt-4", "blocking", OutcomeSuccess, time.Second)
		c.AddFragment("openai")
		c.ObservePolicy("allow")
		c.ObserveHTTP(http.MethodGet, "/", http.StatusOK, time.Millisecond)
		c.StreamStarted()()
	})
	assert.Nil(t, c.Registry())
}

func TestHandlerExposesMetrics(t *testing.T) {
	c := New()
	c.AddFragment("qwen")

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `chatgate_stream_fragments_total{provider="qwen"} 1`)
}
