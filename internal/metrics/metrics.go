// Package metrics exposes the gateway's Prometheus metrics.
//
// A nil *Collector is valid and records nothing, so callers never need to
// check whether metrics are enabled.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "chatgate"

// Outcomes recorded for adapter invocations.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
	OutcomePartial = "partial"
)

// Collector owns a private registry and the gateway's metric vectors.
type Collector struct {
	registry *prometheus.Registry

	adapterRequests *prometheus.CounterVec
	adapterDuration *prometheus.HistogramVec
	streamFragments *prometheus.CounterVec
	policyDecisions *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	activeStreams   prometheus.Gauge
}

// New creates a collector registered on a fresh registry.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		adapterRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "adapter_requests_total",
			Help:      "Adapter invocations by provider, model, mode and outcome.",
		}, []string{"provider", "model", "mode", "outcome"}),
		adapterDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "adapter_duration_seconds",
			Help:      "Adapter invocation latency.",
			// LLM latencies range from sub-second to tens of seconds.
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"provider", "mode"}),
		streamFragments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_fragments_total",
			Help:      "Fragments relayed to streaming clients.",
		}, []string{"provider"}),
		policyDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "policy_decisions_total",
			Help:      "Admission policy decisions.",
		}, []string{"decision"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		activeStreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_streams",
			Help:      "Streaming requests currently relaying fragments.",
		}),
	}

	c.registry.MustRegister(
		c.adapterRequests,
		c.adapterDuration,
		c.streamFragments,
		c.policyDecisions,
		c.httpRequests,
		c.httpDuration,
		c.activeStreams,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// ObserveAdapter records one adapter invocation.
func (c *Collector) ObserveAdapter(provider, model, mode, outcome string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.adapterRequests.WithLabelValues(provider, model, mode, outcome).Inc()
	c.adapterDuration.WithLabelValues(provider, mode).Observe(elapsed.Seconds())
}

// AddFragment counts one relayed fragment.
func (c *Collector) AddFragment(provider string) {
	if c == nil {
		return
	}
	c.streamFragments.WithLabelValues(provider).Inc()
}

// ObservePolicy records an admission decision.
func (c *Collector) ObservePolicy(decision string) {
	if c == nil {
		return
	}
	c.policyDecisions.WithLabelValues(decision).Inc()
}

// ObserveHTTP records one served HTTP request.
func (c *Collector) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// StreamStarted increments the active stream gauge and returns its decrement.
func (c *Collector) StreamStarted() func() {
	if c == nil {
		return func() {}
	}
	c.activeStreams.Inc()
	return c.activeStreams.Dec
}

// Handler returns an HTTP handler for the Prometheus metrics endpoint.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}
