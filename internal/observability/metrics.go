// Package observability holds the Prometheus instrumentation shared by the
// upstream clients and the resolver.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics aggregates the counters the server exports on /metrics. A nil
// *Metrics is valid and records nothing, so library code never has to branch.
type Metrics struct {
	upstreamRequests *prometheus.CounterVec
	upstreamSeconds  *prometheus.HistogramVec
	cacheEvents      *prometheus.CounterVec
	fallbackStrategy *prometheus.CounterVec
}

// New registers the rarity-mapper collectors on reg and returns the handle.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		upstreamRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rarity_mapper",
			Name:      "upstream_requests_total",
			Help:      "Upstream HTTP fetches by service and outcome.",
		}, []string{"service", "outcome"}),
		upstreamSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "rarity_mapper",
			Name:      "upstream_request_seconds",
			Help:      "Upstream HTTP fetch latency by service.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"service"}),
		cacheEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rarity_mapper",
			Name:      "cache_events_total",
			Help:      "Response cache hits and misses by service.",
		}, []string{"service", "event"}),
		fallbackStrategy: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rarity_mapper",
			Name:      "fallback_strategy_total",
			Help:      "County notable lookups by the fallback strategy that produced data.",
		}, []string{"strategy"}),
	}
}

// UpstreamRequest records one upstream fetch attempt. Outcome is "ok",
// "error", or "open" when the circuit rejected the call.
func (m *Metrics) UpstreamRequest(service, outcome string) {
	if m == nil {
		return
	}
	m.upstreamRequests.WithLabelValues(service, outcome).Inc()
}

// UpstreamDuration records the wall time of one upstream fetch.
func (m *Metrics) UpstreamDuration(service string, seconds float64) {
	if m == nil {
		return
	}
	m.upstreamSeconds.WithLabelValues(service).Observe(seconds)
}

// CacheHit records a response served from the TTL cache.
func (m *Metrics) CacheHit(service string) {
	if m == nil {
		return
	}
	m.cacheEvents.WithLabelValues(service, "hit").Inc()
}

// CacheMiss records a cache miss that went upstream.
func (m *Metrics) CacheMiss(service string) {
	if m == nil {
		return
	}
	m.cacheEvents.WithLabelValues(service, "miss").Inc()
}

// FallbackStrategy records which rung of the county fallback ladder served a
// request.
func (m *Metrics) FallbackStrategy(strategy string) {
	if m == nil {
		return
	}
	m.fallbackStrategy.WithLabelValues(strategy).Inc()
}
