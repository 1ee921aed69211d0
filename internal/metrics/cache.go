package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// CacheMetrics holds the metrics of the cache-aware blob store.
type CacheMetrics struct {
	// Hits counts default bucket reads served from the cache.
	Hits prometheus.Counter

	// Misses counts default bucket reads of cacheable blobs that had to go to
	// the backend.
	Misses prometheus.Counter

	// CacheLatency tracks cache read latency in seconds.
	CacheLatency prometheus.Histogram

	// BackendLatency tracks backend read latency in seconds.
	BackendLatency prometheus.Histogram
}

// NewCacheMetrics creates cache metrics registered with the default registry.
func NewCacheMetrics() *CacheMetrics {
	return NewCacheMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewCacheMetricsWithRegistry creates cache metrics registered with a custom registry.
// Useful for testing to avoid conflicts with the default registry.
func NewCacheMetricsWithRegistry(reg prometheus.Registerer) *CacheMetrics {
	m := &CacheMetrics{
		Hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Number of default bucket reads served from the blob cache.",
		}),
		Misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Number of default bucket reads of cacheable blobs missing from the blob cache.",
		}),
		CacheLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cache_latency_seconds",
			Help:      "Blob cache read latency in seconds.",
			Buckets:   DefaultCacheLatencyBuckets,
		}),
		BackendLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_latency_seconds",
			Help:      "Backend blob read latency in seconds.",
			Buckets:   DefaultBackendLatencyBuckets,
		}),
	}
	reg.MustRegister(m.Hits, m.Misses, m.CacheLatency, m.BackendLatency)
	return m
}

// RecordCacheHit increments the hit counter.
func (m *CacheMetrics) RecordCacheHit() {
	m.Hits.Inc()
}

// RecordCacheMiss increments the miss counter.
func (m *CacheMetrics) RecordCacheMiss() {
	m.Misses.Inc()
}

// RecordCacheLatency observes one cache read.
func (m *CacheMetrics) RecordCacheLatency(durationSeconds float64) {
	m.CacheLatency.Observe(durationSeconds)
}

// RecordBackendLatency observes one backend read.
func (m *CacheMetrics) RecordBackendLatency(durationSeconds float64) {
	m.BackendLatency.Observe(durationSeconds)
}
