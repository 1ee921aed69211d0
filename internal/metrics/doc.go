// Package metrics provides Prometheus metrics for the blob storage engine.
//
// Exposed metric families (namespace "blobstore"):
//   - cache hit and miss counters of the cache-aware blob store
//   - cache and backend read latency histograms
//   - per-operation latency and counters of the backend DAO
//   - metadata (reference registry) operation latency and counters
//   - garbage collection run outcomes, deletions and errors
//
// Every constructor has a WithRegistry twin so tests can register against a
// private registry. Metrics are served on /metrics by [Server].
//
// Usage:
//
//	cacheMetrics := metrics.NewCacheMetrics()
//	store, err := cache.NewStore(backend, blobCache, cacheCfg, cache.WithMetrics(cacheMetrics))
//
//	srv := metrics.NewServer(":9090")
//	if err := srv.Start(); err != nil {
//	    return err
//	}
//	defer srv.Close()
package metrics

const namespace = "blobstore"

// Status label values.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

func statusLabel(success bool) string {
	if success {
		return StatusSuccess
	}
	return StatusFailure
}

// DefaultBackendLatencyBuckets are latency buckets for backend operations.
// Optimized for S3 blob operations which typically range from tens of ms to seconds.
var DefaultBackendLatencyBuckets = []float64{
	0.001, // 1ms
	0.005, // 5ms
	0.01,  // 10ms
	0.025, // 25ms
	0.05,  // 50ms
	0.1,   // 100ms
	0.25,  // 250ms
	0.5,   // 500ms
	1.0,   // 1s
	2.5,   // 2.5s
	5.0,   // 5s
	10.0,  // 10s
	30.0,  // 30s
	60.0,  // 60s
}

// DefaultCacheLatencyBuckets are latency buckets for cache reads, which are
// bounded by the cache read timeout.
var DefaultCacheLatencyBuckets = []float64{
	0.0001, // 0.1ms
	0.0005, // 0.5ms
	0.001,  // 1ms
	0.0025, // 2.5ms
	0.005,  // 5ms
	0.01,   // 10ms
	0.025,  // 25ms
	0.05,   // 50ms
	0.1,    // 100ms
	0.25,   // 250ms
	1.0,    // 1s
}
