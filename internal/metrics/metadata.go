package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// MetadataMetrics holds metrics related to reference registry operations.
type MetadataMetrics struct {
	// LatencyHistogram tracks metadata operation latencies broken down by operation type and status.
	// Labels: operation (get, put, delete, list), status (success, failure)
	LatencyHistogram *prometheus.HistogramVec

	// RequestsTotal tracks total metadata operations by operation type and status.
	RequestsTotal *prometheus.CounterVec
}

// Metadata operation label values.
const (
	OpMetaGet    = "get"
	OpMetaPut    = "put"
	OpMetaDelete = "delete"
	OpMetaList   = "list"
)

// DefaultMetadataLatencyBuckets are latency buckets for metadata operations,
// which are typically sub-millisecond to tens of milliseconds.
var DefaultMetadataLatencyBuckets = []float64{
	0.0001, // 0.1ms
	0.0005, // 0.5ms
	0.001,  // 1ms
	0.002,  // 2ms
	0.005,  // 5ms
	0.01,   // 10ms
	0.025,  // 25ms
	0.05,   // 50ms
	0.1,    // 100ms
	0.25,   // 250ms
	0.5,    // 500ms
	1.0,    // 1s
	2.5,    // 2.5s
	5.0,    // 5s
}

// NewMetadataMetrics creates metadata metrics registered with the default registry.
func NewMetadataMetrics() *MetadataMetrics {
	return NewMetadataMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetadataMetricsWithRegistry creates metadata metrics registered with a custom registry.
func NewMetadataMetricsWithRegistry(reg prometheus.Registerer) *MetadataMetrics {
	m := &MetadataMetrics{
		LatencyHistogram: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "metadata",
				Name:      "operation_duration_seconds",
				Help:      "Metadata operation latency in seconds, broken down by operation and status.",
				Buckets:   DefaultMetadataLatencyBuckets,
			},
			[]string{"operation", "status"},
		),
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "metadata",
				Name:      "operations_total",
				Help:      "Total number of metadata operations, broken down by operation and status.",
			},
			[]string{"operation", "status"},
		),
	}
	reg.MustRegister(m.LatencyHistogram, m.RequestsTotal)
	return m
}

// RecordOperation records an operation latency and increments the request counter.
func (m *MetadataMetrics) RecordOperation(operation string, durationSeconds float64, success bool) {
	status := statusLabel(success)
	m.LatencyHistogram.WithLabelValues(operation, status).Observe(durationSeconds)
	m.RequestsTotal.WithLabelValues(operation, status).Inc()
}

// RecordGet records a Get operation.
func (m *MetadataMetrics) RecordGet(durationSeconds float64, success bool) {
	m.RecordOperation(OpMetaGet, durationSeconds, success)
}

// RecordPut records a Put operation.
func (m *MetadataMetrics) RecordPut(durationSeconds float64, success bool) {
	m.RecordOperation(OpMetaPut, durationSeconds, success)
}

// RecordDelete records a Delete operation.
func (m *MetadataMetrics) RecordDelete(durationSeconds float64, success bool) {
	m.RecordOperation(OpMetaDelete, durationSeconds, success)
}

// RecordList records a List operation.
func (m *MetadataMetrics) RecordList(durationSeconds float64, success bool) {
	m.RecordOperation(OpMetaList, durationSeconds, success)
}
