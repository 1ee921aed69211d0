package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// DAOMetrics holds metrics related to backend DAO operations.
type DAOMetrics struct {
	// LatencyHistogram tracks DAO operation latencies broken down by operation and status.
	// Labels: operation (save, read, exists, delete, list), status (success, failure)
	LatencyHistogram *prometheus.HistogramVec

	// RequestsTotal tracks total DAO operations by operation and status.
	RequestsTotal *prometheus.CounterVec

	// BytesTotal tracks total payload bytes transferred by direction.
	// Labels: direction (read, write)
	BytesTotal *prometheus.CounterVec

	// ItemsTotal tracks blobs deleted and listed.
	// Labels: operation (delete, list)
	ItemsTotal *prometheus.CounterVec
}

// DAO operation label values.
const (
	OpSave   = "save"
	OpRead   = "read"
	OpExists = "exists"
	OpDelete = "delete"
	OpList   = "list"
)

// Bytes direction label values.
const (
	DirectionRead  = "read"
	DirectionWrite = "write"
)

// NewDAOMetrics creates DAO metrics registered with the default registry.
func NewDAOMetrics() *DAOMetrics {
	return NewDAOMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewDAOMetricsWithRegistry creates DAO metrics registered with a custom registry.
func NewDAOMetricsWithRegistry(reg prometheus.Registerer) *DAOMetrics {
	m := &DAOMetrics{
		LatencyHistogram: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "dao",
				Name:      "operation_duration_seconds",
				Help:      "Backend DAO operation latency in seconds, broken down by operation and status.",
				Buckets:   DefaultBackendLatencyBuckets,
			},
			[]string{"operation", "status"},
		),
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "dao",
				Name:      "operations_total",
				Help:      "Total number of backend DAO operations, broken down by operation and status.",
			},
			[]string{"operation", "status"},
		),
		BytesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "dao",
				Name:      "bytes_total",
				Help:      "Total payload bytes transferred by direction (read/write).",
			},
			[]string{"direction"},
		),
		ItemsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "dao",
				Name:      "items_total",
				Help:      "Total number of blobs deleted or listed.",
			},
			[]string{"operation"},
		),
	}
	reg.MustRegister(m.LatencyHistogram, m.RequestsTotal, m.BytesTotal, m.ItemsTotal)
	return m
}

// RecordOperation records an operation latency and increments the request counter.
func (m *DAOMetrics) RecordOperation(operation string, durationSeconds float64, success bool) {
	status := statusLabel(success)
	m.LatencyHistogram.WithLabelValues(operation, status).Observe(durationSeconds)
	m.RequestsTotal.WithLabelValues(operation, status).Inc()
}

// RecordSave records a Save or SaveStream operation.
func (m *DAOMetrics) RecordSave(durationSeconds float64, success bool, bytes int64) {
	m.RecordOperation(OpSave, durationSeconds, success)
	if success && bytes > 0 {
		m.BytesTotal.WithLabelValues(DirectionWrite).Add(float64(bytes))
	}
}

// RecordRead records a Read or ReadBytes operation.
func (m *DAOMetrics) RecordRead(durationSeconds float64, success bool, bytes int64) {
	m.RecordOperation(OpRead, durationSeconds, success)
	if success && bytes > 0 {
		m.BytesTotal.WithLabelValues(DirectionRead).Add(float64(bytes))
	}
}

// RecordExists records an Exists operation.
func (m *DAOMetrics) RecordExists(durationSeconds float64, success bool) {
	m.RecordOperation(OpExists, durationSeconds, success)
}

// RecordDelete records a Delete or DeleteBatch operation covering count blobs.
func (m *DAOMetrics) RecordDelete(durationSeconds float64, success bool, count int) {
	m.RecordOperation(OpDelete, durationSeconds, success)
	if success {
		m.ItemsTotal.WithLabelValues(OpDelete).Add(float64(count))
	}
}

// RecordList records a bucket listing that yielded count blobs.
func (m *DAOMetrics) RecordList(durationSeconds float64, success bool, count int) {
	m.RecordOperation(OpList, durationSeconds, success)
	m.ItemsTotal.WithLabelValues(OpList).Add(float64(count))
}
