package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// GCMetrics holds metrics related to blob garbage collection runs.
type GCMetrics struct {
	// RunsTotal counts finished runs by result.
	// Labels: result (completed, partial)
	RunsTotal *prometheus.CounterVec

	// DeletedBlobsTotal counts blobs deleted by the collector.
	DeletedBlobsTotal prometheus.Counter

	// ErrorsTotal counts failed deletion batches.
	ErrorsTotal prometheus.Counter

	// LastRunDuration is the wall time of the last run in seconds.
	LastRunDuration prometheus.Gauge

	// LastRunBlobs is the number of blobs listed by the last run.
	LastRunBlobs prometheus.Gauge

	// LastRunReferences is the number of references read by the last run.
	LastRunReferences prometheus.Gauge
}

// NewGCMetrics creates GC metrics registered with the default registry.
func NewGCMetrics() *GCMetrics {
	return NewGCMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewGCMetricsWithRegistry creates GC metrics registered with a custom registry.
func NewGCMetricsWithRegistry(reg prometheus.Registerer) *GCMetrics {
	m := &GCMetrics{
		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "gc",
				Name:      "runs_total",
				Help:      "Number of garbage collection runs, broken down by result.",
			},
			[]string{"result"},
		),
		DeletedBlobsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gc",
			Name:      "deleted_blobs_total",
			Help:      "Number of orphaned blobs deleted.",
		}),
		ErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gc",
			Name:      "errors_total",
			Help:      "Number of deletion batches that failed.",
		}),
		LastRunDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "gc",
			Name:      "last_run_duration_seconds",
			Help:      "Duration of the last garbage collection run.",
		}),
		LastRunBlobs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "gc",
			Name:      "last_run_blobs",
			Help:      "Number of blobs listed by the last garbage collection run.",
		}),
		LastRunReferences: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "gc",
			Name:      "last_run_references",
			Help:      "Number of references read by the last garbage collection run.",
		}),
	}
	reg.MustRegister(m.RunsTotal, m.DeletedBlobsTotal, m.ErrorsTotal,
		m.LastRunDuration, m.LastRunBlobs, m.LastRunReferences)
	return m
}

// RecordRun records the outcome of one run.
func (m *GCMetrics) RecordRun(result string, durationSeconds float64, references, blobs, deleted, errors int64) {
	m.RunsTotal.WithLabelValues(result).Inc()
	m.DeletedBlobsTotal.Add(float64(deleted))
	m.ErrorsTotal.Add(float64(errors))
	m.LastRunDuration.Set(durationSeconds)
	m.LastRunBlobs.Set(float64(blobs))
	m.LastRunReferences.Set(float64(references))
}
