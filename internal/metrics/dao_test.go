package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestDAOMetrics_RecordOperations(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewDAOMetricsWithRegistry(reg)

	m.RecordSave(0.05, true, 1024)
	m.RecordSave(0.10, false, 2048)
	m.RecordRead(0.02, true, 512)
	m.RecordExists(0.01, true)
	m.RecordExists(0.01, false)
	m.RecordDelete(0.03, true, 7)
	m.RecordList(0.2, true, 42)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}

	requests := findMetricFamily(mfs, "blobstore_dao_operations_total")
	if requests == nil {
		t.Fatal("blobstore_dao_operations_total not registered")
	}

	tests := []struct {
		op     string
		status string
		want   float64
	}{
		{OpSave, StatusSuccess, 1},
		{OpSave, StatusFailure, 1},
		{OpRead, StatusSuccess, 1},
		{OpExists, StatusSuccess, 1},
		{OpExists, StatusFailure, 1},
		{OpDelete, StatusSuccess, 1},
		{OpList, StatusSuccess, 1},
		{OpRead, StatusFailure, 0},
	}
	for _, tt := range tests {
		got := getCounterValue(requests, map[string]string{"operation": tt.op, "status": tt.status})
		if got != tt.want {
			t.Errorf("operations_total{operation=%q,status=%q} = %v, want %v", tt.op, tt.status, got, tt.want)
		}
	}

	latency := findMetricFamily(mfs, "blobstore_dao_operation_duration_seconds")
	if latency == nil {
		t.Fatal("blobstore_dao_operation_duration_seconds not registered")
	}
	if got := getHistogramCount(latency, map[string]string{"operation": OpSave, "status": StatusSuccess}); got != 1 {
		t.Errorf("save latency samples = %d, want 1", got)
	}

	bytes := findMetricFamily(mfs, "blobstore_dao_bytes_total")
	if bytes == nil {
		t.Fatal("blobstore_dao_bytes_total not registered")
	}
	// Failed saves do not count bytes.
	if got := getCounterValue(bytes, map[string]string{"direction": DirectionWrite}); got != 1024 {
		t.Errorf("write bytes = %v, want 1024", got)
	}
	if got := getCounterValue(bytes, map[string]string{"direction": DirectionRead}); got != 512 {
		t.Errorf("read bytes = %v, want 512", got)
	}

	items := findMetricFamily(mfs, "blobstore_dao_items_total")
	if items == nil {
		t.Fatal("blobstore_dao_items_total not registered")
	}
	if got := getCounterValue(items, map[string]string{"operation": OpDelete}); got != 7 {
		t.Errorf("deleted items = %v, want 7", got)
	}
	if got := getCounterValue(items, map[string]string{"operation": OpList}); got != 42 {
		t.Errorf("listed items = %v, want 42", got)
	}
}
