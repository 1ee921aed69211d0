package main

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dray-io/blobstore/internal/blob"
	"github.com/dray-io/blobstore/internal/config"
	"github.com/dray-io/blobstore/internal/logging"
	"github.com/dray-io/blobstore/internal/task"
)

// testConfig returns an in-process configuration: memory object store,
// memory reference registry and a memory cache.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.ObjectStore.Kind = "memory"
	cfg.References.Kind = "memory"
	cfg.References.Sources = []string{"mailbox"}
	cfg.Generation.Duration = time.Hour
	cfg.Cache.Enabled = true
	cfg.Cache.Kind = "memory"
	cfg.Observability.MetricsAddr = "127.0.0.1:0"
	require.NoError(t, cfg.Validate())
	return cfg
}

func startDaemon(t *testing.T, opts DaemonOptions) *Daemon {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	d, err := NewDaemon(opts)
	require.NoError(t, err)
	require.NoError(t, d.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = d.Shutdown(ctx)
	})
	return d
}

func httpGet(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestNewDaemonRequiresConfig(t *testing.T) {
	_, err := NewDaemon(DaemonOptions{})
	assert.Error(t, err)
}

func TestDaemonStartAndShutdown(t *testing.T) {
	d := startDaemon(t, DaemonOptions{Config: testConfig(t)})
	ctx := context.Background()

	store := d.Store()
	require.NotNil(t, store)
	id, err := store.Save(ctx, store.DefaultBucket(), []byte("Subject: hello"), blob.SizeBased)
	require.NoError(t, err)
	data, err := store.ReadBytes(ctx, store.DefaultBucket(), id, blob.SizeBased)
	require.NoError(t, err)
	assert.Equal(t, "Subject: hello", string(data))

	addr := "http://" + d.metricsServer.Addr()
	status, _ := httpGet(t, addr+"/healthz")
	assert.Equal(t, http.StatusOK, status)

	status, body := httpGet(t, addr+"/readyz")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `"object_store"`)
	assert.Contains(t, body, `"metadata_store"`)

	status, body = httpGet(t, addr+"/metrics")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "blobstore_dao_operations_total")
	assert.Contains(t, body, "blobstore_cache_hits_total")
	assert.Contains(t, body, "go_goroutines")

	assert.Error(t, d.Start(ctx), "a daemon starts once")

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, d.Shutdown(shutdownCtx))
}

func TestDaemonRunGC(t *testing.T) {
	clk := clock.NewMock()
	clk.Set(time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC))
	cfg := testConfig(t)
	cfg.Observability.MetricsAddr = ""
	d := startDaemon(t, DaemonOptions{Config: cfg, Clock: clk, Registry: prometheus.NewRegistry()})
	ctx := context.Background()
	store := d.Store()
	bucket := store.DefaultBucket()

	kept, err := store.Save(ctx, bucket, []byte("referenced message"), blob.LowCost)
	require.NoError(t, err)
	orphan, err := store.Save(ctx, bucket, []byte("orphaned message"), blob.LowCost)
	require.NoError(t, err)
	require.NoError(t, d.References().Add(ctx, "mailbox", kept))

	// Nothing is old enough yet.
	snap, result, err := d.RunGC(ctx)
	require.NoError(t, err)
	assert.Equal(t, task.Completed, result)
	assert.Equal(t, int64(0), snap.GCedBlobCount)

	clk.Add(3 * time.Hour)
	snap, result, err = d.RunGC(ctx)
	require.NoError(t, err)
	assert.Equal(t, task.Completed, result)
	assert.Equal(t, int64(1), snap.ReferenceSourceCount)
	assert.Equal(t, int64(2), snap.BlobCount)
	assert.Equal(t, int64(1), snap.GCedBlobCount)

	_, err = store.ReadBytes(ctx, bucket, kept, blob.LowCost)
	assert.NoError(t, err)
	_, err = store.ReadBytes(ctx, bucket, orphan, blob.LowCost)
	assert.True(t, blob.IsNotFound(err))

	assert.Equal(t, float64(2), testutil.ToFloat64(d.gcMetrics.RunsTotal.WithLabelValues("COMPLETED")))
	assert.Equal(t, float64(1), testutil.ToFloat64(d.gcMetrics.DeletedBlobsTotal))
}

func TestDaemonRunGCWithoutSources(t *testing.T) {
	cfg := testConfig(t)
	cfg.References.Sources = []string{}
	cfg.Observability.MetricsAddr = ""
	d := startDaemon(t, DaemonOptions{Config: cfg, Registry: prometheus.NewRegistry()})

	_, _, err := d.RunGC(context.Background())
	assert.ErrorIs(t, err, ErrNoReferenceSources)
}

func TestDaemonRunGCBeforeStart(t *testing.T) {
	d, err := NewDaemon(DaemonOptions{Config: testConfig(t), Logger: logging.Nop()})
	require.NoError(t, err)
	_, result, err := d.RunGC(context.Background())
	assert.Error(t, err)
	assert.Equal(t, task.Partial, result)
}

func TestDaemonGCWorker(t *testing.T) {
	clk := clock.NewMock()
	clk.Set(time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC))
	cfg := testConfig(t)
	cfg.GC.Enabled = true
	cfg.GC.Interval = time.Hour
	cfg.Observability.MetricsAddr = ""
	d := startDaemon(t, DaemonOptions{Config: cfg, Clock: clk, Registry: prometheus.NewRegistry()})

	require.NotNil(t, d.worker)
	require.Eventually(t, func() bool { return d.worker.RunCount() >= 1 }, 5*time.Second, 10*time.Millisecond)
	_, result, ran := d.worker.LastRun()
	assert.True(t, ran)
	assert.Equal(t, task.Completed, result)
}
