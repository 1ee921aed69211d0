package gc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"iter"
	"math/rand/v2"
	"slices"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dray-io/blobstore/internal/blob"
	"github.com/dray-io/blobstore/internal/generation"
	"github.com/dray-io/blobstore/internal/logging"
	"github.com/dray-io/blobstore/internal/objectstore"
	"github.com/dray-io/blobstore/internal/objectstore/daotest"
	"github.com/dray-io/blobstore/internal/task"
)

var start = time.Date(2026, time.January, 5, 8, 0, 0, 0, time.UTC)

const window = time.Hour

type env struct {
	clk *clock.Mock
	mem *objectstore.MemoryDAO
	dao *daotest.FaultyDAO
	ids *generation.Factory
}

func newEnv(t *testing.T) *env {
	t.Helper()
	clk := clock.NewMock()
	clk.Set(start)
	ids, err := generation.NewFactory(blob.NewDigestFactory(), clk, generation.Config{Duration: window, Family: 1})
	require.NoError(t, err)
	mem := objectstore.NewMemoryDAO()
	return &env{clk: clk, mem: mem, dao: daotest.NewFaultyDAO(mem), ids: ids}
}

// store saves n blobs minted at the current mock time.
func (e *env) store(t *testing.T, n int) []blob.ID {
	t.Helper()
	ids := make([]blob.ID, n)
	for i := range ids {
		ids[i] = e.ids.Random()
		require.NoError(t, e.mem.Save(context.Background(), blob.DefaultBucket, ids[i], []byte(fmt.Sprintf("blob-%d", i))))
	}
	return ids
}

func (e *env) collector(sources ...ReferenceSource) *Collector {
	return NewCollector(e.dao, e.ids, sources, WithClock(e.clk), WithLogger(logging.Nop()))
}

func (e *env) exists(t *testing.T, id blob.ID) bool {
	t.Helper()
	ok, err := e.mem.Exists(context.Background(), blob.DefaultBucket, id)
	require.NoError(t, err)
	return ok
}

func runConfig() RunConfig {
	return RunConfig{
		Bucket:                blob.DefaultBucket,
		ExpectedBlobCount:     10_000,
		AssociatedProbability: 0.001,
		DeletionWindowSize:    10,
	}
}

func run(c *Collector, cfg RunConfig) (task.Result, Snapshot) {
	gcCtx := NewContext(cfg.ExpectedBlobCount, cfg.AssociatedProbability, c.Clock())
	result := c.Run(context.Background(), cfg, gcCtx)
	return result, gcCtx.Snapshot()
}

func TestRunConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*RunConfig)
		wantErr bool
	}{
		{"valid", func(*RunConfig) {}, false},
		{"explicit in flight", func(c *RunConfig) { c.MaxInFlightBatches = 2 }, false},
		{"empty bucket", func(c *RunConfig) { c.Bucket = "" }, true},
		{"zero expected count", func(c *RunConfig) { c.ExpectedBlobCount = 0 }, true},
		{"zero probability", func(c *RunConfig) { c.AssociatedProbability = 0 }, true},
		{"probability one", func(c *RunConfig) { c.AssociatedProbability = 1 }, true},
		{"zero window", func(c *RunConfig) { c.DeletionWindowSize = 0 }, true},
		{"negative in flight", func(c *RunConfig) { c.MaxInFlightBatches = -1 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := runConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidRunConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDeletesOldOrphans(t *testing.T) {
	e := newEnv(t)
	blobs := e.store(t, 25)
	referenced := blobs[:5]
	e.clk.Add(3 * window)

	result, snap := run(e.collector(StaticSource(referenced...)), runConfig())

	assert.Equal(t, task.Completed, result)
	for _, id := range referenced {
		assert.True(t, e.exists(t, id), "referenced blob %s deleted", id)
	}
	for _, id := range blobs[5:] {
		assert.False(t, e.exists(t, id), "orphan blob %s retained", id)
	}
	assert.Equal(t, int64(5), snap.ReferenceSourceCount)
	assert.Equal(t, int64(25), snap.BlobCount)
	assert.Equal(t, int64(20), snap.GCedBlobCount)
	assert.Equal(t, int64(0), snap.ErrorCount)
	assert.Equal(t, int64(2), e.dao.DeleteBatchCalls())
}

func TestNothingToDeleteIsCompleted(t *testing.T) {
	e := newEnv(t)
	blobs := e.store(t, 3)
	e.clk.Add(3 * window)

	result, snap := run(e.collector(StaticSource(blobs...)), runConfig())

	assert.Equal(t, task.Completed, result)
	assert.Equal(t, int64(0), snap.GCedBlobCount)
	assert.Equal(t, int64(0), e.dao.DeleteBatchCalls())

	empty := newEnv(t)
	result, snap = run(empty.collector(), runConfig())
	assert.Equal(t, task.Completed, result)
	assert.Equal(t, int64(0), snap.BlobCount)
}

func TestActiveGenerationIsRetained(t *testing.T) {
	e := newEnv(t)
	old := e.store(t, 4)
	e.clk.Add(window)
	previous := e.store(t, 4)
	e.clk.Add(window)
	current := e.store(t, 4)

	result, snap := run(e.collector(), runConfig())

	assert.Equal(t, task.Completed, result)
	for _, id := range old {
		assert.False(t, e.exists(t, id), "blob two generations old must be collected")
	}
	for _, id := range slices.Concat(previous, current) {
		assert.True(t, e.exists(t, id), "blob in active generation must be retained")
	}
	assert.Equal(t, int64(4), snap.GCedBlobCount)
}

func TestForeignAndUntaggedIdsAreCollected(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	untagged := blob.NewDigestFactory().Random()
	foreign := generation.ID{Family: 2, Generation: generation.ComputeGeneration(e.ids.Config(), start), Delegate: blob.PlainID("foreign")}
	require.NoError(t, e.mem.Save(ctx, blob.DefaultBucket, untagged, []byte("legacy")))
	require.NoError(t, e.mem.Save(ctx, blob.DefaultBucket, foreign, []byte("foreign")))

	result, snap := run(e.collector(), runConfig())

	assert.Equal(t, task.Completed, result)
	assert.False(t, e.exists(t, untagged))
	assert.False(t, e.exists(t, foreign))
	assert.Equal(t, int64(2), snap.GCedBlobCount)
}

func TestNonCanonicalKeysMatchTheirReferences(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	gen := generation.ComputeGeneration(e.ids.Config(), start)
	kept := blob.PlainID(fmt.Sprintf("01_%d_kept", gen))
	orphan := blob.PlainID(fmt.Sprintf("+1_%d_orphan", gen))
	require.NoError(t, e.mem.Save(ctx, blob.DefaultBucket, kept, []byte("kept")))
	require.NoError(t, e.mem.Save(ctx, blob.DefaultBucket, orphan, []byte("orphan")))

	ref, err := e.ids.ParseID(kept.String())
	require.NoError(t, err)
	require.Equal(t, kept.String(), ref.String())
	e.clk.Add(3 * window)

	result, snap := run(e.collector(StaticSource(ref)), runConfig())

	assert.Equal(t, task.Completed, result)
	assert.True(t, e.exists(t, kept))
	assert.False(t, e.exists(t, orphan))
	assert.Equal(t, int64(1), snap.GCedBlobCount)
}

func TestUnparsableIdIsRetained(t *testing.T) {
	e := newEnv(t)
	bad := blob.PlainID("not a valid id")
	require.NoError(t, e.mem.Save(context.Background(), blob.DefaultBucket, bad, []byte("?")))
	orphans := e.store(t, 3)
	e.clk.Add(3 * window)

	result, snap := run(e.collector(), runConfig())

	assert.Equal(t, task.Partial, result)
	assert.True(t, e.exists(t, bad))
	for _, id := range orphans {
		assert.False(t, e.exists(t, id))
	}
	assert.Equal(t, int64(1), snap.ErrorCount)
	assert.Equal(t, int64(3), snap.GCedBlobCount)
}

func TestMultipleSourcesAreUnioned(t *testing.T) {
	e := newEnv(t)
	blobs := e.store(t, 30)
	e.clk.Add(3 * window)

	c := e.collector(
		StaticSource(blobs[0:10]...),
		StaticSource(blobs[5:15]...),
		StaticSource(blobs[20:22]...),
	)
	result, snap := run(c, runConfig())

	assert.Equal(t, task.Completed, result)
	for i, id := range blobs {
		referenced := i < 15 || (i >= 20 && i < 22)
		assert.Equal(t, referenced, e.exists(t, id), "blob %d", i)
	}
	assert.Equal(t, int64(22), snap.ReferenceSourceCount)
}

func TestBatchFailureIsPartial(t *testing.T) {
	e := newEnv(t)
	blobs := e.store(t, 30)
	e.clk.Add(3 * window)
	victim := blobs[17]
	e.dao.FailDeleteBatch(func(ids []blob.ID) error {
		if slices.ContainsFunc(ids, func(id blob.ID) bool { return blob.Equal(id, victim) }) {
			return errors.New("throttled")
		}
		return nil
	})

	result, snap := run(e.collector(), runConfig())

	assert.Equal(t, task.Partial, result)
	assert.Equal(t, int64(1), snap.ErrorCount)
	assert.Equal(t, int64(20), snap.GCedBlobCount)
	assert.Equal(t, int64(3), e.dao.DeleteBatchCalls())
	assert.Equal(t, 10, e.mem.Count(blob.DefaultBucket))
	assert.True(t, e.exists(t, victim))
}

func TestReferenceFailureAbortsRun(t *testing.T) {
	e := newEnv(t)
	blobs := e.store(t, 10)
	e.clk.Add(3 * window)

	broken := ReferenceSourceFunc(func(ctx context.Context) iter.Seq2[blob.ID, error] {
		return func(yield func(blob.ID, error) bool) {
			if !yield(blobs[0], nil) {
				return
			}
			yield(nil, errors.New("index unavailable"))
		}
	})
	result, snap := run(e.collector(StaticSource(blobs[1]), broken), runConfig())

	assert.Equal(t, task.Partial, result)
	assert.Equal(t, 10, e.mem.Count(blob.DefaultBucket), "nothing may be deleted with incomplete references")
	assert.Equal(t, int64(0), snap.BlobCount)
	assert.Equal(t, int64(0), e.dao.DeleteBatchCalls())
}

func TestReferenceSourcePanicAbortsRun(t *testing.T) {
	e := newEnv(t)
	e.store(t, 5)
	e.clk.Add(3 * window)

	panicking := ReferenceSourceFunc(func(ctx context.Context) iter.Seq2[blob.ID, error] {
		panic("corrupted index")
	})
	result, _ := run(e.collector(panicking), runConfig())

	assert.Equal(t, task.Partial, result)
	assert.Equal(t, 5, e.mem.Count(blob.DefaultBucket))
}

func TestListingFailureIsPartial(t *testing.T) {
	e := newEnv(t)
	e.store(t, 30)
	e.clk.Add(3 * window)
	e.dao.FailList(15, errors.New("connection reset"))

	result, snap := run(e.collector(), runConfig())

	assert.Equal(t, task.Partial, result)
	assert.Equal(t, int64(15), snap.BlobCount)
	assert.Equal(t, int64(10), snap.GCedBlobCount, "only the complete window is deleted")
}

func TestCancelledBeforeRun(t *testing.T) {
	e := newEnv(t)
	e.store(t, 10)
	e.clk.Add(3 * window)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := e.collector()
	cfg := runConfig()
	result := c.Run(ctx, cfg, NewContext(cfg.ExpectedBlobCount, cfg.AssociatedProbability, e.clk))

	assert.Equal(t, task.Partial, result)
	assert.Equal(t, 10, e.mem.Count(blob.DefaultBucket))
}

func TestCancelledDuringSweepStopsNewWindows(t *testing.T) {
	e := newEnv(t)
	e.store(t, 100)
	e.clk.Add(3 * window)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e.dao.FailDeleteBatch(func([]blob.ID) error {
		cancel()
		return nil
	})

	cfg := runConfig()
	cfg.MaxInFlightBatches = 1
	gcCtx := NewContext(cfg.ExpectedBlobCount, cfg.AssociatedProbability, e.clk)
	result := e.collector().Run(ctx, cfg, gcCtx)
	snap := gcCtx.Snapshot()

	assert.Equal(t, task.Partial, result)
	// The window that observed the cancellation still completes.
	assert.GreaterOrEqual(t, snap.GCedBlobCount, int64(10))
	assert.Less(t, snap.GCedBlobCount, int64(100))
	assert.Equal(t, 100-int(snap.GCedBlobCount), e.mem.Count(blob.DefaultBucket))
	assert.Equal(t, int64(0), snap.ErrorCount)
}

func TestBoundedConcurrency(t *testing.T) {
	e := newEnv(t)
	e.store(t, 200)
	e.clk.Add(3 * window)

	var inFlight, peak atomic.Int64
	e.dao.FailDeleteBatch(func([]blob.ID) error {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return nil
	})

	cfg := runConfig()
	cfg.MaxInFlightBatches = 3
	result, snap := run(e.collector(), cfg)

	assert.Equal(t, task.Completed, result)
	assert.Equal(t, int64(200), snap.GCedBlobCount)
	assert.LessOrEqual(t, peak.Load(), int64(3))
	assert.Equal(t, 0, e.mem.Count(blob.DefaultBucket))
}

// Referenced blobs survive whatever the filter size, including filters so
// small that most orphans collide.
func TestNeverDeletesReferencedBlobs(t *testing.T) {
	for seed := uint64(1); seed <= 20; seed++ {
		t.Run(fmt.Sprintf("seed=%d", seed), func(t *testing.T) {
			rng := rand.New(rand.NewPCG(seed, seed*31))
			e := newEnv(t)
			blobs := e.store(t, 50+rng.IntN(150))
			e.clk.Add(3 * window)

			var referenced []blob.ID
			for _, id := range blobs {
				if rng.IntN(3) == 0 {
					referenced = append(referenced, id)
				}
			}

			cfg := runConfig()
			cfg.ExpectedBlobCount = int64(1 + rng.IntN(100))
			cfg.AssociatedProbability = 0.001 + rng.Float64()*0.5
			cfg.DeletionWindowSize = 1 + rng.IntN(20)

			result, snap := run(e.collector(StaticSource(referenced...)), cfg)

			assert.Equal(t, task.Completed, result)
			for _, id := range referenced {
				require.True(t, e.exists(t, id), "referenced blob %s deleted", id)
			}
			assert.Equal(t, int64(len(blobs)-e.mem.Count(blob.DefaultBucket)), snap.GCedBlobCount)
		})
	}
}

func TestFixedSaltKeepsCollisions(t *testing.T) {
	e := newEnv(t)
	blobs := e.store(t, 300)
	e.clk.Add(3 * window)

	c := e.collector(StaticSource(blobs[:200]...))
	c.newSalt = func() string { return "fixed-salt" }
	cfg := runConfig()
	cfg.ExpectedBlobCount = 1
	cfg.AssociatedProbability = 0.5

	_, first := run(c, cfg)
	_, second := run(c, cfg)

	assert.Equal(t, int64(0), second.GCedBlobCount, "identical salt reproduces identical false positives")
	assert.Equal(t, int64(300)-first.GCedBlobCount, int64(e.mem.Count(blob.DefaultBucket)))
}

func TestFreshSaltEventuallyCollectsEveryOrphan(t *testing.T) {
	e := newEnv(t)
	blobs := e.store(t, 300)
	referenced, orphans := blobs[:200], blobs[200:]
	e.clk.Add(3 * window)

	c := e.collector(StaticSource(referenced...))
	cfg := runConfig()
	cfg.ExpectedBlobCount = 1
	cfg.AssociatedProbability = 0.5

	runs := 0
	for ; runs < 50 && e.mem.Count(blob.DefaultBucket) > len(referenced); runs++ {
		result, _ := run(c, cfg)
		require.Equal(t, task.Completed, result)
		for _, id := range referenced {
			require.True(t, e.exists(t, id))
		}
	}

	for _, id := range orphans {
		assert.False(t, e.exists(t, id), "orphan %s survived %d runs", id, runs)
	}
}

func TestSnapshotIsIndependentCopy(t *testing.T) {
	clk := clock.NewMock()
	clk.Set(start)
	gcCtx := NewContext(100, 0.01, clk)
	gcCtx.incrementReferenceSourceCount()
	gcCtx.incrementBlobCount()
	gcCtx.incrementBlobCount()
	gcCtx.incrementGCedBlobCount(5)
	gcCtx.incrementErrorCount()

	snap := gcCtx.Snapshot()
	gcCtx.incrementBlobCount()

	assert.Equal(t, Snapshot{
		ReferenceSourceCount:  1,
		BlobCount:             2,
		GCedBlobCount:         5,
		ErrorCount:            1,
		ExpectedBlobCount:     100,
		AssociatedProbability: 0.01,
		Time:                  start,
	}, snap)
	assert.Equal(t, start, snap.Timestamp())
	assert.Equal(t, int64(3), gcCtx.Snapshot().BlobCount)
}

func TestRunLogsCarryRunID(t *testing.T) {
	e := newEnv(t)
	e.store(t, 2)
	e.clk.Add(3 * window)

	var logs bytes.Buffer
	logger := logging.New(logging.Config{Level: logging.LevelInfo, Format: logging.FormatJSON, Output: &logs})
	c := NewCollector(e.dao, e.ids, nil, WithClock(e.clk), WithLogger(logger))
	tk, err := NewTask(c, runConfig())
	require.NoError(t, err)

	ctx := logging.WithRunIDCtx(context.Background(), "run-42")
	assert.Equal(t, task.Completed, tk.Run(ctx))
	assert.Contains(t, logs.String(), `"runId":"run-42"`)
	assert.Contains(t, logs.String(), "garbage collection finished")
}
