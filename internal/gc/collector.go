package gc

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/ipfs/bbloom"
	"golang.org/x/sync/errgroup"

	"github.com/dray-io/blobstore/internal/blob"
	"github.com/dray-io/blobstore/internal/generation"
	"github.com/dray-io/blobstore/internal/logging"
	"github.com/dray-io/blobstore/internal/objectstore"
	"github.com/dray-io/blobstore/internal/task"
)

// referenceBufferSize is the capacity of the channel between reference
// sources and the filter owner.
const referenceBufferSize = 1024

// CollectorOption configures a Collector.
type CollectorOption func(*Collector)

// WithClock sets the clock used for generation age checks and snapshots.
func WithClock(clk clock.Clock) CollectorOption {
	return func(c *Collector) {
		c.clock = clk
	}
}

// WithLogger sets the collector logger.
func WithLogger(logger *logging.Logger) CollectorOption {
	return func(c *Collector) {
		c.logger = logger
	}
}

// Collector runs the bloom filter garbage collection algorithm against one
// backend.
type Collector struct {
	dao     objectstore.DAO
	ids     *generation.Factory
	sources []ReferenceSource
	clock   clock.Clock
	logger  *logging.Logger

	// newSalt returns the filter salt of a run.
	newSalt func() string
}

// NewCollector creates a collector deleting from dao the blobs not reported
// by any of sources. ids decodes listed blob ids and holds the generation
// configuration.
func NewCollector(dao objectstore.DAO, ids *generation.Factory, sources []ReferenceSource, opts ...CollectorOption) *Collector {
	c := &Collector{
		dao:     dao,
		ids:     ids,
		sources: sources,
		newSalt: uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.clock == nil {
		c.clock = clock.New()
	}
	c.logger = logging.OrGlobal(c.logger).Named("gc")
	return c
}

// Clock returns the collector clock.
func (c *Collector) Clock() clock.Clock {
	return c.clock
}

// Run executes one collection over cfg.Bucket, updating gcCtx as it goes.
// It never returns an error; failures make the result Partial.
func (c *Collector) Run(ctx context.Context, cfg RunConfig, gcCtx *Context) task.Result {
	logger := logging.FromCtx(ctx, c.logger).With(map[string]any{"bucket": cfg.Bucket.String()})

	if err := cfg.Validate(); err != nil {
		logger.Errorf("invalid run configuration", map[string]any{"error": err})
		return task.Partial
	}

	filter, err := bbloom.New(float64(cfg.ExpectedBlobCount), cfg.AssociatedProbability)
	if err != nil {
		logger.Errorf("building bloom filter failed", map[string]any{"error": err})
		return task.Partial
	}
	salt := c.newSalt()

	if err := c.populate(ctx, filter, salt, gcCtx); err != nil {
		logger.Errorf("reading references failed, nothing deleted", map[string]any{"error": err})
		return task.Partial
	}

	result := c.sweep(ctx, cfg, filter, salt, gcCtx, logger)

	snap := gcCtx.Snapshot()
	logger.Infof("garbage collection finished", map[string]any{
		"result":               result.String(),
		"referenceSourceCount": snap.ReferenceSourceCount,
		"blobCount":            snap.BlobCount,
		"gcedBlobCount":        snap.GCedBlobCount,
		"errorCount":           snap.ErrorCount,
	})
	return result
}

func saltedKey(salt string, id blob.ID) []byte {
	return []byte(salt + id.String())
}

// populate streams every source concurrently into the filter. Only the
// calling goroutine mutates the filter.
func (c *Collector) populate(ctx context.Context, filter *bbloom.Bloom, salt string, gcCtx *Context) error {
	refs := make(chan blob.ID, referenceBufferSize)
	g, gctx := errgroup.WithContext(ctx)

	for _, src := range c.sources {
		g.Go(func() (err error) {
			defer func() {
				if p := recover(); p != nil {
					err = fmt.Errorf("reference source panicked: %v", p)
				}
			}()
			for id, err := range src.ListReferencedBlobs(gctx) {
				if err != nil {
					return err
				}
				select {
				case refs <- id:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})
	}

	var srcErr error
	go func() {
		srcErr = g.Wait()
		close(refs)
	}()

	for id := range refs {
		filter.Add(saltedKey(salt, id))
		gcCtx.incrementReferenceSourceCount()
	}
	if srcErr != nil {
		return srcErr
	}
	return ctx.Err()
}

// sweepState is the read-only state shared by the sweep stages of one run.
type sweepState struct {
	cfg     RunConfig
	genCfg  generation.Config
	now     time.Time
	filter  *bbloom.Bloom
	salt    string
	gcCtx   *Context
	logger  *logging.Logger
	partial atomic.Bool
}

// sweep lists the bucket, keeps deletable ids and deletes them window by
// window. The filter is only read from here on.
func (c *Collector) sweep(ctx context.Context, cfg RunConfig, filter *bbloom.Bloom, salt string, gcCtx *Context, logger *logging.Logger) task.Result {
	st := &sweepState{
		cfg:    cfg,
		genCfg: c.ids.Config(),
		now:    c.clock.Now(),
		filter: filter,
		salt:   salt,
		gcCtx:  gcCtx,
		logger: logger,
	}

	var g errgroup.Group
	g.SetLimit(cfg.maxInFlight())

	// In-flight deletes complete even when the run is cancelled.
	deleteCtx := context.WithoutCancel(ctx)

	dispatch := func(window []blob.ID) bool {
		if ctx.Err() != nil {
			return false
		}
		g.Go(func() error {
			if c.deleteWindow(deleteCtx, st, window) == task.Partial {
				st.partial.Store(true)
			}
			return nil
		})
		return true
	}

	window := make([]blob.ID, 0, cfg.DeletionWindowSize)
	stopped := false
	for id, err := range c.dao.ListBlobs(ctx, cfg.Bucket) {
		if err != nil {
			logger.Errorf("listing bucket failed", map[string]any{"error": err})
			stopped = true
			break
		}
		gcCtx.incrementBlobCount()

		if !c.deletable(st, id) {
			continue
		}
		window = append(window, id)
		if len(window) == cfg.DeletionWindowSize {
			if !dispatch(window) {
				stopped = true
				break
			}
			window = make([]blob.ID, 0, cfg.DeletionWindowSize)
		}
	}
	if !stopped && len(window) > 0 && !dispatch(window) {
		stopped = true
	}

	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		logger.Warnf("garbage collection cancelled", map[string]any{"error": err})
		return task.Partial
	}
	if stopped || st.partial.Load() {
		return task.Partial
	}
	return task.Completed
}

// deletable reports whether id is outside the active generation and absent
// from the filter. Unparsable ids are retained.
func (c *Collector) deletable(st *sweepState, id blob.ID) bool {
	gid, err := c.ids.ParseID(id.String())
	if err != nil {
		st.logger.Warnf("retaining blob with unparsable id", map[string]any{"blobId": id.String(), "error": err})
		st.gcCtx.incrementErrorCount()
		st.partial.Store(true)
		return false
	}
	if gid.InActiveGeneration(st.genCfg, st.now) {
		return false
	}
	return !st.filter.Has(saltedKey(st.salt, gid))
}

func (c *Collector) deleteWindow(ctx context.Context, st *sweepState, ids []blob.ID) (result task.Result) {
	defer func() {
		if p := recover(); p != nil {
			st.logger.Errorf("deleting window panicked", map[string]any{"count": len(ids), "panic": fmt.Sprint(p)})
			st.gcCtx.incrementErrorCount()
			result = task.Partial
		}
	}()

	if err := c.dao.DeleteBatch(ctx, st.cfg.Bucket, ids); err != nil {
		st.logger.Errorf("deleting window failed", map[string]any{
			"count":   len(ids),
			"firstId": ids[0].String(),
			"error":   err,
		})
		st.gcCtx.incrementErrorCount()
		return task.Partial
	}
	st.gcCtx.incrementGCedBlobCount(int64(len(ids)))
	st.logger.Debugf("deleted window", map[string]any{"count": len(ids)})
	return task.Completed
}
