package main

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/dray-io/blobstore/internal/blob"
	"github.com/dray-io/blobstore/internal/blobstore"
	"github.com/dray-io/blobstore/internal/cache"
	badgercache "github.com/dray-io/blobstore/internal/cache/badger"
	memorycache "github.com/dray-io/blobstore/internal/cache/memory"
	"github.com/dray-io/blobstore/internal/config"
	"github.com/dray-io/blobstore/internal/gc"
	"github.com/dray-io/blobstore/internal/generation"
	"github.com/dray-io/blobstore/internal/health"
	"github.com/dray-io/blobstore/internal/logging"
	"github.com/dray-io/blobstore/internal/metadata"
	"github.com/dray-io/blobstore/internal/metadata/oxia"
	"github.com/dray-io/blobstore/internal/metrics"
	"github.com/dray-io/blobstore/internal/objectstore"
	"github.com/dray-io/blobstore/internal/objectstore/s3"
	"github.com/dray-io/blobstore/internal/refs"
	"github.com/dray-io/blobstore/internal/task"
)

// ErrNoReferenceSources is returned by RunGC when no reference source is
// configured. Collecting without sources would delete every old blob.
var ErrNoReferenceSources = errors.New("blobd: no reference sources configured")

// DaemonOptions contains the configuration for creating a daemon.
type DaemonOptions struct {
	Config *config.Config
	Logger *logging.Logger

	// Clock drives generations and GC scheduling. Nil uses the wall clock.
	Clock clock.Clock

	// Registry receives all metrics. Nil creates a private registry with
	// the Go runtime and process collectors.
	Registry *prometheus.Registry

	Version   string
	GitCommit string
	BuildTime string
}

// Daemon wires the blob store, its cache, the reference registry and the
// garbage collector from configuration.
type Daemon struct {
	opts     DaemonOptions
	logger   *logging.Logger
	clock    clock.Clock
	registry *prometheus.Registry

	dao           objectstore.DAO
	ids           *generation.Factory
	blobCache     cache.BlobStoreCache
	store         blob.Store
	metaStore     metadata.Store
	refs          *refs.Registry
	collector     *gc.Collector
	gcMetrics     *metrics.GCMetrics
	worker        *gc.Worker
	health        *health.Checker
	metricsServer *metrics.Server

	mu      sync.Mutex
	started bool
	stopped bool
}

// NewDaemon creates a new Daemon instance but does not start it.
func NewDaemon(opts DaemonOptions) (*Daemon, error) {
	if opts.Config == nil {
		return nil, errors.New("blobd: config is required")
	}
	if opts.Logger == nil {
		opts.Logger = logging.DefaultLogger()
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
		opts.Registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	return &Daemon{
		opts:     opts,
		logger:   opts.Logger,
		clock:    opts.Clock,
		registry: opts.Registry,
	}, nil
}

// Start builds every component and starts the metrics server and, when
// enabled, the GC worker. It returns once the daemon is serving.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.started {
		d.mu.Unlock()
		return errors.New("blobd: daemon already started")
	}
	d.started = true
	d.mu.Unlock()

	cfg := d.opts.Config

	d.logger.Infof("starting blobd", map[string]any{
		"objectStore": cfg.ObjectStore.Kind,
		"strategy":    cfg.BlobStore.Strategy,
		"cache":       cfg.Cache.Enabled,
		"gc":          cfg.GC.Enabled,
		"version":     d.opts.Version,
	})

	if err := d.build(ctx); err != nil {
		d.closeComponents()
		return err
	}

	if addr := cfg.Observability.MetricsAddr; addr != "" {
		d.metricsServer = metrics.NewServerWithRegistry(addr, d.registry)
		d.metricsServer.SetLogger(d.logger)
		d.metricsServer.RegisterHandler("/healthz", d.health.LivenessHandler())
		d.metricsServer.RegisterHandler("/readyz", d.health.ReadinessHandler())
		if err := d.metricsServer.Start(); err != nil {
			d.closeComponents()
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
		d.logger.Infof("metrics server started", map[string]any{"addr": d.metricsServer.Addr()})
	}

	if cfg.GC.Enabled {
		worker, err := gc.NewWorker(d.collector, gc.WorkerConfig{
			Interval: cfg.GC.Interval,
			Run:      cfg.GCRunConfig(),
			Metrics:  d.gcMetrics,
		})
		if err != nil {
			d.closeComponents()
			return fmt.Errorf("failed to create gc worker: %w", err)
		}
		d.worker = worker
		d.worker.Start()
		d.logger.Infof("gc worker started", map[string]any{
			"interval": cfg.GC.Interval.String(),
			"sources":  cfg.References.Sources,
		})
	}
	return nil
}

func (d *Daemon) build(ctx context.Context) error {
	cfg := d.opts.Config

	dao, err := newDAO(ctx, cfg.ObjectStore)
	if err != nil {
		return err
	}
	d.dao = objectstore.NewInstrumentedDAO(dao, metrics.NewDAOMetricsWithRegistry(d.registry))

	d.ids, err = generation.NewFactory(blob.NewDigestFactory(), d.clock, cfg.Generation)
	if err != nil {
		return err
	}

	kind, err := blobstore.ParseKind(cfg.BlobStore.Strategy)
	if err != nil {
		return err
	}
	d.store, err = blobstore.New(kind, d.dao, d.ids,
		blobstore.WithLogger(d.logger),
		blobstore.WithDefaultBucket(blob.BucketName(cfg.BlobStore.DefaultBucket)))
	if err != nil {
		return err
	}

	if cfg.Cache.Enabled {
		d.blobCache, err = newCache(cfg.Cache, d.logger)
		if err != nil {
			return err
		}
		d.store, err = cache.NewStore(d.store, d.blobCache, cfg.Cache.StoreConfig(),
			cache.WithMetrics(metrics.NewCacheMetricsWithRegistry(d.registry)),
			cache.WithLogger(d.logger))
		if err != nil {
			return err
		}
	}

	meta, err := newMetadataStore(ctx, cfg.References)
	if err != nil {
		return err
	}
	d.metaStore = metadata.NewInstrumentedStore(meta, metrics.NewMetadataMetricsWithRegistry(d.registry))
	d.refs = refs.NewRegistry(d.metaStore, d.ids,
		refs.WithPrefix(cfg.References.Prefix),
		refs.WithClock(d.clock))

	d.collector = gc.NewCollector(d.dao, d.ids, d.refs.Sources(cfg.References.Sources...),
		gc.WithClock(d.clock),
		gc.WithLogger(d.logger))
	d.gcMetrics = metrics.NewGCMetricsWithRegistry(d.registry)

	d.health = health.NewChecker(d.logger)
	d.health.Register(health.NewObjectStoreChecker(d.dao))
	d.health.Register(health.NewMetadataStoreChecker(d.metaStore))
	return nil
}

func newDAO(ctx context.Context, cfg config.ObjectStoreConfig) (objectstore.DAO, error) {
	switch cfg.Kind {
	case "memory":
		return objectstore.NewMemoryDAO(), nil
	case "s3":
		dao, err := s3.New(ctx, s3.Config{
			BucketPrefix:        cfg.BucketPrefix,
			Namespace:           cfg.Namespace,
			Region:              cfg.Region,
			Endpoint:            cfg.Endpoint,
			AccessKeyID:         cfg.AccessKey,
			SecretAccessKey:     cfg.SecretKey,
			UsePathStyle:        cfg.UsePathStyle,
			CreateBucketRetries: cfg.CreateBucketRetries,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create s3 object store: %w", err)
		}
		return dao, nil
	default:
		return nil, fmt.Errorf("unknown object store kind %q", cfg.Kind)
	}
}

func newCache(cfg config.CacheConfig, logger *logging.Logger) (cache.BlobStoreCache, error) {
	switch cfg.Kind {
	case "memory":
		mc := memorycache.DefaultConfig()
		mc.TTL = cfg.TTL
		mc.MaxCostBytes = cfg.MaxCostBytes
		c, err := memorycache.New(mc)
		if err != nil {
			return nil, fmt.Errorf("failed to create memory cache: %w", err)
		}
		return c, nil
	case "badger":
		c, err := badgercache.New(badgercache.Config{
			Path:       cfg.Path,
			TTL:        cfg.TTL,
			GCInterval: cfg.GCInterval,
			Logger:     logger,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open badger cache: %w", err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown cache kind %q", cfg.Kind)
	}
}

func newMetadataStore(ctx context.Context, cfg config.ReferencesConfig) (metadata.Store, error) {
	switch cfg.Kind {
	case "memory":
		return metadata.NewMockStore(), nil
	case "oxia":
		store, err := oxia.New(ctx, oxia.Config{
			ServiceAddress: cfg.OxiaAddress,
			Namespace:      cfg.OxiaNamespace,
			RequestTimeout: cfg.RequestTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect reference registry: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown references kind %q", cfg.Kind)
	}
}

// Store returns the client facing blob store. Valid after Start.
func (d *Daemon) Store() blob.Store {
	return d.store
}

// References returns the reference registry. Valid after Start.
func (d *Daemon) References() *refs.Registry {
	return d.refs
}

// RunGC runs one collection over the configured bucket and returns its
// counters.
func (d *Daemon) RunGC(ctx context.Context) (gc.Snapshot, task.Result, error) {
	if d.collector == nil {
		return gc.Snapshot{}, task.Partial, errors.New("blobd: daemon not started")
	}
	if len(d.opts.Config.References.Sources) == 0 {
		return gc.Snapshot{}, task.Partial, ErrNoReferenceSources
	}
	t, err := gc.NewTask(d.collector, d.opts.Config.GCRunConfig(), gc.WithMetrics(d.gcMetrics))
	if err != nil {
		return gc.Snapshot{}, task.Partial, err
	}
	result := task.Execute(ctx, t, d.logger)
	return t.Snapshot(), result, nil
}

// Shutdown gracefully stops the daemon.
func (d *Daemon) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if !d.started || d.stopped {
		d.mu.Unlock()
		return nil
	}
	d.stopped = true
	d.mu.Unlock()

	d.logger.Info("shutting down blobd")
	if d.health != nil {
		d.health.SetShuttingDown()
	}

	// Stop the GC worker first; in-flight deletion windows complete.
	if d.worker != nil {
		done := make(chan struct{})
		go func() {
			d.worker.Stop()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			d.logger.Warn("timed out waiting for gc worker")
		}
	}

	if d.metricsServer != nil {
		if err := d.metricsServer.Close(); err != nil {
			d.logger.Warnf("error closing metrics server", map[string]any{"error": err})
		}
	}

	d.closeComponents()
	d.logger.Info("blobd shutdown complete")
	return nil
}

func (d *Daemon) closeComponents() {
	if d.metaStore != nil {
		if err := d.metaStore.Close(); err != nil {
			d.logger.Warnf("error closing metadata store", map[string]any{"error": err})
		}
	}
	if d.blobCache != nil {
		if err := d.blobCache.Close(); err != nil {
			d.logger.Warnf("error closing cache", map[string]any{"error": err})
		}
	}
	if d.dao != nil {
		if err := d.dao.Close(); err != nil {
			d.logger.Warnf("error closing object store", map[string]any{"error": err})
		}
	}
}
