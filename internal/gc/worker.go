package gc

import (
	"context"
	"sync"
	"time"

	"github.com/dray-io/blobstore/internal/logging"
	"github.com/dray-io/blobstore/internal/task"
)

// DefaultInterval is the default period between scheduled runs.
const DefaultInterval = 24 * time.Hour

// WorkerConfig configures the periodic GC worker.
type WorkerConfig struct {
	// Interval is the time between runs.
	// Default: 24h
	Interval time.Duration

	// Run describes each run.
	Run RunConfig

	// Metrics receives the outcome of every run. Optional.
	Metrics MetricsRecorder
}

// Worker runs a fresh garbage collection task on a fixed interval. The
// first run starts immediately.
type Worker struct {
	collector *Collector
	config    WorkerConfig
	logger    *logging.Logger

	mu       sync.Mutex
	running  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
	cancel   context.CancelFunc
	last     Snapshot
	lastRes  task.Result
	runCount int
}

// NewWorker validates the run configuration and creates a worker.
func NewWorker(collector *Collector, config WorkerConfig) (*Worker, error) {
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}
	if err := config.Run.Validate(); err != nil {
		return nil, err
	}
	return &Worker{
		collector: collector,
		config:    config,
		logger:    collector.logger.Named("gc.worker"),
	}, nil
}

// Start begins the worker background loop.
func (w *Worker) Start() {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.mu.Unlock()

	go w.run(ctx)
}

// Stop cancels a run in progress and waits for the loop to exit. In-flight
// deletion windows complete first.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	close(w.stopCh)
	w.cancel()
	w.mu.Unlock()

	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()
}

func (w *Worker) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := w.collector.Clock().Ticker(w.config.Interval)
	defer ticker.Stop()

	w.RunOnce(ctx)

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce executes a single run and records its outcome.
func (w *Worker) RunOnce(ctx context.Context) task.Result {
	var opts []TaskOption
	if w.config.Metrics != nil {
		opts = append(opts, WithMetrics(w.config.Metrics))
	}
	t, err := NewTask(w.collector, w.config.Run, opts...)
	if err != nil {
		w.logger.Errorf("creating gc task failed", map[string]any{"error": err})
		return task.Partial
	}

	result := task.Execute(ctx, t, w.logger)

	w.mu.Lock()
	w.last = t.Snapshot()
	w.lastRes = result
	w.runCount++
	w.mu.Unlock()
	return result
}

// LastRun returns the counters and result of the most recent run, and
// whether any run has finished.
func (w *Worker) LastRun() (Snapshot, task.Result, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last, w.lastRes, w.runCount > 0
}

// RunCount returns the number of finished runs.
func (w *Worker) RunCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.runCount
}
