package gc

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dray-io/blobstore/internal/blob"
	"github.com/dray-io/blobstore/internal/logging"
	"github.com/dray-io/blobstore/internal/task"
)

// TaskType identifies bloom filter garbage collection tasks.
const TaskType task.Type = "BloomFilterBlobGarbageCollection"

// MetricsRecorder receives the outcome of finished runs.
// This allows the gc package to be decoupled from the metrics package.
type MetricsRecorder interface {
	RecordRun(result string, durationSeconds float64, references, blobs, deleted, errors int64)
}

// TaskOption configures a Task.
type TaskOption func(*Task)

// WithMetrics sets the run metrics recorder.
func WithMetrics(m MetricsRecorder) TaskOption {
	return func(t *Task) {
		t.metrics = m
	}
}

// Task adapts one collection run to the task contract. A Task is meant to
// run once; its counters accumulate across runs.
type Task struct {
	collector *Collector
	cfg       RunConfig
	gcCtx     *Context
	metrics   MetricsRecorder
}

// NewTask validates cfg and returns a task running collector over it.
func NewTask(collector *Collector, cfg RunConfig, opts ...TaskOption) (*Task, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	t := &Task{
		collector: collector,
		cfg:       cfg,
		gcCtx:     NewContext(cfg.ExpectedBlobCount, cfg.AssociatedProbability, collector.Clock()),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

func (t *Task) Type() task.Type {
	return TaskType
}

// Run executes the collection under a fresh run id.
func (t *Task) Run(ctx context.Context) task.Result {
	if logging.RunIDFromCtx(ctx) == "" {
		ctx = logging.WithRunIDCtx(ctx, uuid.NewString())
	}
	clk := t.collector.Clock()
	start := clk.Now()

	result := t.collector.Run(ctx, t.cfg, t.gcCtx)

	if t.metrics != nil {
		snap := t.gcCtx.Snapshot()
		t.metrics.RecordRun(result.String(), clk.Since(start).Seconds(),
			snap.ReferenceSourceCount, snap.BlobCount, snap.GCedBlobCount, snap.ErrorCount)
	}
	return result
}

// Details returns the current counters.
func (t *Task) Details() task.Details {
	return t.gcCtx.Snapshot()
}

// Snapshot returns the current counters.
func (t *Task) Snapshot() Snapshot {
	return t.gcCtx.Snapshot()
}

// Config returns the run configuration.
func (t *Task) Config() RunConfig {
	return t.cfg
}

// TaskDTO is the persisted description of a task, sufficient to rebuild it.
type TaskDTO struct {
	Type                  string  `json:"type"`
	BucketName            string  `json:"bucketName"`
	ExpectedBlobCount     int64   `json:"expectedBlobCount"`
	DeletionWindowSize    int     `json:"deletionWindowSize"`
	AssociatedProbability float64 `json:"associatedProbability"`
}

// DTO describes t for persistence. MaxInFlightBatches is not persisted.
func (t *Task) DTO() TaskDTO {
	return TaskDTO{
		Type:                  string(TaskType),
		BucketName:            t.cfg.Bucket.String(),
		ExpectedBlobCount:     t.cfg.ExpectedBlobCount,
		DeletionWindowSize:    t.cfg.DeletionWindowSize,
		AssociatedProbability: t.cfg.AssociatedProbability,
	}
}

// NewTaskFromDTO rebuilds a task persisted with DTO.
func NewTaskFromDTO(collector *Collector, dto TaskDTO, opts ...TaskOption) (*Task, error) {
	if dto.Type != string(TaskType) {
		return nil, fmt.Errorf("%w: unexpected task type %q", ErrInvalidRunConfig, dto.Type)
	}
	return NewTask(collector, RunConfig{
		Bucket:                blob.BucketName(dto.BucketName),
		ExpectedBlobCount:     dto.ExpectedBlobCount,
		AssociatedProbability: dto.AssociatedProbability,
		DeletionWindowSize:    dto.DeletionWindowSize,
	}, opts...)
}

var _ task.Task = (*Task)(nil)
var _ task.Details = Snapshot{}
