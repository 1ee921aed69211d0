// Package task defines the contract between long running maintenance jobs,
// such as blob garbage collection, and whatever schedules them.
//
// Scheduling, persistence of task state and cancellation signaling belong to
// the caller. A Task only runs, reports a [Result] and exposes a progress
// snapshot through [Task.Details].
package task

import (
	"context"
	"fmt"
	"time"

	"github.com/dray-io/blobstore/internal/logging"
)

// Result is the outcome of a task run.
type Result int

const (
	// Completed means every unit of work succeeded.
	Completed Result = iota
	// Partial means some work failed or was skipped.
	Partial
)

func (r Result) String() string {
	switch r {
	case Completed:
		return "COMPLETED"
	case Partial:
		return "PARTIAL"
	default:
		return fmt.Sprintf("Result(%d)", int(r))
	}
}

// MarshalText encodes the result by name.
func (r Result) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText decodes a result name.
func (r *Result) UnmarshalText(b []byte) error {
	switch string(b) {
	case "COMPLETED":
		*r = Completed
	case "PARTIAL":
		*r = Partial
	default:
		return fmt.Errorf("task: unknown result %q", b)
	}
	return nil
}

// Combine returns Partial if either result is Partial.
func (r Result) Combine(other Result) Result {
	if r == Completed && other == Completed {
		return Completed
	}
	return Partial
}

// Combine folds results. No results is Completed.
func Combine(results ...Result) Result {
	acc := Completed
	for _, r := range results {
		acc = acc.Combine(r)
	}
	return acc
}

// Type names a kind of task.
type Type string

// Details is a point-in-time progress report.
type Details interface {
	Timestamp() time.Time
}

// Task is a unit of maintenance work.
type Task interface {
	// Type names the task kind.
	Type() Type

	// Run executes the task. Failures are reported through the result.
	Run(ctx context.Context) Result

	// Details returns a progress snapshot. It is safe to call concurrently
	// with Run.
	Details() Details
}

// Execute runs t, logging its start and outcome. A panic inside Run is
// recovered and reported as Partial.
func Execute(ctx context.Context, t Task, logger *logging.Logger) (result Result) {
	logger = logging.FromCtx(ctx, logger).With(map[string]any{"taskType": string(t.Type())})
	start := time.Now()
	logger.Info("task started")

	defer func() {
		if p := recover(); p != nil {
			logger.Errorf("task panicked", map[string]any{"panic": fmt.Sprint(p)})
			result = Partial
		}
		logger.Infof("task finished", map[string]any{
			"result":     result.String(),
			"durationMs": time.Since(start).Milliseconds(),
		})
	}()

	return t.Run(ctx)
}
