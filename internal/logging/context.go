package logging

import (
	"context"
)

type contextKey int

const (
	loggerKey contextKey = iota
	runIDKey
)

// WithLoggerCtx returns a new context with the logger attached.
func WithLoggerCtx(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// WithRunIDCtx returns a new context carrying a GC run id.
func WithRunIDCtx(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromCtx extracts the GC run id from the context.
func RunIDFromCtx(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey).(string)
	return id
}

// FromCtx returns the logger attached to ctx, falling back to base and then
// to the global logger. A run id found in ctx is applied to the result.
func FromCtx(ctx context.Context, base *Logger) *Logger {
	l, ok := ctx.Value(loggerKey).(*Logger)
	if !ok {
		l = OrGlobal(base)
	}
	if id := RunIDFromCtx(ctx); id != "" && l.runID != id {
		l = l.WithRunID(id)
	}
	return l
}
