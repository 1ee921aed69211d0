// Package health reports liveness and readiness of a blobd process over
// HTTP. Handlers are mounted on the metrics server.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dray-io/blobstore/internal/logging"
)

// ReadinessChecker is implemented by dependencies that can report whether
// they are ready to serve.
type ReadinessChecker interface {
	// Name returns the name of the component for display in health status.
	Name() string

	// CheckReady returns nil if the component is ready, or an error
	// describing why it's not ready.
	CheckReady(ctx context.Context) error
}

// Status represents a health check response.
type Status struct {
	Status string                 `json:"status"`
	Checks map[string]CheckResult `json:"checks,omitempty"`
}

// CheckResult represents the result of a single check.
type CheckResult struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// Status values.
const (
	StatusOK           = "ok"
	StatusNotReady     = "not_ready"
	StatusShuttingDown = "shutting_down"
)

// DefaultReadinessTimeout is the default timeout for readiness checks.
const DefaultReadinessTimeout = 5 * time.Second

// Checker aggregates readiness checks and the shutdown state.
type Checker struct {
	mu       sync.RWMutex
	checks   []ReadinessChecker
	timeout  time.Duration
	logger   *logging.Logger
	shutDown atomic.Bool
}

// NewChecker creates a Checker with no registered checks.
func NewChecker(logger *logging.Logger) *Checker {
	return &Checker{
		timeout: DefaultReadinessTimeout,
		logger:  logging.OrGlobal(logger).Named("health"),
	}
}

// Register adds a component to the readiness checks.
func (c *Checker) Register(checker ReadinessChecker) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks = append(c.checks, checker)
}

// SetTimeout sets the timeout for individual readiness checks.
func (c *Checker) SetTimeout(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timeout = d
}

// SetShuttingDown marks the process as shutting down. Both endpoints
// answer 503 afterwards.
func (c *Checker) SetShuttingDown() {
	c.shutDown.Store(true)
}

// IsShuttingDown returns true once SetShuttingDown was called.
func (c *Checker) IsShuttingDown() bool {
	return c.shutDown.Load()
}

// Liveness reports whether the process is alive and not shutting down.
func (c *Checker) Liveness() Status {
	if c.shutDown.Load() {
		return shuttingDown()
	}
	return Status{Status: StatusOK}
}

// Readiness runs every registered check.
func (c *Checker) Readiness(ctx context.Context) Status {
	if c.shutDown.Load() {
		return shuttingDown()
	}

	c.mu.RLock()
	checks := make([]ReadinessChecker, len(c.checks))
	copy(checks, c.checks)
	timeout := c.timeout
	c.mu.RUnlock()

	status := Status{Status: StatusOK, Checks: make(map[string]CheckResult, len(checks))}
	for _, checker := range checks {
		checkCtx, cancel := context.WithTimeout(ctx, timeout)
		err := checker.CheckReady(checkCtx)
		cancel()

		if err != nil {
			status.Status = StatusNotReady
			status.Checks[checker.Name()] = CheckResult{Healthy: false, Message: err.Error()}
			c.logger.Warnf("readiness check failed", map[string]any{"component": checker.Name(), "error": err})
			continue
		}
		status.Checks[checker.Name()] = CheckResult{Healthy: true, Message: "healthy"}
	}
	return status
}

func shuttingDown() Status {
	return Status{
		Status: StatusShuttingDown,
		Checks: map[string]CheckResult{
			"shutdown": {Healthy: false, Message: "blobd is shutting down"},
		},
	}
}

// LivenessHandler serves /healthz.
func (c *Checker) LivenessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !allowed(w, r) {
			return
		}
		writeStatus(w, r, c.Liveness())
	})
}

// ReadinessHandler serves /readyz.
func (c *Checker) ReadinessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !allowed(w, r) {
			return
		}
		writeStatus(w, r, c.Readiness(r.Context()))
	})
}

func allowed(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func writeStatus(w http.ResponseWriter, r *http.Request, status Status) {
	w.Header().Set("Content-Type", "application/json")
	if status.Status != StatusOK {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	if r.Method != http.MethodHead {
		_ = json.NewEncoder(w).Encode(status)
	}
}
