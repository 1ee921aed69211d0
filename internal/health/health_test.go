package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dray-io/blobstore/internal/logging"
	"github.com/dray-io/blobstore/internal/metadata"
	"github.com/dray-io/blobstore/internal/objectstore"
)

func serve(t *testing.T, h http.Handler, method string) (int, Status) {
	t.Helper()
	req := httptest.NewRequest(method, "/", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var status Status
	if method == http.MethodGet && w.Code != http.StatusMethodNotAllowed {
		if err := json.NewDecoder(w.Body).Decode(&status); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
	}
	return w.Code, status
}

func TestLiveness(t *testing.T) {
	c := NewChecker(logging.Nop())

	code, status := serve(t, c.LivenessHandler(), http.MethodGet)
	if code != http.StatusOK || status.Status != StatusOK {
		t.Fatalf("expected 200 ok, got %d %q", code, status.Status)
	}

	c.SetShuttingDown()
	code, status = serve(t, c.LivenessHandler(), http.MethodGet)
	if code != http.StatusServiceUnavailable {
		t.Errorf("expected status %d, got %d", http.StatusServiceUnavailable, code)
	}
	if status.Status != StatusShuttingDown {
		t.Errorf("expected status %q, got %q", StatusShuttingDown, status.Status)
	}
	if check, ok := status.Checks["shutdown"]; !ok || check.Healthy {
		t.Error("expected shutdown check to be unhealthy")
	}
}

func TestReadinessAllHealthy(t *testing.T) {
	c := NewChecker(logging.Nop())
	c.Register(NewMetadataStoreChecker(metadata.NewMockStore()))
	c.Register(NewObjectStoreChecker(objectstore.NewMemoryDAO()))

	code, status := serve(t, c.ReadinessHandler(), http.MethodGet)
	if code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, code)
	}
	for _, name := range []string{"metadata_store", "object_store"} {
		if check, ok := status.Checks[name]; !ok || !check.Healthy {
			t.Errorf("expected %s to be healthy, got %+v", name, status.Checks[name])
		}
	}
}

func TestReadinessFailingDependency(t *testing.T) {
	c := NewChecker(logging.Nop())
	dao := objectstore.NewMemoryDAO()
	_ = dao.Close()
	meta := metadata.NewMockStore()
	_ = meta.Close()
	c.Register(NewObjectStoreChecker(dao))
	c.Register(NewMetadataStoreChecker(meta))
	c.Register(NewFuncChecker("gc_worker", func(context.Context) error { return nil }))

	code, status := serve(t, c.ReadinessHandler(), http.MethodGet)
	if code != http.StatusServiceUnavailable {
		t.Fatalf("expected status %d, got %d", http.StatusServiceUnavailable, code)
	}
	if status.Status != StatusNotReady {
		t.Errorf("expected status %q, got %q", StatusNotReady, status.Status)
	}
	if status.Checks["object_store"].Healthy || status.Checks["metadata_store"].Healthy {
		t.Errorf("expected closed stores to be unhealthy: %+v", status.Checks)
	}
	if !status.Checks["gc_worker"].Healthy {
		t.Error("expected gc_worker to be healthy")
	}
}

func TestReadinessTimeout(t *testing.T) {
	c := NewChecker(logging.Nop())
	c.SetTimeout(20 * time.Millisecond)
	c.Register(NewFuncChecker("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))

	status := c.Readiness(context.Background())
	if status.Status != StatusNotReady {
		t.Fatalf("expected %q, got %q", StatusNotReady, status.Status)
	}
	if msg := status.Checks["slow"].Message; msg != context.DeadlineExceeded.Error() {
		t.Errorf("unexpected message %q", msg)
	}
}

func TestReadinessWhileShuttingDown(t *testing.T) {
	c := NewChecker(logging.Nop())
	called := false
	c.Register(NewFuncChecker("never", func(context.Context) error {
		called = true
		return errors.New("unexpected")
	}))
	c.SetShuttingDown()

	if !c.IsShuttingDown() {
		t.Fatal("expected shutting down")
	}
	if status := c.Readiness(context.Background()); status.Status != StatusShuttingDown {
		t.Errorf("expected %q, got %q", StatusShuttingDown, status.Status)
	}
	if called {
		t.Error("checks must not run while shutting down")
	}
}

func TestHandlersRejectOtherMethods(t *testing.T) {
	c := NewChecker(logging.Nop())
	for _, h := range []http.Handler{c.LivenessHandler(), c.ReadinessHandler()} {
		code, _ := serve(t, h, http.MethodPost)
		if code != http.StatusMethodNotAllowed {
			t.Errorf("expected status %d, got %d", http.StatusMethodNotAllowed, code)
		}
	}

	code, _ := serve(t, c.LivenessHandler(), http.MethodHead)
	if code != http.StatusOK {
		t.Errorf("expected HEAD to return %d, got %d", http.StatusOK, code)
	}
}
