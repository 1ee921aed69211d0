package oxia

import (
	"os"
	"testing"

	"github.com/oxia-db/oxia/oxiad/dataserver"
)

// TestServer is an Oxia server for tests: either embedded or external.
type TestServer struct {
	standalone *dataserver.Standalone
	addr       string
	dir        string
}

// Addr returns the service address of the test server.
func (s *TestServer) Addr() string {
	return s.addr
}

// Close shuts down an embedded server and removes its data directory.
func (s *TestServer) Close() error {
	var err error
	if s.standalone != nil {
		err = s.standalone.Close()
	}
	if s.dir != "" {
		_ = os.RemoveAll(s.dir)
	}
	return err
}

// StartTestServer returns the server named by OXIA_SERVICE_ADDRESS, or
// starts an embedded standalone server closed via t.Cleanup.
func StartTestServer(t *testing.T) *TestServer {
	t.Helper()

	if addr := os.Getenv("OXIA_SERVICE_ADDRESS"); addr != "" {
		t.Logf("Using external Oxia server at %s", addr)
		return &TestServer{addr: addr}
	}

	dir := t.TempDir()
	standalone, err := dataserver.NewStandalone(dataserver.NewTestConfig(dir))
	if err != nil {
		t.Fatalf("failed to start Oxia standalone server: %v", err)
	}

	server := &TestServer{standalone: standalone, addr: standalone.ServiceAddr()}
	t.Cleanup(func() { _ = server.Close() })
	return server
}

// NewTestStore connects a Store to a test server.
func NewTestStore(t *testing.T) *Store {
	t.Helper()
	server := StartTestServer(t)

	store, err := New(t.Context(), Config{ServiceAddress: server.Addr(), Namespace: "default"})
	if err != nil {
		t.Fatalf("failed to connect to Oxia: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}
