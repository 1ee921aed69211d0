package metadata

import (
	"context"
	"slices"
	"strings"
	"sync"
)

// MockStore implements Store in memory.
// It is exported so that tests in other packages can use it.
type MockStore struct {
	mu       sync.RWMutex
	data     map[string][]byte
	closed   bool
	listErr  error
	putCalls int
}

// NewMockStore creates a new MockStore for testing.
func NewMockStore() *MockStore {
	return &MockStore{
		data: make(map[string][]byte),
	}
}

// SetListError makes subsequent List calls fail with err. A nil err
// restores normal behavior.
func (m *MockStore) SetListError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listErr = err
}

// PutCalls returns the number of Put calls made so far.
func (m *MockStore) PutCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.putCalls
}

func (m *MockStore) Get(_ context.Context, key string) (GetResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return GetResult{}, ErrStoreClosed
	}
	value, ok := m.data[key]
	if !ok {
		return GetResult{Exists: false}, nil
	}
	return GetResult{Value: value, Exists: true}, nil
}

func (m *MockStore) Put(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	m.putCalls++
	m.data[key] = slices.Clone(value)
	return nil
}

func (m *MockStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	delete(m.data, key)
	return nil
}

func (m *MockStore) List(_ context.Context, prefix, startAfter string, limit int) ([]KV, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}
	if m.listErr != nil {
		return nil, m.listErr
	}

	var keys []string
	for key := range m.data {
		if !strings.HasPrefix(key, prefix) || key <= startAfter {
			continue
		}
		if strings.HasSuffix(prefix, "/") && strings.Contains(key[len(prefix):], "/") {
			continue
		}
		keys = append(keys, key)
	}
	slices.Sort(keys)

	if limit > 0 && len(keys) > limit {
		keys = keys[:limit]
	}
	result := make([]KV, len(keys))
	for i, key := range keys {
		result[i] = KV{Key: key, Value: m.data[key]}
	}
	return result, nil
}

func (m *MockStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

var _ Store = (*MockStore)(nil)
