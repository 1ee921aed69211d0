package cachetest

import (
	"bytes"
	"context"
	"errors"
	"sync"

	"github.com/dray-io/blobstore/internal/blob"
	"github.com/dray-io/blobstore/internal/cache"
)

// ErrCacheDown is returned by FailingCache.
var ErrCacheDown = errors.New("cache unavailable")

// MapCache is a map backed cache without TTL, useful to inspect contents.
type MapCache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

// NewMapCache creates an empty MapCache.
func NewMapCache() *MapCache {
	return &MapCache{entries: make(map[string][]byte)}
}

func (m *MapCache) Cache(ctx context.Context, id blob.ID, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[id.String()] = bytes.Clone(data)
	return nil
}

func (m *MapCache) Read(ctx context.Context, id blob.ID) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.entries[id.String()]
	if !ok {
		return nil, false, nil
	}
	return bytes.Clone(data), true, nil
}

func (m *MapCache) Remove(ctx context.Context, id blob.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, id.String())
	return nil
}

func (m *MapCache) Close() error {
	return nil
}

// Contains reports whether id is cached.
func (m *MapCache) Contains(id blob.ID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[id.String()]
	return ok
}

// Len returns the number of cached entries.
func (m *MapCache) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// FailingCache fails every operation with ErrCacheDown.
type FailingCache struct{}

func (FailingCache) Cache(context.Context, blob.ID, []byte) error {
	return ErrCacheDown
}

func (FailingCache) Read(context.Context, blob.ID) ([]byte, bool, error) {
	return nil, false, ErrCacheDown
}

func (FailingCache) Remove(context.Context, blob.ID) error {
	return ErrCacheDown
}

func (FailingCache) Close() error {
	return nil
}

// SlowCache blocks reads and writes until the context is done.
type SlowCache struct {
	*MapCache
}

func (s SlowCache) Cache(ctx context.Context, id blob.ID, data []byte) error {
	<-ctx.Done()
	return ctx.Err()
}

func (s SlowCache) Read(ctx context.Context, id blob.ID) ([]byte, bool, error) {
	<-ctx.Done()
	return nil, false, ctx.Err()
}

var (
	_ cache.BlobStoreCache = (*MapCache)(nil)
	_ cache.BlobStoreCache = FailingCache{}
	_ cache.BlobStoreCache = SlowCache{}
)
