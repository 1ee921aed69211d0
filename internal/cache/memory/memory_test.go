package memory

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dray-io/blobstore/internal/blob"
	"github.com/dray-io/blobstore/internal/cache"
	"github.com/dray-io/blobstore/internal/cache/cachetest"
)

func newTestCache(t *testing.T, cfg Config) *Cache {
	t.Helper()
	c, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestContract(t *testing.T) {
	cachetest.RunContract(t, newTestCache(t, DefaultConfig()))
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero ttl", func(c *Config) { c.TTL = 0 }},
		{"overflowing ttl", func(c *Config) { c.TTL = cache.MaxTTL + time.Second }},
		{"zero max cost", func(c *Config) { c.MaxCostBytes = 0 }},
		{"negative counters", func(c *Config) { c.NumCounters = -1 }},
		{"zero buffer items", func(c *Config) { c.BufferItems = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			_, err := New(cfg)
			assert.ErrorIs(t, err, cache.ErrInvalidConfig)
		})
	}
}

func TestEntriesExpire(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TTL = 50 * time.Millisecond
	c := newTestCache(t, cfg)

	ctx := context.Background()
	id := blob.PlainID("short-lived")
	require.NoError(t, c.Cache(ctx, id, []byte("x")))

	require.Eventually(t, func() bool {
		_, ok, err := c.Read(ctx, id)
		return err == nil && !ok
	}, 2*time.Second, 10*time.Millisecond)
}

func TestLargePayload(t *testing.T) {
	c := newTestCache(t, DefaultConfig())
	ctx := context.Background()
	id := blob.PlainID("big")
	payload := bytes.Repeat([]byte("b"), 12<<20)

	require.NoError(t, c.Cache(ctx, id, payload))
	got, ok, err := c.Read(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, len(payload), len(got))
}

func TestClosed(t *testing.T) {
	c, err := New(DefaultConfig())
	require.NoError(t, err)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	ctx := context.Background()
	assert.True(t, errors.Is(c.Cache(ctx, blob.PlainID("x"), nil), ErrClosed))
	_, _, err = c.Read(ctx, blob.PlainID("x"))
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, c.Remove(ctx, blob.PlainID("x")), ErrClosed)
}
