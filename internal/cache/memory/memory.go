// Package memory implements an in-process blob cache on top of ristretto.
//
// Entry cost is the payload length, so MaxCostBytes bounds the memory held
// by cached payloads. Writes wait for the ristretto buffers to drain before
// returning so a Read issued after Cache observes the entry, unless the
// admission policy rejected it.
package memory

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/dray-io/blobstore/internal/blob"
	"github.com/dray-io/blobstore/internal/cache"
)

// Config configures the ristretto cache.
type Config struct {
	// TTL is the lifetime of an entry.
	TTL time.Duration

	// MaxCostBytes bounds the total payload bytes held.
	// Default: 256 MiB
	MaxCostBytes int64

	// NumCounters is the number of admission frequency counters. Ristretto
	// recommends ten times the expected number of entries.
	// Default: 1e6
	NumCounters int64

	// BufferItems is the size of the Get buffers.
	// Default: 64
	BufferItems int64
}

// DefaultConfig returns a configuration sized for a few hundred megabytes.
func DefaultConfig() Config {
	return Config{
		TTL:          cache.DefaultTTL,
		MaxCostBytes: 256 << 20,
		NumCounters:  1_000_000,
		BufferItems:  64,
	}
}

// ErrClosed is returned after Close.
var ErrClosed = errors.New("memory cache: closed")

// Cache is a BlobStoreCache backed by ristretto.
type Cache struct {
	cache *ristretto.Cache[string, []byte]
	ttl   time.Duration
}

// New creates a ristretto backed cache.
func New(cfg Config) (*Cache, error) {
	if cfg.TTL <= 0 || cfg.TTL > cache.MaxTTL {
		return nil, fmt.Errorf("%w: ttl %s out of range", cache.ErrInvalidConfig, cfg.TTL)
	}
	if cfg.MaxCostBytes <= 0 || cfg.NumCounters <= 0 || cfg.BufferItems <= 0 {
		return nil, fmt.Errorf("%w: ristretto sizes must be positive", cache.ErrInvalidConfig)
	}
	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters:        cfg.NumCounters,
		MaxCost:            cfg.MaxCostBytes,
		BufferItems:        cfg.BufferItems,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("memory cache: %w", err)
	}
	return &Cache{cache: c, ttl: cfg.TTL}, nil
}

func (c *Cache) Cache(ctx context.Context, id blob.ID, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.cache == nil {
		return ErrClosed
	}
	c.cache.SetWithTTL(id.String(), bytes.Clone(data), int64(len(data)), c.ttl)
	c.cache.Wait()
	return nil
}

func (c *Cache) Read(ctx context.Context, id blob.ID) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if c.cache == nil {
		return nil, false, ErrClosed
	}
	data, ok := c.cache.Get(id.String())
	if !ok {
		return nil, false, nil
	}
	return bytes.Clone(data), true, nil
}

func (c *Cache) Remove(ctx context.Context, id blob.ID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.cache == nil {
		return ErrClosed
	}
	c.cache.Del(id.String())
	c.cache.Wait()
	return nil
}

// Close stops the ristretto goroutines. It must not be called concurrently
// with other methods.
func (c *Cache) Close() error {
	if c.cache != nil {
		c.cache.Close()
		c.cache = nil
	}
	return nil
}

var _ cache.BlobStoreCache = (*Cache)(nil)
