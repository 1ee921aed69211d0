// Package cache provides the cache tier of the blob storage engine.
//
// A [BlobStoreCache] is a time and size bounded side store keyed by blob id.
// Entries are never durable and may vanish at any time. [Store] composes a
// backend [blob.Store] with a cache and applies the storage policy of each
// call to decide whether the cache is written or consulted.
//
// Only the backend's default bucket is cached. Cache errors never reach the
// caller of a [Store]: they are logged and the operation proceeds as if the
// cache were empty.
//
// Implementations live in the memory (ristretto) and badger subpackages.
package cache

import (
	"context"

	"github.com/dray-io/blobstore/internal/blob"
)

// BlobStoreCache is a best-effort blob cache.
//
// Implementations report failures through returned errors; swallowing them
// is the caller's responsibility.
//
// Thread Safety: Implementations must be safe for concurrent use. There is no
// coordination across keys.
type BlobStoreCache interface {
	// Cache stores data under id, replacing any previous entry.
	Cache(ctx context.Context, id blob.ID, data []byte) error

	// Read returns the cached bytes. An absent or expired entry returns
	// (nil, false, nil).
	Read(ctx context.Context, id blob.ID) ([]byte, bool, error)

	// Remove evicts id. Removing an absent entry succeeds.
	Remove(ctx context.Context, id blob.ID) error

	// Close releases resources held by the cache.
	Close() error
}
