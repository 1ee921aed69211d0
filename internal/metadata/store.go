// Package metadata defines the key/value store holding blob reference
// records. The production implementation uses Oxia.
//
// Keys are hierarchical, '/' separated paths. Listing is prefix based and
// paged with a "start after" cursor so callers can walk millions of keys in
// bounded memory:
//
//	after := ""
//	for {
//	    page, err := store.List(ctx, "/blobstore/refs/mailbox/", after, 1000)
//	    if err != nil || len(page) == 0 {
//	        break
//	    }
//	    ...
//	    after = page[len(page)-1].Key
//	}
package metadata

import (
	"context"
	"errors"
)

// Common errors returned by Store operations.
var (
	// ErrStoreClosed is returned when operations are attempted on a closed store.
	ErrStoreClosed = errors.New("metadata: store closed")
)

// KV represents a key-value pair.
type KV struct {
	Key   string
	Value []byte
}

// GetResult is the result of a Get operation.
type GetResult struct {
	Value  []byte
	Exists bool
}

// Store is the interface for metadata storage.
//
// Thread Safety: Implementations must be safe for concurrent use.
type Store interface {
	// Get retrieves a value by key.
	// Returns GetResult with Exists=false if the key does not exist (not an error).
	Get(ctx context.Context, key string) (GetResult, error)

	// Put stores a value, replacing any previous one.
	Put(ctx context.Context, key string, value []byte) error

	// Delete removes a key. Returns nil if the key does not exist.
	Delete(ctx context.Context, key string) error

	// List returns keys starting with prefix and sorting after startAfter,
	// in the store's key order. An empty startAfter lists from the first key.
	// If limit is 0 or negative, returns all matching keys.
	//
	// When prefix ends with '/', only direct children are returned.
	List(ctx context.Context, prefix, startAfter string, limit int) ([]KV, error)

	// Close releases resources held by the store.
	// After Close is called, all operations will return ErrStoreClosed.
	Close() error
}
