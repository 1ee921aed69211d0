// Package refs records which blobs each subsystem depends on and exposes
// those records to the garbage collector.
//
// A reference is one metadata key per (source, blob) pair. Sources are
// independent namespaces, for instance "mailbox" or "deleted-messages"; a
// blob stays alive while any source holds a reference to it.
package refs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"

	"github.com/benbjohnson/clock"

	"github.com/dray-io/blobstore/internal/blob"
	"github.com/dray-io/blobstore/internal/gc"
	"github.com/dray-io/blobstore/internal/metadata"
)

// DefaultPageSize is the number of keys fetched per List call when
// enumerating a source.
const DefaultPageSize = 1000

// ErrInvalidSource is returned for empty source names or names containing '/'.
var ErrInvalidSource = errors.New("refs: invalid source name")

// Record is the value stored under a reference key.
type Record struct {
	BlobID    string `json:"blobId"`
	AddedAtMs int64  `json:"addedAtMs"`
}

// Option configures a Registry.
type Option func(*Registry)

// WithPrefix sets the root of the reference keyspace.
func WithPrefix(prefix string) Option {
	return func(r *Registry) {
		if prefix != "" {
			r.prefix = prefix
		}
	}
}

// WithPageSize sets the listing page size.
func WithPageSize(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.pageSize = n
		}
	}
}

// WithClock sets the clock stamping new records.
func WithClock(clk clock.Clock) Option {
	return func(r *Registry) {
		if clk != nil {
			r.clock = clk
		}
	}
}

// Registry stores blob references in a metadata store.
type Registry struct {
	meta     metadata.Store
	ids      blob.Factory
	prefix   string
	pageSize int
	clock    clock.Clock
}

// NewRegistry creates a registry over meta. ids decodes stored blob ids and
// should be the factory that minted them.
func NewRegistry(meta metadata.Store, ids blob.Factory, opts ...Option) *Registry {
	r := &Registry{
		meta:     meta,
		ids:      ids,
		prefix:   DefaultPrefix,
		pageSize: DefaultPageSize,
		clock:    clock.New(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Add records that source references id. Adding an existing reference
// refreshes its timestamp.
func (r *Registry) Add(ctx context.Context, source string, id blob.ID) error {
	key, err := referenceKey(r.prefix, source, id)
	if err != nil {
		return err
	}
	data, err := json.Marshal(Record{BlobID: id.String(), AddedAtMs: r.clock.Now().UnixMilli()})
	if err != nil {
		return fmt.Errorf("refs: marshal record: %w", err)
	}
	if err := r.meta.Put(ctx, key, data); err != nil {
		return fmt.Errorf("refs: put reference: %w", err)
	}
	return nil
}

// Remove drops the reference of source to id. Removing an absent reference
// is not an error.
func (r *Registry) Remove(ctx context.Context, source string, id blob.ID) error {
	key, err := referenceKey(r.prefix, source, id)
	if err != nil {
		return err
	}
	if err := r.meta.Delete(ctx, key); err != nil {
		return fmt.Errorf("refs: delete reference: %w", err)
	}
	return nil
}

// Get returns the record of source's reference to id, if any.
func (r *Registry) Get(ctx context.Context, source string, id blob.ID) (Record, bool, error) {
	key, err := referenceKey(r.prefix, source, id)
	if err != nil {
		return Record{}, false, err
	}
	result, err := r.meta.Get(ctx, key)
	if err != nil {
		return Record{}, false, fmt.Errorf("refs: get reference: %w", err)
	}
	if !result.Exists {
		return Record{}, false, nil
	}
	var rec Record
	if err := json.Unmarshal(result.Value, &rec); err != nil {
		return Record{}, false, fmt.Errorf("refs: unmarshal record: %w", err)
	}
	return rec, true, nil
}

// Source returns the references of one source as a garbage collection
// reference source. Enumeration pages through the store and stops at the
// first store error or undecodable key.
func (r *Registry) Source(name string) gc.ReferenceSource {
	return gc.ReferenceSourceFunc(func(ctx context.Context) iter.Seq2[blob.ID, error] {
		return r.list(ctx, name)
	})
}

// Sources returns one reference source per name.
func (r *Registry) Sources(names ...string) []gc.ReferenceSource {
	sources := make([]gc.ReferenceSource, 0, len(names))
	for _, name := range names {
		sources = append(sources, r.Source(name))
	}
	return sources
}

func (r *Registry) list(ctx context.Context, source string) iter.Seq2[blob.ID, error] {
	return func(yield func(blob.ID, error) bool) {
		if err := validSource(source); err != nil {
			yield(nil, err)
			return
		}
		prefix := sourcePrefix(r.prefix, source)
		after := ""
		for {
			page, err := r.meta.List(ctx, prefix, after, r.pageSize)
			if err != nil {
				yield(nil, fmt.Errorf("refs: list %s: %w", source, err))
				return
			}
			for _, kv := range page {
				raw, err := parseReferenceKey(prefix, kv.Key)
				if err != nil {
					yield(nil, err)
					return
				}
				id, err := r.ids.Parse(raw)
				if err != nil {
					yield(nil, fmt.Errorf("refs: decode %q: %w", kv.Key, err))
					return
				}
				if !yield(id, nil) {
					return
				}
			}
			if len(page) < r.pageSize {
				return
			}
			after = page[len(page)-1].Key
		}
	}
}
