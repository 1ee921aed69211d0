// Package blobstore implements the storage strategies that turn a backend
// [objectstore.DAO] into a [blob.Store].
//
// Two strategies are available, selected once at construction:
//
//   - [KindPassThrough] uploads every payload under a freshly minted id.
//   - [KindDeduplication] derives a content id from the payload and uploads
//     only when the backend does not already hold an object for it.
//
// Reads and deletes behave identically in both strategies. Storage policies
// are accepted for interface compatibility and ignored at this layer; cache
// admission is handled by the cache-aware store.
package blobstore

import (
	"context"
	"fmt"
	"io"

	"github.com/dray-io/blobstore/internal/blob"
	"github.com/dray-io/blobstore/internal/logging"
	"github.com/dray-io/blobstore/internal/objectstore"
)

// Kind selects a storage strategy.
type Kind string

const (
	KindPassThrough   Kind = "passthrough"
	KindDeduplication Kind = "deduplication"
)

// ParseKind decodes a strategy name.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindPassThrough, KindDeduplication:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("blobstore: unknown strategy %q", s)
	}
}

// Option configures a strategy.
type Option func(*base)

// WithLogger sets the strategy logger.
func WithLogger(logger *logging.Logger) Option {
	return func(b *base) {
		b.logger = logger
	}
}

// WithDefaultBucket overrides the bucket reported by DefaultBucket.
func WithDefaultBucket(bucket blob.BucketName) Option {
	return func(b *base) {
		b.defaultBucket = bucket
	}
}

// New returns the strategy named by kind.
func New(kind Kind, dao objectstore.DAO, factory blob.Factory, opts ...Option) (blob.Store, error) {
	switch kind {
	case KindPassThrough:
		return NewPassThrough(dao, factory, opts...), nil
	case KindDeduplication:
		return NewDeduplication(dao, factory, opts...), nil
	default:
		return nil, fmt.Errorf("blobstore: unknown strategy %q", kind)
	}
}

// base holds the behavior shared by both strategies.
type base struct {
	dao           objectstore.DAO
	factory       blob.Factory
	defaultBucket blob.BucketName
	logger        *logging.Logger
}

func newBase(dao objectstore.DAO, factory blob.Factory, component string, opts []Option) base {
	b := base{
		dao:           dao,
		factory:       factory,
		defaultBucket: blob.DefaultBucket,
	}
	for _, opt := range opts {
		opt(&b)
	}
	b.logger = logging.OrGlobal(b.logger).Named(component)
	return b
}

func (b *base) Read(ctx context.Context, bucket blob.BucketName, id blob.ID, _ blob.StoragePolicy) (io.ReadCloser, error) {
	return b.dao.Read(ctx, bucket, id)
}

func (b *base) ReadBytes(ctx context.Context, bucket blob.BucketName, id blob.ID, _ blob.StoragePolicy) ([]byte, error) {
	return b.dao.ReadBytes(ctx, bucket, id)
}

func (b *base) Delete(ctx context.Context, bucket blob.BucketName, id blob.ID) error {
	return b.dao.Delete(ctx, bucket, id)
}

func (b *base) DeleteBucket(ctx context.Context, bucket blob.BucketName) error {
	return b.dao.DeleteBucket(ctx, bucket)
}

func (b *base) ListBuckets(ctx context.Context) ([]blob.BucketName, error) {
	return b.dao.ListBuckets(ctx)
}

func (b *base) DefaultBucket() blob.BucketName {
	return b.defaultBucket
}
