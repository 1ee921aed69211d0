// Package objectstore defines the backend contract used by the blob storage
// strategies: a bucketed key/value object store addressed by blob ids.
//
// # Usage
//
// The primary interface is [DAO]:
//
//	dao, err := s3.New(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer dao.Close()
//
//	err = dao.Save(ctx, blob.DefaultBucket, id, payload)
//
//	data, err := dao.ReadBytes(ctx, blob.DefaultBucket, id)
//	if err != nil {
//	    if errors.Is(err, blob.ErrNotFound) {
//	        // Handle missing blob
//	    }
//	    return err
//	}
//
// Listing is streamed so callers can process buckets holding millions of
// blobs without materializing them:
//
//	for id, err := range dao.ListBlobs(ctx, bucket) {
//	    if err != nil {
//	        return err
//	    }
//	    ...
//	}
//
// [MemoryDAO] is an in-process implementation used by tests and the
// "memory" backend kind. [InstrumentedDAO] records per-operation metrics
// around any DAO.
package objectstore

import (
	"context"
	"io"
	"iter"

	"github.com/dray-io/blobstore/internal/blob"
)

// DAO is the interface for backend blob storage operations.
//
// All methods accept a context for cancellation and deadline propagation.
// Implementations should return errors wrapped in [blob.Error] carrying the
// blob sentinels ([blob.ErrNotFound], [blob.ErrBucketNotFound], ...).
//
// Thread Safety: Implementations must be safe for concurrent use.
type DAO interface {
	// Save stores data under id in bucket, replacing any previous content.
	//
	// Implementations may create a missing bucket.
	Save(ctx context.Context, bucket blob.BucketName, id blob.ID, data []byte) error

	// SaveStream stores the content of r under id in bucket.
	SaveStream(ctx context.Context, bucket blob.BucketName, id blob.ID, r io.Reader) error

	// Read opens the blob for streaming. The caller must close the reader.
	//
	// Returns an error wrapping blob.ErrNotFound if the blob or its bucket
	// does not exist.
	Read(ctx context.Context, bucket blob.BucketName, id blob.ID) (io.ReadCloser, error)

	// ReadBytes returns the whole blob.
	//
	// Returns an error wrapping blob.ErrNotFound if the blob or its bucket
	// does not exist.
	ReadBytes(ctx context.Context, bucket blob.BucketName, id blob.ID) ([]byte, error)

	// Exists reports whether a blob is stored under id.
	Exists(ctx context.Context, bucket blob.BucketName, id blob.ID) (bool, error)

	// Delete removes a blob.
	//
	// Delete is idempotent: deleting a missing blob or a blob of a missing
	// bucket succeeds silently.
	Delete(ctx context.Context, bucket blob.BucketName, id blob.ID) error

	// DeleteBatch removes several blobs from one bucket, using bulk requests
	// where the backend supports them. Missing blobs are ignored.
	DeleteBatch(ctx context.Context, bucket blob.BucketName, ids []blob.ID) error

	// ListBlobs streams the ids stored in bucket. A missing bucket yields
	// nothing. Iteration stops at the first error, which is yielded with a
	// nil id.
	ListBlobs(ctx context.Context, bucket blob.BucketName) iter.Seq2[blob.ID, error]

	// ListBuckets returns the buckets owned by this DAO.
	ListBuckets(ctx context.Context) ([]blob.BucketName, error)

	// DeleteBucket removes every blob of bucket, then the bucket. A missing
	// bucket succeeds silently.
	DeleteBucket(ctx context.Context, bucket blob.BucketName) error

	// Close releases resources associated with the DAO.
	//
	// After Close returns, all other methods will return errors.
	Close() error
}
