package blob

import (
	"context"
	"fmt"
	"io"
)

// BucketName names a partition of the backend store.
type BucketName string

// DefaultBucket is the bucket used when callers do not pick one.
const DefaultBucket BucketName = "default-bucket"

func (b BucketName) String() string {
	return string(b)
}

// Validate rejects empty bucket names.
func (b BucketName) Validate() error {
	if b == "" {
		return ErrInvalidBucket
	}
	return nil
}

// StoragePolicy is a per-call hint controlling cache admission.
type StoragePolicy int

const (
	// LowCost never touches the cache tier.
	LowCost StoragePolicy = iota
	// SizeBased caches payloads up to the configured size threshold.
	SizeBased
	// HighPerformance caches payloads regardless of size.
	HighPerformance
)

func (p StoragePolicy) String() string {
	switch p {
	case LowCost:
		return "LOW_COST"
	case SizeBased:
		return "SIZE_BASED"
	case HighPerformance:
		return "HIGH_PERFORMANCE"
	default:
		return fmt.Sprintf("StoragePolicy(%d)", int(p))
	}
}

// ParseStoragePolicy decodes the String form of a policy.
func ParseStoragePolicy(s string) (StoragePolicy, error) {
	switch s {
	case "LOW_COST":
		return LowCost, nil
	case "SIZE_BASED":
		return SizeBased, nil
	case "HIGH_PERFORMANCE":
		return HighPerformance, nil
	default:
		return 0, fmt.Errorf("blob: unknown storage policy %q", s)
	}
}

// Store is the blob storage contract exposed to clients.
//
// Thread Safety: Implementations must be safe for concurrent use.
// Concurrent Save and Delete of the same id are not serialized.
type Store interface {
	// Save stores data in bucket and returns its identifier.
	Save(ctx context.Context, bucket BucketName, data []byte, policy StoragePolicy) (ID, error)

	// SaveStream stores the content of r in bucket.
	SaveStream(ctx context.Context, bucket BucketName, r io.Reader, policy StoragePolicy) (ID, error)

	// Read opens the blob for streaming. The caller must close the reader.
	//
	// Returns an error wrapping ErrNotFound when the blob does not exist.
	Read(ctx context.Context, bucket BucketName, id ID, policy StoragePolicy) (io.ReadCloser, error)

	// ReadBytes returns the whole blob.
	//
	// Returns an error wrapping ErrNotFound when the blob does not exist.
	ReadBytes(ctx context.Context, bucket BucketName, id ID, policy StoragePolicy) ([]byte, error)

	// Delete removes the blob. Deleting a missing blob succeeds.
	Delete(ctx context.Context, bucket BucketName, id ID) error

	// DeleteBucket removes every blob in bucket and the bucket itself.
	DeleteBucket(ctx context.Context, bucket BucketName) error

	// ListBuckets returns the buckets known to the backend.
	ListBuckets(ctx context.Context) ([]BucketName, error)

	// DefaultBucket returns the bucket used when callers do not pick one.
	DefaultBucket() BucketName
}
