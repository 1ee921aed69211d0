package objectstore

import (
	"strings"

	"github.com/dray-io/blobstore/internal/blob"
)

// BucketResolver maps logical bucket names to physical backend bucket names.
//
// When Namespace is set, the default bucket lives in the bucket named
// Namespace. Every other bucket is stored as Prefix + name.
type BucketResolver struct {
	Prefix        string
	Namespace     string
	DefaultBucket blob.BucketName
}

// NewBucketResolver returns a resolver for blob.DefaultBucket.
func NewBucketResolver(prefix, namespace string) BucketResolver {
	return BucketResolver{
		Prefix:        prefix,
		Namespace:     namespace,
		DefaultBucket: blob.DefaultBucket,
	}
}

// Resolve returns the physical name of bucket.
func (r BucketResolver) Resolve(bucket blob.BucketName) string {
	if r.Namespace != "" && bucket == r.DefaultBucket {
		return r.Namespace
	}
	return r.Prefix + string(bucket)
}

// Unresolve returns the logical name of a physical bucket and whether the
// bucket belongs to this resolver.
func (r BucketResolver) Unresolve(physical string) (blob.BucketName, bool) {
	if r.Namespace != "" && physical == r.Namespace {
		return r.DefaultBucket, true
	}
	if !strings.HasPrefix(physical, r.Prefix) {
		return "", false
	}
	name := strings.TrimPrefix(physical, r.Prefix)
	if name == "" {
		return "", false
	}
	return blob.BucketName(name), true
}
