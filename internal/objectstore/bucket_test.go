package objectstore

import (
	"testing"

	"github.com/dray-io/blobstore/internal/blob"
)

func TestBucketResolver(t *testing.T) {
	tests := []struct {
		name     string
		resolver BucketResolver
		bucket   blob.BucketName
		physical string
	}{
		{"no prefix", NewBucketResolver("", ""), "tenant-a", "tenant-a"},
		{"prefix", NewBucketResolver("james-", ""), "tenant-a", "james-tenant-a"},
		{"prefix default", NewBucketResolver("james-", ""), blob.DefaultBucket, "james-default-bucket"},
		{"namespace default", NewBucketResolver("james-", "mails"), blob.DefaultBucket, "mails"},
		{"namespace other", NewBucketResolver("james-", "mails"), "tenant-a", "james-tenant-a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.resolver.Resolve(tt.bucket); got != tt.physical {
				t.Errorf("Resolve(%q) = %q, want %q", tt.bucket, got, tt.physical)
			}
			back, ok := tt.resolver.Unresolve(tt.physical)
			if !ok || back != tt.bucket {
				t.Errorf("Unresolve(%q) = %q, %v, want %q", tt.physical, back, ok, tt.bucket)
			}
		})
	}
}

func TestBucketResolverIgnoresForeignBuckets(t *testing.T) {
	r := NewBucketResolver("james-", "mails")

	for _, physical := range []string{"other-bucket", "james-", "jam"} {
		if name, ok := r.Unresolve(physical); ok {
			t.Errorf("Unresolve(%q) = %q, want foreign", physical, name)
		}
	}
}
