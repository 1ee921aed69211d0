package gc

import (
	"context"
	"iter"

	"github.com/dray-io/blobstore/internal/blob"
)

// ReferenceSource enumerates the blob ids a subsystem still depends on.
//
// Iteration stops at the first error, which is yielded with a nil id. An
// incomplete enumeration aborts the run.
type ReferenceSource interface {
	ListReferencedBlobs(ctx context.Context) iter.Seq2[blob.ID, error]
}

// ReferenceSourceFunc adapts a function to ReferenceSource.
type ReferenceSourceFunc func(ctx context.Context) iter.Seq2[blob.ID, error]

func (f ReferenceSourceFunc) ListReferencedBlobs(ctx context.Context) iter.Seq2[blob.ID, error] {
	return f(ctx)
}

// StaticSource returns a source yielding ids.
func StaticSource(ids ...blob.ID) ReferenceSource {
	return ReferenceSourceFunc(func(ctx context.Context) iter.Seq2[blob.ID, error] {
		return func(yield func(blob.ID, error) bool) {
			for _, id := range ids {
				if !yield(id, nil) {
					return
				}
			}
		}
	})
}
