package blobstore

import (
	"context"
	"fmt"
	"io"

	"github.com/dray-io/blobstore/internal/blob"
	"github.com/dray-io/blobstore/internal/objectstore"
)

// Deduplication stores payloads under their content id and skips the upload
// when the backend already holds that id.
type Deduplication struct {
	base
}

// NewDeduplication creates a deduplicating strategy over dao.
func NewDeduplication(dao objectstore.DAO, factory blob.Factory, opts ...Option) *Deduplication {
	return &Deduplication{base: newBase(dao, factory, "blobstore.dedup", opts)}
}

func (s *Deduplication) Save(ctx context.Context, bucket blob.BucketName, data []byte, _ blob.StoragePolicy) (blob.ID, error) {
	id := s.factory.ForPayload(data)

	exists, err := s.dao.Exists(ctx, bucket, id)
	if err != nil {
		// Fall back to an unconditional upload.
		s.logger.Warnf("existence check failed, uploading anyway", map[string]any{
			"bucket": bucket.String(),
			"blobId": id.String(),
			"error":  err,
		})
		exists = false
	}
	if exists {
		return id, nil
	}

	if err := s.dao.Save(ctx, bucket, id, data); err != nil {
		return nil, err
	}
	return id, nil
}

// SaveStream buffers r since the content id is only known once the whole
// payload has been read.
func (s *Deduplication) SaveStream(ctx context.Context, bucket blob.BucketName, r io.Reader, policy blob.StoragePolicy) (blob.ID, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("blobstore: read stream: %w", err)
	}
	return s.Save(ctx, bucket, data, policy)
}

var _ blob.Store = (*Deduplication)(nil)
