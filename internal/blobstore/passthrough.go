package blobstore

import (
	"context"
	"io"

	"github.com/dray-io/blobstore/internal/blob"
	"github.com/dray-io/blobstore/internal/objectstore"
)

// PassThrough uploads every payload under a random id. Identical payloads
// are stored as distinct objects.
type PassThrough struct {
	base
}

// NewPassThrough creates a pass-through strategy over dao.
func NewPassThrough(dao objectstore.DAO, factory blob.Factory, opts ...Option) *PassThrough {
	return &PassThrough{base: newBase(dao, factory, "blobstore.passthrough", opts)}
}

func (s *PassThrough) Save(ctx context.Context, bucket blob.BucketName, data []byte, _ blob.StoragePolicy) (blob.ID, error) {
	id := s.factory.Random()
	if err := s.dao.Save(ctx, bucket, id, data); err != nil {
		return nil, err
	}
	return id, nil
}

func (s *PassThrough) SaveStream(ctx context.Context, bucket blob.BucketName, r io.Reader, _ blob.StoragePolicy) (blob.ID, error) {
	id := s.factory.Random()
	if err := s.dao.SaveStream(ctx, bucket, id, r); err != nil {
		return nil, err
	}
	return id, nil
}

var _ blob.Store = (*PassThrough)(nil)
