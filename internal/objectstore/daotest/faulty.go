package daotest

import (
	"context"
	"io"
	"iter"
	"sync"
	"sync/atomic"

	"github.com/dray-io/blobstore/internal/blob"
	"github.com/dray-io/blobstore/internal/objectstore"
)

// FaultyDAO wraps a DAO and injects errors into selected operations. A nil
// hook passes the call through. It also counts uploads and batch deletes.
type FaultyDAO struct {
	objectstore.DAO

	mu             sync.RWMutex
	existsErr      error
	saveErr        error
	deleteBatchErr func(ids []blob.ID) error
	listErr        error
	listAfter      int

	saves       atomic.Int64
	deleteCalls atomic.Int64
}

// NewFaultyDAO wraps dao.
func NewFaultyDAO(dao objectstore.DAO) *FaultyDAO {
	return &FaultyDAO{DAO: dao}
}

// FailExists makes Exists return err. A nil err restores pass-through.
func (f *FaultyDAO) FailExists(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.existsErr = err
}

// FailSave makes Save and SaveStream return err.
func (f *FaultyDAO) FailSave(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saveErr = err
}

// FailDeleteBatch installs a per-batch error hook.
func (f *FaultyDAO) FailDeleteBatch(hook func(ids []blob.ID) error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteBatchErr = hook
}

// FailList makes ListBlobs yield err after the first n ids.
func (f *FaultyDAO) FailList(n int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listAfter = n
	f.listErr = err
}

// Saves returns the number of uploads that reached the wrapped DAO.
func (f *FaultyDAO) Saves() int64 {
	return f.saves.Load()
}

// DeleteBatchCalls returns the number of DeleteBatch calls, failed ones included.
func (f *FaultyDAO) DeleteBatchCalls() int64 {
	return f.deleteCalls.Load()
}

func (f *FaultyDAO) Save(ctx context.Context, bucket blob.BucketName, id blob.ID, data []byte) error {
	f.mu.RLock()
	err := f.saveErr
	f.mu.RUnlock()
	if err != nil {
		return err
	}
	f.saves.Add(1)
	return f.DAO.Save(ctx, bucket, id, data)
}

func (f *FaultyDAO) SaveStream(ctx context.Context, bucket blob.BucketName, id blob.ID, r io.Reader) error {
	f.mu.RLock()
	err := f.saveErr
	f.mu.RUnlock()
	if err != nil {
		return err
	}
	f.saves.Add(1)
	return f.DAO.SaveStream(ctx, bucket, id, r)
}

func (f *FaultyDAO) Exists(ctx context.Context, bucket blob.BucketName, id blob.ID) (bool, error) {
	f.mu.RLock()
	err := f.existsErr
	f.mu.RUnlock()
	if err != nil {
		return false, err
	}
	return f.DAO.Exists(ctx, bucket, id)
}

func (f *FaultyDAO) DeleteBatch(ctx context.Context, bucket blob.BucketName, ids []blob.ID) error {
	f.deleteCalls.Add(1)
	f.mu.RLock()
	hook := f.deleteBatchErr
	f.mu.RUnlock()
	if hook != nil {
		if err := hook(ids); err != nil {
			return err
		}
	}
	return f.DAO.DeleteBatch(ctx, bucket, ids)
}

func (f *FaultyDAO) ListBlobs(ctx context.Context, bucket blob.BucketName) iter.Seq2[blob.ID, error] {
	f.mu.RLock()
	listErr, after := f.listErr, f.listAfter
	f.mu.RUnlock()
	if listErr == nil {
		return f.DAO.ListBlobs(ctx, bucket)
	}
	return func(yield func(blob.ID, error) bool) {
		n := 0
		for id, err := range f.DAO.ListBlobs(ctx, bucket) {
			if err != nil {
				yield(nil, err)
				return
			}
			if n == after {
				yield(nil, listErr)
				return
			}
			n++
			if !yield(id, nil) {
				return
			}
		}
		yield(nil, listErr)
	}
}

var _ objectstore.DAO = (*FaultyDAO)(nil)
