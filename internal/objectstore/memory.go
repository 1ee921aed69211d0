package objectstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"iter"
	"sort"
	"sync"

	"github.com/dray-io/blobstore/internal/blob"
)

// ErrClosed is returned by a DAO after Close.
var ErrClosed = errors.New("objectstore: closed")

// MemoryDAO is an in-memory implementation of the DAO interface.
type MemoryDAO struct {
	mu      sync.RWMutex
	closed  bool
	buckets map[blob.BucketName]map[string]memoryObject
}

type memoryObject struct {
	id   blob.ID
	data []byte
}

// NewMemoryDAO creates an empty MemoryDAO.
func NewMemoryDAO() *MemoryDAO {
	return &MemoryDAO{
		buckets: make(map[blob.BucketName]map[string]memoryObject),
	}
}

func (d *MemoryDAO) Save(ctx context.Context, bucket blob.BucketName, id blob.ID, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrClosed
	}
	objects, ok := d.buckets[bucket]
	if !ok {
		objects = make(map[string]memoryObject)
		d.buckets[bucket] = objects
	}
	objects[id.String()] = memoryObject{id: id, data: bytes.Clone(data)}
	return nil
}

func (d *MemoryDAO) SaveStream(ctx context.Context, bucket blob.BucketName, id blob.ID, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return &blob.Error{Op: "SaveStream", Bucket: bucket, ID: id.String(), Err: err}
	}
	return d.Save(ctx, bucket, id, data)
}

func (d *MemoryDAO) Read(ctx context.Context, bucket blob.BucketName, id blob.ID) (io.ReadCloser, error) {
	data, err := d.ReadBytes(ctx, bucket, id)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (d *MemoryDAO) ReadBytes(ctx context.Context, bucket blob.BucketName, id blob.ID) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return nil, ErrClosed
	}
	obj, ok := d.buckets[bucket][id.String()]
	if !ok {
		return nil, blob.NotFound("Read", bucket, id)
	}
	return bytes.Clone(obj.data), nil
}

func (d *MemoryDAO) Exists(ctx context.Context, bucket blob.BucketName, id blob.ID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return false, ErrClosed
	}
	_, ok := d.buckets[bucket][id.String()]
	return ok, nil
}

func (d *MemoryDAO) Delete(ctx context.Context, bucket blob.BucketName, id blob.ID) error {
	return d.DeleteBatch(ctx, bucket, []blob.ID{id})
}

func (d *MemoryDAO) DeleteBatch(ctx context.Context, bucket blob.BucketName, ids []blob.ID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrClosed
	}
	objects := d.buckets[bucket]
	for _, id := range ids {
		delete(objects, id.String())
	}
	return nil
}

// ListBlobs yields a snapshot of the bucket taken when iteration starts,
// sorted by id.
func (d *MemoryDAO) ListBlobs(ctx context.Context, bucket blob.BucketName) iter.Seq2[blob.ID, error] {
	return func(yield func(blob.ID, error) bool) {
		d.mu.RLock()
		if d.closed {
			d.mu.RUnlock()
			yield(nil, ErrClosed)
			return
		}
		objects := d.buckets[bucket]
		keys := make([]string, 0, len(objects))
		for key := range objects {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		ids := make([]blob.ID, len(keys))
		for i, key := range keys {
			ids[i] = objects[key].id
		}
		d.mu.RUnlock()

		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			if !yield(id, nil) {
				return
			}
		}
	}
}

func (d *MemoryDAO) ListBuckets(ctx context.Context) ([]blob.BucketName, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return nil, ErrClosed
	}
	result := make([]blob.BucketName, 0, len(d.buckets))
	for bucket := range d.buckets {
		result = append(result, bucket)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i] < result[j]
	})
	return result, nil
}

func (d *MemoryDAO) DeleteBucket(ctx context.Context, bucket blob.BucketName) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrClosed
	}
	delete(d.buckets, bucket)
	return nil
}

// Count returns the number of blobs stored in bucket.
func (d *MemoryDAO) Count(bucket blob.BucketName) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.buckets[bucket])
}

func (d *MemoryDAO) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

var _ DAO = (*MemoryDAO)(nil)
