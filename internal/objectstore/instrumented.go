package objectstore

import (
	"context"
	"io"
	"iter"
	"time"

	"github.com/dray-io/blobstore/internal/blob"
)

// DAOMetricsRecorder is the interface for recording backend operation metrics.
// This allows the objectstore package to be decoupled from the metrics package.
type DAOMetricsRecorder interface {
	RecordSave(durationSeconds float64, success bool, bytes int64)
	RecordRead(durationSeconds float64, success bool, bytes int64)
	RecordExists(durationSeconds float64, success bool)
	RecordDelete(durationSeconds float64, success bool, count int)
	RecordList(durationSeconds float64, success bool, count int)
}

// InstrumentedDAO wraps a DAO and records metrics for each operation.
type InstrumentedDAO struct {
	dao     DAO
	metrics DAOMetricsRecorder
}

// NewInstrumentedDAO creates an instrumented wrapper around a DAO.
// If metrics is nil, no metrics are recorded and operations pass through directly.
func NewInstrumentedDAO(dao DAO, metrics DAOMetricsRecorder) *InstrumentedDAO {
	return &InstrumentedDAO{
		dao:     dao,
		metrics: metrics,
	}
}

func (d *InstrumentedDAO) Save(ctx context.Context, bucket blob.BucketName, id blob.ID, data []byte) error {
	start := time.Now()
	err := d.dao.Save(ctx, bucket, id, data)
	if d.metrics != nil {
		d.metrics.RecordSave(time.Since(start).Seconds(), err == nil, int64(len(data)))
	}
	return err
}

func (d *InstrumentedDAO) SaveStream(ctx context.Context, bucket blob.BucketName, id blob.ID, r io.Reader) error {
	if d.metrics == nil {
		return d.dao.SaveStream(ctx, bucket, id, r)
	}
	counter := &countingReader{r: r}
	start := time.Now()
	err := d.dao.SaveStream(ctx, bucket, id, counter)
	d.metrics.RecordSave(time.Since(start).Seconds(), err == nil, counter.n)
	return err
}

func (d *InstrumentedDAO) Read(ctx context.Context, bucket blob.BucketName, id blob.ID) (io.ReadCloser, error) {
	start := time.Now()
	rc, err := d.dao.Read(ctx, bucket, id)
	if d.metrics == nil {
		return rc, err
	}
	if err != nil {
		d.metrics.RecordRead(time.Since(start).Seconds(), false, 0)
		return nil, err
	}
	// Metrics are recorded on Close with the number of bytes consumed.
	return &instrumentedReadCloser{
		ReadCloser: rc,
		start:      start,
		metrics:    d.metrics,
	}, nil
}

func (d *InstrumentedDAO) ReadBytes(ctx context.Context, bucket blob.BucketName, id blob.ID) ([]byte, error) {
	start := time.Now()
	data, err := d.dao.ReadBytes(ctx, bucket, id)
	if d.metrics != nil {
		d.metrics.RecordRead(time.Since(start).Seconds(), err == nil, int64(len(data)))
	}
	return data, err
}

func (d *InstrumentedDAO) Exists(ctx context.Context, bucket blob.BucketName, id blob.ID) (bool, error) {
	start := time.Now()
	ok, err := d.dao.Exists(ctx, bucket, id)
	if d.metrics != nil {
		d.metrics.RecordExists(time.Since(start).Seconds(), err == nil)
	}
	return ok, err
}

func (d *InstrumentedDAO) Delete(ctx context.Context, bucket blob.BucketName, id blob.ID) error {
	start := time.Now()
	err := d.dao.Delete(ctx, bucket, id)
	if d.metrics != nil {
		d.metrics.RecordDelete(time.Since(start).Seconds(), err == nil, 1)
	}
	return err
}

func (d *InstrumentedDAO) DeleteBatch(ctx context.Context, bucket blob.BucketName, ids []blob.ID) error {
	start := time.Now()
	err := d.dao.DeleteBatch(ctx, bucket, ids)
	if d.metrics != nil {
		d.metrics.RecordDelete(time.Since(start).Seconds(), err == nil, len(ids))
	}
	return err
}

// ListBlobs records one list observation once iteration ends.
func (d *InstrumentedDAO) ListBlobs(ctx context.Context, bucket blob.BucketName) iter.Seq2[blob.ID, error] {
	if d.metrics == nil {
		return d.dao.ListBlobs(ctx, bucket)
	}
	return func(yield func(blob.ID, error) bool) {
		start := time.Now()
		count := 0
		success := true
		defer func() {
			d.metrics.RecordList(time.Since(start).Seconds(), success, count)
		}()
		for id, err := range d.dao.ListBlobs(ctx, bucket) {
			if err != nil {
				success = false
			} else {
				count++
			}
			if !yield(id, err) {
				return
			}
		}
	}
}

func (d *InstrumentedDAO) ListBuckets(ctx context.Context) ([]blob.BucketName, error) {
	return d.dao.ListBuckets(ctx)
}

func (d *InstrumentedDAO) DeleteBucket(ctx context.Context, bucket blob.BucketName) error {
	return d.dao.DeleteBucket(ctx, bucket)
}

func (d *InstrumentedDAO) Close() error {
	return d.dao.Close()
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// instrumentedReadCloser wraps a ReadCloser to track bytes read and record metrics on close.
type instrumentedReadCloser struct {
	io.ReadCloser
	start     time.Time
	metrics   DAOMetricsRecorder
	bytesRead int64
	readErr   bool
	closed    bool
}

func (r *instrumentedReadCloser) Read(p []byte) (n int, err error) {
	n, err = r.ReadCloser.Read(p)
	r.bytesRead += int64(n)
	if err != nil && err != io.EOF {
		r.readErr = true
	}
	return n, err
}

func (r *instrumentedReadCloser) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	err := r.ReadCloser.Close()
	r.metrics.RecordRead(time.Since(r.start).Seconds(), err == nil && !r.readErr, r.bytesRead)
	return err
}

// Ensure InstrumentedDAO implements DAO.
var _ DAO = (*InstrumentedDAO)(nil)
