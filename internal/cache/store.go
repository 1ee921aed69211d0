package cache

import (
	"bytes"
	"context"
	"io"
	"math"
	"time"

	"github.com/dray-io/blobstore/internal/blob"
	"github.com/dray-io/blobstore/internal/logging"
)

// MetricsRecorder receives cache and backend read measurements.
// This allows the cache package to be decoupled from the metrics package.
type MetricsRecorder interface {
	RecordCacheHit()
	RecordCacheMiss()
	RecordCacheLatency(durationSeconds float64)
	RecordBackendLatency(durationSeconds float64)
}

type nopMetrics struct{}

func (nopMetrics) RecordCacheHit()              {}
func (nopMetrics) RecordCacheMiss()             {}
func (nopMetrics) RecordCacheLatency(float64)   {}
func (nopMetrics) RecordBackendLatency(float64) {}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithMetrics sets the metrics recorder.
func WithMetrics(m MetricsRecorder) StoreOption {
	return func(s *Store) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithLogger sets the logger used to report swallowed cache errors.
func WithLogger(logger *logging.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

// Store is a blob.Store that layers a BlobStoreCache over a backend store.
//
// The backend is authoritative: saves always reach it first and its id is
// returned. The cache only serves the backend's default bucket.
type Store struct {
	backend blob.Store
	cache   BlobStoreCache
	cfg     Config
	metrics MetricsRecorder
	logger  *logging.Logger
}

// NewStore validates cfg and returns a cache-aware store.
func NewStore(backend blob.Store, cache BlobStoreCache, cfg Config, opts ...StoreOption) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Store{
		backend: backend,
		cache:   cache,
		cfg:     cfg,
		metrics: nopMetrics{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.OrGlobal(s.logger).Named("cache")
	return s, nil
}

func (s *Store) isDefault(bucket blob.BucketName) bool {
	return bucket == s.backend.DefaultBucket()
}

func (s *Store) fits(size int) bool {
	return int64(size) <= s.cfg.SizeThresholdInBytes
}

func (s *Store) Save(ctx context.Context, bucket blob.BucketName, data []byte, policy blob.StoragePolicy) (blob.ID, error) {
	id, err := s.backend.Save(ctx, bucket, data, policy)
	if err != nil {
		return nil, err
	}
	if s.isDefault(bucket) && s.admits(policy, len(data)) {
		s.populate(ctx, id, data)
	}
	return id, nil
}

func (s *Store) admits(policy blob.StoragePolicy, size int) bool {
	switch policy {
	case blob.HighPerformance:
		return true
	case blob.SizeBased:
		return s.fits(size)
	default:
		return false
	}
}

func (s *Store) SaveStream(ctx context.Context, bucket blob.BucketName, r io.Reader, policy blob.StoragePolicy) (blob.ID, error) {
	if !s.isDefault(bucket) {
		return s.backend.SaveStream(ctx, bucket, r, policy)
	}

	switch policy {
	case blob.HighPerformance:
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, err
		}
		return s.Save(ctx, bucket, data, policy)

	case blob.SizeBased:
		head, complete, err := s.readHead(r)
		if err != nil {
			return nil, err
		}
		if complete {
			return s.Save(ctx, bucket, head, policy)
		}
		return s.backend.SaveStream(ctx, bucket, io.MultiReader(bytes.NewReader(head), r), policy)

	default:
		return s.backend.SaveStream(ctx, bucket, r, policy)
	}
}

func (s *Store) ReadBytes(ctx context.Context, bucket blob.BucketName, id blob.ID, policy blob.StoragePolicy) ([]byte, error) {
	if !s.isDefault(bucket) || policy == blob.LowCost {
		return s.readBackendBytes(ctx, bucket, id, policy)
	}

	if data, ok := s.readCache(ctx, id); ok {
		return data, nil
	}

	data, err := s.readBackendBytes(ctx, bucket, id, policy)
	if err != nil {
		return nil, err
	}
	if s.fits(len(data)) {
		s.metrics.RecordCacheMiss()
		s.populate(ctx, id, data)
	}
	return data, nil
}

func (s *Store) Read(ctx context.Context, bucket blob.BucketName, id blob.ID, policy blob.StoragePolicy) (io.ReadCloser, error) {
	if !s.isDefault(bucket) || policy == blob.LowCost {
		start := time.Now()
		rc, err := s.backend.Read(ctx, bucket, id, policy)
		s.metrics.RecordBackendLatency(time.Since(start).Seconds())
		return rc, err
	}

	if data, ok := s.readCache(ctx, id); ok {
		return io.NopCloser(bytes.NewReader(data)), nil
	}

	start := time.Now()
	rc, err := s.backend.Read(ctx, bucket, id, policy)
	s.metrics.RecordBackendLatency(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	head, complete, err := s.readHead(rc)
	if err != nil {
		_ = rc.Close()
		return nil, err
	}
	if complete {
		_ = rc.Close()
		s.metrics.RecordCacheMiss()
		s.populate(ctx, id, head)
		return io.NopCloser(bytes.NewReader(head)), nil
	}
	return &prefixedReadCloser{
		Reader: io.MultiReader(bytes.NewReader(head), rc),
		closer: rc,
	}, nil
}

func (s *Store) Delete(ctx context.Context, bucket blob.BucketName, id blob.ID) error {
	if err := s.backend.Delete(ctx, bucket, id); err != nil {
		return err
	}
	if s.isDefault(bucket) {
		if err := s.cache.Remove(ctx, id); err != nil {
			s.logger.Warnf("cache eviction failed", map[string]any{"blobId": id.String(), "error": err})
		}
	}
	return nil
}

// DeleteBucket does not evict cached entries of the default bucket; they
// expire with their TTL.
func (s *Store) DeleteBucket(ctx context.Context, bucket blob.BucketName) error {
	return s.backend.DeleteBucket(ctx, bucket)
}

func (s *Store) ListBuckets(ctx context.Context) ([]blob.BucketName, error) {
	return s.backend.ListBuckets(ctx)
}

func (s *Store) DefaultBucket() blob.BucketName {
	return s.backend.DefaultBucket()
}

// readCache consults the cache under the configured timeout. Errors count as
// an absent entry.
func (s *Store) readCache(ctx context.Context, id blob.ID) ([]byte, bool) {
	cctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	start := time.Now()
	data, ok, err := s.cache.Read(cctx, id)
	s.metrics.RecordCacheLatency(time.Since(start).Seconds())
	if err != nil {
		s.logger.Warnf("cache read failed", map[string]any{"blobId": id.String(), "error": err})
		return nil, false
	}
	if ok {
		s.metrics.RecordCacheHit()
	}
	return data, ok
}

func (s *Store) readBackendBytes(ctx context.Context, bucket blob.BucketName, id blob.ID, policy blob.StoragePolicy) ([]byte, error) {
	start := time.Now()
	data, err := s.backend.ReadBytes(ctx, bucket, id, policy)
	s.metrics.RecordBackendLatency(time.Since(start).Seconds())
	return data, err
}

// readHead reads r up to one byte past the threshold, so memory follows the
// payload rather than the threshold. complete reports that r ended within
// the threshold.
func (s *Store) readHead(r io.Reader) (head []byte, complete bool, err error) {
	limit := s.cfg.SizeThresholdInBytes
	if limit < math.MaxInt64 {
		limit++
	}
	head, err = io.ReadAll(io.LimitReader(r, limit))
	if err != nil {
		return nil, false, err
	}
	return head, s.fits(len(head)), nil
}

// populate writes to the cache under the configured timeout.
func (s *Store) populate(ctx context.Context, id blob.ID, data []byte) {
	cctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	if err := s.cache.Cache(cctx, id, data); err != nil {
		s.logger.Warnf("cache write failed", map[string]any{"blobId": id.String(), "error": err})
	}
}

type prefixedReadCloser struct {
	io.Reader
	closer io.Closer
}

func (p *prefixedReadCloser) Close() error {
	return p.closer.Close()
}

var _ blob.Store = (*Store)(nil)
