// Package s3 implements the objectstore.DAO interface using AWS SDK for S3-compatible storage.
//
// Logical buckets map to physical S3 buckets through an
// [objectstore.BucketResolver]; blob ids are used verbatim as object keys.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/dray-io/blobstore/internal/blob"
	"github.com/dray-io/blobstore/internal/objectstore"
)

const (
	defaultRegion = "us-east-1"

	// DefaultCreateBucketRetries bounds how many times Save creates a missing
	// bucket and retries.
	DefaultCreateBucketRetries = 5

	// maxDeleteObjects is the S3 limit of keys per DeleteObjects request.
	maxDeleteObjects = 1000
)

// Config configures an S3 DAO.
type Config struct {
	// BucketPrefix is prepended to every logical bucket name.
	BucketPrefix string

	// Namespace, when set, is the physical bucket holding the default bucket.
	Namespace string

	// Region is the AWS region (e.g., "us-east-1").
	// Required for AWS S3, optional for S3-compatible endpoints.
	Region string

	// Endpoint is the S3 endpoint URL (e.g., "http://localhost:9000" for MinIO).
	// If empty, uses the default AWS endpoint for the region.
	Endpoint string

	// AccessKeyID is the AWS access key ID.
	// If empty, uses the default credential chain.
	AccessKeyID string

	// SecretAccessKey is the AWS secret access key.
	// If empty, uses the default credential chain.
	SecretAccessKey string

	// UsePathStyle enables path-style addressing (required for MinIO and some S3-compatible stores).
	// When true: http://endpoint/bucket/key
	// When false (default): http://bucket.endpoint/key
	UsePathStyle bool

	// CreateBucketRetries bounds the create-then-retry loop of Save when the
	// target bucket is missing. Zero uses DefaultCreateBucketRetries.
	CreateBucketRetries int
}

// DAO implements objectstore.DAO using AWS S3.
type DAO struct {
	client   *s3.Client
	resolver objectstore.BucketResolver
	region   string
	retries  int
	closed   bool
	mu       sync.RWMutex
}

// New creates a new S3 DAO with the given configuration.
func New(ctx context.Context, cfg Config) (*DAO, error) {
	region := cfg.Region
	if region == "" {
		region = defaultRegion
	}

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(region),
	}

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3: failed to load AWS config: %w", err)
	}

	s3Opts := []func(*s3.Options){
		func(o *s3.Options) {
			// Suppress "Response has no supported checksum" warnings.
			o.DisableLogOutputChecksumValidationSkipped = true
		},
	}

	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	retries := cfg.CreateBucketRetries
	if retries <= 0 {
		retries = DefaultCreateBucketRetries
	}

	return &DAO{
		client:   s3.NewFromConfig(awsCfg, s3Opts...),
		resolver: objectstore.NewBucketResolver(cfg.BucketPrefix, cfg.Namespace),
		region:   region,
		retries:  retries,
	}, nil
}

func (d *DAO) checkClosed() error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return errors.New("s3: dao is closed")
	}
	return nil
}

// Save stores data under id. A missing bucket is created and the upload
// retried, at most CreateBucketRetries times.
func (d *DAO) Save(ctx context.Context, bucket blob.BucketName, id blob.ID, data []byte) error {
	if err := d.checkClosed(); err != nil {
		return err
	}

	physical := d.resolver.Resolve(bucket)
	for attempt := 0; ; attempt++ {
		_, err := d.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(physical),
			Key:           aws.String(id.String()),
			Body:          bytes.NewReader(data),
			ContentLength: aws.Int64(int64(len(data))),
			ContentType:   aws.String("application/octet-stream"),
		})
		if err == nil {
			return nil
		}

		wrapped := wrapError("Save", bucket, id.String(), err)
		if !errors.Is(wrapped, blob.ErrBucketNotFound) || attempt >= d.retries {
			return wrapped
		}
		if err := d.createBucket(ctx, physical); err != nil {
			return wrapError("CreateBucket", bucket, "", err)
		}
	}
}

// SaveStream buffers r in memory, as PutObject needs the content length upfront.
func (d *DAO) SaveStream(ctx context.Context, bucket blob.BucketName, id blob.ID, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return &blob.Error{Op: "SaveStream", Bucket: bucket, ID: id.String(), Err: err}
	}
	return d.Save(ctx, bucket, id, data)
}

func (d *DAO) createBucket(ctx context.Context, physical string) error {
	input := &s3.CreateBucketInput{Bucket: aws.String(physical)}
	if d.region != defaultRegion {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(d.region),
		}
	}

	_, err := d.client.CreateBucket(ctx, input)
	var owned *types.BucketAlreadyOwnedByYou
	var exists *types.BucketAlreadyExists
	if err != nil && !errors.As(err, &owned) && !errors.As(err, &exists) {
		return err
	}
	return nil
}

func (d *DAO) Read(ctx context.Context, bucket blob.BucketName, id blob.ID) (io.ReadCloser, error) {
	if err := d.checkClosed(); err != nil {
		return nil, err
	}

	output, err := d.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(d.resolver.Resolve(bucket)),
		Key:    aws.String(id.String()),
	})
	if err != nil {
		wrapped := wrapError("Read", bucket, id.String(), err)
		if errors.Is(wrapped, blob.ErrBucketNotFound) {
			return nil, blob.NotFound("Read", bucket, id)
		}
		return nil, wrapped
	}

	return output.Body, nil
}

func (d *DAO) ReadBytes(ctx context.Context, bucket blob.BucketName, id blob.ID) ([]byte, error) {
	rc, err := d.Read(ctx, bucket, id)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, wrapError("Read", bucket, id.String(), err)
	}
	return data, nil
}

func (d *DAO) Exists(ctx context.Context, bucket blob.BucketName, id blob.ID) (bool, error) {
	if err := d.checkClosed(); err != nil {
		return false, err
	}

	_, err := d.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(d.resolver.Resolve(bucket)),
		Key:    aws.String(id.String()),
	})
	if err != nil {
		wrapped := wrapError("Exists", bucket, id.String(), err)
		if blob.IsNotFound(wrapped) {
			return false, nil
		}
		return false, wrapped
	}
	return true, nil
}

func (d *DAO) Delete(ctx context.Context, bucket blob.BucketName, id blob.ID) error {
	if err := d.checkClosed(); err != nil {
		return err
	}

	_, err := d.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(d.resolver.Resolve(bucket)),
		Key:    aws.String(id.String()),
	})
	if err != nil {
		wrapped := wrapError("Delete", bucket, id.String(), err)
		if blob.IsNotFound(wrapped) {
			return nil
		}
		return wrapped
	}

	return nil
}

// DeleteBatch issues DeleteObjects requests of at most 1000 keys.
func (d *DAO) DeleteBatch(ctx context.Context, bucket blob.BucketName, ids []blob.ID) error {
	if err := d.checkClosed(); err != nil {
		return err
	}

	physical := d.resolver.Resolve(bucket)
	for start := 0; start < len(ids); start += maxDeleteObjects {
		end := min(start+maxDeleteObjects, len(ids))
		objects := make([]types.ObjectIdentifier, 0, end-start)
		for _, id := range ids[start:end] {
			objects = append(objects, types.ObjectIdentifier{Key: aws.String(id.String())})
		}
		if err := d.deleteObjects(ctx, bucket, physical, objects); err != nil {
			return err
		}
	}
	return nil
}

func (d *DAO) deleteObjects(ctx context.Context, bucket blob.BucketName, physical string, objects []types.ObjectIdentifier) error {
	output, err := d.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(physical),
		Delete: &types.Delete{
			Objects: objects,
			Quiet:   aws.Bool(true),
		},
	})
	if err != nil {
		wrapped := wrapError("DeleteBatch", bucket, "", err)
		if errors.Is(wrapped, blob.ErrBucketNotFound) {
			return nil
		}
		return wrapped
	}

	if len(output.Errors) > 0 {
		first := output.Errors[0]
		return &blob.Error{
			Op:     "DeleteBatch",
			Bucket: bucket,
			ID:     aws.ToString(first.Key),
			Err: fmt.Errorf("%d of %d deletions failed, first: %s: %s",
				len(output.Errors), len(objects), aws.ToString(first.Code), aws.ToString(first.Message)),
		}
	}
	return nil
}

func (d *DAO) ListBlobs(ctx context.Context, bucket blob.BucketName) iter.Seq2[blob.ID, error] {
	return func(yield func(blob.ID, error) bool) {
		if err := d.checkClosed(); err != nil {
			yield(nil, err)
			return
		}

		paginator := s3.NewListObjectsV2Paginator(d.client, &s3.ListObjectsV2Input{
			Bucket: aws.String(d.resolver.Resolve(bucket)),
		})

		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				wrapped := wrapError("ListBlobs", bucket, "", err)
				if errors.Is(wrapped, blob.ErrBucketNotFound) {
					return
				}
				yield(nil, wrapped)
				return
			}

			for _, obj := range page.Contents {
				if !yield(blob.PlainID(aws.ToString(obj.Key)), nil) {
					return
				}
			}
		}
	}
}

// ListBuckets returns the buckets that resolve back to a logical name;
// buckets foreign to the configured prefix and namespace are skipped.
func (d *DAO) ListBuckets(ctx context.Context) ([]blob.BucketName, error) {
	if err := d.checkClosed(); err != nil {
		return nil, err
	}

	output, err := d.client.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return nil, wrapError("ListBuckets", "", "", err)
	}

	var result []blob.BucketName
	for _, b := range output.Buckets {
		if name, ok := d.resolver.Unresolve(aws.ToString(b.Name)); ok {
			result = append(result, name)
		}
	}
	return result, nil
}

// DeleteBucket empties the bucket, then removes it.
func (d *DAO) DeleteBucket(ctx context.Context, bucket blob.BucketName) error {
	if err := d.checkClosed(); err != nil {
		return err
	}

	var batch []blob.ID
	for id, err := range d.ListBlobs(ctx, bucket) {
		if err != nil {
			return err
		}
		batch = append(batch, id)
		if len(batch) == maxDeleteObjects {
			if err := d.DeleteBatch(ctx, bucket, batch); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := d.DeleteBatch(ctx, bucket, batch); err != nil {
		return err
	}

	_, err := d.client.DeleteBucket(ctx, &s3.DeleteBucketInput{
		Bucket: aws.String(d.resolver.Resolve(bucket)),
	})
	if err != nil {
		wrapped := wrapError("DeleteBucket", bucket, "", err)
		if blob.IsNotFound(wrapped) {
			return nil
		}
		return wrapped
	}
	return nil
}

// Close releases resources associated with the DAO.
func (d *DAO) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

func wrapError(op string, bucket blob.BucketName, id string, err error) error {
	if err == nil {
		return nil
	}

	var noSuchBucket *types.NoSuchBucket
	if errors.As(err, &noSuchBucket) {
		return &blob.Error{Op: op, Bucket: bucket, ID: id, Err: blob.ErrBucketNotFound}
	}

	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return &blob.Error{Op: op, Bucket: bucket, ID: id, Err: blob.ErrNotFound}
	}

	// Operations that do not model S3 error shapes surface them as generic API errors.
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchBucket":
			return &blob.Error{Op: op, Bucket: bucket, ID: id, Err: blob.ErrBucketNotFound}
		case "NoSuchKey", "NotFound":
			return &blob.Error{Op: op, Bucket: bucket, ID: id, Err: blob.ErrNotFound}
		case "AccessDenied":
			return &blob.Error{Op: op, Bucket: bucket, ID: id, Err: blob.ErrAccessDenied}
		}
	}

	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.HTTPStatusCode() {
		case http.StatusNotFound:
			return &blob.Error{Op: op, Bucket: bucket, ID: id, Err: blob.ErrNotFound}
		case http.StatusForbidden:
			return &blob.Error{Op: op, Bucket: bucket, ID: id, Err: blob.ErrAccessDenied}
		}
	}

	return &blob.Error{Op: op, Bucket: bucket, ID: id, Err: err}
}

// Ensure DAO implements objectstore.DAO.
var _ objectstore.DAO = (*DAO)(nil)
