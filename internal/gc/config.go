package gc

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/dray-io/blobstore/internal/blob"
)

const (
	// DefaultMaxInFlightBatches bounds concurrent deletion windows.
	DefaultMaxInFlightBatches = 16

	// DefaultDeletionWindowSize matches the S3 DeleteObjects limit.
	DefaultDeletionWindowSize = 1000

	// DefaultAssociatedProbability is the default bloom filter false positive rate.
	DefaultAssociatedProbability = 0.01
)

// ErrInvalidRunConfig is returned when a RunConfig fails validation.
var ErrInvalidRunConfig = errors.New("gc: invalid run configuration")

var validate = validator.New()

// RunConfig describes one garbage collection run.
type RunConfig struct {
	// Bucket is the bucket to collect.
	Bucket blob.BucketName `validate:"required"`

	// ExpectedBlobCount sizes the bloom filter. It should be close to the
	// number of references.
	ExpectedBlobCount int64 `validate:"gt=0"`

	// AssociatedProbability is the bloom filter false positive rate.
	AssociatedProbability float64 `validate:"gt=0,lt=1"`

	// DeletionWindowSize is the number of ids per bulk delete.
	DeletionWindowSize int `validate:"gt=0"`

	// MaxInFlightBatches bounds concurrent bulk deletes. Zero uses
	// DefaultMaxInFlightBatches.
	MaxInFlightBatches int `validate:"gte=0"`
}

// Validate checks field ranges.
func (c RunConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				if fe.Param() != "" {
					msgs = append(msgs, fmt.Sprintf("%s must satisfy %s=%s, got %v", fe.Field(), fe.Tag(), fe.Param(), fe.Value()))
				} else {
					msgs = append(msgs, fmt.Sprintf("%s is %s", fe.Field(), fe.Tag()))
				}
			}
			return fmt.Errorf("%w: %s", ErrInvalidRunConfig, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidRunConfig, err)
	}
	return nil
}

func (c RunConfig) maxInFlight() int {
	if c.MaxInFlightBatches <= 0 {
		return DefaultMaxInFlightBatches
	}
	return c.MaxInFlightBatches
}
