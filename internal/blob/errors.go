package blob

import (
	"errors"
	"fmt"
)

// Common errors returned by Store and DAO implementations.
var (
	// ErrNotFound is returned when the backend holds no object for the id.
	ErrNotFound = errors.New("blob not found")

	// ErrBucketNotFound is returned when the target bucket does not exist.
	ErrBucketNotFound = errors.New("bucket not found")

	// ErrAccessDenied is returned when the credentials lack permission for the operation.
	ErrAccessDenied = errors.New("access denied")

	// ErrInvalidID is returned when a string cannot be decoded as an ID.
	ErrInvalidID = errors.New("invalid blob id")

	// ErrInvalidBucket is returned for empty bucket names.
	ErrInvalidBucket = errors.New("invalid bucket name")
)

// Error wraps an error with the bucket and blob it concerns.
type Error struct {
	Op     string     // Operation that failed (e.g., "Save", "Read", "Delete")
	Bucket BucketName // Target bucket
	ID     string     // Blob id, empty for bucket level operations
	Err    error      // Underlying error
}

func (e *Error) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("blob: %s %s: %v", e.Op, e.Bucket, e.Err)
	}
	return fmt.Sprintf("blob: %s %s/%s: %v", e.Op, e.Bucket, e.ID, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NotFound builds the error reported when id is missing from bucket.
func NotFound(op string, bucket BucketName, id ID) error {
	return &Error{Op: op, Bucket: bucket, ID: id.String(), Err: ErrNotFound}
}

// IsNotFound reports whether err denotes a missing blob or bucket.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrBucketNotFound)
}
