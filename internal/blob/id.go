// Package blob defines the identifiers, buckets, storage policies and the
// Store contract shared by every layer of the blob storage engine.
//
// # Identifiers
//
// An [ID] is an immutable value whose String form is the canonical storage
// representation. Identifiers are minted and decoded by a [Factory]:
//
//	f := blob.NewDigestFactory()
//	id := f.ForPayload(body) // sha256:9f86d0...
//	same, err := f.Parse(id.String())
//
// Content derived identifiers make deduplication possible: two payloads with
// identical bytes map to the same ID.
package blob

import (
	_ "crypto/sha256"
	_ "crypto/sha512"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/opencontainers/go-digest"
)

// ID identifies a stored blob. Two IDs are equal when their String forms are
// equal.
type ID interface {
	String() string
}

// PlainID is an ID whose representation is used verbatim.
type PlainID string

func (id PlainID) String() string {
	return string(id)
}

// Equal reports whether two IDs share the same canonical representation.
func Equal(a, b ID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.String() == b.String()
}

// Factory mints and decodes blob identifiers.
type Factory interface {
	// Random returns a fresh identifier unrelated to any content.
	Random() ID

	// ForPayload returns the identifier derived from the payload bytes.
	ForPayload(data []byte) ID

	// Parse decodes a previously stored representation.
	Parse(s string) (ID, error)
}

// DigestFactory derives content identifiers with a digest algorithm and
// mints random identifiers from UUIDs.
type DigestFactory struct {
	algorithm digest.Algorithm
}

// NewDigestFactory returns a factory using the canonical digest algorithm
// (sha256).
func NewDigestFactory() *DigestFactory {
	return &DigestFactory{algorithm: digest.Canonical}
}

// NewDigestFactoryWithAlgorithm returns a factory using the given algorithm.
func NewDigestFactoryWithAlgorithm(alg digest.Algorithm) (*DigestFactory, error) {
	if !alg.Available() {
		return nil, fmt.Errorf("blob: digest algorithm %q unavailable", alg)
	}
	return &DigestFactory{algorithm: alg}, nil
}

func (f *DigestFactory) Random() ID {
	return PlainID(uuid.NewString())
}

func (f *DigestFactory) ForPayload(data []byte) ID {
	return PlainID(f.algorithm.FromBytes(data).String())
}

// Parse accepts random identifiers and digests. A string that carries an
// algorithm prefix must be a well formed digest.
func (f *DigestFactory) Parse(s string) (ID, error) {
	if s == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidID)
	}
	if strings.ContainsAny(s, " \t\r\n/") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	if strings.Contains(s, ":") {
		d, err := digest.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidID, s, err)
		}
		return PlainID(d.String()), nil
	}
	return PlainID(s), nil
}

var _ Factory = (*DigestFactory)(nil)
