package refs

import (
	"fmt"
	"strings"

	"github.com/dray-io/blobstore/internal/blob"
)

// DefaultPrefix is the root of all reference keys.
//
// Format: /blobstore/v1/refs/<source>/<blobId>
const DefaultPrefix = "/blobstore/v1/refs"

func validSource(source string) error {
	if source == "" || strings.Contains(source, "/") {
		return fmt.Errorf("%w: %q", ErrInvalidSource, source)
	}
	return nil
}

// sourcePrefix returns the listing prefix of a source. It ends with '/' so
// only the source's own records are listed.
func sourcePrefix(prefix, source string) string {
	return prefix + "/" + source + "/"
}

func referenceKey(prefix, source string, id blob.ID) (string, error) {
	if err := validSource(source); err != nil {
		return "", err
	}
	s := id.String()
	if s == "" || strings.Contains(s, "/") {
		return "", fmt.Errorf("%w: %q", blob.ErrInvalidID, s)
	}
	return sourcePrefix(prefix, source) + s, nil
}

// parseReferenceKey returns the blob id part of a key listed under the
// given source prefix.
func parseReferenceKey(srcPrefix, key string) (string, error) {
	s, ok := strings.CutPrefix(key, srcPrefix)
	if !ok || s == "" || strings.Contains(s, "/") {
		return "", fmt.Errorf("refs: malformed reference key %q", key)
	}
	return s, nil
}
