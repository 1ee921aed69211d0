package generation

import (
	"strconv"
	"strings"
	"time"

	"github.com/dray-io/blobstore/internal/blob"
)

const separator = "_"

// ID decorates a delegate blob id with its family and generation.
type ID struct {
	Family     int
	Generation int64
	Delegate   blob.ID
}

// String returns "{family}_{generation}_{delegate}", or the bare delegate
// for untagged ids.
func (id ID) String() string {
	if id.Family == NoFamily {
		return id.Delegate.String()
	}
	var b strings.Builder
	b.WriteString(strconv.Itoa(id.Family))
	b.WriteString(separator)
	b.WriteString(strconv.FormatInt(id.Generation, 10))
	b.WriteString(separator)
	b.WriteString(id.Delegate.String())
	return b.String()
}

// InActiveGeneration reports whether the blob belongs to cfg's family and
// was created in the current or the immediately preceding window.
func (id ID) InActiveGeneration(cfg Config, now time.Time) bool {
	return id.Family == cfg.Family && id.Generation+1 >= ComputeGeneration(cfg, now)
}

var _ blob.ID = ID{}
