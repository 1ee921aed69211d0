package gc

import (
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
)

// Context holds the counters of one run. Counters only grow and are safe for
// concurrent increments.
type Context struct {
	expectedBlobCount     int64
	associatedProbability float64
	clock                 clock.Clock

	referenceSourceCount atomic.Int64
	blobCount            atomic.Int64
	gcedBlobCount        atomic.Int64
	errorCount           atomic.Int64
}

// NewContext creates zeroed counters for a run with the given filter
// parameters. A nil clock uses the wall clock.
func NewContext(expectedBlobCount int64, associatedProbability float64, clk clock.Clock) *Context {
	if clk == nil {
		clk = clock.New()
	}
	return &Context{
		expectedBlobCount:     expectedBlobCount,
		associatedProbability: associatedProbability,
		clock:                 clk,
	}
}

func (c *Context) incrementReferenceSourceCount() { c.referenceSourceCount.Add(1) }
func (c *Context) incrementBlobCount()            { c.blobCount.Add(1) }
func (c *Context) incrementGCedBlobCount(n int64) { c.gcedBlobCount.Add(n) }
func (c *Context) incrementErrorCount()           { c.errorCount.Add(1) }

// Snapshot is a point-in-time copy of a run's counters.
type Snapshot struct {
	ReferenceSourceCount  int64     `json:"referenceSourceCount"`
	BlobCount             int64     `json:"blobCount"`
	GCedBlobCount         int64     `json:"gcedBlobCount"`
	ErrorCount            int64     `json:"errorCount"`
	ExpectedBlobCount     int64     `json:"bloomFilterExpectedBlobCount"`
	AssociatedProbability float64   `json:"bloomFilterAssociatedProbability"`
	Time                  time.Time `json:"timestamp"`
}

// Timestamp returns the time the snapshot was taken.
func (s Snapshot) Timestamp() time.Time {
	return s.Time
}

// Snapshot copies the current counters.
func (c *Context) Snapshot() Snapshot {
	return Snapshot{
		ReferenceSourceCount:  c.referenceSourceCount.Load(),
		BlobCount:             c.blobCount.Load(),
		GCedBlobCount:         c.gcedBlobCount.Load(),
		ErrorCount:            c.errorCount.Load(),
		ExpectedBlobCount:     c.expectedBlobCount,
		AssociatedProbability: c.associatedProbability,
		Time:                  c.clock.Now(),
	}
}
