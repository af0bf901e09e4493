package autobrake

import (
	"sync/atomic"
	"time"

	"github.com/banshee-data/autobrake/internal/envelope"
)

// Latest is the most recently computed bounds and when they were computed.
type Latest struct {
	Bounds  envelope.Bounds `json:"bounds"`
	Updated time.Time       `json:"updated"`
	Seq     uint64          `json:"seq"`
}

// BoundsCell is a single-slot, last-value-wins store shared by the scan
// handler and the publish loop. Readers never block writers.
type BoundsCell struct {
	v   atomic.Pointer[Latest]
	seq atomic.Uint64
}

// NewBoundsCell returns a cell holding initial.
func NewBoundsCell(initial envelope.Bounds, now time.Time) *BoundsCell {
	c := &BoundsCell{}
	c.v.Store(&Latest{Bounds: initial, Updated: now})
	return c
}

// Store replaces the held bounds.
func (c *BoundsCell) Store(b envelope.Bounds, now time.Time) {
	c.v.Store(&Latest{Bounds: b, Updated: now, Seq: c.seq.Add(1)})
}

// Load returns the held bounds.
func (c *BoundsCell) Load() Latest {
	if p := c.v.Load(); p != nil {
		return *p
	}
	return Latest{}
}
