package state

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// siteID distinguishes shapes created by different processes so that a
// drawing merged from an import never reuses an id minted here.
var siteID = uuid.NewString()[:8]

// Clock is a monotonic logical counter.
type Clock struct {
	counter uint64
}

// Tick increments the clock and returns the new value.
func (c *Clock) Tick() uint64 {
	return atomic.AddUint64(&c.counter, 1)
}

// Value returns the current value without advancing it.
func (c *Clock) Value() uint64 {
	return atomic.LoadUint64(&c.counter)
}

// nextID mints a shape id of the form "<kind>-<site>-<tick>".
func (c *Clock) nextID(kind ShapeKind) string {
	return fmt.Sprintf("%s-%s-%d", kind, siteID, c.Tick())
}
