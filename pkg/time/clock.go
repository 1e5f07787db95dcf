package time

import (
	"sync"
	"time"
)

// clock is the source of "now" for lease expiry and client deadlines
// it is an interface so tests can move time forward without sleeping
type Clock interface {
	Now() time.Time
}

// system wall clock
// time.Now carries a monotonic reading, so comparisons between two values
// taken in the same process are immune to wall clock jumps
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// ManualClock only moves when told to.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// moves the clock forward by d
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
