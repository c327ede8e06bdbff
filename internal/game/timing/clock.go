package timing

import "time"

// Clock abstracts the monotonic time source so tests and replay tooling can
// simulate elapsed time deterministically.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// NewRealClock returns a Clock backed by the system monotonic clock.
func NewRealClock() Clock { return realClock{} }

// ManualClock is a deterministic Clock advanced explicitly by the caller.
// It is not safe for concurrent use; the caller must serialise access.
type ManualClock struct {
	now time.Time
}

// NewManualClock creates a ManualClock starting at start.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

// Now returns the clock's current reading.
func (c *ManualClock) Now() time.Time { return c.now }

// Advance moves the clock forward by d. Negative d moves it backward, which
// the timer treats as zero elapsed time.
func (c *ManualClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}
