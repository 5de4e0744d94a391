package scheduler

import "sync/atomic"

// Clock is the virtual clock, counted in microseconds.
//
// The clock only moves forward: AdvanceTo ignores targets in the past.
// Reads are atomic so hosts and observers may sample it from any goroutine,
// but only Step advances it.
type Clock struct {
	micros atomic.Int64
}

// NewClock creates a clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock starting at the given microsecond.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.micros.Store(start)
	return c
}

// Now returns the current virtual time in microseconds.
func (c *Clock) Now() int64 {
	return c.micros.Load()
}

// Elapsed returns the current virtual time in whole seconds, floored.
func (c *Clock) Elapsed() int64 {
	return c.micros.Load() / MicrosPerSecond
}

// AdvanceTo moves the clock to t if t is later than the current time and
// returns the resulting time.
func (c *Clock) AdvanceTo(t int64) int64 {
	for {
		cur := c.micros.Load()
		if t <= cur {
			return cur
		}
		if c.micros.CompareAndSwap(cur, t) {
			return t
		}
	}
}
