package scheduler

import (
	"context"
	"math"
	"time"
)

// Sleeper is the host's blocking primitive.
//
// SleepMicros suspends the caller for at least n microseconds. Its wake-up
// precision bounds the scheduler's real-world accuracy.
type Sleeper interface {
	SleepMicros(n int64)
}

// SleeperFunc adapts a function to Sleeper.
type SleeperFunc func(n int64)

// SleepMicros implements Sleeper.
func (f SleeperFunc) SleepMicros(n int64) { f(n) }

// RealSleeper blocks on the wall clock.
//
// When ctx is done the sleep returns early, so a cancelled host does not wait
// out a long delta. A nil ctx never cancels.
type RealSleeper struct {
	ctx context.Context
}

// NewRealSleeper creates a wall-clock sleeper bound to ctx.
func NewRealSleeper(ctx context.Context) *RealSleeper {
	if ctx == nil {
		ctx = context.Background()
	}
	return &RealSleeper{ctx: ctx}
}

// SleepMicros implements Sleeper.
func (s *RealSleeper) SleepMicros(n int64) {
	if n <= 0 {
		return
	}
	d := time.Duration(math.MaxInt64)
	if n < int64(d/time.Microsecond) {
		d = time.Duration(n) * time.Microsecond
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
	case <-s.ctx.Done():
	}
}
