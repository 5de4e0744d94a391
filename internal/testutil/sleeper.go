package testutil

import "sync"

// FakeSleeper records requested waits instead of blocking.
//
// It satisfies scheduler.Sleeper. An optional hook runs inside every
// SleepMicros call, which lets tests act "during" a wait, e.g. pausing the
// scheduler to exercise the requeue path.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
// The hook runs without the mutex held.
type FakeSleeper struct {
	mu     sync.Mutex
	waits  []int64
	total  int64
	onWait func(call int, micros int64)
}

// NewFakeSleeper creates a sleeper with no recorded waits.
func NewFakeSleeper() *FakeSleeper {
	return &FakeSleeper{}
}

// SleepMicros records n and runs the hook, if any. It never blocks.
func (s *FakeSleeper) SleepMicros(n int64) {
	s.mu.Lock()
	s.waits = append(s.waits, n)
	s.total += n
	call := len(s.waits)
	hook := s.onWait
	s.mu.Unlock()

	if hook != nil {
		hook(call, n)
	}
}

// OnSleep installs a hook called with the 1-based call number and the
// requested wait. Passing nil removes it.
func (s *FakeSleeper) OnSleep(fn func(call int, micros int64)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onWait = fn
}

// Waits returns a copy of all requested waits in call order.
func (s *FakeSleeper) Waits() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int64, len(s.waits))
	copy(out, s.waits)
	return out
}

// Last returns the most recent wait, or 0 if none was requested.
func (s *FakeSleeper) Last() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.waits) == 0 {
		return 0
	}
	return s.waits[len(s.waits)-1]
}

// Calls returns the number of SleepMicros calls.
func (s *FakeSleeper) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.waits)
}

// Total returns the sum of all requested waits in microseconds.
func (s *FakeSleeper) Total() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

// Reset clears recorded waits. The hook is kept.
func (s *FakeSleeper) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waits = nil
	s.total = 0
}
