package scheduler

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
)

const (
	// DefaultTick maps one virtual microsecond to one real microsecond.
	DefaultTick int64 = 1000

	// IdleWait is the real wait in microseconds when there is nothing to fire.
	IdleWait int64 = 1
)

// Outcome classifies what a single Step did.
type Outcome int

const (
	// OutcomePaused means the scheduler was not running; nothing changed.
	OutcomePaused Outcome = iota + 1
	// OutcomeIdle means the queue was empty; nothing changed.
	OutcomeIdle
	// OutcomeRequeued means a pause raced the wait and the event went back unfired.
	OutcomeRequeued
	// OutcomeFired means the event's callback was invoked.
	OutcomeFired
)

func (o Outcome) String() string {
	switch o {
	case OutcomePaused:
		return "paused"
	case OutcomeIdle:
		return "idle"
	case OutcomeRequeued:
		return "requeued"
	case OutcomeFired:
		return "fired"
	default:
		return "unknown"
	}
}

// StepResult reports the outcome of one Step.
type StepResult struct {
	Outcome Outcome

	// Event is the popped event for OutcomeRequeued and OutcomeFired.
	Event Event

	// Waited is the real wait in microseconds handed to the Sleeper.
	Waited int64
}

// Scheduler owns the queue, the virtual clock and the running and debug flags.
//
// Thread-safety model:
//   - Step(): called serially by one host loop
//   - scheduling calls, Pause(), Resume(): safe from callbacks and from other goroutines
//   - Now(), Elapsed(), Running(): safe from any goroutine
//
// INVARIANTS:
//   - the clock never moves backwards
//   - a repeating event's successor is queued before its callback runs
//   - the internal lock is never held across a sleep or a callback
type Scheduler struct {
	mu    sync.Mutex
	queue *Queue
	clock *Clock

	running atomic.Bool
	debug   atomic.Bool

	sleeper  Sleeper
	stop     context.Context
	logger   *slog.Logger
	observer Observer
	ids      IDGenerator
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithSleeper sets the host blocking primitive.
//
// Default: a RealSleeper bound to context.Background().
func WithSleeper(sl Sleeper) Option {
	return func(s *Scheduler) {
		if sl != nil {
			s.sleeper = sl
		}
	}
}

// WithLogger sets the diagnostic sink.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithDebug sets the initial debug flag.
func WithDebug(on bool) Option {
	return func(s *Scheduler) {
		s.debug.Store(on)
	}
}

// WithRunning sets the initial running flag. Schedulers start paused.
func WithRunning(on bool) Option {
	return func(s *Scheduler) {
		s.running.Store(on)
	}
}

// WithObserver adds an observer. May be given more than once.
func WithObserver(o Observer) Option {
	return func(s *Scheduler) {
		if o == nil {
			return
		}
		if _, nop := s.observer.(NopObserver); nop {
			s.observer = o
			return
		}
		if multi, ok := s.observer.(MultiObserver); ok {
			s.observer = append(multi, o)
			return
		}
		s.observer = MultiObserver{s.observer, o}
	}
}

// WithIDGenerator sets the registration ID source.
//
// Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(s *Scheduler) {
		if g != nil {
			s.ids = g
		}
	}
}

// WithClockAt starts the virtual clock at the given microsecond.
func WithClockAt(start int64) Option {
	return func(s *Scheduler) {
		s.clock = NewClockAt(start)
	}
}

// WithContext ties the scheduler to a host lifetime. A wait that ends with
// ctx done pauses the scheduler before the post-wait check, so the event is
// requeued instead of fired ahead of its real time.
func WithContext(ctx context.Context) Option {
	return func(s *Scheduler) {
		s.stop = ctx
	}
}

// New creates a paused scheduler with an empty queue and the clock at 0.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		queue:    NewQueue(),
		clock:    NewClock(),
		sleeper:  NewRealSleeper(context.Background()),
		logger:   slog.Default(),
		observer: NopObserver{},
		ids:      UUIDv7Generator{},
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Step runs one pass of the event loop and fires at most one event.
//
// tick is the number of real milliseconds one virtual second maps to;
// values <= 0 mean DefaultTick. A real wait is (when - clock) * tick / 1000
// microseconds, so tick above 1000 slows virtual time down relative to the
// wall clock and tick below 1000 speeds it up.
//
// The clock jumps to the event's instant before the wait. If the scheduler
// is paused while waiting, the event is put back unchanged and not fired;
// the clock keeps its new value.
//
// Callback panics are not recovered. A repeating event's successor is
// already queued when the callback runs.
func (s *Scheduler) Step(tick int64) StepResult {
	if tick <= 0 {
		tick = DefaultTick
	}

	if !s.running.Load() {
		s.sleeper.SleepMicros(IdleWait)
		return StepResult{Outcome: OutcomePaused, Waited: IdleWait}
	}

	s.mu.Lock()
	s.debugf("event loop wake", "clock", s.clock.Now(), "pending", s.queue.Len())

	next, ok := s.queue.RemoveMin()
	if !ok {
		s.mu.Unlock()
		s.debugf("no events, waiting", "micros", IdleWait)
		s.sleeper.SleepMicros(IdleWait)
		return StepResult{Outcome: OutcomeIdle, Waited: IdleWait}
	}

	var waited int64
	now := s.clock.Now()
	if next.When > now {
		waited = scaleWait(next.When-now, tick)
		now = s.clock.AdvanceTo(next.When)
		s.mu.Unlock()

		s.debugf("waiting for next event", "when", next.When, "wait", waited, "label", next.Label)
		s.sleeper.SleepMicros(waited)
		if s.stop != nil && s.stop.Err() != nil {
			s.Pause()
		}

		s.mu.Lock()
		if !s.running.Load() {
			s.queue.Insert(next)
			s.mu.Unlock()

			s.debugf("paused during wait, event requeued", "when", next.When, "label", next.Label)
			s.observer.Requeued(Firing{Event: next, Clock: now, Elapsed: now / MicrosPerSecond, Waited: waited})
			return StepResult{Outcome: OutcomeRequeued, Event: next, Waited: waited}
		}
	}

	if next.Repeating {
		succ := next.successor(now)
		s.queue.Insert(succ)
		s.debugf("scheduling repeat", "interval", next.Interval, "when", succ.When, "label", next.Label)
	}
	s.mu.Unlock()

	elapsed := now / MicrosPerSecond
	s.debugf("firing event", "when", next.When, "clock", now, "label", next.Label)
	s.observer.Fired(Firing{Event: next, Clock: now, Elapsed: elapsed, Waited: waited})

	next.Callback.Fire(elapsed)

	return StepResult{Outcome: OutcomeFired, Event: next, Waited: waited}
}

// Run calls Step back-to-back until ctx is done, then returns ctx.Err().
// Pair it with a RealSleeper and WithContext on the same ctx so long waits
// end early without firing.
func (s *Scheduler) Run(ctx context.Context, tick int64) error {
	s.logger.Info("scheduler loop starting", "tick", tick, "running", s.running.Load())
	for {
		if err := ctx.Err(); err != nil {
			s.logger.Info("scheduler loop stopping", "clock", s.clock.Now(), "reason", err)
			return err
		}
		s.Step(tick)
	}
}

// Pause stops the loop from firing. Callable at any time, including from
// inside a callback or while Step is blocked in the Sleeper.
func (s *Scheduler) Pause() {
	s.running.Store(false)
	s.debugf("scheduler paused")
}

// Resume lets the loop fire again.
func (s *Scheduler) Resume() {
	s.running.Store(true)
	s.debugf("scheduler resumed")
}

// Running reports the running flag.
func (s *Scheduler) Running() bool {
	return s.running.Load()
}

// SetDebug toggles diagnostic output. It has no effect on scheduling.
func (s *Scheduler) SetDebug(on bool) {
	s.debug.Store(on)
}

// Debug reports the debug flag.
func (s *Scheduler) Debug() bool {
	return s.debug.Load()
}

// Now returns the virtual clock in microseconds.
func (s *Scheduler) Now() int64 {
	return s.clock.Now()
}

// Elapsed returns the virtual clock in whole seconds.
func (s *Scheduler) Elapsed() int64 {
	return s.clock.Elapsed()
}

// Pending returns the number of queued events.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Len()
}

// Peek returns the next event to fire without removing it.
func (s *Scheduler) Peek() (Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.PeekMin()
}

// Snapshot returns a copy of the queued events in heap order.
func (s *Scheduler) Snapshot() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Snapshot()
}

// scaleWait converts a virtual delta to a real wait. Multiplying first keeps
// sub-1000 ticks from truncating to zero; the product saturates.
func scaleWait(delta, tick int64) int64 {
	return mulSat(delta, tick) / 1000
}

// debugf logs a diagnostic when the debug flag is set. The flag is the
// gate, so records go out at Info and show with a default logger.
func (s *Scheduler) debugf(msg string, args ...any) {
	if s.debug.Load() {
		s.logger.Info(msg, args...)
	}
}

// mulSat multiplies, clamping to the int64 range instead of wrapping.
func mulSat(a, b int64) int64 {
	if a == 0 || b == 0 {
		return 0
	}
	c := a * b
	if c/b != a || (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		if (a < 0) != (b < 0) {
			return math.MinInt64
		}
		return math.MaxInt64
	}
	return c
}

// addSat adds a non-negative delta to t, clamping at math.MaxInt64.
func addSat(t, delta int64) int64 {
	if delta > math.MaxInt64-t {
		return math.MaxInt64
	}
	return t + delta
}
