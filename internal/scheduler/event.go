package scheduler

// MicrosPerSecond converts whole seconds to clock units.
const MicrosPerSecond int64 = 1_000_000

// Callback is a unit of work owned by an Event.
//
// Fire receives the elapsed whole seconds of the virtual clock at the moment
// the event fires. Callbacks that do not care may ignore it.
type Callback interface {
	Fire(elapsed int64)
}

// Func adapts a zero-argument function to Callback.
type Func func()

// Fire implements Callback.
func (f Func) Fire(int64) { f() }

// ElapsedFunc adapts a function taking elapsed seconds to Callback.
type ElapsedFunc func(elapsed int64)

// Fire implements Callback.
func (f ElapsedFunc) Fire(elapsed int64) { f(elapsed) }

// Event is one scheduled firing.
//
// When is immutable once the event is inserted. A repeating event is
// replaced by a fresh successor on every firing; the successor shares the
// callback, interval, ID and label.
type Event struct {
	// ID correlates a registration with all of its firings.
	ID string

	// Label is a human-readable name used in diagnostics and traces.
	Label string

	Callback Callback

	// When is the absolute virtual time in microseconds at which the event
	// becomes eligible to fire.
	When int64

	Repeating bool

	// Interval is the recurrence period in microseconds. Only meaningful
	// when Repeating is set.
	Interval int64
}

// Less reports whether a fires before b.
//
// Earlier When wins. At the same When a one-shot event precedes a repeating
// one, and between two repeating events the shorter Interval wins.
func Less(a, b Event) bool {
	if a.When != b.When {
		return a.When < b.When
	}
	if a.Repeating != b.Repeating {
		return !a.Repeating
	}
	return a.Interval < b.Interval
}

// successor returns the next occurrence of a repeating event fired at now.
func (e Event) successor(now int64) Event {
	next := e
	next.When = addSat(now, e.Interval)
	return next
}
