package scheduler

import "time"

// Labeler is implemented by callbacks that carry a display name.
// The label is copied onto the event and every successor.
type Labeler interface {
	Label() string
}

// DoOnce fires f once, n seconds from the current virtual time.
// Returns the registration ID.
func (s *Scheduler) DoOnce(n int64, f Callback) string {
	return s.once(mulSat(n, MicrosPerSecond), f)
}

// DoEvery fires f every n seconds, first at n seconds from now.
func (s *Scheduler) DoEvery(n int64, f Callback) string {
	return s.DoEveryOffset(n, n, f)
}

// DoEveryOffset fires f every n seconds, first at o seconds from now.
func (s *Scheduler) DoEveryOffset(n, o int64, f Callback) string {
	return s.every(mulSat(n, MicrosPerSecond), mulSat(o, MicrosPerSecond), f)
}

// OnceAfter is DoOnce with sub-second resolution. d is truncated to whole
// microseconds.
func (s *Scheduler) OnceAfter(d time.Duration, f Callback) string {
	return s.once(d.Microseconds(), f)
}

// EveryOffset is DoEveryOffset with sub-second resolution.
func (s *Scheduler) EveryOffset(every, offset time.Duration, f Callback) string {
	return s.every(every.Microseconds(), offset.Microseconds(), f)
}

// TickEvery fires f every 2n seconds starting now. Paired with TockEvery
// for the same n, the two alternate n seconds apart.
func (s *Scheduler) TickEvery(n int64, f Callback) string {
	return s.DoEveryOffset(mulSat(2, n), 0, f)
}

// TockEvery fires f every 2n seconds starting n seconds from now.
func (s *Scheduler) TockEvery(n int64, f Callback) string {
	return s.DoEveryOffset(mulSat(2, n), n, f)
}

// CountEvery fires f every n seconds with the cyclic sequence
// start..end, start..end, ... (inclusive).
func (s *Scheduler) CountEvery(n int64, start, end int, f func(int)) string {
	return s.DoEveryOffset(n, 0, NewCounter(start, end, f))
}

// CountEvery2 fires f every n seconds with a two-digit odometer: the inner
// value cycles start2..end2 and carries into the outer value, which cycles
// start1..end1.
func (s *Scheduler) CountEvery2(n int64, start1, end1, start2, end2 int, f func(outer, inner int)) string {
	return s.DoEveryOffset(n, 0, NewOdometer(start1, end1, start2, end2, f))
}

// once inserts a one-shot event delay microseconds from now. Negative
// delays clamp to zero.
func (s *Scheduler) once(delay int64, f Callback) string {
	return s.schedule(delay, Event{Callback: f})
}

// every inserts a repeating event. Negative values clamp to zero; a zero
// interval is kept, which makes the event re-eligible immediately after
// every firing.
func (s *Scheduler) every(interval, offset int64, f Callback) string {
	if interval < 0 {
		interval = 0
	}
	e := Event{Callback: f, Repeating: true, Interval: interval}
	if interval == 0 {
		s.logger.Warn("repeating event with zero interval will refire immediately", "label", labelOf(f))
	}
	return s.schedule(offset, e)
}

func (s *Scheduler) schedule(delay int64, e Event) string {
	if delay < 0 {
		delay = 0
	}
	if e.Callback == nil {
		e.Callback = Func(func() {})
	}
	e.Label = labelOf(e.Callback)
	e.ID = s.ids.Generate()

	s.mu.Lock()
	e.When = addSat(s.clock.Now(), delay)
	s.queue.Insert(e)
	s.mu.Unlock()

	s.debugf("event scheduled", "id", e.ID, "label", e.Label, "when", e.When,
		"repeating", e.Repeating, "interval", e.Interval)
	s.observer.Registered(e)

	return e.ID
}

func labelOf(f Callback) string {
	if l, ok := f.(Labeler); ok {
		return l.Label()
	}
	return ""
}
