package scheduler

// Counter is a Callback that owns a cyclic counter.
//
// On each firing: if the value passed end it resets to start, fn sees the
// value, then the value increments. Counter(1, 3) yields 1, 2, 3, 1, ...
type Counter struct {
	start, end int
	value      int
	fn         func(int)
}

// NewCounter creates a counter positioned at start.
func NewCounter(start, end int, fn func(int)) *Counter {
	return &Counter{start: start, end: end, value: start, fn: fn}
}

// Fire implements Callback.
func (c *Counter) Fire(int64) {
	if c.value > c.end {
		c.value = c.start
	}
	c.fn(c.value)
	c.value++
}

// Odometer is a Callback that owns two nested cyclic counters.
//
// The inner counter advances once per firing; when it wraps it carries one
// into the outer counter, which wraps on its own range.
type Odometer struct {
	start1, end1 int
	start2, end2 int
	outer, inner int
	fn           func(outer, inner int)
}

// NewOdometer creates an odometer positioned at (start1, start2).
func NewOdometer(start1, end1, start2, end2 int, fn func(outer, inner int)) *Odometer {
	return &Odometer{
		start1: start1,
		end1:   end1,
		start2: start2,
		end2:   end2,
		outer:  start1,
		inner:  start2,
		fn:     fn,
	}
}

// Fire implements Callback.
func (o *Odometer) Fire(int64) {
	if o.inner > o.end2 {
		o.inner = o.start2
		o.outer++
	}
	if o.outer > o.end1 {
		o.outer = o.start1
	}
	o.fn(o.outer, o.inner)
	o.inner++
}
