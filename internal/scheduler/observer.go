package scheduler

// Firing describes one pass of Step over a popped event.
type Firing struct {
	Event Event

	// Clock is the virtual time in microseconds after the step's wait.
	Clock int64

	// Elapsed is Clock in whole seconds, the value passed to the callback.
	Elapsed int64

	// Waited is the real wait in microseconds handed to the Sleeper.
	Waited int64
}

// Observer receives scheduler notifications.
//
// Calls are made from the goroutine driving the scheduler, outside the
// internal lock and before the callback runs, so a panicking callback is
// still recorded.
type Observer interface {
	// Registered is called after a scheduling call inserts a new event.
	Registered(e Event)

	// Fired is called when an event is about to be invoked.
	Fired(f Firing)

	// Requeued is called when a pause during the wait put the event back.
	Requeued(f Firing)
}

// NopObserver ignores all notifications.
type NopObserver struct{}

func (NopObserver) Registered(Event) {}
func (NopObserver) Fired(Firing)     {}
func (NopObserver) Requeued(Firing)  {}

// MultiObserver fans notifications out in order.
type MultiObserver []Observer

func (m MultiObserver) Registered(e Event) {
	for _, o := range m {
		o.Registered(e)
	}
}

func (m MultiObserver) Fired(f Firing) {
	for _, o := range m {
		o.Fired(f)
	}
}

func (m MultiObserver) Requeued(f Firing) {
	for _, o := range m {
		o.Requeued(f)
	}
}
