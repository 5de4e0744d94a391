// Package scheduler implements the tickloop cooperative event scheduler.
//
// Callers register one-shot and repeating callbacks; a host invokes Step
// repeatedly and each invocation fires at most one due callback. Time is a
// virtual clock counted in microseconds.
//
// ARCHITECTURE:
//
// Single-Step Event Loop:
// Step is the only state transition of the system. Each call:
//  1. Returns after a 1µs idle wait when paused or when the queue is empty
//  2. Pops the minimum Event from the Queue
//  3. Jumps the clock to the event's instant and blocks on the host Sleeper
//     for the scaled delta
//  4. Re-queues the event unfired if Pause happened during the wait
//  5. Inserts the successor of a repeating event, then fires the callback
//
// Ordering:
// Events are ordered by When, then one-shot before repeating, then by the
// shorter Interval. Insertion order never matters.
//
// Concurrency:
// The runtime model is cooperative. Queue and clock are mutated only inside
// Step or a scheduling call, both of which run to completion. The running
// flag may change while Step sleeps, so it is re-read after every wait.
// Neither the sleep nor the callback runs with the internal lock held, which
// lets callbacks schedule more work or pause the loop.
package scheduler
