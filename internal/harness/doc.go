// Package harness provides scenario testing for tickloop programs.
//
// The harness compiles CUE job files, installs them on a scheduler with a
// fake sleeper and sequential registration IDs, drives a fixed number of
// steps and checks assertions against the resulting firing trace.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: tick_tock
//	description: "tick and tock alternate one second apart"
//	specs:
//	  - jobs.cue
//	tick: 1000
//	steps: 4
//	controls:
//	  - step: 2
//	    action: pause_during_wait
//	  - step: 3
//	    action: resume
//	assertions:
//	  - type: fire_order
//	    jobs: [tick, tock]
//	  - type: final_clock
//	    clock: 2000000
//
// Spec paths are resolved relative to the scenario file.
//
// # Controls
//
// Controls run before the step with the given zero-based index:
//
//   - pause: pause the scheduler
//   - resume: resume the scheduler
//   - pause_during_wait: pause from inside the sleep of that step, so the
//     popped event is requeued instead of fired
//   - once: register a one-shot job named job, after seconds from now
//
// # Assertion Types
//
//   - fire_order: the fired jobs, in order, are exactly jobs
//   - fire_count: job fired exactly count times
//   - fire_at: job fired at exactly the elapsed seconds listed
//   - final_clock: the virtual clock ends at clock microseconds
//   - queue_len: count events remain queued
//   - requeue_count: count events were requeued by a pause during a wait
//
// # Deterministic Testing
//
// Every run uses:
//   - testutil.FakeSleeper, so no real time passes
//   - testutil.SequentialIDGenerator, so registration IDs are reg-1, reg-2, ...
//   - An in-memory SQLite firing log, read back to build the trace
//
// This ensures identical traces across runs for golden file comparison.
package harness
