package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/tickloop/internal/compiler"
	"github.com/roach88/tickloop/internal/ir"
	"github.com/roach88/tickloop/internal/program"
	"github.com/roach88/tickloop/internal/scheduler"
	"github.com/roach88/tickloop/internal/store"
	"github.com/roach88/tickloop/internal/testutil"
)

// Harness is the scenario execution engine.
// It drives a scheduler with a fake sleeper and sequential IDs.
type Harness struct {
	sched    *scheduler.Scheduler
	sleeper  *testutil.FakeSleeper
	store    *store.Store
	recorder *store.Recorder
	runID    string

	// pauseInWait arms a pause inside the next sleeper call.
	pauseInWait bool
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh in-memory firing log for isolation.
//
// Execution flow:
// 1. Compile the CUE job files
// 2. Record a run and attach a recorder to a new scheduler
// 3. Install the jobs in declaration order
// 4. Apply controls and step the scheduler
// 5. Read the trace back from the log and evaluate assertions
func Run(scenario *Scenario) (*Result, error) {
	var jobs []ir.JobSpec
	for _, path := range scenario.Specs {
		compiled, err := compiler.CompileFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to compile %s: %w", path, err)
		}
		jobs = append(jobs, compiled...)
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()

	hash, err := ir.ProgramHash(jobs)
	if err != nil {
		return nil, err
	}
	run := ir.Run{
		ID:            "scenario-" + scenario.Name,
		ProgramHash:   hash,
		EngineVersion: ir.EngineVersion,
		TraceVersion:  ir.TraceVersion,
		Tick:          scenario.Tick,
		Jobs:          jobs,
	}
	if err := st.WriteRun(ctx, run); err != nil {
		return nil, err
	}

	h := &Harness{
		sleeper: testutil.NewFakeSleeper(),
		store:   st,
		runID:   run.ID,
	}
	h.recorder = store.NewRecorder(ctx, st, run.ID)
	h.sched = scheduler.New(
		scheduler.WithSleeper(h.sleeper),
		scheduler.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))), // Suppress logs in tests
		scheduler.WithIDGenerator(testutil.NewSequentialIDGenerator("")),
		scheduler.WithObserver(h.recorder),
		scheduler.WithRunning(!scenario.Paused),
	)
	h.sleeper.OnSleep(func(int, int64) {
		if h.pauseInWait {
			h.pauseInWait = false
			h.sched.Pause()
		}
	})

	if _, err := program.Install(h.sched, jobs, nil); err != nil {
		return nil, err
	}

	result := NewResult()
	byStep := make(map[int][]Control)
	for _, c := range scenario.Controls {
		byStep[c.Step] = append(byStep[c.Step], c)
	}

	for i := 0; i < scenario.Steps; i++ {
		for _, c := range byStep[i] {
			if err := h.apply(c); err != nil {
				return nil, fmt.Errorf("step %d: %w", i, err)
			}
		}
		res := h.sched.Step(scenario.Tick)
		h.pauseInWait = false
		result.Outcomes = append(result.Outcomes, res.Outcome.String())
	}

	if err := h.recorder.Flush(); err != nil {
		return nil, fmt.Errorf("failed to flush firing log: %w", err)
	}

	result.Trace, err = st.ListFirings(ctx, run.ID, "")
	if err != nil {
		return nil, err
	}
	result.FinalClock = h.sched.Now()
	result.QueueLen = h.sched.Pending()

	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(errMsg)
	}

	return result, nil
}

// apply executes one control against the scheduler.
func (h *Harness) apply(c Control) error {
	switch c.Action {
	case ControlPause:
		h.sched.Pause()
	case ControlResume:
		h.sched.Resume()
	case ControlPauseDuringWait:
		h.pauseInWait = true
	case ControlOnce:
		job := ir.JobSpec{Name: c.Job, Kind: ir.JobOnce, After: c.After}
		if _, err := program.Install(h.sched, []ir.JobSpec{job}, nil); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown control action %q", c.Action)
	}
	return nil
}
