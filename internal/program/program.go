// Package program installs compiled job definitions onto a scheduler.
//
// Each ir.JobKind maps onto one scheduler primitive. Every installed
// callback carries the job name as its label, so traces and the firing log
// can be correlated back to the CUE source.
package program

import (
	"fmt"
	"log/slog"

	"github.com/roach88/tickloop/internal/compiler"
	"github.com/roach88/tickloop/internal/ir"
	"github.com/roach88/tickloop/internal/scheduler"
)

// Emission is what a job produces when it fires.
type Emission struct {
	Job     string
	Kind    ir.JobKind
	Elapsed int64
	Message string

	// Values holds the counter value for count jobs and the (outer, inner)
	// pair for count2 jobs. Empty for other kinds.
	Values []int
}

// Emitter receives every emission. Called on the scheduler's goroutine.
type Emitter func(Emission)

// LogEmitter returns an Emitter that logs each emission at Info level.
func LogEmitter(logger *slog.Logger) Emitter {
	return func(e Emission) {
		args := []any{"job", e.Job, "kind", string(e.Kind), "elapsed", e.Elapsed}
		if e.Message != "" {
			args = append(args, "message", e.Message)
		}
		if len(e.Values) > 0 {
			args = append(args, "values", e.Values)
		}
		logger.Info("job fired", args...)
	}
}

// jobCallback is a labeled scheduler callback.
type jobCallback struct {
	name string
	fire func(elapsed int64)
}

func (c jobCallback) Fire(elapsed int64) { c.fire(elapsed) }
func (c jobCallback) Label() string      { return c.name }

// Install registers every job on s in order and returns the registration
// IDs, index-aligned with jobs. The job set is validated first; nothing is
// registered if any job is invalid.
func Install(s *scheduler.Scheduler, jobs []ir.JobSpec, emit Emitter) ([]string, error) {
	if errs := compiler.ValidateProgram(jobs); len(errs) > 0 {
		return nil, fmt.Errorf("invalid program: %w", errs[0])
	}
	if emit == nil {
		emit = func(Emission) {}
	}

	ids := make([]string, 0, len(jobs))
	for _, j := range jobs {
		ids = append(ids, installJob(s, j, emit))
	}
	return ids, nil
}

func installJob(s *scheduler.Scheduler, j ir.JobSpec, emit Emitter) string {
	plain := jobCallback{
		name: j.Name,
		fire: func(elapsed int64) {
			emit(Emission{Job: j.Name, Kind: j.Kind, Elapsed: elapsed, Message: j.Message})
		},
	}

	switch j.Kind {
	case ir.JobOnce:
		return s.DoOnce(j.After, plain)
	case ir.JobEvery:
		return s.DoEvery(j.Every, plain)
	case ir.JobEveryOffset:
		return s.DoEveryOffset(j.Every, j.Offset, plain)
	case ir.JobTick:
		return s.TickEvery(j.Every, plain)
	case ir.JobTock:
		return s.TockEvery(j.Every, plain)
	case ir.JobCount:
		return s.DoEveryOffset(j.Every, j.Offset, counterCallback(j, emit))
	case ir.JobCount2:
		return s.DoEveryOffset(j.Every, j.Offset, odometerCallback(j, emit))
	default:
		// ValidateProgram rejects unknown kinds.
		panic(fmt.Sprintf("program: unhandled job kind %q", j.Kind))
	}
}

func counterCallback(j ir.JobSpec, emit Emitter) jobCallback {
	var elapsed int64
	c := scheduler.NewCounter(j.Start, j.End, func(v int) {
		emit(Emission{Job: j.Name, Kind: j.Kind, Elapsed: elapsed, Message: j.Message, Values: []int{v}})
	})
	return jobCallback{
		name: j.Name,
		fire: func(e int64) {
			elapsed = e
			c.Fire(e)
		},
	}
}

func odometerCallback(j ir.JobSpec, emit Emitter) jobCallback {
	var elapsed int64
	o := scheduler.NewOdometer(j.Start, j.End, j.Start2, j.End2, func(outer, inner int) {
		emit(Emission{Job: j.Name, Kind: j.Kind, Elapsed: elapsed, Message: j.Message, Values: []int{outer, inner}})
	})
	return jobCallback{
		name: j.Name,
		fire: func(e int64) {
			elapsed = e
			o.Fire(e)
		},
	}
}
