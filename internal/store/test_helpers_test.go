package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/tickloop/internal/ir"
)

// createTestStore creates a new file-backed store in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRun writes a run with minimal required fields.
func createTestRun(t *testing.T, s *Store, id string) ir.Run {
	t.Helper()
	run := ir.Run{
		ID:            id,
		ProgramHash:   "test-hash",
		EngineVersion: ir.EngineVersion,
		TraceVersion:  ir.TraceVersion,
		Tick:          1000,
		Jobs: []ir.JobSpec{
			{Name: "blink", Kind: ir.JobTick, Every: 1},
		},
	}
	if err := s.WriteRun(context.Background(), run); err != nil {
		t.Fatalf("WriteRun() failed: %v", err)
	}
	return run
}

// createTestEvent builds a fired trace event for job at seq.
func createTestEvent(seq int64, job string, clock int64) ir.TraceEvent {
	return ir.TraceEvent{
		Seq:            seq,
		Type:           ir.TraceFired,
		Job:            job,
		RegistrationID: "reg-" + job,
		When:           clock,
		Clock:          clock,
		Elapsed:        clock / 1_000_000,
		Repeating:      true,
		Interval:       1_000_000,
	}
}
