package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tickloop/internal/ir"
)

func TestWriteRunRoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	want := ir.Run{
		ID:            "run-1",
		ProgramHash:   "abc",
		EngineVersion: ir.EngineVersion,
		TraceVersion:  ir.TraceVersion,
		Tick:          250,
		StartClock:    3_000_000,
		Jobs: []ir.JobSpec{
			{Name: "alarm", Kind: ir.JobOnce, After: 5, Message: "wake <up> & go"},
			{Name: "odo", Kind: ir.JobCount2, Every: 1, Start: 1, End: 2, End2: 3},
		},
	}
	require.NoError(t, s.WriteRun(ctx, want))

	got, err := s.ReadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestWriteRunIdempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	createTestRun(t, s, "run-1")
	require.NoError(t, s.WriteRun(ctx, ir.Run{ID: "run-1", ProgramHash: "other"}))

	got, err := s.ReadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "test-hash", got.ProgramHash, "first write wins")
}

func TestReadRunNotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.ReadRun(context.Background(), "nope")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestListRunsOrderedAndEmpty(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	runs, err := s.ListRuns(ctx)
	require.NoError(t, err)
	assert.NotNil(t, runs)
	assert.Empty(t, runs)

	createTestRun(t, s, "run-b")
	createTestRun(t, s, "run-a")

	runs, err = s.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-a", runs[0].ID)
	assert.Equal(t, "run-b", runs[1].ID)
}

func TestWriteRegistrations(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestRun(t, s, "run-1")

	regs := []ir.Registration{
		{ID: "reg-2", RunID: "run-1", Seq: 2, Job: "b", When: 1_000_000, Repeating: true, Interval: 1_000_000},
		{ID: "reg-1", RunID: "run-1", Seq: 1, Job: "a", When: 5_000_000},
	}
	require.NoError(t, s.WriteRegistrations(ctx, regs))
	// Duplicate is ignored
	require.NoError(t, s.WriteRegistrations(ctx, regs[:1]))

	got, err := s.ListRegistrations(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, []ir.Registration{regs[1], regs[0]}, got)
}

func TestWriteRegistrationsRequiresRun(t *testing.T) {
	s := createTestStore(t)

	err := s.WriteRegistrations(context.Background(), []ir.Registration{
		{ID: "reg-1", RunID: "ghost", Seq: 1, Job: "a"},
	})
	assert.Error(t, err, "foreign key should reject unknown run")
}

func TestWriteFiringsOrderedBySeq(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestRun(t, s, "run-1")

	events := []ir.TraceEvent{
		createTestEvent(3, "a", 2_000_000),
		createTestEvent(1, "a", 0),
		createTestEvent(2, "b", 1_000_000),
	}
	require.NoError(t, s.WriteFirings(ctx, "run-1", events))

	got, err := s.ListFirings(ctx, "run-1", "")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []int64{1, 2, 3}, []int64{got[0].Seq, got[1].Seq, got[2].Seq})
	assert.Equal(t, events[1], got[0])
}

func TestWriteFiringsRetryIsHarmless(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestRun(t, s, "run-1")

	batch := []ir.TraceEvent{createTestEvent(1, "a", 0)}
	require.NoError(t, s.WriteFirings(ctx, "run-1", batch))
	require.NoError(t, s.WriteFirings(ctx, "run-1", batch))

	got, err := s.ListFirings(ctx, "run-1", "")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestWriteFiringsAtomic(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestRun(t, s, "run-1")

	bad := createTestEvent(2, "a", 0)
	bad.Type = "exploded" // violates CHECK constraint

	err := s.WriteFirings(ctx, "run-1", []ir.TraceEvent{createTestEvent(1, "a", 0), bad})
	require.Error(t, err)

	got, err := s.ListFirings(ctx, "run-1", "")
	require.NoError(t, err)
	assert.Empty(t, got, "failed batch must not be partially written")
}

func TestListFiringsByJob(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestRun(t, s, "run-1")
	createTestRun(t, s, "run-2")

	require.NoError(t, s.WriteFirings(ctx, "run-1", []ir.TraceEvent{
		createTestEvent(1, "a", 0),
		createTestEvent(2, "b", 1_000_000),
		createTestEvent(3, "a", 2_000_000),
	}))
	require.NoError(t, s.WriteFirings(ctx, "run-2", []ir.TraceEvent{
		createTestEvent(1, "a", 0),
	}))

	got, err := s.ListFirings(ctx, "run-1", "a")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(1), got[0].Seq)
	assert.Equal(t, int64(3), got[1].Seq)

	none, err := s.ListFirings(ctx, "run-1", "zzz")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestEmptyBatchesAreNoops(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	assert.NoError(t, s.WriteRegistrations(ctx, nil))
	assert.NoError(t, s.WriteFirings(ctx, "no-such-run", nil))
}
