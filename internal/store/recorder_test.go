package store

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tickloop/internal/ir"
	"github.com/roach88/tickloop/internal/scheduler"
	"github.com/roach88/tickloop/internal/testutil"
)

type namedFunc struct{ name string }

func (n namedFunc) Fire(int64)    {}
func (n namedFunc) Label() string { return n.name }

func newRecordedScheduler(t *testing.T, rec *Recorder) (*scheduler.Scheduler, *testutil.FakeSleeper) {
	t.Helper()
	sl := testutil.NewFakeSleeper()
	s := scheduler.New(
		scheduler.WithSleeper(sl),
		scheduler.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		scheduler.WithIDGenerator(testutil.NewSequentialIDGenerator("")),
		scheduler.WithObserver(rec),
		scheduler.WithRunning(true),
	)
	return s, sl
}

func TestTraceEventFromFiring(t *testing.T) {
	f := scheduler.Firing{
		Event: scheduler.Event{
			ID: "reg-1", Label: "blink", When: 2_000_000, Repeating: true, Interval: 2_000_000,
		},
		Clock:   2_000_000,
		Elapsed: 2,
		Waited:  2_000_000,
	}

	got := TraceEvent(ir.TraceFired, 5, f)
	assert.Equal(t, ir.TraceEvent{
		Seq:            5,
		Type:           ir.TraceFired,
		Job:            "blink",
		RegistrationID: "reg-1",
		When:           2_000_000,
		Clock:          2_000_000,
		Elapsed:        2,
		Waited:         2_000_000,
		Repeating:      true,
		Interval:       2_000_000,
	}, got)
}

func TestRecorderRecordsRun(t *testing.T) {
	st := createTestStore(t)
	ctx := context.Background()
	createTestRun(t, st, "run-1")

	rec := NewRecorder(ctx, st, "run-1")
	s, _ := newRecordedScheduler(t, rec)

	s.DoEveryOffset(2, 0, namedFunc{"blink"})
	s.DoOnce(5, namedFunc{"alarm"})

	for i := 0; i < 5; i++ {
		s.Step(scheduler.DefaultTick)
	}
	assert.Equal(t, 7, rec.Pending(), "below batch size nothing is written yet")
	require.NoError(t, rec.Flush())
	assert.Zero(t, rec.Pending())

	regs, err := st.ListRegistrations(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, regs, 2)
	assert.Equal(t, "blink", regs[0].Job)
	assert.True(t, regs[0].Repeating)
	assert.Equal(t, "alarm", regs[1].Job)
	assert.Equal(t, int64(5_000_000), regs[1].When)

	firings, err := st.ListFirings(ctx, "run-1", "")
	require.NoError(t, err)

	type seen struct {
		seq   int64
		job   string
		clock int64
	}
	var got []seen
	for _, f := range firings {
		got = append(got, seen{f.Seq, f.Job, f.Clock})
	}
	assert.Equal(t, []seen{
		{1, "blink", 0},
		{2, "blink", 2_000_000},
		{3, "blink", 4_000_000},
		{4, "alarm", 5_000_000},
		{5, "blink", 6_000_000},
	}, got)
	assert.Equal(t, "reg-1", firings[2].RegistrationID, "successors keep the registration ID")
}

func TestRecorderRecordsRequeue(t *testing.T) {
	st := createTestStore(t)
	ctx := context.Background()
	createTestRun(t, st, "run-1")

	rec := NewRecorder(ctx, st, "run-1")
	s, sl := newRecordedScheduler(t, rec)
	sl.OnSleep(func(int, int64) { s.Pause() })

	s.DoOnce(3, namedFunc{"late"})
	res := s.Step(scheduler.DefaultTick)
	require.Equal(t, scheduler.OutcomeRequeued, res.Outcome)
	require.NoError(t, rec.Flush())

	firings, err := st.ListFirings(ctx, "run-1", "")
	require.NoError(t, err)
	require.Len(t, firings, 1)
	assert.Equal(t, ir.TraceRequeued, firings[0].Type)
	assert.Equal(t, int64(3_000_000), firings[0].Clock)
}

func TestRecorderAutoFlushAtBatchSize(t *testing.T) {
	st := createTestStore(t)
	ctx := context.Background()
	createTestRun(t, st, "run-1")

	rec := NewRecorder(ctx, st, "run-1", WithBatchSize(2))
	s, _ := newRecordedScheduler(t, rec)

	s.DoEvery(1, namedFunc{"beat"}) // 1 pending
	s.Step(scheduler.DefaultTick)   // 2 pending -> flush

	assert.Zero(t, rec.Pending())
	firings, err := st.ListFirings(ctx, "run-1", "")
	require.NoError(t, err)
	assert.Len(t, firings, 1)
}

func TestRecorderBatchSizeFloor(t *testing.T) {
	st := createTestStore(t)
	createTestRun(t, st, "run-1")

	rec := NewRecorder(context.Background(), st, "run-1", WithBatchSize(0))
	s, _ := newRecordedScheduler(t, rec)

	s.DoOnce(0, namedFunc{"now"})
	assert.Zero(t, rec.Pending(), "batch size is at least one")
}

func TestRecorderKeepsFirstError(t *testing.T) {
	st := createTestStore(t)
	var logs bytes.Buffer

	// No run row: the foreign key rejects the write.
	rec := NewRecorder(context.Background(), st, "ghost",
		WithBatchSize(1),
		WithRecorderLogger(slog.New(slog.NewTextHandler(&logs, nil))),
	)
	s, _ := newRecordedScheduler(t, rec)
	s.DoOnce(0, namedFunc{"x"})

	require.Error(t, rec.Err())
	assert.Contains(t, logs.String(), "firing log write failed")
	assert.Error(t, rec.Flush())
	assert.Equal(t, 1, rec.Pending(), "failed records stay buffered")
}

func TestRecorderRetriesFailedBatch(t *testing.T) {
	st := createTestStore(t)
	ctx := context.Background()

	rec := NewRecorder(ctx, st, "late",
		WithBatchSize(1),
		WithRecorderLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	s, _ := newRecordedScheduler(t, rec)
	s.DoOnce(0, namedFunc{"x"})
	s.Step(scheduler.DefaultTick)

	require.Error(t, rec.Err())
	assert.Equal(t, 2, rec.Pending())

	// Once the run row exists the buffered records land.
	createTestRun(t, st, "late")
	require.NoError(t, rec.Flush())
	assert.Zero(t, rec.Pending())
	assert.Error(t, rec.Err(), "the first failure is still reported")

	regs, err := st.ListRegistrations(ctx, "late")
	require.NoError(t, err)
	require.Len(t, regs, 1)
	assert.Equal(t, "x", regs[0].Job)

	firings, err := st.ListFirings(ctx, "late", "")
	require.NoError(t, err)
	require.Len(t, firings, 1)
	assert.Equal(t, int64(1), firings[0].Seq)
}

func TestRecorderNilContext(t *testing.T) {
	st := createTestStore(t)
	createTestRun(t, st, "run-1")

	//nolint:staticcheck // nil context is accepted
	rec := NewRecorder(nil, st, "run-1")
	s, _ := newRecordedScheduler(t, rec)
	s.DoOnce(0, namedFunc{"x"})
	assert.NoError(t, rec.Flush())
}
