package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tickloop/internal/ir"
)

func TestTraceListsRuns(t *testing.T) {
	jobs := []ir.JobSpec{{Name: "beat", Kind: ir.JobEvery, Every: 1}}
	dbPath := seedRun(t, jobs, []ir.TraceEvent{
		fired(1, "beat", 1_000_000),
		fired(2, "beat", 2_000_000),
	})

	out, _, err := execute(NewTraceCommand(&RootOptions{Format: "text"}), "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "run-1  jobs=1 fired=2 requeued=0 clock=2s")
}

func TestTraceListsRunsJSON(t *testing.T) {
	dbPath := seedRun(t, []ir.JobSpec{{Name: "a", Kind: ir.JobOnce}}, nil)

	out, _, err := execute(NewTraceCommand(&RootOptions{Format: "json"}), "--db", dbPath)
	require.NoError(t, err)

	var resp struct {
		Data []RunListing `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "run-1", resp.Data[0].RunID)
	assert.Equal(t, int64(1000), resp.Data[0].Tick)
}

func TestTraceRunTimeline(t *testing.T) {
	jobs := []ir.JobSpec{
		{Name: "beat", Kind: ir.JobEvery, Every: 1},
		{Name: "ping", Kind: ir.JobOnce, After: 1},
	}
	requeued := fired(3, "beat", 2_000_000)
	requeued.Type = ir.TraceRequeued
	dbPath := seedRun(t, jobs, []ir.TraceEvent{
		fired(1, "ping", 1_000_000),
		fired(2, "beat", 1_000_000),
		requeued,
		fired(4, "beat", 2_000_000),
	})

	out, _, err := execute(NewTraceCommand(&RootOptions{Format: "text"}), "--db", dbPath, "--run", "run-1")
	require.NoError(t, err)
	assert.Contains(t, out, "Run: run-1")
	assert.Contains(t, out, "[1] FIRE ping at 1s")
	assert.Contains(t, out, "[3] REQUEUE beat at 2s")
	assert.Contains(t, out, "Total Events: 4")
	assert.Contains(t, out, "Requeued:     1")
	assert.Contains(t, out, "Per Job:      {beat=2, ping=1}")
}

func TestTraceRunFilteredByJob(t *testing.T) {
	jobs := []ir.JobSpec{
		{Name: "beat", Kind: ir.JobEvery, Every: 1},
		{Name: "ping", Kind: ir.JobOnce, After: 1},
	}
	dbPath := seedRun(t, jobs, []ir.TraceEvent{
		fired(1, "ping", 1_000_000),
		fired(2, "beat", 1_000_000),
		fired(3, "beat", 2_000_000),
	})

	out, _, err := execute(NewTraceCommand(&RootOptions{Format: "json"}),
		"--db", dbPath, "--run", "run-1", "--job", "beat")
	require.NoError(t, err)

	var resp struct {
		Data TraceResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data.Timeline, 2)
	assert.Equal(t, int64(2), resp.Data.Timeline[0].Seq)
	assert.Equal(t, 2, resp.Data.Stats.TotalEvents)
	assert.Equal(t, 3, resp.Data.Stats.Fired)
	assert.Equal(t, jobs, resp.Data.Run.Jobs)
}

func TestTraceRecordedRunRegistrations(t *testing.T) {
	dbPath, _ := runDemo(t, "text")

	out, _, err := execute(NewTraceCommand(&RootOptions{Format: "json"}), "--db", dbPath)
	require.NoError(t, err)
	var list struct {
		Data []RunListing `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	require.Len(t, list.Data, 1)

	out, _, err = execute(NewTraceCommand(&RootOptions{Format: "text"}),
		"--db", dbPath, "--run", list.Data[0].RunID)
	require.NoError(t, err)
	assert.Contains(t, out, "blink due 0s, every 2s")
	assert.Contains(t, out, "alarm due 3s, once")
}

func TestTraceErrors(t *testing.T) {
	dbPath := seedRun(t, []ir.JobSpec{{Name: "a", Kind: ir.JobOnce}}, nil)

	_, _, err := execute(NewTraceCommand(&RootOptions{Format: "text"}), "--db", dbPath, "--run", "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found")

	_, _, err = execute(NewTraceCommand(&RootOptions{Format: "text"}), "--db", dbPath, "--job", "a")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--job requires --run")

	_, _, err = execute(NewTraceCommand(&RootOptions{Format: "text"}), "--run", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")

	_, _, err = execute(NewTraceCommand(&RootOptions{Format: "text"}),
		"--db", filepath.Join(t.TempDir(), "missing", "dir", "x.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
