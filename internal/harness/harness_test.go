package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(n int) *int       { return &n }
func clockPtr(n int64) *int64 { return &n }

// writeJobs writes a CUE job file into a temp dir and returns its path.
func writeJobs(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "jobs.cue")
	require.NoError(t, os.WriteFile(path, []byte(src), 0644))
	return path
}

func TestGoldenScenarios(t *testing.T) {
	files, err := FindScenarios("testdata", "")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, file := range files {
		scenario, err := LoadScenario(file)
		require.NoError(t, err, file)

		t.Run(scenario.Name, func(t *testing.T) {
			result, err := Run(scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "assertion errors: %v", result.Errors)

			require.NoError(t, AssertGolden(t, scenario.Name, result))
		})
	}
}

func TestRunWithGolden(t *testing.T) {
	scenario, err := LoadScenario("testdata/tick_tock.yaml")
	require.NoError(t, err)

	require.NoError(t, RunWithGolden(t, scenario))
}

func TestRun_StepOutcomes(t *testing.T) {
	scenario, err := LoadScenario("testdata/pause_during_wait.yaml")
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.Equal(t, []string{"requeued", "fired", "idle"}, result.Outcomes)
}

func TestRun_StartPaused(t *testing.T) {
	scenario := &Scenario{
		Name:        "paused",
		Description: "paused scheduler never fires",
		Specs:       []string{writeJobs(t, `job: now: { kind: "once" }`)},
		Paused:      true,
		Steps:       3,
		Controls:    []Control{{Step: 2, Action: ControlResume}},
		Assertions: []Assertion{
			{Type: AssertFireCount, Job: "now", Count: intPtr(1)},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "%v", result.Errors)
	assert.Equal(t, []string{"paused", "paused", "fired"}, result.Outcomes)
}

func TestRun_PauseControl(t *testing.T) {
	scenario := &Scenario{
		Name:        "pause",
		Description: "pausing stops firing until resumed",
		Specs:       []string{writeJobs(t, `job: beat: { kind: "every", every: 1 }`)},
		Steps:       5,
		Controls: []Control{
			{Step: 1, Action: ControlPause},
			{Step: 3, Action: ControlResume},
		},
		Assertions: []Assertion{
			{Type: AssertFireAt, Job: "beat", Elapsed: []int64{1, 2, 3}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "%v", result.Errors)
	assert.Equal(t, []string{"fired", "paused", "paused", "fired", "fired"}, result.Outcomes)
}

func TestRun_OnceControl(t *testing.T) {
	scenario := &Scenario{
		Name:        "adhoc",
		Description: "a once control registers relative to the current clock",
		Specs:       []string{writeJobs(t, `job: beat: { kind: "every", every: 2 }`)},
		Steps:       3,
		Controls:    []Control{{Step: 1, Action: ControlOnce, Job: "ping", After: 1}},
		Assertions: []Assertion{
			{Type: AssertFireOrder, Jobs: []string{"beat", "ping", "beat"}},
			{Type: AssertFireAt, Job: "ping", Elapsed: []int64{3}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "%v", result.Errors)
	assert.Equal(t, "reg-2", result.Fired()[1].RegistrationID)
}

func TestRun_Counters(t *testing.T) {
	scenario := &Scenario{
		Name:        "counters",
		Description: "shorter interval wins a tie",
		Specs: []string{writeJobs(t, `
job: digits: { kind: "count", every: 1, start: 1, end: 3 }
job: odo:    { kind: "count2", every: 2, start: 0, end: 1, start2: 0, end2: 1 }
`)},
		Steps: 8,
		Assertions: []Assertion{
			{Type: AssertFireOrder, Jobs: []string{"digits", "odo", "digits", "digits", "odo", "digits", "digits", "odo"}},
			{Type: AssertFireCount, Job: "digits", Count: intPtr(5)},
			{Type: AssertFireCount, Job: "odo", Count: intPtr(3)},
			{Type: AssertFireAt, Job: "odo", Elapsed: []int64{0, 2, 4}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "%v", result.Errors)
}

func TestRun_FailingAssertions(t *testing.T) {
	scenario := &Scenario{
		Name:        "wrong",
		Description: "every assertion is wrong",
		Specs:       []string{writeJobs(t, `job: a: { kind: "once", after: 1 }`)},
		Steps:       2,
		Assertions: []Assertion{
			{Type: AssertFireOrder, Jobs: []string{"b"}},
			{Type: AssertFireCount, Job: "a", Count: intPtr(2)},
			{Type: AssertFireAt, Job: "a", Elapsed: []int64{9}},
			{Type: AssertFinalClock, Clock: clockPtr(0)},
			{Type: AssertQueueLen, Count: intPtr(1)},
			{Type: AssertRequeueCount, Count: intPtr(1)},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 6)
	assert.Contains(t, result.Errors[0], "Assertion failed: fire_order")
	assert.Contains(t, result.Errors[0], "[1] fired a at 1s")
	assert.Contains(t, result.Errors[3], "Actual: clock 1000000")
}

func TestRun_InvalidSpec(t *testing.T) {
	scenario := &Scenario{
		Name:        "bad",
		Description: "spec does not compile",
		Specs:       []string{writeJobs(t, `job: a: { kind: "every" }`)},
		Steps:       1,
		Assertions:  []Assertion{{Type: AssertQueueLen, Count: intPtr(0)}},
	}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to compile")
}

func TestEvaluateAssertions_InvalidAssertion(t *testing.T) {
	errs := EvaluateAssertions(NewResult(), []Assertion{{Type: AssertFireCount, Job: "a"}})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "requires count")
}

func TestSnapshotJSON_EmptyTrace(t *testing.T) {
	data, err := SnapshotJSON("empty", NewResult())
	require.NoError(t, err)
	assert.Equal(t,
		`{"final_clock":0,"queue_len":0,"scenario_name":"empty","trace":[],"trace_version":"1"}`,
		string(data))
}
