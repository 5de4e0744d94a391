package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/tickloop/internal/ir"
	"github.com/roach88/tickloop/internal/program"
	"github.com/roach88/tickloop/internal/scheduler"
	"github.com/roach88/tickloop/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	RunID    string // optional - specific run only
}

// ReplayRunResult holds the replay result for a single run.
type ReplayRunResult struct {
	RunID         string `json:"run_id"`
	Fired         int    `json:"fired"`
	Requeued      int    `json:"requeued"`
	HashMatches   bool   `json:"hash_matches"`
	Deterministic bool   `json:"deterministic"`
	Divergence    string `json:"divergence,omitempty"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Runs             []ReplayRunResult `json:"runs"`
	TotalRuns        int               `json:"total_runs"`
	AllDeterministic bool              `json:"all_deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-execute recorded runs and verify determinism",
		Long: `Re-execute recorded runs on the virtual clock and compare the firings.

Each run's stored program is installed on a fresh scheduler that never
sleeps. The loop steps until it has fired as many events as the log holds,
then the job, due time and clock of every firing are compared in order.
Pauses do not change firing order, so a recorded run always replays
identically unless the log or the engine has changed.

Exit codes:
  0 - All runs replay identically
  1 - At least one run diverged
  2 - Command error (database not found, etc.)

Examples:
  tickloop replay --db ./tickloop.db
  tickloop replay --db ./tickloop.db --run 0190f3c2-...`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "replay a specific run only")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	var runs []ir.Run
	if opts.RunID != "" {
		run, err := st.ReadRun(ctx, opts.RunID)
		if errors.Is(err, sql.ErrNoRows) {
			return NewExitError(ExitCommandError, fmt.Sprintf("run not found: %s", opts.RunID))
		}
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read run", err)
		}
		runs = []ir.Run{run}
	} else {
		runs, err = st.ListRuns(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list runs", err)
		}
	}

	result := ReplayResult{
		Runs:             make([]ReplayRunResult, 0, len(runs)),
		TotalRuns:        len(runs),
		AllDeterministic: true,
	}

	for _, run := range runs {
		runResult, err := replayRun(ctx, st, run)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to replay run %s", run.ID), err)
		}
		result.Runs = append(result.Runs, runResult)
		if !runResult.Deterministic {
			result.AllDeterministic = false
		}
	}

	formatter := newFormatter(opts.RootOptions, cmd)
	if formatter.Format == "json" {
		if result.AllDeterministic {
			return formatter.Success(result)
		}
		if err := formatter.Failure("E_NONDETERMINISTIC", "replay diverged from the firing log", result); err != nil {
			return err
		}
		return NewExitError(ExitFailure, "replay diverged from the firing log")
	}

	return outputReplayText(formatter.Writer, result)
}

// firingCollector keeps the fired events of a replay.
type firingCollector struct {
	scheduler.NopObserver
	fired []ir.TraceEvent
}

func (c *firingCollector) Fired(f scheduler.Firing) {
	c.fired = append(c.fired, store.TraceEvent(ir.TraceFired, int64(len(c.fired)+1), f))
}

// replayRun re-executes one run and compares its fired events with the log.
func replayRun(ctx context.Context, st *store.Store, run ir.Run) (ReplayRunResult, error) {
	summary, err := st.Summarize(ctx, run.ID)
	if err != nil {
		return ReplayRunResult{}, err
	}
	logged, err := st.ListFirings(ctx, run.ID, "")
	if err != nil {
		return ReplayRunResult{}, err
	}

	var want []ir.TraceEvent
	for _, e := range logged {
		if e.Type == ir.TraceFired {
			want = append(want, e)
		}
	}

	res := ReplayRunResult{
		RunID:    run.ID,
		Fired:    summary.Fired,
		Requeued: summary.Requeued,
	}

	hash, err := ir.ProgramHash(run.Jobs)
	if err != nil {
		return ReplayRunResult{}, err
	}
	res.HashMatches = hash == run.ProgramHash

	got, err := replayFirings(run, len(want))
	if err != nil {
		res.Divergence = err.Error()
		return res, nil
	}

	res.Divergence = compareFirings(want, got)
	res.Deterministic = res.HashMatches && res.Divergence == ""
	if !res.HashMatches && res.Divergence == "" {
		res.Divergence = "program hash does not match stored jobs"
	}
	return res, nil
}

// replayFirings steps a silent scheduler until n events have fired or the
// queue runs dry.
func replayFirings(run ir.Run, n int) ([]ir.TraceEvent, error) {
	collector := &firingCollector{}
	sched := scheduler.New(
		scheduler.WithSleeper(scheduler.SleeperFunc(func(int64) {})),
		scheduler.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		scheduler.WithClockAt(run.StartClock),
		scheduler.WithObserver(collector),
		scheduler.WithRunning(true),
	)
	if _, err := program.Install(sched, run.Jobs, nil); err != nil {
		return nil, err
	}

	for len(collector.fired) < n {
		if res := sched.Step(run.Tick); res.Outcome == scheduler.OutcomeIdle {
			break
		}
	}
	return collector.fired, nil
}

// compareFirings returns a description of the first difference, or "".
func compareFirings(want, got []ir.TraceEvent) string {
	for i := range want {
		if i >= len(got) {
			return fmt.Sprintf("replay stopped after %d of %d firings", len(got), len(want))
		}
		w, g := want[i], got[i]
		if w.Job != g.Job || w.When != g.When || w.Clock != g.Clock {
			return fmt.Sprintf("firing %d (seq %d): logged %s due %d at %d, replayed %s due %d at %d",
				i+1, w.Seq, w.Job, w.When, w.Clock, g.Job, g.When, g.Clock)
		}
	}
	return ""
}

func outputReplayText(w io.Writer, result ReplayResult) error {
	if result.TotalRuns == 0 {
		fmt.Fprintln(w, "No runs found in database.")
		return nil
	}

	for _, r := range result.Runs {
		mark := "✓"
		if !r.Deterministic {
			mark = "✗"
		}
		fmt.Fprintf(w, "%s %s: %d fired, %d requeued\n", mark, r.RunID, r.Fired, r.Requeued)
		if r.Divergence != "" {
			fmt.Fprintf(w, "  %s\n", r.Divergence)
		}
	}

	fmt.Fprintln(w)
	if !result.AllDeterministic {
		fmt.Fprintln(w, "✗ Replay diverged from the firing log")
		return NewExitError(ExitFailure, "replay diverged from the firing log")
	}
	fmt.Fprintln(w, "✓ All runs replay identically")
	return nil
}
