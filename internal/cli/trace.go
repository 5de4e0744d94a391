package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/tickloop/internal/ir"
	"github.com/roach88/tickloop/internal/scheduler"
	"github.com/roach88/tickloop/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	RunID    string
	Job      string // optional - filter to a single job
}

// RunListing is one line of the run list.
type RunListing struct {
	RunID       string `json:"run_id"`
	ProgramHash string `json:"program_hash"`
	Tick        int64  `json:"tick"`
	Jobs        int    `json:"jobs"`
	Fired       int    `json:"fired"`
	Requeued    int    `json:"requeued"`
	FinalClock  int64  `json:"final_clock"`
}

// TraceResult holds the complete trace of one run.
type TraceResult struct {
	Run           ir.Run            `json:"run"`
	Registrations []ir.Registration `json:"registrations"`
	Timeline      []ir.TraceEvent   `json:"timeline"`
	Stats         TraceStats        `json:"stats"`
}

// TraceStats holds summary statistics for the run.
type TraceStats struct {
	TotalEvents int            `json:"total_events"`
	Fired       int            `json:"fired"`
	Requeued    int            `json:"requeued"`
	FinalClock  int64          `json:"final_clock"`
	PerJob      map[string]int `json:"per_job"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Inspect the firing log",
		Long: `Inspect the firing log written by run.

Without --run, lists every recorded run with its totals. With --run, shows
the run's registrations, the timeline of firings and requeues in seq order,
and per-job counts.

Examples:
  tickloop trace --db ./tickloop.db
  tickloop trace --db ./tickloop.db --run 0190f3c2-...
  tickloop trace --db ./tickloop.db --run 0190f3c2-... --job blink --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run ID to trace")
	cmd.Flags().StringVar(&opts.Job, "job", "", "filter the timeline to one job")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := newFormatter(opts.RootOptions, cmd)

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	if opts.RunID == "" {
		if opts.Job != "" {
			return NewExitError(ExitCommandError, "--job requires --run")
		}
		listings, err := listRuns(ctx, st)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list runs", err)
		}
		if formatter.Format == "json" {
			return formatter.Success(listings)
		}
		return outputRunListText(formatter.Writer, listings)
	}

	run, err := st.ReadRun(ctx, opts.RunID)
	if errors.Is(err, sql.ErrNoRows) {
		return NewExitError(ExitCommandError, fmt.Sprintf("run not found: %s", opts.RunID))
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	regs, err := st.ListRegistrations(ctx, run.ID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list registrations", err)
	}
	if opts.Job != "" {
		regs = slices.DeleteFunc(regs, func(r ir.Registration) bool { return r.Job != opts.Job })
	}

	timeline, err := st.ListFirings(ctx, run.ID, opts.Job)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list firings", err)
	}

	summary, err := st.Summarize(ctx, run.ID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to summarize run", err)
	}

	result := TraceResult{
		Run:           run,
		Registrations: regs,
		Timeline:      timeline,
		Stats: TraceStats{
			TotalEvents: len(timeline),
			Fired:       summary.Fired,
			Requeued:    summary.Requeued,
			FinalClock:  summary.FinalClock,
			PerJob:      summary.PerJob,
		},
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	return outputTraceText(formatter.Writer, result, opts.Verbose)
}

// listRuns summarizes every recorded run.
func listRuns(ctx context.Context, st *store.Store) ([]RunListing, error) {
	runs, err := st.ListRuns(ctx)
	if err != nil {
		return nil, err
	}

	listings := make([]RunListing, 0, len(runs))
	for _, run := range runs {
		summary, err := st.Summarize(ctx, run.ID)
		if err != nil {
			return nil, err
		}
		listings = append(listings, RunListing{
			RunID:       run.ID,
			ProgramHash: run.ProgramHash,
			Tick:        run.Tick,
			Jobs:        len(run.Jobs),
			Fired:       summary.Fired,
			Requeued:    summary.Requeued,
			FinalClock:  summary.FinalClock,
		})
	}
	return listings, nil
}

func outputRunListText(w io.Writer, listings []RunListing) error {
	if len(listings) == 0 {
		fmt.Fprintln(w, "No runs found in database.")
		return nil
	}

	for _, l := range listings {
		fmt.Fprintf(w, "%s  jobs=%d fired=%d requeued=%d clock=%ds\n",
			l.RunID, l.Jobs, l.Fired, l.Requeued, l.FinalClock/scheduler.MicrosPerSecond)
	}
	return nil
}

func outputTraceText(w io.Writer, result TraceResult, verbose bool) error {
	fmt.Fprintf(w, "Run: %s\n", result.Run.ID)
	fmt.Fprintf(w, "Program: %s (engine %s, tick %d)\n",
		truncateID(result.Run.ProgramHash), result.Run.EngineVersion, result.Run.Tick)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Registrations ===")
	if len(result.Registrations) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for _, r := range result.Registrations {
		kind := "once"
		if r.Repeating {
			kind = fmt.Sprintf("every %ds", r.Interval/scheduler.MicrosPerSecond)
		}
		fmt.Fprintf(w, "  %s %s due %ds, %s\n", truncateID(r.ID), r.Job, r.When/scheduler.MicrosPerSecond, kind)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no events)")
	}
	for _, e := range result.Timeline {
		formatTimelineEvent(w, e, verbose)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Total Events: %d\n", result.Stats.TotalEvents)
	fmt.Fprintf(w, "  Fired:        %d\n", result.Stats.Fired)
	fmt.Fprintf(w, "  Requeued:     %d\n", result.Stats.Requeued)
	fmt.Fprintf(w, "  Final Clock:  %dus\n", result.Stats.FinalClock)
	fmt.Fprintf(w, "  Per Job:      %s\n", formatCounts(result.Stats.PerJob))

	return nil
}

// formatTimelineEvent formats a single timeline event for text output.
func formatTimelineEvent(w io.Writer, e ir.TraceEvent, verbose bool) {
	switch e.Type {
	case ir.TraceFired:
		fmt.Fprintf(w, "  [%d] FIRE %s at %ds\n", e.Seq, e.Job, e.Elapsed)
	case ir.TraceRequeued:
		fmt.Fprintf(w, "  [%d] REQUEUE %s at %ds\n", e.Seq, e.Job, e.Elapsed)
	}
	if verbose {
		fmt.Fprintf(w, "       when=%d clock=%d waited=%d id=%s\n", e.When, e.Clock, e.Waited, truncateID(e.RegistrationID))
	}
}

// formatCounts formats per-job counts with sorted keys for deterministic output.
func formatCounts(counts map[string]int) string {
	if len(counts) == 0 {
		return "{}"
	}

	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%d", k, counts[k])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// truncateID truncates a long ID for display.
func truncateID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:8] + "..." + id[len(id)-8:]
}
