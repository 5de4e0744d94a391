package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/roach88/tickloop/internal/ir"
	"github.com/roach88/tickloop/internal/program"
	"github.com/roach88/tickloop/internal/scheduler"
	"github.com/roach88/tickloop/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database    string
	Tick        int64
	Steps       int
	StartPaused bool

	// Sleeper overrides the wall-clock sleeper (for testing).
	Sleeper scheduler.Sleeper

	// IDGenerator overrides registration IDs (for testing).
	// If nil, defaults to UUIDv7Generator.
	IDGenerator scheduler.IDGenerator
}

// RunReport is the summary printed when a run ends.
type RunReport struct {
	RunID       string         `json:"run_id"`
	ProgramHash string         `json:"program_hash"`
	Fired       int            `json:"fired"`
	Requeued    int            `json:"requeued"`
	FinalClock  int64          `json:"final_clock"`
	Pending     int            `json:"pending"`
	PerJob      map[string]int `json:"per_job"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <jobs-dir>",
		Short: "Run jobs on the event loop",
		Long: `Install the CUE jobs from a directory on a scheduler and run its event loop.

Every firing is recorded to the SQLite database (created if it does not
exist). The loop runs until interrupted, or for --steps iterations.

--tick sets the real microseconds slept per virtual millisecond: the
default 1000 runs in real time, smaller values run faster. On Unix systems
SIGUSR1 pauses the loop and SIGUSR2 resumes it.

Example:
  tickloop run --db ./tickloop.db ./jobs
  tickloop run --db /tmp/demo.db --tick 10 --steps 20 ./jobs`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScheduler(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().Int64Var(&opts.Tick, "tick", scheduler.DefaultTick, "real microseconds per virtual millisecond")
	cmd.Flags().IntVar(&opts.Steps, "steps", 0, "stop after this many loop iterations (0 runs until interrupted)")
	cmd.Flags().BoolVar(&opts.StartPaused, "start-paused", false, "start with the loop paused")

	return cmd
}

func runScheduler(opts *RunOptions, jobsDir string, cmd *cobra.Command) error {
	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)

	if opts.Tick <= 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("--tick must be positive, got %d", opts.Tick))
	}
	if opts.Steps < 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("--steps must be >= 0, got %d", opts.Steps))
	}

	logger.Info("loading jobs", "dir", jobsDir)
	jobs, err := loadProgram(jobsDir)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load jobs", err)
	}
	logger.Info("jobs loaded", "count", len(jobs))

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	// Writes must outlive cancellation so the final flush lands.
	writeCtx := context.WithoutCancel(ctx)

	hash, err := ir.ProgramHash(jobs)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to hash program", err)
	}
	run := ir.Run{
		ID:            uuid.Must(uuid.NewV7()).String(),
		ProgramHash:   hash,
		EngineVersion: ir.EngineVersion,
		TraceVersion:  ir.TraceVersion,
		Tick:          opts.Tick,
		Jobs:          jobs,
	}
	if err := st.WriteRun(writeCtx, run); err != nil {
		return WrapExitError(ExitCommandError, "failed to record run", err)
	}

	recorder := store.NewRecorder(writeCtx, st, run.ID, store.WithRecorderLogger(logger))

	sleeper := opts.Sleeper
	if sleeper == nil {
		sleeper = scheduler.NewRealSleeper(ctx)
	}
	ids := opts.IDGenerator
	if ids == nil {
		ids = scheduler.UUIDv7Generator{}
	}
	sched := scheduler.New(
		scheduler.WithSleeper(sleeper),
		scheduler.WithContext(ctx),
		scheduler.WithLogger(logger),
		scheduler.WithDebug(opts.Verbose),
		scheduler.WithIDGenerator(ids),
		scheduler.WithObserver(recorder),
		scheduler.WithRunning(!opts.StartPaused),
	)

	if _, err := program.Install(sched, jobs, runEmitter(opts.Format, cmd.OutOrStdout(), logger)); err != nil {
		return WrapExitError(ExitCommandError, "failed to install jobs", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			sched.Pause()
			cancel()
		case <-ctx.Done():
		}
	}()

	stopPause := watchPauseSignals(ctx, sched, logger)
	defer stopPause()

	logger.Info("run starting", "run_id", run.ID, "db", opts.Database, "tick", opts.Tick)
	if opts.Format != "json" {
		fmt.Fprintf(cmd.OutOrStdout(), "Run %s started with %d job(s).\n", run.ID, len(jobs))
		if opts.Steps == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl-C to stop.")
		}
	}

	if opts.Steps > 0 {
		for i := 0; i < opts.Steps && ctx.Err() == nil; i++ {
			sched.Step(opts.Tick)
		}
	} else if err := sched.Run(ctx, opts.Tick); err != nil && !errors.Is(err, context.Canceled) {
		return WrapExitError(ExitFailure, "scheduler error", err)
	}

	if err := recorder.Flush(); err != nil {
		return WrapExitError(ExitFailure, "failed to write firing log", err)
	}

	summary, err := st.Summarize(writeCtx, run.ID)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to summarize run", err)
	}
	logger.Info("run stopped", "run_id", run.ID, "clock", sched.Now())

	report := RunReport{
		RunID:       run.ID,
		ProgramHash: hash,
		Fired:       summary.Fired,
		Requeued:    summary.Requeued,
		FinalClock:  sched.Now(),
		Pending:     sched.Pending(),
		PerJob:      summary.PerJob,
	}

	if opts.Format == "json" {
		formatter := newFormatter(opts.RootOptions, cmd)
		return formatter.Success(report)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Run %s stopped at %ds: %d fired, %d requeued, %d pending\n",
		report.RunID, report.FinalClock/scheduler.MicrosPerSecond, report.Fired, report.Requeued, report.Pending)
	return nil
}

// newLogger builds the command logger: text to w, debug level when verbose.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// runEmitter chooses where job output goes. Text output prints emissions to
// stdout; JSON output keeps stdout for the final report and logs emissions
// instead.
func runEmitter(format string, w io.Writer, logger *slog.Logger) program.Emitter {
	if format == "json" {
		return program.LogEmitter(logger)
	}
	return program.LogEmitter(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) == 0 && (a.Key == slog.TimeKey || a.Key == slog.LevelKey) {
				return slog.Attr{}
			}
			return a
		},
	})))
}
