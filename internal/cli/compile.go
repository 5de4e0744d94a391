package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/tickloop/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompilationResult is the compiled program.
type CompilationResult struct {
	ProgramHash string       `json:"program_hash"`
	Jobs        []ir.JobSpec `json:"jobs"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <jobs-dir>",
		Short: "Compile CUE jobs to canonical JSON",
		Long: `Compile the CUE job definitions in a directory to canonical JSON.

The output lists the jobs in declaration order together with the program
hash that run records, so two directories describing the same jobs can be
compared byte for byte.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, jobsDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	jobs, err := loadProgram(jobsDir)
	if err != nil {
		code := loadErrorCode(err)
		_ = formatter.Error(code, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to compile jobs", err)
	}

	hash, err := ir.ProgramHash(jobs)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to hash program", err)
	}
	result := CompilationResult{ProgramHash: hash, Jobs: jobs}

	data, err := canonicalProgram(result)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to marshal program", err)
	}

	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, data, 0644); err != nil {
			_ = formatter.Error(ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
			return WrapExitError(ExitCommandError, "failed to write output", err)
		}
		formatter.VerboseLog("Wrote %s", opts.Output)
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ Compiled %d job(s)\n", len(jobs))
	fmt.Fprintf(w, "  program hash: %s\n", hash)
	for _, j := range jobs {
		fmt.Fprintf(w, "  %-16s %s\n", j.Name, j.Kind)
	}
	if opts.Output == "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, string(data))
	}
	return nil
}

// canonicalProgram renders a compiled program as canonical JSON.
func canonicalProgram(result CompilationResult) ([]byte, error) {
	jobs := make([]any, len(result.Jobs))
	for i, j := range result.Jobs {
		jobs[i] = j.CanonicalMap()
	}
	return ir.MarshalCanonical(map[string]any{
		"program_hash":  result.ProgramHash,
		"engine":        ir.EngineVersion,
		"trace_version": ir.TraceVersion,
		"jobs":          jobs,
	})
}
