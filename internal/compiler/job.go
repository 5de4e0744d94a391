// Package compiler turns CUE job definitions into ir.JobSpec values.
//
// A program is a CUE struct with a top-level "job" field:
//
//	job: blink: {
//		kind:  "every_offset"
//		every: 2
//	}
//	job: alarm: {
//		kind:    "once"
//		after:   5
//		message: "wake up"
//	}
//
// Time fields are whole seconds. Floats are rejected so that programs hash
// and replay identically.
package compiler

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/tickloop/internal/ir"
)

// knownFields lists every field a job struct may carry.
var knownFields = map[string]bool{
	"kind":    true,
	"after":   true,
	"every":   true,
	"offset":  true,
	"start":   true,
	"end":     true,
	"start2":  true,
	"end2":    true,
	"message": true,
}

// CompileJob parses a CUE value into a JobSpec and validates it.
//
// The CUE value should be the job struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`job: blink: { kind: "tick", every: 1 }`)
//	spec, err := CompileJob(v.LookupPath(cue.ParsePath("job.blink")))
func CompileJob(v cue.Value) (*ir.JobSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	spec := &ir.JobSpec{}

	// Job name comes from the struct label
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		spec.Name = labels[len(labels)-1].Unquoted()
	}

	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		label := iter.Selector().Unquoted()
		if !knownFields[label] {
			return nil, &CompileError{
				Field:   label,
				Message: "unknown job field",
				Code:    ErrUnknownField,
				Pos:     iter.Value().Pos(),
			}
		}
	}

	kindVal := v.LookupPath(cue.ParsePath("kind"))
	if !kindVal.Exists() {
		return nil, &CompileError{
			Field:   "kind",
			Message: "kind is required",
			Code:    ErrInvalidKind,
			Pos:     v.Pos(),
		}
	}
	kind, err := kindVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	spec.Kind = ir.JobKind(kind)

	if spec.After, err = lookupInt64(v, "after"); err != nil {
		return nil, err
	}
	if spec.Every, err = lookupInt64(v, "every"); err != nil {
		return nil, err
	}
	if spec.Offset, err = lookupInt64(v, "offset"); err != nil {
		return nil, err
	}

	counters := []struct {
		name string
		dst  *int
	}{
		{"start", &spec.Start},
		{"end", &spec.End},
		{"start2", &spec.Start2},
		{"end2", &spec.End2},
	}
	for _, c := range counters {
		n, err := lookupInt64(v, c.name)
		if err != nil {
			return nil, err
		}
		*c.dst = int(n)
	}

	msgVal := v.LookupPath(cue.ParsePath("message"))
	if msgVal.Exists() {
		msg, err := msgVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		spec.Message = msg
	}

	if errs := ValidateJob(spec); len(errs) > 0 {
		return nil, &CompileError{
			Field:   errs[0].Field,
			Message: errs[0].Message,
			Code:    errs[0].Code,
			Pos:     v.Pos(),
		}
	}

	return spec, nil
}

// CompileJobs compiles every job under the top-level "job" field, in
// declaration order. A value without a "job" field yields no jobs.
func CompileJobs(root cue.Value) ([]ir.JobSpec, error) {
	if err := root.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	jobsVal := root.LookupPath(cue.ParsePath("job"))
	if !jobsVal.Exists() {
		return nil, nil
	}

	iter, err := jobsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var jobs []ir.JobSpec
	for iter.Next() {
		spec, err := CompileJob(iter.Value())
		if err != nil {
			return nil, fmt.Errorf("job %s: %w", iter.Selector().Unquoted(), err)
		}
		jobs = append(jobs, *spec)
	}

	if errs := ValidateProgram(jobs); len(errs) > 0 {
		return nil, errs[0]
	}
	return jobs, nil
}

// CompileFile compiles the jobs of a single CUE file.
func CompileFile(path string) ([]ir.JobSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	v := cuecontext.New().CompileBytes(data, cue.Filename(path))
	return CompileJobs(v)
}

// lookupInt64 reads an optional integer field. Missing fields are zero.
func lookupInt64(v cue.Value, field string) (int64, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return 0, nil
	}
	if err := fv.Err(); err != nil {
		return 0, formatCUEError(err)
	}

	switch fv.IncompleteKind() {
	case cue.IntKind:
	case cue.FloatKind, cue.NumberKind:
		return 0, &CompileError{
			Field:   field,
			Message: "floats are forbidden, use whole seconds",
			Code:    ErrInvalidType,
			Pos:     fv.Pos(),
		}
	default:
		return 0, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("must be an integer, got %v", fv.IncompleteKind()),
			Code:    ErrInvalidType,
			Pos:     fv.Pos(),
		}
	}

	n, err := fv.Int64()
	if err != nil {
		return 0, formatCUEError(err)
	}
	return n, nil
}
