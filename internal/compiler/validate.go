package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/tickloop/internal/ir"
)

// Validation error codes (E100-E199)
const (
	ErrJobNameEmpty     = "E101" // job name is required
	ErrInvalidKind      = "E102" // unknown job kind
	ErrIntervalTooSmall = "E103" // repeating job needs every >= 1
	ErrNegativeDelay    = "E104" // after/offset must be >= 0
	ErrCounterRange     = "E105" // start must not exceed end
	ErrDuplicateName    = "E106" // duplicate job name
	ErrFieldNotForKind  = "E107" // field has no meaning for this kind
	ErrUnknownField     = "E108" // field is not a job field
	ErrInvalidType      = "E109" // numeric field is not an integer
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// ValidateJob checks a single job. Returns all errors found (does not
// fail-fast).
func ValidateJob(j *ir.JobSpec) []ValidationError {
	var errs []ValidationError
	add := func(field, code, format string, args ...any) {
		errs = append(errs, ValidationError{
			Field:   field,
			Message: fmt.Sprintf(format, args...),
			Code:    code,
		})
	}

	if strings.TrimSpace(j.Name) == "" {
		add("name", ErrJobNameEmpty, "job name is required")
	}

	if !j.Kind.Valid() {
		add("kind", ErrInvalidKind, "unknown kind %q, must be one of %s", j.Kind, kindList())
		return errs
	}

	if j.After < 0 {
		add("after", ErrNegativeDelay, "after must be >= 0, got %d", j.After)
	}
	if j.Offset < 0 {
		add("offset", ErrNegativeDelay, "offset must be >= 0, got %d", j.Offset)
	}

	if j.Kind.Repeating() && j.Every < 1 {
		add("every", ErrIntervalTooSmall, "%s job needs every >= 1, got %d", j.Kind, j.Every)
	}

	switch j.Kind {
	case ir.JobOnce:
		if j.Every != 0 {
			add("every", ErrFieldNotForKind, "once jobs do not repeat")
		}
	default:
		if j.After != 0 {
			add("after", ErrFieldNotForKind, "after is only used by once jobs")
		}
	}

	if j.Offset != 0 && j.Kind != ir.JobEveryOffset && j.Kind != ir.JobCount && j.Kind != ir.JobCount2 {
		add("offset", ErrFieldNotForKind, "offset is not used by %s jobs", j.Kind)
	}

	switch j.Kind {
	case ir.JobCount:
		if j.Start > j.End {
			add("start", ErrCounterRange, "start %d exceeds end %d", j.Start, j.End)
		}
		if j.Start2 != 0 || j.End2 != 0 {
			add("start2", ErrFieldNotForKind, "start2/end2 are only used by count2 jobs")
		}
	case ir.JobCount2:
		if j.Start > j.End {
			add("start", ErrCounterRange, "start %d exceeds end %d", j.Start, j.End)
		}
		if j.Start2 > j.End2 {
			add("start2", ErrCounterRange, "start2 %d exceeds end2 %d", j.Start2, j.End2)
		}
	default:
		if j.Start != 0 || j.End != 0 || j.Start2 != 0 || j.End2 != 0 {
			add("start", ErrFieldNotForKind, "counter fields are only used by count and count2 jobs")
		}
	}

	return errs
}

// ValidateProgram checks every job and the job set as a whole.
func ValidateProgram(jobs []ir.JobSpec) []ValidationError {
	var errs []ValidationError
	seen := make(map[string]bool, len(jobs))

	for i := range jobs {
		for _, e := range ValidateJob(&jobs[i]) {
			e.Field = fmt.Sprintf("job.%s.%s", jobs[i].Name, e.Field)
			errs = append(errs, e)
		}

		if seen[jobs[i].Name] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("job.%s", jobs[i].Name),
				Message: fmt.Sprintf("duplicate job name: %q", jobs[i].Name),
				Code:    ErrDuplicateName,
			})
		}
		seen[jobs[i].Name] = true
	}

	return errs
}

func kindList() string {
	names := make([]string, len(ir.JobKinds))
	for i, k := range ir.JobKinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}
