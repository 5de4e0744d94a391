package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/tickloop/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string          // Assertion type for categorization
	Expected string          // Human-readable expected outcome
	Actual   string          // Human-readable actual outcome
	Trace    []ir.TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s at %ds\n", event.Seq, event.Type, event.Job, event.Elapsed)
		}
	}

	return buf.String()
}

// assertFireOrder checks that the fired jobs, in order, match exactly.
func assertFireOrder(result *Result, a Assertion) error {
	var got []string
	for _, e := range result.Fired() {
		got = append(got, e.Job)
	}

	if !slices.Equal(got, a.Jobs) {
		return &AssertionError{
			Type:     AssertFireOrder,
			Expected: fmt.Sprintf("%v", a.Jobs),
			Actual:   fmt.Sprintf("%v", got),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertFireCount checks that the job fired exactly Count times.
func assertFireCount(result *Result, a Assertion) error {
	count := 0
	for _, e := range result.Fired() {
		if e.Job == a.Job {
			count++
		}
	}

	if count != *a.Count {
		return &AssertionError{
			Type:     AssertFireCount,
			Expected: fmt.Sprintf("%d firings of %s", *a.Count, a.Job),
			Actual:   fmt.Sprintf("%d firings", count),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertFireAt checks the elapsed seconds of every firing of the job.
func assertFireAt(result *Result, a Assertion) error {
	var got []int64
	for _, e := range result.Fired() {
		if e.Job == a.Job {
			got = append(got, e.Elapsed)
		}
	}

	if !slices.Equal(got, a.Elapsed) {
		return &AssertionError{
			Type:     AssertFireAt,
			Expected: fmt.Sprintf("%s at %v", a.Job, a.Elapsed),
			Actual:   fmt.Sprintf("%s at %v", a.Job, got),
			Trace:    result.Trace,
		}
	}
	return nil
}

func assertFinalClock(result *Result, a Assertion) error {
	if result.FinalClock != *a.Clock {
		return &AssertionError{
			Type:     AssertFinalClock,
			Expected: fmt.Sprintf("clock %d", *a.Clock),
			Actual:   fmt.Sprintf("clock %d", result.FinalClock),
		}
	}
	return nil
}

func assertQueueLen(result *Result, a Assertion) error {
	if result.QueueLen != *a.Count {
		return &AssertionError{
			Type:     AssertQueueLen,
			Expected: fmt.Sprintf("%d queued events", *a.Count),
			Actual:   fmt.Sprintf("%d queued events", result.QueueLen),
		}
	}
	return nil
}

func assertRequeueCount(result *Result, a Assertion) error {
	count := 0
	for _, e := range result.Trace {
		if e.Type == ir.TraceRequeued {
			count++
		}
	}

	if count != *a.Count {
		return &AssertionError{
			Type:     AssertRequeueCount,
			Expected: fmt.Sprintf("%d requeues", *a.Count),
			Actual:   fmt.Sprintf("%d requeues", count),
			Trace:    result.Trace,
		}
	}
	return nil
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, a := range assertions {
		if err := validateAssertion(i, &a); err != nil {
			errors = append(errors, err.Error())
			continue
		}

		var err error
		switch a.Type {
		case AssertFireOrder:
			err = assertFireOrder(result, a)
		case AssertFireCount:
			err = assertFireCount(result, a)
		case AssertFireAt:
			err = assertFireAt(result, a)
		case AssertFinalClock:
			err = assertFinalClock(result, a)
		case AssertQueueLen:
			err = assertQueueLen(result, a)
		case AssertRequeueCount:
			err = assertRequeueCount(result, a)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
