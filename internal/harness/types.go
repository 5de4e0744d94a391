package harness

import "github.com/roach88/tickloop/internal/ir"

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall test success.
	Pass bool `json:"pass"`

	// Trace holds every fired and requeued event in observation order,
	// read back from the firing log.
	Trace []ir.TraceEvent `json:"trace"`

	// Outcomes holds the outcome of each step.
	Outcomes []string `json:"outcomes"`

	// FinalClock is the virtual clock after the last step, in microseconds.
	FinalClock int64 `json:"final_clock"`

	// QueueLen is the number of events still queued.
	QueueLen int `json:"queue_len"`

	// Errors contains assertion failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:     true,
		Trace:    []ir.TraceEvent{},
		Outcomes: []string{},
		Errors:   []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Fired returns only the fired events of the trace.
func (r *Result) Fired() []ir.TraceEvent {
	var out []ir.TraceEvent
	for _, e := range r.Trace {
		if e.Type == ir.TraceFired {
			out = append(out, e)
		}
	}
	return out
}
