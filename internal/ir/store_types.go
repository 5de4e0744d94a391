package ir

// Run is one execution of a program, as recorded in the firing log.
type Run struct {
	ID            string    `json:"id"`
	ProgramHash   string    `json:"program_hash"`
	EngineVersion string    `json:"engine_version"`
	TraceVersion  string    `json:"trace_version"`
	Tick          int64     `json:"tick"`
	StartClock    int64     `json:"start_clock"`
	Jobs          []JobSpec `json:"jobs"`
}

// Registration records one scheduler registration. All firings of a
// repeating event share its ID.
type Registration struct {
	ID        string `json:"id"`
	RunID     string `json:"run_id"`
	Seq       int64  `json:"seq"`
	Job       string `json:"job"`
	When      int64  `json:"when"`
	Repeating bool   `json:"repeating"`
	Interval  int64  `json:"interval,omitempty"`
}

// RunSummary aggregates the firing log of one run.
type RunSummary struct {
	RunID      string
	Fired      int
	Requeued   int
	LastSeq    int64
	FinalClock int64
	PerJob     map[string]int
}
