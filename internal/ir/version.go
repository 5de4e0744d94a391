package ir

// Version constants recorded with every run.
const (
	// TraceVersion is the trace record schema version.
	TraceVersion = "1"

	// EngineVersion is the tickloop scheduler version.
	EngineVersion = "0.1.0"
)
