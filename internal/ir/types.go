package ir

// JobKind selects the scheduling primitive a job is installed with.
type JobKind string

const (
	// JobOnce fires once, After seconds from installation.
	JobOnce JobKind = "once"
	// JobEvery repeats every Every seconds, first after one interval.
	JobEvery JobKind = "every"
	// JobEveryOffset repeats every Every seconds, first after Offset seconds.
	JobEveryOffset JobKind = "every_offset"
	// JobTick repeats every 2*Every seconds starting immediately.
	JobTick JobKind = "tick"
	// JobTock repeats every 2*Every seconds starting after Every seconds.
	JobTock JobKind = "tock"
	// JobCount repeats every Every seconds with a cyclic counter Start..End.
	JobCount JobKind = "count"
	// JobCount2 repeats every Every seconds with a two-digit odometer.
	JobCount2 JobKind = "count2"
)

// JobKinds lists every valid kind in documentation order.
var JobKinds = []JobKind{JobOnce, JobEvery, JobEveryOffset, JobTick, JobTock, JobCount, JobCount2}

// Valid reports whether k is a known kind.
func (k JobKind) Valid() bool {
	for _, known := range JobKinds {
		if k == known {
			return true
		}
	}
	return false
}

// Repeating reports whether jobs of this kind recur.
func (k JobKind) Repeating() bool {
	return k.Valid() && k != JobOnce
}

// JobSpec is a compiled job definition.
//
// Time fields are whole seconds, matching the scheduler's seconds-based
// primitives. Counter fields are only meaningful for JobCount and JobCount2.
type JobSpec struct {
	Name    string  `json:"name"`
	Kind    JobKind `json:"kind"`
	After   int64   `json:"after,omitempty"`
	Every   int64   `json:"every,omitempty"`
	Offset  int64   `json:"offset,omitempty"`
	Start   int     `json:"start,omitempty"`
	End     int     `json:"end,omitempty"`
	Start2  int     `json:"start2,omitempty"`
	End2    int     `json:"end2,omitempty"`
	Message string  `json:"message,omitempty"`
}

// CanonicalMap converts the spec for canonical JSON serialization.
// Zero-valued optional fields are omitted so equivalent specs hash equally.
func (j JobSpec) CanonicalMap() map[string]any {
	m := map[string]any{
		"name": j.Name,
		"kind": string(j.Kind),
	}
	putNonZero(m, "after", j.After)
	putNonZero(m, "every", j.Every)
	putNonZero(m, "offset", j.Offset)
	putNonZero(m, "start", int64(j.Start))
	putNonZero(m, "end", int64(j.End))
	putNonZero(m, "start2", int64(j.Start2))
	putNonZero(m, "end2", int64(j.End2))
	if j.Message != "" {
		m["message"] = j.Message
	}
	return m
}

// Trace event types.
const (
	TraceFired    = "fired"
	TraceRequeued = "requeued"
)

// TraceEvent is one observed firing or requeue.
type TraceEvent struct {
	Seq            int64  `json:"seq"`
	Type           string `json:"type"`
	Job            string `json:"job"`
	RegistrationID string `json:"registration_id"`
	When           int64  `json:"when"`
	Clock          int64  `json:"clock"`
	Elapsed        int64  `json:"elapsed"`
	Waited         int64  `json:"waited"`
	Repeating      bool   `json:"repeating"`
	Interval       int64  `json:"interval,omitempty"`
}

// CanonicalMap converts the event for canonical JSON serialization.
func (e TraceEvent) CanonicalMap() map[string]any {
	m := map[string]any{
		"seq":             e.Seq,
		"type":            e.Type,
		"job":             e.Job,
		"registration_id": e.RegistrationID,
		"when":            e.When,
		"clock":           e.Clock,
		"elapsed":         e.Elapsed,
		"waited":          e.Waited,
		"repeating":       e.Repeating,
	}
	putNonZero(m, "interval", e.Interval)
	return m
}

func putNonZero(m map[string]any, key string, v int64) {
	if v != 0 {
		m[key] = v
	}
}
