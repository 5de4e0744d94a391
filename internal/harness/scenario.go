package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scenario defines a scheduler test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario. Also names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Specs lists paths to CUE job files, relative to the scenario file.
	Specs []string `yaml:"specs"`

	// Tick is the real milliseconds per virtual second. Zero means the
	// scheduler default. Only the recorded waits depend on it.
	Tick int64 `yaml:"tick,omitempty"`

	// Paused starts the scheduler paused. Scenarios start running by default.
	Paused bool `yaml:"paused,omitempty"`

	// Steps is the number of event-loop steps to execute.
	Steps int `yaml:"steps"`

	// Controls are applied before the step with the matching index.
	Controls []Control `yaml:"controls,omitempty"`

	// Assertions validate the final trace and scheduler state.
	Assertions []Assertion `yaml:"assertions"`
}

// Control is a host action injected at a given step.
type Control struct {
	// Step is the zero-based step index the control applies to.
	Step int `yaml:"step"`

	// Action is one of pause, resume, pause_during_wait, once.
	Action string `yaml:"action"`

	// Job names the one-shot job registered by a once control.
	Job string `yaml:"job,omitempty"`

	// After is the once control's delay in seconds.
	After int64 `yaml:"after,omitempty"`
}

// Control action constants.
const (
	ControlPause           = "pause"
	ControlResume          = "resume"
	ControlPauseDuringWait = "pause_during_wait"
	ControlOnce            = "once"
)

// Assertion validates the trace or final scheduler state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Job is the job name (fire_count, fire_at).
	Job string `yaml:"job,omitempty"`

	// Jobs is the expected firing sequence (fire_order).
	Jobs []string `yaml:"jobs,omitempty"`

	// Elapsed is the expected firing times in seconds (fire_at).
	Elapsed []int64 `yaml:"elapsed,omitempty"`

	// Count is the expected number (fire_count, queue_len, requeue_count).
	Count *int `yaml:"count,omitempty"`

	// Clock is the expected final clock in microseconds (final_clock).
	Clock *int64 `yaml:"clock,omitempty"`
}

// Assertion type constants.
const (
	AssertFireOrder    = "fire_order"
	AssertFireCount    = "fire_count"
	AssertFireAt       = "fire_at"
	AssertFinalClock   = "final_clock"
	AssertQueueLen     = "queue_len"
	AssertRequeueCount = "requeue_count"
)

// LoadScenario reads and parses a scenario YAML file.
// Spec paths are resolved relative to the scenario file's directory.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data, filepath.Dir(path))
	if err != nil {
		return nil, err
	}
	return scenario, nil
}

// ParseScenario parses scenario YAML, resolving relative spec paths
// against basePath.
func ParseScenario(data []byte, basePath string) (*Scenario, error) {
	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Resolve spec paths BEFORE validation
	for i, specPath := range scenario.Specs {
		if !filepath.IsAbs(specPath) && basePath != "" {
			scenario.Specs[i] = filepath.Join(basePath, specPath)
		}
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// FindScenarios returns the YAML scenario files under dir, in lexical
// order. A non-empty filter is a glob matched against the file name
// without extension.
func FindScenarios(dir, filter string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}

		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(path), ext)
			matched, err := filepath.Match(filter, name)
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}

		files = append(files, path)
		return nil
	})

	return files, err
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Specs) == 0 {
		return fmt.Errorf("specs list is required and must be non-empty")
	}

	if s.Steps <= 0 {
		return fmt.Errorf("steps must be positive")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for _, specPath := range s.Specs {
		if _, err := os.Stat(specPath); os.IsNotExist(err) {
			return fmt.Errorf("spec file not found: %s", specPath)
		}
	}

	for i, c := range s.Controls {
		if c.Step < 0 || c.Step >= s.Steps {
			return fmt.Errorf("controls[%d]: step %d out of range [0, %d)", i, c.Step, s.Steps)
		}
		switch c.Action {
		case ControlPause, ControlResume, ControlPauseDuringWait:
		case ControlOnce:
			if c.Job == "" {
				return fmt.Errorf("controls[%d]: once requires job", i)
			}
			if c.After < 0 {
				return fmt.Errorf("controls[%d]: after must be >= 0", i)
			}
		case "":
			return fmt.Errorf("controls[%d]: action is required", i)
		default:
			return fmt.Errorf("controls[%d]: unknown action %q", i, c.Action)
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertFireOrder:
		if len(a.Jobs) == 0 {
			return fmt.Errorf("assertions[%d]: fire_order requires jobs", index)
		}
	case AssertFireCount:
		if a.Job == "" {
			return fmt.Errorf("assertions[%d]: fire_count requires job", index)
		}
		if a.Count == nil {
			return fmt.Errorf("assertions[%d]: fire_count requires count", index)
		}
	case AssertFireAt:
		if a.Job == "" {
			return fmt.Errorf("assertions[%d]: fire_at requires job", index)
		}
		if len(a.Elapsed) == 0 {
			return fmt.Errorf("assertions[%d]: fire_at requires elapsed", index)
		}
	case AssertFinalClock:
		if a.Clock == nil {
			return fmt.Errorf("assertions[%d]: final_clock requires clock", index)
		}
	case AssertQueueLen, AssertRequeueCount:
		if a.Count == nil {
			return fmt.Errorf("assertions[%d]: %s requires count", index, a.Type)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
