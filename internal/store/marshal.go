package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/tickloop/internal/ir"
)

// marshalJobs converts a job list to canonical JSON TEXT for storage.
// Uses RFC 8785 canonical JSON so the stored program matches its hash input.
func marshalJobs(jobs []ir.JobSpec) (string, error) {
	list := make([]any, len(jobs))
	for i, j := range jobs {
		list[i] = j.CanonicalMap()
	}
	data, err := ir.MarshalCanonical(list)
	if err != nil {
		return "", fmt.Errorf("marshal jobs: %w", err)
	}
	return string(data), nil
}

// unmarshalJobs parses stored job JSON. Field names match ir.JobSpec's
// json tags.
func unmarshalJobs(data string) ([]ir.JobSpec, error) {
	if data == "" || data == "[]" {
		return []ir.JobSpec{}, nil
	}
	var jobs []ir.JobSpec
	if err := json.Unmarshal([]byte(data), &jobs); err != nil {
		return nil, fmt.Errorf("unmarshal jobs: %w", err)
	}
	return jobs, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
