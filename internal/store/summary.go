package store

import (
	"context"
	"fmt"

	"github.com/roach88/tickloop/internal/ir"
)

// Summarize aggregates the firing log of a run: counts per type and job,
// the last seq written and the clock of the last observed event.
func (s *Store) Summarize(ctx context.Context, runID string) (ir.RunSummary, error) {
	summary := ir.RunSummary{
		RunID:  runID,
		PerJob: make(map[string]int),
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT type, job, COUNT(*)
		FROM firings
		WHERE run_id = ?
		GROUP BY type, job
		ORDER BY type ASC, job COLLATE BINARY ASC
	`, runID)
	if err != nil {
		return summary, fmt.Errorf("summarize run: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var typ, job string
		var n int
		if err := rows.Scan(&typ, &job, &n); err != nil {
			return summary, fmt.Errorf("summarize run: scan: %w", err)
		}
		switch typ {
		case ir.TraceFired:
			summary.Fired += n
			summary.PerJob[job] += n
		case ir.TraceRequeued:
			summary.Requeued += n
		}
	}
	if err := rows.Err(); err != nil {
		return summary, fmt.Errorf("summarize run: iterate: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0), COALESCE(MAX(clock), 0)
		FROM firings
		WHERE run_id = ?
	`, runID).Scan(&summary.LastSeq, &summary.FinalClock)
	if err != nil {
		return summary, fmt.Errorf("summarize run: last seq: %w", err)
	}

	return summary, nil
}
