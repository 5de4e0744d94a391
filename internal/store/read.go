package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/tickloop/internal/ir"
)

// ReadRun retrieves a single run by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadRun(ctx context.Context, id string) (ir.Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, program_hash, engine_version, trace_version, tick, start_clock, program
		FROM runs
		WHERE id = ?
	`, id)

	return scanRun(row)
}

// ListRuns returns every run ordered by ID. Run IDs are UUIDv7, so this is
// creation order.
//
// Returns an empty slice (not nil) if there are no runs.
func (s *Store) ListRuns(ctx context.Context) ([]ir.Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, program_hash, engine_version, trace_version, tick, start_clock, program
		FROM runs
		ORDER BY id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []ir.Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ListRegistrations returns the registrations of a run ordered by seq.
func (s *Store) ListRegistrations(ctx context.Context, runID string) ([]ir.Registration, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, seq, job, when_micros, repeating, interval_micros
		FROM registrations
		WHERE run_id = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query registrations: %w", err)
	}
	defer rows.Close()

	regs := []ir.Registration{}
	for rows.Next() {
		var r ir.Registration
		var repeating int
		if err := rows.Scan(&r.ID, &r.RunID, &r.Seq, &r.Job, &r.When, &repeating, &r.Interval); err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		r.Repeating = repeating != 0
		regs = append(regs, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate registrations: %w", err)
	}
	return regs, nil
}

// ListFirings returns the trace events of a run ordered by seq. A non-empty
// job restricts the result to that job.
//
// Returns an empty slice (not nil) if no records match.
func (s *Store) ListFirings(ctx context.Context, runID, job string) ([]ir.TraceEvent, error) {
	query := `
		SELECT seq, type, job, registration_id, when_micros, clock, elapsed, waited, repeating, interval_micros
		FROM firings
		WHERE run_id = ?`
	args := []any{runID}
	if job != "" {
		query += ` AND job = ?`
		args = append(args, job)
	}
	query += ` ORDER BY seq ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query firings: %w", err)
	}
	defer rows.Close()

	events := []ir.TraceEvent{}
	for rows.Next() {
		var e ir.TraceEvent
		var repeating int
		if err := rows.Scan(
			&e.Seq,
			&e.Type,
			&e.Job,
			&e.RegistrationID,
			&e.When,
			&e.Clock,
			&e.Elapsed,
			&e.Waited,
			&repeating,
			&e.Interval,
		); err != nil {
			return nil, fmt.Errorf("scan firing: %w", err)
		}
		e.Repeating = repeating != 0
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate firings: %w", err)
	}
	return events, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (ir.Run, error) {
	var run ir.Run
	var programJSON string
	err := row.Scan(
		&run.ID,
		&run.ProgramHash,
		&run.EngineVersion,
		&run.TraceVersion,
		&run.Tick,
		&run.StartClock,
		&programJSON,
	)
	if err == sql.ErrNoRows {
		return ir.Run{}, err
	}
	if err != nil {
		return ir.Run{}, fmt.Errorf("scan run: %w", err)
	}

	run.Jobs, err = unmarshalJobs(programJSON)
	if err != nil {
		return ir.Run{}, fmt.Errorf("scan run %s: %w", run.ID, err)
	}
	return run, nil
}
