package store

import (
	"context"
	"fmt"

	"github.com/roach88/tickloop/internal/ir"
)

// WriteRun inserts a run record.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - duplicate IDs are silently ignored.
//
// The run's jobs are serialized to canonical JSON per RFC 8785.
func (s *Store) WriteRun(ctx context.Context, run ir.Run) error {
	programJSON, err := marshalJobs(run.Jobs)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs
		(id, program_hash, engine_version, trace_version, tick, start_clock, program)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.ProgramHash,
		run.EngineVersion,
		run.TraceVersion,
		run.Tick,
		run.StartClock,
		programJSON,
	)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}

	return nil
}

// WriteRegistrations inserts registration records in one transaction.
// Duplicate (run_id, id) pairs are silently ignored.
//
// Note: The run referenced by RunID must exist (foreign key constraint).
func (s *Store) WriteRegistrations(ctx context.Context, regs []ir.Registration) error {
	if len(regs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write registrations: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO registrations
		(id, run_id, seq, job, when_micros, repeating, interval_micros)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, id) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("write registrations: prepare: %w", err)
	}
	defer stmt.Close()

	for _, r := range regs {
		if _, err := stmt.ExecContext(ctx,
			r.ID,
			r.RunID,
			r.Seq,
			r.Job,
			r.When,
			boolToInt(r.Repeating),
			r.Interval,
		); err != nil {
			return fmt.Errorf("write registrations: insert %s: %w", r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write registrations: commit: %w", err)
	}
	return nil
}

// WriteFirings appends trace events for a run in one transaction.
// Uses ON CONFLICT(run_id, seq) DO NOTHING so a retried batch is harmless.
//
// Note: The run referenced by runID must exist (foreign key constraint).
func (s *Store) WriteFirings(ctx context.Context, runID string, events []ir.TraceEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write firings: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO firings
		(run_id, seq, type, job, registration_id, when_micros, clock, elapsed, waited, repeating, interval_micros)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, seq) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("write firings: prepare: %w", err)
	}
	defer stmt.Close()

	for _, e := range events {
		if _, err := stmt.ExecContext(ctx,
			runID,
			e.Seq,
			e.Type,
			e.Job,
			e.RegistrationID,
			e.When,
			e.Clock,
			e.Elapsed,
			e.Waited,
			boolToInt(e.Repeating),
			e.Interval,
		); err != nil {
			return fmt.Errorf("write firings: insert seq %d: %w", e.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write firings: commit: %w", err)
	}
	return nil
}
