package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/eapache/queue"

	"github.com/roach88/tickloop/internal/ir"
	"github.com/roach88/tickloop/internal/scheduler"
)

// DefaultBatchSize is the number of pending records that triggers a flush.
const DefaultBatchSize = 64

// TraceEvent converts a scheduler notification into a log record.
func TraceEvent(typ string, seq int64, f scheduler.Firing) ir.TraceEvent {
	return ir.TraceEvent{
		Seq:            seq,
		Type:           typ,
		Job:            f.Event.Label,
		RegistrationID: f.Event.ID,
		When:           f.Event.When,
		Clock:          f.Clock,
		Elapsed:        f.Elapsed,
		Waited:         f.Waited,
		Repeating:      f.Event.Repeating,
		Interval:       f.Event.Interval,
	}
}

// Recorder writes scheduler notifications to the firing log.
//
// It implements scheduler.Observer. Records are buffered in a FIFO and
// written in one transaction per flush, either when the buffer reaches the
// batch size or when Flush is called. Observer methods cannot return
// errors, so the first write failure is kept and reported by Err. Records
// from a failed write go back on the FIFO and are retried by the next flush.
//
// Thread-safety: Recorder is safe for concurrent use via internal mutex.
type Recorder struct {
	mu      sync.Mutex
	ctx     context.Context
	store   *Store
	runID   string
	batch   int
	logger  *slog.Logger
	pending *queue.Queue

	seq    int64
	regSeq int64
	err    error
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithBatchSize sets the flush threshold. Values < 1 flush on every record.
func WithBatchSize(n int) RecorderOption {
	return func(r *Recorder) {
		if n < 1 {
			n = 1
		}
		r.batch = n
	}
}

// WithRecorderLogger sets the logger used to report write failures.
func WithRecorderLogger(l *slog.Logger) RecorderOption {
	return func(r *Recorder) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRecorder creates a recorder for runID. The run row must already exist.
// ctx bounds every write the recorder makes.
func NewRecorder(ctx context.Context, s *Store, runID string, opts ...RecorderOption) *Recorder {
	if ctx == nil {
		ctx = context.Background()
	}
	r := &Recorder{
		ctx:     ctx,
		store:   s,
		runID:   runID,
		batch:   DefaultBatchSize,
		logger:  slog.Default(),
		pending: queue.New(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Registered implements scheduler.Observer.
func (r *Recorder) Registered(e scheduler.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.regSeq++
	r.pending.Add(ir.Registration{
		ID:        e.ID,
		RunID:     r.runID,
		Seq:       r.regSeq,
		Job:       e.Label,
		When:      e.When,
		Repeating: e.Repeating,
		Interval:  e.Interval,
	})
	r.maybeFlushLocked()
}

// Fired implements scheduler.Observer.
func (r *Recorder) Fired(f scheduler.Firing) {
	r.append(ir.TraceFired, f)
}

// Requeued implements scheduler.Observer.
func (r *Recorder) Requeued(f scheduler.Firing) {
	r.append(ir.TraceRequeued, f)
}

func (r *Recorder) append(typ string, f scheduler.Firing) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	r.pending.Add(TraceEvent(typ, r.seq, f))
	r.maybeFlushLocked()
}

// Pending returns the number of buffered records.
func (r *Recorder) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pending.Length()
}

// Err returns the first write failure, if any.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Flush writes all buffered records, including any left over from failed
// automatic flushes. It returns nil once everything is stored.
func (r *Recorder) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	err := r.flushLocked()
	if err != nil && r.err == nil {
		r.err = err
	}
	return err
}

func (r *Recorder) maybeFlushLocked() {
	if r.pending.Length() < r.batch {
		return
	}
	if err := r.flushLocked(); err != nil {
		r.logger.Error("firing log write failed", "run", r.runID, "error", err)
		if r.err == nil {
			r.err = err
		}
	}
}

// flushLocked drains the FIFO. Registrations are written before firings so
// a batch never references a registration it has not stored yet. Whatever
// was not committed is put back in order.
func (r *Recorder) flushLocked() error {
	if r.pending.Length() == 0 {
		return nil
	}

	var regs []ir.Registration
	var events []ir.TraceEvent
	for r.pending.Length() > 0 {
		switch rec := r.pending.Remove().(type) {
		case ir.Registration:
			regs = append(regs, rec)
		case ir.TraceEvent:
			events = append(events, rec)
		default:
			return fmt.Errorf("flush: unexpected record %T", rec)
		}
	}

	if err := r.store.WriteRegistrations(r.ctx, regs); err != nil {
		r.requeue(regs, events)
		return fmt.Errorf("flush: %w", err)
	}
	if err := r.store.WriteFirings(r.ctx, r.runID, events); err != nil {
		r.requeue(nil, events)
		return fmt.Errorf("flush: %w", err)
	}
	return nil
}

func (r *Recorder) requeue(regs []ir.Registration, events []ir.TraceEvent) {
	for _, reg := range regs {
		r.pending.Add(reg)
	}
	for _, e := range events {
		r.pending.Add(e)
	}
}
