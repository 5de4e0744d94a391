// Package store provides a SQLite-backed firing log for scheduler runs.
//
// The log is append-only and holds:
//   - Runs: one row per program execution, with the program hash and the
//     canonical JSON of its jobs
//   - Registrations: every event registered with the scheduler
//   - Firings: every fired or requeued event, in observation order
//
// The log is an audit trail. It is never used to rebuild a scheduler queue;
// a restarted program registers its jobs afresh.
//
// # Ordering
//
// All ordering uses the seq column (logical observation order), never wall
// time. Queries include ORDER BY seq ASC so results are identical across
// reads.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
