// Package journal provides a SQLite-backed append-only log of pipe engine
// activity.
//
// A journal holds runs. Each run records, in logical-clock order:
//   - Events: every Dispatch call, with a delivered flag (false for events
//     dropped before any pipe referenced their name)
//   - Actions: every action a pipe forwarded to the store, with the pipe name
//
// A *Run implements pipe.Recorder. Replaying a run's events through a fresh
// engine and comparing the recorded actions (Compare) verifies that pipes
// are deterministic.
//
// # Ordering
//
//   - All ordering uses seq INTEGER (logical clock), never timestamps
//   - All reads are ORDER BY seq ASC
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Event and action IDs are content hashes from internal/ir/hash.go.
package journal
