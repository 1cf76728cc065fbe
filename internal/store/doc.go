// Package store provides SQLite-backed history of enhancement runs.
//
// The store keeps two tables:
//   - runs: one row per enhancement run (timestamps, status, counts)
//   - outcomes: one row per transformed class (status, passes, digests)
//
// Outcomes carry BLAKE3 digests of the class before and after the run, so
// the history can show which runs actually changed a given class file.
//
// # Ordering
//
// Outcomes are returned in the order the run recorded them (seq ASC).
// Runs are listed newest first, ties broken by id COLLATE BINARY, so
// listings are stable.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
