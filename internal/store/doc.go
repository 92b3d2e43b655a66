// Package store provides SQLite-backed durable storage for challenges.
//
// Each challenge is persisted as one JSON document row plus one index row per
// participant. A save replaces both inside a single transaction, so readers
// never observe a half-applied progress update.
//
// # Optimistic Versioning
//
//   - Every challenge row carries a version column starting at 1
//   - SaveChallenge with Version 0 inserts; anything else updates
//     WHERE version = ? and bumps it
//   - A stale version surfaces as a ConcurrencyConflict domain error
//
// # Deterministic Query Results
//
//   - List queries order by time then id COLLATE BINARY
//   - Identical database contents always yield identical slices
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
