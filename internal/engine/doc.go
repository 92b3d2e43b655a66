// Package engine implements the challenge lifecycle: creating challenges
// from catalog templates, enrolling participants, folding progress events
// into participant state and serving leaderboards and stats.
//
// ARCHITECTURE:
//
// Per-Challenge Serialization:
// Every challenge is an independent partition. All writes to one challenge
// (join, submit, withdraw, archive, the expiry transition) run under that
// challenge's lock and follow the same path:
//  1. Load the latest committed state from the Store
//  2. Apply the lazy expiry transition (Active -> Completed once now >= end)
//  3. Validate, then mutate the in-memory copy
//  4. Save with the loaded version (optimistic check in the store)
//  5. Publish an immutable leaderboard snapshot
//  6. Enqueue notifications
//
// Different challenges never share a lock and proceed in parallel.
//
// Reads:
// GetLeaderboard and GetTeamLeaderboard serve the latest snapshot without
// taking a challenge lock. A missing snapshot, or one whose challenge has
// just passed its end time, is rebuilt through the locked path first.
//
// Notifications:
// Achievement and rank-change notifications are handed to a
// notify.Dispatcher after commit. Delivery is asynchronous and its failures
// are logged and counted, never returned.
//
// Determinism:
// Time comes from the injected Clock and challenge ids from the injected
// IDGenerator. Progress, achievements and ranking are pure functions of the
// stored state and the event, so a replayed scenario yields identical output.
package engine
