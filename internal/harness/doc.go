// Package harness runs challenge scenarios as executable contract tests.
//
// A scenario drives a real engine (SQLite in-memory store, manual clock,
// sequential challenge ids, recording notifier) through a flow of
// operations, checks each step's outcome and evaluates assertions against
// the trace and the final stored state.
//
// # Scenario Format
//
//	name: accumulative_week
//	description: "Seven days of 10000 steps reach the 70000 target"
//	start: 2025-03-03T08:00:00Z
//	users: [alice, bob]
//	flow:
//	  - invoke: create
//	    args: { template: steps-week, creator: alice, max: 10 }
//	    expect: { case: ok, result: { id: c-1 } }
//	  - invoke: submit
//	    after: 24h
//	    args: { challenge: c-1, user: alice, values: { steps: 10000 } }
//	    expect: { case: ok }
//	assertions:
//	  - type: final_state
//	    challenge: c-1
//	    user: alice
//	    expect: { progress: 100 }
//
// Operations: create, join, submit, withdraw, archive, sweep, leaderboard,
// teams, stats. "after" advances the clock before the step runs.
// "case" is ok or an error kind (VALIDATION, NOT_FOUND, STATE_CONFLICT,
// CONCURRENCY_CONFLICT). Result matching is a subset match over the JSON
// form of the operation's return value.
//
// # Assertion Types
//
//   - trace_contains: a step with the given invoke and args subset ran
//   - trace_order: invokes appear in the given order
//   - trace_count: an invoke appears exactly N times
//   - final_state: stored challenge (or one participant) matches a subset
//   - leaderboard: the ranking lists exactly the given users in order
//   - notification_count: N notifications of a type (optionally per user)
//
// # Deterministic Testing
//
// Challenge ids are c-1, c-2, ... in creation order, time only moves
// through "after", and notifications are flushed after every step, so a
// scenario always produces the same trace. RunWithGolden compares that
// trace against testdata/golden/<name>.golden.
package harness
