// Package challenge defines the shared data model of the Stride challenge engine.
//
// The model is passive: templates, challenges, participants and
// teams are plain structs, and every algorithm that turns events into progress,
// tiers or ranks lives in its own package (progress, achievement, leaderboard,
// team). The engine package owns mutation.
//
// # Invariants
//
//   - A user id maps to at most one Participant per challenge.
//   - len(Participants) never exceeds MaxParticipants.
//   - Participant.UnlockedTiers only grows.
//   - Progress is non-decreasing for accumulative, goal_based and consistency
//     kinds. Streak and competitive kinds are exempt.
//
// Errors returned across package boundaries use *Error with one of the four
// ErrorKind values so callers can branch with errors.Is or the Is* helpers.
package challenge
