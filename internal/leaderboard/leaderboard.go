// Package leaderboard ranks participants into a strict total order.
//
// The sort key is progress descending, then last update ascending so that
// whoever reached a score first stays ahead, then user id ascending so that
// identical timestamps still resolve to a single order. Ranks are contiguous
// from 1 and never shared.
package leaderboard

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/roach88/stride/internal/challenge"
	"github.com/roach88/stride/internal/progress"
)

// Rank orders participants and assigns ranks 1..N. The input is not modified.
func Rank(participants []challenge.Participant) []challenge.LeaderboardEntry {
	entries := make([]challenge.LeaderboardEntry, 0, len(participants))
	for _, p := range participants {
		entries = append(entries, challenge.LeaderboardEntry{
			UserID:          p.UserID,
			TeamID:          p.TeamID,
			Progress:        p.Progress,
			DisplayProgress: progress.Round(p.Progress),
			LastUpdate:      p.LastUpdate,
		})
	}
	slices.SortStableFunc(entries, func(a, b challenge.LeaderboardEntry) int {
		return compare(a.Progress, b.Progress, a.LastUpdate, b.LastUpdate, a.UserID, b.UserID)
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}

// RankTeams orders team standings with the same rule as Rank, using the team
// id as the final key.
func RankTeams(standings []challenge.TeamStanding) []challenge.TeamStanding {
	out := slices.Clone(standings)
	slices.SortStableFunc(out, func(a, b challenge.TeamStanding) int {
		return compare(a.Progress, b.Progress, a.LastUpdate, b.LastUpdate, a.TeamID, b.TeamID)
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

func compare(pa, pb float64, ta, tb time.Time, ia, ib string) int {
	if c := cmp.Compare(pb, pa); c != 0 {
		return c
	}
	if c := ta.Compare(tb); c != 0 {
		return c
	}
	return strings.Compare(ia, ib)
}

// Top returns the first limit entries. A limit of zero or less means all.
func Top(entries []challenge.LeaderboardEntry, limit int) []challenge.LeaderboardEntry {
	if limit <= 0 || limit >= len(entries) {
		return slices.Clone(entries)
	}
	return slices.Clone(entries[:limit])
}

// Find returns the entry for userID.
func Find(entries []challenge.LeaderboardEntry, userID string) (challenge.LeaderboardEntry, bool) {
	for _, e := range entries {
		if e.UserID == userID {
			return e, true
		}
	}
	return challenge.LeaderboardEntry{}, false
}

// Change is a rank move of one user between two rankings.
// Old is 0 when the user was not ranked before.
type Change struct {
	UserID string
	Old    int
	New    int
}

// RankChanges diffs two rankings and returns the users whose rank moved,
// ordered by new rank. Users missing from after are ignored.
func RankChanges(before, after []challenge.LeaderboardEntry) []Change {
	old := make(map[string]int, len(before))
	for _, e := range before {
		old[e.UserID] = e.Rank
	}
	var out []Change
	for _, e := range after {
		if prev := old[e.UserID]; prev != e.Rank {
			out = append(out, Change{UserID: e.UserID, Old: prev, New: e.Rank})
		}
	}
	return out
}
