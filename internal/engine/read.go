package engine

import (
	"context"
	"fmt"

	"github.com/roach88/stride/internal/achievement"
	"github.com/roach88/stride/internal/challenge"
	"github.com/roach88/stride/internal/leaderboard"
)

// UserStats summarizes a user's participation across all challenges.
type UserStats struct {
	UserID           string `json:"user_id"`
	TotalChallenges  int    `json:"total_challenges"`
	TotalPoints      int    `json:"total_points"`
	BestRank         int    `json:"best_rank"` // 0 when never ranked
	AchievementCount int    `json:"achievement_count"`
}

// GetLeaderboard returns the ranking of a challenge, best first. limit <= 0
// returns every active participant.
//
// It serves the last committed snapshot and does not wait for writers.
// Completed and archived challenges return their frozen ranking.
func (e *Engine) GetLeaderboard(ctx context.Context, challengeID string, limit int) (entries []challenge.LeaderboardEntry, err error) {
	ctx, span := e.span(ctx, "GetLeaderboard", challengeID)
	defer func() { err = e.finish(span, "leaderboard", err) }()

	snap, err := e.current(ctx, challengeID)
	if err != nil {
		return nil, err
	}
	return leaderboard.Top(snap.entries, limit), nil
}

// GetTeamLeaderboard ranks the teams of a team-mode challenge.
func (e *Engine) GetTeamLeaderboard(ctx context.Context, challengeID string) (standings []challenge.TeamStanding, err error) {
	ctx, span := e.span(ctx, "GetTeamLeaderboard", challengeID)
	defer func() { err = e.finish(span, "teams", err) }()

	snap, err := e.current(ctx, challengeID)
	if err != nil {
		return nil, err
	}
	if snap.teams == nil {
		return nil, challenge.StateConflict("challenge does not have teams").With("challenge", challengeID)
	}
	return append([]challenge.TeamStanding(nil), snap.teams...), nil
}

// GetChallenge returns a copy of a challenge with the lazy status transition
// applied.
func (e *Engine) GetChallenge(ctx context.Context, challengeID string) (c *challenge.Challenge, err error) {
	ctx, span := e.span(ctx, "GetChallenge", challengeID)
	defer func() { err = e.finish(span, "get", err) }()

	c, _, err = e.refresh(ctx, challengeID)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// GetUserChallengeStats aggregates a user's enrollments. Withdrawn
// enrollments count toward totals but not toward BestRank.
//
// Stats are computed from stored state without taking challenge locks, so a
// concurrent submission may or may not be reflected.
func (e *Engine) GetUserChallengeStats(ctx context.Context, userID string) (stats *UserStats, err error) {
	ctx, span := e.span(ctx, "GetUserChallengeStats", "")
	defer func() { err = e.finish(span, "stats", err) }()

	uid := challenge.NormalizeID(userID)
	if uid == "" {
		return nil, challenge.Validation("user id is required")
	}

	list, err := e.store.ListChallengesForUser(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("list challenges for %q: %w", uid, err)
	}

	stats = &UserStats{UserID: uid}
	for _, c := range list {
		p, ok := c.Participants[uid]
		if !ok {
			continue
		}
		stats.TotalChallenges++
		stats.TotalPoints += achievement.Points(p.Achievements)
		stats.AchievementCount += len(p.Achievements)
		if !p.Active {
			continue
		}
		if entry, ok := leaderboard.Find(leaderboard.Rank(c.ActiveParticipants()), uid); ok {
			if stats.BestRank == 0 || entry.Rank < stats.BestRank {
				stats.BestRank = entry.Rank
			}
		}
	}
	return stats, nil
}
