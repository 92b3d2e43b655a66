package engine

import (
	"context"
	"time"

	"github.com/roach88/stride/internal/achievement"
	"github.com/roach88/stride/internal/challenge"
	"github.com/roach88/stride/internal/leaderboard"
	"github.com/roach88/stride/internal/notify"
	"github.com/roach88/stride/internal/progress"
	"github.com/roach88/stride/internal/team"
)

// SubmitResult is the outcome of one accepted progress event.
type SubmitResult struct {
	Progress        float64                 `json:"progress"`
	NewAchievements []challenge.Achievement `json:"new_achievements"`
	Rank            int                     `json:"rank"`
	TeamProgress    *float64                `json:"team_progress,omitempty"`
}

// SubmitProgress folds one metric event into a participant's state,
// unlocks any newly reached tiers and re-ranks the challenge.
//
// The whole read-modify-write runs under the challenge lock. Achievement and
// rank-change notifications are enqueued only after the new state is
// committed; their delivery never affects the result.
func (e *Engine) SubmitProgress(ctx context.Context, challengeID, userID string, ev challenge.Event) (res *SubmitResult, err error) {
	ctx, span := e.span(ctx, "SubmitProgress", challengeID)
	started := time.Now()
	kind := "unknown"
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = string(challenge.KindOf(err))
			if outcome == "" {
				outcome = "internal"
			}
		}
		e.metrics.Submission(kind, outcome, time.Since(started))
		err = e.finish(span, "submit", err)
	}()

	uid := challenge.NormalizeID(userID)
	if uid == "" {
		return nil, challenge.Validation("user id is required")
	}

	var (
		fresh   []challenge.Achievement
		changes []leaderboard.Change
	)
	res = &SubmitResult{}

	c, err := e.mutate(ctx, challengeID, func(c *challenge.Challenge, now time.Time) error {
		kind = c.Template.Kind.String()
		if c.Status != challenge.StatusActive {
			return notActive(c)
		}
		if now.Before(c.StartTime) {
			return challenge.StateConflict("challenge has not started").
				With("challenge", c.ID).With("start", c.StartTime.Format(time.RFC3339))
		}
		p, ok := c.Participants[uid]
		if !ok {
			return challenge.NotFound("participant not found").With("challenge", c.ID).With("user", uid)
		}
		if !p.Active {
			return challenge.StateConflict("participant has withdrawn").With("challenge", c.ID).With("user", uid)
		}

		metrics, prog, err := progress.Update(c.Template, p.Metrics, ev)
		if err != nil {
			return err
		}

		before := leaderboard.Rank(c.ActiveParticipants())

		p.Metrics = metrics
		if prog != p.Progress {
			p.Progress = prog
			p.LastUpdate = now
		}
		fresh = achievement.Apply(c.Template, p, now)

		after := leaderboard.Rank(c.ActiveParticipants())
		changes = leaderboard.RankChanges(before, after)

		res.Progress = p.Progress
		if entry, ok := leaderboard.Find(after, uid); ok {
			res.Rank = entry.Rank
		}
		if c.TeamsEnabled && p.TeamID != "" {
			if tp, ok := team.Progress(c, p.TeamID); ok {
				res.TeamProgress = &tp
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	res.NewAchievements = fresh
	if res.NewAchievements == nil {
		res.NewAchievements = []challenge.Achievement{}
	}

	e.metrics.Achievements(c.TemplateID, len(fresh))
	for _, a := range fresh {
		e.logger.Info("achievement unlocked", "challenge", c.ID, "user", uid, "tier", a.TierName, "points", a.Points)
		e.enqueue(notify.Notification{
			Type:        notify.TypeAchievement,
			ChallengeID: c.ID,
			UserID:      uid,
			Achievement: a,
		})
	}
	e.notifyRanks(c.ID, changes)

	e.logger.Debug("progress submitted", "challenge", c.ID, "user", uid, "progress", res.Progress, "rank", res.Rank)
	return res, nil
}
