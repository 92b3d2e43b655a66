// Package achievement decides which reward tiers a progress value unlocks.
package achievement

import (
	"slices"
	"time"

	"github.com/roach88/stride/internal/challenge"
)

// Evaluate returns the tiers of tpl that progress reaches and that are not
// already in unlocked, in ascending threshold order. tpl.RewardTiers must be
// sorted by threshold (see Template.Normalize).
//
// Evaluate is pure and idempotent: calling it again with the returned tier
// names added to unlocked yields nothing. Tiers are never revoked, so a
// progress drop produces an empty result rather than a removal.
func Evaluate(tpl challenge.Template, progress float64, unlocked []string, at time.Time) []challenge.Achievement {
	var out []challenge.Achievement
	for _, tier := range tpl.RewardTiers {
		if tier.Threshold > progress {
			// Tiers are sorted; nothing further can match.
			break
		}
		if slices.Contains(unlocked, tier.Name) {
			continue
		}
		out = append(out, challenge.Achievement{
			TierName:   tier.Name,
			Points:     tier.Points,
			Badge:      tier.Badge,
			UnlockedAt: at,
		})
	}
	return out
}

// Apply evaluates p's progress and records any new tiers on p.
// It returns the newly unlocked achievements.
func Apply(tpl challenge.Template, p *challenge.Participant, at time.Time) []challenge.Achievement {
	fresh := Evaluate(tpl, p.Progress, p.UnlockedTiers, at)
	for _, a := range fresh {
		p.UnlockedTiers = append(p.UnlockedTiers, a.TierName)
		p.Achievements = append(p.Achievements, a)
	}
	return fresh
}

// Points sums the points of achievements.
func Points(achievements []challenge.Achievement) int {
	total := 0
	for _, a := range achievements {
		total += a.Points
	}
	return total
}
