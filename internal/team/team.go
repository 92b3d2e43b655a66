// Package team rolls member progress up into team progress.
//
// Team progress is always derived from the current participant state and
// never stored.
package team

import (
	"fmt"
	"time"

	"github.com/roach88/stride/internal/challenge"
	"github.com/roach88/stride/internal/leaderboard"
)

// Aggregate combines the progress of t's active members under rule.
// Members that are missing from participants or inactive are skipped. A team
// with no counted members has progress 0.
func Aggregate(t *challenge.Team, participants map[string]*challenge.Participant, rule challenge.TeamRule) float64 {
	var sum float64
	n := 0
	for _, id := range t.MemberIDs {
		p, ok := participants[id]
		if !ok || !p.Active {
			continue
		}
		sum += p.Progress
		n++
	}
	if n == 0 {
		return 0
	}
	switch rule {
	case challenge.TeamRuleMean, "":
		return sum / float64(n)
	case challenge.TeamRuleSum:
		return sum
	default:
		panic(fmt.Sprintf("team: unhandled rule %q", rule))
	}
}

// Progress returns the aggregate progress of the named team in c.
func Progress(c *challenge.Challenge, teamID string) (float64, bool) {
	t, ok := c.Teams[teamID]
	if !ok {
		return 0, false
	}
	return Aggregate(t, c.Participants, c.Template.Rule()), true
}

// Standings computes and ranks every team of c. A team's LastUpdate is the
// latest update among its active members, which is what ties are broken on.
func Standings(c *challenge.Challenge) []challenge.TeamStanding {
	rule := c.Template.Rule()
	out := make([]challenge.TeamStanding, 0, len(c.Teams))
	for _, id := range c.TeamIDs() {
		t := c.Teams[id]
		var last time.Time
		members := 0
		for _, uid := range t.MemberIDs {
			p, ok := c.Participants[uid]
			if !ok || !p.Active {
				continue
			}
			members++
			if p.LastUpdate.After(last) {
				last = p.LastUpdate
			}
		}
		out = append(out, challenge.TeamStanding{
			TeamID:     id,
			Members:    members,
			Progress:   Aggregate(t, c.Participants, rule),
			LastUpdate: last,
		})
	}
	return leaderboard.RankTeams(out)
}
