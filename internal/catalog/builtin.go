package catalog

import "github.com/roach88/stride/internal/challenge"

// Builtin returns the default template set used when no catalog directory
// is configured.
func Builtin() *Catalog {
	return MustNew(builtinTemplates...)
}

var builtinTemplates = []challenge.Template{
	{
		ID:           "steps-week",
		Name:         "Steps Week",
		Kind:         challenge.KindAccumulative,
		DurationDays: 7,
		MetricKeys:   []string{"steps"},
		Target:       70000,
		TeamSize:     5,
		RewardTiers: []challenge.RewardTier{
			{Name: "bronze", Threshold: 25, Points: 10, Badge: "steps-bronze"},
			{Name: "silver", Threshold: 50, Points: 25, Badge: "steps-silver"},
			{Name: "gold", Threshold: 100, Points: 50, Badge: "steps-gold"},
		},
	},
	{
		ID:           "streak-30",
		Name:         "30 Day Streak",
		Kind:         challenge.KindStreak,
		DurationDays: 30,
		MetricKeys:   []string{challenge.KeyCompletedToday},
		RewardTiers: []challenge.RewardTier{
			{Name: "spark", Threshold: 10, Points: 5, Badge: "streak-spark"},
			{Name: "flame", Threshold: 50, Points: 30, Badge: "streak-flame"},
			{Name: "inferno", Threshold: 100, Points: 100, Badge: "streak-inferno"},
		},
	},
	{
		ID:           "consistency-month",
		Name:         "Consistency Month",
		Kind:         challenge.KindConsistency,
		DurationDays: 30,
		MetricKeys:   []string{challenge.KeyDailyTarget, challenge.KeyDailyActual},
		RewardTiers: []challenge.RewardTier{
			{Name: "steady", Threshold: 50, Points: 15, Badge: "consistency-steady"},
			{Name: "reliable", Threshold: 80, Points: 40, Badge: "consistency-reliable"},
			{Name: "clockwork", Threshold: 100, Points: 80, Badge: "consistency-clockwork"},
		},
	},
	{
		ID:           "step-battle",
		Name:         "Open Step Battle",
		Kind:         challenge.KindCompetitive,
		DurationDays: 7,
		MetricKeys:   []string{"steps"},
		TeamSize:     10,
		TeamRule:     challenge.TeamRuleSum,
		RewardTiers: []challenge.RewardTier{
			{Name: "ten-k", Threshold: 10000, Points: 5, Badge: "battle-10k"},
			{Name: "fifty-k", Threshold: 50000, Points: 25, Badge: "battle-50k"},
			{Name: "hundred-k", Threshold: 100000, Points: 60, Badge: "battle-100k"},
		},
	},
	{
		ID:           "twelve-sessions",
		Name:         "Twelve Sessions",
		Kind:         challenge.KindGoalBased,
		DurationDays: 42,
		MetricKeys:   []string{challenge.KeyCompleted},
		Target:       12,
		RewardTiers: []challenge.RewardTier{
			{Name: "halfway", Threshold: 50, Points: 20, Badge: "sessions-halfway"},
			{Name: "finisher", Threshold: 100, Points: 60, Badge: "sessions-finisher"},
		},
	},
}
