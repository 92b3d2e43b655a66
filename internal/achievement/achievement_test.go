package achievement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stride/internal/challenge"
)

var at = time.Date(2026, 3, 7, 12, 0, 0, 0, time.UTC)

func tiers() challenge.Template {
	return challenge.Template{
		ID: "steps-week",
		RewardTiers: []challenge.RewardTier{
			{Name: "bronze", Threshold: 25, Points: 10, Badge: "b"},
			{Name: "silver", Threshold: 50, Points: 25, Badge: "s"},
			{Name: "gold", Threshold: 100, Points: 50, Badge: "g"},
		},
	}
}

func names(as []challenge.Achievement) []string {
	out := make([]string, 0, len(as))
	for _, a := range as {
		out = append(out, a.TierName)
	}
	return out
}

func TestEvaluate_UnlocksInThresholdOrder(t *testing.T) {
	got := Evaluate(tiers(), 60, nil, at)
	assert.Equal(t, []string{"bronze", "silver"}, names(got))
	assert.Equal(t, at, got[0].UnlockedAt)
	assert.Equal(t, 25, got[1].Points)
}

func TestEvaluate_ThresholdInclusive(t *testing.T) {
	got := Evaluate(tiers(), 100, []string{"bronze", "silver"}, at)
	assert.Equal(t, []string{"gold"}, names(got))
}

func TestEvaluate_Idempotent(t *testing.T) {
	p := &challenge.Participant{Progress: 100}

	first := Apply(tiers(), p, at)
	require.Len(t, first, 3)

	second := Apply(tiers(), p, at.Add(time.Hour))
	assert.Empty(t, second)
	assert.Equal(t, []string{"bronze", "silver", "gold"}, p.UnlockedTiers)
	assert.Len(t, p.Achievements, 3)
}

func TestEvaluate_NeverRevokes(t *testing.T) {
	p := &challenge.Participant{Progress: 55}
	Apply(tiers(), p, at)

	p.Progress = 0
	assert.Empty(t, Apply(tiers(), p, at))
	assert.Equal(t, []string{"bronze", "silver"}, p.UnlockedTiers)
}

func TestEvaluate_BelowEveryTier(t *testing.T) {
	assert.Empty(t, Evaluate(tiers(), 24.99, nil, at))
}

func TestPoints(t *testing.T) {
	assert.Equal(t, 85, Points(Evaluate(tiers(), 100, nil, at)))
	assert.Equal(t, 0, Points(nil))
}
