package challenge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

func newChallenge() *Challenge {
	tpl := validTemplate()
	return &Challenge{
		ID:              "c1",
		TemplateID:      tpl.ID,
		Template:        tpl,
		CreatorID:       "alice",
		StartTime:       t0,
		EndTime:         t0.Add(tpl.Duration()),
		MaxParticipants: 2,
		Status:          StatusActive,
		Participants: map[string]*Participant{
			"bob":   {UserID: "bob", Active: true, Progress: 10},
			"alice": {UserID: "alice", Active: true, Progress: 20, UnlockedTiers: []string{"bronze"}},
		},
	}
}

func TestChallenge_Touch(t *testing.T) {
	c := newChallenge()

	assert.False(t, c.Touch(t0.Add(time.Hour)))
	assert.Equal(t, StatusActive, c.Status)

	assert.True(t, c.Touch(c.EndTime), "end time is inclusive")
	assert.Equal(t, StatusCompleted, c.Status)

	assert.False(t, c.Touch(c.EndTime.Add(time.Hour)), "already completed")
}

func TestChallenge_TouchLeavesArchived(t *testing.T) {
	c := newChallenge()
	c.Status = StatusArchived
	assert.False(t, c.Touch(c.EndTime.Add(time.Hour)))
	assert.Equal(t, StatusArchived, c.Status)
}

func TestChallenge_Full(t *testing.T) {
	c := newChallenge()
	assert.True(t, c.Full())

	c.Participants["bob"].Active = false
	assert.True(t, c.Full(), "withdrawn participants keep their slot")

	c.MaxParticipants = 3
	assert.False(t, c.Full())
}

func TestChallenge_ActiveParticipantsSorted(t *testing.T) {
	c := newChallenge()
	got := c.ActiveParticipants()
	require.Len(t, got, 2)
	assert.Equal(t, "alice", got[0].UserID)
	assert.Equal(t, "bob", got[1].UserID)

	c.Participants["alice"].Active = false
	got = c.ActiveParticipants()
	require.Len(t, got, 1)
	assert.Equal(t, "bob", got[0].UserID)
}

func TestChallenge_CloneIsDeep(t *testing.T) {
	c := newChallenge()
	c.Teams = map[string]*Team{"red": {ID: "red", MemberIDs: []string{"alice"}, CaptainID: "alice"}}

	cp := c.Clone()
	cp.Participants["alice"].UnlockedTiers[0] = "mutated"
	cp.Participants["alice"].Progress = 99
	cp.Teams["red"].MemberIDs = append(cp.Teams["red"].MemberIDs, "bob")
	cp.Template.MetricKeys[0] = "calories"

	assert.Equal(t, "bronze", c.Participants["alice"].UnlockedTiers[0])
	assert.Equal(t, 20.0, c.Participants["alice"].Progress)
	assert.Len(t, c.Teams["red"].MemberIDs, 1)
	assert.Equal(t, "steps", c.Template.MetricKeys[0])
}

func TestParticipant_PointsAndTiers(t *testing.T) {
	p := &Participant{
		UnlockedTiers: []string{"bronze", "silver"},
		Achievements: []Achievement{
			{TierName: "bronze", Points: 10},
			{TierName: "silver", Points: 25},
		},
	}
	assert.Equal(t, 35, p.Points())
	assert.True(t, p.HasTier("silver"))
	assert.False(t, p.HasTier("gold"))
}

func TestNormalizeID(t *testing.T) {
	// "é" as e + combining acute versus the precomposed form.
	decomposed := "jose\u0301"
	precomposed := "jos\u00e9"
	assert.Equal(t, precomposed, NormalizeID("  "+decomposed+" "))
	assert.Equal(t, "bob", NormalizeID("bob"))
}
