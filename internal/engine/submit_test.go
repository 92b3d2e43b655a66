package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stride/internal/challenge"
	"github.com/roach88/stride/internal/notify"
	"github.com/roach88/stride/internal/testutil"
)

func TestSubmitProgress_AccumulativeWeek(t *testing.T) {
	f := newFixture(t)
	c := f.create("steps-week", "alice", 10, false)

	var unlocked []string
	var res *SubmitResult
	for day := 0; day < 7; day++ {
		f.clock.Set(testutil.Epoch.Add(time.Duration(day) * 24 * time.Hour))
		res = f.submit(c.ID, "alice", "steps", 10000)
		for _, a := range res.NewAchievements {
			unlocked = append(unlocked, a.TierName)
		}
	}

	assert.InDelta(t, 100.0, res.Progress, 1e-9)
	assert.Equal(t, 1, res.Rank)
	assert.Equal(t, []string{"bronze", "silver", "gold"}, unlocked)

	p := f.stored(c.ID).Participants["alice"]
	assert.Equal(t, 70000.0, p.Metrics.Totals["steps"])
	assert.Equal(t, []string{"bronze", "silver", "gold"}, p.UnlockedTiers)
	assert.Len(t, p.Achievements, 3)

	// More steps past the target unlock nothing new.
	f.clock.Advance(time.Hour)
	res = f.submit(c.ID, "alice", "steps", 5000)
	assert.InDelta(t, 100.0, res.Progress, 1e-9)
	assert.Empty(t, res.NewAchievements)
	assert.Len(t, f.stored(c.ID).Participants["alice"].Achievements, 3)

	gold := 0
	for _, n := range f.notifications(notify.TypeAchievement) {
		if n.Achievement.TierName == "gold" {
			gold++
		}
	}
	assert.Equal(t, 1, gold)
}

func TestSubmitProgress_StreakReset(t *testing.T) {
	f := newFixture(t)
	c := f.create("streak-30", "alice", 10, false)

	for day := 0; day < 5; day++ {
		f.submit(c.ID, "alice", challenge.KeyCompletedToday, true)
		f.clock.AdvanceDays(1)
	}
	before := f.stored(c.ID).Participants["alice"]
	require.Equal(t, 5, before.Metrics.CurrentStreak)
	require.Contains(t, before.UnlockedTiers, "spark")

	res := f.submit(c.ID, "alice", challenge.KeyCompletedToday, false)

	p := f.stored(c.ID).Participants["alice"]
	assert.Equal(t, 0, p.Metrics.CurrentStreak)
	assert.Equal(t, 5, p.Metrics.LongestStreak)
	assert.Less(t, res.Progress, before.Progress)
	assert.Equal(t, 0.0, res.Progress)
	assert.Contains(t, p.UnlockedTiers, "spark", "tiers are never revoked")
	assert.Empty(t, res.NewAchievements)
}

func TestSubmitProgress_TeamMean(t *testing.T) {
	f := newFixture(t)
	c, err := f.engine.CreateChallenge(f.ctx, "steps-week", CreateOptions{
		CreatorID:       "alice",
		MaxParticipants: 10,
		TeamsEnabled:    true,
		CreatorTeamID:   "red",
	})
	require.NoError(t, err)
	f.join(c.ID, "bob", "red")
	f.join(c.ID, "carol", "red")

	// 40%, 60% and 80% of the 70000 target.
	f.submit(c.ID, "alice", "steps", 28000)
	f.submit(c.ID, "bob", "steps", 42000)
	res := f.submit(c.ID, "carol", "steps", 56000)

	require.NotNil(t, res.TeamProgress)
	assert.InDelta(t, 60.0, *res.TeamProgress, 1e-9)

	standings, err := f.engine.GetTeamLeaderboard(f.ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, standings, 1)
	assert.Equal(t, "red", standings[0].TeamID)
	assert.Equal(t, 3, standings[0].Members)
	assert.InDelta(t, 60.0, standings[0].Progress, 1e-9)
}

func TestSubmitProgress_SoloInTeamMode(t *testing.T) {
	f := newFixture(t)
	c := f.create("steps-week", "alice", 10, true)

	res := f.submit(c.ID, "alice", "steps", 7000)

	assert.Nil(t, res.TeamProgress)
}

func TestSubmitProgress_TieBreakOnEarlierUpdate(t *testing.T) {
	f := newFixture(t)
	c := f.create("steps-week", "host", 10, false)
	f.join(c.ID, "x", "")
	f.join(c.ID, "y", "")

	f.clock.Set(testutil.Epoch.Add(10 * time.Second))
	f.submit(c.ID, "x", "steps", 70000)
	f.clock.Set(testutil.Epoch.Add(20 * time.Second))
	f.submit(c.ID, "y", "steps", 70000)

	board, err := f.engine.GetLeaderboard(f.ctx, c.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y", "host"}, userIDs(board))
	assert.Equal(t, 100, board[0].DisplayProgress)

	// A submission that leaves progress unchanged keeps the earlier timestamp.
	f.clock.Set(testutil.Epoch.Add(30 * time.Second))
	res := f.submit(c.ID, "x", "steps", 500)
	assert.Equal(t, 1, res.Rank)
	assert.Equal(t, testutil.Epoch.Add(10*time.Second), f.stored(c.ID).Participants["x"].LastUpdate)
}

func TestSubmitProgress_RankChangeNotifications(t *testing.T) {
	f := newFixture(t)
	c := f.create("step-battle", "alice", 10, false)
	f.join(c.ID, "bob", "")
	f.submit(c.ID, "alice", "steps", 100)
	f.resetNotifications()

	res := f.submit(c.ID, "bob", "steps", 500)
	assert.Equal(t, 1, res.Rank)

	moves := f.notifications(notify.TypeRankChange)
	require.Len(t, moves, 2)
	assert.Equal(t, notify.Notification{Type: notify.TypeRankChange, ChallengeID: c.ID, UserID: "bob", OldRank: 2, NewRank: 1}, moves[0])
	assert.Equal(t, notify.Notification{Type: notify.TypeRankChange, ChallengeID: c.ID, UserID: "alice", OldRank: 1, NewRank: 2}, moves[1])
}

func TestSubmitProgress_NotifierFailureIsIsolated(t *testing.T) {
	f := newFixture(t)
	f.recorder.Fail = errors.New("push gateway down")
	c := f.create("steps-week", "alice", 10, false)

	res, err := f.engine.SubmitProgress(f.ctx, c.ID, "alice", event("steps", 70000))

	require.NoError(t, err)
	assert.Len(t, res.NewAchievements, 3)
	assert.Len(t, f.notifications(notify.TypeAchievement), 3)
	assert.Len(t, f.stored(c.ID).Participants["alice"].Achievements, 3)
}

func TestSubmitProgress_WithoutDispatcher(t *testing.T) {
	f := newFixture(t)
	f.engine.notifier = nil
	c := f.create("steps-week", "alice", 10, false)

	res := f.submit(c.ID, "alice", "steps", 70000)

	assert.Len(t, res.NewAchievements, 3)
	assert.Empty(t, f.notifications(notify.TypeAchievement))
}

func TestSubmitProgress_Errors(t *testing.T) {
	f := newFixture(t)
	c := f.create("steps-week", "alice", 10, false)
	f.join(c.ID, "bob", "")
	version := f.stored(c.ID).Version

	tests := []struct {
		name  string
		id    string
		user  string
		ev    challenge.Event
		check func(error) bool
	}{
		{"unknown challenge", "missing", "alice", event("steps", 1), challenge.IsNotFound},
		{"not enrolled", c.ID, "carol", event("steps", 1), challenge.IsNotFound},
		{"empty user", c.ID, "", event("steps", 1), challenge.IsValidation},
		{"unknown key", c.ID, "alice", event("calories", 1), challenge.IsValidation},
		{"negative value", c.ID, "alice", event("steps", -5), challenge.IsValidation},
		{"empty event", c.ID, "alice", event(), challenge.IsValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.SubmitProgress(f.ctx, tt.id, tt.user, tt.ev)
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error kind: %v", err)
		})
	}

	assert.Equal(t, version, f.stored(c.ID).Version, "rejected events write nothing")
}

func TestSubmitProgress_BeforeStart(t *testing.T) {
	f := newFixture(t)
	c, err := f.engine.CreateChallenge(f.ctx, "steps-week", CreateOptions{
		CreatorID:       "alice",
		MaxParticipants: 10,
		StartTime:       testutil.Epoch.Add(24 * time.Hour),
	})
	require.NoError(t, err)

	// Joining early is allowed, submitting is not.
	f.join(c.ID, "bob", "")
	_, err = f.engine.SubmitProgress(f.ctx, c.ID, "bob", event("steps", 100))
	assert.True(t, challenge.IsStateConflict(err))

	f.clock.AdvanceDays(1)
	f.submit(c.ID, "bob", "steps", 100)
}

// conflictStore fails every save after the first with a concurrency
// conflict, as if another process had committed in between.
type conflictStore struct {
	Store
	saves int
}

func (s *conflictStore) SaveChallenge(ctx context.Context, c *challenge.Challenge) error {
	s.saves++
	if s.saves > 1 {
		return challenge.ConcurrencyConflict("challenge was modified concurrently").With("challenge", c.ID)
	}
	return s.Store.SaveChallenge(ctx, c)
}

func TestSubmitProgress_ConcurrencyConflictSurfaces(t *testing.T) {
	f := newFixture(t)
	cs := &conflictStore{Store: f.store}
	f.engine.store = cs
	c := f.create("steps-week", "alice", 10, false)

	_, err := f.engine.SubmitProgress(f.ctx, c.ID, "alice", event("steps", 70000))

	require.Error(t, err)
	assert.True(t, challenge.IsConcurrencyConflict(err))
	assert.Empty(t, f.stored(c.ID).Participants["alice"].Achievements)
	assert.Empty(t, f.notifications(notify.TypeAchievement), "nothing is announced for an uncommitted write")

	board, err := f.engine.GetLeaderboard(f.ctx, c.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, 0.0, board[0].Progress, "snapshot still shows the committed state")
}
