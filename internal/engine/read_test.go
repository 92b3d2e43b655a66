package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stride/internal/challenge"
)

func TestGetLeaderboard_Limit(t *testing.T) {
	f := newFixture(t)
	c := f.create("step-battle", "alice", 10, false)
	f.join(c.ID, "bob", "")
	f.join(c.ID, "carol", "")
	f.submit(c.ID, "bob", "steps", 300)
	f.submit(c.ID, "carol", "steps", 200)
	f.submit(c.ID, "alice", "steps", 100)

	all, err := f.engine.GetLeaderboard(f.ctx, c.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"bob", "carol", "alice"}, userIDs(all))
	for i, e := range all {
		assert.Equal(t, i+1, e.Rank)
	}

	top, err := f.engine.GetLeaderboard(f.ctx, c.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"bob", "carol"}, userIDs(top))

	_, err = f.engine.GetLeaderboard(f.ctx, "missing", 0)
	assert.True(t, challenge.IsNotFound(err))
}

func TestGetLeaderboard_ColdCache(t *testing.T) {
	f := newFixture(t)
	c := f.create("step-battle", "alice", 10, false)
	f.join(c.ID, "bob", "")
	f.submit(c.ID, "bob", "steps", 10)

	// A second engine over the same store starts without snapshots.
	cold := New(f.store, f.engine.Catalog(), WithClock(f.clock), WithIdentity(f.users))
	version := f.stored(c.ID).Version

	board, err := cold.GetLeaderboard(f.ctx, c.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"bob", "alice"}, userIDs(board))
	assert.Equal(t, version, f.stored(c.ID).Version, "reads do not write")
}

func TestGetLeaderboard_LazyExpiry(t *testing.T) {
	f := newFixture(t)
	c := f.create("steps-week", "alice", 10, false)
	f.join(c.ID, "bob", "")
	f.submit(c.ID, "bob", "steps", 35000)

	f.clock.Set(c.EndTime)

	board, err := f.engine.GetLeaderboard(f.ctx, c.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"bob", "alice"}, userIDs(board), "frozen ranking is still served")
	assert.Equal(t, challenge.StatusCompleted, f.stored(c.ID).Status, "transition is persisted by the read")

	_, err = f.engine.SubmitProgress(f.ctx, c.ID, "bob", event("steps", 1))
	assert.True(t, challenge.IsStateConflict(err))
	_, err = f.engine.JoinChallenge(f.ctx, c.ID, "carol", "")
	assert.True(t, challenge.IsStateConflict(err))
}

func TestSubmitProgress_LazyExpiryPersistsOnRejection(t *testing.T) {
	f := newFixture(t)
	c := f.create("steps-week", "alice", 10, false)
	f.clock.Set(c.EndTime.Add(time.Minute))

	_, err := f.engine.SubmitProgress(f.ctx, c.ID, "alice", event("steps", 1))

	require.Error(t, err)
	assert.True(t, challenge.IsStateConflict(err))
	assert.Equal(t, challenge.StatusCompleted, f.stored(c.ID).Status)
}

func TestGetChallenge(t *testing.T) {
	f := newFixture(t)
	c := f.create("steps-week", "alice", 10, false)

	got, err := f.engine.GetChallenge(f.ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, challenge.StatusActive, got.Status)

	f.clock.AdvanceDays(7)
	got, err = f.engine.GetChallenge(f.ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, challenge.StatusCompleted, got.Status)
}

func TestGetTeamLeaderboard(t *testing.T) {
	f := newFixture(t)
	c := f.create("step-battle", "host", 20, true)
	f.join(c.ID, "alice", "red")
	f.join(c.ID, "bob", "red")
	f.join(c.ID, "carol", "blue")
	f.submit(c.ID, "alice", "steps", 100)
	f.submit(c.ID, "bob", "steps", 100)
	f.submit(c.ID, "carol", "steps", 150)

	standings, err := f.engine.GetTeamLeaderboard(f.ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, standings, 2)

	// step-battle sums member progress.
	assert.Equal(t, "red", standings[0].TeamID)
	assert.Equal(t, 200.0, standings[0].Progress)
	assert.Equal(t, 1, standings[0].Rank)
	assert.Equal(t, "blue", standings[1].TeamID)
	assert.Equal(t, 2, standings[1].Rank)
}

func TestGetTeamLeaderboard_NoTeams(t *testing.T) {
	f := newFixture(t)
	c := f.create("steps-week", "alice", 10, false)

	_, err := f.engine.GetTeamLeaderboard(f.ctx, c.ID)
	assert.True(t, challenge.IsStateConflict(err))
}

func TestGetUserChallengeStats(t *testing.T) {
	f := newFixture(t)

	week := f.create("steps-week", "alice", 10, false)
	f.join(week.ID, "bob", "")
	f.submit(week.ID, "alice", "steps", 70000) // bronze+silver+gold = 85 points, rank 1

	battle := f.create("step-battle", "bob", 10, false)
	f.join(battle.ID, "alice", "")
	f.submit(battle.ID, "bob", "steps", 20000) // ten-k = 5 points
	f.submit(battle.ID, "alice", "steps", 100)

	stats, err := f.engine.GetUserChallengeStats(f.ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, &UserStats{
		UserID:           "alice",
		TotalChallenges:  2,
		TotalPoints:      85,
		BestRank:         1,
		AchievementCount: 3,
	}, stats)

	stats, err = f.engine.GetUserChallengeStats(f.ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalChallenges)
	assert.Equal(t, 5, stats.TotalPoints)
	assert.Equal(t, 1, stats.BestRank)
	assert.Equal(t, 1, stats.AchievementCount)
}

func TestGetUserChallengeStats_WithdrawnAndUnknown(t *testing.T) {
	f := newFixture(t)
	c := f.create("steps-week", "alice", 10, false)
	f.join(c.ID, "bob", "")
	f.submit(c.ID, "bob", "steps", 20000)
	require.NoError(t, f.engine.WithdrawParticipant(f.ctx, c.ID, "bob"))

	stats, err := f.engine.GetUserChallengeStats(f.ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalChallenges)
	assert.Equal(t, 10, stats.TotalPoints, "achievements survive withdrawal")
	assert.Equal(t, 0, stats.BestRank, "withdrawn participants are unranked")

	stats, err = f.engine.GetUserChallengeStats(f.ctx, "nobody")
	require.NoError(t, err)
	assert.Equal(t, &UserStats{UserID: "nobody"}, stats)

	_, err = f.engine.GetUserChallengeStats(f.ctx, " ")
	assert.True(t, challenge.IsValidation(err))
}

func TestSweepExpired(t *testing.T) {
	f := newFixture(t)
	week := f.create("steps-week", "alice", 10, false)
	month := f.create("streak-30", "alice", 10, false)

	f.clock.AdvanceDays(7)

	n, err := f.engine.SweepExpired(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, challenge.StatusCompleted, f.stored(week.ID).Status)
	assert.Equal(t, challenge.StatusActive, f.stored(month.ID).Status)

	n, err = f.engine.SweepExpired(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
