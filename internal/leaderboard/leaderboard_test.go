package leaderboard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stride/internal/challenge"
)

var t0 = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

func part(id string, progress float64, offset int) challenge.Participant {
	return challenge.Participant{
		UserID:     id,
		Active:     true,
		Progress:   progress,
		LastUpdate: t0.Add(time.Duration(offset) * time.Second),
	}
}

func order(entries []challenge.LeaderboardEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.UserID)
	}
	return out
}

func TestRank_ProgressDescending(t *testing.T) {
	got := Rank([]challenge.Participant{
		part("a", 10, 0),
		part("b", 90, 0),
		part("c", 50, 0),
	})
	assert.Equal(t, []string{"b", "c", "a"}, order(got))
	for i, e := range got {
		assert.Equal(t, i+1, e.Rank)
	}
}

func TestRank_TieBreakEarlierUpdate(t *testing.T) {
	got := Rank([]challenge.Participant{
		part("y", 100, 20),
		part("x", 100, 10),
	})
	require.Len(t, got, 2)
	assert.Equal(t, "x", got[0].UserID)
	assert.Equal(t, 1, got[0].Rank)
	assert.Equal(t, "y", got[1].UserID)
	assert.Equal(t, 2, got[1].Rank)
}

func TestRank_FullTieUsesUserID(t *testing.T) {
	got := Rank([]challenge.Participant{
		part("zed", 40, 5),
		part("amy", 40, 5),
	})
	assert.Equal(t, []string{"amy", "zed"}, order(got))
	assert.NotEqual(t, got[0].Rank, got[1].Rank)
}

func TestRank_DeterministicAcrossInputOrder(t *testing.T) {
	ps := []challenge.Participant{
		part("a", 50, 3), part("b", 50, 1), part("c", 70, 9),
		part("d", 50, 1), part("e", 0, 0),
	}
	want := order(Rank(ps))
	assert.Equal(t, []string{"c", "b", "d", "a", "e"}, want)

	reversed := make([]challenge.Participant, len(ps))
	for i, p := range ps {
		reversed[len(ps)-1-i] = p
	}
	assert.Equal(t, want, order(Rank(reversed)))
}

func TestRank_DisplayProgressRounded(t *testing.T) {
	got := Rank([]challenge.Participant{part("a", 100.0/7*3, 0)})
	assert.Equal(t, 43, got[0].DisplayProgress)
}

func TestRank_Empty(t *testing.T) {
	assert.Empty(t, Rank(nil))
}

func TestTop(t *testing.T) {
	all := Rank([]challenge.Participant{part("a", 3, 0), part("b", 2, 0), part("c", 1, 0)})

	assert.Len(t, Top(all, 2), 2)
	assert.Len(t, Top(all, 0), 3)
	assert.Len(t, Top(all, -1), 3)
	assert.Len(t, Top(all, 10), 3)
}

func TestFind(t *testing.T) {
	all := Rank([]challenge.Participant{part("a", 3, 0), part("b", 2, 0)})
	e, ok := Find(all, "b")
	require.True(t, ok)
	assert.Equal(t, 2, e.Rank)

	_, ok = Find(all, "nobody")
	assert.False(t, ok)
}

func TestRankChanges(t *testing.T) {
	before := Rank([]challenge.Participant{part("a", 50, 0), part("b", 40, 0)})
	after := Rank([]challenge.Participant{part("a", 50, 0), part("b", 60, 5), part("c", 0, 9)})

	got := RankChanges(before, after)
	assert.Equal(t, []Change{
		{UserID: "b", Old: 2, New: 1},
		{UserID: "a", Old: 1, New: 2},
		{UserID: "c", Old: 0, New: 3},
	}, got)

	assert.Empty(t, RankChanges(after, after))
}

func TestRankTeams(t *testing.T) {
	got := RankTeams([]challenge.TeamStanding{
		{TeamID: "blue", Progress: 60, LastUpdate: t0.Add(2 * time.Second)},
		{TeamID: "red", Progress: 60, LastUpdate: t0.Add(time.Second)},
		{TeamID: "green", Progress: 80, LastUpdate: t0},
	})
	require.Len(t, got, 3)
	assert.Equal(t, "green", got[0].TeamID)
	assert.Equal(t, "red", got[1].TeamID)
	assert.Equal(t, "blue", got[2].TeamID)
	assert.Equal(t, 3, got[2].Rank)
}
