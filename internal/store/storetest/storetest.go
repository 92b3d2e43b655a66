// Package storetest is a conformance suite shared by every challenge store
// implementation.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stride/internal/challenge"
)

// Store is the persistence contract under test.
type Store interface {
	LoadChallenge(ctx context.Context, id string) (*challenge.Challenge, error)
	SaveChallenge(ctx context.Context, c *challenge.Challenge) error
	ListChallengesForUser(ctx context.Context, userID string) ([]*challenge.Challenge, error)
	ListActiveEndingBefore(ctx context.Context, t time.Time) ([]string, error)
}

var t0 = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

// NewChallenge returns an unsaved challenge with one participant.
func NewChallenge(id, creator string, start time.Time) *challenge.Challenge {
	tpl := challenge.Template{
		ID:           "steps-week",
		Name:         "Steps Week",
		Kind:         challenge.KindAccumulative,
		DurationDays: 7,
		MetricKeys:   []string{"steps"},
		Target:       70000,
		RewardTiers:  []challenge.RewardTier{{Name: "gold", Threshold: 100, Points: 50, Badge: "gold"}},
	}
	return &challenge.Challenge{
		ID:              id,
		TemplateID:      tpl.ID,
		Template:        tpl,
		CreatorID:       creator,
		StartTime:       start,
		EndTime:         start.Add(tpl.Duration()),
		MaxParticipants: 10,
		Status:          challenge.StatusActive,
		Participants: map[string]*challenge.Participant{
			creator: {
				UserID:        creator,
				JoinedAt:      start,
				Active:        true,
				UnlockedTiers: []string{},
				Achievements:  []challenge.Achievement{},
				LastUpdate:    start,
			},
		},
	}
}

// Run executes the suite. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("InsertThenLoad", func(t *testing.T) { testInsertThenLoad(t, newStore(t)) })
	t.Run("LoadMissing", func(t *testing.T) { testLoadMissing(t, newStore(t)) })
	t.Run("DuplicateInsert", func(t *testing.T) { testDuplicateInsert(t, newStore(t)) })
	t.Run("UpdateBumpsVersion", func(t *testing.T) { testUpdateBumpsVersion(t, newStore(t)) })
	t.Run("StaleUpdate", func(t *testing.T) { testStaleUpdate(t, newStore(t)) })
	t.Run("UpdateMissing", func(t *testing.T) { testUpdateMissing(t, newStore(t)) })
	t.Run("ListForUser", func(t *testing.T) { testListForUser(t, newStore(t)) })
	t.Run("ListActiveEndingBefore", func(t *testing.T) { testListActiveEndingBefore(t, newStore(t)) })
	t.Run("ConcurrentSaves", func(t *testing.T) { testConcurrentSaves(t, newStore(t)) })
}

func testInsertThenLoad(t *testing.T, s Store) {
	ctx := context.Background()
	c := NewChallenge("c1", "alice", t0)
	c.Participants["alice"].Metrics.Totals = map[string]float64{"steps": 1234.5}
	c.Participants["alice"].Progress = 1.76

	require.NoError(t, s.SaveChallenge(ctx, c))
	assert.Equal(t, int64(1), c.Version)

	got, err := s.LoadChallenge(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Version)
	assert.Equal(t, challenge.KindAccumulative, got.Template.Kind)
	assert.True(t, got.StartTime.Equal(t0))
	assert.True(t, got.EndTime.Equal(t0.Add(7*24*time.Hour)))
	require.Contains(t, got.Participants, "alice")
	assert.Equal(t, 1234.5, got.Participants["alice"].Metrics.Totals["steps"])
	assert.Equal(t, 1.76, got.Participants["alice"].Progress)

	// loaded values are independent of the saved pointer
	got.Participants["alice"].Progress = 99
	again, err := s.LoadChallenge(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 1.76, again.Participants["alice"].Progress)
}

func testLoadMissing(t *testing.T, s Store) {
	_, err := s.LoadChallenge(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, challenge.IsNotFound(err))
}

func testDuplicateInsert(t *testing.T, s Store) {
	ctx := context.Background()
	require.NoError(t, s.SaveChallenge(ctx, NewChallenge("c1", "alice", t0)))

	err := s.SaveChallenge(ctx, NewChallenge("c1", "bob", t0))
	require.Error(t, err)
	assert.True(t, challenge.IsConcurrencyConflict(err))
}

func testUpdateBumpsVersion(t *testing.T, s Store) {
	ctx := context.Background()
	c := NewChallenge("c1", "alice", t0)
	require.NoError(t, s.SaveChallenge(ctx, c))

	c.Participants["bob"] = &challenge.Participant{UserID: "bob", Active: true, JoinedAt: t0}
	require.NoError(t, s.SaveChallenge(ctx, c))
	assert.Equal(t, int64(2), c.Version)

	got, err := s.LoadChallenge(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Version)
	assert.Len(t, got.Participants, 2)
}

func testStaleUpdate(t *testing.T, s Store) {
	ctx := context.Background()
	require.NoError(t, s.SaveChallenge(ctx, NewChallenge("c1", "alice", t0)))

	a, err := s.LoadChallenge(ctx, "c1")
	require.NoError(t, err)
	b, err := s.LoadChallenge(ctx, "c1")
	require.NoError(t, err)

	a.Participants["alice"].Progress = 10
	require.NoError(t, s.SaveChallenge(ctx, a))

	b.Participants["alice"].Progress = 20
	err = s.SaveChallenge(ctx, b)
	require.Error(t, err)
	assert.True(t, challenge.IsConcurrencyConflict(err))
	assert.Equal(t, int64(1), b.Version, "failed save keeps the loaded version")

	got, err := s.LoadChallenge(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 10.0, got.Participants["alice"].Progress)
}

func testUpdateMissing(t *testing.T, s Store) {
	c := NewChallenge("ghost", "alice", t0)
	c.Version = 3
	err := s.SaveChallenge(context.Background(), c)
	require.Error(t, err)
	assert.True(t, challenge.IsNotFound(err))
}

func testListForUser(t *testing.T, s Store) {
	ctx := context.Background()
	later := NewChallenge("b-later", "alice", t0.Add(48*time.Hour))
	early := NewChallenge("z-early", "alice", t0)
	other := NewChallenge("other", "carol", t0)
	withdrawn := NewChallenge("a-withdrawn", "carol", t0.Add(time.Hour))
	withdrawn.Participants["alice"] = &challenge.Participant{UserID: "alice", Active: false, JoinedAt: t0}

	for _, c := range []*challenge.Challenge{later, early, other, withdrawn} {
		require.NoError(t, s.SaveChallenge(ctx, c))
	}

	got, err := s.ListChallengesForUser(ctx, "alice")
	require.NoError(t, err)
	ids := make([]string, 0, len(got))
	for _, c := range got {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []string{"z-early", "a-withdrawn", "b-later"}, ids)

	none, err := s.ListChallengesForUser(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testListActiveEndingBefore(t *testing.T, s Store) {
	ctx := context.Background()
	// a ends at t0+7d, b at t0+6d, c much later, d at t0+5d but completed
	a := NewChallenge("a", "alice", t0)
	b := NewChallenge("b", "alice", t0.Add(-24*time.Hour))
	c := NewChallenge("c", "alice", t0.Add(30*24*time.Hour))
	d := NewChallenge("d", "alice", t0.Add(-48*time.Hour))
	d.Status = challenge.StatusCompleted
	for _, ch := range []*challenge.Challenge{a, b, c, d} {
		require.NoError(t, s.SaveChallenge(ctx, ch))
	}

	ids, err := s.ListActiveEndingBefore(ctx, t0.Add(7*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, ids, "end time is inclusive")
}

func testConcurrentSaves(t *testing.T, s Store) {
	ctx := context.Background()
	require.NoError(t, s.SaveChallenge(ctx, NewChallenge("c1", "alice", t0)))

	const writers = 8
	var wg sync.WaitGroup
	results := make(chan error, writers)
	loaded := make([]*challenge.Challenge, writers)
	for i := range loaded {
		c, err := s.LoadChallenge(ctx, "c1")
		require.NoError(t, err)
		loaded[i] = c
	}
	for i, c := range loaded {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Participants["alice"].Progress = float64(i)
			results <- s.SaveChallenge(ctx, c)
		}()
	}
	wg.Wait()
	close(results)

	ok := 0
	for err := range results {
		if err == nil {
			ok++
			continue
		}
		assert.True(t, challenge.IsConcurrencyConflict(err), fmt.Sprint(err))
	}
	assert.Equal(t, 1, ok, "exactly one writer wins a version")
}
