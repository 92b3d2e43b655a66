// Package memstore is an in-memory challenge store with the same optimistic
// versioning rules as the SQLite store. Used by tests and ephemeral runs.
package memstore

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/roach88/stride/internal/challenge"
)

// Store keeps deep copies of saved challenges. Safe for concurrent use.
type Store struct {
	mu         sync.RWMutex
	challenges map[string]*challenge.Challenge
}

// New returns an empty store.
func New() *Store {
	return &Store{challenges: make(map[string]*challenge.Challenge)}
}

// LoadChallenge returns a copy of the stored challenge.
func (s *Store) LoadChallenge(_ context.Context, id string) (*challenge.Challenge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.challenges[id]
	if !ok {
		return nil, challenge.NotFound("challenge not found").With("challenge", id)
	}
	return c.Clone(), nil
}

// SaveChallenge stores a copy of c if its version matches. See store.Store.
func (s *Store) SaveChallenge(_ context.Context, c *challenge.Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, exists := s.challenges[c.ID]
	switch {
	case c.Version == 0 && exists:
		return challenge.ConcurrencyConflict("challenge already exists").With("challenge", c.ID)
	case c.Version != 0 && !exists:
		return challenge.NotFound("challenge not found").With("challenge", c.ID)
	case c.Version != 0 && stored.Version != c.Version:
		return challenge.ConcurrencyConflict("challenge was modified concurrently").
			With("challenge", c.ID).
			With("expected_version", fmt.Sprint(c.Version)).
			With("stored_version", fmt.Sprint(stored.Version))
	}

	cp := c.Clone()
	cp.Version = c.Version + 1
	s.challenges[c.ID] = cp
	c.Version = cp.Version
	return nil
}

// ListChallengesForUser returns copies of every challenge the user is
// enrolled in, ordered by start time then id.
func (s *Store) ListChallengesForUser(_ context.Context, userID string) ([]*challenge.Challenge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*challenge.Challenge{}
	for _, c := range s.challenges {
		if _, ok := c.Participants[userID]; ok {
			out = append(out, c.Clone())
		}
	}
	slices.SortFunc(out, func(a, b *challenge.Challenge) int {
		return cmp.Or(a.StartTime.Compare(b.StartTime), strings.Compare(a.ID, b.ID))
	})
	return out, nil
}

// ListActiveEndingBefore returns ids of Active challenges ending at or
// before t, ordered by end time then id.
func (s *Store) ListActiveEndingBefore(_ context.Context, t time.Time) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var due []*challenge.Challenge
	for _, c := range s.challenges {
		if c.Status == challenge.StatusActive && !c.EndTime.After(t) {
			due = append(due, c)
		}
	}
	slices.SortFunc(due, func(a, b *challenge.Challenge) int {
		return cmp.Or(a.EndTime.Compare(b.EndTime), strings.Compare(a.ID, b.ID))
	})
	ids := make([]string, 0, len(due))
	for _, c := range due {
		ids = append(ids, c.ID)
	}
	return ids, nil
}

// Len returns the number of stored challenges.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.challenges)
}
