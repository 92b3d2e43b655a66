package engine

import (
	"sync"
	"time"

	"github.com/roach88/stride/internal/challenge"
	"github.com/roach88/stride/internal/leaderboard"
	"github.com/roach88/stride/internal/team"
)

// snapshot is the immutable read view of a committed challenge.
type snapshot struct {
	id      string
	version int64
	status  challenge.Status
	endTime time.Time
	entries []challenge.LeaderboardEntry
	teams   []challenge.TeamStanding
}

func newSnapshot(c *challenge.Challenge) *snapshot {
	s := &snapshot{
		id:      c.ID,
		version: c.Version,
		status:  c.Status,
		endTime: c.EndTime,
		entries: leaderboard.Rank(c.ActiveParticipants()),
	}
	if c.TeamsEnabled {
		s.teams = team.Standings(c)
	}
	return s
}

// stale reports whether the snapshot shows an Active challenge whose window
// has closed. Such a snapshot must go through the lazy transition first.
func (s *snapshot) stale(now time.Time) bool {
	return s.status == challenge.StatusActive && !now.Before(s.endTime)
}

// snapshotCache holds the latest snapshot per challenge.
type snapshotCache struct {
	mu sync.RWMutex
	m  map[string]*snapshot
}

func newSnapshotCache() *snapshotCache {
	return &snapshotCache{m: make(map[string]*snapshot)}
}

func (c *snapshotCache) get(id string) (*snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.m[id]
	return s, ok
}

// put stores s unless a newer version is already cached.
func (c *snapshotCache) put(s *snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.m[s.id]; ok && cur.version > s.version {
		return
	}
	c.m[s.id] = s
}
