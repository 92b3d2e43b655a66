package challenge

import (
	"maps"
	"slices"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// Status is the lifecycle state of a challenge.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusArchived  Status = "archived"
)

// Team roles. Informational only.
const (
	RoleCaptain = "captain"
	RoleMember  = "member"
)

// Challenge is one running instance of a template.
type Challenge struct {
	ID              string                  `json:"id"`
	TemplateID      string                  `json:"template_id"`
	Template        Template                `json:"template"` // snapshot taken at creation
	CreatorID       string                  `json:"creator_id"`
	StartTime       time.Time               `json:"start_time"`
	EndTime         time.Time               `json:"end_time"`
	MaxParticipants int                     `json:"max_participants"`
	TeamsEnabled    bool                    `json:"teams_enabled"`
	Status          Status                  `json:"status"`
	ArchivedAt      *time.Time              `json:"archived_at,omitempty"`
	Participants    map[string]*Participant `json:"participants"`
	Teams           map[string]*Team        `json:"teams,omitempty"`

	// Version is the store version this value was loaded at.
	// Zero means the challenge has never been saved.
	Version int64 `json:"-"`
}

// Participant is a user's enrollment record within one challenge.
type Participant struct {
	UserID        string        `json:"user_id"`
	JoinedAt      time.Time     `json:"joined_at"`
	TeamID        string        `json:"team_id,omitempty"`
	Role          string        `json:"role,omitempty"`
	Active        bool          `json:"active"`
	Metrics       Metrics       `json:"metrics"`
	Progress      float64       `json:"progress"`
	UnlockedTiers []string      `json:"unlocked_tiers"`
	Achievements  []Achievement `json:"achievements"`
	LastUpdate    time.Time     `json:"last_update"`
}

// Team groups participants of a team-mode challenge.
// Team progress is never stored; see package team.
type Team struct {
	ID        string   `json:"id"`
	MemberIDs []string `json:"member_ids"` // join order
	CaptainID string   `json:"captain_id"`
}

// Metrics is the per-participant accumulator. Each kind owns a subset:
// accumulative and competitive use Totals, streak uses the streak counters,
// consistency uses DailyRates and PeakRate, goal_based uses CompletedSessions.
type Metrics struct {
	Totals            map[string]float64 `json:"totals,omitempty"`
	CurrentStreak     int                `json:"current_streak,omitempty"`
	LongestStreak     int                `json:"longest_streak,omitempty"`
	DailyRates        []float64          `json:"daily_rates,omitempty"`
	PeakRate          float64            `json:"peak_rate,omitempty"`
	CompletedSessions int                `json:"completed_sessions,omitempty"`
}

// Achievement is an unlocked reward tier. Immutable once created.
type Achievement struct {
	TierName   string    `json:"tier_name"`
	Points     int       `json:"points"`
	Badge      string    `json:"badge"`
	UnlockedAt time.Time `json:"unlocked_at"`
}

// Event is one raw metric submission.
type Event struct {
	Values map[string]float64 `json:"values"`
}

// LeaderboardEntry is a derived, ephemeral ranking row.
type LeaderboardEntry struct {
	UserID          string    `json:"user_id"`
	TeamID          string    `json:"team_id,omitempty"`
	Progress        float64   `json:"progress"`
	DisplayProgress int       `json:"display_progress"`
	Rank            int       `json:"rank"`
	LastUpdate      time.Time `json:"last_update"`
}

// TeamStanding is a derived team ranking row.
type TeamStanding struct {
	TeamID     string    `json:"team_id"`
	Members    int       `json:"members"`
	Progress   float64   `json:"progress"`
	Rank       int       `json:"rank"`
	LastUpdate time.Time `json:"last_update"`
}

// NormalizeID canonicalizes user and team identifiers: surrounding space is
// trimmed and the text is put in Unicode NFC so visually identical ids
// cannot enroll twice.
func NormalizeID(id string) string {
	return norm.NFC.String(strings.TrimSpace(id))
}

// Clone returns a deep copy of the metrics.
func (m Metrics) Clone() Metrics {
	m.Totals = maps.Clone(m.Totals)
	m.DailyRates = slices.Clone(m.DailyRates)
	return m
}

// HasTier reports whether the participant already unlocked the named tier.
func (p *Participant) HasTier(name string) bool {
	return slices.Contains(p.UnlockedTiers, name)
}

// Points sums the points of every unlocked achievement.
func (p *Participant) Points() int {
	total := 0
	for _, a := range p.Achievements {
		total += a.Points
	}
	return total
}

// Clone returns a deep copy of the participant.
func (p *Participant) Clone() *Participant {
	cp := *p
	cp.Metrics = p.Metrics.Clone()
	cp.UnlockedTiers = slices.Clone(p.UnlockedTiers)
	cp.Achievements = slices.Clone(p.Achievements)
	return &cp
}

// Clone returns a deep copy of the team.
func (t *Team) Clone() *Team {
	cp := *t
	cp.MemberIDs = slices.Clone(t.MemberIDs)
	return &cp
}

// Clone returns a deep copy of the challenge, version included.
func (c *Challenge) Clone() *Challenge {
	cp := *c
	cp.Template = c.Template.Clone()
	if c.ArchivedAt != nil {
		at := *c.ArchivedAt
		cp.ArchivedAt = &at
	}
	cp.Participants = make(map[string]*Participant, len(c.Participants))
	for id, p := range c.Participants {
		cp.Participants[id] = p.Clone()
	}
	if c.Teams != nil {
		cp.Teams = make(map[string]*Team, len(c.Teams))
		for id, t := range c.Teams {
			cp.Teams[id] = t.Clone()
		}
	}
	return &cp
}

// Expired reports whether now is at or past the end of the challenge window.
func (c *Challenge) Expired(now time.Time) bool {
	return !now.Before(c.EndTime)
}

// Touch applies the lazy status transition: an Active challenge whose window
// has closed becomes Completed. Returns true when the status changed.
func (c *Challenge) Touch(now time.Time) bool {
	if c.Status == StatusActive && c.Expired(now) {
		c.Status = StatusCompleted
		return true
	}
	return false
}

// Full reports whether the challenge has no free participant slots.
// Withdrawn participants keep their slot.
func (c *Challenge) Full() bool {
	return len(c.Participants) >= c.MaxParticipants
}

// UserIDs returns every enrolled user id in sorted order.
func (c *Challenge) UserIDs() []string {
	return slices.Sorted(maps.Keys(c.Participants))
}

// ActiveParticipants returns copies of active participants sorted by user id.
func (c *Challenge) ActiveParticipants() []Participant {
	out := make([]Participant, 0, len(c.Participants))
	for _, id := range c.UserIDs() {
		if p := c.Participants[id]; p.Active {
			out = append(out, *p)
		}
	}
	return out
}

// TeamIDs returns every team id in sorted order.
func (c *Challenge) TeamIDs() []string {
	return slices.Sorted(maps.Keys(c.Teams))
}
