package engine

import (
	"context"
	"strconv"
	"time"

	"github.com/roach88/stride/internal/challenge"
	"github.com/roach88/stride/internal/leaderboard"
	"github.com/roach88/stride/internal/notify"
)

// CreateOptions are the creator-chosen settings of a new challenge.
type CreateOptions struct {
	CreatorID       string
	MaxParticipants int
	TeamsEnabled    bool

	// StartTime defaults to now. The challenge ends DurationDays later.
	StartTime time.Time

	// CreatorTeamID enrolls the creator into a new team as its captain.
	// Ignored unless TeamsEnabled.
	CreatorTeamID string
}

// CreateChallenge instantiates a template from the catalog and enrolls the
// creator as the first participant.
func (e *Engine) CreateChallenge(ctx context.Context, templateID string, opts CreateOptions) (c *challenge.Challenge, err error) {
	ctx, span := e.span(ctx, "CreateChallenge", "")
	defer func() { err = e.finish(span, "create", err) }()

	if opts.MaxParticipants <= 0 {
		return nil, challenge.Validation("max participants must be positive").
			With("max_participants", strconv.Itoa(opts.MaxParticipants))
	}
	tpl, err := e.catalog.Get(templateID)
	if err != nil {
		return nil, err
	}
	creator, err := e.checkUser(ctx, opts.CreatorID)
	if err != nil {
		return nil, err
	}

	now := e.clock.Now()
	start := opts.StartTime.UTC()
	if opts.StartTime.IsZero() {
		start = now
	}
	end := start.Add(tpl.Duration())
	if !now.Before(end) {
		return nil, challenge.Validation("challenge would end before it is created").
			With("end", end.Format(time.RFC3339))
	}

	c = &challenge.Challenge{
		ID:              e.ids.Generate(),
		TemplateID:      tpl.ID,
		Template:        tpl,
		CreatorID:       creator,
		StartTime:       start,
		EndTime:         end,
		MaxParticipants: opts.MaxParticipants,
		TeamsEnabled:    opts.TeamsEnabled,
		Status:          challenge.StatusActive,
		Participants:    make(map[string]*challenge.Participant),
		Teams:           make(map[string]*challenge.Team),
	}
	if err := enroll(c, creator, opts.CreatorTeamID, now); err != nil {
		return nil, err
	}

	unlock := e.locks.lock(c.ID)
	defer unlock()
	if err := e.commit(ctx, c); err != nil {
		return nil, err
	}

	e.metrics.Join()
	e.logger.Info("challenge created",
		"challenge", c.ID, "template", tpl.ID, "creator", creator,
		"start", start, "end", end, "max", opts.MaxParticipants, "teams", opts.TeamsEnabled)
	return c.Clone(), nil
}

// JoinChallenge enrolls a user. teamID selects or creates a team in
// team-mode challenges; it is ignored otherwise.
func (e *Engine) JoinChallenge(ctx context.Context, challengeID, userID, teamID string) (p *challenge.Participant, err error) {
	ctx, span := e.span(ctx, "JoinChallenge", challengeID)
	defer func() { err = e.finish(span, "join", err) }()

	uid, err := e.checkUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	c, err := e.mutate(ctx, challengeID, func(c *challenge.Challenge, now time.Time) error {
		if c.Status != challenge.StatusActive {
			return notActive(c)
		}
		if _, ok := c.Participants[uid]; ok {
			return challenge.StateConflict("user is already enrolled").
				With("challenge", c.ID).With("user", uid)
		}
		if c.Full() {
			return challenge.StateConflict("challenge is full").
				With("challenge", c.ID).With("max_participants", strconv.Itoa(c.MaxParticipants))
		}
		return enroll(c, uid, teamID, now)
	})
	if err != nil {
		return nil, err
	}

	e.metrics.Join()
	joined := c.Participants[uid]
	e.logger.Info("participant joined", "challenge", c.ID, "user", uid, "team", joined.TeamID)
	return joined.Clone(), nil
}

// enroll adds a fresh participant to c, placing it on teamID when teams are
// enabled. It validates the team before changing c.
func enroll(c *challenge.Challenge, userID, teamID string, now time.Time) error {
	p := &challenge.Participant{
		UserID:        userID,
		JoinedAt:      now,
		Active:        true,
		UnlockedTiers: []string{},
		Achievements:  []challenge.Achievement{},
		LastUpdate:    now,
	}

	tid := challenge.NormalizeID(teamID)
	if c.TeamsEnabled && tid != "" {
		t, ok := c.Teams[tid]
		switch {
		case !ok:
			c.Teams[tid] = &challenge.Team{ID: tid, MemberIDs: []string{userID}, CaptainID: userID}
			p.Role = challenge.RoleCaptain
		case c.Template.TeamSize > 0 && len(t.MemberIDs) >= c.Template.TeamSize:
			return challenge.StateConflict("team is full").
				With("challenge", c.ID).With("team", tid).With("team_size", strconv.Itoa(c.Template.TeamSize))
		default:
			t.MemberIDs = append(t.MemberIDs, userID)
			p.Role = challenge.RoleMember
		}
		p.TeamID = tid
	}

	c.Participants[userID] = p
	return nil
}

// WithdrawParticipant marks a participant inactive. The record is kept, but
// it no longer ranks, counts toward team progress or accepts submissions.
// Users ranked below move up and are notified.
func (e *Engine) WithdrawParticipant(ctx context.Context, challengeID, userID string) (err error) {
	ctx, span := e.span(ctx, "WithdrawParticipant", challengeID)
	defer func() { err = e.finish(span, "withdraw", err) }()

	uid := challenge.NormalizeID(userID)
	if uid == "" {
		return challenge.Validation("user id is required")
	}

	var changes []leaderboard.Change
	c, err := e.mutate(ctx, challengeID, func(c *challenge.Challenge, _ time.Time) error {
		if c.Status != challenge.StatusActive {
			return notActive(c)
		}
		p, ok := c.Participants[uid]
		if !ok {
			return challenge.NotFound("participant not found").With("challenge", c.ID).With("user", uid)
		}
		if !p.Active {
			return challenge.StateConflict("participant already withdrawn").With("challenge", c.ID).With("user", uid)
		}
		before := leaderboard.Rank(c.ActiveParticipants())
		p.Active = false
		changes = leaderboard.RankChanges(before, leaderboard.Rank(c.ActiveParticipants()))
		return nil
	})
	if err != nil {
		return err
	}

	e.logger.Info("participant withdrawn", "challenge", c.ID, "user", uid)
	e.notifyRanks(c.ID, changes)
	return nil
}

// ArchiveChallenge moves an Active or Completed challenge to Archived.
func (e *Engine) ArchiveChallenge(ctx context.Context, challengeID string) (err error) {
	ctx, span := e.span(ctx, "ArchiveChallenge", challengeID)
	defer func() { err = e.finish(span, "archive", err) }()

	c, err := e.mutate(ctx, challengeID, func(c *challenge.Challenge, now time.Time) error {
		if c.Status == challenge.StatusArchived {
			return challenge.StateConflict("challenge is already archived").With("challenge", c.ID)
		}
		c.Status = challenge.StatusArchived
		at := now
		c.ArchivedAt = &at
		return nil
	})
	if err != nil {
		return err
	}

	e.metrics.Transition(string(challenge.StatusArchived))
	e.logger.Info("challenge archived", "challenge", c.ID)
	return nil
}

// notActive is the StateConflict for writes against a frozen challenge.
func notActive(c *challenge.Challenge) error {
	msg := "challenge has ended"
	if c.Status == challenge.StatusArchived {
		msg = "challenge is archived"
	}
	return challenge.StateConflict(msg).With("challenge", c.ID).With("status", string(c.Status))
}

// notifyRanks enqueues one rank-change notification per moved user.
func (e *Engine) notifyRanks(challengeID string, changes []leaderboard.Change) {
	for _, ch := range changes {
		e.enqueue(notify.Notification{
			Type:        notify.TypeRankChange,
			ChallengeID: challengeID,
			UserID:      ch.UserID,
			OldRank:     ch.Old,
			NewRank:     ch.New,
		})
	}
}

func (e *Engine) enqueue(n notify.Notification) {
	if e.notifier == nil {
		return
	}
	if !e.notifier.Enqueue(n) {
		e.logger.Warn("notification dropped", "type", n.Type.String(), "challenge", n.ChallengeID, "user", n.UserID)
	}
}
