package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/stride/internal/challenge"
)

// LoadChallenge returns the stored challenge with its current version.
// Returns a NotFound domain error if no such challenge exists.
func (s *Store) LoadChallenge(ctx context.Context, id string) (*challenge.Challenge, error) {
	var body string
	var version int64
	err := s.db.QueryRowContext(ctx, `
		SELECT body, version FROM challenges WHERE id = ?
	`, id).Scan(&body, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, challenge.NotFound("challenge not found").With("challenge", id)
	}
	if err != nil {
		return nil, fmt.Errorf("load challenge: %w", err)
	}
	return unmarshalChallenge(body, version)
}

// ListChallengesForUser returns every challenge the user is enrolled in,
// withdrawn enrollments included, ordered by start time then id.
func (s *Store) ListChallengesForUser(ctx context.Context, userID string) ([]*challenge.Challenge, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.body, c.version
		FROM challenges c
		JOIN participants p ON p.challenge_id = c.id
		WHERE p.user_id = ?
		ORDER BY c.start_time ASC, c.id COLLATE BINARY ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query user challenges: %w", err)
	}
	defer rows.Close()

	out := []*challenge.Challenge{}
	for rows.Next() {
		var body string
		var version int64
		if err := rows.Scan(&body, &version); err != nil {
			return nil, fmt.Errorf("scan user challenge: %w", err)
		}
		c, err := unmarshalChallenge(body, version)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user challenges: %w", err)
	}
	return out, nil
}

// ListActiveEndingBefore returns the ids of Active challenges whose end time
// is at or before t, ordered by end time then id.
func (s *Store) ListActiveEndingBefore(ctx context.Context, t time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM challenges
		WHERE status = ? AND end_time <= ?
		ORDER BY end_time ASC, id COLLATE BINARY ASC
	`, string(challenge.StatusActive), t.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("query expiring challenges: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan expiring challenge: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expiring challenges: %w", err)
	}
	return ids, nil
}
