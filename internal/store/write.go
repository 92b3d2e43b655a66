package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/stride/internal/challenge"
)

// SaveChallenge persists c atomically.
//
// c.Version is the version c was loaded at. Version 0 inserts a new row at
// version 1. Any other version updates the row only if the stored version
// still matches; otherwise the save fails with a ConcurrencyConflict error
// (or NotFound when the row is gone). On success c.Version is bumped to the
// stored version.
//
// The participant index rows are rewritten in the same transaction.
func (s *Store) SaveChallenge(ctx context.Context, c *challenge.Challenge) error {
	body, err := marshalChallenge(c)
	if err != nil {
		return fmt.Errorf("save challenge: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save challenge: begin: %w", err)
	}
	defer tx.Rollback()

	next := c.Version + 1
	if c.Version == 0 {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO challenges
			(id, template_id, creator_id, status, start_time, end_time, version, body)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO NOTHING
		`,
			c.ID,
			c.TemplateID,
			c.CreatorID,
			string(c.Status),
			c.StartTime.UnixNano(),
			c.EndTime.UnixNano(),
			next,
			body,
		)
		if err != nil {
			return fmt.Errorf("save challenge: insert: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return challenge.ConcurrencyConflict("challenge already exists").With("challenge", c.ID)
		}
	} else {
		res, err := tx.ExecContext(ctx, `
			UPDATE challenges
			SET status = ?, end_time = ?, version = ?, body = ?
			WHERE id = ? AND version = ?
		`,
			string(c.Status),
			c.EndTime.UnixNano(),
			next,
			body,
			c.ID,
			c.Version,
		)
		if err != nil {
			return fmt.Errorf("save challenge: update: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("save challenge: rows affected: %w", err)
		}
		if n == 0 {
			return s.classifyStale(ctx, tx, c)
		}
	}

	if err := writeParticipants(ctx, tx, c); err != nil {
		return fmt.Errorf("save challenge: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save challenge: commit: %w", err)
	}
	c.Version = next
	return nil
}

// classifyStale distinguishes a missing row from a version mismatch.
func (s *Store) classifyStale(ctx context.Context, tx *sql.Tx, c *challenge.Challenge) error {
	var stored int64
	err := tx.QueryRowContext(ctx, `SELECT version FROM challenges WHERE id = ?`, c.ID).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return challenge.NotFound("challenge not found").With("challenge", c.ID)
	}
	if err != nil {
		return fmt.Errorf("save challenge: read version: %w", err)
	}
	s.logger.Debug("stale challenge save", "challenge", c.ID, "have", c.Version, "stored", stored)
	return challenge.ConcurrencyConflict("challenge was modified concurrently").
		With("challenge", c.ID).
		With("expected_version", fmt.Sprint(c.Version)).
		With("stored_version", fmt.Sprint(stored))
}

func writeParticipants(ctx context.Context, tx *sql.Tx, c *challenge.Challenge) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM participants WHERE challenge_id = ?`, c.ID); err != nil {
		return fmt.Errorf("clear participants: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO participants (challenge_id, user_id, active, progress)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare participants: %w", err)
	}
	defer stmt.Close()

	for _, id := range c.UserIDs() {
		p := c.Participants[id]
		if _, err := stmt.ExecContext(ctx, c.ID, p.UserID, p.Active, p.Progress); err != nil {
			return fmt.Errorf("write participant %s: %w", p.UserID, err)
		}
	}
	return nil
}
