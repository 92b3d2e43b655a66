// Package pgstore is a Postgres challenge store built on pgxpool.
//
// It follows the same document-plus-index layout and optimistic versioning
// as the SQLite store: the version column is bumped with
// version = version + 1 and checked in the WHERE clause.
package pgstore

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/roach88/stride/internal/challenge"
)

//go:embed schema.sql
var schemaSQL string

// Store persists challenges in Postgres.
type Store struct {
	Pool *pgxpool.Pool
}

// NewPool opens a pool sized for a single engine process.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnIdleTime = 5 * time.Minute
	return pgxpool.NewWithConfig(ctx, config)
}

// New wraps an existing pool. Call Migrate before first use.
func New(pool *pgxpool.Pool) *Store {
	return &Store{Pool: pool}
}

// Open connects to databaseURL and applies the schema.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := NewPool(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	s := New(pool)
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.Pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Close releases the pool.
func (s *Store) Close() error {
	s.Pool.Close()
	return nil
}

// LoadChallenge returns the stored challenge with its current version.
func (s *Store) LoadChallenge(ctx context.Context, id string) (*challenge.Challenge, error) {
	var body []byte
	var version int64
	err := s.Pool.QueryRow(ctx, `SELECT body, version FROM challenges WHERE id=$1`, id).Scan(&body, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, challenge.NotFound("challenge not found").With("challenge", id)
	}
	if err != nil {
		return nil, fmt.Errorf("load challenge: %w", err)
	}
	return decode(body, version)
}

// SaveChallenge persists c with optimistic version checking.
func (s *Store) SaveChallenge(ctx context.Context, c *challenge.Challenge) error {
	body, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("save challenge: marshal: %w", err)
	}

	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("save challenge: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	next := c.Version + 1
	if c.Version == 0 {
		tag, err := tx.Exec(ctx, `INSERT INTO challenges
			(id, template_id, creator_id, status, start_time, end_time, version, body)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (id) DO NOTHING`,
			c.ID, c.TemplateID, c.CreatorID, string(c.Status), c.StartTime, c.EndTime, next, body)
		if err != nil {
			return fmt.Errorf("save challenge: insert: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return challenge.ConcurrencyConflict("challenge already exists").With("challenge", c.ID)
		}
	} else {
		tag, err := tx.Exec(ctx, `UPDATE challenges
			SET status=$1, end_time=$2, body=$3, version=version+1, updated_at=now()
			WHERE id=$4 AND version=$5`,
			string(c.Status), c.EndTime, body, c.ID, c.Version)
		if err != nil {
			return fmt.Errorf("save challenge: update: %w", err)
		}
		if tag.RowsAffected() == 0 {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM challenges WHERE id=$1)`, c.ID).Scan(&exists); err != nil {
				return fmt.Errorf("save challenge: check exists: %w", err)
			}
			if !exists {
				return challenge.NotFound("challenge not found").With("challenge", c.ID)
			}
			return challenge.ConcurrencyConflict("challenge was modified concurrently").
				With("challenge", c.ID).
				With("expected_version", fmt.Sprint(c.Version))
		}
	}

	if _, err := tx.Exec(ctx, `DELETE FROM challenge_participants WHERE challenge_id=$1`, c.ID); err != nil {
		return fmt.Errorf("save challenge: clear participants: %w", err)
	}
	batch := &pgx.Batch{}
	for _, id := range c.UserIDs() {
		p := c.Participants[id]
		batch.Queue(`INSERT INTO challenge_participants (challenge_id, user_id, active, progress) VALUES ($1, $2, $3, $4)`,
			c.ID, p.UserID, p.Active, p.Progress)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("save challenge: write participants: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("save challenge: commit: %w", err)
	}
	c.Version = next
	return nil
}

// ListChallengesForUser returns every challenge the user is enrolled in.
func (s *Store) ListChallengesForUser(ctx context.Context, userID string) ([]*challenge.Challenge, error) {
	rows, err := s.Pool.Query(ctx, `SELECT c.body, c.version
		FROM challenges c
		JOIN challenge_participants p ON p.challenge_id = c.id
		WHERE p.user_id=$1
		ORDER BY c.start_time ASC, c.id COLLATE "C" ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query user challenges: %w", err)
	}
	defer rows.Close()

	out := []*challenge.Challenge{}
	for rows.Next() {
		var body []byte
		var version int64
		if err := rows.Scan(&body, &version); err != nil {
			return nil, fmt.Errorf("scan user challenge: %w", err)
		}
		c, err := decode(body, version)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListActiveEndingBefore returns ids of Active challenges ending at or before t.
func (s *Store) ListActiveEndingBefore(ctx context.Context, t time.Time) ([]string, error) {
	rows, err := s.Pool.Query(ctx, `SELECT id FROM challenges
		WHERE status=$1 AND end_time <= $2
		ORDER BY end_time ASC, id COLLATE "C" ASC`, string(challenge.StatusActive), t)
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
	return ids, rows.Err()
}

func decode(body []byte, version int64) (*challenge.Challenge, error) {
	var c challenge.Challenge
	if err := json.Unmarshal(body, &c); err != nil {
		return nil, fmt.Errorf("unmarshal challenge: %w", err)
	}
	if !c.Template.Kind.Valid() {
		panic(fmt.Sprintf("pgstore: challenge %s has corrupted template kind %d", c.ID, int(c.Template.Kind)))
	}
	if c.Participants == nil {
		c.Participants = map[string]*challenge.Participant{}
	}
	c.Version = version
	return &c, nil
}
