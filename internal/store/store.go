package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// connParams are go-sqlite3 DSN parameters. They are applied to every
// connection the driver opens, not just the first one.
var connParams = [][2]string{
	{"_journal_mode", "WAL"},
	{"_synchronous", "NORMAL"},
	{"_busy_timeout", "5000"},
	{"_foreign_keys", "on"},
}

// migration upgrades the schema to version. Each one runs in its own
// transaction together with the user_version bump.
type migration struct {
	version int
	name    string
	up      func(ctx context.Context, tx *sql.Tx) error
}

var migrations = []migration{
	{version: 1, name: "participant user index", up: addParticipantUserIndex},
	{version: 2, name: "backfill participant rows", up: backfillParticipants},
}

// schemaVersion is the user_version a fully migrated database reports.
func schemaVersion() int {
	return migrations[len(migrations)-1].version
}

// Store provides durable storage for challenges.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for migrations and stale-save diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Open opens (or creates) the challenge database at path and brings its
// schema up to date. ":memory:" gives a private in-process database.
func Open(path string, opts ...Option) (*Store, error) {
	s := &Store{logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}

	db, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One writer at a time; a single connection also keeps ":memory:"
	// databases alive across calls.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	s.db = db

	ctx := context.Background()
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// dsn appends the connection parameters to path.
func dsn(path string) string {
	q := url.Values{}
	for _, p := range connParams {
		q.Set(p[0], p[1])
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + q.Encode()
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// migrate creates missing tables, then applies every migration newer than
// the stored user_version.
func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	current, err := s.userVersion(ctx)
	if err != nil {
		return err
	}
	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := s.apply(ctx, m); err != nil {
			return fmt.Errorf("migrate to v%d (%s): %w", m.version, m.name, err)
		}
		s.logger.Debug("store migrated", "version", m.version, "migration", m.name)
	}
	return nil
}

func (s *Store) apply(ctx context.Context, m migration) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := m.up(ctx, tx); err != nil {
		return err
	}
	// PRAGMA does not take bind parameters.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", m.version)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return tx.Commit()
}

func (s *Store) userVersion(ctx context.Context) (int, error) {
	raw, err := s.pragma(ctx, "user_version")
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse user_version %q: %w", raw, err)
	}
	return v, nil
}

func addParticipantUserIndex(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS idx_participants_user
		ON participants(user_id, challenge_id)
	`)
	return err
}

// backfillParticipants rebuilds the participant rows of challenges that
// have none, from their stored body. Every challenge enrolls its creator,
// so an empty set means the rows were never written.
func backfillParticipants(ctx context.Context, tx *sql.Tx) error {
	rows, err := tx.QueryContext(ctx, `
		SELECT c.body, c.version FROM challenges c
		WHERE NOT EXISTS (SELECT 1 FROM participants p WHERE p.challenge_id = c.id)
		ORDER BY c.id
	`)
	if err != nil {
		return fmt.Errorf("query unindexed challenges: %w", err)
	}
	type row struct {
		body    string
		version int64
	}
	var pending []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.body, &r.version); err != nil {
			rows.Close()
			return fmt.Errorf("scan unindexed challenge: %w", err)
		}
		pending = append(pending, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate unindexed challenges: %w", err)
	}

	for _, r := range pending {
		c, err := unmarshalChallenge(r.body, r.version)
		if err != nil {
			return err
		}
		if err := writeParticipants(ctx, tx, c); err != nil {
			return fmt.Errorf("backfill %s: %w", c.ID, err)
		}
	}
	return nil
}

// pragma reads a single pragma value as text.
func (s *Store) pragma(ctx context.Context, name string) (string, error) {
	var value string
	if err := s.db.QueryRowContext(ctx, "PRAGMA "+name).Scan(&value); err != nil {
		return "", fmt.Errorf("read pragma %s: %w", name, err)
	}
	return value, nil
}
