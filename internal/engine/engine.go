package engine

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/stride/internal/catalog"
	"github.com/roach88/stride/internal/challenge"
	"github.com/roach88/stride/internal/identity"
	"github.com/roach88/stride/internal/metrics"
	"github.com/roach88/stride/internal/notify"
	"github.com/roach88/stride/internal/telemetry"
)

// Store is the persistence collaborator.
//
// SaveChallenge must be atomic and optimistic: c.Version is the version c
// was loaded at (0 for a new challenge), a mismatch fails with a
// ConcurrencyConflict error, and success bumps c.Version.
type Store interface {
	LoadChallenge(ctx context.Context, id string) (*challenge.Challenge, error)
	SaveChallenge(ctx context.Context, c *challenge.Challenge) error
	ListChallengesForUser(ctx context.Context, userID string) ([]*challenge.Challenge, error)
	ListActiveEndingBefore(ctx context.Context, t time.Time) ([]string, error)
}

// Identity reports whether a user exists in the external user directory.
type Identity interface {
	UserExists(ctx context.Context, userID string) (bool, error)
}

// IDGenerator generates challenge ids.
// Implemented by UUIDv7Generator (production) and FixedGenerator (tests).
type IDGenerator interface {
	Generate() string
}

// Engine is the challenge lifecycle manager.
//
// Thread-safety model:
//   - Every mutation of a challenge runs under that challenge's lock, so
//     joins, submissions and status transitions of one challenge are
//     applied one at a time. Different challenges proceed in parallel.
//   - Leaderboard reads are served from the last committed snapshot and
//     never take a challenge lock, unless the snapshot is missing or the
//     challenge has just expired.
//   - Notifications are enqueued after commit and delivered by the
//     dispatcher goroutine.
type Engine struct {
	store     Store
	catalog   *catalog.Catalog
	identity  Identity
	clock     Clock
	ids       IDGenerator
	notifier  *notify.Dispatcher
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
	locks     *lockTable
	snapshots *snapshotCache
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the time source. Default: SystemClock.
func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithIDGenerator sets the challenge id generator. Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) { e.ids = g }
}

// WithIdentity sets the user directory. Default: every non-empty id exists.
func WithIdentity(i Identity) Option {
	return func(e *Engine) { e.identity = i }
}

// WithDispatcher enables post-commit notifications. Without it
// notifications are dropped.
func WithDispatcher(d *notify.Dispatcher) Option {
	return func(e *Engine) { e.notifier = d }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithMetrics records engine metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithTracer sets the tracer. Default: the global provider's engine tracer.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

// New creates an Engine backed by store and resolving templates in cat.
func New(store Store, cat *catalog.Catalog, opts ...Option) *Engine {
	e := &Engine{
		store:     store,
		catalog:   cat,
		identity:  identity.AllowAll{},
		clock:     SystemClock{},
		ids:       UUIDv7Generator{},
		logger:    slog.Default(),
		tracer:    telemetry.Tracer(),
		locks:     newLockTable(),
		snapshots: newSnapshotCache(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Catalog returns the template catalog.
func (e *Engine) Catalog() *catalog.Catalog {
	return e.catalog
}
