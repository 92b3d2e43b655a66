// Package scheduler runs the periodic expiry sweep.
//
// The engine completes expired challenges lazily on first access. The
// sweeper adds an active pass so idle challenges reach Completed in the
// store without waiting for traffic.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Sweeper completes expired challenges. Implemented by *engine.Engine.
type Sweeper interface {
	SweepExpired(ctx context.Context) (int, error)
}

// Scheduler owns a gocron scheduler with a single sweep job.
type Scheduler struct {
	sched   gocron.Scheduler
	job     gocron.Job
	sweeper Sweeper
	logger  *slog.Logger
	timeout time.Duration
	ctx     context.Context
	cancel  context.CancelFunc
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// WithTimeout bounds a single sweep. Default: 30s.
func WithTimeout(d time.Duration) Option {
	return func(s *Scheduler) { s.timeout = d }
}

// New schedules sw.SweepExpired every interval. The job does not run until
// Start is called. Overlapping runs are skipped.
func New(sw Sweeper, interval time.Duration, opts ...Option) (*Scheduler, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("sweep interval must be positive, got %s", interval)
	}

	s := &Scheduler{
		sweeper: sw,
		logger:  slog.Default(),
		timeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	sched, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	job, err := sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(s.sweep),
		gocron.WithName("sweep-expired"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, fmt.Errorf("schedule sweep: %w", err)
	}

	s.sched = sched
	s.job = job
	return s, nil
}

// Start begins running the sweep on its interval.
func (s *Scheduler) Start() {
	s.logger.Info("expiry sweeper started", "job", s.job.Name())
	s.sched.Start()
}

// RunNow triggers an immediate sweep in addition to the schedule.
func (s *Scheduler) RunNow() error {
	return s.job.RunNow()
}

// Shutdown cancels a running sweep and stops the scheduler.
func (s *Scheduler) Shutdown() error {
	s.cancel()
	return s.sched.Shutdown()
}

func (s *Scheduler) sweep() {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	n, err := s.sweeper.SweepExpired(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		s.logger.Error("expiry sweep failed", "completed", n, "error", err)
		return
	}
	s.logger.Debug("expiry sweep finished", "completed", n)
}
