package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/roach88/stride/internal/metrics"
)

// Dispatcher drains queued notifications on a single worker goroutine,
// rate-limited so a large leaderboard reshuffle cannot flood the notifier.
//
// Enqueue never blocks. Call Start once before enqueuing and Close to drain.
type Dispatcher struct {
	notifier Notifier
	limiter  *rate.Limiter
	queue    *queue
	logger   *slog.Logger
	metrics  *metrics.Metrics
	timeout  time.Duration

	mu      sync.Mutex
	idle    *sync.Cond
	pending int

	startOnce sync.Once
	done      chan struct{}
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithRate limits deliveries to perSecond with the given burst.
// A non-positive rate disables limiting.
func WithRate(perSecond float64, burst int) DispatcherOption {
	return func(d *Dispatcher) {
		if perSecond <= 0 {
			d.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		d.limiter = rate.NewLimiter(rate.Limit(perSecond), max(burst, 1))
	}
}

// WithLogger sets the logger for delivery failures.
func WithLogger(l *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.logger = l }
}

// WithMetrics records sent and failed deliveries.
func WithMetrics(m *metrics.Metrics) DispatcherOption {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithTimeout bounds each delivery call. A non-positive timeout leaves
// deliveries bounded only by the dispatcher context.
func WithTimeout(t time.Duration) DispatcherOption {
	return func(d *Dispatcher) { d.timeout = t }
}

// NewDispatcher creates a dispatcher for notifier. Defaults: 20/s with a
// burst of 40, 10s per delivery.
func NewDispatcher(notifier Notifier, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		notifier: notifier,
		limiter:  rate.NewLimiter(20, 40),
		queue:    newQueue(),
		logger:   slog.Default(),
		timeout:  10 * time.Second,
		done:     make(chan struct{}),
	}
	d.idle = sync.NewCond(&d.mu)
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start launches the worker. Cancelling ctx stops it; anything still queued
// is dropped. Calling Start again has no effect.
func (d *Dispatcher) Start(ctx context.Context) {
	d.startOnce.Do(func() {
		go d.run(ctx)
	})
}

// Enqueue schedules n for delivery. Returns false after Close.
func (d *Dispatcher) Enqueue(n Notification) bool {
	d.mu.Lock()
	d.pending++
	d.mu.Unlock()

	if !d.queue.Enqueue(n) {
		d.finish()
		return false
	}
	return true
}

// Flush blocks until every enqueued notification was delivered or dropped.
func (d *Dispatcher) Flush() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for d.pending > 0 {
		d.idle.Wait()
	}
}

// Pending returns the number of notifications not yet handled.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

// Close stops accepting notifications and waits for the queue to drain or
// ctx to end.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.queue.Close()
	d.Start(ctx) // a never-started dispatcher still drains
	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) run(ctx context.Context) {
	defer close(d.done)
	for {
		if n, ok := d.queue.TryDequeue(); ok {
			d.deliver(ctx, n)
			continue
		}
		select {
		case <-ctx.Done():
			d.dropRemaining()
			return
		case _, open := <-d.queue.Wait():
			if !open && d.queue.Len() == 0 {
				return
			}
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, n Notification) {
	defer d.finish()

	if err := d.limiter.Wait(ctx); err != nil {
		d.logger.Warn("notification dropped", "type", n.Type.String(), "challenge", n.ChallengeID, "user", n.UserID, "error", err)
		d.metrics.Notification(n.Type.String(), "dropped")
		return
	}

	dctx := ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		dctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	if err := Deliver(dctx, d.notifier, n); err != nil {
		d.logger.Error("notification failed", "type", n.Type.String(), "challenge", n.ChallengeID, "user", n.UserID, "error", err)
		d.metrics.Notification(n.Type.String(), "failed")
		return
	}
	d.metrics.Notification(n.Type.String(), "sent")
}

func (d *Dispatcher) dropRemaining() {
	for {
		n, ok := d.queue.TryDequeue()
		if !ok {
			return
		}
		d.metrics.Notification(n.Type.String(), "dropped")
		d.finish()
	}
}

func (d *Dispatcher) finish() {
	d.mu.Lock()
	d.pending--
	if d.pending == 0 {
		d.idle.Broadcast()
	}
	d.mu.Unlock()
}
