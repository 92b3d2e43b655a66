package engine

import (
	"context"
	"time"

	"github.com/roach88/stride/internal/challenge"
)

// mutateFunc applies one change to c at time now. It must validate before
// touching c: a mutateFunc that returns an error leaves c unchanged.
type mutateFunc func(c *challenge.Challenge, now time.Time) error

// mutate runs fn against the latest committed state of a challenge under
// that challenge's lock and persists the result.
//
// The lazy status transition runs first. When it fires it is persisted even
// if fn then rejects the operation, so an expired challenge is completed by
// the first operation that observes it.
func (e *Engine) mutate(ctx context.Context, id string, fn mutateFunc) (*challenge.Challenge, error) {
	unlock := e.locks.lock(id)
	defer unlock()

	c, err := e.store.LoadChallenge(ctx, id)
	if err != nil {
		return nil, err
	}

	now := e.clock.Now()
	touched := c.Touch(now)

	if ferr := fn(c, now); ferr != nil {
		if touched {
			if err := e.commit(ctx, c); err != nil {
				return nil, err
			}
			e.metrics.Transition(string(challenge.StatusCompleted))
		}
		return nil, ferr
	}

	if err := e.commit(ctx, c); err != nil {
		return nil, err
	}
	if touched {
		e.metrics.Transition(string(challenge.StatusCompleted))
		e.logger.Info("challenge completed", "challenge", c.ID, "end", c.EndTime)
	}
	return c, nil
}

// commit saves c and publishes its snapshot. Caller holds the challenge lock.
func (e *Engine) commit(ctx context.Context, c *challenge.Challenge) error {
	if err := e.store.SaveChallenge(ctx, c); err != nil {
		return err
	}
	e.snapshots.put(newSnapshot(c))
	return nil
}

// refresh loads a challenge under its lock, applies and persists the lazy
// status transition if it is due, and republishes its snapshot. Nothing is
// written when the challenge is unchanged. It reports whether the
// transition fired.
func (e *Engine) refresh(ctx context.Context, id string) (*challenge.Challenge, bool, error) {
	unlock := e.locks.lock(id)
	defer unlock()

	c, err := e.store.LoadChallenge(ctx, id)
	if err != nil {
		return nil, false, err
	}
	touched := c.Touch(e.clock.Now())
	if touched {
		if err := e.store.SaveChallenge(ctx, c); err != nil {
			return nil, false, err
		}
		e.metrics.Transition(string(challenge.StatusCompleted))
		e.logger.Info("challenge completed", "challenge", c.ID, "end", c.EndTime)
	}
	e.snapshots.put(newSnapshot(c))
	return c, touched, nil
}

// current returns the read view of a challenge. The cached snapshot is used
// unless it is missing or its challenge has just expired.
func (e *Engine) current(ctx context.Context, id string) (*snapshot, error) {
	if snap, ok := e.snapshots.get(id); ok && !snap.stale(e.clock.Now()) {
		return snap, nil
	}
	c, _, err := e.refresh(ctx, id)
	if err != nil {
		return nil, err
	}
	snap, _ := e.snapshots.get(c.ID)
	return snap, nil
}
