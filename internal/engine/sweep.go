package engine

import (
	"context"
	"errors"
	"fmt"
)

// SweepExpired completes every Active challenge whose end time has passed
// and returns how many it transitioned.
//
// The lazy transition in every operation stays authoritative; sweeping only
// makes completion visible to store queries without waiting for traffic.
// A challenge that fails to transition does not stop the sweep.
func (e *Engine) SweepExpired(ctx context.Context) (n int, err error) {
	ctx, span := e.span(ctx, "SweepExpired", "")
	defer func() { err = e.finish(span, "sweep", err) }()

	ids, err := e.store.ListActiveEndingBefore(ctx, e.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("list expired challenges: %w", err)
	}

	var errs []error
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		_, touched, err := e.refresh(ctx, id)
		if err != nil {
			errs = append(errs, fmt.Errorf("sweep %s: %w", id, err))
			continue
		}
		if touched {
			n++
		}
	}
	if n > 0 {
		e.logger.Info("expired challenges completed", "count", n)
	}
	return n, errors.Join(errs...)
}
