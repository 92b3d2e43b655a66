package engine

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/stride/internal/challenge"
)

// span starts an operation span tagged with the challenge id, when known.
func (e *Engine) span(ctx context.Context, op, challengeID string) (context.Context, trace.Span) {
	var opts []trace.SpanStartOption
	if challengeID != "" {
		opts = append(opts, trace.WithAttributes(attribute.String("challenge.id", challengeID)))
	}
	return e.tracer.Start(ctx, "engine."+op, opts...)
}

// finish records err on span and in metrics, then ends the span.
// It returns err unchanged so callers can write `return e.finish(...)`.
func (e *Engine) finish(span trace.Span, op string, err error) error {
	defer span.End()
	if err == nil {
		return nil
	}
	kind := string(challenge.KindOf(err))
	if kind == "" {
		kind = "internal"
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, kind)
	e.metrics.Error(op, kind)
	e.logger.Debug("operation failed", "op", op, "kind", kind, "error", err)
	return err
}

// checkUser normalizes userID and verifies it against the identity service.
func (e *Engine) checkUser(ctx context.Context, userID string) (string, error) {
	id := challenge.NormalizeID(userID)
	if id == "" {
		return "", challenge.Validation("user id is required")
	}
	ok, err := e.identity.UserExists(ctx, id)
	if err != nil {
		return "", fmt.Errorf("identity lookup for %q: %w", id, err)
	}
	if !ok {
		return "", challenge.NotFound("user does not exist").With("user", id)
	}
	return id, nil
}
