// Package notify delivers post-commit achievement and rank-change events.
//
// Delivery is best-effort. The engine enqueues notifications on a Dispatcher
// after a successful commit and never waits for them; failures are logged and
// counted, never propagated.
package notify

import (
	"context"
	"errors"
	"log/slog"

	"github.com/roach88/stride/internal/challenge"
)

// Notifier is the external notification collaborator.
type Notifier interface {
	NotifyAchievement(ctx context.Context, challengeID, userID string, a challenge.Achievement) error
	NotifyRankChange(ctx context.Context, challengeID, userID string, oldRank, newRank int) error
}

// Type distinguishes notification kinds.
type Type int

const (
	// TypeAchievement is a newly unlocked reward tier.
	TypeAchievement Type = iota + 1
	// TypeRankChange is a leaderboard rank move.
	TypeRankChange
)

// String returns the metric label of the type.
func (t Type) String() string {
	switch t {
	case TypeAchievement:
		return "achievement"
	case TypeRankChange:
		return "rank_change"
	default:
		return "unknown"
	}
}

// Notification is one queued delivery.
type Notification struct {
	Type        Type
	ChallengeID string
	UserID      string
	Achievement challenge.Achievement // TypeAchievement only
	OldRank     int                   // TypeRankChange only; 0 means unranked
	NewRank     int                   // TypeRankChange only
}

// Deliver sends n through notifier.
func Deliver(ctx context.Context, notifier Notifier, n Notification) error {
	switch n.Type {
	case TypeAchievement:
		return notifier.NotifyAchievement(ctx, n.ChallengeID, n.UserID, n.Achievement)
	case TypeRankChange:
		return notifier.NotifyRankChange(ctx, n.ChallengeID, n.UserID, n.OldRank, n.NewRank)
	default:
		return errors.New("notify: unknown notification type")
	}
}

// LogNotifier writes notifications to a structured logger.
type LogNotifier struct {
	Logger *slog.Logger
}

func (l LogNotifier) logger() *slog.Logger {
	if l.Logger == nil {
		return slog.Default()
	}
	return l.Logger
}

// NotifyAchievement implements Notifier.
func (l LogNotifier) NotifyAchievement(ctx context.Context, challengeID, userID string, a challenge.Achievement) error {
	l.logger().InfoContext(ctx, "achievement unlocked",
		"challenge", challengeID,
		"user", userID,
		"tier", a.TierName,
		"points", a.Points,
		"badge", a.Badge,
	)
	return nil
}

// NotifyRankChange implements Notifier.
func (l LogNotifier) NotifyRankChange(ctx context.Context, challengeID, userID string, oldRank, newRank int) error {
	l.logger().InfoContext(ctx, "rank changed",
		"challenge", challengeID,
		"user", userID,
		"old", oldRank,
		"new", newRank,
	)
	return nil
}

// Multi fans a notification out to several notifiers. Every notifier is
// called; errors are joined.
type Multi []Notifier

// NotifyAchievement implements Notifier.
func (m Multi) NotifyAchievement(ctx context.Context, challengeID, userID string, a challenge.Achievement) error {
	var errs []error
	for _, n := range m {
		if err := n.NotifyAchievement(ctx, challengeID, userID, a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NotifyRankChange implements Notifier.
func (m Multi) NotifyRankChange(ctx context.Context, challengeID, userID string, oldRank, newRank int) error {
	var errs []error
	for _, n := range m {
		if err := n.NotifyRankChange(ctx, challengeID, userID, oldRank, newRank); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
