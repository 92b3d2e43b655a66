package testutil

import (
	"context"
	"sync"

	"github.com/roach88/stride/internal/challenge"
	"github.com/roach88/stride/internal/notify"
)

// RecordingNotifier captures every notification it is asked to deliver.
//
// Fail makes every delivery return that error after recording it, which
// lets tests check that notifier failures never reach the caller.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type RecordingNotifier struct {
	Fail error

	mu   sync.Mutex
	sent []notify.Notification
}

// NotifyAchievement records an achievement notification.
func (r *RecordingNotifier) NotifyAchievement(_ context.Context, challengeID, userID string, a challenge.Achievement) error {
	r.record(notify.Notification{Type: notify.TypeAchievement, ChallengeID: challengeID, UserID: userID, Achievement: a})
	return r.Fail
}

// NotifyRankChange records a rank-change notification.
func (r *RecordingNotifier) NotifyRankChange(_ context.Context, challengeID, userID string, oldRank, newRank int) error {
	r.record(notify.Notification{Type: notify.TypeRankChange, ChallengeID: challengeID, UserID: userID, OldRank: oldRank, NewRank: newRank})
	return r.Fail
}

func (r *RecordingNotifier) record(n notify.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
}

// All returns a copy of the recorded notifications in delivery order.
func (r *RecordingNotifier) All() []notify.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Notification(nil), r.sent...)
}

// Of returns the recorded notifications of one type.
func (r *RecordingNotifier) Of(typ notify.Type) []notify.Notification {
	var out []notify.Notification
	for _, n := range r.All() {
		if n.Type == typ {
			out = append(out, n)
		}
	}
	return out
}

// Reset forgets everything recorded so far.
func (r *RecordingNotifier) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = nil
}
