package notify

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"github.com/roach88/stride/internal/challenge"
)

// Sender is the subset of *messaging.Client used by FCMNotifier.
type Sender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// FCMNotifier pushes notifications through Firebase Cloud Messaging.
// Each user is addressed through the topic "user-<id>", which the mobile
// client subscribes to after sign-in.
type FCMNotifier struct {
	client Sender
}

// NewFCMNotifier initialises a Firebase app from a service account file.
func NewFCMNotifier(ctx context.Context, credentialsFile string) (*FCMNotifier, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("initialize firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("get messaging client: %w", err)
	}
	return &FCMNotifier{client: client}, nil
}

// NewFCMNotifierWithSender wraps an existing sender.
func NewFCMNotifierWithSender(s Sender) *FCMNotifier {
	return &FCMNotifier{client: s}
}

// Topic returns the FCM topic for userID. Topic names are limited to
// [a-zA-Z0-9-_.~%], so every other byte of the id (and '%' itself) is
// percent-encoded. Distinct ids map to distinct topics.
func Topic(userID string) string {
	var b strings.Builder
	b.WriteString("user-")
	for i := 0; i < len(userID); i++ {
		c := userID[i]
		if topicSafe(c) {
			b.WriteByte(c)
			continue
		}
		fmt.Fprintf(&b, "%%%02X", c)
	}
	return b.String()
}

func topicSafe(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return c == '-' || c == '_' || c == '.' || c == '~'
}

// NotifyAchievement implements Notifier.
func (f *FCMNotifier) NotifyAchievement(ctx context.Context, challengeID, userID string, a challenge.Achievement) error {
	msg := &messaging.Message{
		Topic: Topic(userID),
		Notification: &messaging.Notification{
			Title: "Achievement unlocked",
			Body:  fmt.Sprintf("You earned %s (+%d points)", a.TierName, a.Points),
		},
		Data: map[string]string{
			"type":      "achievement",
			"challenge": challengeID,
			"tier":      a.TierName,
			"badge":     a.Badge,
			"points":    strconv.Itoa(a.Points),
		},
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				Sound: "default",
			},
		},
	}
	return f.send(ctx, msg)
}

// NotifyRankChange implements Notifier.
func (f *FCMNotifier) NotifyRankChange(ctx context.Context, challengeID, userID string, oldRank, newRank int) error {
	body := fmt.Sprintf("You are now #%d", newRank)
	if oldRank > 0 {
		body = fmt.Sprintf("You moved from #%d to #%d", oldRank, newRank)
	}
	msg := &messaging.Message{
		Topic: Topic(userID),
		Notification: &messaging.Notification{
			Title: "Leaderboard update",
			Body:  body,
		},
		Data: map[string]string{
			"type":      "rank_change",
			"challenge": challengeID,
			"old_rank":  strconv.Itoa(oldRank),
			"new_rank":  strconv.Itoa(newRank),
		},
	}
	return f.send(ctx, msg)
}

func (f *FCMNotifier) send(ctx context.Context, msg *messaging.Message) error {
	if _, err := f.client.Send(ctx, msg); err != nil {
		return fmt.Errorf("fcm send to %s: %w", msg.Topic, err)
	}
	return nil
}
