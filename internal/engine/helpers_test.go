package engine

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/stride/internal/catalog"
	"github.com/roach88/stride/internal/challenge"
	"github.com/roach88/stride/internal/identity"
	"github.com/roach88/stride/internal/notify"
	"github.com/roach88/stride/internal/store/memstore"
	"github.com/roach88/stride/internal/testutil"
)

// fixture wires an engine to an in-memory store, a manual clock and a
// recording notifier.
type fixture struct {
	t          *testing.T
	ctx        context.Context
	engine     *Engine
	store      *memstore.Store
	clock      *testutil.ManualClock
	users      *identity.Directory
	recorder   *testutil.RecordingNotifier
	dispatcher *notify.Dispatcher
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	f := &fixture{
		t:        t,
		ctx:      context.Background(),
		store:    memstore.New(),
		clock:    testutil.NewManualClock(time.Time{}),
		users:    identity.NewDirectory("alice", "bob", "carol", "dave", "erin", "x", "y", "host"),
		recorder: &testutil.RecordingNotifier{},
	}
	f.dispatcher = notify.NewDispatcher(f.recorder, notify.WithRate(0, 0))
	f.dispatcher.Start(f.ctx)
	t.Cleanup(func() { _ = f.dispatcher.Close(context.Background()) })

	base := []Option{
		WithClock(f.clock),
		WithIDGenerator(&SequenceGenerator{Prefix: "c"}),
		WithIdentity(f.users),
		WithDispatcher(f.dispatcher),
	}
	f.engine = New(f.store, catalog.Builtin(), append(base, opts...)...)
	return f
}

// create makes a challenge of templateID created by creator.
func (f *fixture) create(templateID, creator string, max int, teams bool) *challenge.Challenge {
	f.t.Helper()
	c, err := f.engine.CreateChallenge(f.ctx, templateID, CreateOptions{
		CreatorID:       creator,
		MaxParticipants: max,
		TeamsEnabled:    teams,
	})
	require.NoError(f.t, err)
	return c
}

func (f *fixture) join(id, user, team string) {
	f.t.Helper()
	_, err := f.engine.JoinChallenge(f.ctx, id, user, team)
	require.NoError(f.t, err)
}

func (f *fixture) submit(id, user string, kv ...any) *SubmitResult {
	f.t.Helper()
	res, err := f.engine.SubmitProgress(f.ctx, id, user, event(kv...))
	require.NoError(f.t, err)
	return res
}

// stored loads the committed state of a challenge directly from the store.
func (f *fixture) stored(id string) *challenge.Challenge {
	f.t.Helper()
	c, err := f.store.LoadChallenge(f.ctx, id)
	require.NoError(f.t, err)
	return c
}

// notifications flushes the dispatcher and returns what was delivered.
func (f *fixture) notifications(typ notify.Type) []notify.Notification {
	f.dispatcher.Flush()
	return f.recorder.Of(typ)
}

// resetNotifications drops everything delivered so far.
func (f *fixture) resetNotifications() {
	f.dispatcher.Flush()
	f.recorder.Reset()
}

// event builds an Event from alternating key/value pairs.
func event(kv ...any) challenge.Event {
	ev := challenge.Event{Values: map[string]float64{}}
	for i := 0; i+1 < len(kv); i += 2 {
		key := kv[i].(string)
		switch v := kv[i+1].(type) {
		case int:
			ev.Values[key] = float64(v)
		case float64:
			ev.Values[key] = v
		case bool:
			if v {
				ev.Values[key] = 1
			} else {
				ev.Values[key] = 0
			}
		default:
			panic(fmt.Sprintf("event: unsupported value %T", v))
		}
	}
	return ev
}

func userIDs(entries []challenge.LeaderboardEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.UserID
	}
	return out
}
