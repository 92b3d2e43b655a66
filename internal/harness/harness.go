package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/stride/internal/catalog"
	"github.com/roach88/stride/internal/challenge"
	"github.com/roach88/stride/internal/engine"
	"github.com/roach88/stride/internal/identity"
	"github.com/roach88/stride/internal/notify"
	"github.com/roach88/stride/internal/store"
	"github.com/roach88/stride/internal/testutil"
)

// Harness is the scenario execution engine.
// It runs scenarios with a manual clock and sequential challenge ids.
type Harness struct {
	store      *store.Store
	engine     *engine.Engine
	clock      *testutil.ManualClock
	recorder   *testutil.RecordingNotifier
	dispatcher *notify.Dispatcher
	delivered  int
}

// Run executes a scenario against the built-in catalog.
func Run(scenario *Scenario) (*Result, error) {
	return RunWithCatalog(scenario, catalog.Builtin())
}

// RunWithCatalog executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Create fresh in-memory database, clock and notifier
// 2. Execute flow steps, validating each expect clause
// 3. Evaluate assertions against the trace and stored state
//
// The returned error covers harness failures (bad arguments, store setup).
// Scenario failures are reported through Result.Pass and Result.Errors.
func RunWithCatalog(scenario *Scenario, cat *catalog.Catalog) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	start := testutil.Epoch
	if scenario.Start != "" {
		start, err = time.Parse(time.RFC3339, scenario.Start)
		if err != nil {
			return nil, fmt.Errorf("parse start: %w", err)
		}
	}

	var users engine.Identity = identity.AllowAll{}
	if len(scenario.Users) > 0 {
		users = identity.NewDirectory(scenario.Users...)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	recorder := &testutil.RecordingNotifier{}
	dispatcher := notify.NewDispatcher(recorder, notify.WithRate(0, 0), notify.WithLogger(quiet))
	dispatcher.Start(ctx)
	defer dispatcher.Close(context.Background())

	clock := testutil.NewManualClock(start)
	h := &Harness{
		store:      st,
		clock:      clock,
		recorder:   recorder,
		dispatcher: dispatcher,
		engine: engine.New(st, cat,
			engine.WithClock(clock),
			engine.WithIDGenerator(&engine.SequenceGenerator{Prefix: "c"}),
			engine.WithIdentity(users),
			engine.WithDispatcher(dispatcher),
			engine.WithLogger(quiet),
		),
	}

	result := NewResult()
	if err := h.executeFlow(ctx, scenario.Flow, result); err != nil {
		return nil, fmt.Errorf("failed to execute flow: %w", err)
	}

	actx := &AssertionContext{Ctx: ctx, Store: st, Engine: h.engine}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}
	return result, nil
}

// executeFlow runs each step, records it in the trace and checks its expect
// clause.
func (h *Harness) executeFlow(ctx context.Context, flow []FlowStep, result *Result) error {
	for i, step := range flow {
		if step.After != "" {
			d, err := time.ParseDuration(step.After)
			if err != nil {
				return fmt.Errorf("flow[%d].after: %w", i, err)
			}
			h.clock.Advance(d)
		}

		event := TraceEvent{
			Seq:    int64(i + 1),
			At:     h.clock.Now(),
			Invoke: step.Invoke,
			Args:   step.Args,
			Case:   CaseOK,
		}

		value, summary, err := h.execute(ctx, step)
		var argErr *argError
		switch {
		case errors.As(err, &argErr):
			return fmt.Errorf("flow[%d] %s: %w", i, step.Invoke, err)
		case err != nil:
			event.Case = string(challenge.KindOf(err))
			if event.Case == "" {
				return fmt.Errorf("flow[%d] %s: %w", i, step.Invoke, err)
			}
			var de *challenge.Error
			if errors.As(err, &de) {
				event.Message = de.Message
			}
		default:
			event.Summary = summary
			normalized, nerr := normalize(value)
			if nerr != nil {
				return fmt.Errorf("flow[%d] %s: encode result: %w", i, step.Invoke, nerr)
			}
			event.Result = normalized
		}

		result.Trace = append(result.Trace, event)
		h.collectNotifications(result)

		if msg := checkExpect(i, step, event); msg != "" {
			result.AddError(msg)
		}
	}
	return nil
}

// execute dispatches one step to the engine. It returns the operation's
// value and a one-line summary of it.
func (h *Harness) execute(ctx context.Context, step FlowStep) (any, string, error) {
	a := args(step.Args)
	e := h.engine

	switch step.Invoke {
	case "create":
		opts := engine.CreateOptions{
			CreatorID:       a.str("creator"),
			MaxParticipants: a.integer("max"),
			TeamsEnabled:    a.boolean("teams"),
			CreatorTeamID:   a.str("team"),
		}
		if s := a.str("start"); s != "" {
			t, err := time.Parse(time.RFC3339, s)
			if err != nil {
				return nil, "", &argError{key: "start", err: err}
			}
			opts.StartTime = t
		}
		if err := a.err(); err != nil {
			return nil, "", err
		}
		c, err := e.CreateChallenge(ctx, a.str("template"), opts)
		if err != nil {
			return nil, "", err
		}
		return c, fmt.Sprintf("id=%s end=%s", c.ID, c.EndTime.Format(time.RFC3339)), nil

	case "join":
		id, user, team := a.str("challenge"), a.str("user"), a.str("team")
		if err := a.err(); err != nil {
			return nil, "", err
		}
		p, err := e.JoinChallenge(ctx, id, user, team)
		if err != nil {
			return nil, "", err
		}
		summary := "user=" + p.UserID
		if p.TeamID != "" {
			summary += fmt.Sprintf(" team=%s role=%s", p.TeamID, p.Role)
		}
		return p, summary, nil

	case "submit":
		id, user, values := a.str("challenge"), a.str("user"), a.values("values")
		if err := a.err(); err != nil {
			return nil, "", err
		}
		res, err := e.SubmitProgress(ctx, id, user, challenge.Event{Values: values})
		if err != nil {
			return nil, "", err
		}
		return res, summarizeSubmit(res), nil

	case "withdraw":
		id, user := a.str("challenge"), a.str("user")
		if err := a.err(); err != nil {
			return nil, "", err
		}
		return nil, "", e.WithdrawParticipant(ctx, id, user)

	case "archive":
		id := a.str("challenge")
		if err := a.err(); err != nil {
			return nil, "", err
		}
		return nil, "", e.ArchiveChallenge(ctx, id)

	case "sweep":
		n, err := e.SweepExpired(ctx)
		if err != nil {
			return nil, "", err
		}
		return map[string]int{"completed": n}, fmt.Sprintf("completed=%d", n), nil

	case "leaderboard":
		id, limit := a.str("challenge"), a.integer("limit")
		if err := a.err(); err != nil {
			return nil, "", err
		}
		entries, err := e.GetLeaderboard(ctx, id, limit)
		if err != nil {
			return nil, "", err
		}
		parts := make([]string, len(entries))
		for i, en := range entries {
			parts[i] = fmt.Sprintf("%d:%s(%.2f)", en.Rank, en.UserID, en.Progress)
		}
		return entries, strings.Join(parts, " "), nil

	case "teams":
		id := a.str("challenge")
		if err := a.err(); err != nil {
			return nil, "", err
		}
		standings, err := e.GetTeamLeaderboard(ctx, id)
		if err != nil {
			return nil, "", err
		}
		parts := make([]string, len(standings))
		for i, s := range standings {
			parts[i] = fmt.Sprintf("%d:%s(%.2f)", s.Rank, s.TeamID, s.Progress)
		}
		return standings, strings.Join(parts, " "), nil

	case "stats":
		user := a.str("user")
		if err := a.err(); err != nil {
			return nil, "", err
		}
		stats, err := e.GetUserChallengeStats(ctx, user)
		if err != nil {
			return nil, "", err
		}
		return stats, fmt.Sprintf("challenges=%d points=%d best=%d achievements=%d",
			stats.TotalChallenges, stats.TotalPoints, stats.BestRank, stats.AchievementCount), nil

	default:
		return nil, "", &argError{key: "invoke", err: fmt.Errorf("unknown operation %q", step.Invoke)}
	}
}

func summarizeSubmit(res *engine.SubmitResult) string {
	summary := fmt.Sprintf("progress=%.2f rank=%d", res.Progress, res.Rank)
	if res.TeamProgress != nil {
		summary += fmt.Sprintf(" team=%.2f", *res.TeamProgress)
	}
	if len(res.NewAchievements) > 0 {
		names := make([]string, len(res.NewAchievements))
		for i, a := range res.NewAchievements {
			names[i] = a.TierName
		}
		summary += " unlocked=" + strings.Join(names, ",")
	}
	return summary
}

// collectNotifications waits for the dispatcher to go idle and appends the
// notifications delivered since the last call.
func (h *Harness) collectNotifications(result *Result) {
	h.dispatcher.Flush()
	all := h.recorder.All()
	for _, n := range all[h.delivered:] {
		d := Delivered{
			Type:        n.Type.String(),
			ChallengeID: n.ChallengeID,
			UserID:      n.UserID,
		}
		switch n.Type {
		case notify.TypeAchievement:
			d.Tier = n.Achievement.TierName
		case notify.TypeRankChange:
			d.OldRank, d.NewRank = n.OldRank, n.NewRank
		}
		result.Notifications = append(result.Notifications, d)
	}
	h.delivered = len(all)
}

// checkExpect compares a step's outcome with its expect clause and returns
// a failure message, or "" when it matches.
func checkExpect(index int, step FlowStep, event TraceEvent) string {
	want := CaseOK
	if step.Expect != nil {
		want = step.Expect.Case
	}
	if event.Case != want {
		got := event.Case
		if event.Message != "" {
			got += " (" + event.Message + ")"
		}
		return fmt.Sprintf("flow[%d] %s: expected case %s, got %s", index, step.Invoke, want, got)
	}
	if step.Expect == nil || len(step.Expect.Result) == 0 {
		return ""
	}
	expected, err := normalize(step.Expect.Result)
	if err != nil {
		return fmt.Sprintf("flow[%d] %s: expected result: %v", index, step.Invoke, err)
	}
	if !matchSubset(event.Result, expected) {
		return fmt.Sprintf("flow[%d] %s: result mismatch\n  Expected (subset): %v\n  Actual: %v",
			index, step.Invoke, expected, event.Result)
	}
	return ""
}
