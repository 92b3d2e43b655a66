package harness

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/stride/internal/engine"
	"github.com/roach88/stride/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  %s\n", formatEvent(event))
		}
	}
	return buf.String()
}

// assertTraceContains checks if the trace contains a step with the given
// invoke whose args contain the expected args.
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	for _, event := range trace {
		if event.Invoke == assertion.Invoke && matchArgs(event.Args, assertion.Args) {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("%s with args %v", assertion.Invoke, assertion.Args),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks if invokes appear in the specified order.
// They don't need to be consecutive (intervening steps are allowed).
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	next := 0
	for _, event := range trace {
		if next < len(assertion.Invokes) && event.Invoke == assertion.Invokes[next] {
			next++
		}
	}
	if next == len(assertion.Invokes) {
		return nil
	}
	return &AssertionError{
		Type:     AssertTraceOrder,
		Expected: fmt.Sprintf("invokes in order: %v", assertion.Invokes),
		Actual:   fmt.Sprintf("matched up to %v, missing %s", assertion.Invokes[:next], assertion.Invokes[next]),
		Trace:    trace,
	}
}

// assertTraceCount checks if the invoke appears exactly the specified
// number of times, counting only steps whose args match.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Invoke == assertion.Invoke && matchArgs(event.Args, assertion.Args) {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.Invoke),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertFinalState loads the stored challenge and matches its JSON form
// (or one participant's) against the expected subset.
func assertFinalState(ctx context.Context, st *store.Store, assertion Assertion) error {
	c, err := st.LoadChallenge(ctx, assertion.Challenge)
	if err != nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("challenge %s in store", assertion.Challenge),
			Actual:   err.Error(),
		}
	}

	var target any = c
	what := "challenge " + c.ID
	if assertion.User != "" {
		p, ok := c.Participants[assertion.User]
		if !ok {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("participant %s in challenge %s", assertion.User, c.ID),
				Actual:   fmt.Sprintf("enrolled: %v", c.UserIDs()),
			}
		}
		target = p
		what = fmt.Sprintf("participant %s of %s", p.UserID, c.ID)
	}

	actual, err := normalize(target)
	if err != nil {
		return fmt.Errorf("encode %s: %w", what, err)
	}
	expected, err := normalize(assertion.Expect)
	if err != nil {
		return fmt.Errorf("encode expectation: %w", err)
	}

	exp := expected.(map[string]any)
	act := actual.(map[string]any)
	for _, key := range sortedKeys(exp) {
		av, exists := act[key]
		if !exists {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q on %s", key, what),
				Actual:   fmt.Sprintf("fields present: %v", sortedKeys(act)),
			}
		}
		if !matchSubset(av, exp[key]) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("%s field %q = %v", what, key, exp[key]),
				Actual:   fmt.Sprintf("%v", av),
			}
		}
	}
	return nil
}

// assertLeaderboard checks the full ranking order of a challenge.
func assertLeaderboard(ctx context.Context, e *engine.Engine, assertion Assertion) error {
	entries, err := e.GetLeaderboard(ctx, assertion.Challenge, 0)
	if err != nil {
		return &AssertionError{
			Type:     AssertLeaderboard,
			Expected: fmt.Sprintf("leaderboard of %s", assertion.Challenge),
			Actual:   err.Error(),
		}
	}
	got := make([]string, len(entries))
	for i, en := range entries {
		got[i] = en.UserID
	}
	order := assertion.Order
	if order == nil {
		order = []string{}
	}
	if !slices.Equal(got, order) {
		return &AssertionError{
			Type:     AssertLeaderboard,
			Expected: fmt.Sprintf("%v", order),
			Actual:   fmt.Sprintf("%v", got),
		}
	}
	return nil
}

// assertNotificationCount counts delivered notifications of one type,
// optionally restricted to a challenge and a user.
func assertNotificationCount(delivered []Delivered, assertion Assertion) error {
	count := 0
	for _, d := range delivered {
		if d.Type != assertion.Notification {
			continue
		}
		if assertion.Challenge != "" && d.ChallengeID != assertion.Challenge {
			continue
		}
		if assertion.User != "" && d.UserID != assertion.User {
			continue
		}
		count++
	}
	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertNotificationCount,
			Expected: fmt.Sprintf("%d %s notifications", assertion.Count, assertion.Notification),
			Actual:   fmt.Sprintf("%d", count),
		}
	}
	return nil
}

// matchArgs checks if actual args contain all expected args (subset match).
// Extra keys in actual are ignored.
func matchArgs(actual, expected map[string]any) bool {
	if len(expected) == 0 {
		return true
	}
	a, err := normalize(actual)
	if err != nil {
		return false
	}
	e, err := normalize(expected)
	if err != nil {
		return false
	}
	return matchSubset(a, e)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Ctx    context.Context
	Store  *store.Store
	Engine *engine.Engine
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides store and engine access for state assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertNotificationCount:
			err = assertNotificationCount(result.Notifications, assertion)
		case AssertFinalState:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: final_state requires store context", i)
			} else {
				err = assertFinalState(actx.Ctx, actx.Store, assertion)
			}
		case AssertLeaderboard:
			if actx == nil || actx.Engine == nil {
				err = fmt.Errorf("assertion[%d]: leaderboard requires engine context", i)
			} else {
				err = assertLeaderboard(actx.Ctx, actx.Engine, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
