package harness

import (
	"bytes"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
)

// Render produces the deterministic text form of a scenario run that golden
// files are compared against. Timestamps come from the manual clock, so the
// output is stable across runs.
//
// Format:
//
//	scenario: <name>
//	trace:
//	  [<seq>] <time> <invoke> <k=v ...> => <case> <summary or message>
//	notifications:
//	  achievement <challenge> <user> <tier>
//	  rank_change <challenge> <user> <old>-><new>
func Render(name string, result *Result) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "scenario: %s\n", name)
	buf.WriteString("trace:\n")
	for _, event := range result.Trace {
		fmt.Fprintf(&buf, "  %s\n", formatEvent(event))
	}

	buf.WriteString("notifications:\n")
	if len(result.Notifications) == 0 {
		buf.WriteString("  (none)\n")
	}
	for _, d := range result.Notifications {
		switch d.Type {
		case "achievement":
			fmt.Fprintf(&buf, "  achievement %s %s %s\n", d.ChallengeID, d.UserID, d.Tier)
		case "rank_change":
			fmt.Fprintf(&buf, "  rank_change %s %s %d->%d\n", d.ChallengeID, d.UserID, d.OldRank, d.NewRank)
		default:
			fmt.Fprintf(&buf, "  %s %s %s\n", d.Type, d.ChallengeID, d.UserID)
		}
	}
	return buf.Bytes()
}

// formatEvent renders one trace line.
func formatEvent(event TraceEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%d] %s %s", event.Seq, event.At.UTC().Format(time.RFC3339), event.Invoke)
	if a := formatArgs(event.Args); a != "" {
		b.WriteString(" " + a)
	}
	b.WriteString(" => " + event.Case)
	switch {
	case event.Case != CaseOK && event.Message != "":
		b.WriteString(" " + event.Message)
	case event.Summary != "":
		b.WriteString(" " + event.Summary)
	}
	return b.String()
}

func formatArgs(m map[string]any) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + formatValue(m[k])
	}
	return strings.Join(parts, " ")
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + ":" + formatValue(x[k])
		}
		return "{" + strings.Join(parts, ",") + "}"
	case []any:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = formatValue(e)
		}
		return "[" + strings.Join(parts, ",") + "]"
	default:
		return fmt.Sprintf("%v", x)
	}
}

// RunWithGolden executes a scenario and compares the rendered run against a
// golden file stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares an already executed result against its golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, Render(scenarioName, result))
}
