package harness

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// Scenario defines a challenge scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Start is the initial clock reading (RFC3339). Defaults to testutil.Epoch.
	Start string `yaml:"start,omitempty"`

	// Users lists the known users. Empty allows every user id.
	Users []string `yaml:"users,omitempty"`

	// Flow contains the operations to run, in order.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the final trace and state.
	Assertions []Assertion `yaml:"assertions"`
}

// FlowStep is one engine operation.
type FlowStep struct {
	// Invoke is the operation name (see Ops).
	Invoke string `yaml:"invoke"`

	// After advances the clock by this duration before the step runs.
	After string `yaml:"after,omitempty"`

	// Args contains the operation arguments.
	Args map[string]any `yaml:"args"`

	// Expect validates the outcome. If nil the step must succeed.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected outcome of a step.
type ExpectClause struct {
	// Case is "ok" or the expected error kind.
	Case string `yaml:"case"`

	// Result is a subset of the JSON form of the return value.
	Result map[string]any `yaml:"result,omitempty"`
}

// Assertion validates the trace or final state.
type Assertion struct {
	Type string `yaml:"type"`

	// Invoke and Args select steps (trace_contains, trace_count).
	Invoke string         `yaml:"invoke,omitempty"`
	Args   map[string]any `yaml:"args,omitempty"`

	// Count is the expected number of matches (trace_count,
	// notification_count).
	Count int `yaml:"count,omitempty"`

	// Invokes is the expected order (trace_order).
	Invokes []string `yaml:"invokes,omitempty"`

	// Challenge and User select stored state (final_state, leaderboard,
	// notification_count).
	Challenge string `yaml:"challenge,omitempty"`
	User      string `yaml:"user,omitempty"`

	// Expect is a subset of the stored challenge or participant
	// (final_state).
	Expect map[string]any `yaml:"expect,omitempty"`

	// Order is the expected ranking by user id (leaderboard).
	Order []string `yaml:"order,omitempty"`

	// Notification is "achievement" or "rank_change" (notification_count).
	Notification string `yaml:"notification,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains     = "trace_contains"
	AssertTraceOrder        = "trace_order"
	AssertTraceCount        = "trace_count"
	AssertFinalState        = "final_state"
	AssertLeaderboard       = "leaderboard"
	AssertNotificationCount = "notification_count"
)

// Ops lists the supported flow operations.
var Ops = []string{"create", "join", "submit", "withdraw", "archive", "sweep", "leaderboard", "teams", "stats"}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(bytes.NewReader(data))
}

// ParseScenario parses and validates one scenario document.
func ParseScenario(r io.Reader) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Start != "" {
		if _, err := time.Parse(time.RFC3339, s.Start); err != nil {
			return fmt.Errorf("start: %w", err)
		}
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	for i, step := range s.Flow {
		if !slices.Contains(Ops, step.Invoke) {
			return fmt.Errorf("flow[%d]: unknown invoke %q (want one of %v)", i, step.Invoke, Ops)
		}
		if step.Args == nil {
			return fmt.Errorf("flow[%d]: args is required (use empty map if no args)", i)
		}
		if step.After != "" {
			d, err := time.ParseDuration(step.After)
			if err != nil {
				return fmt.Errorf("flow[%d].after: %w", i, err)
			}
			if d < 0 {
				return fmt.Errorf("flow[%d].after: must not be negative", i)
			}
		}
		if step.Expect != nil && step.Expect.Case == "" {
			return fmt.Errorf("flow[%d].expect: case is required", i)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Invoke == "" {
			return fmt.Errorf("assertions[%d]: invoke is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Invokes) == 0 {
			return fmt.Errorf("assertions[%d]: invokes list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Invoke == "" {
			return fmt.Errorf("assertions[%d]: invoke is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.Challenge == "" {
			return fmt.Errorf("assertions[%d]: challenge is required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	case AssertLeaderboard:
		if a.Challenge == "" {
			return fmt.Errorf("assertions[%d]: challenge is required for leaderboard", index)
		}
	case AssertNotificationCount:
		if a.Notification != "achievement" && a.Notification != "rank_change" {
			return fmt.Errorf("assertions[%d]: notification must be achievement or rank_change", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for notification_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
