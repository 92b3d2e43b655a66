package challenge

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"time"
)

// TeamRule selects how member progress rolls up into team progress.
type TeamRule string

const (
	// TeamRuleMean averages member progress; keeps teams on the 0–100 scale.
	TeamRuleMean TeamRule = "mean"
	// TeamRuleSum adds member progress.
	TeamRuleSum TeamRule = "sum"
)

// Valid reports whether r is a known rule. The empty rule means mean.
func (r TeamRule) Valid() bool {
	return r == "" || r == TeamRuleMean || r == TeamRuleSum
}

// RewardTier is a named progress threshold that unlocks an achievement.
type RewardTier struct {
	Name      string  `json:"name" yaml:"name"`
	Threshold float64 `json:"threshold" yaml:"threshold"`
	Points    int     `json:"points" yaml:"points"`
	Badge     string  `json:"badge" yaml:"badge"`
}

// Template is the immutable rule set of a challenge.
//
// Target means different things per kind: the summed metric total for
// accumulative, the session count for goal_based. Streak and consistency
// normalize against DurationDays; competitive ignores Target.
type Template struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Kind         Kind         `json:"kind"`
	DurationDays int          `json:"duration_days"`
	MetricKeys   []string     `json:"metric_keys"`
	Target       float64      `json:"target"`
	TeamSize     int          `json:"team_size,omitempty"` // 0 means uncapped
	TeamRule     TeamRule     `json:"team_rule,omitempty"`
	RewardTiers  []RewardTier `json:"reward_tiers"` // ascending threshold
}

// Duration returns the challenge window length.
func (t *Template) Duration() time.Duration {
	return time.Duration(t.DurationDays) * 24 * time.Hour
}

// HasMetric reports whether key is declared by the template.
func (t *Template) HasMetric(key string) bool {
	return slices.Contains(t.MetricKeys, key)
}

// Rule returns the effective team rule.
func (t *Template) Rule() TeamRule {
	if t.TeamRule == "" {
		return TeamRuleMean
	}
	return t.TeamRule
}

// Normalize sorts reward tiers by ascending threshold.
// Tiers with equal thresholds keep their declared order.
func (t *Template) Normalize() {
	slices.SortStableFunc(t.RewardTiers, func(a, b RewardTier) int {
		return cmp.Compare(a.Threshold, b.Threshold)
	})
}

// Validate checks structural rules for the template.
func (t *Template) Validate() error {
	fail := func(format string, args ...any) error {
		return Validation(fmt.Sprintf(format, args...)).With("template", t.ID)
	}

	if t.ID == "" {
		return Validation("template id is required")
	}
	if t.Name == "" {
		return fail("template name is required")
	}
	if !t.Kind.Valid() {
		return fail("template kind %d is not supported", int(t.Kind))
	}
	if t.DurationDays <= 0 {
		return fail("duration_days must be positive, got %d", t.DurationDays)
	}
	if len(t.MetricKeys) == 0 {
		return fail("metric_keys must not be empty")
	}
	seen := make(map[string]bool, len(t.MetricKeys))
	for _, k := range t.MetricKeys {
		if k == "" {
			return fail("metric_keys must not contain empty names")
		}
		if seen[k] {
			return fail("metric key %q declared twice", k)
		}
		seen[k] = true
	}
	for _, k := range t.Kind.RequiredKeys() {
		if !seen[k] {
			return fail("%s templates must declare metric key %q", t.Kind, k)
		}
	}
	switch t.Kind {
	case KindAccumulative, KindGoalBased:
		if !(t.Target > 0) || math.IsInf(t.Target, 0) {
			return fail("%s templates need a positive target", t.Kind)
		}
	}
	if t.TeamSize < 0 {
		return fail("team_size must not be negative")
	}
	if !t.TeamRule.Valid() {
		return fail("unknown team rule %q", t.TeamRule)
	}

	names := make(map[string]bool, len(t.RewardTiers))
	for i, tier := range t.RewardTiers {
		if tier.Name == "" {
			return fail("reward tier %d has no name", i)
		}
		if names[tier.Name] {
			return fail("reward tier %q declared twice", tier.Name)
		}
		names[tier.Name] = true
		if tier.Threshold < 0 || math.IsNaN(tier.Threshold) {
			return fail("reward tier %q has an invalid threshold", tier.Name)
		}
		if tier.Points < 0 {
			return fail("reward tier %q has negative points", tier.Name)
		}
	}
	return nil
}

// Clone returns a deep copy.
func (t Template) Clone() Template {
	t.MetricKeys = slices.Clone(t.MetricKeys)
	t.RewardTiers = slices.Clone(t.RewardTiers)
	return t
}
