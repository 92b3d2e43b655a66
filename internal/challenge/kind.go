package challenge

import (
	"fmt"
	"strings"
)

// Kind selects the aggregation algorithm of a template.
//
// Kind is a closed set. Code that switches on Kind must handle every value
// and treat anything else as corrupted state.
type Kind int

const (
	KindStreak Kind = iota + 1
	KindAccumulative
	KindCompetitive
	KindConsistency
	KindGoalBased
)

// Kinds lists every valid kind in declaration order.
var Kinds = []Kind{KindStreak, KindAccumulative, KindCompetitive, KindConsistency, KindGoalBased}

var kindNames = map[Kind]string{
	KindStreak:       "streak",
	KindAccumulative: "accumulative",
	KindCompetitive:  "competitive",
	KindConsistency:  "consistency",
	KindGoalBased:    "goal_based",
}

// String returns the wire name of the kind ("goal_based", ...).
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Valid reports whether k is one of the declared kinds.
func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// Percentage reports whether progress of this kind is clamped to [0, 100].
func (k Kind) Percentage() bool {
	return k != KindCompetitive
}

// Monotonic reports whether progress of this kind may never decrease.
func (k Kind) Monotonic() bool {
	switch k {
	case KindAccumulative, KindGoalBased, KindConsistency:
		return true
	default:
		return false
	}
}

// ParseKind converts a wire name into a Kind.
// Matching is case-insensitive and accepts "goal-based" for goal_based.
func ParseKind(s string) (Kind, error) {
	norm := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	for k, name := range kindNames {
		if name == norm {
			return k, nil
		}
	}
	return 0, Validation(fmt.Sprintf("unknown challenge kind %q", s))
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("marshal kind: invalid kind %d", int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Metric keys with kind-specific meaning.
const (
	// KeyCompletedToday is read by streak templates. Non-zero means true.
	KeyCompletedToday = "completedToday"
	// KeyCompleted is read by goal_based templates. Non-zero means true.
	KeyCompleted = "completed"
	// KeyDailyTarget and KeyDailyActual are read by consistency templates.
	KeyDailyTarget = "dailyTarget"
	KeyDailyActual = "dailyActual"
)

// RequiredKeys returns the metric keys an event of this kind must carry.
// Accumulative and competitive kinds have no fixed keys.
func (k Kind) RequiredKeys() []string {
	switch k {
	case KindStreak:
		return []string{KeyCompletedToday}
	case KindGoalBased:
		return []string{KeyCompleted}
	case KindConsistency:
		return []string{KeyDailyTarget, KeyDailyActual}
	default:
		return nil
	}
}
