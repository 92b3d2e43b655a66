package progress

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/roach88/stride/internal/challenge"
)

// ValidateEvent checks ev against tpl:
//   - the event carries at least one value
//   - every key is declared in tpl.MetricKeys
//   - every value is finite and non-negative
//   - the kind's required keys are present
//   - consistency events have a positive dailyTarget
func ValidateEvent(tpl challenge.Template, ev challenge.Event) error {
	if len(ev.Values) == 0 {
		return challenge.Validation("event carries no metric values")
	}

	var unknown []string
	for k, v := range ev.Values {
		if !tpl.HasMetric(k) {
			unknown = append(unknown, k)
			continue
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return challenge.Validation(fmt.Sprintf("metric %q is not a finite number", k))
		}
		if v < 0 {
			return challenge.Validation(fmt.Sprintf("metric %q must not be negative", k)).
				With("value", fmt.Sprint(v))
		}
	}
	if len(unknown) > 0 {
		slices.Sort(unknown)
		return challenge.Validation("event metric keys are not declared by the template").
			With("keys", strings.Join(unknown, ",")).
			With("template", tpl.ID)
	}

	for _, k := range tpl.Kind.RequiredKeys() {
		if _, ok := ev.Values[k]; !ok {
			return challenge.Validation(fmt.Sprintf("%s events require metric %q", tpl.Kind, k))
		}
	}
	if tpl.Kind == challenge.KindConsistency && ev.Values[challenge.KeyDailyTarget] <= 0 {
		return challenge.Validation("dailyTarget must be positive")
	}
	return nil
}
