// Package progress turns raw metric events into updated metrics and a
// normalized progress value.
//
// Update is the single entry point. It is pure: the current metrics are never
// mutated, and the same inputs always produce the same outputs. Each
// challenge kind has exactly one handler, selected by an exhaustive switch.
package progress

import (
	"fmt"
	"math"

	"github.com/roach88/stride/internal/challenge"
)

// Update applies ev to current under the rules of tpl and returns the new
// metrics and progress. The event is validated first; on error current is
// returned unchanged.
func Update(tpl challenge.Template, current challenge.Metrics, ev challenge.Event) (challenge.Metrics, float64, error) {
	if err := ValidateEvent(tpl, ev); err != nil {
		return current, 0, err
	}

	next := current.Clone()
	var p float64
	switch tpl.Kind {
	case challenge.KindStreak:
		p = updateStreak(tpl, &next, ev)
	case challenge.KindAccumulative, challenge.KindCompetitive:
		p = updateTotals(tpl, &next, ev)
	case challenge.KindConsistency:
		p = updateConsistency(&next, ev)
	case challenge.KindGoalBased:
		p = updateGoal(tpl, &next, ev)
	default:
		panic(fmt.Sprintf("progress: unhandled challenge kind %v", tpl.Kind))
	}
	if tpl.Kind.Monotonic() {
		p = max(p, Current(tpl, current))
	}
	return next, p, nil
}

// Current recomputes progress from stored metrics without applying an event.
func Current(tpl challenge.Template, m challenge.Metrics) float64 {
	switch tpl.Kind {
	case challenge.KindStreak:
		return percent(float64(m.CurrentStreak), float64(tpl.DurationDays))
	case challenge.KindAccumulative, challenge.KindCompetitive:
		total := sum(tpl, m.Totals)
		if !tpl.Kind.Percentage() {
			return total
		}
		return percent(total, tpl.Target)
	case challenge.KindConsistency:
		return Clamp(m.PeakRate * 100)
	case challenge.KindGoalBased:
		return percent(float64(m.CompletedSessions), tpl.Target)
	default:
		panic(fmt.Sprintf("progress: unhandled challenge kind %v", tpl.Kind))
	}
}

func updateStreak(tpl challenge.Template, m *challenge.Metrics, ev challenge.Event) float64 {
	if truthy(ev.Values[challenge.KeyCompletedToday]) {
		m.CurrentStreak++
		m.LongestStreak = max(m.LongestStreak, m.CurrentStreak)
	} else {
		m.CurrentStreak = 0
	}
	return Current(tpl, *m)
}

// updateTotals serves accumulative and competitive kinds. They share the
// accumulation and differ only in how Current normalizes the sum.
func updateTotals(tpl challenge.Template, m *challenge.Metrics, ev challenge.Event) float64 {
	accumulate(tpl, m, ev)
	return Current(tpl, *m)
}

// updateConsistency appends the day's rate and reports the highest running
// average seen so far, which keeps consistency progress non-decreasing.
func updateConsistency(m *challenge.Metrics, ev challenge.Event) float64 {
	target := ev.Values[challenge.KeyDailyTarget]
	actual := ev.Values[challenge.KeyDailyActual]
	m.DailyRates = append(m.DailyRates, min(actual/target, 1))

	avg := 0.0
	for _, r := range m.DailyRates {
		avg += r
	}
	avg /= float64(len(m.DailyRates))
	m.PeakRate = max(m.PeakRate, avg)
	return Clamp(m.PeakRate * 100)
}

func updateGoal(tpl challenge.Template, m *challenge.Metrics, ev challenge.Event) float64 {
	if truthy(ev.Values[challenge.KeyCompleted]) {
		m.CompletedSessions++
	}
	return Current(tpl, *m)
}

// accumulate adds every event value into Totals.
func accumulate(tpl challenge.Template, m *challenge.Metrics, ev challenge.Event) {
	if m.Totals == nil {
		m.Totals = make(map[string]float64, len(tpl.MetricKeys))
	}
	for _, k := range tpl.MetricKeys {
		if v, ok := ev.Values[k]; ok {
			m.Totals[k] += v
		}
	}
}

// sum adds totals in template key order so float results are reproducible.
func sum(tpl challenge.Template, totals map[string]float64) float64 {
	var s float64
	for _, k := range tpl.MetricKeys {
		s += totals[k]
	}
	return s
}

func percent(value, target float64) float64 {
	if target <= 0 {
		return 0
	}
	return Clamp(min(value/target, 1) * 100)
}

func truthy(v float64) bool {
	return v != 0
}

// Clamp bounds a percentage to [0, 100].
func Clamp(p float64) float64 {
	return math.Min(math.Max(p, 0), 100)
}

// Round rounds progress to the nearest integer, half away from zero.
// Only presentation code should call it; stored progress stays float64.
func Round(p float64) int {
	return int(math.Round(p))
}
