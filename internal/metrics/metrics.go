// Package metrics holds the Prometheus collectors of the challenge engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the collector set. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	submissions       *prometheus.CounterVec
	submitDuration    *prometheus.HistogramVec
	achievements      *prometheus.CounterVec
	errors            *prometheus.CounterVec
	notifications     *prometheus.CounterVec
	statusTransitions *prometheus.CounterVec
	joins             prometheus.Counter
}

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		submissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stride_submissions_total",
				Help: "Progress submissions by challenge kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		submitDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stride_submit_duration_seconds",
				Help:    "Time spent applying a progress submission, store write included",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		achievements: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stride_achievements_unlocked_total",
				Help: "Reward tiers unlocked by template",
			},
			[]string{"template"},
		),
		errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stride_errors_total",
				Help: "Domain errors returned by engine operations",
			},
			[]string{"op", "kind"},
		),
		notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stride_notifications_total",
				Help: "Post-commit notifications by type and result",
			},
			[]string{"type", "result"},
		),
		statusTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stride_status_transitions_total",
				Help: "Challenge status transitions by target status",
			},
			[]string{"to"},
		),
		joins: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stride_joins_total",
			Help: "Participants enrolled, creators included",
		}),
	}
	m.registry.MustRegister(
		m.submissions,
		m.submitDuration,
		m.achievements,
		m.errors,
		m.notifications,
		m.statusTransitions,
		m.joins,
		prometheus.NewGoCollector(),
	)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Submission records one submission outcome ("ok" or an error kind).
func (m *Metrics) Submission(kind, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(kind, outcome).Inc()
	if outcome == "ok" {
		m.submitDuration.WithLabelValues(kind).Observe(took.Seconds())
	}
}

// Achievements counts n unlocked tiers for templateID.
func (m *Metrics) Achievements(templateID string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.achievements.WithLabelValues(templateID).Add(float64(n))
}

// Error counts a domain error returned by op.
func (m *Metrics) Error(op, kind string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(op, kind).Inc()
}

// Notification counts a delivered ("sent") or failed ("failed") notification.
func (m *Metrics) Notification(typ, result string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(typ, result).Inc()
}

// Transition counts a status change.
func (m *Metrics) Transition(to string) {
	if m == nil {
		return
	}
	m.statusTransitions.WithLabelValues(to).Inc()
}

// Join counts an enrollment.
func (m *Metrics) Join() {
	if m == nil {
		return
	}
	m.joins.Inc()
}
