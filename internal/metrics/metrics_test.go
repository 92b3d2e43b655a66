package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()
	m.Submission("accumulative", "ok", 3*time.Millisecond)
	m.Submission("accumulative", "ok", time.Millisecond)
	m.Submission("streak", "STATE_CONFLICT", 0)
	m.Achievements("steps-week", 2)
	m.Achievements("steps-week", 0)
	m.Error("join", "STATE_CONFLICT")
	m.Notification("achievement", "sent")
	m.Transition("completed")
	m.Join()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.submissions.WithLabelValues("accumulative", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.submissions.WithLabelValues("streak", "STATE_CONFLICT")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.achievements.WithLabelValues("steps-week")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.errors.WithLabelValues("join", "STATE_CONFLICT")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.notifications.WithLabelValues("achievement", "sent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.statusTransitions.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.joins))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Submission("streak", "ok", time.Second)
		m.Achievements("x", 1)
		m.Error("submit", "VALIDATION")
		m.Notification("rank", "failed")
		m.Transition("archived")
		m.Join()
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.Join()

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "stride_joins_total 1")
}
