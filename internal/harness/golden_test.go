package harness

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Golden files live in testdata/golden. To regenerate them after an
// intentional change, run:
//
//	go test ./internal/harness -run TestRunWithGolden -update
func TestRunWithGolden_Testdata(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)

	for _, path := range paths {
		scenario, err := LoadScenario(path)
		require.NoError(t, err)

		t.Run(scenario.Name, func(t *testing.T) {
			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRender_NoNotifications(t *testing.T) {
	at := time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC)
	result := NewResult()
	result.Trace = []TraceEvent{
		{Seq: 1, At: at, Invoke: "sweep", Args: map[string]any{}, Case: CaseOK, Summary: "completed=0"},
		{Seq: 2, At: at, Invoke: "join", Args: map[string]any{"user": "bob", "challenge": "c-1"}, Case: "NOT_FOUND", Message: "challenge not found"},
	}

	want := "scenario: empty\n" +
		"trace:\n" +
		"  [1] 2025-03-03T08:00:00Z sweep => ok completed=0\n" +
		"  [2] 2025-03-03T08:00:00Z join challenge=c-1 user=bob => NOT_FOUND challenge not found\n" +
		"notifications:\n" +
		"  (none)\n"
	assert.Equal(t, want, string(Render("empty", result)))
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, "null"},
		{"x", "x"},
		{true, "true"},
		{7, "7"},
		{2.5, "2.5"},
		{70000.0, "70000"},
		{map[string]any{"b": 1, "a": false}, "{a:false,b:1}"},
		{[]any{"a", 1}, "[a,1]"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatValue(tt.in))
	}
}
