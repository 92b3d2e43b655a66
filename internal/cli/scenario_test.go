package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scenarioDir = "../harness/testdata/scenarios"

func runScenarioCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"scenario"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestScenarioCommand_Testdata(t *testing.T) {
	out, err := runScenarioCmd(t, scenarioDir)
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ steps-week-solo")
	assert.Contains(t, out, "Scenario Summary: 5 passed, 0 failed, 5 total")
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestScenarioCommand_Filter(t *testing.T) {
	out, err := runScenarioCmd(t, scenarioDir, "--filter", "team*")
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ team-mean")
	assert.Contains(t, out, "1 passed, 0 failed, 1 total")
}

func TestScenarioCommand_JSON(t *testing.T) {
	out, err := runScenarioCmd(t, scenarioDir, "--format", "json", "--filter", "tie*")
	require.NoError(t, err)

	var resp struct {
		Status string          `json:"status"`
		Data   ScenarioSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, resp.Data.Passed)
	require.Len(t, resp.Data.Scenarios, 1)
	assert.Equal(t, "tie-break", resp.Data.Scenarios[0].Name)
}

func TestScenarioCommand_UpdateWritesGolden(t *testing.T) {
	golden := t.TempDir()
	out, err := runScenarioCmd(t, scenarioDir, "--golden", golden, "--update", "--filter", "streak*")
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ streak-reset (golden updated)")

	written, err := os.ReadFile(filepath.Join(golden, "streak-reset.golden"))
	require.NoError(t, err)
	want, err := os.ReadFile("../harness/testdata/golden/streak-reset.golden")
	require.NoError(t, err)
	assert.Equal(t, string(want), string(written))
}

func TestScenarioCommand_GoldenMismatch(t *testing.T) {
	golden := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(golden, "tie-break.golden"), []byte("stale\n"), 0644))

	out, err := runScenarioCmd(t, scenarioDir, "--golden", golden, "--filter", "tie*")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ tie-break")
	assert.Contains(t, out, "golden file mismatch")
}

func TestScenarioCommand_FailingScenario(t *testing.T) {
	dir := t.TempDir()
	scenario := `name: wrong-expectation
description: join on an unknown challenge is reported as success
flow:
  - invoke: join
    args:
      challenge: nope
      user: alice
    expect:
      case: ok
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wrong.yaml"), []byte(scenario), 0644))

	out, err := runScenarioCmd(t, dir, "--golden", t.TempDir())
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ wrong-expectation")
	assert.Contains(t, out, "0 passed, 1 failed, 1 total")
}

func TestScenarioCommand_MissingDir(t *testing.T) {
	_, err := runScenarioCmd(t, filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestScenarioCommand_Empty(t *testing.T) {
	out, err := runScenarioCmd(t, t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}
