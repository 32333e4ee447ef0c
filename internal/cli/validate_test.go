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

func scenarioPath(name string) string {
	return filepath.Join("..", "harness", "testdata", "scenarios", name)
}

func TestValidateValidScenario(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewValidateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{scenarioPath("sync-renders.yaml")})

	err := cmd.Execute()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "ok (sync-renders)")
}

func TestValidateValidScenarioJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewValidateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{scenarioPath("sync-renders.yaml")})

	err := cmd.Execute()
	require.NoError(t, err)

	var results []validateResult
	require.NoError(t, json.Unmarshal(buf.Bytes(), &results))
	require.Len(t, results, 1)
	assert.True(t, results[0].Valid)
	assert.Equal(t, "sync-renders", results[0].Name)
}

func TestValidateMultipleScenarios(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewValidateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{
		scenarioPath("sync-renders.yaml"),
		scenarioPath("batched-dispatches.yaml"),
		scenarioPath("async-root.yaml"),
	})

	err := cmd.Execute()
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "sync-renders")
	assert.Contains(t, output, "batched-dispatches")
	assert.Contains(t, output, "async-root")
}

func TestValidateNonExistentFile(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewValidateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"/nonexistent/scenario.yaml"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, buf.String(), "invalid")
}

func TestValidateInvalidScenario(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "bad.yaml")
	// A step referencing an undeclared container must be rejected.
	scenario := `name: bad
roots:
  - container: app
    mode: legacy
steps:
  - render: {container: other, value: x}
`
	require.NoError(t, os.WriteFile(path, []byte(scenario), 0o644))

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewValidateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{path})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, buf.String(), "invalid")
	assert.Contains(t, buf.String(), "other")
}

func TestValidateMixedResultsJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewValidateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{
		scenarioPath("sync-renders.yaml"),
		"/nonexistent/scenario.yaml",
	})

	err := cmd.Execute()
	require.Error(t, err)

	var results []validateResult
	require.NoError(t, json.Unmarshal(buf.Bytes(), &results))
	require.Len(t, results, 2)
	assert.True(t, results[0].Valid)
	assert.False(t, results[1].Valid)
}
