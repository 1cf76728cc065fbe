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

const passingScenario = `
name: stamp_once
description: "A marker pass stamps a class"
classes:
  - name: com.x.Foo
passes:
  - name: stamp
    kind: marker
runs:
  - inputs: [com.x.Foo]
    expect:
      outcomes: { com.x.Foo: enhanced }
`

const failingScenario = `
name: wrong_outcome
description: "The expectation does not hold"
classes:
  - name: com.x.Foo
passes:
  - name: noop
    kind: noop
runs:
  - inputs: [com.x.Foo]
    expect:
      outcomes: { com.x.Foo: enhanced }
`

func writeScenario(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func executeTest(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewTestCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestTestCommandMissingArgs(t *testing.T) {
	_, err := executeTest(t, "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentScenariosDir(t *testing.T) {
	_, err := executeTest(t, "text", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scenarios directory not found")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommandEmptyScenariosDir(t *testing.T) {
	out, err := executeTest(t, "text", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found")
}

func TestTestCommandEmptyScenariosDirJSON(t *testing.T) {
	out, err := executeTest(t, "json", t.TempDir())
	require.NoError(t, err)

	var response CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &response))
	assert.Equal(t, "ok", response.Status)
}

func TestTestCommandPassingScenario(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "scenarios")
	writeScenario(t, dir, "stamp_once.yaml", passingScenario)

	out, err := executeTest(t, "text", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ stamp_once")
	assert.Contains(t, out, "Test Summary: 1 passed, 0 failed, 1 total")
}

func TestTestCommandFailingScenario(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "scenarios")
	writeScenario(t, dir, "wrong_outcome.yaml", failingScenario)

	out, err := executeTest(t, "text", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ wrong_outcome")
	assert.Contains(t, out, "outcome com.x.Foo: expected enhanced, got unchanged")
}

func TestTestCommandFailingScenarioJSON(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "scenarios")
	writeScenario(t, dir, "wrong_outcome.yaml", failingScenario)
	writeScenario(t, dir, "stamp_once.yaml", passingScenario)

	out, err := executeTest(t, "json", dir)
	require.Error(t, err)

	var response struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
		Error  *CLIError  `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &response))
	assert.Equal(t, "error", response.Status)
	assert.Equal(t, 2, response.Data.Total)
	assert.Equal(t, 1, response.Data.Passed)
	assert.Equal(t, 1, response.Data.Failed)
	require.NotNil(t, response.Error)
	assert.Equal(t, CodeTestFailed, response.Error.Code)
}

func TestTestCommandLoadError(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "scenarios")
	writeScenario(t, dir, "broken.yaml", "name: broken\nunknown_field: 1\n")

	out, err := executeTest(t, "text", dir)
	require.Error(t, err)
	assert.Contains(t, out, "✗ broken.yaml")
	assert.Contains(t, out, "failed to load scenario")
}

func TestTestCommandUpdateThenCompareGolden(t *testing.T) {
	base := t.TempDir()
	dir := filepath.Join(base, "scenarios")
	writeScenario(t, dir, "stamp_once.yaml", passingScenario)

	out, err := executeTest(t, "text", dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ stamp_once (golden updated)")

	goldenPath := filepath.Join(base, "golden", "stamp_once.golden")
	golden, err := os.ReadFile(goldenPath)
	require.NoError(t, err)
	assert.Contains(t, string(golden), `"scenario": "stamp_once"`)
	assert.Contains(t, string(golden), `"run_id": "test-run-1"`)

	// Unchanged behaviour matches the golden file.
	_, err = executeTest(t, "text", dir)
	require.NoError(t, err)

	// A tampered golden file is reported.
	require.NoError(t, os.WriteFile(goldenPath, []byte("{}\n"), 0644))
	out, err = executeTest(t, "text", dir)
	require.Error(t, err)
	assert.Contains(t, out, "Golden file mismatch")
}

func TestTestCommandCustomGoldenDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "scenarios")
	writeScenario(t, dir, "stamp_once.yaml", passingScenario)
	goldenDir := filepath.Join(t.TempDir(), "elsewhere")

	_, err := executeTest(t, "text", dir, "--update", "--golden", goldenDir)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(goldenDir, "stamp_once.golden"))
}

func TestTestCommandHarnessScenarios(t *testing.T) {
	out, err := executeTest(t, "text", filepath.Join("..", "harness", "testdata", "scenarios"))
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestTestHelpText(t *testing.T) {
	out, err := executeTest(t, "text", "--help")
	require.NoError(t, err)

	assert.Contains(t, out, "scenarios")
	assert.Contains(t, out, "--update")
	assert.Contains(t, out, "--filter")
	assert.Contains(t, out, "--golden")
	assert.Contains(t, out, "scenarios-dir")
}

func TestFindScenarioFiles(t *testing.T) {
	tmpDir := t.TempDir()

	// Create scenario files
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "test1.yaml"), []byte(""), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "test2.yml"), []byte(""), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "ignore.txt"), []byte(""), 0644))

	files, err := findScenarioFiles(tmpDir, "")
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestFindScenarioFilesWithFilter(t *testing.T) {
	tmpDir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "manifest-restricts.yaml"), []byte(""), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "manifest-union.yaml"), []byte(""), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "companion-noop.yaml"), []byte(""), 0644))

	files, err := findScenarioFiles(tmpDir, "manifest-*")
	require.NoError(t, err)
	assert.Len(t, files, 2)

	_, err = findScenarioFiles(tmpDir, "[")
	assert.Error(t, err)
}

func TestFindScenarioFilesSubdirectories(t *testing.T) {
	tmpDir := t.TempDir()
	subDir := filepath.Join(tmpDir, "subdir")
	require.NoError(t, os.MkdirAll(subDir, 0755))

	// Create scenario files in root and subdir
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "root.yaml"), []byte(""), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(subDir, "sub.yaml"), []byte(""), 0644))

	files, err := findScenarioFiles(tmpDir, "")
	require.NoError(t, err)
	assert.Len(t, files, 2)
}
