package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// enhanceTwice records two runs of the same class: enhanced, then unchanged.
func enhanceTwice(t *testing.T) project {
	t.Helper()
	p := newProject(t, projectConfig)
	p.class(t, "com.x.Foo")
	for i := 0; i < 2; i++ {
		_, _, err := executeRoot(t, "--config", p.config, "enhance")
		require.NoError(t, err)
	}
	return p
}

func listRuns(t *testing.T, p project) []RunSummary {
	t.Helper()
	out, _, err := executeRoot(t, "--config", p.config, "--format", "json", "history")
	require.NoError(t, err)

	var resp struct {
		Status string       `json:"status"`
		Data   []RunSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	return resp.Data
}

func TestHistoryCommand_ListRuns(t *testing.T) {
	p := enhanceTwice(t)

	runs := listRuns(t, p)
	require.Len(t, runs, 2)
	var enhanced, unchanged int
	for _, r := range runs {
		assert.Equal(t, "completed", r.Status)
		assert.Equal(t, []string{p.out}, r.Roots)
		enhanced += r.Enhanced
		unchanged += r.Unchanged
	}
	assert.Equal(t, 1, enhanced)
	assert.Equal(t, 1, unchanged)

	out, _, err := executeRoot(t, "--config", p.config, "history", "--limit", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "RUN")
	assert.Contains(t, out, "ENHANCED")
	assert.Contains(t, out, runs[0].ID)
	assert.NotContains(t, out, runs[1].ID)
}

func TestHistoryCommand_RunDetail(t *testing.T) {
	p := enhanceTwice(t)
	runs := listRuns(t, p)
	require.Len(t, runs, 2)

	out, _, err := executeRoot(t, "--config", p.config, "--format", "json", "history", "--run", runs[0].ID)
	require.NoError(t, err)

	var resp struct {
		Data RunDetail `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, runs[0].ID, resp.Data.Run.ID)
	require.Len(t, resp.Data.Outcomes, 1)
	assert.Equal(t, "com.x.Foo", resp.Data.Outcomes[0].Class)
	assert.NotEmpty(t, resp.Data.Outcomes[0].Digest)

	out, _, err = executeRoot(t, "--config", p.config, "history", "--run", runs[0].ID)
	require.NoError(t, err)
	assert.Contains(t, out, "Run "+runs[0].ID+" (completed")
	assert.Contains(t, out, "com.x.Foo")
}

func TestHistoryCommand_ClassHistory(t *testing.T) {
	p := enhanceTwice(t)

	out, _, err := executeRoot(t, "--config", p.config, "--format", "json", "history", "--class", "com/x/Foo")
	require.NoError(t, err)

	var resp struct {
		Data []OutcomeSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "enhanced", resp.Data[0].Status)
	assert.True(t, resp.Data[0].Changed)
	assert.Equal(t, []string{"stamp"}, resp.Data[0].Passes)
	assert.Equal(t, "unchanged", resp.Data[1].Status)
	assert.False(t, resp.Data[1].Changed)
	assert.Equal(t, resp.Data[0].Digest, resp.Data[1].Digest)

	out, _, err = executeRoot(t, "--config", p.config, "history", "--class", "com.x.Unknown")
	require.NoError(t, err)
	assert.Contains(t, out, "No recorded outcomes for com.x.Unknown.")
}

func TestHistoryCommand_MissingRun(t *testing.T) {
	p := enhanceTwice(t)

	_, _, err := executeRoot(t, "--config", p.config, "history", "--run", "no-such-run")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestHistoryCommand_MissingDatabase(t *testing.T) {
	p := newProject(t, projectConfig)

	_, _, err := executeRoot(t, "--config", p.config, "history")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "history database not found")

	_, _, err = executeRoot(t, "history", "--db", filepath.Join(p.dir, "other.db"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "history database not found")
}

func TestHistoryCommand_NoDatabaseConfigured(t *testing.T) {
	p := newProject(t, "modules:\n  - name: app\n    output: out\n")

	_, _, err := executeRoot(t, "--config", p.config, "history")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no history database")
}

func TestHistoryCommand_RunAndClassExclusive(t *testing.T) {
	_, _, err := executeRoot(t, "history", "--run", "a", "--class", "b")
	require.Error(t, err)
}
