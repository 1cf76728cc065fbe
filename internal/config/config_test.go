package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/classweave/internal/resolve"
)

const fullConfig = `
modules:
  - name: app
    output: build/classes/main
    test_output: build/classes/test
    classpath: [lib/ebean.jar]
    depends_on: [domain]
  - name: domain
    output: /abs/domain/classes
classpath: [lib/shared.jar]
passes:
  - name: entity
    kind: marker
    extends: [io.ebean.Model]
  - name: querybean
    kind: command
    command: [./enhance.sh, --query]
workers: 8
sentinel: com.acme.BaseModel
companions: ["{pkg}/query/Q{short}"]
manifest:
  names: [META-INF/ebean.mf]
  search: [src]
history: .classweave/history.db
debug: 2
`

func TestParse_FullConfig(t *testing.T) {
	c, err := Parse("/proj/classweave.yaml", []byte(fullConfig))
	require.NoError(t, err)

	assert.Equal(t, "/proj", c.Dir)
	require.Len(t, c.Modules, 2)
	app := c.Modules[0]
	assert.Equal(t, filepath.FromSlash("/proj/build/classes/main"), app.Output)
	assert.Equal(t, filepath.FromSlash("/proj/build/classes/test"), app.TestOutput)
	assert.Equal(t, []string{filepath.FromSlash("/proj/lib/ebean.jar")}, app.Classpath)
	assert.Equal(t, []string{"domain"}, app.DependsOn)
	assert.Equal(t, "/abs/domain/classes", c.Modules[1].Output)
	assert.Equal(t, []string{filepath.FromSlash("/proj/lib/shared.jar")}, c.Classpath)

	require.Len(t, c.Passes, 2)
	assert.Equal(t, DefaultMarker("entity"), c.Passes[0].Marker)
	assert.Equal(t, []string{"./enhance.sh", "--query"}, c.Passes[1].Command)

	assert.Equal(t, 8, c.Workers)
	assert.Equal(t, "com.acme.BaseModel", c.Sentinel)
	assert.Equal(t, []string{"{pkg}/query/Q{short}"}, c.Companions)
	assert.Equal(t, []string{"META-INF/ebean.mf"}, c.Manifest.Names)
	assert.Equal(t, []string{filepath.FromSlash("/proj/src")}, c.Manifest.Search)
	assert.Equal(t, filepath.FromSlash("/proj/.classweave/history.db"), c.History)
	assert.Equal(t, 2, c.Debug)
}

func TestParse_EmptyFileUsesDefaults(t *testing.T) {
	c, err := Parse("/proj/classweave.yaml", nil)
	require.NoError(t, err)

	assert.Equal(t, runtime.GOMAXPROCS(0), c.Workers)
	assert.Equal(t, string(resolve.DefaultSentinel), c.Sentinel)
	assert.Equal(t, []string{"{pkg}/query/Q{short}", "{pkg}/query/assoc/QAssoc{short}"}, c.Companions)
	assert.Contains(t, c.Manifest.Names, "META-INF/ebean.mf")
	assert.Empty(t, c.History)
	assert.Equal(t, 0, c.Debug)
}

func TestParse_SchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"unknown key", "workerz: 3\n", "workerz"},
		{"workers too high", "workers: 100\n", "workers"},
		{"debug out of range", "debug: 7\n", "debug"},
		{"module without output", "modules:\n  - name: app\n", "output"},
		{"bad pass kind", "passes:\n  - name: x\n    kind: magic\n", "passes"},
		{"command pass without command", "passes:\n  - name: x\n    kind: command\n", "passes"},
		{"template without short", "companions: [\"{pkg}/Q\"]\n", "companions"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse("/proj/classweave.yaml", []byte(tt.yaml))
			require.Error(t, err)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, "/proj/classweave.yaml", verr.File)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParse_MalformedYAML(t *testing.T) {
	_, err := Parse("/proj/classweave.yaml", []byte("modules: [\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse")
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultFile)
	require.NoError(t, os.WriteFile(path, []byte("workers: 3\n"), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, c.Workers)
	assert.Equal(t, dir, c.Dir)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadOrDefault(t *testing.T) {
	missing := filepath.Join(t.TempDir(), DefaultFile)

	c, err := LoadOrDefault(missing, false)
	require.NoError(t, err)
	assert.Equal(t, string(resolve.DefaultSentinel), c.Sentinel)

	_, err = LoadOrDefault(missing, true)
	assert.Error(t, err)
}

func TestParseDebug(t *testing.T) {
	tests := map[string]int{
		"0":    0,
		"1":    1,
		" 3 ":  3,
		"4":    0,
		"-1":   0,
		"true": 0,
		"":     0,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseDebug(in), "input %q", in)
	}
}

func TestApplyEnv(t *testing.T) {
	c := Default()
	c.Debug = 2

	c.ApplyEnv(func(string) string { return "" })
	assert.Equal(t, 2, c.Debug)

	c.ApplyEnv(func(k string) string {
		if k == DebugEnv {
			return "1"
		}
		return ""
	})
	assert.Equal(t, 1, c.Debug)

	c.ApplyEnv(func(string) string { return "loud" })
	assert.Equal(t, 0, c.Debug)
}
