// Package config loads classweave.yaml.
//
// The file is decoded with yaml.v3 and validated against an embedded CUE
// schema before it is used, so a typo in a key is reported instead of being
// silently ignored. Relative paths in the file are resolved against the
// file's directory.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"

	"github.com/roach88/classweave/internal/artifact"
	"github.com/roach88/classweave/internal/manifest"
	"github.com/roach88/classweave/internal/resolve"
)

//go:embed schema.cue
var schemaCUE string

// DefaultFile is the configuration file looked up in the working directory.
const DefaultFile = "classweave.yaml"

// DebugEnv overrides the debug level. An unparsable value means level 0.
const DebugEnv = "CLASSWEAVE_DEBUG"

// MaxDebug is the highest debug level.
const MaxDebug = 3

// Config is the parsed configuration.
type Config struct {
	Modules    []Module `yaml:"modules"`
	Classpath  []string `yaml:"classpath"`
	Passes     []Pass   `yaml:"passes"`
	Workers    int      `yaml:"workers"`
	Sentinel   string   `yaml:"sentinel"`
	Companions []string `yaml:"companions"`
	Manifest   Manifest `yaml:"manifest"`
	History    string   `yaml:"history"`
	Debug      int      `yaml:"debug"`

	// Dir is the directory relative paths were resolved against.
	Dir string `yaml:"-"`
}

// Module describes one compilation unit.
type Module struct {
	Name       string   `yaml:"name"`
	Output     string   `yaml:"output"`
	TestOutput string   `yaml:"test_output"`
	Classpath  []string `yaml:"classpath"`
	DependsOn  []string `yaml:"depends_on"`
}

// Pass describes one enhancement pass.
type Pass struct {
	Name    string   `yaml:"name"`
	Kind    string   `yaml:"kind"`
	Command []string `yaml:"command"`
	Marker  string   `yaml:"marker"`
	Extends []string `yaml:"extends"`
}

// Pass kinds.
const (
	KindMarker  = "marker"
	KindCommand = "command"
)

// Manifest configures manifest discovery.
type Manifest struct {
	Names  []string `yaml:"names"`
	Search []string `yaml:"search"`
}

// ValidationError reports a configuration that does not match the schema.
type ValidationError struct {
	File     string
	Problems []string
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 1 {
		return fmt.Sprintf("%s: %s", e.File, e.Problems[0])
	}
	return fmt.Sprintf("%s: %d problems:\n  %s", e.File, len(e.Problems), strings.Join(e.Problems, "\n  "))
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load reads and validates path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(abs, data)
}

// LoadOrDefault loads path, or returns Default when path does not exist and
// was not given explicitly.
func LoadOrDefault(path string, explicit bool) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) && !explicit {
		c := Default()
		dir, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		c.Dir = dir
		return c, nil
	}
	return Load(path)
}

// Parse validates data against the schema and decodes it. filename is used
// for error messages and as the base for relative paths.
func Parse(filename string, data []byte) (*Config, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filename, err)
	}
	if raw == nil {
		raw = map[string]any{}
	}
	if err := validate(filename, raw); err != nil {
		return nil, err
	}

	c := &Config{}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filename, err)
	}
	c.Dir = filepath.Dir(filename)
	c.applyDefaults()
	c.resolvePaths()
	return c, nil
}

func validate(filename string, raw any) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	v := ctx.Encode(raw)
	if err := v.Err(); err != nil {
		return &ValidationError{File: filename, Problems: []string{err.Error()}}
	}
	if err := def.Unify(v).Validate(cue.Concrete(true)); err != nil {
		var problems []string
		for _, e := range cueerrors.Errors(err) {
			problems = append(problems, strings.TrimPrefix(e.Error(), "#Config."))
		}
		if len(problems) == 0 {
			problems = []string{err.Error()}
		}
		return &ValidationError{File: filename, Problems: problems}
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Workers == 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
	if c.Sentinel == "" {
		c.Sentinel = string(resolve.DefaultSentinel)
	}
	if len(c.Companions) == 0 {
		for _, t := range artifact.DefaultTemplates {
			c.Companions = append(c.Companions, string(t))
		}
	}
	if len(c.Manifest.Names) == 0 {
		c.Manifest.Names = append([]string(nil), manifest.DefaultNames...)
	}
	for i := range c.Passes {
		if c.Passes[i].Kind == KindMarker && c.Passes[i].Marker == "" {
			c.Passes[i].Marker = DefaultMarker(c.Passes[i].Name)
		}
	}
}

func (c *Config) resolvePaths() {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(c.Dir, p)
	}
	for i := range c.Modules {
		m := &c.Modules[i]
		m.Output = abs(m.Output)
		m.TestOutput = abs(m.TestOutput)
		for j := range m.Classpath {
			m.Classpath[j] = abs(m.Classpath[j])
		}
	}
	for i := range c.Classpath {
		c.Classpath[i] = abs(c.Classpath[i])
	}
	for i := range c.Manifest.Search {
		c.Manifest.Search[i] = abs(c.Manifest.Search[i])
	}
	c.History = abs(c.History)
}

// ApplyEnv applies environment overrides using getenv.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v, ok := lookup(getenv, DebugEnv); ok {
		c.Debug = ParseDebug(v)
	}
}

func lookup(getenv func(string) string, key string) (string, bool) {
	v := getenv(key)
	return v, v != ""
}

// ParseDebug parses a debug level. Anything that is not an integer in
// [0, MaxDebug] yields 0.
func ParseDebug(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 || n > MaxDebug {
		return 0
	}
	return n
}

// DefaultMarker is the trailer a marker pass appends when none is configured.
func DefaultMarker(passName string) string {
	return "\x00classweave:" + passName
}
