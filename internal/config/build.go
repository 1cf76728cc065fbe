package config

import (
	"fmt"

	"github.com/roach88/classweave/internal/artifact"
	"github.com/roach88/classweave/internal/classname"
	"github.com/roach88/classweave/internal/pipeline"
	"github.com/roach88/classweave/internal/resolve"
)

// BuildPipeline creates the configured passes in order.
func (c *Config) BuildPipeline() (*pipeline.Pipeline, error) {
	passes := make([]pipeline.Transformer, 0, len(c.Passes))
	for _, p := range c.Passes {
		t, err := c.buildPass(p)
		if err != nil {
			return nil, err
		}
		passes = append(passes, t)
	}
	return pipeline.New(passes...)
}

func (c *Config) buildPass(p Pass) (pipeline.Transformer, error) {
	var t pipeline.Transformer
	switch p.Kind {
	case KindMarker:
		marker := p.Marker
		if marker == "" {
			marker = DefaultMarker(p.Name)
		}
		m, err := pipeline.NewMarker(p.Name, []byte(marker))
		if err != nil {
			return nil, err
		}
		t = m
	case KindCommand:
		if len(p.Command) == 0 {
			return nil, fmt.Errorf("pass %s: command is required", p.Name)
		}
		t = &pipeline.Command{PassName: p.Name, Argv: p.Command, Dir: c.Dir}
	default:
		return nil, fmt.Errorf("pass %s: unknown kind %q", p.Name, p.Kind)
	}
	if len(p.Extends) > 0 {
		types := make([]classname.Name, 0, len(p.Extends))
		for _, e := range p.Extends {
			types = append(types, classname.Parse(e))
		}
		t = &pipeline.Gated{Inner: t, Types: types}
	}
	return t, nil
}

// BuildExpander creates the companion expander.
func (c *Config) BuildExpander() (*artifact.Expander, error) {
	templates := make([]artifact.Template, 0, len(c.Companions))
	for _, s := range c.Companions {
		templates = append(templates, artifact.Template(s))
	}
	if len(templates) == 0 {
		templates = nil
	}
	return artifact.NewExpander(templates)
}

// BuildClasspath creates the fallback over the configured modules and
// global classpath entries.
func (c *Config) BuildClasspath() *resolve.Classpath {
	modules := make([]resolve.Module, 0, len(c.Modules))
	for _, m := range c.Modules {
		modules = append(modules, resolve.Module{
			Name:       m.Name,
			Output:     m.Output,
			TestOutput: m.TestOutput,
			Classpath:  m.Classpath,
			DependsOn:  m.DependsOn,
		})
	}
	return resolve.NewClasspath(modules, c.Classpath...)
}

// Roots returns every module output directory, main before test.
func (c *Config) Roots() []string {
	var roots []string
	for _, m := range c.Modules {
		if m.Output != "" {
			roots = append(roots, m.Output)
		}
		if m.TestOutput != "" {
			roots = append(roots, m.TestOutput)
		}
	}
	return roots
}

// Module returns the module with the given name.
func (c *Config) Module(name string) (Module, bool) {
	for _, m := range c.Modules {
		if m.Name == name {
			return m, true
		}
	}
	return Module{}, false
}
