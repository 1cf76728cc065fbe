package harness

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/roach88/classweave/internal/artifact"
	"github.com/roach88/classweave/internal/classname"
	"github.com/roach88/classweave/internal/enhance"
	"github.com/roach88/classweave/internal/loader"
	"github.com/roach88/classweave/internal/pipeline"
	"github.com/roach88/classweave/internal/resolve"
	"github.com/roach88/classweave/internal/testutil"
)

// fixedStart is the timestamp of every harness run.
var fixedStart = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// Harness executes one scenario in its own work directory.
type Harness struct {
	scenario *Scenario
	work     string
	root     string
	lib      string
	ids      *testutil.FixedRunIDs
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh temporary directory that is removed
// afterwards. The returned error is reserved for problems building the
// scenario itself; expectation mismatches are reported in Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	work, err := os.MkdirTemp("", "classweave-scenario-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create work directory: %w", err)
	}
	defer os.RemoveAll(work)

	h := &Harness{
		scenario: scenario,
		work:     work,
		root:     filepath.Join(work, "classes"),
		lib:      filepath.Join(work, "lib"),
		ids:      testutil.NewFixedRunIDs(),
	}
	if err := h.materialize(); err != nil {
		return nil, fmt.Errorf("failed to write scenario files: %w", err)
	}

	result := NewResult()
	for i, step := range scenario.Runs {
		trace, errs, err := h.executeRun(i, step)
		if err != nil {
			return nil, fmt.Errorf("run %d: %w", i, err)
		}
		result.Runs = append(result.Runs, trace)
		for _, msg := range errs {
			result.AddError(msg)
		}
	}
	return result, nil
}

func (h *Harness) materialize() error {
	for _, c := range h.scenario.Classes {
		if err := writeClass(h.root, c); err != nil {
			return err
		}
	}
	for _, c := range h.scenario.Library {
		if err := writeClass(h.lib, c); err != nil {
			return err
		}
	}
	for _, f := range h.scenario.Files {
		if err := writeFile(filepath.Join(h.root, filepath.FromSlash(f.Path)), []byte(f.Content)); err != nil {
			return err
		}
	}
	for _, jar := range h.scenario.BrokenJars {
		if err := writeFile(filepath.Join(h.lib, jar), []byte("not a zip archive")); err != nil {
			return err
		}
	}
	return os.MkdirAll(h.lib, 0o755)
}

// classpath is the library directory followed by the broken jars.
func (h *Harness) classpath() []string {
	entries := []string{h.lib}
	for _, jar := range h.scenario.BrokenJars {
		entries = append(entries, filepath.Join(h.lib, jar))
	}
	return entries
}

func writeClass(root string, c ClassSpec) error {
	b := testutil.ClassFile{
		Name:       c.Name,
		Super:      c.Super,
		Interfaces: c.Interfaces,
		Interface:  c.Interface,
	}.Bytes()
	path := filepath.Join(root, filepath.FromSlash(classname.Parse(c.Name).RelativePath()))
	return writeFile(path, b)
}

func writeFile(path string, b []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

func (h *Harness) newRunner(diag enhance.Diagnostics) (*enhance.Runner, error) {
	p, err := buildPipeline(h.scenario.Passes)
	if err != nil {
		return nil, err
	}
	var templates []artifact.Template
	for _, t := range h.scenario.Companions {
		templates = append(templates, artifact.Template(t))
	}
	expander, err := artifact.NewExpander(templates)
	if err != nil {
		return nil, err
	}

	opts := []enhance.Option{
		enhance.WithExpander(expander),
		enhance.WithDiagnostics(diag),
		enhance.WithRunIDs(h.ids),
		enhance.WithWorkers(1),
		enhance.WithDebug(h.scenario.Debug),
		enhance.WithClock(func() time.Time { return fixedStart }),
		enhance.WithFallback(func() (resolve.Fallback, error) {
			return resolve.NewClasspath([]resolve.Module{
				{Name: "scenario", Output: h.root, Classpath: h.classpath()},
			}), nil
		}),
	}
	if h.scenario.Sentinel != "" {
		opts = append(opts, enhance.WithSentinel(classname.Parse(h.scenario.Sentinel)))
	}
	return enhance.New(p, opts...)
}

func (h *Harness) executeRun(index int, step RunStep) (RunTrace, []string, error) {
	diag := &enhance.DiagnosticLog{}
	runner, err := h.newRunner(diag)
	if err != nil {
		return RunTrace{}, nil, err
	}

	inputs := make([]artifact.CompiledArtifact, 0, len(step.Inputs))
	for _, in := range step.Inputs {
		a, err := artifact.New(h.root, classname.Parse(in).RelativePath())
		if err != nil {
			return RunTrace{}, nil, err
		}
		inputs = append(inputs, a)
	}

	before, err := h.snapshot()
	if err != nil {
		return RunTrace{}, nil, err
	}

	obs := enhance.NewCancelFlag(nil)
	if step.Cancel {
		obs.Cancel()
	}
	rep, runErr := runner.Run(context.Background(), inputs, obs)
	if runErr != nil && !enhance.IsSetupError(runErr) && !enhance.IsCancelled(runErr) {
		return RunTrace{}, nil, runErr
	}

	after, err := h.snapshot()
	if err != nil {
		return RunTrace{}, nil, err
	}

	trace := h.traceOf(rep, diag)
	var errs []string
	if step.Expect != nil {
		errs = evaluateRun(index, trace, step.Expect, before, after)
	}
	return trace, errs, nil
}

// snapshot returns the content of every class file under the output root,
// keyed by class name.
func (h *Harness) snapshot() (map[classname.Name][]byte, error) {
	out := make(map[classname.Name][]byte)
	err := filepath.WalkDir(h.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(h.root, path)
		if err != nil {
			return err
		}
		name := classname.FromRelativePath(filepath.ToSlash(rel))
		if name == "" {
			return nil
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		out[name] = b
		return nil
	})
	return out, err
}

func (h *Harness) traceOf(rep *enhance.Report, diag *enhance.DiagnosticLog) RunTrace {
	trace := RunTrace{
		RunID:        rep.RunID,
		Status:       string(rep.Status),
		Inputs:       rep.Inputs,
		Working:      rep.Working,
		Considered:   rep.Considered,
		Packages:     rep.Packages,
		Outcomes:     []OutcomeTrace{},
		Skipped:      rep.Skipped,
		FallbackHits: rep.FallbackHits,
		Diagnostics:  []string{},
	}
	for _, o := range rep.Outcomes {
		trace.Outcomes = append(trace.Outcomes, OutcomeTrace{
			Class:   o.Name.String(),
			Status:  string(o.Status),
			Passes:  o.Passes,
			Changed: o.After != "",
		})
	}
	for _, d := range diag.Entries() {
		msg := strings.ReplaceAll(d.Message, h.work, "$WORK")
		trace.Diagnostics = append(trace.Diagnostics, string(d.Severity)+": "+msg)
	}
	return trace
}

// buildPipeline turns pass specs into transformers.
func buildPipeline(specs []PassSpec) (*pipeline.Pipeline, error) {
	passes := make([]pipeline.Transformer, 0, len(specs))
	for _, s := range specs {
		var t pipeline.Transformer
		switch s.Kind {
		case PassMarker:
			marker := s.Marker
			if marker == "" {
				marker = s.Name
			}
			m, err := pipeline.NewMarker(s.Name, []byte(marker))
			if err != nil {
				return nil, err
			}
			t = m
		case PassNoop:
			t = pipeline.Func{PassName: s.Name, Fn: func(loader.ClassLoader, classname.Name, []byte) ([]byte, error) {
				return nil, nil
			}}
		case PassFail, PassPanic:
			t = faultPass(s)
		default:
			return nil, fmt.Errorf("pass %s: unknown kind %q", s.Name, s.Kind)
		}
		if len(s.Extends) > 0 {
			types := make([]classname.Name, 0, len(s.Extends))
			for _, e := range s.Extends {
				types = append(types, classname.Parse(e))
			}
			t = &pipeline.Gated{Inner: t, Types: types}
		}
		passes = append(passes, t)
	}
	return pipeline.New(passes...)
}

func faultPass(s PassSpec) pipeline.Transformer {
	targets := make(map[classname.Name]bool, len(s.Classes))
	for _, c := range s.Classes {
		targets[classname.Parse(c)] = true
	}
	kind := s.Kind
	return pipeline.Func{PassName: s.Name, Fn: func(_ loader.ClassLoader, name classname.Name, _ []byte) ([]byte, error) {
		if len(targets) > 0 && !targets[name] {
			return nil, nil
		}
		if kind == PassPanic {
			panic(fmt.Sprintf("%s exploded", name))
		}
		return nil, fmt.Errorf("%s rejected", name)
	}}
}
