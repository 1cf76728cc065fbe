package enhance

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"sort"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/classweave/internal/artifact"
	"github.com/roach88/classweave/internal/classname"
	"github.com/roach88/classweave/internal/loader"
	"github.com/roach88/classweave/internal/manifest"
	"github.com/roach88/classweave/internal/pipeline"
	"github.com/roach88/classweave/internal/resolve"
)

// MaxWorkers caps the worker pool.
const MaxWorkers = 64

// FallbackFactory builds the external byte source for one run. If the
// returned value implements io.Closer it is closed when the run ends.
// A nil Fallback means the fallback tier always misses.
type FallbackFactory func() (resolve.Fallback, error)

// ManifestLoader reads the package manifest for the given output roots.
type ManifestLoader func(roots []string) (*manifest.Manifest, error)

// DiscoverManifests loads manifests named names from every root and every
// file with one of those base names under searchDirs.
func DiscoverManifests(names, searchDirs []string) ManifestLoader {
	return func(roots []string) (*manifest.Manifest, error) {
		return manifest.Discover(roots, names, searchDirs)
	}
}

// Runner executes enhancement runs.
type Runner struct {
	pipeline  *pipeline.Pipeline
	expander  *artifact.Expander
	fallback  FallbackFactory
	manifests ManifestLoader
	sentinel  classname.Name
	parent    loader.Parent
	workers   int
	debug     int
	diag      Diagnostics
	recorder  Recorder
	ids       RunIDGenerator
	hook      StateHook
	now       func() time.Time

	roots *rootLocks
	files *fileLocks
}

// Option configures a Runner.
type Option func(*Runner)

// WithExpander sets the companion expander. Default: DefaultTemplates.
func WithExpander(e *artifact.Expander) Option {
	return func(r *Runner) { r.expander = e }
}

// WithFallback sets the factory for the external byte source.
func WithFallback(f FallbackFactory) Option {
	return func(r *Runner) { r.fallback = f }
}

// WithManifests sets how manifests are found.
// Default: DiscoverManifests(manifest.DefaultNames, nil).
func WithManifests(m ManifestLoader) Option {
	return func(r *Runner) { r.manifests = m }
}

// WithSentinel overrides resolve.DefaultSentinel.
func WithSentinel(name classname.Name) Option {
	return func(r *Runner) { r.sentinel = name }
}

// WithParent sets the class loader's parent. Default: platform classes.
func WithParent(p loader.Parent) Option {
	return func(r *Runner) { r.parent = p }
}

// WithWorkers sets the worker pool size, clamped to [1, MaxWorkers].
// Default: GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(r *Runner) { r.workers = n }
}

// WithDebug sets the diagnostic verbosity (0..3).
//
//	0: start, enhanced, failure and summary lines
//	1: also unchanged classes and classes outside the manifest
//	2: also the resolution tier of every primary class
//	3: also every state transition
func WithDebug(level int) Option {
	return func(r *Runner) { r.debug = level }
}

// WithDiagnostics sets the diagnostics sink. Default: SlogDiagnostics.
func WithDiagnostics(d Diagnostics) Option {
	return func(r *Runner) { r.diag = d }
}

// WithRecorder persists every finished run.
func WithRecorder(rec Recorder) Option {
	return func(r *Runner) { r.recorder = rec }
}

// WithRunIDs sets the run ID generator. Default: UUIDv7Generator.
func WithRunIDs(g RunIDGenerator) Option {
	return func(r *Runner) { r.ids = g }
}

// WithStateHook observes state transitions.
func WithStateHook(h StateHook) Option {
	return func(r *Runner) { r.hook = h }
}

// WithClock sets the time source used for run timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// New creates a runner that applies p.
func New(p *pipeline.Pipeline, opts ...Option) (*Runner, error) {
	if p == nil {
		return nil, errors.New("enhance: nil pipeline")
	}
	r := &Runner{
		pipeline:  p,
		manifests: DiscoverManifests(manifest.DefaultNames, nil),
		sentinel:  resolve.DefaultSentinel,
		parent:    loader.NewPlatformParent(nil),
		workers:   runtime.GOMAXPROCS(0),
		diag:      SlogDiagnostics{},
		ids:       UUIDv7Generator{},
		now:       time.Now,
		roots:     newRootLocks(),
		files:     newFileLocks(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.expander == nil {
		e, err := artifact.NewExpander(nil)
		if err != nil {
			return nil, err
		}
		r.expander = e
	}
	if r.workers < 1 {
		r.workers = 1
	}
	if r.workers > MaxWorkers {
		r.workers = MaxWorkers
	}
	return r, nil
}

// Workers returns the pool size.
func (r *Runner) Workers() int { return r.workers }

// Run performs one enhancement run over inputs.
//
// Per-class failures are reported in the Report and through Diagnostics;
// the returned error is non-nil only for a setup failure or cancellation,
// in which case the Report is still returned.
//
// A run waits for any other run sharing one of its output roots to finish.
func (r *Runner) Run(ctx context.Context, inputs []artifact.CompiledArtifact, obs Observer) (*Report, error) {
	if obs == nil {
		obs = NopObserver{}
	}
	ex := &execution{
		Runner: r,
		obs:    obs,
		report: &Report{
			RunID:  r.ids.Generate(),
			Inputs: len(inputs),
			Roots:  outputRoots(inputs),
		},
	}

	release, err := r.roots.acquire(ctx, ex.report.Roots)
	if err != nil {
		ex.report.Started = r.now()
		return ex.finish(ctx, RunCancelled, &RunError{Code: CodeCancelled, Message: "waiting for previous run", Err: err})
	}
	defer release()

	return ex.run(ctx, inputs)
}

// execution is the state of a single run.
type execution struct {
	*Runner
	obs    Observer
	report *Report
	state  State
}

func (ex *execution) transition(to State) {
	from := ex.state
	ex.state = to
	slog.Debug("run state", "run", ex.report.RunID, "from", from.String(), "to", to.String())
	if ex.debug >= 3 {
		ex.diag.Report(SeverityInfo, fmt.Sprintf("state: %s -> %s", from, to))
	}
	if ex.hook != nil {
		ex.hook(ex.report.RunID, from, to)
	}
}

func (ex *execution) cancelled(ctx context.Context) bool {
	return ctx.Err() != nil || ex.obs.IsCancelled()
}

func (ex *execution) run(ctx context.Context, inputs []artifact.CompiledArtifact) (*Report, error) {
	rep := ex.report
	rep.Started = ex.now()

	ex.transition(StateExpanding)
	ws := ex.expander.ExpandAll(inputs)
	rep.Working = ws.Len()

	ex.transition(StateResolving)
	fb, err := ex.openFallback()
	if err != nil {
		return ex.finish(ctx, RunAborted, setupError("cannot build classpath", err))
	}
	if c, ok := fb.(io.Closer); ok {
		defer func() {
			if err := c.Close(); err != nil {
				slog.Warn("closing classpath", "run", rep.RunID, "error", err)
			}
		}()
	}

	res := resolve.New(ws.Files(),
		resolve.WithSentinel(ex.sentinel),
		resolve.WithFallback(fb),
		resolve.WithWarn(func(msg string) { ex.diag.Report(SeverityInfo, msg) }),
	)
	if len(inputs) > 0 {
		res.Focus(inputs[0].File)
	}
	ld := loader.New(res, loader.WithParent(ex.parent))

	m, err := ex.manifests(rep.Roots)
	if err != nil {
		return ex.finish(ctx, RunAborted, setupError("cannot read manifest", err))
	}
	rep.Restricted = m.Restricted()
	rep.Packages = m.Packages()
	ex.diag.Report(SeverityInfo, startLine(rep.Packages, ex.debug))

	work := ws.Filter(func(a artifact.CompiledArtifact) bool {
		if m.Allows(a.Name) || ex.pipeline.AlwaysConsider(ld, a.Name) {
			return true
		}
		if ex.debug >= 1 {
			ex.diag.Report(SeverityInfo, "not in manifest packages: "+a.Name.Internal())
		}
		return false
	})
	rep.Considered = work.Len()
	ex.obs.OnProgress(fmt.Sprintf("enhancing %d classes", work.Len()))

	ex.transition(StateTransforming)
	outcomes := ex.transform(ctx, res, ld, work.Artifacts())

	ex.transition(StateCommitting)
	ex.commit(outcomes)

	for _, o := range outcomes {
		if o == nil {
			rep.Skipped++
			continue
		}
		rep.Outcomes = append(rep.Outcomes, *o)
	}
	rep.FallbackHits = res.FallbackHits()

	if ex.cancelled(ctx) && rep.Skipped > 0 {
		ex.obs.OnProgress(fmt.Sprintf("enhancement cancelled, %d classes skipped", rep.Skipped))
		return ex.finish(ctx, RunCancelled, &RunError{Code: CodeCancelled, Message: "run cancelled", Err: ctx.Err()})
	}
	return ex.finish(ctx, RunCompleted, nil)
}

func (ex *execution) openFallback() (resolve.Fallback, error) {
	if ex.fallback == nil {
		return nil, nil
	}
	return ex.fallback()
}

// transform runs the pipeline over every class on the worker pool. A nil
// entry in the result marks a class that was never started.
func (ex *execution) transform(ctx context.Context, res *resolve.Resolver, ld *loader.Loader, arts []artifact.CompiledArtifact) []*ClassOutcome {
	results := make([]*ClassOutcome, len(arts))
	var done atomic.Int64

	var g errgroup.Group
	g.SetLimit(ex.workers)
	for i, a := range arts {
		if ex.cancelled(ctx) {
			break
		}
		i, a := i, a
		g.Go(func() error {
			if ex.cancelled(ctx) {
				return nil
			}
			if ex.debug >= 2 {
				r := res.Resolve(a.Name)
				ex.diag.Report(SeverityInfo, fmt.Sprintf("resolved: %s tier=%s", a.Name.Internal(), r.Tier))
			}
			results[i] = ex.transformOne(ld, a)
			n := done.Add(1)
			ex.obs.OnProgress(fmt.Sprintf("enhanced %d/%d: %s", n, len(arts), a.Name))
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (ex *execution) transformOne(ld *loader.Loader, a artifact.CompiledArtifact) *ClassOutcome {
	o := &ClassOutcome{Name: a.Name, File: a.File}

	original, err := os.ReadFile(a.File)
	if err != nil {
		o.Status = pipeline.StatusFailed
		o.Err = classError(CodeIOFailure, a.Name, err)
		ex.reportFailure(o)
		return o
	}
	o.Before = Digest(original)

	out := ex.pipeline.Apply(ld, a.Name, original)
	o.Passes = out.Passes
	switch out.Status() {
	case pipeline.StatusFailed:
		o.Status = pipeline.StatusFailed
		o.Err = classError(CodeTransformFailure, a.Name, out.Err)
		ex.reportFailure(o)
	case pipeline.StatusEnhanced:
		o.Status = pipeline.StatusEnhanced
		o.final = out.Bytes
	default:
		o.Status = pipeline.StatusUnchanged
		if ex.debug >= 1 {
			ex.diag.Report(SeverityInfo, "unchanged: "+a.Name.Internal())
		}
	}
	return o
}

// commit writes back every enhanced class. Classes already transformed are
// committed even after cancellation so no transformed work is half done.
func (ex *execution) commit(outcomes []*ClassOutcome) {
	var g errgroup.Group
	g.SetLimit(ex.workers)
	for _, o := range outcomes {
		if o == nil || o.final == nil {
			continue
		}
		o := o
		g.Go(func() error {
			unlock := ex.files.lock(o.File)
			err := writeFileAtomic(o.File, o.final)
			unlock()
			if err != nil {
				o.Status = pipeline.StatusFailed
				o.Err = classError(CodeIOFailure, o.Name, err)
				o.final = nil
				ex.reportFailure(o)
				return nil
			}
			o.After = Digest(o.final)
			o.final = nil
			ex.diag.Report(SeverityInfo, enhancedLine(*o))
			return nil
		})
	}
	_ = g.Wait()
}

func (ex *execution) reportFailure(o *ClassOutcome) {
	slog.Debug("class failed", "run", ex.report.RunID, "class", o.Name.String(), "error", o.Err)
	ex.diag.Report(SeverityError, failureLine(*o))
}

func (ex *execution) finish(ctx context.Context, status RunStatus, err error) (*Report, error) {
	rep := ex.report
	rep.Status = status
	rep.Err = err
	rep.tally()
	if status == RunAborted {
		ex.diag.Report(SeverityError, fmt.Sprintf("enhancement aborted, no classes were modified: %v", err))
	} else {
		ex.diag.Report(SeverityInfo, rep.Summary())
	}
	if ex.state != StateIdle {
		ex.transition(StateIdle)
	}
	rep.Finished = ex.now()

	if ex.recorder != nil {
		// Log and continue: history is informational.
		if recErr := ex.recorder.Record(context.WithoutCancel(ctx), rep); recErr != nil {
			slog.Warn("recording run", "run", rep.RunID, "error", recErr)
		}
	}
	return rep, err
}

func outputRoots(inputs []artifact.CompiledArtifact) []string {
	seen := make(map[string]bool)
	var roots []string
	for _, a := range inputs {
		if a.OutputRoot == "" || seen[a.OutputRoot] {
			continue
		}
		seen[a.OutputRoot] = true
		roots = append(roots, a.OutputRoot)
	}
	sort.Strings(roots)
	return roots
}
