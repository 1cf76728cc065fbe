package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/roach88/classweave/internal/classname"
	"github.com/roach88/classweave/internal/config"
	"github.com/roach88/classweave/internal/enhance"
	"github.com/roach88/classweave/internal/resolve"
	"github.com/roach88/classweave/internal/store"
)

// loadConfig reads the configuration named by --config and applies
// environment overrides.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	cfg, err := config.LoadOrDefault(opts.Config, opts.configSet)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load configuration", err)
	}
	cfg.ApplyEnv(os.Getenv)
	slog.Debug("configuration loaded", "file", opts.Config, "modules", len(cfg.Modules), "passes", len(cfg.Passes))
	return cfg, nil
}

// runnerFlags are the flags shared by enhance and watch.
type runnerFlags struct {
	Debug     int
	Workers   int
	NoHistory bool
}

// newRunner builds a runner from cfg. Flags that were set override the
// configuration. The returned closer releases the history store.
func newRunner(cfg *config.Config, flags runnerFlags, diag enhance.Diagnostics) (*enhance.Runner, func(), error) {
	p, err := cfg.BuildPipeline()
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "invalid pass configuration", err)
	}
	expander, err := cfg.BuildExpander()
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "invalid companion templates", err)
	}

	debug := cfg.Debug
	if flags.Debug >= 0 {
		debug = flags.Debug
	}
	workers := cfg.Workers
	if flags.Workers > 0 {
		workers = flags.Workers
	}

	runnerOpts := []enhance.Option{
		enhance.WithExpander(expander),
		enhance.WithSentinel(classname.Parse(cfg.Sentinel)),
		enhance.WithManifests(enhance.DiscoverManifests(cfg.Manifest.Names, cfg.Manifest.Search)),
		enhance.WithFallback(func() (resolve.Fallback, error) { return cfg.BuildClasspath(), nil }),
		enhance.WithWorkers(workers),
		enhance.WithDebug(debug),
		enhance.WithDiagnostics(diag),
	}

	closeFn := func() {}
	if cfg.History != "" && !flags.NoHistory {
		st, err := store.Open(cfg.History)
		if err != nil {
			return nil, nil, WrapExitError(ExitCommandError, "failed to open history database", err)
		}
		closeFn = func() {
			if closeErr := st.Close(); closeErr != nil {
				slog.Error("error closing history database", "error", closeErr)
			}
		}
		runnerOpts = append(runnerOpts, enhance.WithRecorder(st))
	}

	r, err := enhance.New(p, runnerOpts...)
	if err != nil {
		closeFn()
		return nil, nil, WrapExitError(ExitCommandError, "failed to create runner", err)
	}
	return r, closeFn, nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
// Use the command's context if available (for testing), otherwise create one.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan) // Prevent signal handler leak
		select {
		case sig := <-sigChan:
			slog.Info("received signal, cancelling", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// printDiagnostics prints diagnostics for the developer. In JSON mode it
// stays quiet so stdout remains machine-readable; the slog mirror still
// reports errors on stderr.
type printDiagnostics struct {
	mu    sync.Mutex
	out   io.Writer
	quiet bool
}

func (p *printDiagnostics) Report(_ enhance.Severity, message string) {
	if p.quiet {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, message)
}

// cliDiagnostics prints diagnostics and mirrors them to slog, info lines at
// debug level.
func cliDiagnostics(opts *RootOptions, out io.Writer) enhance.Diagnostics {
	return enhance.Tee(
		&printDiagnostics{out: out, quiet: opts.Format == "json"},
		enhance.SlogDiagnostics{InfoLevel: slog.LevelDebug},
	)
}
