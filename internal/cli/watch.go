package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/classweave/internal/artifact"
	"github.com/roach88/classweave/internal/enhance"
	"github.com/roach88/classweave/internal/watch"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	runnerFlags
	Module   string
	Root     string
	Debounce time.Duration

	// ready, when set, is called once the output roots are watched (for testing).
	ready func()
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Enhance classes as the compiler writes them",
		Long: `Watch the output roots and enhance every batch of compiled classes.

Class files created or rewritten under the output roots are collected until
the roots have been quiet for the debounce window, then enhanced as one run.
The files a run rewrites itself do not trigger another run.

Runs continue after class failures; press Ctrl-C to stop.

Examples:
  classweave watch
  classweave watch --module app --debounce 1s
  classweave watch --root build/classes --debug 1`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Module, "module", "m", "", "watch only this configured module")
	cmd.Flags().StringVar(&opts.Root, "root", "", "output root directory (overrides configured modules)")
	cmd.Flags().DurationVar(&opts.Debounce, "debounce", watch.DefaultOptions().Debounce, "quiet period that ends a build")
	addRunnerFlags(cmd, &opts.runnerFlags)

	return cmd
}

func runWatch(opts *WatchOptions, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	roots, err := selectRoots(cfg, opts.Module, opts.Root)
	if err != nil {
		return err
	}

	runner, closeHistory, err := newRunner(cfg, opts.runnerFlags, cliDiagnostics(opts.RootOptions, cmd.OutOrStdout()))
	if err != nil {
		return err
	}
	defer closeHistory()

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	var w *watch.Watcher
	handler := func(ctx context.Context, batch []artifact.CompiledArtifact) {
		rep, runErr := runner.Run(ctx, batch, enhance.NopObserver{})
		w.Suppress(rep)
		if opts.Format == "json" {
			if err := writeEnhanceJSON(cmd, rep, runErr); err != nil {
				slog.Error("writing run result", "error", err)
			}
		}
		// Log and continue: the next build gets a fresh run.
		if exitErr := enhanceExitError(rep, runErr); exitErr != nil {
			slog.Warn("run finished with errors", "run", rep.RunID, "error", exitErr)
		}
	}

	w, err = watch.New(roots, handler, &watch.Options{Debounce: opts.Debounce})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to watch output roots", err)
	}
	defer func() {
		if err := w.Stop(); err != nil {
			slog.Error("error stopping watcher", "error", err)
		}
	}()
	if err := w.Start(ctx); err != nil {
		return WrapExitError(ExitCommandError, "failed to watch output roots", err)
	}

	slog.Info("watching output roots", "roots", roots, "debounce", opts.Debounce)
	if opts.Format != "json" {
		fmt.Fprintf(cmd.OutOrStdout(), "Watching %d output root(s). Press Ctrl-C to stop.\n", len(roots))
	}
	if opts.ready != nil {
		opts.ready()
	}

	<-ctx.Done()
	slog.Info("watch stopped")
	return nil
}
