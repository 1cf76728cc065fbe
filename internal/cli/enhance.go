package cli

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/classweave/internal/artifact"
	"github.com/roach88/classweave/internal/classname"
	"github.com/roach88/classweave/internal/config"
	"github.com/roach88/classweave/internal/enhance"
)

// EnhanceOptions holds flags for the enhance command.
type EnhanceOptions struct {
	*RootOptions
	runnerFlags
	Module string // limit to one configured module
	Root   string // output root when no module is configured
}

// EnhanceResult is the JSON payload of the enhance command.
type EnhanceResult struct {
	RunID        string        `json:"run_id"`
	Status       string        `json:"status"`
	Inputs       int           `json:"inputs"`
	Working      int           `json:"working"`
	Considered   int           `json:"considered"`
	Enhanced     int           `json:"enhanced"`
	Unchanged    int           `json:"unchanged"`
	Failed       int           `json:"failed"`
	Skipped      int           `json:"skipped"`
	FallbackHits int64         `json:"fallback_hits"`
	Classes      []ClassResult `json:"classes"`
}

// ClassResult is one class verdict in EnhanceResult.
type ClassResult struct {
	Class  string   `json:"class"`
	Status string   `json:"status"`
	Passes []string `json:"passes,omitempty"`
	Error  string   `json:"error,omitempty"`
}

// NewEnhanceCommand creates the enhance command.
func NewEnhanceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EnhanceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "enhance [class-file...]",
		Short: "Run one enhancement pass over compiled classes",
		Long: `Enhance compiled classes in place.

With class files as arguments, those classes are the build's output and
each one is attributed to the configured module (or --root) containing it.
Without arguments every class under the selected output roots is enhanced.

Exit codes:
  0 - Run completed, no class failed
  1 - One or more classes failed, or the run was cancelled
  2 - Command error (bad configuration, unreadable manifest, classpath setup)

Examples:
  classweave enhance
  classweave enhance --module app
  classweave enhance --root build/classes com/acme/domain/Customer.class
  classweave enhance --debug 2 --workers 4 --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEnhance(opts, args, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Module, "module", "m", "", "enhance only this configured module")
	cmd.Flags().StringVar(&opts.Root, "root", "", "output root directory (overrides configured modules)")
	addRunnerFlags(cmd, &opts.runnerFlags)

	return cmd
}

func addRunnerFlags(cmd *cobra.Command, f *runnerFlags) {
	cmd.Flags().IntVar(&f.Debug, "debug", -1, fmt.Sprintf("diagnostic level 0..%d (default from config or %s)", config.MaxDebug, config.DebugEnv))
	cmd.Flags().IntVar(&f.Workers, "workers", 0, fmt.Sprintf("transform workers 1..%d (default from config)", enhance.MaxWorkers))
	cmd.Flags().BoolVar(&f.NoHistory, "no-history", false, "do not record the run in the history database")
}

func runEnhance(opts *EnhanceOptions, args []string, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}

	roots, err := selectRoots(cfg, opts.Module, opts.Root)
	if err != nil {
		return err
	}

	var inputs []artifact.CompiledArtifact
	if len(args) > 0 {
		inputs, err = classInputs(roots, args)
	} else {
		inputs, err = scanRoots(roots)
	}
	if err != nil {
		return err
	}
	slog.Debug("enhance inputs", "classes", len(inputs), "roots", len(roots))

	runner, closeHistory, err := newRunner(cfg, opts.runnerFlags, cliDiagnostics(opts.RootOptions, cmd.OutOrStdout()))
	if err != nil {
		return err
	}
	defer closeHistory()

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	rep, runErr := runner.Run(ctx, inputs, enhance.NopObserver{})
	if opts.Format == "json" {
		if err := writeEnhanceJSON(cmd, rep, runErr); err != nil {
			return err
		}
	}
	return enhanceExitError(rep, runErr)
}

// selectRoots returns the output roots to work on: --root, the selected
// module's outputs, or every configured module output.
func selectRoots(cfg *config.Config, module, root string) ([]string, error) {
	if root != "" {
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "invalid output root", err)
		}
		if !isDir(abs) {
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("output root not found: %s", root))
		}
		return []string{abs}, nil
	}

	var roots []string
	if module != "" {
		m, ok := cfg.Module(module)
		if !ok {
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("unknown module %q", module))
		}
		for _, r := range []string{m.Output, m.TestOutput} {
			if r != "" {
				roots = append(roots, r)
			}
		}
	} else {
		roots = cfg.Roots()
	}
	if len(roots) == 0 {
		return nil, NewExitError(ExitCommandError, "no output roots: pass --root or configure modules")
	}

	// Missing outputs are skipped: a module may not have been built yet.
	existing := roots[:0]
	for _, r := range roots {
		if isDir(r) {
			existing = append(existing, r)
		} else {
			slog.Debug("skipping missing output root", "root", r)
		}
	}
	if len(existing) == 0 {
		return nil, NewExitError(ExitCommandError, "no output root exists yet: build the project first")
	}
	return existing, nil
}

// classInputs attributes each class file to the root containing it.
func classInputs(roots []string, files []string) ([]artifact.CompiledArtifact, error) {
	inputs := make([]artifact.CompiledArtifact, 0, len(files))
	for _, f := range files {
		a, err := attribute(roots, f)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "invalid class file", err)
		}
		inputs = append(inputs, a)
	}
	return inputs, nil
}

func attribute(roots []string, file string) (artifact.CompiledArtifact, error) {
	if !filepath.IsAbs(file) {
		// Relative to an output root first, then to the working directory.
		for _, r := range roots {
			if a, err := artifact.New(r, filepath.ToSlash(file)); err == nil {
				return a, nil
			}
		}
		abs, err := filepath.Abs(file)
		if err != nil {
			return artifact.CompiledArtifact{}, err
		}
		file = abs
	}
	for _, r := range roots {
		if a, err := artifact.FromFile(r, file); err == nil {
			return a, nil
		}
	}
	return artifact.CompiledArtifact{}, fmt.Errorf("%s is not a class file under %s", file, strings.Join(roots, ", "))
}

// scanRoots lists every class file under roots in lexical order.
func scanRoots(roots []string) ([]artifact.CompiledArtifact, error) {
	var inputs []artifact.CompiledArtifact
	for _, root := range roots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !strings.HasSuffix(path, classname.ClassExt) || enhance.IsTempFile(path) {
				return nil
			}
			a, err := artifact.FromFile(root, path)
			if err != nil {
				slog.Debug("skipping file", "path", path, "reason", err)
				return nil
			}
			inputs = append(inputs, a)
			return nil
		})
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to scan output root", err)
		}
	}
	return inputs, nil
}

// enhanceResult converts a report into the JSON payload.
func enhanceResult(rep *enhance.Report) EnhanceResult {
	res := EnhanceResult{
		RunID:        rep.RunID,
		Status:       string(rep.Status),
		Inputs:       rep.Inputs,
		Working:      rep.Working,
		Considered:   rep.Considered,
		Enhanced:     rep.Enhanced,
		Unchanged:    rep.Unchanged,
		Failed:       rep.Failed,
		Skipped:      rep.Skipped,
		FallbackHits: rep.FallbackHits,
		Classes:      make([]ClassResult, 0, len(rep.Outcomes)),
	}
	for _, o := range rep.Outcomes {
		c := ClassResult{Class: o.Name.String(), Status: string(o.Status), Passes: o.Passes}
		if o.Err != nil {
			c.Error = o.Err.Error()
		}
		res.Classes = append(res.Classes, c)
	}
	return res
}

func writeEnhanceJSON(cmd *cobra.Command, rep *enhance.Report, runErr error) error {
	response := CLIResponse{
		Status: "ok",
		Data:   enhanceResult(rep),
		RunID:  rep.RunID,
	}
	if exitErr := enhanceExitError(rep, runErr); exitErr != nil {
		response.Status = "error"
		response.Error = &CLIError{Code: enhanceErrorCode(rep, runErr), Message: exitErr.Error()}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(response)
}

func enhanceErrorCode(rep *enhance.Report, runErr error) string {
	switch {
	case enhance.IsSetupError(runErr):
		return CodeSetup
	case enhance.IsCancelled(runErr):
		return CodeCancelled
	case rep.Failed > 0:
		return CodeClassFailed
	default:
		return ""
	}
}

// enhanceExitError maps a finished run onto the CLI exit codes.
func enhanceExitError(rep *enhance.Report, runErr error) error {
	switch {
	case enhance.IsSetupError(runErr):
		return WrapExitError(ExitCommandError, "enhancement aborted", runErr)
	case enhance.IsCancelled(runErr):
		return WrapExitError(ExitFailure, fmt.Sprintf("enhancement cancelled, %d classes skipped", rep.Skipped), runErr)
	case runErr != nil:
		return WrapExitError(ExitFailure, "enhancement failed", runErr)
	case rep.Failed > 0:
		return NewExitError(ExitFailure, fmt.Sprintf("%d class(es) failed", rep.Failed))
	}
	return nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
