package cli

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/classweave/internal/classname"
	"github.com/roach88/classweave/internal/loader"
	"github.com/roach88/classweave/internal/resolve"
)

// ResolveOptions holds flags for the resolve command.
type ResolveOptions struct {
	*RootOptions
	Module string
	Root   string
}

// ResolveResult is the JSON payload of the resolve command.
type ResolveResult struct {
	Class      string   `json:"class"`
	Found      bool     `json:"found"`
	Tier       string   `json:"tier"`
	Size       int      `json:"size"`
	Supertypes []string `json:"supertypes"`
	Warnings   []string `json:"warnings,omitempty"`
}

// NewResolveCommand creates the resolve command.
func NewResolveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResolveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "resolve <class-name>",
		Short: "Show how a class name resolves",
		Long: `Resolve a class the way an enhancement run would.

The classes under the selected output roots form the run-local tier; the
sentinel class is never read; everything else is looked up on the
configured classpath, scoped to the selected module. Prints the tier that
decided the outcome, the size of the class file and its superclass chain.

Exit codes:
  0 - Class found (or the sentinel)
  1 - Class not found
  2 - Command error

Examples:
  classweave resolve com.acme.domain.Customer
  classweave resolve com/acme/domain/Customer --module app --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Module, "module", "m", "", "resolve in the scope of this configured module")
	cmd.Flags().StringVar(&opts.Root, "root", "", "output root forming the run-local tier")

	return cmd
}

func runResolve(opts *ResolveOptions, arg string, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}

	// The run-local tier is optional: with nothing configured, only the
	// classpath is consulted.
	local := map[classname.Name]string{}
	roots, err := selectRoots(cfg, opts.Module, opts.Root)
	if err != nil && (opts.Module != "" || opts.Root != "") {
		return err
	}
	if err == nil {
		inputs, err := scanRoots(roots)
		if err != nil {
			return err
		}
		for _, a := range inputs {
			local[a.Name] = a.File
		}
	}

	var warnings []string
	classpath := cfg.BuildClasspath()
	defer func() {
		if err := classpath.Close(); err != nil {
			slog.Warn("closing classpath", "error", err)
		}
	}()
	res := resolve.New(local,
		resolve.WithSentinel(classname.Parse(cfg.Sentinel)),
		resolve.WithFallback(classpath),
		resolve.WithWarn(func(msg string) { warnings = append(warnings, msg) }),
	)
	if len(roots) > 0 {
		res.Focus(roots[0])
	}

	name := classname.Parse(arg)
	r := res.Resolve(name)
	result := ResolveResult{
		Class:      name.String(),
		Found:      r.Found,
		Tier:       r.Tier.String(),
		Size:       len(r.Bytes),
		Supertypes: []string{},
	}
	if r.Found {
		ld := loader.New(res, loader.WithParent(loader.NewPlatformParent(nil)))
		chain, err := loader.Supertypes(ld, name)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("supertype walk stopped: %v", err))
		}
		for _, s := range chain {
			result.Supertypes = append(result.Supertypes, s.String())
		}
	}
	result.Warnings = warnings

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr(), Verbose: opts.Verbose}
	notFound := !r.Found && r.Tier != resolve.TierSentinel
	if formatter.JSON() {
		if notFound {
			if err := formatter.Error(CodeNotFound, fmt.Sprintf("class %s not found", name), result); err != nil {
				return err
			}
		} else if err := formatter.Success(result); err != nil {
			return err
		}
	} else {
		writeResolveText(formatter, result)
	}

	if notFound {
		return NewExitError(ExitFailure, fmt.Sprintf("class %s not found", name))
	}
	return nil
}

func writeResolveText(f *OutputFormatter, r ResolveResult) {
	w := f.Writer
	fmt.Fprintf(w, "class:      %s\n", r.Class)
	fmt.Fprintf(w, "tier:       %s\n", r.Tier)
	fmt.Fprintf(w, "found:      %t\n", r.Found)
	if r.Found {
		fmt.Fprintf(w, "size:       %d bytes\n", r.Size)
	}
	if len(r.Supertypes) > 0 {
		fmt.Fprintf(w, "supertypes: %s\n", strings.Join(r.Supertypes, " -> "))
	}
	for _, warn := range r.Warnings {
		fmt.Fprintln(f.GetErrWriter(), warn)
	}
}
