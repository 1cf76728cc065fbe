package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/classweave/internal/classname"
	"github.com/roach88/classweave/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string // overrides the configured history path
	Limit    int
	Run      string // show one run
	Class    string // show one class across runs
}

// RunSummary is a run in history output.
type RunSummary struct {
	ID           string   `json:"id"`
	Started      string   `json:"started"`
	DurationMS   int64    `json:"duration_ms"`
	Status       string   `json:"status"`
	Roots        []string `json:"roots"`
	Enhanced     int      `json:"enhanced"`
	Unchanged    int      `json:"unchanged"`
	Failed       int      `json:"failed"`
	Skipped      int      `json:"skipped"`
	FallbackHits int64    `json:"fallback_hits"`
	Error        string   `json:"error,omitempty"`
}

// OutcomeSummary is a class outcome in history output.
type OutcomeSummary struct {
	RunID   string   `json:"run_id"`
	Class   string   `json:"class"`
	Status  string   `json:"status"`
	Passes  []string `json:"passes,omitempty"`
	Changed bool     `json:"changed"`
	Digest  string   `json:"digest"`
	Error   string   `json:"error,omitempty"`
}

// RunDetail is the payload of history --run.
type RunDetail struct {
	Run      RunSummary       `json:"run"`
	Outcomes []OutcomeSummary `json:"outcomes"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded enhancement runs",
		Long: `Show enhancement runs recorded in the history database.

Without flags the most recent runs are listed, newest first. --run shows
every class outcome of one run; --class shows one class across all runs
with the digest of its file after each run.

Examples:
  classweave history
  classweave history --limit 5 --format json
  classweave history --run 01928c1e-...
  classweave history --class com.acme.domain.Customer`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "history database (default from config)")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "number of runs to list (0 for all)")
	cmd.Flags().StringVar(&opts.Run, "run", "", "show the outcomes of one run")
	cmd.Flags().StringVar(&opts.Class, "class", "", "show the history of one class")
	cmd.MarkFlagsMutuallyExclusive("run", "class")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	path := opts.Database
	if path == "" {
		cfg, err := loadConfig(opts.RootOptions)
		if err != nil {
			return err
		}
		path = cfg.History
	}
	if path == "" {
		return NewExitError(ExitCommandError, "no history database: set history in the configuration or pass --db")
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("history database not found: %s", path))
	}

	st, err := store.Open(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open history database", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr(), Verbose: opts.Verbose}

	switch {
	case opts.Run != "":
		run, outcomes, err := st.ReadRun(ctx, opts.Run)
		if errors.Is(err, store.ErrRunNotFound) {
			_ = formatter.Error(CodeNotFound, fmt.Sprintf("run %s not found", opts.Run), nil)
			return NewExitError(ExitFailure, fmt.Sprintf("run %s not found", opts.Run))
		}
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read run", err)
		}
		detail := RunDetail{Run: runSummary(run), Outcomes: outcomeSummaries(outcomes)}
		if formatter.JSON() {
			return formatter.Success(detail)
		}
		writeRunDetail(formatter.Writer, detail)
		return nil

	case opts.Class != "":
		class := classname.Parse(opts.Class).String()
		outcomes, err := st.ClassHistory(ctx, class)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read class history", err)
		}
		summaries := outcomeSummaries(outcomes)
		if formatter.JSON() {
			return formatter.Success(summaries)
		}
		if len(summaries) == 0 {
			fmt.Fprintf(formatter.Writer, "No recorded outcomes for %s.\n", class)
			return nil
		}
		writeOutcomes(formatter.Writer, summaries, true)
		return nil

	default:
		runs, err := st.ListRuns(ctx, opts.Limit)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list runs", err)
		}
		summaries := make([]RunSummary, 0, len(runs))
		for _, r := range runs {
			summaries = append(summaries, runSummary(r))
		}
		if formatter.JSON() {
			return formatter.Success(summaries)
		}
		if len(summaries) == 0 {
			fmt.Fprintln(formatter.Writer, "No runs recorded.")
			return nil
		}
		writeRuns(formatter.Writer, summaries)
		return nil
	}
}

func runSummary(r store.Run) RunSummary {
	return RunSummary{
		ID:           r.ID,
		Started:      r.Started.Format(time.RFC3339),
		DurationMS:   r.Duration().Milliseconds(),
		Status:       r.Status,
		Roots:        r.Roots,
		Enhanced:     r.Enhanced,
		Unchanged:    r.Unchanged,
		Failed:       r.Failed,
		Skipped:      r.Skipped,
		FallbackHits: r.FallbackHits,
		Error:        r.Error,
	}
}

func outcomeSummaries(outcomes []store.Outcome) []OutcomeSummary {
	out := make([]OutcomeSummary, 0, len(outcomes))
	for _, o := range outcomes {
		digest := o.DigestAfter
		if digest == "" {
			digest = o.DigestBefore
		}
		out = append(out, OutcomeSummary{
			RunID:   o.RunID,
			Class:   o.Class,
			Status:  o.Status,
			Passes:  o.Passes,
			Changed: o.Changed(),
			Digest:  digest,
			Error:   o.Error,
		})
	}
	return out
}

func writeRuns(w io.Writer, runs []RunSummary) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tSTATUS\tENHANCED\tUNCHANGED\tFAILED\tSKIPPED")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%d\n", r.ID, r.Started, r.Status, r.Enhanced, r.Unchanged, r.Failed, r.Skipped)
	}
	_ = tw.Flush()
}

func writeRunDetail(w io.Writer, d RunDetail) {
	r := d.Run
	fmt.Fprintf(w, "Run %s (%s, %dms)\n", r.ID, r.Status, r.DurationMS)
	fmt.Fprintf(w, "  started:  %s\n", r.Started)
	fmt.Fprintf(w, "  roots:    %s\n", strings.Join(r.Roots, ", "))
	fmt.Fprintf(w, "  enhanced=%d unchanged=%d failed=%d skipped=%d fallbackHits=%d\n",
		r.Enhanced, r.Unchanged, r.Failed, r.Skipped, r.FallbackHits)
	if r.Error != "" {
		fmt.Fprintf(w, "  error:    %s\n", r.Error)
	}
	if len(d.Outcomes) > 0 {
		fmt.Fprintln(w)
		writeOutcomes(w, d.Outcomes, false)
	}
}

func writeOutcomes(w io.Writer, outcomes []OutcomeSummary, withRun bool) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if withRun {
		fmt.Fprintln(tw, "RUN\tSTATUS\tPASSES\tDIGEST")
	} else {
		fmt.Fprintln(tw, "CLASS\tSTATUS\tPASSES\tDIGEST")
	}
	for _, o := range outcomes {
		first := o.Class
		if withRun {
			first = o.RunID
		}
		digest := o.Digest
		if len(digest) > 12 {
			digest = digest[:12]
		}
		status := o.Status
		if o.Error != "" {
			status += ": " + o.Error
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", first, status, strings.Join(o.Passes, ","), digest)
	}
	_ = tw.Flush()
}
