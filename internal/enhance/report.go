package enhance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/classweave/internal/classname"
	"github.com/roach88/classweave/internal/pipeline"
)

// RunStatus is how a run ended.
type RunStatus string

const (
	RunCompleted RunStatus = "completed"
	RunAborted   RunStatus = "aborted"
	RunCancelled RunStatus = "cancelled"
)

// ClassOutcome is the recorded verdict for one transformed class.
//
// Before and After are content digests; After is set only when the file was
// rewritten.
type ClassOutcome struct {
	Name   classname.Name
	File   string
	Status pipeline.Status
	Passes []string
	Before string
	After  string
	Err    error

	final []byte
}

// Report summarises a run.
type Report struct {
	RunID      string
	Started    time.Time
	Finished   time.Time
	Status     RunStatus
	Roots      []string
	Packages   []string // manifest packages; empty when unrestricted
	Restricted bool

	Inputs     int // artifacts handed in by the build
	Working    int // after companion expansion
	Considered int // after the manifest filter

	Outcomes []ClassOutcome // in working-set order

	Enhanced     int
	Unchanged    int
	Failed       int
	Skipped      int // considered but never started because of cancellation
	FallbackHits int64

	Err error // setup failure or cancellation
}

// Outcome returns the outcome recorded for name.
func (r *Report) Outcome(name classname.Name) (ClassOutcome, bool) {
	name = classname.Parse(string(name))
	for _, o := range r.Outcomes {
		if o.Name == name {
			return o, true
		}
	}
	return ClassOutcome{}, false
}

// Summary is the closing line of a run.
func (r *Report) Summary() string {
	return fmt.Sprintf("enhancement done! enhanced=%d unchanged=%d failed=%d fallbackHits=%d",
		r.Enhanced, r.Unchanged, r.Failed, r.FallbackHits)
}

func (r *Report) tally() {
	r.Enhanced, r.Unchanged, r.Failed = 0, 0, 0
	for _, o := range r.Outcomes {
		switch o.Status {
		case pipeline.StatusEnhanced:
			r.Enhanced++
		case pipeline.StatusUnchanged:
			r.Unchanged++
		case pipeline.StatusFailed:
			r.Failed++
		}
	}
}

func startLine(packages []string, debug int) string {
	pkgs := "*"
	if len(packages) > 0 {
		pkgs = strings.Join(packages, ",")
	}
	return fmt.Sprintf("enhancement start! packages=%s debug=%d", pkgs, debug)
}

func enhancedLine(o ClassOutcome) string {
	return fmt.Sprintf("enhanced: %s passes: %s", o.Name.Internal(), strings.Join(o.Passes, ","))
}

func failureLine(o ClassOutcome) string {
	msg := ""
	var re *RunError
	switch {
	case errors.As(o.Err, &re) && re.Err != nil:
		msg = re.Err.Error()
	case o.Err != nil:
		msg = o.Err.Error()
	}
	return fmt.Sprintf("Exception trying to enhance: %s Please try a full rebuild, error: %s", o.Name, msg)
}

// Recorder persists finished runs.
type Recorder interface {
	Record(ctx context.Context, r *Report) error
}
