// Package pipeline chains independent byte-rewrite passes over one class.
//
// Passes compose: the output of pass i is the input of pass i+1, so a later
// pass sees the structural changes of an earlier one. A pass reports
// "unchanged" by returning nil (or the same bytes). A pass that fails or
// panics turns the whole class into a failed outcome; it never affects other
// classes.
//
// Every pass must be idempotent: it detects its own marker and skips a class
// it has already enhanced, so running the pipeline on its own output yields
// an unchanged outcome.
package pipeline

import (
	"bytes"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/roach88/classweave/internal/classname"
	"github.com/roach88/classweave/internal/loader"
)

// Transformer is one enhancement pass.
//
// Transform returns the rewritten class, or nil when the class is left as
// is. Implementations must not retain or modify b.
type Transformer interface {
	Name() string
	Transform(l loader.ClassLoader, name classname.Name, b []byte) ([]byte, error)
}

// Considerer is implemented by passes that want a class enhanced even when
// the package manifest excludes it.
type Considerer interface {
	AlwaysConsider(l loader.ClassLoader, name classname.Name) bool
}

// Status summarises an Outcome.
type Status string

const (
	StatusUnchanged Status = "unchanged"
	StatusEnhanced  Status = "enhanced"
	StatusFailed    Status = "failed"
)

// Outcome is the per-class verdict of a pipeline run.
//
// When Enhanced is false Bytes is nil and the class file must be left
// untouched.
type Outcome struct {
	Name     classname.Name
	Enhanced bool
	Passes   []string // passes that changed the class, in pass order
	Bytes    []byte
	Err      error
}

// Status returns the outcome's status.
func (o Outcome) Status() Status {
	switch {
	case o.Err != nil:
		return StatusFailed
	case o.Enhanced:
		return StatusEnhanced
	default:
		return StatusUnchanged
	}
}

// TransformError reports a pass that failed or panicked.
type TransformError struct {
	Pass  string
	Class classname.Name
	Err   error
	Stack []byte // set when the pass panicked
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("pass %s failed on %s: %v", e.Pass, e.Class, e.Err)
}

func (e *TransformError) Unwrap() error { return e.Err }

// Pipeline is an ordered list of passes.
type Pipeline struct {
	passes []Transformer
}

// New creates a pipeline. Pass names must be non-empty and unique.
func New(passes ...Transformer) (*Pipeline, error) {
	seen := make(map[string]bool, len(passes))
	for i, p := range passes {
		if p == nil {
			return nil, fmt.Errorf("pass %d is nil", i)
		}
		name := p.Name()
		if name == "" {
			return nil, fmt.Errorf("pass %d has no name", i)
		}
		if seen[name] {
			return nil, fmt.Errorf("duplicate pass name %q", name)
		}
		seen[name] = true
	}
	cp := make([]Transformer, len(passes))
	copy(cp, passes)
	return &Pipeline{passes: cp}, nil
}

// Passes returns the pass names in order.
func (p *Pipeline) Passes() []string {
	out := make([]string, len(p.passes))
	for i, t := range p.passes {
		out[i] = t.Name()
	}
	return out
}

// AlwaysConsider reports whether any pass wants name regardless of the
// manifest.
func (p *Pipeline) AlwaysConsider(l loader.ClassLoader, name classname.Name) bool {
	for _, t := range p.passes {
		if c, ok := t.(Considerer); ok && c.AlwaysConsider(l, name) {
			return true
		}
	}
	return false
}

// Apply runs every pass over original in order.
func (p *Pipeline) Apply(l loader.ClassLoader, name classname.Name, original []byte) Outcome {
	out := Outcome{Name: name}
	cur := original
	for _, t := range p.passes {
		next, err := runPass(t, l, name, cur)
		if err != nil {
			out.Err = err
			out.Passes = nil
			return out
		}
		if next == nil || bytes.Equal(next, cur) {
			continue
		}
		out.Passes = append(out.Passes, t.Name())
		cur = next
	}
	if len(out.Passes) > 0 {
		out.Enhanced = true
		out.Bytes = cur
	}
	return out
}

func runPass(t Transformer, l loader.ClassLoader, name classname.Name, b []byte) (next []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			rerr, ok := r.(error)
			if !ok {
				rerr = fmt.Errorf("panic: %v", r)
			}
			err = &TransformError{Pass: t.Name(), Class: name, Err: rerr, Stack: debug.Stack()}
		}
	}()
	next, err = t.Transform(l, name, b)
	if err != nil {
		var te *TransformError
		if errors.As(err, &te) {
			return nil, err
		}
		return nil, &TransformError{Pass: t.Name(), Class: name, Err: err}
	}
	return next, nil
}
