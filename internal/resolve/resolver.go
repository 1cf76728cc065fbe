// Package resolve finds the bytes of a compiled class by name.
//
// Resolution walks three tiers and the first hit wins:
//
//  1. The run-local table: classes compiled by the current build, so the
//     enhancers see the just-compiled version even when an older copy exists
//     on the classpath.
//  2. The sentinel: one reserved name (the framework's base model class) that
//     always resolves to not-found, stopping supertype walks without a scan.
//  3. The fallback: a project-wide lookup for classes outside the compiled
//     set, such as library jars and modules that were not rebuilt.
//
// Read failures never abort a run. They are reported as warnings and the
// class resolves to not-found.
package resolve

import (
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/roach88/classweave/internal/classname"
)

// DefaultSentinel is the base model class of the enhancement framework.
const DefaultSentinel classname.Name = "io.ebean.Model"

// Tier identifies where a class was resolved.
type Tier int

const (
	TierNone Tier = iota
	TierRunLocal
	TierSentinel
	TierFallback
)

func (t Tier) String() string {
	switch t {
	case TierRunLocal:
		return "run-local"
	case TierSentinel:
		return "sentinel"
	case TierFallback:
		return "fallback"
	default:
		return "none"
	}
}

// Resolution is the outcome of resolving one class: either Found with the
// complete bytes, or not found.
type Resolution struct {
	Name  classname.Name
	Found bool
	Bytes []byte
	Tier  Tier // tier that decided the outcome; TierNone when every tier missed
}

// Fallback locates classes outside the current build's compiled set.
//
// FindDeclaringArtifactBytes returns (nil, nil) when the class is unknown and
// a non-nil error only when a located artifact could not be read.
type Fallback interface {
	FindDeclaringArtifactBytes(name classname.Name) ([]byte, error)
}

// Scoper is implemented by fallbacks that can narrow their search to the
// module owning a given file.
type Scoper interface {
	Focus(file string) error
}

// WarnFunc receives non-fatal resolution problems.
type WarnFunc func(message string)

// Resolver resolves class names to bytes for a single enhancement run.
//
// Thread-safety: Resolve is safe for concurrent use. The run-local table is
// owned by the resolver and never mutated after construction.
type Resolver struct {
	local    map[classname.Name]string
	sentinel classname.Name
	fallback Fallback
	warn     WarnFunc

	fallbackHits atomic.Int64
	misses       atomic.Int64
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithSentinel overrides DefaultSentinel. An empty name disables the tier.
func WithSentinel(name classname.Name) Option {
	return func(r *Resolver) { r.sentinel = name }
}

// WithFallback sets the external lookup. Without one, tier 3 always misses.
func WithFallback(f Fallback) Option {
	return func(r *Resolver) { r.fallback = f }
}

// WithWarn sets the warning sink. The default logs through slog.
func WithWarn(w WarnFunc) Option {
	return func(r *Resolver) { r.warn = w }
}

// New creates a resolver whose run-local tier is files. The map is copied.
func New(files map[classname.Name]string, opts ...Option) *Resolver {
	local := make(map[classname.Name]string, len(files))
	for n, f := range files {
		local[classname.Parse(string(n))] = f
	}
	r := &Resolver{
		local:    local,
		sentinel: DefaultSentinel,
		warn:     func(msg string) { slog.Warn(msg) },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve looks up name. Dotted and slash-separated forms are equivalent.
func (r *Resolver) Resolve(name classname.Name) Resolution {
	name = classname.Parse(string(name))
	res := Resolution{Name: name}

	if file, ok := r.local[name]; ok {
		res.Tier = TierRunLocal
		b, err := os.ReadFile(file)
		if err != nil {
			r.warn(fmt.Sprintf("WARN: Error reading file contents: %s: %v", file, err))
			r.misses.Add(1)
			return res
		}
		res.Found = true
		res.Bytes = b
		return res
	}

	if r.sentinel != "" && name == r.sentinel {
		res.Tier = TierSentinel
		return res
	}

	if r.fallback == nil {
		r.misses.Add(1)
		return res
	}
	b, err := r.fallback.FindDeclaringArtifactBytes(name)
	if err != nil {
		r.warn(fmt.Sprintf("WARN: Error reading class %s: %v", name, err))
		r.misses.Add(1)
		return res
	}
	if b == nil {
		slog.Debug("class not found", "class", name.String())
		r.misses.Add(1)
		return res
	}
	r.fallbackHits.Add(1)
	res.Tier = TierFallback
	res.Found = true
	res.Bytes = b
	return res
}

// ClassBytes returns the bytes for name, or nil when it cannot be resolved.
func (r *Resolver) ClassBytes(name classname.Name) []byte {
	res := r.Resolve(name)
	if !res.Found {
		return nil
	}
	return res.Bytes
}

// Focus narrows the fallback's search scope to the module owning file.
// It is called once per run, before resolution of the primary classes
// begins. An empty file restores the global scope.
func (r *Resolver) Focus(file string) {
	s, ok := r.fallback.(Scoper)
	if !ok {
		return
	}
	if err := s.Focus(file); err != nil {
		r.warn(fmt.Sprintf("WARN: %v", err))
	}
}

// IsLocal reports whether name is in the run-local table.
func (r *Resolver) IsLocal(name classname.Name) bool {
	_, ok := r.local[classname.Parse(string(name))]
	return ok
}

// FallbackHits returns how many classes were resolved by the fallback.
func (r *Resolver) FallbackHits() int64 { return r.fallbackHits.Load() }

// Misses returns how many lookups resolved to not-found, excluding the
// sentinel.
func (r *Resolver) Misses() int64 { return r.misses.Load() }
