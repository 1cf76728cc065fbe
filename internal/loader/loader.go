// Package loader defines classes on demand from resolved bytes.
//
// The loader answers the questions enhancers ask about a hierarchy (what
// does this class extend, which interfaces does it implement) without
// re-reading disk. Each identity is defined at most once per loader, even
// under concurrent requests, and a class that cannot be found is reported as
// ErrClassNotFound so a supertype walk can end gracefully.
//
// A Loader belongs to exactly one enhancement run and must not be reused.
package loader

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/roach88/classweave/internal/classfile"
	"github.com/roach88/classweave/internal/classname"
)

// ErrClassNotFound is the recoverable "no such class" signal.
var ErrClassNotFound = errors.New("class not found")

// Source says where a class came from.
type Source int

const (
	SourceParent Source = iota + 1
	SourceDefined
)

// Class is a class known to the loader.
type Class struct {
	Name   classname.Name
	Header classfile.Header
	Bytes  []byte // nil for classes supplied by the parent without bytes
	Source Source
}

// Super returns the superclass name, or "" at the root of a hierarchy.
func (c *Class) Super() classname.Name { return c.Header.SuperName }

// ResolutionError reports bytes that were found but could not be defined.
type ResolutionError struct {
	Name classname.Name
	Err  error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("define %s: %v", e.Name, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// BytesSource supplies raw class bytes; nil means not found.
// *resolve.Resolver implements it.
type BytesSource interface {
	ClassBytes(name classname.Name) []byte
}

// Parent is consulted before the loader defines anything itself.
// It returns ErrClassNotFound (possibly wrapped) on a miss.
type Parent interface {
	LoadClass(name classname.Name) (*Class, error)
}

// DefineFunc turns raw bytes into a Class.
type DefineFunc func(name classname.Name, b []byte) (*Class, error)

// DefineHeader is the default DefineFunc: it reads the class header and
// checks that the bytes declare the requested name.
func DefineHeader(name classname.Name, b []byte) (*Class, error) {
	h, err := classfile.ReadHeader(b)
	if err != nil {
		return nil, err
	}
	if h.Name != name {
		return nil, fmt.Errorf("bytes declare %s", h.Name)
	}
	return &Class{Name: name, Header: h, Bytes: b, Source: SourceDefined}, nil
}

// Loader is a resolution-aware class loader.
//
// Thread-safety: LoadClass is safe for concurrent use. Concurrent requests
// for the same identity share one definition.
type Loader struct {
	parent Parent
	source BytesSource
	define DefineFunc

	mu      sync.RWMutex
	defined map[classname.Name]*Class
	missing map[classname.Name]bool
	flight  singleflight.Group

	defines atomic.Int64
}

// Option configures a Loader.
type Option func(*Loader)

// WithParent sets the delegation parent.
func WithParent(p Parent) Option {
	return func(l *Loader) { l.parent = p }
}

// WithDefine replaces DefineHeader.
func WithDefine(d DefineFunc) Option {
	return func(l *Loader) { l.define = d }
}

// New creates a loader over source.
func New(source BytesSource, opts ...Option) *Loader {
	l := &Loader{
		source:  source,
		define:  DefineHeader,
		defined: make(map[classname.Name]*Class),
		missing: make(map[classname.Name]bool),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LoadClass returns the class named name. The parent is asked first; on a
// miss the bytes are resolved and defined into this loader.
func (l *Loader) LoadClass(name classname.Name) (*Class, error) {
	name = classname.Parse(string(name))
	if name == "" {
		return nil, ErrClassNotFound
	}

	if l.parent != nil {
		c, err := l.parent.LoadClass(name)
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, ErrClassNotFound) {
			return nil, err
		}
	}

	if c, ok, err := l.cached(name); ok {
		return c, err
	}

	v, err, _ := l.flight.Do(string(name), func() (any, error) {
		if c, ok, err := l.cached(name); ok {
			return c, err
		}
		return l.defineMissing(name)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Class), nil
}

func (l *Loader) cached(name classname.Name) (*Class, bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if c, ok := l.defined[name]; ok {
		return c, true, nil
	}
	if l.missing[name] {
		return nil, true, fmt.Errorf("%w: %s", ErrClassNotFound, name)
	}
	return nil, false, nil
}

func (l *Loader) defineMissing(name classname.Name) (*Class, error) {
	b := l.source.ClassBytes(name)
	if b == nil {
		l.mu.Lock()
		l.missing[name] = true
		l.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrClassNotFound, name)
	}

	c, err := l.define(name, b)
	if err != nil {
		return nil, &ResolutionError{Name: name, Err: err}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if prev, ok := l.defined[name]; ok {
		return nil, &ResolutionError{Name: name, Err: fmt.Errorf("duplicate definition (already defined from %d bytes)", len(prev.Bytes))}
	}
	l.defined[name] = c
	l.defines.Add(1)
	return c, nil
}

// Defined reports whether name has been defined by this loader.
func (l *Loader) Defined(name classname.Name) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.defined[classname.Parse(string(name))]
	return ok
}

// DefineCount returns the number of classes defined so far.
func (l *Loader) DefineCount() int64 { return l.defines.Load() }

// ResourceBytes returns the bytes behind name without defining it. It
// prefers an existing definition.
func (l *Loader) ResourceBytes(name classname.Name) []byte {
	name = classname.Parse(string(name))
	l.mu.RLock()
	c, ok := l.defined[name]
	l.mu.RUnlock()
	if ok {
		return c.Bytes
	}
	return l.source.ClassBytes(name)
}
