package loader

import (
	"errors"

	"github.com/roach88/classweave/internal/classname"
)

// ClassLoader is the view of a loader handed to enhancement passes.
type ClassLoader interface {
	LoadClass(name classname.Name) (*Class, error)
}

// Supertypes walks the superclass chain of name, nearest first. The walk
// stops at the root, at a class that cannot be found, or at a cycle.
// The returned error is non-nil only for failures other than not-found.
func Supertypes(l ClassLoader, name classname.Name) ([]classname.Name, error) {
	var chain []classname.Name
	seen := map[classname.Name]bool{classname.Parse(string(name)): true}

	c, err := l.LoadClass(name)
	for {
		if errors.Is(err, ErrClassNotFound) {
			return chain, nil
		}
		if err != nil {
			return chain, err
		}
		super := c.Super()
		if super == "" || seen[super] {
			return chain, nil
		}
		seen[super] = true
		chain = append(chain, super)
		c, err = l.LoadClass(super)
	}
}

// IsSubtypeOf reports whether name extends or implements any of targets,
// directly or transitively. Unknown classes end their branch of the walk.
func IsSubtypeOf(l ClassLoader, name classname.Name, targets ...classname.Name) (bool, error) {
	want := make(map[classname.Name]bool, len(targets))
	for _, t := range targets {
		want[classname.Parse(string(t))] = true
	}

	queue := []classname.Name{classname.Parse(string(name))}
	seen := map[classname.Name]bool{queue[0]: true}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]

		c, err := l.LoadClass(n)
		if errors.Is(err, ErrClassNotFound) {
			continue
		}
		if err != nil {
			return false, err
		}
		next := append([]classname.Name{c.Super()}, c.Header.Interfaces...)
		for _, s := range next {
			if s == "" || seen[s] {
				continue
			}
			if want[s] {
				return true, nil
			}
			seen[s] = true
			queue = append(queue, s)
		}
	}
	return false, nil
}
