package artifact

import (
	"log/slog"
	"sync"

	"github.com/roach88/classweave/internal/classname"
)

// Collector accumulates the class files reported by a build until the build
// completes.
//
// Thread-safety: safe for concurrent use; build tools report files from
// several compiler threads.
type Collector struct {
	mu    sync.Mutex
	order []classname.Name
	files map[classname.Name]CompiledArtifact
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{files: make(map[classname.Name]CompiledArtifact)}
}

// FileGenerated records outputRoot/relativePath if it is an existing .class
// file. Anything else is ignored. A later report for the same class replaces
// the earlier one but keeps its position.
func (c *Collector) FileGenerated(outputRoot, relativePath string) bool {
	if outputRoot == "" || relativePath == "" {
		return false
	}
	a, err := New(outputRoot, relativePath)
	if err != nil {
		slog.Debug("ignoring generated file", "root", outputRoot, "path", relativePath, "reason", err)
		return false
	}
	c.Add(a)
	return true
}

// Add records an artifact directly.
func (c *Collector) Add(a CompiledArtifact) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.files[a.Name]; !ok {
		c.order = append(c.order, a.Name)
	}
	c.files[a.Name] = a
}

// Len returns the number of classes collected so far.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.order)
}

// Drain returns the collected artifacts in first-reported order and resets
// the collector for the next build.
func (c *Collector) Drain() []CompiledArtifact {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]CompiledArtifact, 0, len(c.order))
	for _, n := range c.order {
		out = append(out, c.files[n])
	}
	c.order = nil
	c.files = make(map[classname.Name]CompiledArtifact)
	return out
}
