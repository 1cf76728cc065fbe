package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/roach88/classweave/internal/classname"
)

// CompiledArtifact is one freshly compiled class file.
type CompiledArtifact struct {
	Name       classname.Name
	File       string // absolute path to the .class file
	OutputRoot string
}

func (a CompiledArtifact) String() string {
	return fmt.Sprintf("CompiledArtifact[%s %s]", a.Name, a.File)
}

// New records the class at outputRoot/relativePath. The file must exist and
// the path must name a .class file.
func New(outputRoot, relativePath string) (CompiledArtifact, error) {
	name := classname.FromRelativePath(filepath.ToSlash(relativePath))
	if name == "" {
		return CompiledArtifact{}, fmt.Errorf("not a class file: %s", relativePath)
	}
	root, err := filepath.Abs(outputRoot)
	if err != nil {
		return CompiledArtifact{}, fmt.Errorf("resolve output root %s: %w", outputRoot, err)
	}
	file := filepath.Join(root, filepath.FromSlash(relativePath))
	info, err := os.Stat(file)
	if err != nil {
		return CompiledArtifact{}, fmt.Errorf("stat %s: %w", file, err)
	}
	if info.IsDir() {
		return CompiledArtifact{}, fmt.Errorf("%s is a directory", file)
	}
	return CompiledArtifact{Name: name, File: file, OutputRoot: root}, nil
}

// FromFile records a class given its absolute (or root-relative) file path
// under outputRoot.
func FromFile(outputRoot, file string) (CompiledArtifact, error) {
	root, err := filepath.Abs(outputRoot)
	if err != nil {
		return CompiledArtifact{}, fmt.Errorf("resolve output root %s: %w", outputRoot, err)
	}
	if !filepath.IsAbs(file) {
		file = filepath.Join(root, file)
	}
	rel, err := filepath.Rel(root, file)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return CompiledArtifact{}, fmt.Errorf("%s is not under output root %s", file, root)
	}
	return New(root, rel)
}

// WorkingSet is an ordered, identity-deduplicated set of artifacts.
// The first artifact recorded for an identity wins.
type WorkingSet struct {
	order []classname.Name
	byID  map[classname.Name]CompiledArtifact
}

// NewWorkingSet creates an empty working set.
func NewWorkingSet() *WorkingSet {
	return &WorkingSet{byID: make(map[classname.Name]CompiledArtifact)}
}

// Add inserts a unless its identity is already present.
// Returns true if a was added.
func (w *WorkingSet) Add(a CompiledArtifact) bool {
	if _, ok := w.byID[a.Name]; ok {
		return false
	}
	w.byID[a.Name] = a
	w.order = append(w.order, a.Name)
	return true
}

// Get returns the artifact recorded for name.
func (w *WorkingSet) Get(name classname.Name) (CompiledArtifact, bool) {
	a, ok := w.byID[name]
	return a, ok
}

// Len returns the number of artifacts.
func (w *WorkingSet) Len() int { return len(w.order) }

// Artifacts returns the artifacts in insertion order.
func (w *WorkingSet) Artifacts() []CompiledArtifact {
	out := make([]CompiledArtifact, 0, len(w.order))
	for _, n := range w.order {
		out = append(out, w.byID[n])
	}
	return out
}

// Files returns identity to file path, suitable for a run-local table.
func (w *WorkingSet) Files() map[classname.Name]string {
	out := make(map[classname.Name]string, len(w.byID))
	for n, a := range w.byID {
		out[n] = a.File
	}
	return out
}

// Filter returns a new working set holding the artifacts keep accepts,
// preserving order.
func (w *WorkingSet) Filter(keep func(CompiledArtifact) bool) *WorkingSet {
	out := NewWorkingSet()
	for _, n := range w.order {
		if a := w.byID[n]; keep(a) {
			out.Add(a)
		}
	}
	return out
}
