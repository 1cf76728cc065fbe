package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/roach88/classweave/internal/classname"
)

// Template derives a companion class path from a primary class.
//
// The pattern is a slash-separated path relative to the output root, without
// the .class extension, in which {pkg} is replaced by the primary class's
// package directory and {short} by its simple name.
type Template string

// Default companion templates: the generated query bean and the generated
// association query bean, in that order.
var DefaultTemplates = []Template{
	"{pkg}/query/Q{short}",
	"{pkg}/query/assoc/QAssoc{short}",
}

// Validate checks the template references {short}.
func (t Template) Validate() error {
	if !strings.Contains(string(t), "{short}") {
		return fmt.Errorf("companion template %q must contain {short}", t)
	}
	return nil
}

// Apply returns the root-relative class path the template yields for name.
// Classes in the default package have no companions; ok is false for them.
func (t Template) Apply(name classname.Name) (rel string, ok bool) {
	pkg := name.PackageDir()
	if pkg == "" {
		return "", false
	}
	p := strings.ReplaceAll(string(t), "{pkg}", pkg)
	p = strings.ReplaceAll(p, "{short}", name.Short())
	return strings.TrimPrefix(p, "/") + classname.ClassExt, true
}

// Expander enlarges a primary artifact into its generated siblings.
//
// Expand consults the filesystem at call time and keeps no state, so results
// must not be memoized across runs.
type Expander struct {
	templates []Template
}

// NewExpander creates an expander applying templates in order.
// A nil slice selects DefaultTemplates.
func NewExpander(templates []Template) (*Expander, error) {
	if templates == nil {
		templates = DefaultTemplates
	}
	for _, t := range templates {
		if err := t.Validate(); err != nil {
			return nil, err
		}
	}
	cp := make([]Template, len(templates))
	copy(cp, templates)
	return &Expander{templates: cp}, nil
}

// Expand returns the artifact followed by every companion whose file exists
// under the same output root, in template order. A missing companion is not
// an error.
func (e *Expander) Expand(a CompiledArtifact) []CompiledArtifact {
	out := []CompiledArtifact{a}
	for _, t := range e.templates {
		rel, ok := t.Apply(a.Name)
		if !ok {
			continue
		}
		file := filepath.Join(a.OutputRoot, filepath.FromSlash(rel))
		info, err := os.Stat(file)
		if err != nil || info.IsDir() {
			continue
		}
		name := classname.FromRelativePath(rel)
		if name == a.Name {
			continue
		}
		out = append(out, CompiledArtifact{Name: name, File: file, OutputRoot: a.OutputRoot})
	}
	return out
}

// ExpandAll expands every artifact and unions the results by identity. A class
// reached both directly and as a companion appears once, at its first position.
func (e *Expander) ExpandAll(artifacts []CompiledArtifact) *WorkingSet {
	ws := NewWorkingSet()
	for _, a := range artifacts {
		for _, c := range e.Expand(a) {
			ws.Add(c)
		}
	}
	return ws
}
