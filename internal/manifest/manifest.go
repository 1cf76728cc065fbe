// Package manifest reads the package allow-lists that decide which classes
// are enhancement targets.
//
// A manifest is a small key/value text resource:
//
//	packages: com.acme.domain, com.acme.query
//	entity-packages: com.acme.domain
//
// Lines starting with a single space continue the previous value. The
// packages key and every key ending in "-packages" contribute to the
// allow-list. Several manifests merge by uniting their package sets. When no
// manifest was read at all, nothing is restricted.
package manifest

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/roach88/classweave/internal/classname"
)

// Manifest is the merged allow-list of every source read.
type Manifest struct {
	keys     map[string][]string
	packages map[string]bool
	sources  []string
}

// New returns an empty manifest with no sources.
func New() *Manifest {
	return &Manifest{
		keys:     make(map[string][]string),
		packages: make(map[string]bool),
	}
}

// ParseError reports a malformed manifest line.
type ParseError struct {
	Source string
	Line   int
	Text   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: malformed manifest line %q", e.Source, e.Line, e.Text)
}

// Parse reads one manifest from r.
func Parse(source string, r io.Reader) (*Manifest, error) {
	m := New()
	if err := m.Add(source, r); err != nil {
		return nil, err
	}
	return m, nil
}

// Add merges one more manifest source into m.
func (m *Manifest) Add(source string, r io.Reader) error {
	entries, err := parseEntries(source, r)
	if err != nil {
		return err
	}
	m.sources = append(m.sources, source)
	for _, e := range entries {
		m.keys[e.key] = append(m.keys[e.key], e.value)
		if e.key == "packages" || strings.HasSuffix(e.key, "-packages") {
			for _, p := range splitPackages(e.value) {
				m.packages[p] = true
			}
		}
	}
	return nil
}

// AddBytes is Add for an in-memory manifest.
func (m *Manifest) AddBytes(source string, b []byte) error {
	return m.Add(source, bytes.NewReader(b))
}

// Merge unites other into m.
func (m *Manifest) Merge(other *Manifest) {
	if other == nil {
		return
	}
	m.sources = append(m.sources, other.sources...)
	for k, v := range other.keys {
		m.keys[k] = append(m.keys[k], v...)
	}
	for p := range other.packages {
		m.packages[p] = true
	}
}

// Restricted reports whether at least one manifest was read.
func (m *Manifest) Restricted() bool { return len(m.sources) > 0 }

// Sources lists the manifests read, in order.
func (m *Manifest) Sources() []string {
	out := make([]string, len(m.sources))
	copy(out, m.sources)
	return out
}

// Packages returns the allowed package prefixes, sorted.
func (m *Manifest) Packages() []string {
	out := make([]string, 0, len(m.packages))
	for p := range m.packages {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Values returns every value recorded for key (lower-cased), in read order.
func (m *Manifest) Values(key string) []string {
	return m.keys[strings.ToLower(key)]
}

// Allows reports whether name is an enhancement target. An unrestricted
// manifest allows everything.
func (m *Manifest) Allows(name classname.Name) bool {
	if !m.Restricted() {
		return true
	}
	for p := range m.packages {
		if name.InPackage(p) {
			return true
		}
	}
	return false
}

type entry struct {
	key   string
	value string
}

func parseEntries(source string, r io.Reader) ([]entry, error) {
	var entries []entry
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.HasPrefix(line, " ") && strings.TrimSpace(line) != "" {
			if len(entries) == 0 {
				return nil, &ParseError{Source: source, Line: lineNo, Text: line}
			}
			entries[len(entries)-1].value += " " + strings.TrimSpace(line)
			continue
		}
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		key, value, ok := strings.Cut(trimmed, ":")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, &ParseError{Source: source, Line: lineNo, Text: line}
		}
		entries = append(entries, entry{
			key:   strings.ToLower(strings.TrimSpace(key)),
			value: strings.TrimSpace(value),
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", source, err)
	}
	return entries, nil
}

func splitPackages(value string) []string {
	fields := strings.FieldsFunc(value, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\t'
	})
	var out []string
	for _, f := range fields {
		if strings.EqualFold(f, "none") {
			continue
		}
		p := strings.TrimSuffix(string(classname.Parse(f)), ".*")
		p = strings.TrimSuffix(p, ".")
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
