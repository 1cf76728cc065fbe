package resolve

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/klauspost/compress/zip"

	"github.com/roach88/classweave/internal/classname"
)

// Module is one compilation unit of the host project.
type Module struct {
	Name       string
	Output     string   // main class output directory
	TestOutput string   // test class output directory, optional
	Classpath  []string // directories and jar archives
	DependsOn  []string // names of modules whose outputs are visible
}

// ErrNoModule is returned by Focus when no module owns the file.
var ErrNoModule = errors.New("couldn't find the module for file")

// Classpath is a Fallback that scans class directories and jar archives.
//
// Its global scope covers every module's outputs and classpath. Focus
// narrows lookups to one module, its dependencies and their libraries, which
// avoids picking a same-named class from an unrelated module.
//
// Thread-safety: all methods are safe for concurrent use. Jar archives are
// opened on first use and kept open until Close.
type Classpath struct {
	modules []Module
	byName  map[string]Module
	global  []string

	mu    sync.RWMutex
	scope []string

	jarMu  sync.Mutex
	jars   map[string]*zip.ReadCloser
	broken map[string]bool // archives that failed to open; skipped from then on
}

// archiveError is an archive that could not be opened at all.
type archiveError struct {
	jar string
	err error
}

func (e *archiveError) Error() string { return fmt.Sprintf("open jar %s: %v", e.jar, e.err) }
func (e *archiveError) Unwrap() error { return e.err }

// NewClasspath builds a fallback over modules plus extra entries that are
// visible from every scope.
func NewClasspath(modules []Module, extra ...string) *Classpath {
	c := &Classpath{
		modules: modules,
		byName:  make(map[string]Module, len(modules)),
		jars:    make(map[string]*zip.ReadCloser),
		broken:  make(map[string]bool),
	}
	seen := make(map[string]bool)
	add := func(p string) {
		if p == "" || seen[p] {
			return
		}
		seen[p] = true
		c.global = append(c.global, p)
	}
	for _, m := range modules {
		c.byName[m.Name] = m
		add(m.Output)
		add(m.TestOutput)
	}
	for _, m := range modules {
		for _, p := range m.Classpath {
			add(p)
		}
	}
	for _, p := range extra {
		add(p)
	}
	c.scope = c.global
	return c
}

// Entries returns the entries searched under the current scope.
func (c *Classpath) Entries() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.scope))
	copy(out, c.scope)
	return out
}

// Focus narrows the scope to the module whose output or test output directory
// contains file. A test output also sees the module's main output. When no
// module owns file the global scope is restored and ErrNoModule is returned.
func (c *Classpath) Focus(file string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if file == "" {
		c.scope = c.global
		return nil
	}
	for _, m := range c.modules {
		if m.TestOutput != "" && isUnder(file, m.TestOutput) {
			c.scope = c.moduleScope(m, true)
			return nil
		}
		if m.Output != "" && isUnder(file, m.Output) {
			c.scope = c.moduleScope(m, false)
			return nil
		}
	}
	c.scope = c.global
	return fmt.Errorf("%w %s", ErrNoModule, file)
}

func (c *Classpath) moduleScope(m Module, tests bool) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(p string) {
		if p != "" && !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	if tests {
		add(m.TestOutput)
	}
	add(m.Output)

	visited := map[string]bool{m.Name: true}
	queue := append([]string(nil), m.DependsOn...)
	var deps []Module
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if visited[name] {
			continue
		}
		visited[name] = true
		dep, ok := c.byName[name]
		if !ok {
			continue
		}
		deps = append(deps, dep)
		queue = append(queue, dep.DependsOn...)
	}
	for _, d := range deps {
		add(d.Output)
	}
	for _, p := range m.Classpath {
		add(p)
	}
	for _, d := range deps {
		for _, p := range d.Classpath {
			add(p)
		}
	}
	return out
}

// FindDeclaringArtifactBytes implements Fallback.
//
// An archive that cannot be opened is skipped and the scan goes on. The
// open failure is returned once, by the first lookup that hits it, and only
// when no later entry declares the class. A class file that exists but
// cannot be read is an error straight away.
func (c *Classpath) FindDeclaringArtifactBytes(name classname.Name) ([]byte, error) {
	rel := name.RelativePath()
	var openErr error
	for _, entry := range c.Entries() {
		b, err := c.readEntry(entry, rel)
		var ae *archiveError
		if errors.As(err, &ae) {
			slog.Warn("skipping unreadable classpath archive", "jar", ae.jar, "error", ae.err)
			if openErr == nil {
				openErr = err
			}
			continue
		}
		if err != nil {
			return nil, err
		}
		if b != nil {
			return b, nil
		}
	}
	return nil, openErr
}

func (c *Classpath) readEntry(entry, rel string) ([]byte, error) {
	if isArchive(entry) {
		return c.readJar(entry, rel)
	}
	path := filepath.Join(entry, filepath.FromSlash(rel))
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return b, nil
}

func (c *Classpath) readJar(jar, rel string) ([]byte, error) {
	zr, err := c.openJar(jar)
	if err != nil {
		return nil, err
	}
	if zr == nil {
		return nil, nil
	}
	f, err := zr.Open(rel)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s!/%s: %w", jar, rel, err)
	}
	defer f.Close()
	b, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read %s!/%s: %w", jar, rel, err)
	}
	return b, nil
}

// openJar returns nil, nil for archives that do not exist or already
// failed to open.
func (c *Classpath) openJar(jar string) (*zip.ReadCloser, error) {
	c.jarMu.Lock()
	defer c.jarMu.Unlock()
	if zr, ok := c.jars[jar]; ok {
		return zr, nil
	}
	if c.broken[jar] {
		return nil, nil
	}
	if _, err := os.Stat(jar); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	zr, err := zip.OpenReader(jar)
	if err != nil {
		c.broken[jar] = true
		return nil, &archiveError{jar: jar, err: err}
	}
	c.jars[jar] = zr
	return zr, nil
}

// Close releases open jar archives.
func (c *Classpath) Close() error {
	c.jarMu.Lock()
	defer c.jarMu.Unlock()
	var errs []error
	for p, zr := range c.jars {
		if err := zr.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", p, err))
		}
	}
	c.jars = make(map[string]*zip.ReadCloser)
	return errors.Join(errs...)
}

func isArchive(p string) bool {
	ext := strings.ToLower(filepath.Ext(p))
	return ext == ".jar" || ext == ".zip"
}

func isUnder(file, dir string) bool {
	rel, err := filepath.Rel(dir, file)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}
