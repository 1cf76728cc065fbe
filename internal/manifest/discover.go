package manifest

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// DefaultNames are the manifest locations probed in every output root.
var DefaultNames = []string{
	"META-INF/ebean.mf",
	"ebean.mf",
	"META-INF/ebean-typequery.mf",
}

// Discover reads the manifests found at names inside each output root and
// every file under searchDirs whose base name matches one of names. Each file
// is read once even when it is reached both ways.
func Discover(roots, names, searchDirs []string) (*Manifest, error) {
	if names == nil {
		names = DefaultNames
	}
	m := New()
	seen := make(map[string]bool)

	read := func(file string) error {
		abs, err := filepath.Abs(file)
		if err == nil {
			file = abs
		}
		if seen[file] {
			return nil
		}
		seen[file] = true
		f, err := os.Open(file)
		if err != nil {
			return fmt.Errorf("read manifest %s: %w", file, err)
		}
		defer f.Close()
		return m.Add(file, f)
	}

	for _, root := range roots {
		for _, name := range names {
			file := filepath.Join(root, filepath.FromSlash(name))
			info, err := os.Stat(file)
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("stat manifest %s: %w", file, err)
			}
			if info.IsDir() {
				continue
			}
			if err := read(file); err != nil {
				return nil, err
			}
		}
	}

	bases := make(map[string]bool, len(names))
	for _, n := range names {
		bases[path.Base(n)] = true
	}
	for _, dir := range searchDirs {
		err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				if p == dir {
					return err
				}
				return nil
			}
			if d.IsDir() {
				if p != dir && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if bases[d.Name()] {
				return read(p)
			}
			return nil
		})
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("search manifests in %s: %w", dir, err)
		}
	}
	return m, nil
}
