// Package watch turns file system activity in output directories into
// build-completion batches.
//
// A compiler writes class files one by one. The watcher feeds every class
// file it sees created or written into an artifact.Collector and, once the
// output directories have been quiet for the debounce window, hands the
// drained artifacts to the handler as one batch.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/roach88/classweave/internal/artifact"
	"github.com/roach88/classweave/internal/classname"
	"github.com/roach88/classweave/internal/enhance"
)

// Handler receives one debounced batch. It is called from the watcher's
// goroutine; events arriving meanwhile are buffered.
type Handler func(ctx context.Context, batch []artifact.CompiledArtifact)

// Options configures a Watcher.
type Options struct {
	// Debounce is how long the output directories must stay quiet before a
	// batch is delivered.
	// Default: 300ms
	Debounce time.Duration
}

// DefaultOptions returns the defaults.
func DefaultOptions() Options {
	return Options{Debounce: 300 * time.Millisecond}
}

// Watcher watches output roots recursively.
//
// Thread-safety: Suppress may be called from any goroutine, including the
// handler.
type Watcher struct {
	roots     []string
	fsw       *fsnotify.Watcher
	handler   Handler
	debounce  time.Duration
	collector *artifact.Collector

	mu      sync.Mutex
	written map[string]string // file -> digest of content we wrote

	done     chan struct{}
	running  atomic.Bool // loop goroutine started
	stopOnce sync.Once
}

// New creates a watcher over roots. Every root must be an existing
// directory.
func New(roots []string, handler Handler, opts *Options) (*Watcher, error) {
	if len(roots) == 0 {
		return nil, errors.New("watch: no output roots")
	}
	if handler == nil {
		return nil, errors.New("watch: nil handler")
	}
	if opts == nil {
		defaults := DefaultOptions()
		opts = &defaults
	}
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultOptions().Debounce
	}

	abs := make([]string, 0, len(roots))
	for _, r := range roots {
		a, err := filepath.Abs(r)
		if err != nil {
			return nil, err
		}
		info, err := os.Stat(a)
		if err != nil {
			return nil, fmt.Errorf("watch: output root: %w", err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("watch: output root %s is not a directory", a)
		}
		abs = append(abs, a)
	}
	// Longest first so nested roots win in rootOf.
	sort.Slice(abs, func(i, j int) bool { return len(abs[i]) > len(abs[j]) })

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		roots:     abs,
		fsw:       fsw,
		handler:   handler,
		debounce:  debounce,
		collector: artifact.NewCollector(),
		written:   make(map[string]string),
		done:      make(chan struct{}),
	}, nil
}

// Start adds every directory under the roots and begins delivering batches.
// It returns once the directories are watched. Start may be called once; a
// failed Start releases the watcher as Stop would.
func (w *Watcher) Start(ctx context.Context) error {
	select {
	case <-w.done:
		return errors.New("watch: watcher is stopped")
	default:
	}
	if w.running.Load() {
		return errors.New("watch: already started")
	}
	for _, r := range w.roots {
		if err := w.addRecursive(r); err != nil {
			_ = w.Stop()
			return err
		}
	}
	w.running.Store(true)
	go w.loop(ctx)
	return nil
}

// Stop stops watching and waits for an in-flight handler to return. It is
// safe to call without Start and more than once.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		err = w.fsw.Close()
		if w.running.Load() {
			<-w.done
		} else {
			close(w.done)
		}
	})
	return err
}

// Done is closed when the watcher goroutine has exited.
func (w *Watcher) Done() <-chan struct{} { return w.done }

// Suppress ignores the next events for every file a run rewrote, as long as
// the file still holds the content the run wrote.
func (w *Watcher) Suppress(rep *enhance.Report) {
	if rep == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, o := range rep.Outcomes {
		if o.After != "" {
			w.written[o.File] = o.After
		}
	}
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // vanished while walking
		}
		if !d.IsDir() {
			return nil
		}
		return w.fsw.Add(path)
	})
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)

	var timer *time.Timer
	var timerC <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !w.accept(event) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			timerC = timer.C
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			// Log and continue: a dropped event only delays enhancement.
			slog.Warn("watch error", "error", err)
		case <-timerC:
			timer, timerC = nil, nil
			if batch := w.collector.Drain(); len(batch) > 0 {
				slog.Debug("build batch", "classes", len(batch))
				w.handler(ctx, batch)
			}
		}
	}
}

// accept records a class file event and reports whether it was collected.
func (w *Watcher) accept(event fsnotify.Event) bool {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(event.Name); err != nil {
				slog.Warn("watch directory", "path", event.Name, "error", err)
			}
			return w.collectTree(event.Name)
		}
	}
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return false
	}
	return w.collect(event.Name)
}

// collectTree collects class files already present in a directory that was
// created before it could be watched.
func (w *Watcher) collectTree(dir string) bool {
	found := false
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err == nil && !d.IsDir() && w.collect(path) {
			found = true
		}
		return nil
	})
	return found
}

func (w *Watcher) collect(path string) bool {
	if !strings.HasSuffix(path, classname.ClassExt) || enhance.IsTempFile(path) {
		return false
	}
	root, rel, ok := w.rootOf(path)
	if !ok {
		return false
	}
	if w.suppressed(path) {
		slog.Debug("ignoring own write", "path", path)
		return false
	}
	return w.collector.FileGenerated(root, rel)
}

func (w *Watcher) suppressed(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	digest, ok := w.written[path]
	if !ok {
		return false
	}
	b, err := os.ReadFile(path)
	if err == nil && enhance.Digest(b) == digest {
		return true
	}
	delete(w.written, path)
	return false
}

func (w *Watcher) rootOf(path string) (root, rel string, ok bool) {
	for _, r := range w.roots {
		rel, err := filepath.Rel(r, path)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		return r, filepath.ToSlash(rel), true
	}
	return "", "", false
}
