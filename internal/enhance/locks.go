package enhance

import (
	"context"
	"sort"
	"sync"
)

// rootLocks serialises runs that share an output root. Each root is a
// one-slot semaphore so waiting honours context cancellation.
type rootLocks struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func newRootLocks() *rootLocks {
	return &rootLocks{slots: make(map[string]chan struct{})}
}

func (l *rootLocks) slot(root string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.slots[root]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[root] = ch
	}
	return ch
}

// acquire takes every root in sorted order, so two runs over overlapping
// roots cannot deadlock. The returned func releases them.
func (l *rootLocks) acquire(ctx context.Context, roots []string) (func(), error) {
	sorted := append([]string(nil), roots...)
	sort.Strings(sorted)

	var held []chan struct{}
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			<-held[i]
		}
	}
	for _, root := range sorted {
		ch := l.slot(root)
		select {
		case ch <- struct{}{}:
			held = append(held, ch)
		case <-ctx.Done():
			release()
			return nil, ctx.Err()
		}
	}
	return release, nil
}

// fileLocks is a mutex per output file, dropped once no writer holds it.
type fileLocks struct {
	mu    sync.Mutex
	locks map[string]*fileLock
}

type fileLock struct {
	sync.Mutex
	refs int
}

func newFileLocks() *fileLocks {
	return &fileLocks{locks: make(map[string]*fileLock)}
}

func (f *fileLocks) lock(path string) func() {
	f.mu.Lock()
	l, ok := f.locks[path]
	if !ok {
		l = &fileLock{}
		f.locks[path] = l
	}
	l.refs++
	f.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		f.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(f.locks, path)
		}
		f.mu.Unlock()
	}
}
