package testutil

import (
	"fmt"
	"sync"
)

// FixedRunIDs returns run IDs in sequence for deterministic reports.
//
// If no IDs are given, Generate returns "test-run-1", "test-run-2", ...
//
// Thread-safety: safe for concurrent use via internal mutex.
type FixedRunIDs struct {
	mu  sync.Mutex
	ids []string
	n   int
}

// NewFixedRunIDs creates a generator returning ids in order.
func NewFixedRunIDs(ids ...string) *FixedRunIDs {
	return &FixedRunIDs{ids: ids}
}

// Generate returns the next run ID.
// Panics if an explicit ID list has been exhausted, to surface test
// misconfiguration early.
func (g *FixedRunIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	if len(g.ids) == 0 {
		return fmt.Sprintf("test-run-%d", g.n)
	}
	if g.n > len(g.ids) {
		panic("FixedRunIDs: all run IDs exhausted")
	}
	return g.ids[g.n-1]
}
