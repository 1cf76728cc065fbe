package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixedRunIDs_DefaultSequence(t *testing.T) {
	gen := NewFixedRunIDs()
	assert.Equal(t, "test-run-1", gen.Generate())
	assert.Equal(t, "test-run-2", gen.Generate())
}

func TestFixedRunIDs_ExplicitIDs(t *testing.T) {
	gen := NewFixedRunIDs("a", "b")
	assert.Equal(t, "a", gen.Generate())
	assert.Equal(t, "b", gen.Generate())
	assert.Panics(t, func() { gen.Generate() })
}

func TestFixedRunIDs_ThreadSafe(t *testing.T) {
	gen := NewFixedRunIDs()
	const n = 50

	var wg sync.WaitGroup
	seen := make(chan string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seen <- gen.Generate()
		}()
	}
	wg.Wait()
	close(seen)

	unique := make(map[string]bool)
	for id := range seen {
		require.False(t, unique[id], "duplicate id %s", id)
		unique[id] = true
	}
	assert.Len(t, unique, n)
}
