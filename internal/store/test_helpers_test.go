package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/classweave/internal/enhance"
	"github.com/roach88/classweave/internal/pipeline"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestReport creates a completed run report with one enhanced and one
// unchanged class.
func createTestReport(id string, started time.Time) *enhance.Report {
	rep := &enhance.Report{
		RunID:    id,
		Started:  started,
		Finished: started.Add(150 * time.Millisecond),
		Status:   enhance.RunCompleted,
		Roots:    []string{"/out/classes"},
		Packages: []string{"com.x"},
		Inputs:   1,
		Working:  2,
		Outcomes: []enhance.ClassOutcome{
			{
				Name:   "com.x.Foo",
				File:   "/out/classes/com/x/Foo.class",
				Status: pipeline.StatusEnhanced,
				Passes: []string{"entity", "field-access"},
				Before: "aaaa",
				After:  "bbbb",
			},
			{
				Name:   "com.x.query.QFoo",
				File:   "/out/classes/com/x/query/QFoo.class",
				Status: pipeline.StatusUnchanged,
				Before: "cccc",
			},
		},
		Considered:   2,
		Enhanced:     1,
		Unchanged:    1,
		FallbackHits: 3,
	}
	return rep
}
