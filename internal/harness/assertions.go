package harness

import (
	"bytes"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/roach88/classweave/internal/classname"
)

// evaluateRun checks a run trace against its expect clause and returns one
// message per mismatch. before and after are the class files of the output
// root around the run.
func evaluateRun(index int, trace RunTrace, expect *ExpectClause, before, after map[classname.Name][]byte) []string {
	var errs []string
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf("runs[%d]: ", index)+fmt.Sprintf(format, args...))
	}

	if expect.Status != "" && expect.Status != trace.Status {
		fail("status: expected %s, got %s", expect.Status, trace.Status)
	}
	if expect.Working != nil && *expect.Working != trace.Working {
		fail("working: expected %d, got %d", *expect.Working, trace.Working)
	}
	if expect.Considered != nil && *expect.Considered != trace.Considered {
		fail("considered: expected %d, got %d", *expect.Considered, trace.Considered)
	}
	if expect.FallbackHits != nil && *expect.FallbackHits != trace.FallbackHits {
		fail("fallback_hits: expected %d, got %d", *expect.FallbackHits, trace.FallbackHits)
	}

	outcomes := make(map[classname.Name]OutcomeTrace, len(trace.Outcomes))
	for _, o := range trace.Outcomes {
		outcomes[classname.Parse(o.Class)] = o
	}

	for _, class := range sortedKeys(expect.Outcomes) {
		want := expect.Outcomes[class]
		got, ok := outcomes[classname.Parse(class)]
		switch {
		case !ok:
			fail("outcome %s: expected %s, got no outcome", class, want)
		case got.Status != want:
			fail("outcome %s: expected %s, got %s", class, want, got.Status)
		}
	}

	for _, class := range expect.Absent {
		if got, ok := outcomes[classname.Parse(class)]; ok {
			fail("outcome %s: expected none, got %s", class, got.Status)
		}
	}

	for _, class := range sortedKeys(expect.Passes) {
		want := expect.Passes[class]
		got := outcomes[classname.Parse(class)].Passes
		if len(want) == 0 && len(got) == 0 {
			continue
		}
		if !reflect.DeepEqual(want, got) {
			fail("passes %s: expected %v, got %v", class, want, got)
		}
	}

	for _, class := range expect.Untouched {
		name := classname.Parse(class)
		b, ok := before[name]
		if !ok {
			fail("untouched %s: no such class file", class)
			continue
		}
		if !bytes.Equal(b, after[name]) {
			fail("untouched %s: file content changed", class)
		}
	}

	for _, want := range expect.Diagnostics {
		if !containsSubstring(trace.Diagnostics, want) {
			fail("diagnostics: expected a line containing %q", want)
		}
	}
	if expect.NoErrors {
		for _, d := range trace.Diagnostics {
			if strings.HasPrefix(d, "error: ") {
				fail("diagnostics: unexpected %s", d)
			}
		}
	}
	return errs
}

func containsSubstring(lines []string, want string) bool {
	for _, l := range lines {
		if strings.Contains(l, want) {
			return true
		}
	}
	return false
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
