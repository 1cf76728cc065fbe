package store

import "time"

// Run is one recorded enhancement run.
type Run struct {
	ID           string
	Started      time.Time
	Finished     time.Time
	Status       string
	Roots        []string
	Packages     []string
	Inputs       int
	Working      int
	Considered   int
	Enhanced     int
	Unchanged    int
	Failed       int
	Skipped      int
	FallbackHits int64
	Error        string
}

// Duration is how long the run took.
func (r Run) Duration() time.Duration { return r.Finished.Sub(r.Started) }

// Outcome is one recorded class verdict.
type Outcome struct {
	RunID        string
	Seq          int
	Class        string
	File         string
	Status       string
	Passes       []string
	DigestBefore string
	DigestAfter  string
	Error        string
}

// Changed reports whether the run rewrote the class file.
func (o Outcome) Changed() bool {
	return o.DigestAfter != "" && o.DigestAfter != o.DigestBefore
}
