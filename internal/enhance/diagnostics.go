package enhance

import (
	"context"
	"log/slog"
	"sync"
)

// Severity of a diagnostic.
type Severity string

const (
	SeverityInfo  Severity = "info"
	SeverityError Severity = "error"
)

// Diagnostic is one user-visible message.
type Diagnostic struct {
	Severity Severity
	Message  string
}

// Diagnostics receives progress text, per-class results and errors. It is
// the only channel through which a run talks to the developer; a run never
// aborts the process on a diagnostic.
//
// Report may be called from several goroutines at once.
type Diagnostics interface {
	Report(sev Severity, message string)
}

// DiagnosticsFunc adapts a function to Diagnostics.
type DiagnosticsFunc func(sev Severity, message string)

func (f DiagnosticsFunc) Report(sev Severity, message string) { f(sev, message) }

// SlogDiagnostics forwards diagnostics to a logger. Info diagnostics are
// logged at InfoLevel, or at the level given; errors always at ErrorLevel.
type SlogDiagnostics struct {
	Logger    *slog.Logger
	InfoLevel slog.Level
}

func (d SlogDiagnostics) Report(sev Severity, message string) {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	level := d.InfoLevel
	if sev == SeverityError {
		level = slog.LevelError
	}
	logger.Log(context.Background(), level, message)
}

// DiagnosticLog keeps diagnostics in memory.
type DiagnosticLog struct {
	mu      sync.Mutex
	entries []Diagnostic
}

func (l *DiagnosticLog) Report(sev Severity, message string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, Diagnostic{Severity: sev, Message: message})
}

// Entries returns a copy of everything reported so far.
func (l *DiagnosticLog) Entries() []Diagnostic {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Diagnostic, len(l.entries))
	copy(out, l.entries)
	return out
}

// Messages returns the messages of the given severity, in report order.
func (l *DiagnosticLog) Messages(sev Severity) []string {
	var out []string
	for _, e := range l.Entries() {
		if e.Severity == sev {
			out = append(out, e.Message)
		}
	}
	return out
}

type multiDiagnostics []Diagnostics

func (m multiDiagnostics) Report(sev Severity, message string) {
	for _, d := range m {
		d.Report(sev, message)
	}
}

// Tee returns a Diagnostics that reports to each of ds in turn.
func Tee(ds ...Diagnostics) Diagnostics {
	return multiDiagnostics(ds)
}
