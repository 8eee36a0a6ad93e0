package errors

import (
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Severity classifies a diagnostic.
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityError
)

func (s Severity) String() string {
	if s == SeverityError {
		return "error"
	}
	return "warning"
}

// Diagnostic is one reported problem. Err is usually an *Error carrying the
// symbol and source location.
type Diagnostic struct {
	Severity Severity
	Err      error
}

func (d Diagnostic) String() string {
	return d.Severity.String() + ": " + d.Err.Error()
}

// Diagnostics aggregates per-member failures for a whole run. The zero value
// is ready to use and safe for concurrent use.
type Diagnostics struct {
	mu    sync.Mutex
	items []Diagnostic
}

// Add records err with the given severity. A nil err is ignored.
func (d *Diagnostics) Add(sev Severity, err error) {
	if err == nil {
		return
	}
	d.mu.Lock()
	d.items = append(d.items, Diagnostic{Severity: sev, Err: err})
	d.mu.Unlock()
}

// Warn records a non-fatal diagnostic.
func (d *Diagnostics) Warn(format string, args ...any) {
	d.Add(SeverityWarning, fmt.Errorf(format, args...))
}

// Merge appends all diagnostics of other.
func (d *Diagnostics) Merge(other *Diagnostics) {
	if other == nil || other == d {
		return
	}
	items := other.Items()
	d.mu.Lock()
	d.items = append(d.items, items...)
	d.mu.Unlock()
}

// Items returns a snapshot sorted by symbol so parallel runs report
// deterministically.
func (d *Diagnostics) Items() []Diagnostic {
	d.mu.Lock()
	out := make([]Diagnostic, len(d.items))
	copy(out, d.items)
	d.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		return symbolOf(out[i].Err) < symbolOf(out[j].Err)
	})
	return out
}

// Len returns the number of recorded diagnostics.
func (d *Diagnostics) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.items)
}

// Fatal reports whether any error-severity diagnostic was recorded.
func (d *Diagnostics) Fatal() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, it := range d.items {
		if it.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Err joins every error-severity diagnostic, or returns nil when the run
// has none.
func (d *Diagnostics) Err() error {
	var errs []error
	for _, it := range d.Items() {
		if it.Severity == SeverityError {
			errs = append(errs, it.Err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return stderrors.Join(errs...)
}

func (d *Diagnostics) String() string {
	items := d.Items()
	lines := make([]string, len(items))
	for i, it := range items {
		lines[i] = it.String()
	}
	return strings.Join(lines, "\n")
}

func symbolOf(err error) string {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Symbol
	}
	return ""
}
