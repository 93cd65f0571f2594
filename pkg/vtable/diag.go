package vtable

import (
	"fmt"
	"log"
	"sync"
)

// Warning describes a cell value which could not be converted to the column's affinity
type Warning struct {
	Table    string
	Column   string
	Value    string
	Affinity Affinity
}

func (w Warning) String() string {
	return fmt.Sprintf("can't cast %s.%s (%q) to %s", w.Table, w.Column, w.Value, w.Affinity)
}

// maxWarnings limits stored warnings, a broken column in a large table would produce one per cell
const maxWarnings = 1000

// Diagnostics collects recoverable warnings produced by column marshalling.
// Sink, if set, is called for every warning, including the ones over the storage limit.
// Safe for concurrent use.
type Diagnostics struct {
	Sink func(Warning)

	mu       sync.Mutex
	warnings []Warning
	total    int
}

// NewDiagnostics makes a collector with optional sink
func NewDiagnostics(sink func(Warning)) *Diagnostics {
	return &Diagnostics{Sink: sink}
}

// LogSink reports warning with the standard logger
func LogSink(w Warning) {
	log.Printf("[WARN] %s", w)
}

// Warn records a warning. Nil receiver is allowed and drops the warning.
func (d *Diagnostics) Warn(w Warning) {
	if d == nil {
		return
	}
	d.mu.Lock()
	d.total++
	if len(d.warnings) < maxWarnings {
		d.warnings = append(d.warnings, w)
	}
	sink := d.Sink
	d.mu.Unlock()
	if sink != nil {
		sink(w)
	}
}

// Warnings returns a copy of stored warnings
func (d *Diagnostics) Warnings() []Warning {
	if d == nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	res := make([]Warning, len(d.warnings))
	copy(res, d.warnings)
	return res
}

// Count returns total number of warnings seen since the last reset
func (d *Diagnostics) Count() int {
	if d == nil {
		return 0
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.total
}

// Reset drops all collected warnings
func (d *Diagnostics) Reset() {
	if d == nil {
		return
	}
	d.mu.Lock()
	d.warnings, d.total = nil, 0
	d.mu.Unlock()
}
