// Package source provides generic table descriptors: static tables with rows defined inline or
// loaded from a data file, and the registry meta-table describing all registered tables.
package source

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/go-pkgz/syncs"

	"github.com/umputun/sqtab/pkg/vtable"
)

// Static is a table descriptor over a fixed set of rows. Rows are either given inline or read from
// a data file, the file is re-read on the next filter pass after its modification time changes.
// Rows are filtered by the pushed constraints before they are returned.
type Static struct {
	name    string
	columns vtable.ColumnSchema
	file    string

	mu    sync.Mutex
	rows  []vtable.Row
	mtime time.Time
}

// NewStatic makes a table with inline rows
func NewStatic(name string, columns vtable.ColumnSchema, rows []vtable.Row) *Static {
	if rows == nil {
		rows = []vtable.Row{}
	}
	return &Static{name: name, columns: columns, rows: rows}
}

// NewFile makes a table with rows from the data file. The file is not read until Load or Generate.
func NewFile(name string, columns vtable.ColumnSchema, file string) *Static {
	return &Static{name: name, columns: columns, file: file}
}

// Name returns table name
func (s *Static) Name() string { return s.name }

// Columns returns table schema
func (s *Static) Columns() vtable.ColumnSchema { return s.columns }

// File returns the data file, empty for inline tables
func (s *Static) File() string { return s.file }

// Generate returns rows matching all constraints of qc
func (s *Static) Generate(ctx context.Context, qc vtable.QueryContext) ([]vtable.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.Load(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	rows := s.rows
	s.mu.Unlock()

	res := make([]vtable.Row, 0, len(rows))
	for _, r := range rows {
		if qc.Matches(r) {
			res = append(res, r)
		}
	}
	log.Printf("[DEBUG] table %s, %d of %d rows matched", s.name, len(res), len(rows))
	return res, nil
}

// Load reads the data file if it was never read or changed since the last read. No-op for inline tables.
func (s *Static) Load() error {
	if s.file == "" {
		return nil
	}
	fi, err := os.Stat(s.file)
	if err != nil {
		return fmt.Errorf("can't stat data file of %s: %w", s.name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rows != nil && fi.ModTime().Equal(s.mtime) {
		return nil
	}
	rows, err := ReadRows(s.name, s.file)
	if err != nil {
		return fmt.Errorf("can't load table %s: %w", s.name, err)
	}
	s.rows, s.mtime = rows, fi.ModTime()
	log.Printf("[DEBUG] table %s loaded %d rows from %s", s.name, len(rows), s.file)
	return nil
}

// LoadAll preloads file tables concurrently, at most concurrency files at once.
// All tables are tried, the error reports every failed one.
func LoadAll(ctx context.Context, tables []*Static, concurrency int) error {
	if concurrency < 1 {
		concurrency = 1
	}
	st := time.Now()
	wg := syncs.NewErrSizedGroup(concurrency, syncs.Context(ctx), syncs.Preemptive)
	for _, t := range tables {
		wg.Go(func() error {
			return t.Load()
		})
	}
	if err := wg.Wait(); err != nil {
		return err
	}
	log.Printf("[DEBUG] %d tables loaded in %v", len(tables), time.Since(st))
	return nil
}
