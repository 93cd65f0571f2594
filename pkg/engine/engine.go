// Package engine runs sql queries over virtual tables. It owns the sqlite database and the single
// connection attached tables live on, queries are serialized on that connection.
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	_ "modernc.org/sqlite" // sqlite driver loaded here

	"github.com/umputun/sqtab/pkg/vtable"
)

// Engine is a sqlite database with attached virtual tables
type Engine struct {
	db  *sql.DB
	att *vtable.Attachment

	mu sync.Mutex
}

// Opts defines engine parameters
type Opts struct {
	DSN      string              // sqlite database, in-memory if empty
	Registry *vtable.Registry    // tables available for attachment, vtable.DefaultRegistry if nil
	Tables   []string            // tables to attach, all registered if empty
	Diag     *vtable.Diagnostics // warnings collector, a logging one made if nil
}

// Result is a fully read query result
type Result struct {
	Columns  []string
	Rows     [][]any
	Warnings []vtable.Warning // values which could not be converted to their column types
	Duration time.Duration
}

// New opens the database and attaches tables. A table failing to attach is reported in the returned error,
// the engine is usable with other tables in this case. Returned engine is nil on fatal errors only.
func New(ctx context.Context, opts Opts) (*Engine, error) {
	dsn := opts.DSN
	if dsn == "" {
		dsn = ":memory:"
	}
	reg := opts.Registry
	if reg == nil {
		reg = vtable.DefaultRegistry
	}
	diag := opts.Diag
	if diag == nil {
		diag = vtable.NewDiagnostics(vtable.LogSink)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("can't open database %s: %w", dsn, err)
	}

	att, err := vtable.Attach(ctx, db, reg, vtable.AttachOpts{Names: opts.Tables, Diag: diag})
	if att == nil {
		_ = db.Close()
		return nil, fmt.Errorf("can't attach tables: %w", err)
	}
	log.Printf("[INFO] database %s, %d tables attached", dsn, len(att.Tables()))
	return &Engine{db: db, att: att}, err
}

// Query runs a statement with optional args and reads all rows. []byte values are returned as strings.
func (e *Engine) Query(ctx context.Context, query string, args ...any) (*Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := time.Now()
	e.att.Diag.Reset()
	rows, err := e.att.Conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("can't run query: %w", err)
	}
	defer rows.Close() // nolint

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("can't get columns: %w", err)
	}
	res := &Result{Columns: cols, Rows: [][]any{}}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err = rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("can't scan row %d: %w", len(res.Rows), err)
		}
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[i] = string(b)
			}
		}
		res.Rows = append(res.Rows, vals)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("can't read rows: %w", err)
	}
	res.Warnings = e.att.Diag.Warnings()
	res.Duration = time.Since(st)
	log.Printf("[DEBUG] query %q returned %d rows in %v, %d warnings", query, len(res.Rows), res.Duration, e.att.Diag.Count())
	return res, nil
}

// Tables returns names of attached tables
func (e *Engine) Tables() []string {
	return e.att.Tables()
}

// Diagnostics returns the warnings collector shared by all tables
func (e *Engine) Diagnostics() *vtable.Diagnostics {
	return e.att.Diag
}

// Close drops all attached tables and closes the database
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	errs := new(multierror.Error)
	if err := e.att.Close(); err != nil {
		errs = multierror.Append(errs, err)
	}
	if err := e.db.Close(); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("can't close database: %w", err))
	}
	return errs.ErrorOrNil()
}
