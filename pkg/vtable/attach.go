package vtable

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"modernc.org/sqlite/vtab"
)

// ModuleName is the virtual table module registered with the driver, once per process.
// Tables are created as `USING sqtab('<attachment id>', '<table name>')`.
const ModuleName = "sqtab"

// Attachment is a set of virtual tables attached to a single engine connection.
// Virtual tables are created in the temp schema, they exist only for the lifetime of Conn.
type Attachment struct {
	ID   string
	Conn *sql.Conn
	Diag *Diagnostics

	ctx       context.Context
	factories map[string]Factory

	mu       sync.Mutex
	tables   []string
	contents map[string]*TableContent
}

// AttachOpts defines optional parameters of Attach
type AttachOpts struct {
	Names []string     // tables to attach, all registered if empty
	Diag  *Diagnostics // warnings collector, a logging one made if nil
}

// registerModule is vtab.RegisterModule, replaced in tests
var registerModule = vtab.RegisterModule

// installed tracks the single module registration, the driver keeps modules for the process lifetime
var installed struct {
	sync.Mutex
	done bool
}

// live maps attachment id to open attachments, module.Create resolves tables through it
var live = struct {
	sync.RWMutex
	m map[string]*Attachment
}{m: make(map[string]*Attachment)}

// installModule registers the module with the driver if not registered yet
func installModule(db *sql.DB) error {
	installed.Lock()
	defer installed.Unlock()
	if installed.done {
		return nil
	}
	if err := registerModule(db, ModuleName, &module{}); err != nil {
		return fmt.Errorf("can't register module %s: %w", ModuleName, err)
	}
	installed.done = true
	return nil
}

// lookupAttachment returns a live attachment by id
func lookupAttachment(id string) (*Attachment, bool) {
	live.RLock()
	defer live.RUnlock()
	a, ok := live.m[id]
	return a, ok
}

// Attach creates a session-scoped virtual table for every table name on a new connection of db.
// The module is installed by the driver when a connection opens, so the first db used with Attach
// must not have open connections yet. ctx is kept and passed to every Generate call.
// A table failing to attach is skipped and reported in the returned error, other tables stay usable.
// Returned attachment is nil only if the module can't be registered or the connection can't be opened.
func Attach(ctx context.Context, db *sql.DB, reg *Registry, opts AttachOpts) (*Attachment, error) {
	if err := installModule(db); err != nil {
		return nil, err
	}

	names := opts.Names
	if len(names) == 0 {
		names = reg.Names()
	}
	diag := opts.Diag
	if diag == nil {
		diag = NewDiagnostics(LogSink)
	}

	res := &Attachment{
		ID:        strings.ReplaceAll(uuid.New().String(), "-", ""),
		Diag:      diag,
		ctx:       ctx,
		factories: make(map[string]Factory, len(names)),
		contents:  make(map[string]*TableContent),
	}

	errs := new(multierror.Error)
	for _, name := range names {
		factory, ok := reg.Get(name)
		if !ok {
			errs = multierror.Append(errs, fmt.Errorf("table %s not registered", name))
			continue
		}
		res.factories[name] = factory
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("can't open connection: %w", err)
	}
	res.Conn = conn

	live.Lock()
	live.m[res.ID] = res
	live.Unlock()

	for _, name := range names {
		if _, ok := res.factories[name]; !ok {
			continue
		}
		stmt := fmt.Sprintf("CREATE VIRTUAL TABLE temp.%s USING %s(%s, %s)", quoteIdent(name), ModuleName, quoteString(res.ID), quoteString(name))
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("can't create virtual table %s: %w", name, err))
			continue
		}
		res.mu.Lock()
		res.tables = append(res.tables, name)
		res.mu.Unlock()
	}

	if err := errs.ErrorOrNil(); err != nil {
		log.Printf("[WARN] attached %d of %d tables: %v", len(res.Tables()), len(names), err)
		return res, err
	}
	log.Printf("[DEBUG] attached %d tables, id %s", len(names), res.ID)
	return res, nil
}

// Tables returns names of successfully attached tables, in attach order
func (a *Attachment) Tables() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	res := make([]string, len(a.tables))
	copy(res, a.tables)
	return res
}

// Content returns the content of an attached table
func (a *Attachment) Content(name string) (*TableContent, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	c, ok := a.contents[name]
	return c, ok
}

// Close closes the connection, dropping all attached tables with it, and forgets the attachment
func (a *Attachment) Close() error {
	defer func() {
		live.Lock()
		delete(live.m, a.ID)
		live.Unlock()
	}()
	if a.Conn == nil {
		return nil
	}
	if err := a.Conn.Close(); err != nil {
		return fmt.Errorf("can't close connection: %w", err)
	}
	return nil
}

func (a *Attachment) track(c *TableContent) {
	a.mu.Lock()
	a.contents[c.name] = c
	a.mu.Unlock()
}

func quoteString(s string) string {
	return `'` + strings.ReplaceAll(s, `'`, `''`) + `'`
}

// unquoteArg strips sql string quotes from a module argument
func unquoteArg(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\'' {
		return strings.ReplaceAll(s[1:len(s)-1], `''`, `'`)
	}
	return s
}
