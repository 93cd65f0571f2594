package vtable

import (
	"sync"
)

// rowBuffer is a materialized result of a single filter pass, stored in columnar form.
// Never mutated after it is published.
type rowBuffer struct {
	columns map[string][]string
	n       int
}

func (b *rowBuffer) len() int {
	if b == nil {
		return 0
	}
	return b.n
}

// TableContent is the per-table state owned by the adapter for the lifetime of a virtual table.
// Each filter pass publishes a new row buffer, cursors keep the buffer of their own pass.
type TableContent struct {
	name   string
	schema ColumnSchema
	desc   Descriptor
	diag   *Diagnostics

	mu      sync.Mutex
	pending ConstraintSet // set by the last planning, cleared by filter
	current *rowBuffer    // buffer of the last filter pass
}

// NewTableContent makes content for the descriptor. Name is the table name as known to the engine.
func NewTableContent(name string, desc Descriptor, diag *Diagnostics) *TableContent {
	if name == "" {
		name = desc.Name()
	}
	return &TableContent{name: name, schema: desc.Columns(), desc: desc, diag: diag}
}

// Name returns the table name
func (t *TableContent) Name() string { return t.name }

// Schema returns the table's columns
func (t *TableContent) Schema() ColumnSchema { return t.schema }

// Statement returns the schema declaration for the engine
func (t *TableContent) Statement() string { return Statement(t.name, t.schema) }

// Pending returns constraints accepted by the last planning and not yet consumed by a filter pass
func (t *TableContent) Pending() ConstraintSet {
	t.mu.Lock()
	defer t.mu.Unlock()
	res := make(ConstraintSet, len(t.pending))
	copy(res, t.pending)
	return res
}

// RowCount returns number of rows materialized by the last filter pass
func (t *TableContent) RowCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current.len()
}

// Values returns a copy of column's values materialized by the last filter pass
func (t *TableContent) Values(column string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil {
		return []string{}
	}
	vals := t.current.columns[column]
	res := make([]string, len(vals))
	copy(res, vals)
	return res
}

func (t *TableContent) setPending(set ConstraintSet) {
	t.mu.Lock()
	t.pending = set
	t.mu.Unlock()
}

func (t *TableContent) publish(buf *rowBuffer) {
	t.mu.Lock()
	t.current = buf
	t.mu.Unlock()
}

// release drops materialized data, called on table destroy or disconnect
func (t *TableContent) release() {
	t.mu.Lock()
	t.pending, t.current = nil, nil
	t.mu.Unlock()
}
