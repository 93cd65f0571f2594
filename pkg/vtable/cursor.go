package vtable

import (
	"context"
	"fmt"

	"modernc.org/sqlite/vtab"
)

// Cursor is a single open scan over a table's materialized rows.
// It holds the buffer of its own filter pass, a later pass on the same table,
// made by another cursor, doesn't change what this cursor sees.
type Cursor struct {
	ctx   context.Context
	table *TableContent
	buf   *rowBuffer
	row   int
}

// NewCursor makes a cursor positioned at the first row of an empty buffer.
// ctx is passed to the descriptor on every filter pass.
func NewCursor(ctx context.Context, table *TableContent) *Cursor {
	return &Cursor{ctx: ctx, table: table}
}

// Filter materializes rows for the plan encoded in idxStr with bound values and rewinds the cursor
func (c *Cursor) Filter(_ int, idxStr string, vals []vtab.Value) error {
	set, err := DecodeConstraintSet(c.table.schema, idxStr)
	if err != nil {
		return fmt.Errorf("can't decode plan for %s: %w", c.table.name, err)
	}
	args := make([]any, len(vals))
	for i, v := range vals {
		args[i] = v
	}
	c.row = 0
	buf, err := c.table.materialize(c.ctx, set, args)
	if err != nil {
		c.buf = nil
		return err
	}
	c.buf = buf
	return nil
}

// Next advances the cursor by one row
func (c *Cursor) Next() error {
	c.row++
	return nil
}

// Eof reports whether the cursor is past the last row
func (c *Cursor) Eof() bool {
	return c.row >= c.buf.len()
}

// Column returns the value of the column at the current row
func (c *Cursor) Column(col int) (vtab.Value, error) {
	return c.table.cell(c.buf, c.row, col)
}

// Rowid is the current row index, stable only within one filter pass
func (c *Cursor) Rowid() (int64, error) {
	return int64(c.row), nil
}

// Close releases the buffer reference
func (c *Cursor) Close() error {
	c.buf = nil
	return nil
}
