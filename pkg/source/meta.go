package source

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-pkgz/stringutils"

	"github.com/umputun/sqtab/pkg/vtable"
)

// MetaTableName is the name of the table describing all registered tables
const MetaTableName = "sqtab_tables"

// Meta is a table listing every column of every table in the registry, one row per column
type Meta struct {
	reg *vtable.Registry
}

// NewMeta makes the meta-table for reg
func NewMeta(reg *vtable.Registry) *Meta {
	return &Meta{reg: reg}
}

// Name returns meta-table name
func (m *Meta) Name() string { return MetaTableName }

// Columns returns meta-table schema
func (m *Meta) Columns() vtable.ColumnSchema {
	return vtable.ColumnSchema{
		{Name: "table", Affinity: vtable.AffinityText},
		{Name: "column", Affinity: vtable.AffinityText},
		{Name: "type", Affinity: vtable.AffinityText},
		{Name: "position", Affinity: vtable.AffinityInteger},
	}
}

// Generate lists columns of registered tables. Equality constraints on "table" limit which
// descriptors are made, so a lookup of a single table doesn't touch the others.
func (m *Meta) Generate(ctx context.Context, qc vtable.QueryContext) ([]vtable.Row, error) {
	names := m.reg.Names()
	if eq := qc.Constraints["table"].GetAll(vtable.OpEQ); len(eq) > 0 {
		names = stringutils.Intersection(names, eq)
	}

	res := []vtable.Row{}
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var cols vtable.ColumnSchema
		if name == MetaTableName {
			cols = m.Columns() // the registered factory may wrap this very table
		} else {
			f, ok := m.reg.Get(name)
			if !ok {
				continue
			}
			d, err := f()
			if err != nil {
				return nil, fmt.Errorf("can't make descriptor for %s: %w", name, err)
			}
			if d == nil {
				continue
			}
			cols = d.Columns()
		}
		for i, c := range cols {
			row := vtable.Row{"table": name, "column": c.Name, "type": string(c.Affinity), "position": strconv.Itoa(i)}
			if qc.Matches(row) {
				res = append(res, row)
			}
		}
	}
	return res, nil
}
