package source

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/umputun/sqtab/pkg/vtable"
)

func TestMeta_Generate(t *testing.T) {
	reg := vtable.NewRegistry()
	require.NoError(t, reg.RegisterDescriptor(NewStatic("processes", procColumns[:2], nil)))
	require.NoError(t, reg.RegisterDescriptor(NewStatic("hosts", vtable.ColumnSchema{{Name: "host", Affinity: vtable.AffinityText}}, nil)))
	meta := NewMeta(reg)
	require.NoError(t, reg.RegisterDescriptor(meta))
	assert.Equal(t, MetaTableName, meta.Name())

	t.Run("all tables", func(t *testing.T) {
		rows, err := meta.Generate(context.Background(), vtable.NewQueryContext(meta.Columns()))
		require.NoError(t, err)
		assert.Equal(t, []vtable.Row{
			{"table": "hosts", "column": "host", "type": "TEXT", "position": "0"},
			{"table": "processes", "column": "pid", "type": "BIGINT", "position": "0"},
			{"table": "processes", "column": "name", "type": "TEXT", "position": "1"},
			{"table": "sqtab_tables", "column": "table", "type": "TEXT", "position": "0"},
			{"table": "sqtab_tables", "column": "column", "type": "TEXT", "position": "1"},
			{"table": "sqtab_tables", "column": "type", "type": "TEXT", "position": "2"},
			{"table": "sqtab_tables", "column": "position", "type": "INTEGER", "position": "3"},
		}, rows)
	})

	t.Run("table lookup", func(t *testing.T) {
		qc := vtable.NewQueryContext(meta.Columns())
		qc.Add("table", vtable.Constraint{Op: vtable.OpEQ, Expr: "processes"})
		qc.Add("position", vtable.Constraint{Op: vtable.OpGT, Expr: "0"})
		rows, err := meta.Generate(context.Background(), qc)
		require.NoError(t, err)
		assert.Equal(t, []vtable.Row{{"table": "processes", "column": "name", "type": "TEXT", "position": "1"}}, rows)
	})

	t.Run("unknown table", func(t *testing.T) {
		qc := vtable.NewQueryContext(meta.Columns())
		qc.Add("table", vtable.Constraint{Op: vtable.OpEQ, Expr: "nope"})
		rows, err := meta.Generate(context.Background(), qc)
		require.NoError(t, err)
		assert.Empty(t, rows)
	})
}

func TestMeta_FactoryError(t *testing.T) {
	reg := vtable.NewRegistry()
	require.NoError(t, reg.Register("broken", func() (vtable.Descriptor, error) { return nil, errors.New("boom") }))
	_, err := NewMeta(reg).Generate(context.Background(), vtable.NewQueryContext(NewMeta(reg).Columns()))
	assert.EqualError(t, err, "can't make descriptor for broken: boom")
}

func TestSources_SQL(t *testing.T) {
	reg := vtable.NewRegistry()
	require.NoError(t, reg.RegisterDescriptor(NewFile("processes", procColumns, "testdata/procs.json")))
	require.NoError(t, reg.RegisterDescriptor(NewMeta(reg)))

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	defer db.Close()
	att, err := vtable.Attach(context.Background(), db, reg, vtable.AttachOpts{})
	require.NoError(t, err)
	defer att.Close()

	var name string
	var cpu float64
	err = att.Conn.QueryRowContext(context.Background(),
		"SELECT name, cpu FROM processes WHERE pid > 10 AND threads = 3").Scan(&name, &cpu)
	require.NoError(t, err)
	assert.Equal(t, "sshd", name)
	assert.InDelta(t, 1.25, cpu, 0.0001)

	var count int
	err = att.Conn.QueryRowContext(context.Background(),
		`SELECT count(*) FROM sqtab_tables WHERE "table" = 'processes'`).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, len(procColumns), count)
}
