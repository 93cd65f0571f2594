package engine

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/sqtab/pkg/source"
	"github.com/umputun/sqtab/pkg/vtable"
)

var procColumns = vtable.ColumnSchema{
	{Name: "pid", Affinity: vtable.AffinityBigint},
	{Name: "name", Affinity: vtable.AffinityText},
	{Name: "threads", Affinity: vtable.AffinityInteger},
}

func prepReg(t *testing.T) *vtable.Registry {
	t.Helper()
	reg := vtable.NewRegistry()
	require.NoError(t, reg.RegisterDescriptor(source.NewStatic("processes", procColumns, []vtable.Row{
		{"pid": "1", "name": "init", "threads": "1"},
		{"pid": "42", "name": "sshd", "threads": "3"},
		{"pid": "100", "name": "bash", "threads": "many"},
	})))
	require.NoError(t, reg.RegisterDescriptor(source.NewStatic("owners", vtable.ColumnSchema{
		{Name: "pid", Affinity: vtable.AffinityBigint},
		{Name: "user", Affinity: vtable.AffinityText},
	}, []vtable.Row{{"pid": "1", "user": "root"}, {"pid": "42", "user": "sshd"}})))
	require.NoError(t, reg.RegisterDescriptor(source.NewMeta(reg)))
	return reg
}

func TestEngine_Query(t *testing.T) {
	e, err := New(context.Background(), Opts{Registry: prepReg(t), Diag: vtable.NewDiagnostics(nil)})
	require.NoError(t, err)
	defer e.Close()
	assert.Equal(t, []string{"owners", "processes", "sqtab_tables"}, e.Tables())

	t.Run("select with pushed predicate", func(t *testing.T) {
		res, err := e.Query(context.Background(), "SELECT pid, name FROM processes WHERE pid = 42")
		require.NoError(t, err)
		assert.Equal(t, []string{"pid", "name"}, res.Columns)
		assert.Equal(t, [][]any{{int64(42), "sshd"}}, res.Rows)
		assert.Empty(t, res.Warnings)
	})

	t.Run("args", func(t *testing.T) {
		res, err := e.Query(context.Background(), "SELECT name FROM processes WHERE pid > ? ORDER BY pid DESC", 10)
		require.NoError(t, err)
		assert.Equal(t, [][]any{{"bash"}, {"sshd"}}, res.Rows)
	})

	t.Run("join done by the engine", func(t *testing.T) {
		res, err := e.Query(context.Background(),
			"SELECT p.name, o.user FROM processes p JOIN owners o ON o.pid = p.pid ORDER BY p.pid")
		require.NoError(t, err)
		assert.Equal(t, [][]any{{"init", "root"}, {"sshd", "sshd"}}, res.Rows)
	})

	t.Run("coercion warnings", func(t *testing.T) {
		res, err := e.Query(context.Background(), "SELECT threads FROM processes ORDER BY pid")
		require.NoError(t, err)
		assert.Equal(t, [][]any{{int64(1)}, {int64(3)}, {int64(-1)}}, res.Rows)
		assert.Equal(t, []vtable.Warning{{Table: "processes", Column: "threads", Value: "many",
			Affinity: vtable.AffinityInteger}}, res.Warnings)

		res, err = e.Query(context.Background(), "SELECT name FROM processes")
		require.NoError(t, err)
		assert.Empty(t, res.Warnings, "warnings reset per query")
	})

	t.Run("meta table", func(t *testing.T) {
		res, err := e.Query(context.Background(), `SELECT "column", type FROM sqtab_tables WHERE "table" = 'owners'`)
		require.NoError(t, err)
		assert.Equal(t, [][]any{{"pid", "BIGINT"}, {"user", "TEXT"}}, res.Rows)
	})

	t.Run("empty result", func(t *testing.T) {
		res, err := e.Query(context.Background(), "SELECT * FROM processes WHERE name = 'nope'")
		require.NoError(t, err)
		assert.Equal(t, []string{"pid", "name", "threads"}, res.Columns)
		assert.Empty(t, res.Rows)
	})

	t.Run("bad query", func(t *testing.T) {
		_, err := e.Query(context.Background(), "SELECT * FROM nope")
		assert.ErrorContains(t, err, "can't run query")
	})
}

func TestEngine_PushdownSameAsNative(t *testing.T) {
	reg := vtable.NewRegistry()
	require.NoError(t, reg.RegisterDescriptor(source.NewStatic("numbers", vtable.ColumnSchema{
		{Name: "ino", Affinity: vtable.AffinityBigint},
		{Name: "threads", Affinity: vtable.AffinityInteger},
		{Name: "load", Affinity: vtable.AffinityDouble},
		{Name: "name", Affinity: vtable.AffinityText},
	}, []vtable.Row{
		{"ino": "9007199254740993", "threads": "1", "load": "0.5", "name": "init"},
		{"ino": "9007199254740992", "threads": "many", "load": "inf", "name": "sshd"},
		{"ino": "16", "threads": "3", "load": "1e300", "name": "bash"},
		{"ino": "abc", "threads": "", "load": "2", "name": ""},
	})))
	e, err := New(context.Background(), Opts{Registry: reg, Diag: vtable.NewDiagnostics(nil)})
	require.NoError(t, err)
	defer e.Close()

	_, err = e.Query(context.Background(), "CREATE TABLE native AS SELECT * FROM numbers")
	require.NoError(t, err)

	count := func(t *testing.T, table, where string, args ...any) int64 {
		res, err := e.Query(context.Background(), "SELECT count(*) FROM "+table+" WHERE "+where, args...)
		require.NoError(t, err)
		require.Len(t, res.Rows, 1)
		return res.Rows[0][0].(int64)
	}

	tbl := []string{
		"ino > 9007199254740992",
		"ino != 9007199254740992",
		"ino = 9007199254740993",
		"ino <= 9007199254740992.0",
		"ino < 'nan'",
		"ino != 'nan'",
		"ino < '-inf'",
		"ino > 'inf'",
		"ino < '0x1p4'",
		"ino = '0x10'",
		"ino = ' 16 '",
		"ino > 1.5",
		"ino >= -1",
		"ino BETWEEN 10 AND 9007199254740992",
		"ino IS NULL",
		"ino IS NOT NULL",
		"threads < 5",
		"threads = -1",
		"load < 'inf'",
		"load <= 'Infinity'",
		"load > 1e299",
		"load = -1",
		"name LIKE 'SS%'",
		"name GLOB 's*'",
		"name > ''",
		"name = ''",
		"name < 5",
	}
	for _, where := range tbl {
		t.Run(where, func(t *testing.T) {
			assert.Equal(t, count(t, "native", where), count(t, "numbers", where))
		})
	}

	assert.Equal(t, int64(1), count(t, "numbers", "ino > 9007199254740992"))
	assert.Equal(t, int64(4), count(t, "numbers", "ino < 'nan'"))
	assert.Equal(t, int64(1), count(t, "numbers", "ino > ?", int64(9007199254740992)))
	assert.Equal(t, count(t, "native", "ino != ?", "nan"), count(t, "numbers", "ino != ?", "nan"))
}

func TestEngine_ConcurrentQueries(t *testing.T) {
	e, err := New(context.Background(), Opts{Registry: prepReg(t), Diag: vtable.NewDiagnostics(nil)})
	require.NoError(t, err)
	defer e.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := e.Query(context.Background(), "SELECT count(*) FROM processes WHERE threads < 5")
			assert.NoError(t, err)
			assert.Equal(t, [][]any{{int64(3)}}, res.Rows)
		}()
	}
	wg.Wait()
}

func TestEngine_SelectedTables(t *testing.T) {
	e, err := New(context.Background(), Opts{Registry: prepReg(t), Tables: []string{"owners", "nope"}})
	require.Error(t, err)
	require.NotNil(t, e)
	defer e.Close()
	assert.Contains(t, err.Error(), "table nope not registered")
	assert.Equal(t, []string{"owners"}, e.Tables())
	assert.NotNil(t, e.Diagnostics())

	_, err = e.Query(context.Background(), "SELECT * FROM processes")
	assert.Error(t, err, "not attached")
}

func TestEngine_FileDatabase(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "test.db")
	reg := vtable.NewRegistry()
	require.NoError(t, reg.Register("broken", func() (vtable.Descriptor, error) { return nil, errors.New("boom") }))
	require.NoError(t, reg.RegisterDescriptor(source.NewStatic("processes", procColumns, nil)))

	e, err := New(context.Background(), Opts{DSN: dsn, Registry: reg})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	require.NotNil(t, e)

	_, err = e.Query(context.Background(), "CREATE TABLE names (name TEXT)")
	require.NoError(t, err)
	_, err = e.Query(context.Background(), "INSERT INTO names VALUES ('sshd')")
	require.NoError(t, err)
	res, err := e.Query(context.Background(), "SELECT count(*) FROM processes p JOIN names n ON n.name = p.name")
	require.NoError(t, err)
	assert.Equal(t, [][]any{{int64(0)}}, res.Rows)
	require.NoError(t, e.Close())
}
