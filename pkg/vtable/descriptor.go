package vtable

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Affinity is a declared storage class of a column
type Affinity string

// enum of supported affinities
const (
	AffinityText    Affinity = "TEXT"
	AffinityInteger Affinity = "INTEGER"
	AffinityBigint  Affinity = "BIGINT"
	AffinityDouble  Affinity = "DOUBLE"
)

// ParseAffinity returns affinity for a type name, case-insensitive
func ParseAffinity(s string) (Affinity, error) {
	a := Affinity(strings.ToUpper(strings.TrimSpace(s)))
	if !a.Valid() {
		return "", fmt.Errorf("unknown column type %q", s)
	}
	return a, nil
}

// Valid reports whether affinity is one of the supported ones
func (a Affinity) Valid() bool {
	switch a {
	case AffinityText, AffinityInteger, AffinityBigint, AffinityDouble:
		return true
	}
	return false
}

// Numeric is true for integer and floating point affinities
func (a Affinity) Numeric() bool {
	return a == AffinityInteger || a == AffinityBigint || a == AffinityDouble
}

// Column is a single column declaration
type Column struct {
	Name     string
	Affinity Affinity
}

// ColumnSchema is an ordered list of columns. The order defines the declared schema
// and the positional index used by the engine.
type ColumnSchema []Column

// Names returns column names in schema order
func (s ColumnSchema) Names() []string {
	res := make([]string, len(s))
	for i, c := range s {
		res[i] = c.Name
	}
	return res
}

// Validate checks names are non-empty and unique and affinities are supported
func (s ColumnSchema) Validate() error {
	if len(s) == 0 {
		return errors.New("no columns")
	}
	seen := make(map[string]bool, len(s))
	for i, c := range s {
		if c.Name == "" {
			return fmt.Errorf("column #%d has empty name", i)
		}
		if seen[c.Name] {
			return fmt.Errorf("duplicate column %q", c.Name)
		}
		seen[c.Name] = true
		if !c.Affinity.Valid() {
			return fmt.Errorf("column %q has unknown type %q", c.Name, c.Affinity)
		}
	}
	return nil
}

// Row is a single produced row, column name to value. Missing columns are stored as empty strings.
type Row map[string]string

// Descriptor is implemented by every data source exposed as a virtual table.
// Generate is invoked once per query execution with constraints the engine pushed down,
// it can return rows in any order, the order is preserved in the result set.
// Constraints are advisory, the engine re-checks every predicate on returned rows.
type Descriptor interface {
	Name() string
	Columns() ColumnSchema
	Generate(ctx context.Context, qc QueryContext) ([]Row, error)
}

// Statement makes CREATE TABLE statement declaring the table's columns and types to the engine
func Statement(name string, schema ColumnSchema) string {
	cols := make([]string, 0, len(schema))
	for _, c := range schema {
		cols = append(cols, quoteIdent(c.Name)+" "+string(c.Affinity))
	}
	return fmt.Sprintf("CREATE TABLE %s(%s)", quoteIdent(name), strings.Join(cols, ", "))
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
