package vtable

import (
	"cmp"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// sentinel is returned for numeric cells which can't be parsed
const sentinel = -1

// numberRe is the decimal number grammar the engine accepts when it converts text to a number.
// nan, inf and hex forms are text for the engine.
var numberRe = regexp.MustCompile(`^[+-]?([0-9]+\.?[0-9]*|\.[0-9]+)([eE][+-]?[0-9]+)?$`)

// parseReal parses a finite decimal float
func parseReal(s string) (float64, error) {
	if !numberRe.MatchString(s) {
		return 0, fmt.Errorf("%q is not a decimal number", s)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return v, nil
}

// number is a numeric value as the engine keeps it, an exact integer or a real
type number struct {
	i     int64
	f     float64
	isInt bool
}

// parseNumber converts text to a number the way the engine applies numeric affinity:
// surrounding spaces are allowed, integer text fitting 64 bits stays an integer,
// anything out of the decimal grammar is not a number.
func parseNumber(s string) (number, bool) {
	s = strings.Trim(s, " \t\n\v\f\r")
	if !numberRe.MatchString(s) {
		return number{}, false
	}
	if !strings.ContainsAny(s, ".eE") {
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return number{i: i, isInt: true}, true
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) { // out of range is +-Inf or 0
		return number{}, false
	}
	return number{f: f}, true
}

// compareTo compares two numbers, integers exactly, an integer and a real without losing integer precision
func (n number) compareTo(o number) int {
	switch {
	case n.isInt && o.isInt:
		return cmp.Compare(n.i, o.i)
	case !n.isInt && !o.isInt:
		return cmp.Compare(n.f, o.f)
	case n.isInt:
		return intRealCmp(n.i, o.f)
	default:
		return -intRealCmp(o.i, n.f)
	}
}

func intRealCmp(i int64, r float64) int {
	switch {
	case r < -9223372036854775808.0:
		return 1
	case r >= 9223372036854775808.0:
		return -1
	}
	if c := cmp.Compare(i, int64(r)); c != 0 {
		return c
	}
	return cmp.Compare(float64(i), r)
}

// Marshal converts a stored string value to the engine value according to the column's affinity.
// TEXT passes through, INTEGER and BIGINT parse 32 and 64-bit integers, DOUBLE parses a float.
// Malformed numeric text yields -1 and a warning in diag, it never fails.
func Marshal(table string, col Column, raw string, diag *Diagnostics) any {
	switch col.Affinity {
	case AffinityInteger:
		v, err := strconv.ParseInt(raw, 10, 32)
		if err != nil {
			diag.Warn(Warning{Table: table, Column: col.Name, Value: raw, Affinity: col.Affinity})
			return int64(sentinel)
		}
		return v
	case AffinityBigint:
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			diag.Warn(Warning{Table: table, Column: col.Name, Value: raw, Affinity: col.Affinity})
			return int64(sentinel)
		}
		return v
	case AffinityDouble:
		v, err := parseReal(raw)
		if err != nil {
			diag.Warn(Warning{Table: table, Column: col.Name, Value: raw, Affinity: col.Affinity})
			return float64(sentinel)
		}
		return v
	default:
		return raw
	}
}

// cell returns the marshaled value of column col at row of the buffer
func (t *TableContent) cell(buf *rowBuffer, row, col int) (any, error) {
	if col < 0 || col >= len(t.schema) {
		return nil, fmt.Errorf("column %d of %s, %d columns declared: %w", col, t.name, len(t.schema), ErrOutOfRange)
	}
	c := t.schema[col]
	if buf == nil || row < 0 || row >= len(buf.columns[c.Name]) {
		return nil, fmt.Errorf("row %d of %s.%s, %d rows stored: %w", row, t.name, c.Name, buf.len(), ErrOutOfRange)
	}
	return Marshal(t.name, c, buf.columns[c.Name][row], t.diag), nil
}
