package vtable

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"
)

// materialize runs a filter pass: binds values to the planned constraints, builds the query context,
// invokes the descriptor and stores produced rows in a new buffer. The buffer becomes the table's
// current one and is returned to the caller (cursor). On error the current buffer stays untouched.
func (t *TableContent) materialize(ctx context.Context, set ConstraintSet, vals []any) (*rowBuffer, error) {
	t.setPending(nil) // planned predicates must not leak into unrelated passes

	if len(vals) > len(set) {
		return nil, fmt.Errorf("table %s got %d values for %d constraints: %w", t.name, len(vals), len(set), ErrOutOfRange)
	}

	qc := NewQueryContext(t.schema)
	for i, v := range vals {
		c := set[i]
		c.Expr = exprString(v)
		qc.Add(c.Column, c.Constraint)
	}

	st := time.Now()
	rows, err := t.desc.Generate(ctx, qc)
	if err != nil {
		return nil, fmt.Errorf("can't generate rows for %s: %w", t.name, err)
	}

	buf := &rowBuffer{columns: make(map[string][]string, len(t.schema))}
	for _, c := range t.schema {
		buf.columns[c.Name] = make([]string, 0, len(rows))
	}
	for _, row := range rows {
		for _, c := range t.schema {
			buf.columns[c.Name] = append(buf.columns[c.Name], row[c.Name]) // missing column is ""
		}
		buf.n++
	}
	t.publish(buf)
	log.Printf("[DEBUG] table %s materialized %d rows, constraints: %d, in %v", t.name, buf.n, len(vals), time.Since(st))
	return buf, nil
}

// exprString converts a value bound by the engine to the constraint expression
func exprString(v any) string {
	switch vv := v.(type) {
	case nil:
		return ""
	case string:
		return vv
	case []byte:
		return string(vv)
	case int64:
		return strconv.FormatInt(vv, 10)
	case int:
		return strconv.Itoa(vv)
	case float64:
		return strconv.FormatFloat(vv, 'g', -1, 64)
	case bool:
		if vv {
			return "1"
		}
		return "0"
	case time.Time:
		return vv.Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(vv)
	}
}
