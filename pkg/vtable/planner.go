package vtable

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Offer is a candidate predicate the engine offers to the table during planning.
// Column is a position in the schema, -1 stands for rowid.
type Offer struct {
	Column int
	Op     Op
	Usable bool
}

// Plan is the result of planning. ArgIndex is aligned with offers, it holds a 0-based position
// of the offer's value in the filter arguments or -1 if the offer is not used.
type Plan struct {
	Set      ConstraintSet
	ArgIndex []int
	IdxStr   string
	Cost     float64
}

const fullScanCost = 1e6

// PlanConstraints accepts every usable offer on a declared column, in offer order, and assigns
// increasing argument positions to them. Non-usable offers, offers on rowid and LIMIT/OFFSET
// are skipped, the engine evaluates them on returned rows. Never fails.
func PlanConstraints(schema ColumnSchema, offers []Offer) Plan {
	res := Plan{ArgIndex: make([]int, len(offers))}
	encoded := make([]string, 0, len(offers))
	for i, o := range offers {
		res.ArgIndex[i] = -1
		if !o.Usable || o.Column < 0 || o.Column >= len(schema) {
			continue
		}
		if o.Op == OpLIMIT || o.Op == OpOFFSET {
			continue // not a column predicate
		}
		res.ArgIndex[i] = len(res.Set)
		res.Set = append(res.Set, ColumnConstraint{Column: schema[o.Column].Name, Constraint: Constraint{Op: o.Op}})
		encoded = append(encoded, strconv.Itoa(o.Column)+":"+strconv.Itoa(int(o.Op)))
	}
	res.IdxStr = strings.Join(encoded, ",")
	// each pushed predicate makes the plan cheaper, so the engine prefers plans pushing more
	res.Cost = math.Max(1, fullScanCost/math.Pow(10, float64(len(res.Set))))
	return res
}

// DecodeConstraintSet restores the constraint set encoded by PlanConstraints into IdxStr
func DecodeConstraintSet(schema ColumnSchema, idxStr string) (ConstraintSet, error) {
	if idxStr == "" {
		return ConstraintSet{}, nil
	}
	elems := strings.Split(idxStr, ",")
	res := make(ConstraintSet, 0, len(elems))
	for _, e := range elems {
		colStr, opStr, ok := strings.Cut(e, ":")
		if !ok {
			return nil, fmt.Errorf("invalid plan element %q", e)
		}
		col, err := strconv.Atoi(colStr)
		if err != nil || col < 0 || col >= len(schema) {
			return nil, fmt.Errorf("invalid plan column %q: %w", colStr, ErrOutOfRange)
		}
		op, err := strconv.Atoi(opStr)
		if err != nil {
			return nil, fmt.Errorf("invalid plan operator %q: %w", opStr, err)
		}
		res = append(res, ColumnConstraint{Column: schema[col].Name, Constraint: Constraint{Op: Op(op)}})
	}
	return res, nil
}

// BestIndex plans constraints for the table and records the accepted set as pending for the
// upcoming filter pass
func (t *TableContent) BestIndex(offers []Offer) Plan {
	plan := PlanConstraints(t.schema, offers)
	t.setPending(plan.Set)
	return plan
}
