package vtable

import (
	"regexp"
	"strconv"
	"strings"
)

// Op is a comparison kind offered by the engine for a predicate on a column.
type Op int

// enum of operators, a subset of sqlite's index constraint ops plus unknown
const (
	OpUnknown Op = iota
	OpEQ
	OpGT
	OpLE
	OpLT
	OpGE
	OpMATCH
	OpLIKE
	OpGLOB
	OpREGEXP
	OpNE
	OpIS
	OpISNOT
	OpISNULL
	OpISNOTNULL
	OpLIMIT
	OpOFFSET
	OpFUNCTION
)

var opNames = map[Op]string{
	OpEQ:        "=",
	OpGT:        ">",
	OpLE:        "<=",
	OpLT:        "<",
	OpGE:        ">=",
	OpMATCH:     "MATCH",
	OpLIKE:      "LIKE",
	OpGLOB:      "GLOB",
	OpREGEXP:    "REGEXP",
	OpNE:        "!=",
	OpIS:        "IS",
	OpISNOT:     "IS NOT",
	OpISNULL:    "IS NULL",
	OpISNOTNULL: "IS NOT NULL",
	OpLIMIT:     "LIMIT",
	OpOFFSET:    "OFFSET",
	OpFUNCTION:  "FUNCTION",
}

func (o Op) String() string {
	if s, ok := opNames[o]; ok {
		return s
	}
	return "UNKNOWN"
}

// Constraint is a single predicate on a column, operator and the literal expression.
// Expr is empty until the engine binds the value at filter time.
type Constraint struct {
	Op   Op
	Expr string
}

// ConstraintList is a set of constraints for one column tagged with the column's affinity
type ConstraintList struct {
	Affinity    Affinity
	Constraints []Constraint
}

// Add appends a constraint to the list
func (l *ConstraintList) Add(c Constraint) {
	l.Constraints = append(l.Constraints, c)
}

// Exists reports whether any constraint was pushed for the column
func (l ConstraintList) Exists() bool {
	return len(l.Constraints) > 0
}

// GetAll returns expressions of all constraints with the given operator, in offer order
func (l ConstraintList) GetAll(op Op) []string {
	res := []string{}
	for _, c := range l.Constraints {
		if c.Op == op {
			res = append(res, c.Expr)
		}
	}
	return res
}

// Matches checks value against every constraint in the list. Values of numeric columns are taken the way
// the engine gets them from Marshal, malformed ones as -1, and compare numerically with expressions in
// the decimal number grammar; any other expression is text and sorts after every number. Text compares
// lexically. Operators which can't be evaluated on a plain value (MATCH, FUNCTION, LIMIT etc.) are
// considered satisfied, the engine re-checks all predicates anyway.
func (l ConstraintList) Matches(value string) bool {
	cv := newCellValue(l.Affinity, value)
	for _, c := range l.Constraints {
		if !c.matches(cv) {
			return false
		}
	}
	return true
}

// cellValue is a stored value as the engine sees it, with the text form used for patterns
type cellValue struct {
	aff     Affinity
	text    string
	num     number
	numeric bool
}

func newCellValue(aff Affinity, raw string) cellValue {
	res := cellValue{aff: aff, text: raw}
	switch v := Marshal("", Column{Affinity: aff}, raw, nil).(type) {
	case int64:
		res.text, res.num, res.numeric = strconv.FormatInt(v, 10), number{i: v, isInt: true}, true
	case float64:
		res.text, res.num, res.numeric = strconv.FormatFloat(v, 'g', -1, 64), number{f: v}, true
	}
	return res
}

// compare returns -1, 0 or 1 comparing the value with expression
func (v cellValue) compare(expr string) int {
	if !v.numeric {
		return strings.Compare(v.text, expr)
	}
	n, ok := parseNumber(expr)
	if !ok {
		return -1
	}
	return v.num.compareTo(n)
}

func (c Constraint) matches(v cellValue) bool {
	switch c.Op {
	case OpEQ, OpIS:
		return v.compare(c.Expr) == 0
	case OpNE, OpISNOT:
		return v.compare(c.Expr) != 0
	case OpLT:
		return v.compare(c.Expr) < 0
	case OpLE:
		return v.compare(c.Expr) <= 0
	case OpGT:
		return v.compare(c.Expr) > 0
	case OpGE:
		return v.compare(c.Expr) >= 0
	case OpLIKE, OpGLOB, OpREGEXP:
		if v.aff == AffinityDouble {
			return true // engine's text form of reals differs, leave it to the engine
		}
		return matchPattern(patternRegexp(c.Op, c.Expr), v.text)
	default:
		return true
	}
}

func patternRegexp(op Op, expr string) string {
	switch op {
	case OpLIKE:
		return likeToRegexp(expr)
	case OpGLOB:
		return globToRegexp(expr)
	default:
		return expr
	}
}

func matchPattern(re, value string) bool {
	rx, err := regexp.Compile(re)
	if err != nil {
		return true // can't evaluate, leave it to the engine
	}
	return rx.MatchString(value)
}

// likeToRegexp converts sql LIKE pattern to regexp. LIKE is case-insensitive, % matches any sequence
// and _ matches a single character.
func likeToRegexp(pattern string) string {
	var sb strings.Builder
	sb.WriteString("(?is)^")
	for _, r := range pattern {
		switch r {
		case '%':
			sb.WriteString(".*")
		case '_':
			sb.WriteString(".")
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	sb.WriteString("$")
	return sb.String()
}

// globToRegexp converts sql GLOB pattern to regexp. GLOB is case-sensitive, supports *, ? and [...]
// character classes with ^ negation.
func globToRegexp(pattern string) string {
	var sb strings.Builder
	sb.WriteString("(?s)^")
	inClass := false
	for i, r := range pattern {
		switch {
		case inClass && r == ']':
			inClass = false
			sb.WriteRune(r)
		case inClass && r == '^' && pattern[i-1] == '[':
			sb.WriteRune(r)
		case inClass:
			if r == '\\' {
				sb.WriteString(`\\`)
				continue
			}
			sb.WriteRune(r)
		case r == '*':
			sb.WriteString(".*")
		case r == '?':
			sb.WriteString(".")
		case r == '[':
			inClass = true
			sb.WriteRune(r)
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	sb.WriteString("$")
	return sb.String()
}

// QueryContext is passed to Descriptor.Generate, it has an entry for every declared column,
// with an empty ConstraintList for columns without predicates.
type QueryContext struct {
	Constraints map[string]ConstraintList
}

// NewQueryContext makes a context with empty constraint lists for all columns of the schema
func NewQueryContext(schema ColumnSchema) QueryContext {
	res := QueryContext{Constraints: make(map[string]ConstraintList, len(schema))}
	for _, c := range schema {
		res.Constraints[c.Name] = ConstraintList{Affinity: c.Affinity}
	}
	return res
}

// Add appends constraint to the column's list. Unknown columns are ignored.
func (q QueryContext) Add(column string, c Constraint) {
	l, ok := q.Constraints[column]
	if !ok {
		return
	}
	l.Add(c)
	q.Constraints[column] = l
}

// Matches reports whether row satisfies constraints of all columns
func (q QueryContext) Matches(row Row) bool {
	for name, l := range q.Constraints {
		if !l.Matches(row[name]) {
			return false
		}
	}
	return true
}

// ColumnConstraint is a constraint bound to a column name
type ColumnConstraint struct {
	Column string
	Constraint
}

// ConstraintSet is an ordered list of accepted predicates, positionally aligned with the
// values the engine binds at filter time.
type ConstraintSet []ColumnConstraint
