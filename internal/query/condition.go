package query

import (
	"reflect"
	"strings"
)

// Op enumerates the recognized condition operators. Each Condition carries
// exactly one.
type Op int

const (
	OpEq Op = iota
	OpGte
	OpGt
	OpLte
	OpLt
	OpNe
	OpLike
	OpBetween
	OpIn
	OpNotIn
	OpIsNull
	OpNotNull
)

var opKeys = map[string]Op{
	"eq":       OpEq,
	"gte":      OpGte,
	"gt":       OpGt,
	"lte":      OpLte,
	"lt":       OpLt,
	"ne":       OpNe,
	"like":     OpLike,
	"between":  OpBetween,
	"in":       OpIn,
	"not_in":   OpNotIn,
	"is_null":  OpIsNull,
	"not_null": OpNotNull,
}

var opFragments = map[Op]string{
	OpEq:   "= ?",
	OpGte:  ">= ?",
	OpGt:   "> ?",
	OpLte:  "<= ?",
	OpLt:   "< ?",
	OpNe:   "<> ?",
	OpLike: "LIKE ?",
}

// Condition is one column comparison with its bound values already unpacked:
// zero for null checks, two for between, N for in/not_in, one otherwise.
type Condition struct {
	Column string
	Op     Op
	Values []any
}

// newCondition translates one entry of a where map. A plain value means
// equality; a map value must carry exactly one recognized operator key.
func newCondition(column string, value any) (Condition, error) {
	opMap, ok := value.(map[string]any)
	if !ok {
		return Condition{Column: column, Op: OpEq, Values: []any{value}}, nil
	}

	var (
		op    Op
		opVal any
		found int
	)
	for key, v := range opMap {
		o, recognized := opKeys[key]
		if !recognized {
			return Condition{}, invalidOperator("unknown operator %q for column %s", key, column)
		}
		op = o
		opVal = v
		found++
	}
	if found == 0 {
		return Condition{}, invalidOperator("condition for column %s has no operator key", column)
	}
	if found > 1 {
		return Condition{}, invalidOperator("condition for column %s has %d operator keys, want exactly one", column, found)
	}

	switch op {
	case OpIsNull, OpNotNull:
		// Null checks bind nothing; the value is only a marker.
		return Condition{Column: column, Op: op}, nil
	case OpBetween:
		vals, ok := sliceValues(opVal)
		if !ok || len(vals) != 2 {
			return Condition{}, invalidValue("between for column %s requires exactly two values", column)
		}
		return Condition{Column: column, Op: op, Values: vals}, nil
	case OpIn, OpNotIn:
		vals, ok := sliceValues(opVal)
		if !ok || len(vals) == 0 {
			return Condition{}, invalidValue("in/not_in for column %s requires a non-empty list", column)
		}
		return Condition{Column: column, Op: op, Values: vals}, nil
	default:
		return Condition{Column: column, Op: op, Values: []any{opVal}}, nil
	}
}

// fragment renders the SQL for the condition. Bindings are c.Values.
func (c Condition) fragment() string {
	switch c.Op {
	case OpIsNull:
		return c.Column + " IS NULL"
	case OpNotNull:
		return c.Column + " IS NOT NULL"
	case OpBetween:
		return c.Column + " BETWEEN ? AND ?"
	case OpIn, OpNotIn:
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(c.Values)), ", ")
		if c.Op == OpIn {
			return c.Column + " IN (" + placeholders + ")"
		}
		return c.Column + " NOT IN (" + placeholders + ")"
	default:
		return c.Column + " " + opFragments[c.Op]
	}
}

// sliceValues unpacks any slice or array into []any.
func sliceValues(v any) ([]any, bool) {
	if vals, ok := v.([]any); ok {
		return vals, true
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return nil, false
	}
	vals := make([]any, rv.Len())
	for i := range vals {
		vals[i] = rv.Index(i).Interface()
	}
	return vals, true
}
