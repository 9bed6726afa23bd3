package query

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Executor runs a compiled, parameterized statement and returns rows as
// ordered maps. *store.Store satisfies this.
type Executor interface {
	Query(ctx context.Context, sqlStr string, bindings []any) ([]map[string]any, error)
}

type joinClause struct {
	kind   string // INNER, LEFT, RIGHT
	target string
	on     string
}

type rawFragment struct {
	sql      string
	bindings []any
}

// whereEntry preserves the call order of Where and WhereRaw contributions so
// the binding sequence matches placeholder order exactly.
type whereEntry struct {
	cond *Condition
	raw  *rawFragment
}

// Builder accumulates a structured query description and compiles it to SQL
// plus an ordered binding list. One builder instance owns one query
// lifecycle; it is not safe for concurrent use and is discarded after the
// terminal call.
//
// Structural errors (bad operator maps, negative limits) are recorded at the
// offending call and returned by Compile and the terminals.
type Builder struct {
	table    string
	exec     Executor
	selects  []string
	wheres   []whereEntry
	joins    []joinClause
	groupBys []string
	havings  []rawFragment
	orderBys []string
	limit    *int
	offset   *int
	err      error
}

// New creates a builder bound to a table.
func New(table string) *Builder {
	return &Builder{table: table}
}

// WithExecutor attaches the execution primitive used by Get, First and Count.
func (b *Builder) WithExecutor(exec Executor) *Builder {
	b.exec = exec
	return b
}

// Table returns the table the builder is bound to.
func (b *Builder) Table() string {
	return b.table
}

// Err returns the first structural error recorded on the builder, if any.
func (b *Builder) Err() error {
	return b.err
}

func (b *Builder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

// Select replaces the selected column list. Without it the compiler emits `*`.
func (b *Builder) Select(columns ...string) *Builder {
	b.selects = columns
	return b
}

// Where adds one condition per map entry, ANDed with everything before it.
// A plain value compares with `=`; a map value carries exactly one operator
// key, e.g. {"age": {"gte": 18}}. Entries of a single call are ordered by
// column name so compilation is deterministic.
func (b *Builder) Where(conditions map[string]any) *Builder {
	columns := make([]string, 0, len(conditions))
	for column := range conditions {
		columns = append(columns, column)
	}
	sort.Strings(columns)

	for _, column := range columns {
		cond, err := newCondition(column, conditions[column])
		if err != nil {
			b.fail(err)
			return b
		}
		c := cond
		b.wheres = append(b.wheres, whereEntry{cond: &c})
	}
	return b
}

// WhereRaw ANDs in a raw SQL fragment. The fragment is parenthesized and its
// bindings join the binding sequence in call order.
func (b *Builder) WhereRaw(sqlStr string, bindings ...any) *Builder {
	b.wheres = append(b.wheres, whereEntry{raw: &rawFragment{sql: sqlStr, bindings: bindings}})
	return b
}

// Join adds an INNER JOIN with a literal ON expression (no bindings).
func (b *Builder) Join(target, on string) *Builder {
	b.joins = append(b.joins, joinClause{kind: "INNER", target: target, on: on})
	return b
}

// LeftJoin adds a LEFT JOIN with a literal ON expression.
func (b *Builder) LeftJoin(target, on string) *Builder {
	b.joins = append(b.joins, joinClause{kind: "LEFT", target: target, on: on})
	return b
}

// RightJoin adds a RIGHT JOIN with a literal ON expression.
func (b *Builder) RightJoin(target, on string) *Builder {
	b.joins = append(b.joins, joinClause{kind: "RIGHT", target: target, on: on})
	return b
}

// OrderBy appends an ascending sort column.
func (b *Builder) OrderBy(column string) *Builder {
	b.orderBys = append(b.orderBys, column+" ASC")
	return b
}

// OrderByDesc appends a descending sort column.
func (b *Builder) OrderByDesc(column string) *Builder {
	b.orderBys = append(b.orderBys, column+" DESC")
	return b
}

// GroupBy appends grouping columns.
func (b *Builder) GroupBy(columns ...string) *Builder {
	b.groupBys = append(b.groupBys, columns...)
	return b
}

// Having appends a raw HAVING fragment. Its bindings follow all where
// bindings in the compiled sequence.
func (b *Builder) Having(sqlStr string, bindings ...any) *Builder {
	b.havings = append(b.havings, rawFragment{sql: sqlStr, bindings: bindings})
	return b
}

// Limit sets the row limit. The last call wins. Negative values are rejected.
func (b *Builder) Limit(n int) *Builder {
	if n < 0 {
		b.fail(invalidValue("limit must be non-negative, got %d", n))
		return b
	}
	b.limit = &n
	return b
}

// Offset sets the row offset. The last call wins. Negative values are rejected.
func (b *Builder) Offset(n int) *Builder {
	if n < 0 {
		b.fail(invalidValue("offset must be non-negative, got %d", n))
		return b
	}
	b.offset = &n
	return b
}

// Compile renders the accumulated description into SQL and an ordered binding
// list. It does not mutate the builder: compiling twice yields identical
// results.
func (b *Builder) Compile() (string, []any, error) {
	return b.compile(b.selectList(), b.limit, b.offset, true)
}

func (b *Builder) selectList() string {
	if len(b.selects) == 0 {
		return "*"
	}
	return strings.Join(b.selects, ", ")
}

func (b *Builder) compile(selectList string, limit, offset *int, ordered bool) (string, []any, error) {
	if b.err != nil {
		return "", nil, b.err
	}

	var sb strings.Builder
	var bindings []any

	sb.WriteString("SELECT ")
	sb.WriteString(selectList)
	sb.WriteString(" FROM ")
	sb.WriteString(b.table)

	for _, j := range b.joins {
		sb.WriteString(" ")
		sb.WriteString(j.kind)
		sb.WriteString(" JOIN ")
		sb.WriteString(j.target)
		sb.WriteString(" ON ")
		sb.WriteString(j.on)
	}

	if len(b.wheres) > 0 {
		sb.WriteString(" WHERE ")
		for i, w := range b.wheres {
			if i > 0 {
				sb.WriteString(" AND ")
			}
			if w.cond != nil {
				sb.WriteString(w.cond.fragment())
				bindings = append(bindings, w.cond.Values...)
			} else {
				sb.WriteString("(")
				sb.WriteString(w.raw.sql)
				sb.WriteString(")")
				bindings = append(bindings, w.raw.bindings...)
			}
		}
	}

	if len(b.groupBys) > 0 {
		sb.WriteString(" GROUP BY ")
		sb.WriteString(strings.Join(b.groupBys, ", "))
	}

	if len(b.havings) > 0 {
		sb.WriteString(" HAVING ")
		for i, h := range b.havings {
			if i > 0 {
				sb.WriteString(" AND ")
			}
			sb.WriteString(h.sql)
			bindings = append(bindings, h.bindings...)
		}
	}

	if ordered && len(b.orderBys) > 0 {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(b.orderBys, ", "))
	}

	if limit != nil {
		sb.WriteString(" LIMIT ")
		sb.WriteString(strconv.Itoa(*limit))
	}
	if offset != nil {
		sb.WriteString(" OFFSET ")
		sb.WriteString(strconv.Itoa(*offset))
	}

	return sb.String(), bindings, nil
}

// Get executes the compiled statement and returns all rows. The result is
// never nil.
func (b *Builder) Get(ctx context.Context) ([]map[string]any, error) {
	rows, err := b.run(ctx, b.selectList(), b.limit, b.offset, true)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []map[string]any{}
	}
	return rows, nil
}

// First executes the statement with a limit of one and returns the row, or
// nil when nothing matches.
func (b *Builder) First(ctx context.Context) (map[string]any, error) {
	one := 1
	rows, err := b.run(ctx, b.selectList(), &one, b.offset, true)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// Count executes a COUNT(*) variant of the statement, ignoring ordering,
// limit and offset, and returns the matching row count.
func (b *Builder) Count(ctx context.Context) (int64, error) {
	rows, err := b.run(ctx, "COUNT(*) AS count", nil, nil, false)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return toInt64(rows[0]["count"]), nil
}

func (b *Builder) run(ctx context.Context, selectList string, limit, offset *int, ordered bool) ([]map[string]any, error) {
	sqlStr, bindings, err := b.compile(selectList, limit, offset, ordered)
	if err != nil {
		return nil, err
	}
	if b.exec == nil {
		return nil, &Error{Code: CodeNoExecutor, Message: fmt.Sprintf("no executor attached to query on %s", b.table)}
	}
	return b.exec.Query(ctx, sqlStr, bindings)
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}
