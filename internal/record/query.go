package record

import (
	"context"
	"fmt"
	"strings"

	"github.com/fuse-framework/fuserecord/internal/model"
	"github.com/fuse-framework/fuserecord/internal/query"
)

// Query is a table-bound builder chain plus the eager-load requests attached
// to it. One Query owns one statement lifecycle and is discarded after its
// terminal call.
type Query struct {
	model    *Model
	builder  *query.Builder
	selects  []string
	includes []includeRequest
	first    bool
}

// Query starts a fresh builder chain for the class.
func (m *Model) Query() *Query {
	return &Query{model: m, builder: query.New(m.class.Table)}
}

// Where starts a chain with the given conditions.
func (m *Model) Where(conditions map[string]any) *Query {
	return m.Query().Where(conditions)
}

func (q *Query) Select(columns ...string) *Query {
	q.selects = columns
	return q
}

func (q *Query) Where(conditions map[string]any) *Query {
	q.builder.Where(conditions)
	return q
}

func (q *Query) WhereRaw(sqlStr string, bindings ...any) *Query {
	q.builder.WhereRaw(sqlStr, bindings...)
	return q
}

func (q *Query) Join(target, on string) *Query {
	q.builder.Join(target, on)
	return q
}

func (q *Query) LeftJoin(target, on string) *Query {
	q.builder.LeftJoin(target, on)
	return q
}

func (q *Query) RightJoin(target, on string) *Query {
	q.builder.RightJoin(target, on)
	return q
}

func (q *Query) OrderBy(column string) *Query {
	q.builder.OrderBy(column)
	return q
}

func (q *Query) OrderByDesc(column string) *Query {
	q.builder.OrderByDesc(column)
	return q
}

func (q *Query) GroupBy(columns ...string) *Query {
	q.builder.GroupBy(columns...)
	return q
}

func (q *Query) Having(sqlStr string, bindings ...any) *Query {
	q.builder.Having(sqlStr, bindings...)
	return q
}

func (q *Query) Limit(n int) *Query {
	q.builder.Limit(n)
	return q
}

func (q *Query) Offset(n int) *Query {
	q.builder.Offset(n)
	return q
}

// Includes requests eager loading for dot-delimited relationship paths with
// the default strategy per relationship kind.
func (q *Query) Includes(paths ...string) *Query {
	for _, p := range paths {
		q.includes = append(q.includes, includeRequest{path: p, strategy: StrategyDefault})
	}
	return q
}

// Joins requests eager loading forced onto the join strategy.
func (q *Query) Joins(paths ...string) *Query {
	for _, p := range paths {
		q.includes = append(q.includes, includeRequest{path: p, strategy: StrategyJoin})
	}
	return q
}

// Preload requests eager loading forced onto the separate batched strategy.
func (q *Query) Preload(paths ...string) *Query {
	for _, p := range paths {
		q.includes = append(q.includes, includeRequest{path: p, strategy: StrategySeparate})
	}
	return q
}

// Get executes the chain: compile and run the primary statement, hydrate
// records, then satisfy the eager-load plan (joined relationships from the
// combined rows, batched relationships with one IN query per level).
func (q *Query) Get(ctx context.Context) ([]*Record, error) {
	m := q.model
	engine := m.engine

	plan, err := buildPlan(engine.registry, m.class, q.includes)
	if err != nil {
		return nil, err
	}

	var joinNodes, separateNodes []*planNode
	for _, node := range plan {
		if node.strategy == StrategyJoin {
			joinNodes = append(joinNodes, node)
		} else {
			separateNodes = append(separateNodes, node)
		}
	}

	// A forced-join has_many fans one parent out over several combined rows,
	// so a SQL LIMIT would silently drop children. The single-record cap is
	// applied to hydrated parents instead.
	fanOut := false
	for _, node := range joinNodes {
		if node.rel.Kind == model.HasMany {
			fanOut = true
		}
	}
	if q.first && !fanOut {
		q.builder.Limit(1)
	}

	selects := q.selects
	if len(joinNodes) > 0 {
		if len(selects) == 0 {
			selects = []string{m.class.Table + ".*"}
		}
		for _, node := range joinNodes {
			q.builder.LeftJoin(node.target.Table, joinOn(m.class, node))
			selects = append(selects, namespacedColumns(node.target)...)
		}
	}
	if len(selects) > 0 {
		q.builder.Select(selects...)
	}

	sqlStr, bindings, err := q.builder.Compile()
	if err != nil {
		return nil, err
	}

	db, err := m.db()
	if err != nil {
		return nil, err
	}
	rows, err := db.Query(ctx, sqlStr, bindings)
	if err != nil {
		return nil, persistenceError("query "+m.class.Table, err)
	}

	var records []*Record
	if len(joinNodes) > 0 {
		records = hydrateJoined(m, rows, joinNodes)
	} else {
		records = make([]*Record, 0, len(rows))
		for _, row := range rows {
			records = append(records, hydrate(m, row))
		}
	}
	if q.first && len(records) > 1 {
		records = records[:1]
	}

	// Nested paths under a joined relationship batch from the joined results.
	for _, node := range joinNodes {
		if len(node.children) == 0 {
			continue
		}
		related := loadedRecords(records, node)
		for _, child := range node.children {
			if err := loadSeparate(ctx, engine, related, child); err != nil {
				return nil, err
			}
		}
	}

	for _, node := range separateNodes {
		if err := loadSeparate(ctx, engine, records, node); err != nil {
			return nil, err
		}
	}

	return records, nil
}

// First executes the chain capped to one record, or nil when nothing matches.
// The cap compiles to LIMIT 1 unless a forced-join has_many is in play, in
// which case the combined rows are fetched unlimited and the cap applies to
// hydrated parents, keeping the first parent's children complete.
func (q *Query) First(ctx context.Context) (*Record, error) {
	q.first = true
	records, err := q.Get(ctx)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[0], nil
}

// Count executes a COUNT(*) variant of the chain.
func (q *Query) Count(ctx context.Context) (int64, error) {
	db, err := q.model.db()
	if err != nil {
		return 0, err
	}
	return q.builder.WithExecutor(db).Count(ctx)
}

func joinOn(owner *model.Class, node *planNode) string {
	rel := node.rel
	if rel.Kind == model.BelongsTo {
		return fmt.Sprintf("%s.%s = %s.%s", owner.Table, rel.ForeignKey, node.target.Table, node.target.PrimaryKey.Column)
	}
	return fmt.Sprintf("%s.%s = %s.%s", node.target.Table, rel.ForeignKey, owner.Table, owner.PrimaryKey.Column)
}

// namespacedColumns aliases every declared column of the joined table as
// "table.column" so it cannot collide with the owner's columns in the
// combined row.
func namespacedColumns(target *model.Class) []string {
	cols := make([]string, 0, len(target.Columns))
	for _, col := range target.Columns {
		cols = append(cols, fmt.Sprintf("%s.%s AS \"%s.%s\"", target.Table, col.Name, target.Table, col.Name))
	}
	return cols
}

// hydrateJoined materializes records from combined rows. Parents repeat when
// a forced-join has_many fans out, so they dedupe by primary key in
// first-seen order; joined columns split off by their table prefix and
// hydrate the related record in the same pass.
func hydrateJoined(m *Model, rows []map[string]any, joinNodes []*planNode) []*Record {
	prefixes := make(map[string]bool, len(joinNodes))
	for _, node := range joinNodes {
		prefixes[node.target.Table] = true
	}

	var records []*Record
	byKey := make(map[string]*Record, len(rows))
	pkCol := m.class.PrimaryKey.Column

	for _, row := range rows {
		base := make(map[string]any, len(row))
		nested := make(map[string]map[string]any, len(joinNodes))
		for key, v := range row {
			if idx := strings.IndexByte(key, '.'); idx > 0 && prefixes[key[:idx]] {
				table := key[:idx]
				if nested[table] == nil {
					nested[table] = make(map[string]any)
				}
				nested[table][key[idx+1:]] = v
				continue
			}
			base[key] = v
		}

		key := keyString(base[pkCol])
		rec := byKey[key]
		if rec == nil {
			rec = hydrate(m, base)
			records = append(records, rec)
			byKey[key] = rec
		}

		for _, node := range joinNodes {
			attachJoined(rec, node, nested[node.target.Table])
		}
	}
	return records
}

func attachJoined(rec *Record, node *planNode, attrs map[string]any) {
	targetModel := &Model{engine: rec.model.engine, class: node.target}
	present := attrs != nil && attrs[node.target.PrimaryKey.Column] != nil

	if node.rel.Kind == model.HasMany {
		group, _ := rec.loaded[node.rel.Name].([]*Record)
		if group == nil {
			group = []*Record{}
		}
		if present {
			group = append(group, hydrate(targetModel, attrs))
		}
		rec.loaded[node.rel.Name] = group
		return
	}

	if _, done := rec.loaded[node.rel.Name]; done {
		return
	}
	if present {
		rec.loaded[node.rel.Name] = hydrate(targetModel, attrs)
	} else {
		rec.loaded[node.rel.Name] = nil
	}
}

// loadedRecords flattens the records cached under a join node, for recursing
// into its children.
func loadedRecords(parents []*Record, node *planNode) []*Record {
	var out []*Record
	for _, p := range parents {
		switch v := p.loaded[node.rel.Name].(type) {
		case *Record:
			if v != nil {
				out = append(out, v)
			}
		case []*Record:
			out = append(out, v...)
		}
	}
	return out
}
