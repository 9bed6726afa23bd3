package record

import (
	"context"
	"fmt"
	"strings"

	"github.com/fuse-framework/fuserecord/internal/model"
	"github.com/fuse-framework/fuserecord/internal/query"
)

// Strategy is the loading shape for one eager-load request.
type Strategy int

const (
	// StrategyDefault picks per relationship kind: belongs_to and has_one
	// join, has_many batches a separate query (a JOIN would duplicate the
	// parent row per child).
	StrategyDefault Strategy = iota
	StrategyJoin
	StrategySeparate
)

type includeRequest struct {
	path     string
	strategy Strategy
}

// planNode is one level of the resolved eager-load tree.
type planNode struct {
	rel      *model.Relationship
	target   *model.Class
	strategy Strategy
	children []*planNode
}

// buildPlan validates every requested path against the registry and merges
// shared prefixes into one tree. It runs before any query: an unknown
// segment at any depth fails here with INVALID_RELATIONSHIP.
//
// The join strategy only applies to top-level relationships, where the
// primary statement is still in flight; nested levels always batch, so a
// depth-d path costs exactly d follow-up queries.
func buildPlan(reg *model.Registry, class *model.Class, reqs []includeRequest) ([]*planNode, error) {
	var roots []*planNode

	for _, req := range reqs {
		segments := strings.Split(req.path, ".")
		level := &roots
		current := class

		for depth, segment := range segments {
			rel := current.Relationship(segment)
			if rel == nil {
				return nil, invalidRelationship("unknown relationship %q (segment %d of path %q) on %s",
					segment, depth+1, req.path, current.Name)
			}
			target := reg.Get(rel.Target)
			if target == nil {
				return nil, invalidRelationship("relationship %s.%s targets unregistered class %s",
					current.Name, segment, rel.Target)
			}

			node := findNode(*level, segment)
			if node == nil {
				node = &planNode{rel: rel, target: target, strategy: resolveStrategy(rel.Kind, req.strategy, depth)}
				*level = append(*level, node)
			} else if depth == 0 && req.strategy != StrategyDefault {
				node.strategy = resolveStrategy(rel.Kind, req.strategy, depth)
			}

			level = &node.children
			current = target
		}
	}

	return roots, nil
}

func findNode(nodes []*planNode, name string) *planNode {
	for _, n := range nodes {
		if n.rel.Name == name {
			return n
		}
	}
	return nil
}

func resolveStrategy(kind model.Kind, requested Strategy, depth int) Strategy {
	if depth > 0 {
		return StrategySeparate
	}
	if requested != StrategyDefault {
		return requested
	}
	if kind == model.HasMany {
		return StrategySeparate
	}
	return StrategyJoin
}

// loadSeparate runs the batched strategy for one plan node over a parent
// batch: collect distinct key values, issue exactly one IN query, map the
// related rows back by foreign-key equality, then recurse into child nodes
// over the related records.
func loadSeparate(ctx context.Context, e *Engine, parents []*Record, node *planNode) error {
	if len(parents) == 0 {
		return nil
	}

	rel := node.rel
	targetModel := &Model{engine: e, class: node.target}
	var related []*Record

	switch rel.Kind {
	case model.BelongsTo:
		keys := collectValues(parents, rel.ForeignKey)
		byPK := make(map[string]*Record, len(keys))
		if len(keys) > 0 {
			rows, err := batchedQuery(ctx, targetModel, node.target.PrimaryKey.Column, keys)
			if err != nil {
				return fmt.Errorf("load %s: %w", rel.Name, err)
			}
			for _, row := range rows {
				rec := hydrate(targetModel, row)
				related = append(related, rec)
				byPK[keyString(row[node.target.PrimaryKey.Column])] = rec
			}
		}
		for _, p := range parents {
			fk := p.attrs[rel.ForeignKey]
			if fk == nil {
				p.loaded[rel.Name] = nil
				continue
			}
			if rec, ok := byPK[keyString(fk)]; ok {
				p.loaded[rel.Name] = rec
			} else {
				p.loaded[rel.Name] = nil
			}
		}

	case model.HasOne, model.HasMany:
		keys := collectValues(parents, parents[0].model.class.PrimaryKey.Column)
		grouped := make(map[string][]*Record)
		if len(keys) > 0 {
			rows, err := batchedQuery(ctx, targetModel, rel.ForeignKey, keys)
			if err != nil {
				return fmt.Errorf("load %s: %w", rel.Name, err)
			}
			for _, row := range rows {
				rec := hydrate(targetModel, row)
				related = append(related, rec)
				fk := keyString(row[rel.ForeignKey])
				grouped[fk] = append(grouped[fk], rec)
			}
		}
		for _, p := range parents {
			pk := keyString(p.PrimaryKeyValue())
			if rel.Kind == model.HasOne {
				if group := grouped[pk]; len(group) > 0 {
					p.loaded[rel.Name] = group[0]
				} else {
					p.loaded[rel.Name] = nil
				}
			} else {
				group := grouped[pk]
				if group == nil {
					group = []*Record{}
				}
				p.loaded[rel.Name] = group
			}
		}
	}

	// Level d+1 keys come from this level's results, never the original batch.
	for _, child := range node.children {
		if err := loadSeparate(ctx, e, related, child); err != nil {
			return err
		}
	}
	return nil
}

// batchedQuery issues the single `WHERE key IN (...)` statement for one
// relationship level.
func batchedQuery(ctx context.Context, m *Model, keyColumn string, keys []any) ([]map[string]any, error) {
	db, err := m.db()
	if err != nil {
		return nil, err
	}
	sqlStr, bindings, err := query.New(m.class.Table).
		Where(map[string]any{keyColumn: map[string]any{"in": keys}}).
		Compile()
	if err != nil {
		return nil, err
	}
	return db.Query(ctx, sqlStr, bindings)
}

// collectValues gathers the distinct non-nil values of one attribute across
// a batch, preserving first-seen order.
func collectValues(records []*Record, name string) []any {
	seen := make(map[string]bool, len(records))
	var values []any
	for _, rec := range records {
		v := rec.attrs[name]
		if v == nil {
			continue
		}
		s := keyString(v)
		if !seen[s] {
			seen[s] = true
			values = append(values, v)
		}
	}
	return values
}

// keyString normalizes key values for map joins, so int64(7) from one query
// matches float64(7) or "7" from another driver round trip.
func keyString(v any) string {
	switch n := v.(type) {
	case float64:
		if n == float64(int64(n)) {
			return fmt.Sprintf("%d", int64(n))
		}
	case float32:
		if float64(n) == float64(int64(n)) {
			return fmt.Sprintf("%d", int64(n))
		}
	}
	return fmt.Sprintf("%v", v)
}
