package record

import (
	"context"
	"fmt"

	"github.com/fuse-framework/fuserecord/internal/model"
)

// Relation reads a relationship. A cached value (including a cached "none")
// returns without touching the database. Otherwise it falls back to one
// on-demand query, caches the result, and lets the N+1 advisor observe the
// miss. The return value is a *Record (or nil) for belongs_to/has_one and a
// []*Record for has_many.
func (r *Record) Relation(ctx context.Context, name string) (any, error) {
	if v, ok := r.loaded[name]; ok {
		return v, nil
	}

	rel := r.model.class.Relationship(name)
	if rel == nil {
		return nil, invalidRelationship("unknown relationship %q on %s", name, r.model.class.Name)
	}
	target := r.model.engine.registry.Get(rel.Target)
	if target == nil {
		return nil, invalidRelationship("relationship %s.%s targets unregistered class %s", r.model.class.Name, name, rel.Target)
	}
	targetModel := &Model{engine: r.model.engine, class: target}

	var result any
	switch rel.Kind {
	case model.BelongsTo:
		fk := r.attrs[rel.ForeignKey]
		if fk == nil {
			// No key to follow; cache the absence without a query.
			r.loaded[name] = nil
			return nil, nil
		}
		rec, err := targetModel.Where(map[string]any{target.PrimaryKey.Column: fk}).First(ctx)
		if err != nil {
			return nil, err
		}
		result = rec

	case model.HasOne:
		rec, err := targetModel.Where(map[string]any{rel.ForeignKey: r.PrimaryKeyValue()}).First(ctx)
		if err != nil {
			return nil, err
		}
		result = rec

	case model.HasMany:
		recs, err := targetModel.Where(map[string]any{rel.ForeignKey: r.PrimaryKeyValue()}).Get(ctx)
		if err != nil {
			return nil, err
		}
		result = recs
	}

	r.loaded[name] = result
	r.model.engine.advisor.Observe(r.model.class.Name, name)
	return result, nil
}

// RelatedOne reads a belongs_to or has_one relationship as a single record.
func (r *Record) RelatedOne(ctx context.Context, name string) (*Record, error) {
	v, err := r.Relation(ctx, name)
	if err != nil || v == nil {
		return nil, err
	}
	rec, ok := v.(*Record)
	if !ok {
		return nil, invalidRelationship("relationship %q on %s is not singular", name, r.model.class.Name)
	}
	return rec, nil
}

// RelatedMany reads a has_many relationship as a record slice.
func (r *Record) RelatedMany(ctx context.Context, name string) ([]*Record, error) {
	v, err := r.Relation(ctx, name)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return []*Record{}, nil
	}
	recs, ok := v.([]*Record)
	if !ok {
		return nil, invalidRelationship("relationship %q on %s is not plural", name, r.model.class.Name)
	}
	return recs, nil
}

// SetRelation stores a value into the relationship cache, for callers that
// assemble graphs by hand.
func (r *Record) SetRelation(name string, value any) error {
	if r.model.class.Relationship(name) == nil {
		return invalidRelationship("unknown relationship %q on %s", name, r.model.class.Name)
	}
	r.loaded[name] = value
	return nil
}

// String implements fmt.Stringer for debugging.
func (r *Record) String() string {
	return fmt.Sprintf("%s(%s=%v)", r.model.class.Name, r.model.class.PrimaryKey.Column, r.PrimaryKeyValue())
}
