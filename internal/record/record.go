package record

import (
	"reflect"
	"sort"

	"github.com/fuse-framework/fuserecord/internal/model"
)

// Record is one row-shaped object: a live attribute map, the snapshot of the
// last persisted state, the relationship cache and the validation error map.
// A record is owned by the caller that created or loaded it; it is not safe
// for concurrent use.
type Record struct {
	model     *Model
	attrs     map[string]any
	original  map[string]any
	persisted bool
	loaded    map[string]any
	errs      map[string][]string
}

func newRecord(m *Model, attrs map[string]any, persisted bool) *Record {
	r := &Record{
		model:     m,
		attrs:     copyMap(attrs),
		original:  map[string]any{},
		persisted: persisted,
		loaded:    map[string]any{},
		errs:      map[string][]string{},
	}
	if persisted {
		r.original = copyMap(attrs)
	}
	return r
}

// hydrate turns a raw result row into a persisted record. The original
// snapshot equals the loaded attributes, so the record starts clean.
func hydrate(m *Model, row map[string]any) *Record {
	return newRecord(m, row, true)
}

// Class returns the record's class descriptor.
func (r *Record) Class() *model.Class {
	return r.model.class
}

// Get reads one attribute.
func (r *Record) Get(name string) any {
	return r.attrs[name]
}

// Set writes one attribute.
func (r *Record) Set(name string, value any) {
	r.attrs[name] = value
}

// SetAttributes merges the given attributes into the record.
func (r *Record) SetAttributes(attrs map[string]any) {
	for k, v := range attrs {
		r.attrs[k] = v
	}
}

// Attributes returns a copy of the current attribute map.
func (r *Record) Attributes() map[string]any {
	return copyMap(r.attrs)
}

// PrimaryKeyValue returns the current primary-key attribute.
func (r *Record) PrimaryKeyValue() any {
	return r.attrs[r.model.class.PrimaryKey.Column]
}

// IsPersisted reports whether the record has been written at least once and
// not deleted since.
func (r *Record) IsPersisted() bool {
	return r.persisted
}

// Errors returns the field-to-messages map from the last validation run.
func (r *Record) Errors() map[string][]string {
	return r.errs
}

// IsRelationshipLoaded reports whether a relationship is cached, including a
// cached "none" result. It never queries.
func (r *Record) IsRelationshipLoaded(name string) bool {
	_, ok := r.loaded[name]
	return ok
}

// keyAbsent is the sole routing signal between INSERT and UPDATE: an absent
// or empty primary-key attribute means insert.
func (r *Record) keyAbsent() bool {
	return valueAbsent(r.attrs[r.model.class.PrimaryKey.Column])
}

func valueAbsent(v any) bool {
	return v == nil || v == ""
}

// ChangedColumns returns the symmetric difference between the current
// attributes and the last persisted snapshot, sorted. Attributes removed
// since the snapshot count as changed (to NULL). The primary key never does.
func (r *Record) ChangedColumns() []string {
	return diffColumns(r.attrs, r.original, r.model.class.PrimaryKey.Column)
}

func diffColumns(attrs, original map[string]any, pk string) []string {
	changed := make([]string, 0)
	for name, v := range attrs {
		if name == pk {
			continue
		}
		ov, ok := original[name]
		if !ok || !reflect.DeepEqual(v, ov) {
			changed = append(changed, name)
		}
	}
	for name := range original {
		if name == pk {
			continue
		}
		if _, ok := attrs[name]; !ok {
			changed = append(changed, name)
		}
	}
	sort.Strings(changed)
	return changed
}

// Changed reports whether any attribute differs from the persisted snapshot.
func (r *Record) Changed() bool {
	return len(r.ChangedColumns()) > 0
}

// IsValid runs the class validators against the current attributes and
// repopulates the error map. It does not persist.
func (r *Record) IsValid() bool {
	return r.validate(r.keyAbsent())
}

func (r *Record) validate(isCreate bool) bool {
	r.errs = map[string][]string{}

	class := r.model.class
	details := model.EvaluateRules(class.Rules(), r.attrs, r.original, isCreate)
	for _, v := range class.Validators() {
		details = append(details, v(r.attrs, isCreate)...)
	}

	for _, d := range details {
		field := d.Field
		if field == "" {
			field = "base"
		}
		r.errs[field] = append(r.errs[field], d.Message)
	}
	return len(r.errs) == 0
}

func (r *Record) runBeforeHooks(hook model.Hook) bool {
	for _, cb := range r.model.class.Callbacks(hook) {
		if !cb(r.attrs) {
			return false
		}
	}
	return true
}

func (r *Record) runAfterHooks(hook model.Hook) {
	for _, cb := range r.model.class.Callbacks(hook) {
		cb(r.attrs)
	}
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
