package record

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fuse-framework/fuserecord/internal/model"
)

// Save validates and persists the record. The sequence is fixed: validators,
// then operation routing on primary-key presence, then before-hooks (halting
// aborts before any write), then the write, then snapshot reset and
// after-hooks. Expected failures (validation, halted hook) come back as
// (false, nil); database failures come back as a PERSISTENCE_ERROR with the
// record state untouched.
func (r *Record) Save(ctx context.Context) (bool, error) {
	isInsert := r.keyAbsent()

	if !r.validate(isInsert) {
		return false, nil
	}

	if isInsert {
		return r.insert(ctx)
	}
	return r.performUpdate(ctx)
}

// Update merges the given attributes and runs the full Save sequence against
// the merged state.
func (r *Record) Update(ctx context.Context, attrs map[string]any) (bool, error) {
	r.SetAttributes(attrs)
	return r.Save(ctx)
}

func (r *Record) insert(ctx context.Context) (bool, error) {
	if !r.runBeforeHooks(model.BeforeCreate) {
		return false, nil
	}
	if !r.runBeforeHooks(model.BeforeSave) {
		return false, nil
	}

	class := r.model.class

	// Timestamps and generated keys stage on a copy. A failed write must
	// leave the record exactly as it was: a key left behind in the
	// attributes would route a retry to UPDATE against a missing row.
	attrs := copyMap(r.attrs)
	now := time.Now().UTC()
	if class.HasCreatedAt() && attrs["created_at"] == nil {
		attrs["created_at"] = now
	}
	if class.HasUpdatedAt() && attrs["updated_at"] == nil {
		attrs["updated_at"] = now
	}

	pk := class.PrimaryKey
	if pk.Generated && pk.Type == "uuid" && valueAbsent(attrs[pk.Column]) {
		attrs[pk.Column] = uuid.NewString()
	}

	db, err := r.model.db()
	if err != nil {
		return false, err
	}

	columns := make([]string, 0, len(attrs))
	for name := range attrs {
		columns = append(columns, name)
	}
	sort.Strings(columns)

	bindings := make([]any, len(columns))
	placeholders := make([]string, len(columns))
	for i, name := range columns {
		bindings[i] = attrs[name]
		placeholders[i] = "?"
	}

	sqlStr := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		class.Table, strings.Join(columns, ", "), strings.Join(placeholders, ", "))

	returning := ""
	if pk.Generated && valueAbsent(attrs[pk.Column]) {
		returning = db.Returning(pk.Column)
	}
	if returning != "" {
		// Database-generated key: read it back in the same statement.
		rows, err := db.Query(ctx, sqlStr+returning, bindings)
		if err != nil {
			return false, persistenceError("insert "+class.Table, err)
		}
		if len(rows) > 0 {
			attrs[pk.Column] = rows[0][pk.Column]
		}
	} else {
		if _, err := db.Exec(ctx, sqlStr, bindings); err != nil {
			return false, persistenceError("insert "+class.Table, err)
		}
	}

	r.attrs = attrs
	r.original = copyMap(attrs)
	r.persisted = true
	r.runAfterHooks(model.AfterSave)
	r.runAfterHooks(model.AfterCreate)
	return true, nil
}

func (r *Record) performUpdate(ctx context.Context) (bool, error) {
	if !r.runBeforeHooks(model.BeforeSave) {
		return false, nil
	}

	class := r.model.class
	attrs := r.attrs
	changed := r.ChangedColumns()

	if class.HasUpdatedAt() && len(changed) > 0 {
		// Staged like the insert-side timestamps: the touch only lands on
		// the record if the write succeeds.
		attrs = copyMap(r.attrs)
		attrs["updated_at"] = time.Now().UTC()
		changed = diffColumns(attrs, r.original, class.PrimaryKey.Column)
	}

	if len(changed) > 0 {
		db, err := r.model.db()
		if err != nil {
			return false, err
		}

		sets := make([]string, len(changed))
		bindings := make([]any, 0, len(changed)+1)
		for i, name := range changed {
			sets[i] = name + " = ?"
			bindings = append(bindings, attrs[name]) // removed attributes bind nil → NULL
		}
		bindings = append(bindings, r.PrimaryKeyValue())

		sqlStr := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?",
			class.Table, strings.Join(sets, ", "), class.PrimaryKey.Column)

		if _, err := db.Exec(ctx, sqlStr, bindings); err != nil {
			return false, persistenceError("update "+class.Table, err)
		}
	}

	r.attrs = attrs
	// Removed attributes are now NULL in the database; reflect that before
	// taking the snapshot.
	for name := range r.original {
		if _, ok := r.attrs[name]; !ok {
			r.attrs[name] = nil
		}
	}
	r.original = copyMap(r.attrs)
	r.persisted = true
	r.runAfterHooks(model.AfterSave)
	return true, nil
}

// Delete hard-deletes a persisted record by primary key. A halting
// beforeDelete hook aborts with (false, nil). On success the record is
// detached and afterDelete runs.
func (r *Record) Delete(ctx context.Context) (bool, error) {
	if !r.persisted {
		return false, &Error{Code: CodeNotPersisted, Message: fmt.Sprintf("cannot delete unpersisted %s record", r.model.class.Name)}
	}

	if !r.runBeforeHooks(model.BeforeDelete) {
		return false, nil
	}

	class := r.model.class
	db, err := r.model.db()
	if err != nil {
		return false, err
	}

	sqlStr := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", class.Table, class.PrimaryKey.Column)
	if _, err := db.Exec(ctx, sqlStr, []any{r.PrimaryKeyValue()}); err != nil {
		return false, persistenceError("delete "+class.Table, err)
	}

	r.persisted = false
	r.runAfterHooks(model.AfterDelete)
	return true, nil
}

// Reload re-fetches the row by primary key, replacing attributes, snapshot
// and the relationship cache.
func (r *Record) Reload(ctx context.Context) error {
	if r.keyAbsent() {
		return &Error{Code: CodeNotPersisted, Message: fmt.Sprintf("cannot reload %s record without a primary key", r.model.class.Name)}
	}

	fresh, err := r.model.Find(ctx, r.PrimaryKeyValue())
	if err != nil {
		return err
	}
	if fresh == nil {
		return &Error{Code: CodeNotFound, Message: fmt.Sprintf("%s with %s=%v not found", r.model.class.Name, r.model.class.PrimaryKey.Column, r.PrimaryKeyValue())}
	}

	r.attrs = fresh.attrs
	r.original = copyMap(fresh.attrs)
	r.persisted = true
	r.loaded = map[string]any{}
	r.errs = map[string][]string{}
	return nil
}
