package record

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fuse-framework/fuserecord/internal/model"
)

type dbCall struct {
	sql      string
	bindings []any
}

// fakeDB records every statement and serves scripted result sets in FIFO
// order, one per Query call.
type fakeDB struct {
	queries  []dbCall
	execs    []dbCall
	results  [][]map[string]any
	queryErr error
	execErr  error
}

func (f *fakeDB) Query(_ context.Context, sqlStr string, bindings []any) ([]map[string]any, error) {
	f.queries = append(f.queries, dbCall{sql: sqlStr, bindings: bindings})
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	if len(f.results) == 0 {
		return nil, nil
	}
	rows := f.results[0]
	f.results = f.results[1:]
	return rows, nil
}

func (f *fakeDB) Exec(_ context.Context, sqlStr string, bindings []any) (int64, error) {
	f.execs = append(f.execs, dbCall{sql: sqlStr, bindings: bindings})
	if f.execErr != nil {
		return 0, f.execErr
	}
	return 1, nil
}

func (f *fakeDB) Returning(column string) string {
	return " RETURNING " + column
}

func newTestEngine(t *testing.T, defs []model.Definition, opts ...Option) (*Engine, *fakeDB) {
	t.Helper()
	reg := model.NewRegistry()
	for _, def := range defs {
		_, err := reg.Register(def)
		require.NoError(t, err)
	}
	db := &fakeDB{}
	return NewEngine(db, reg, opts...), db
}

// blogDefs is the shared User/Post/Comment fixture.
func blogDefs() []model.Definition {
	return []model.Definition{
		{
			Name: "User",
			Columns: []model.Column{
				{Name: "id", Type: "int"},
				{Name: "name", Type: "string"},
			},
			Relationships: []model.Relationship{
				{Name: "posts", Kind: model.HasMany, Target: "Post"},
				{Name: "profile", Kind: model.HasOne, Target: "Profile"},
			},
		},
		{
			Name: "Post",
			Columns: []model.Column{
				{Name: "id", Type: "int"},
				{Name: "user_id", Type: "int"},
				{Name: "title", Type: "string"},
			},
			Relationships: []model.Relationship{
				{Name: "author", Kind: model.BelongsTo, ForeignKey: "user_id", Target: "User"},
				{Name: "comments", Kind: model.HasMany, Target: "Comment"},
			},
		},
		{
			Name: "Comment",
			Columns: []model.Column{
				{Name: "id", Type: "int"},
				{Name: "post_id", Type: "int"},
				{Name: "body", Type: "string"},
			},
			Relationships: []model.Relationship{
				{Name: "post", Kind: model.BelongsTo, Target: "Post"},
			},
		},
		{
			Name: "Profile",
			Columns: []model.Column{
				{Name: "id", Type: "int"},
				{Name: "user_id", Type: "int"},
				{Name: "bio", Type: "string"},
			},
		},
	}
}

func mustModel(t *testing.T, e *Engine, name string) *Model {
	t.Helper()
	m, err := e.Model(name)
	require.NoError(t, err)
	return m
}
