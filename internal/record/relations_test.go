package record

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureHandler collects log records so tests can count advisor warnings.
type captureHandler struct {
	mu      sync.Mutex
	records []slog.Record
}

func (h *captureHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *captureHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, r)
	return nil
}

func (h *captureHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *captureHandler) WithGroup(string) slog.Handler      { return h }

func (h *captureHandler) warnings() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, r := range h.records {
		if r.Level == slog.LevelWarn {
			n++
		}
	}
	return n
}

func newDevEngine(t *testing.T) (*Engine, *fakeDB, *captureHandler) {
	t.Helper()
	h := &captureHandler{}
	engine, db := newTestEngine(t, blogDefs(),
		WithLogger(slog.New(h)),
		WithDevelopmentMode(true),
	)
	return engine, db, h
}

func TestLazyFallback_QueriesOnceAndWarns(t *testing.T) {
	engine, db, h := newDevEngine(t)
	m := mustModel(t, engine, "Post")

	post := hydrate(m, map[string]any{"id": int64(10), "user_id": int64(1), "title": "first"})
	db.results = [][]map[string]any{{{"id": int64(1), "name": "Alice"}}}

	assert.False(t, post.IsRelationshipLoaded("author"))

	author, err := post.RelatedOne(context.Background(), "author")
	require.NoError(t, err)
	require.NotNil(t, author)
	assert.Equal(t, "Alice", author.Get("name"))
	assert.Len(t, db.queries, 1)
	assert.Equal(t, 1, h.warnings())
	assert.True(t, post.IsRelationshipLoaded("author"))

	// Second read hits the cache: no statement, no warning.
	again, err := post.RelatedOne(context.Background(), "author")
	require.NoError(t, err)
	assert.Same(t, author, again)
	assert.Len(t, db.queries, 1)
	assert.Equal(t, 1, h.warnings())
}

func TestLazyFallback_SilentOutsideDevelopment(t *testing.T) {
	h := &captureHandler{}
	engine, db := newTestEngine(t, blogDefs(), WithLogger(slog.New(h)))
	m := mustModel(t, engine, "Post")

	post := hydrate(m, map[string]any{"id": int64(10), "user_id": int64(1)})
	db.results = [][]map[string]any{{{"id": int64(1), "name": "Alice"}}}

	_, err := post.RelatedOne(context.Background(), "author")
	require.NoError(t, err)
	assert.Len(t, db.queries, 1)
	assert.Equal(t, 0, h.warnings())
}

func TestLazyBelongsTo_NilForeignKeySkipsQuery(t *testing.T) {
	engine, db, h := newDevEngine(t)
	m := mustModel(t, engine, "Post")

	post := hydrate(m, map[string]any{"id": int64(10), "user_id": nil})

	author, err := post.RelatedOne(context.Background(), "author")
	require.NoError(t, err)
	assert.Nil(t, author)
	assert.Empty(t, db.queries)
	assert.Equal(t, 0, h.warnings())

	// The absence is cached like any other result.
	assert.True(t, post.IsRelationshipLoaded("author"))
}

func TestLazyHasMany(t *testing.T) {
	engine, db, _ := newDevEngine(t)
	m := mustModel(t, engine, "User")

	user := hydrate(m, map[string]any{"id": int64(1), "name": "Alice"})
	db.results = [][]map[string]any{{
		{"id": int64(10), "user_id": int64(1), "title": "first"},
	}}

	posts, err := user.RelatedMany(context.Background(), "posts")
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "SELECT * FROM posts WHERE user_id = ?", db.queries[0].sql)
	assert.Equal(t, []any{int64(1)}, db.queries[0].bindings)
}

func TestRelation_UnknownName(t *testing.T) {
	engine, _, _ := newDevEngine(t)
	m := mustModel(t, engine, "User")

	user := hydrate(m, map[string]any{"id": int64(1)})
	_, err := user.Relation(context.Background(), "ghosts")
	var rerr *Error
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, CodeInvalidRelationship, rerr.Code)
}

func TestRelation_KindMismatch(t *testing.T) {
	engine, db, _ := newDevEngine(t)
	m := mustModel(t, engine, "User")

	user := hydrate(m, map[string]any{"id": int64(1)})
	db.results = [][]map[string]any{{{"id": int64(10), "user_id": int64(1)}}}

	_, err := user.RelatedOne(context.Background(), "posts")
	var rerr *Error
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, CodeInvalidRelationship, rerr.Code)
}

func TestSetRelation(t *testing.T) {
	engine, db, h := newDevEngine(t)
	users := mustModel(t, engine, "User")
	postsModel := mustModel(t, engine, "Post")

	user := hydrate(users, map[string]any{"id": int64(1)})
	post := hydrate(postsModel, map[string]any{"id": int64(10), "user_id": int64(1)})

	require.NoError(t, user.SetRelation("posts", []*Record{post}))
	assert.Error(t, user.SetRelation("ghosts", nil))

	// Hand-assembled graphs read back without a query or a warning.
	got, err := user.RelatedMany(context.Background(), "posts")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Empty(t, db.queries)
	assert.Equal(t, 0, h.warnings())
}
