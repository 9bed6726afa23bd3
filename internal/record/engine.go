package record

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fuse-framework/fuserecord/internal/model"
)

// DB is the execution primitive the engine consumes. All statements carry
// `?` placeholders and an ordered binding list; execution is synchronous and
// blocking. *store.Store satisfies this.
type DB interface {
	Query(ctx context.Context, sqlStr string, bindings []any) ([]map[string]any, error)
	Exec(ctx context.Context, sqlStr string, bindings []any) (int64, error)

	// Returning reports the clause appended to an INSERT to read back a
	// generated key, or "" when the backend cannot read keys back.
	Returning(column string) string
}

// Engine binds a class registry to one or more named datasources. It holds
// no per-request state; records and queries it hands out are owned by the
// caller.
type Engine struct {
	registry *model.Registry
	dbs      map[string]DB
	advisor  *Advisor
	logger   *slog.Logger
}

type Option func(*Engine)

// WithDatasource attaches an extra named datasource. Classes select it via
// Definition.Datasource.
func WithDatasource(name string, db DB) Option {
	return func(e *Engine) { e.dbs[name] = db }
}

// WithDevelopmentMode enables the N+1 advisor.
func WithDevelopmentMode(enabled bool) Option {
	return func(e *Engine) { e.advisor = NewAdvisor(enabled, e.logger) }
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// NewEngine creates an engine over the default datasource.
func NewEngine(db DB, registry *model.Registry, opts ...Option) *Engine {
	e := &Engine{
		registry: registry,
		dbs:      map[string]DB{"": db},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.advisor == nil {
		e.advisor = NewAdvisor(false, e.logger)
	}
	return e
}

// Model returns the class-level entry point for finders and queries.
func (e *Engine) Model(name string) (*Model, error) {
	class := e.registry.Get(name)
	if class == nil {
		return nil, &Error{Code: CodeUnknownModel, Message: fmt.Sprintf("unknown model: %s", name)}
	}
	return &Model{engine: e, class: class}, nil
}

// Model is a class bound to its engine.
type Model struct {
	engine *Engine
	class  *model.Class
}

// Class returns the underlying class descriptor.
func (m *Model) Class() *model.Class {
	return m.class
}

func (m *Model) db() (DB, error) {
	db, ok := m.engine.dbs[m.class.Datasource]
	if !ok {
		return nil, &Error{Code: CodeUnknownModel, Message: fmt.Sprintf("class %s references unknown datasource %q", m.class.Name, m.class.Datasource)}
	}
	return db, nil
}

// New builds an unpersisted record with the given attributes.
func (m *Model) New(attrs map[string]any) *Record {
	return newRecord(m, attrs, false)
}

// Find fetches a single record by primary key, or nil when absent.
func (m *Model) Find(ctx context.Context, id any) (*Record, error) {
	return m.Where(map[string]any{m.class.PrimaryKey.Column: id}).First(ctx)
}

// All fetches every row of the class's table.
func (m *Model) All(ctx context.Context) ([]*Record, error) {
	return m.Query().Get(ctx)
}
