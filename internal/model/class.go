package model

import (
	"strings"

	"github.com/go-openapi/inflect"
)

type Column struct {
	Name string
	Type string // int, bigint, decimal, boolean, string, text, timestamp, uuid
}

type PrimaryKey struct {
	Column    string
	Type      string // int, bigint, uuid, string
	Generated bool
}

// Class is the resolved, immutable descriptor for one model type. All
// convention lookups (table name, primary key, timestamp columns, foreign
// keys) happen once in Registry.Register; afterwards a Class is read-only.
type Class struct {
	Name       string
	Table      string
	PrimaryKey PrimaryKey
	Datasource string
	Columns    []Column

	relationships map[string]*Relationship
	relNames      []string
	rules         []*Rule
	validators    []ValidatorFunc
	callbacks     map[Hook][]Callback

	hasCreatedAt bool
	hasUpdatedAt bool
}

// Definition is the declarative input to Registry.Register.
type Definition struct {
	Name          string
	Table         string      // optional, conventional default
	PrimaryKey    *PrimaryKey // optional, defaults to generated int "id"
	Datasource    string      // optional, "" = default datasource
	Columns       []Column
	Relationships []Relationship
	Rules         []Rule
	Validators    []ValidatorFunc
	Callbacks     map[Hook][]Callback
}

// Column returns the declared column with the given name, or nil.
func (c *Class) Column(name string) *Column {
	for i := range c.Columns {
		if c.Columns[i].Name == name {
			return &c.Columns[i]
		}
	}
	return nil
}

// HasColumn reports whether the class declares the column.
func (c *Class) HasColumn(name string) bool {
	return c.Column(name) != nil
}

// ColumnNames returns all declared column names in declaration order.
func (c *Class) ColumnNames() []string {
	names := make([]string, len(c.Columns))
	for i, col := range c.Columns {
		names[i] = col.Name
	}
	return names
}

// Relationship returns the declared relationship with the given name, or nil.
func (c *Class) Relationship(name string) *Relationship {
	return c.relationships[name]
}

// Relationships returns all relationships in declaration order.
func (c *Class) Relationships() []*Relationship {
	rels := make([]*Relationship, 0, len(c.relNames))
	for _, name := range c.relNames {
		rels = append(rels, c.relationships[name])
	}
	return rels
}

// Rules returns the declarative rules in registration order.
func (c *Class) Rules() []*Rule {
	return c.rules
}

// Validators returns the custom validators in registration order.
func (c *Class) Validators() []ValidatorFunc {
	return c.validators
}

// Callbacks returns the callbacks registered for a hook, in order.
func (c *Class) Callbacks(hook Hook) []Callback {
	return c.callbacks[hook]
}

// HasCreatedAt reports whether created_at auto-population applies.
func (c *Class) HasCreatedAt() bool { return c.hasCreatedAt }

// HasUpdatedAt reports whether updated_at auto-population applies.
func (c *Class) HasUpdatedAt() bool { return c.hasUpdatedAt }

// SingularTable returns the table name with the conventional trailing `s`
// stripped, used for foreign-key defaults.
func (c *Class) SingularTable() string {
	return singularize(c.Table)
}

// tableFor derives the conventional table name: lower-snake class name with a
// trailing `s` (simple rule, explicit Definition.Table overrides).
func tableFor(className string) string {
	table := inflect.Underscore(className)
	if !strings.HasSuffix(table, "s") {
		table += "s"
	}
	return table
}

func singularize(table string) string {
	return strings.TrimSuffix(table, "s")
}
