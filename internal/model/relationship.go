package model

// Kind is the relationship cardinality class.
type Kind string

const (
	BelongsTo Kind = "belongs_to"
	HasOne    Kind = "has_one"
	HasMany   Kind = "has_many"
)

// Relationship describes one declared relationship of a class. ForeignKey
// follows convention when left empty: belongs_to puts `<name>_id` on the
// owning table, has_one/has_many put `<singular own table>_id` on the target.
type Relationship struct {
	Name       string
	Kind       Kind
	ForeignKey string
	Target     string // target class name
}
