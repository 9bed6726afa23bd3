package model

import (
	"fmt"
	"sync"

	"github.com/go-openapi/inflect"
)

// Registry holds the resolved class descriptors. Classes are registered once
// at startup; lookups afterwards are read-only.
type Registry struct {
	mu      sync.RWMutex
	classes map[string]*Class
}

func NewRegistry() *Registry {
	return &Registry{classes: make(map[string]*Class)}
}

// Register resolves a definition's conventions and adds the class. Table
// name, primary key, timestamp-column presence and relationship foreign keys
// are computed here, not per call. Expression rules compile here and fail
// fast on syntax errors.
func (r *Registry) Register(def Definition) (*Class, error) {
	if def.Name == "" {
		return nil, fmt.Errorf("class name is required")
	}

	table := def.Table
	if table == "" {
		table = tableFor(def.Name)
	}

	pk := PrimaryKey{Column: "id", Type: "int", Generated: true}
	if def.PrimaryKey != nil {
		pk = *def.PrimaryKey
		if pk.Column == "" {
			pk.Column = "id"
		}
	}

	class := &Class{
		Name:          def.Name,
		Table:         table,
		PrimaryKey:    pk,
		Datasource:    def.Datasource,
		Columns:       def.Columns,
		relationships: make(map[string]*Relationship, len(def.Relationships)),
		validators:    def.Validators,
		callbacks:     def.Callbacks,
		hasCreatedAt:  false,
		hasUpdatedAt:  false,
	}
	if class.callbacks == nil {
		class.callbacks = make(map[Hook][]Callback)
	}

	for _, col := range def.Columns {
		switch col.Name {
		case "created_at":
			class.hasCreatedAt = true
		case "updated_at":
			class.hasUpdatedAt = true
		}
	}

	for _, rel := range def.Relationships {
		rel := rel
		if rel.Name == "" || rel.Target == "" {
			return nil, fmt.Errorf("relationship on %s needs a name and a target", def.Name)
		}
		switch rel.Kind {
		case BelongsTo, HasOne, HasMany:
		default:
			return nil, fmt.Errorf("relationship %s.%s has unknown kind %q", def.Name, rel.Name, rel.Kind)
		}
		if rel.ForeignKey == "" {
			if rel.Kind == BelongsTo {
				rel.ForeignKey = inflect.Underscore(rel.Name) + "_id"
			} else {
				rel.ForeignKey = class.SingularTable() + "_id"
			}
		}
		if _, dup := class.relationships[rel.Name]; dup {
			return nil, fmt.Errorf("duplicate relationship %s.%s", def.Name, rel.Name)
		}
		class.relationships[rel.Name] = &rel
		class.relNames = append(class.relNames, rel.Name)
	}

	for i := range def.Rules {
		rule := def.Rules[i]
		if err := rule.compile(); err != nil {
			return nil, fmt.Errorf("class %s: %w", def.Name, err)
		}
		class.rules = append(class.rules, &rule)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.classes[def.Name]; dup {
		return nil, fmt.Errorf("class %s already registered", def.Name)
	}
	r.classes[def.Name] = class
	return class, nil
}

// Get returns the class with the given name, or nil.
func (r *Registry) Get(name string) *Class {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.classes[name]
}

// All returns all registered classes.
func (r *Registry) All() []*Class {
	r.mu.RLock()
	defer r.mu.RUnlock()
	classes := make([]*Class, 0, len(r.classes))
	for _, c := range r.classes {
		classes = append(classes, c)
	}
	return classes
}
