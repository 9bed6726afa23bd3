package model

import "testing"

func TestRegister_TableConventions(t *testing.T) {
	tests := []struct {
		className string
		table     string
		want      string
	}{
		{"User", "", "users"},
		{"OrderItem", "", "order_items"},
		{"Address", "", "address"}, // trailing s already present
		{"Person", "people", "people"},
	}
	for _, tt := range tests {
		t.Run(tt.className, func(t *testing.T) {
			reg := NewRegistry()
			class, err := reg.Register(Definition{Name: tt.className, Table: tt.table})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if class.Table != tt.want {
				t.Fatalf("table: got %s, want %s", class.Table, tt.want)
			}
		})
	}
}

func TestRegister_PrimaryKeyDefault(t *testing.T) {
	reg := NewRegistry()
	class, err := reg.Register(Definition{Name: "User"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pk := class.PrimaryKey
	if pk.Column != "id" || pk.Type != "int" || !pk.Generated {
		t.Fatalf("unexpected primary key default: %+v", pk)
	}

	class, err = reg.Register(Definition{
		Name:       "Session",
		PrimaryKey: &PrimaryKey{Column: "token", Type: "uuid", Generated: true},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if class.PrimaryKey.Column != "token" || class.PrimaryKey.Type != "uuid" {
		t.Fatalf("override not honored: %+v", class.PrimaryKey)
	}
}

func TestRegister_TimestampDetection(t *testing.T) {
	reg := NewRegistry()
	with, err := reg.Register(Definition{
		Name: "Post",
		Columns: []Column{
			{Name: "id", Type: "int"},
			{Name: "created_at", Type: "timestamp"},
			{Name: "updated_at", Type: "timestamp"},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !with.HasCreatedAt() || !with.HasUpdatedAt() {
		t.Fatal("timestamp columns not detected")
	}

	without, err := reg.Register(Definition{
		Name:    "Tag",
		Columns: []Column{{Name: "id", Type: "int"}, {Name: "label", Type: "string"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if without.HasCreatedAt() || without.HasUpdatedAt() {
		t.Fatal("timestamps detected on a class without the columns")
	}
}

func TestRegister_ForeignKeyDefaults(t *testing.T) {
	reg := NewRegistry()
	class, err := reg.Register(Definition{
		Name: "Post",
		Relationships: []Relationship{
			{Name: "author", Kind: BelongsTo, Target: "User"},
			{Name: "comments", Kind: HasMany, Target: "Comment"},
			{Name: "banner", Kind: HasOne, Target: "Image", ForeignKey: "subject_id"},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if fk := class.Relationship("author").ForeignKey; fk != "author_id" {
		t.Fatalf("belongs_to default: got %s, want author_id", fk)
	}
	if fk := class.Relationship("comments").ForeignKey; fk != "post_id" {
		t.Fatalf("has_many default: got %s, want post_id", fk)
	}
	if fk := class.Relationship("banner").ForeignKey; fk != "subject_id" {
		t.Fatalf("explicit foreign key overridden: got %s", fk)
	}
}

func TestRegister_Rejections(t *testing.T) {
	reg := NewRegistry()
	if _, err := reg.Register(Definition{Name: "User"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		name string
		def  Definition
	}{
		{"empty name", Definition{}},
		{"duplicate class", Definition{Name: "User"}},
		{"unknown relationship kind", Definition{
			Name:          "Post",
			Relationships: []Relationship{{Name: "x", Kind: Kind("owns"), Target: "User"}},
		}},
		{"duplicate relationship", Definition{
			Name: "Post2",
			Relationships: []Relationship{
				{Name: "author", Kind: BelongsTo, Target: "User"},
				{Name: "author", Kind: BelongsTo, Target: "User"},
			},
		}},
		{"bad expression rule", Definition{
			Name:  "Post3",
			Rules: []Rule{{Type: RuleExpression, Expression: "record.total >"}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := reg.Register(tt.def); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestRegistry_Get(t *testing.T) {
	reg := NewRegistry()
	if _, err := reg.Register(Definition{Name: "User"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reg.Get("User") == nil {
		t.Fatal("registered class not found")
	}
	if reg.Get("Ghost") != nil {
		t.Fatal("expected nil for unregistered class")
	}
}
