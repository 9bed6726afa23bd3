package model

import "testing"

func mustCompile(t *testing.T, rules []Rule) []*Rule {
	t.Helper()
	out := make([]*Rule, len(rules))
	for i := range rules {
		if err := rules[i].compile(); err != nil {
			t.Fatalf("compile rule %d: %v", i, err)
		}
		out[i] = &rules[i]
	}
	return out
}

func TestFieldRules(t *testing.T) {
	tests := []struct {
		name     string
		rule     Rule
		record   map[string]any
		isCreate bool
		wantErr  bool
	}{
		{"required present", Rule{Type: RuleField, Field: "name", Operator: "required"},
			map[string]any{"name": "Alice"}, true, false},
		{"required missing on create", Rule{Type: RuleField, Field: "name", Operator: "required"},
			map[string]any{}, true, true},
		{"required empty string", Rule{Type: RuleField, Field: "name", Operator: "required"},
			map[string]any{"name": ""}, true, true},
		{"required absent on update passes", Rule{Type: RuleField, Field: "name", Operator: "required"},
			map[string]any{"email": "a@b"}, false, false},
		{"required nil on update fails", Rule{Type: RuleField, Field: "name", Operator: "required"},
			map[string]any{"name": nil}, false, true},

		{"min ok", Rule{Type: RuleField, Field: "age", Operator: "min", Value: 18},
			map[string]any{"age": 21}, true, false},
		{"min violated", Rule{Type: RuleField, Field: "age", Operator: "min", Value: 18},
			map[string]any{"age": 15}, true, true},
		{"max violated", Rule{Type: RuleField, Field: "age", Operator: "max", Value: 65},
			map[string]any{"age": float64(70)}, true, true},
		{"min skips absent field", Rule{Type: RuleField, Field: "age", Operator: "min", Value: 18},
			map[string]any{}, true, false},

		{"min_length violated", Rule{Type: RuleField, Field: "title", Operator: "min_length", Value: 3},
			map[string]any{"title": "ab"}, true, true},
		{"max_length ok", Rule{Type: RuleField, Field: "title", Operator: "max_length", Value: 5},
			map[string]any{"title": "abc"}, true, false},
		{"pattern ok", Rule{Type: RuleField, Field: "email", Operator: "pattern", Value: `^[^@]+@[^@]+$`},
			map[string]any{"email": "a@b.com"}, true, false},
		{"pattern violated", Rule{Type: RuleField, Field: "email", Operator: "pattern", Value: `^[^@]+@[^@]+$`},
			map[string]any{"email": "not-an-email"}, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rules := mustCompile(t, []Rule{tt.rule})
			errs := EvaluateRules(rules, tt.record, nil, tt.isCreate)
			if tt.wantErr && len(errs) == 0 {
				t.Fatal("expected a validation error")
			}
			if !tt.wantErr && len(errs) > 0 {
				t.Fatalf("unexpected errors: %v", errs)
			}
		})
	}
}

func TestExpressionRules(t *testing.T) {
	rules := mustCompile(t, []Rule{{
		Type:       RuleExpression,
		Field:      "total",
		Expression: `action == "update" && record.total < old.total`,
		Message:    "total cannot decrease",
	}})

	errs := EvaluateRules(rules,
		map[string]any{"total": 50},
		map[string]any{"total": 100},
		false)
	if len(errs) != 1 || errs[0].Message != "total cannot decrease" {
		t.Fatalf("expected violation, got %v", errs)
	}

	errs = EvaluateRules(rules,
		map[string]any{"total": 150},
		map[string]any{"total": 100},
		false)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}

	// Same state on create: the action guard keeps the rule quiet.
	errs = EvaluateRules(rules,
		map[string]any{"total": 50},
		map[string]any{"total": 100},
		true)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors on create: %v", errs)
	}
}

func TestComputedRules(t *testing.T) {
	rules := mustCompile(t, []Rule{{
		Type:       RuleComputed,
		Field:      "total",
		Expression: `record.price * record.quantity`,
	}})

	fields := map[string]any{"price": 10, "quantity": 3}
	errs := EvaluateRules(rules, fields, nil, true)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if fields["total"] != 30 {
		t.Fatalf("computed field: got %v, want 30", fields["total"])
	}
}

func TestComputedSkippedOnValidationFailure(t *testing.T) {
	rules := mustCompile(t, []Rule{
		{Type: RuleField, Field: "price", Operator: "min", Value: 1},
		{Type: RuleComputed, Field: "total", Expression: `record.price * 2`},
	})

	fields := map[string]any{"price": 0}
	errs := EvaluateRules(rules, fields, nil, true)
	if len(errs) != 1 {
		t.Fatalf("expected one error, got %v", errs)
	}
	if _, set := fields["total"]; set {
		t.Fatal("computed field ran despite validation failure")
	}
}

func TestStopOnFail(t *testing.T) {
	rules := mustCompile(t, []Rule{
		{Type: RuleField, Field: "name", Operator: "required", StopOnFail: true},
		{Type: RuleField, Field: "email", Operator: "required"},
	})

	errs := EvaluateRules(rules, map[string]any{}, nil, true)
	if len(errs) != 1 {
		t.Fatalf("expected evaluation to stop after the first failure, got %v", errs)
	}
	if errs[0].Field != "name" {
		t.Fatalf("unexpected failing field: %s", errs[0].Field)
	}
}
