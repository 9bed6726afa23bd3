package model

import (
	"fmt"
	"regexp"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

type RuleType string

const (
	RuleField      RuleType = "field"
	RuleExpression RuleType = "expression"
	RuleComputed   RuleType = "computed"
)

// Rule is one declarative validation or computed-field rule. Expression and
// computed rules are compiled once at class registration.
type Rule struct {
	Type       RuleType
	Field      string
	Operator   string // field rules: required, min, max, min_length, max_length, pattern
	Value      any
	Expression string // expression/computed rules
	Message    string
	StopOnFail bool

	program *vm.Program
}

// ErrorDetail is one validation failure, keyed by field where applicable.
type ErrorDetail struct {
	Field   string
	Rule    string
	Message string
}

func (r *Rule) compile() error {
	switch r.Type {
	case RuleExpression:
		prog, err := expr.Compile(r.Expression, expr.AsBool())
		if err != nil {
			return fmt.Errorf("compile expression rule: %w", err)
		}
		r.program = prog
	case RuleComputed:
		prog, err := expr.Compile(r.Expression)
		if err != nil {
			return fmt.Errorf("compile computed rule for %s: %w", r.Field, err)
		}
		r.program = prog
	}
	return nil
}

// EvaluateRules runs a class's rules against the record state: field rules,
// then expression rules, then computed fields. Computed fields only run when
// validation passed; they mutate the fields map. The env exposed to
// expressions is {record, old, action}.
func EvaluateRules(rules []*Rule, fields, old map[string]any, isCreate bool) []ErrorDetail {
	if len(rules) == 0 {
		return nil
	}

	action := "update"
	if isCreate {
		action = "create"
	}
	env := map[string]any{
		"record": fields,
		"old":    old,
		"action": action,
	}

	var errs []ErrorDetail

	for _, r := range rules {
		if r.Type != RuleField {
			continue
		}
		if detail := evaluateFieldRule(r, fields, isCreate); detail != nil {
			errs = append(errs, *detail)
			if r.StopOnFail {
				return errs
			}
		}
	}

	for _, r := range rules {
		if r.Type != RuleExpression {
			continue
		}
		if detail := evaluateExpressionRule(r, env); detail != nil {
			errs = append(errs, *detail)
			if r.StopOnFail {
				return errs
			}
		}
	}

	if len(errs) > 0 {
		return errs
	}

	for _, r := range rules {
		if r.Type != RuleComputed {
			continue
		}
		val, err := expr.Run(r.program, env)
		if err != nil {
			errs = append(errs, ErrorDetail{
				Field:   r.Field,
				Rule:    "computed",
				Message: err.Error(),
			})
			continue
		}
		fields[r.Field] = val
	}

	return errs
}

// evaluateFieldRule checks a single field rule. Except for "required", absent
// fields pass.
func evaluateFieldRule(rule *Rule, record map[string]any, isCreate bool) *ErrorDetail {
	fieldName := rule.Field
	val, exists := record[fieldName]

	op := rule.Operator
	msg := rule.Message
	if msg == "" {
		msg = fmt.Sprintf("field %s failed %s validation", fieldName, op)
	}

	if op == "required" {
		missing := !exists || val == nil || val == ""
		if missing && (isCreate || exists) {
			return &ErrorDetail{Field: fieldName, Rule: "required", Message: msg}
		}
		return nil
	}

	if !exists || val == nil {
		return nil
	}

	switch op {
	case "min":
		num, ok := toFloat64(val)
		if !ok {
			return nil
		}
		threshold, ok := toFloat64(rule.Value)
		if !ok {
			return nil
		}
		if num < threshold {
			return &ErrorDetail{Field: fieldName, Rule: "min", Message: msg}
		}

	case "max":
		num, ok := toFloat64(val)
		if !ok {
			return nil
		}
		threshold, ok := toFloat64(rule.Value)
		if !ok {
			return nil
		}
		if num > threshold {
			return &ErrorDetail{Field: fieldName, Rule: "max", Message: msg}
		}

	case "min_length":
		s, ok := val.(string)
		if !ok {
			return nil
		}
		threshold, ok := toFloat64(rule.Value)
		if !ok {
			return nil
		}
		if len(s) < int(threshold) {
			return &ErrorDetail{Field: fieldName, Rule: "min_length", Message: msg}
		}

	case "max_length":
		s, ok := val.(string)
		if !ok {
			return nil
		}
		threshold, ok := toFloat64(rule.Value)
		if !ok {
			return nil
		}
		if len(s) > int(threshold) {
			return &ErrorDetail{Field: fieldName, Rule: "max_length", Message: msg}
		}

	case "pattern":
		s, ok := val.(string)
		if !ok {
			return nil
		}
		pattern, ok := rule.Value.(string)
		if !ok {
			return nil
		}
		matched, err := regexp.MatchString(pattern, s)
		if err != nil || !matched {
			return &ErrorDetail{Field: fieldName, Rule: "pattern", Message: msg}
		}
	}

	return nil
}

// evaluateExpressionRule runs a compiled rule expression. A true result means
// the rule is violated.
func evaluateExpressionRule(rule *Rule, env map[string]any) *ErrorDetail {
	result, err := expr.Run(rule.program, env)
	if err != nil {
		return &ErrorDetail{Field: rule.Field, Rule: "expression", Message: fmt.Sprintf("rule evaluation error: %v", err)}
	}

	violated, ok := result.(bool)
	if !ok || !violated {
		return nil
	}

	msg := rule.Message
	if msg == "" {
		msg = "expression rule violated"
	}
	return &ErrorDetail{Field: rule.Field, Rule: "expression", Message: msg}
}

// toFloat64 converts numeric types to float64.
func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	}
	return 0, false
}
