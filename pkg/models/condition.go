// Package models provides condition evaluation for workflow branching.
package models

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sendloop/sendloop/pkg/template"
)

// ConditionOperator is a closed set of field comparison operators.
type ConditionOperator string

const (
	OperatorEquals     ConditionOperator = "equals"
	OperatorNotEquals  ConditionOperator = "not_equals"
	OperatorContains   ConditionOperator = "contains"
	OperatorStartsWith ConditionOperator = "starts_with"
	OperatorEndsWith   ConditionOperator = "ends_with"
	OperatorIsEmpty    ConditionOperator = "is_empty"
	OperatorIsNotEmpty ConditionOperator = "is_not_empty"
	OperatorGt         ConditionOperator = "gt"
	OperatorGte        ConditionOperator = "gte"
	OperatorLt         ConditionOperator = "lt"
	OperatorLte        ConditionOperator = "lte"
	OperatorIn         ConditionOperator = "in"
	OperatorNotIn      ConditionOperator = "not_in"
)

// Conjunction combines multiple conditions.
type Conjunction string

const (
	ConjunctionAnd Conjunction = "and"
	ConjunctionOr  Conjunction = "or"
)

// Condition compares one context field against a literal or another
// resolvable path.
type Condition struct {
	Field    string            `json:"field"    validate:"required"`
	Operator ConditionOperator `json:"operator" validate:"required"`
	Value    any               `json:"value,omitempty"`
}

// Evaluate resolves the condition's field against the flattened context
// data and applies the operator.
func (c Condition) Evaluate(data map[string]any) bool {
	actual, _ := template.Lookup(data, c.Field)
	expected := template.ResolveValue(c.Value, data)

	switch c.Operator {
	case OperatorEquals:
		return compareEqual(actual, expected)
	case OperatorNotEquals:
		return !compareEqual(actual, expected)
	case OperatorContains:
		return strings.Contains(template.Stringify(actual), template.Stringify(expected))
	case OperatorStartsWith:
		return strings.HasPrefix(template.Stringify(actual), template.Stringify(expected))
	case OperatorEndsWith:
		return strings.HasSuffix(template.Stringify(actual), template.Stringify(expected))
	case OperatorIsEmpty:
		return isEmpty(actual)
	case OperatorIsNotEmpty:
		return !isEmpty(actual)
	case OperatorGt, OperatorGte, OperatorLt, OperatorLte:
		return compareNumeric(c.Operator, actual, expected)
	case OperatorIn:
		return containsMember(expected, actual)
	case OperatorNotIn:
		return !containsMember(expected, actual)
	default:
		return false
	}
}

// EvaluateConditions evaluates a condition list under the given
// conjunction. An empty list is vacuously true.
func EvaluateConditions(conditions []Condition, conjunction Conjunction, data map[string]any) bool {
	if len(conditions) == 0 {
		return true
	}

	if conjunction == ConjunctionOr {
		for _, condition := range conditions {
			if condition.Evaluate(data) {
				return true
			}
		}

		return false
	}

	for _, condition := range conditions {
		if !condition.Evaluate(data) {
			return false
		}
	}

	return true
}

// ParseConditions builds a condition list from raw node config.
func ParseConditions(raw any) ([]Condition, error) {
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("conditions must be a list, got %T", raw)
	}

	conditions := make([]Condition, 0, len(list))

	for i, item := range list {
		entry, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("condition %d must be an object", i)
		}

		field, _ := entry["field"].(string)
		if field == "" {
			return nil, fmt.Errorf("condition %d missing 'field'", i)
		}

		operator, _ := entry["operator"].(string)
		if operator == "" {
			return nil, fmt.Errorf("condition %d missing 'operator'", i)
		}

		conditions = append(conditions, Condition{
			Field:    field,
			Operator: ConditionOperator(operator),
			Value:    entry["value"],
		})
	}

	return conditions, nil
}

// ParseConjunction defaults to "and" when missing.
func ParseConjunction(raw any) Conjunction {
	if s, ok := raw.(string); ok && Conjunction(s) == ConjunctionOr {
		return ConjunctionOr
	}

	return ConjunctionAnd
}

func compareEqual(a, b any) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)

	if aok && bok {
		return af == bf
	}

	return template.Stringify(a) == template.Stringify(b)
}

func compareNumeric(op ConditionOperator, a, b any) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)

	if !aok || !bok {
		return false
	}

	switch op {
	case OperatorGt:
		return af > bf
	case OperatorGte:
		return af >= bf
	case OperatorLt:
		return af < bf
	case OperatorLte:
		return af <= bf
	default:
		return false
	}
}

func containsMember(collection, member any) bool {
	list, ok := collection.([]any)
	if !ok {
		return false
	}

	for _, item := range list {
		if compareEqual(item, member) {
			return true
		}
	}

	return false
}

func isEmpty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case []any:
		return len(v) == 0
	case map[string]any:
		return len(v) == 0
	default:
		return false
	}
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, false
		}

		return f, true
	default:
		return 0, false
	}
}
