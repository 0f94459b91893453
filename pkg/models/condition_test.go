package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func conditionData() map[string]any {
	return map[string]any{
		"record": map[string]any{
			"email": "alice@example.com",
			"score": 42,
			"tags":  []any{"vip", "trial"},
			"notes": "",
		},
		"trigger": map[string]any{"source": "crm"},
		"nodes": map[string]any{
			"score-agent": map[string]any{"score": 87.5},
		},
	}
}

func TestConditionEvaluateOperators(t *testing.T) {
	tests := []struct {
		name      string
		condition Condition
		want      bool
	}{
		{"equals string", Condition{Field: "record.email", Operator: OperatorEquals, Value: "alice@example.com"}, true},
		{"equals mismatched", Condition{Field: "record.email", Operator: OperatorEquals, Value: "bob@example.com"}, false},
		{"equals numeric coercion", Condition{Field: "record.score", Operator: OperatorEquals, Value: 42.0}, true},
		{"not equals", Condition{Field: "trigger.source", Operator: OperatorNotEquals, Value: "import"}, true},
		{"contains", Condition{Field: "record.email", Operator: OperatorContains, Value: "@example"}, true},
		{"starts with", Condition{Field: "record.email", Operator: OperatorStartsWith, Value: "alice"}, true},
		{"ends with", Condition{Field: "record.email", Operator: OperatorEndsWith, Value: ".com"}, true},
		{"is empty", Condition{Field: "record.notes", Operator: OperatorIsEmpty}, true},
		{"is empty on missing field", Condition{Field: "record.missing", Operator: OperatorIsEmpty}, true},
		{"is not empty", Condition{Field: "record.email", Operator: OperatorIsNotEmpty}, true},
		{"gt true", Condition{Field: "record.score", Operator: OperatorGt, Value: 40}, true},
		{"gt false on equal", Condition{Field: "record.score", Operator: OperatorGt, Value: 42}, false},
		{"gte on equal", Condition{Field: "record.score", Operator: OperatorGte, Value: 42}, true},
		{"lt", Condition{Field: "record.score", Operator: OperatorLt, Value: 100}, true},
		{"lte", Condition{Field: "record.score", Operator: OperatorLte, Value: 42}, true},
		{"in list", Condition{Field: "trigger.source", Operator: OperatorIn, Value: []any{"crm", "api"}}, true},
		{"not in list", Condition{Field: "trigger.source", Operator: OperatorNotIn, Value: []any{"import"}}, true},
		{"node output path", Condition{Field: "nodes.score-agent.score", Operator: OperatorGte, Value: 80}, true},
		{"value resolved from context", Condition{Field: "record.email", Operator: OperatorEquals, Value: "record.email"}, true},
		{"unknown operator", Condition{Field: "record.email", Operator: "regex", Value: ".*"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.condition.Evaluate(conditionData()))
		})
	}
}

func TestEvaluateConditionsConjunction(t *testing.T) {
	pass := Condition{Field: "trigger.source", Operator: OperatorEquals, Value: "crm"}
	fail := Condition{Field: "trigger.source", Operator: OperatorEquals, Value: "import"}
	data := conditionData()

	assert.True(t, EvaluateConditions(nil, ConjunctionAnd, data))
	assert.True(t, EvaluateConditions([]Condition{pass, pass}, ConjunctionAnd, data))
	assert.False(t, EvaluateConditions([]Condition{pass, fail}, ConjunctionAnd, data))
	assert.True(t, EvaluateConditions([]Condition{fail, pass}, ConjunctionOr, data))
	assert.False(t, EvaluateConditions([]Condition{fail, fail}, ConjunctionOr, data))
}

func TestParseConditions(t *testing.T) {
	conditions, err := ParseConditions([]any{
		map[string]any{"field": "record.score", "operator": "gt", "value": 10},
	})
	require.NoError(t, err)
	require.Len(t, conditions, 1)
	assert.Equal(t, OperatorGt, conditions[0].Operator)

	_, err = ParseConditions("not a list")
	require.Error(t, err)

	_, err = ParseConditions([]any{map[string]any{"operator": "gt"}})
	require.Error(t, err)

	_, err = ParseConditions([]any{map[string]any{"field": "record.score"}})
	require.Error(t, err)
}

func TestParseConjunctionDefaultsToAnd(t *testing.T) {
	assert.Equal(t, ConjunctionAnd, ParseConjunction(nil))
	assert.Equal(t, ConjunctionAnd, ParseConjunction("bogus"))
	assert.Equal(t, ConjunctionOr, ParseConjunction("or"))
}
