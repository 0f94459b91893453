package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func contextData() map[string]any {
	return map[string]any{
		"record": map[string]any{
			"email": "alice@example.com",
			"owner": map[string]any{"name": "Sam"},
		},
		"trigger":   map[string]any{"source": "crm"},
		"variables": map[string]any{"threshold": 50},
		"nodes": map[string]any{
			"enrich": map[string]any{"company": "Acme"},
		},
	}
}

func TestLookup(t *testing.T) {
	data := contextData()

	value, found := Lookup(data, "record.email")
	assert.True(t, found)
	assert.Equal(t, "alice@example.com", value)

	value, found = Lookup(data, "record.owner.name")
	assert.True(t, found)
	assert.Equal(t, "Sam", value)

	_, found = Lookup(data, "record.missing")
	assert.False(t, found)

	// A path through a non-map value cannot resolve.
	_, found = Lookup(data, "record.email.domain")
	assert.False(t, found)
}

func TestResolveValue(t *testing.T) {
	data := contextData()

	assert.Equal(t, "alice@example.com", ResolveValue("record.email", data))
	assert.Equal(t, "Acme", ResolveValue("nodes.enrich.company", data))

	// Plain strings and non-strings pass through untouched.
	assert.Equal(t, "hello", ResolveValue("hello", data))
	assert.Equal(t, 42, ResolveValue(42, data))

	// Unresolvable context paths become nil rather than staying literal.
	assert.Nil(t, ResolveValue("record.unknown", data))
}

func TestResolveMapRecursesWithoutMutating(t *testing.T) {
	data := contextData()
	input := map[string]any{
		"to":     "record.email",
		"static": "welcome",
		"nested": map[string]any{"company": "nodes.enrich.company"},
	}

	resolved := ResolveMap(input, data)

	assert.Equal(t, "alice@example.com", resolved["to"])
	assert.Equal(t, "welcome", resolved["static"])
	assert.Equal(t, map[string]any{"company": "Acme"}, resolved["nested"])

	// Input map keeps its unresolved form.
	assert.Equal(t, "record.email", input["to"])
	assert.Equal(t, map[string]any{"company": "nodes.enrich.company"}, input["nested"])
}

func TestStringify(t *testing.T) {
	assert.Equal(t, "", Stringify(nil))
	assert.Equal(t, "42", Stringify(42))
	assert.Equal(t, "true", Stringify(true))
}
