package subscriptions

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscriptionMatches(t *testing.T) {
	tests := []struct {
		name    string
		filter  map[string]any
		payload map[string]any
		expect  bool
	}{
		{"empty filter matches anything", nil, map[string]any{"x": 1}, true},
		{"exact match", map[string]any{"record_id": "r-1"}, map[string]any{"record_id": "r-1", "extra": true}, true},
		{"value mismatch", map[string]any{"record_id": "r-1"}, map[string]any{"record_id": "r-2"}, false},
		{"missing key", map[string]any{"record_id": "r-1"}, map[string]any{"other": "r-1"}, false},
		{"json number equals go int", map[string]any{"count": 3}, map[string]any{"count": float64(3)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := Subscription{Filter: tt.filter}
			assert.Equal(t, tt.expect, sub.Matches(tt.payload))
		})
	}
}

func TestMemoryStoreMatchesByEventTypeAndFilter(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.CreateSubscription(t.Context(), "exec-1", "email.replied",
		map[string]any{"record_id": "r-1"}, time.Hour)
	require.NoError(t, err)

	_, err = store.CreateSubscription(t.Context(), "exec-2", "email.replied",
		map[string]any{"record_id": "r-2"}, time.Hour)
	require.NoError(t, err)

	_, err = store.CreateSubscription(t.Context(), "exec-3", "email.opened", nil, time.Hour)
	require.NoError(t, err)

	matched, err := store.Match(t.Context(), "email.replied", map[string]any{"record_id": "r-1"})
	require.NoError(t, err)
	require.Len(t, matched, 1)
	assert.Equal(t, "exec-1", matched[0].ExecutionID)

	matched, err = store.Match(t.Context(), "email.opened", map[string]any{"anything": true})
	require.NoError(t, err)
	require.Len(t, matched, 1)
	assert.Equal(t, "exec-3", matched[0].ExecutionID)
}

func TestMemoryStoreExpiry(t *testing.T) {
	store := NewMemoryStore()

	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return current }

	_, err := store.CreateSubscription(t.Context(), "exec-1", "email.replied", nil, 30*time.Minute)
	require.NoError(t, err)

	matched, err := store.Match(t.Context(), "email.replied", nil)
	require.NoError(t, err)
	assert.Len(t, matched, 1)

	current = current.Add(time.Hour)

	matched, err = store.Match(t.Context(), "email.replied", nil)
	require.NoError(t, err)
	assert.Empty(t, matched, "expired subscriptions never match")
}

func TestMemoryStoreDelete(t *testing.T) {
	store := NewMemoryStore()

	id, err := store.CreateSubscription(t.Context(), "exec-1", "email.replied", nil, time.Hour)
	require.NoError(t, err)

	require.NoError(t, store.Delete(t.Context(), id))
	require.NoError(t, store.Delete(t.Context(), id), "double delete is fine")

	matched, err := store.Match(t.Context(), "email.replied", nil)
	require.NoError(t, err)
	assert.Empty(t, matched)
}
