// Package wait provides the wait node factory for registry integration.
package wait

import (
	"time"

	"github.com/sendloop/sendloop/pkg/models"
	"github.com/sendloop/sendloop/pkg/protocol"
)

// WaitNodeFactory creates WaitNode instances bound to a subscription store.
type WaitNodeFactory struct {
	store protocol.SubscriptionStore
	now   func() time.Time
}

// NewWaitNodeFactory creates a new factory instance. The store may be nil
// when event waits are not used (dry-run tooling).
func NewWaitNodeFactory(store protocol.SubscriptionStore, now func() time.Time) protocol.NodeFactory {
	return &WaitNodeFactory{store: store, now: now}
}

// Create creates a new WaitNode instance.
func (f *WaitNodeFactory) Create(node *models.WorkflowNode) (protocol.NodeExecutor, error) {
	return NewWaitNode(node, f.store, f.now)
}

// ID returns the factory ID.
func (f *WaitNodeFactory) ID() string {
	return string(models.NodeTypeWait)
}

// Name returns the factory name.
func (f *WaitNodeFactory) Name() string {
	return "Wait"
}

// Description returns the factory description.
func (f *WaitNodeFactory) Description() string {
	return "Suspends the execution for a duration, until a datetime, or until a named event arrives."
}

// Schema returns the JSON schema for wait node data.
func (f *WaitNodeFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"wait_type": map[string]any{
				"type": "string",
				"enum": []any{"duration", "datetime", "event"},
			},
			"duration": map[string]any{"type": "number"},
			"unit": map[string]any{
				"type": "string",
				"enum": []any{"minutes", "hours", "days"},
			},
			"datetime": map[string]any{
				"type":        "string",
				"description": "RFC 3339 timestamp or a context path such as record.next_meeting_at",
			},
			"event_type":    map[string]any{"type": "string"},
			"filter":        map[string]any{"type": "object"},
			"timeout_hours": map[string]any{"type": "number"},
		},
		"required": []any{"wait_type"},
	}
}
