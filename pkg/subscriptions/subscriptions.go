// Package subscriptions stores wait-for-event registrations made by paused
// workflow executions. The wait node creates a subscription when it parks an
// execution; the worker matches incoming events against the store and
// resumes the owning execution.
package subscriptions

import (
	"context"
	"fmt"
	"time"

	"github.com/sendloop/sendloop/pkg/protocol"
)

// Subscription ties one paused execution to the event it waits for.
type Subscription struct {
	ID          string         `json:"id"`
	ExecutionID string         `json:"execution_id"`
	EventType   string         `json:"event_type"`
	Filter      map[string]any `json:"filter,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	ExpiresAt   time.Time      `json:"expires_at"`
}

// Matches reports whether an event payload satisfies the subscription
// filter. Every filter key must be present in the payload with an equal
// value; an empty filter matches any payload. Values compare by their
// printed form so JSON-decoded numbers and Go literals agree.
func (s Subscription) Matches(payload map[string]any) bool {
	for key, want := range s.Filter {
		got, ok := payload[key]
		if !ok {
			return false
		}

		if fmt.Sprint(got) != fmt.Sprint(want) {
			return false
		}
	}

	return true
}

// Store is the full subscription lifecycle: the wait node only needs the
// create side (protocol.SubscriptionStore), the worker needs match and
// delete as well.
type Store interface {
	protocol.SubscriptionStore

	// Match returns the live subscriptions for an event type whose filter
	// accepts the payload.
	Match(ctx context.Context, eventType string, payload map[string]any) ([]Subscription, error)

	// Delete removes a subscription after its execution has been resumed.
	// Deleting an unknown or expired subscription is not an error.
	Delete(ctx context.Context, id string) error

	Close() error
}
