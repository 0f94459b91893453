package protocol

import (
	"context"
	"time"

	"github.com/sendloop/sendloop/pkg/models"
)

// ActionExecutor runs a single side-effecting action (send email, update
// record, create task). Implementations own their own retry policy; the
// engine never retries a failed action.
type ActionExecutor interface {
	ExecuteAction(ctx context.Context, actionType string, input map[string]any, execution *models.WorkflowExecution) (map[string]any, error)
}

// AgentRunner invokes an AI agent and returns its raw result map.
type AgentRunner interface {
	RunAgent(ctx context.Context, agentID string, input map[string]any, execution *models.WorkflowExecution) (map[string]any, error)
}

// SubscriptionStore registers wait-for-event subscriptions. The store is
// consumed by the wait node path; delivery of matching events back into
// the engine belongs to the external scheduler.
type SubscriptionStore interface {
	CreateSubscription(ctx context.Context, executionID, eventType string, filter map[string]any, timeout time.Duration) (string, error)
}
