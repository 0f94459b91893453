// Package wait provides the suspension node executor: duration, datetime
// and event waits.
package wait

import (
	"context"
	"fmt"
	"time"

	"github.com/sendloop/sendloop/pkg/models"
	"github.com/sendloop/sendloop/pkg/protocol"
	"github.com/sendloop/sendloop/pkg/template"
)

const defaultEventTimeoutHours = 72

// WaitNode suspends the execution until a duration elapses, a datetime is
// reached or a named event arrives. The engine itself never sleeps; the
// external scheduler re-enters the execution when the condition holds.
type WaitNode struct {
	id   string
	kind models.WaitEventKind

	// duration waits
	amount float64
	unit   string

	// datetime waits: literal RFC 3339 or a dot-path into the context
	datetime string

	// event waits
	eventType    string
	eventFilter  map[string]any
	timeoutHours float64

	store protocol.SubscriptionStore
	now   func() time.Time
}

// NewWaitNode creates a new wait node.
func NewWaitNode(node *models.WorkflowNode, store protocol.SubscriptionStore, now func() time.Time) (*WaitNode, error) {
	kind, _ := node.Data["wait_type"].(string)

	n := &WaitNode{
		id:    node.ID,
		kind:  models.WaitEventKind(kind),
		store: store,
		now:   now,
	}

	if n.now == nil {
		n.now = time.Now
	}

	switch n.kind {
	case models.WaitKindDuration:
		amount, ok := toNumber(node.Data["duration"])
		if !ok || amount <= 0 {
			return nil, fmt.Errorf("wait node %s: 'duration' must be a positive number", node.ID)
		}

		unit, _ := node.Data["unit"].(string)
		if unit == "" {
			unit = "hours"
		}

		n.amount = amount
		n.unit = unit
	case models.WaitKindDatetime:
		datetime, _ := node.Data["datetime"].(string)
		if datetime == "" {
			return nil, fmt.Errorf("wait node %s: 'datetime' is required", node.ID)
		}

		n.datetime = datetime
	case models.WaitKindEvent:
		eventType, _ := node.Data["event_type"].(string)
		if eventType == "" {
			return nil, fmt.Errorf("wait node %s: 'event_type' is required", node.ID)
		}

		n.eventType = eventType
		n.eventFilter, _ = node.Data["filter"].(map[string]any)

		if hours, ok := toNumber(node.Data["timeout_hours"]); ok && hours > 0 {
			n.timeoutHours = hours
		} else {
			n.timeoutHours = defaultEventTimeoutHours
		}
	default:
		return nil, fmt.Errorf("wait node %s: unknown wait_type %q", node.ID, kind)
	}

	return n, nil
}

// Execute produces a waiting result carrying exactly one resumption
// condition. Dry runs report what would happen and proceed.
func (n *WaitNode) Execute(ctx context.Context, execution *models.WorkflowExecution) (*protocol.NodeResult, error) {
	if execution.IsDryRun {
		return protocol.Success(map[string]any{
			"dry_run":   true,
			"wait_type": string(n.kind),
			"skipped":   "dry runs never wait",
		}), nil
	}

	switch n.kind {
	case models.WaitKindDuration:
		offset, err := n.durationOffset()
		if err != nil {
			return protocol.Failed(err.Error()), nil
		}

		resumeAt := n.now().Add(offset)

		return waitingResult(&protocol.WaitInfo{
			Kind:     models.WaitKindDuration,
			ResumeAt: &resumeAt,
		}), nil
	case models.WaitKindDatetime:
		resumeAt, err := n.resolveDatetime(execution)
		if err != nil {
			return protocol.Failed(err.Error()), nil
		}

		return waitingResult(&protocol.WaitInfo{
			Kind:     models.WaitKindDatetime,
			ResumeAt: &resumeAt,
		}), nil
	case models.WaitKindEvent:
		timeout := time.Duration(n.timeoutHours * float64(time.Hour))
		timeoutAt := n.now().Add(timeout)

		if n.store != nil {
			if _, err := n.store.CreateSubscription(ctx, execution.ID, n.eventType, n.eventFilter, timeout); err != nil {
				return protocol.Failed(fmt.Sprintf("failed to register event subscription: %v", err)), nil
			}
		}

		return waitingResult(&protocol.WaitInfo{
			Kind:        models.WaitKindEvent,
			EventType:   n.eventType,
			EventFilter: n.eventFilter,
			TimeoutAt:   &timeoutAt,
		}), nil
	}

	return protocol.Failed(fmt.Sprintf("unknown wait_type %q", n.kind)), nil
}

func (n *WaitNode) durationOffset() (time.Duration, error) {
	switch n.unit {
	case "minutes":
		return time.Duration(n.amount * float64(time.Minute)), nil
	case "hours":
		return time.Duration(n.amount * float64(time.Hour)), nil
	case "days":
		return time.Duration(n.amount * 24 * float64(time.Hour)), nil
	default:
		return 0, fmt.Errorf("unknown duration unit %q", n.unit)
	}
}

func (n *WaitNode) resolveDatetime(execution *models.WorkflowExecution) (time.Time, error) {
	value := n.datetime

	if template.NeedsResolution(value) {
		resolved, found := template.Lookup(execution.Context.Data(), value)
		if !found {
			return time.Time{}, fmt.Errorf("datetime path %q did not resolve", value)
		}

		value = template.Stringify(resolved)
	}

	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid datetime %q: %w", value, err)
	}

	return parsed, nil
}

func waitingResult(info *protocol.WaitInfo) *protocol.NodeResult {
	return &protocol.NodeResult{
		Outcome: protocol.OutcomeWaiting,
		Wait:    info,
		Output:  map[string]any{"wait_type": string(info.Kind)},
	}
}

func toNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}
