// Package events defines event types for workflow execution and domain
// warming lifecycle notifications.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/sendloop/sendloop/pkg/models"
)

type EventType string

// Topic is the single stream all sendloop events are published to.
const Topic = "sendloop.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Workflow execution lifecycle events.
	ExecutionStartedEvent   EventType = "execution.started"
	ExecutionPausedEvent    EventType = "execution.paused"
	ExecutionResumedEvent   EventType = "execution.resumed"
	ExecutionCompletedEvent EventType = "execution.completed"
	ExecutionFailedEvent    EventType = "execution.failed"
	StepCompletedEvent      EventType = "execution.step.completed"

	// Domain warming lifecycle events.
	WarmingDayAdvancedEvent EventType = "warming.day.advanced"
	WarmingCompletedEvent   EventType = "warming.completed"
	DomainPausedEvent       EventType = "warming.domain.paused"
	HealthCalculatedEvent   EventType = "health.calculated"

	// Outbound mail events consumed by the delivery pipeline.
	EmailQueuedEvent EventType = "email.queued"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func NewBaseEvent(eventType EventType) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Metadata:  make(map[string]any),
	}
}

// Workflow execution lifecycle events

type ExecutionStarted struct {
	BaseEvent

	ExecutionID string         `json:"execution_id"`
	WorkflowID  string         `json:"workflow_id"`
	RecordID    string         `json:"record_id,omitempty"`
	TriggerData map[string]any `json:"trigger_data,omitempty"`
	IsDryRun    bool           `json:"is_dry_run"`
}

func (e ExecutionStarted) GetType() EventType {
	return ExecutionStartedEvent
}

type ExecutionPaused struct {
	BaseEvent

	ExecutionID   string               `json:"execution_id"`
	WorkflowID    string               `json:"workflow_id"`
	WaitNodeID    string               `json:"wait_node_id"`
	WaitKind      models.WaitEventKind `json:"wait_kind"`
	ResumeAt      *time.Time           `json:"resume_at,omitempty"`
	WaitEventType string               `json:"wait_event_type,omitempty"`
}

func (e ExecutionPaused) GetType() EventType {
	return ExecutionPausedEvent
}

type ExecutionResumed struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	WorkflowID  string `json:"workflow_id"`
	NextNodeID  string `json:"next_node_id"`
}

func (e ExecutionResumed) GetType() EventType {
	return ExecutionResumedEvent
}

type ExecutionCompleted struct {
	BaseEvent

	ExecutionID   string `json:"execution_id"`
	WorkflowID    string `json:"workflow_id"`
	NodesExecuted int    `json:"nodes_executed"`
	DurationMs    int64  `json:"duration_ms"`
}

func (e ExecutionCompleted) GetType() EventType {
	return ExecutionCompletedEvent
}

type ExecutionFailed struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	WorkflowID  string `json:"workflow_id"`
	NodeID      string `json:"node_id"`
	Error       string `json:"error"`
}

func (e ExecutionFailed) GetType() EventType {
	return ExecutionFailedEvent
}

type StepCompleted struct {
	BaseEvent

	ExecutionID string            `json:"execution_id"`
	NodeID      string            `json:"node_id"`
	NodeType    models.NodeType   `json:"node_type"`
	Status      models.StepStatus `json:"status"`
	DurationMs  int64             `json:"duration_ms"`
}

func (e StepCompleted) GetType() EventType {
	return StepCompletedEvent
}

// Domain warming lifecycle events

type WarmingDayAdvanced struct {
	BaseEvent

	DomainID     string  `json:"domain_id"`
	Domain       string  `json:"domain"`
	Day          int     `json:"day"`
	TargetVolume int     `json:"target_volume"`
	BounceRate   float64 `json:"bounce_rate"`
	DeliveryRate float64 `json:"delivery_rate"`
}

func (e WarmingDayAdvanced) GetType() EventType {
	return WarmingDayAdvancedEvent
}

type WarmingCompleted struct {
	BaseEvent

	DomainID   string `json:"domain_id"`
	Domain     string `json:"domain"`
	FinalDay   int    `json:"final_day"`
	DailyLimit int    `json:"daily_limit"`
}

func (e WarmingCompleted) GetType() EventType {
	return WarmingCompletedEvent
}

type DomainPaused struct {
	BaseEvent

	DomainID string `json:"domain_id"`
	Domain   string `json:"domain"`
	Reason   string `json:"reason"`
	Day      int    `json:"day"`
}

func (e DomainPaused) GetType() EventType {
	return DomainPausedEvent
}

type HealthCalculated struct {
	BaseEvent

	DomainID     string              `json:"domain_id"`
	Domain       string              `json:"domain"`
	Date         time.Time           `json:"date"`
	HealthScore  int                 `json:"health_score"`
	HealthStatus models.HealthStatus `json:"health_status"`
}

func (e HealthCalculated) GetType() EventType {
	return HealthCalculatedEvent
}

// EmailQueued is emitted by the send_email action once a message has
// passed the sending-domain eligibility check. The delivery pipeline
// picks it up from here; the engine never talks SMTP itself.
type EmailQueued struct {
	BaseEvent

	MessageID   string         `json:"message_id"`
	ExecutionID string         `json:"execution_id"`
	DomainID    string         `json:"domain_id"`
	Domain      string         `json:"domain"`
	To          string         `json:"to"`
	Subject     string         `json:"subject"`
	TemplateID  string         `json:"template_id,omitempty"`
	Variables   map[string]any `json:"variables,omitempty"`
}

func (e EmailQueued) GetType() EventType {
	return EmailQueuedEvent
}
