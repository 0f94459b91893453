// Package web provides the HTTP handlers and request types for the
// workflow and deliverability APIs.
package web

import "github.com/sendloop/sendloop/pkg/models"

// CreateWorkflowRequest is the request body for creating a workflow
// definition. The graph is supplied whole; execution order is derived
// server-side.
type CreateWorkflowRequest struct {
	Name        string                 `json:"name"        validate:"required,min=3"`
	Description string                 `json:"description"`
	WorkspaceID string                 `json:"workspace_id"`
	Nodes       []*models.WorkflowNode `json:"nodes"       validate:"required,min=1"`
	Edges       []*models.WorkflowEdge `json:"edges"`
	Variables   map[string]any         `json:"variables"`
}

// UpdateWorkflowRequest replaces a definition's graph. Fields left nil
// keep their stored value.
type UpdateWorkflowRequest struct {
	Name        *string                `json:"name,omitempty" validate:"omitempty,min=3"`
	Description *string                `json:"description,omitempty"`
	Nodes       []*models.WorkflowNode `json:"nodes,omitempty"`
	Edges       []*models.WorkflowEdge `json:"edges,omitempty"`
	Variables   map[string]any         `json:"variables,omitempty"`
}

// TriggerExecutionRequest starts a workflow run for one CRM record.
type TriggerExecutionRequest struct {
	RecordID    string         `json:"record_id"`
	RecordData  map[string]any `json:"record_data"`
	TriggerData map[string]any `json:"trigger_data"`
	DryRun      bool           `json:"dry_run"`
}

// ResumeExecutionRequest delivers the awaited event payload to a paused
// execution.
type ResumeExecutionRequest struct {
	EventData map[string]any `json:"event_data"`
}

// CreateDomainRequest registers a sending domain.
type CreateDomainRequest struct {
	Domain      string `json:"domain"       validate:"required,fqdn"`
	WorkspaceID string `json:"workspace_id"`
}

// CreateScheduleRequest defines a warming ramp.
type CreateScheduleRequest struct {
	Name        string               `json:"name"  validate:"required"`
	WorkspaceID string               `json:"workspace_id"`
	Steps       []models.WarmingStep `json:"steps" validate:"required,min=1,dive"`

	MaxBounceRate        float64 `json:"max_bounce_rate"`
	MaxComplaintRate     float64 `json:"max_complaint_rate"`
	MinDeliveryRate      float64 `json:"min_delivery_rate"`
	AutoPauseOnThreshold bool    `json:"auto_pause_on_threshold"`
	AutoAdjustVolume     bool    `json:"auto_adjust_volume"`
}

// StartWarmingRequest puts a domain on a schedule.
type StartWarmingRequest struct {
	ScheduleID string `json:"schedule_id" validate:"required"`
}

// PauseWarmingRequest records why warming was stopped.
type PauseWarmingRequest struct {
	Reason string `json:"reason"`
}

// TrackActivityRequest reports send telemetry for a warming domain's
// current day.
type TrackActivityRequest struct {
	Sent       int `json:"sent"       validate:"min=0"`
	Delivered  int `json:"delivered"  validate:"min=0"`
	Bounced    int `json:"bounced"    validate:"min=0"`
	Complaints int `json:"complaints" validate:"min=0"`
}
