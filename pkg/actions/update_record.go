package actions

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sendloop/sendloop/pkg/models"
)

// ErrFieldsRequired is returned when an update_record input has no
// fields map.
var ErrFieldsRequired = errors.New("'fields' must be a non-empty map")

// UpdateRecord merges field values into the execution's CRM record
// view, so downstream nodes see the updated values. The CRM itself is
// synced from the event log outside the engine.
type UpdateRecord struct {
	logger *slog.Logger
}

func NewUpdateRecord(logger *slog.Logger) *UpdateRecord {
	return &UpdateRecord{logger: logger.With("action_type", "update_record")}
}

func (a *UpdateRecord) Type() string {
	return "update_record"
}

func (a *UpdateRecord) Execute(ctx context.Context, input map[string]any, execution *models.WorkflowExecution) (map[string]any, error) {
	fields, _ := input["fields"].(map[string]any)
	if len(fields) == 0 {
		return nil, ErrFieldsRequired
	}

	if execution.Context.RecordData == nil {
		execution.Context.RecordData = make(map[string]any)
	}

	for key, value := range fields {
		execution.Context.RecordData[key] = value
	}

	a.logger.InfoContext(ctx, "Updated record fields",
		"execution_id", execution.ID, "record_id", execution.RecordID, "fields", len(fields))

	return map[string]any{
		"record_id":  execution.RecordID,
		"updated":    fields,
		"updated_at": time.Now().UTC().Format(time.RFC3339),
	}, nil
}
