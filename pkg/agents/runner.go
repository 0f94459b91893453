// Package agents bridges agent workflow nodes to the external agent
// service that actually runs them. The engine only knows agent IDs and
// result maps; prompts and model choice live on the other side.
package agents

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sendloop/sendloop/pkg/models"
)

const (
	defaultTimeout   = 60 * time.Second
	maxResponseBytes = 1 << 20
)

// ErrNotConfigured is returned when no agent service endpoint is set.
var ErrNotConfigured = errors.New("agent service is not configured")

// HTTPRunner invokes agents over the agent service's REST API.
type HTTPRunner struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

func NewHTTPRunner(baseURL string, logger *slog.Logger) *HTTPRunner {
	return &HTTPRunner{
		baseURL: baseURL,
		client:  &http.Client{Timeout: defaultTimeout},
		logger:  logger.With("module", "agents"),
	}
}

type invokeRequest struct {
	ExecutionID string         `json:"execution_id"`
	RecordID    string         `json:"record_id,omitempty"`
	Record      map[string]any `json:"record,omitempty"`
	Input       map[string]any `json:"input,omitempty"`
}

// RunAgent posts the resolved input and the execution's record view to
// the agent service and returns the agent's result map.
func (r *HTTPRunner) RunAgent(ctx context.Context, agentID string, input map[string]any, execution *models.WorkflowExecution) (map[string]any, error) {
	if r.baseURL == "" {
		return nil, ErrNotConfigured
	}

	payload := invokeRequest{
		ExecutionID: execution.ID,
		RecordID:    execution.RecordID,
		Input:       input,
	}

	if execution.Context != nil {
		payload.Record = execution.Context.RecordData
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal agent request: %w", err)
	}

	url := fmt.Sprintf("%s/agents/%s/invoke", r.baseURL, agentID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build agent request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("agent service unreachable: %w", err)
	}

	defer func() {
		if err := resp.Body.Close(); err != nil {
			r.logger.ErrorContext(ctx, "Failed to close agent response body", "error", err)
		}
	}()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read agent response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("agent %s returned status %d", agentID, resp.StatusCode)
	}

	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("agent %s returned invalid JSON: %w", agentID, err)
	}

	r.logger.InfoContext(ctx, "Agent completed",
		"agent_id", agentID, "execution_id", execution.ID)

	return result, nil
}
