// Package workflow implements the execution engine that drives workflow
// definitions through their node graph.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/sendloop/sendloop/pkg/eventbus"
	"github.com/sendloop/sendloop/pkg/events"
	"github.com/sendloop/sendloop/pkg/graph"
	"github.com/sendloop/sendloop/pkg/models"
	"github.com/sendloop/sendloop/pkg/otelhelper"
	"github.com/sendloop/sendloop/pkg/persistence"
	"github.com/sendloop/sendloop/pkg/protocol"
	"github.com/sendloop/sendloop/pkg/registry"
)

// Engine runs workflow executions to completion, pause or failure. It is
// safe for concurrent use as long as no two goroutines drive the same
// execution, which the worker's single-consumer topology guarantees.
type Engine struct {
	persistence persistence.Persistence
	registry    *registry.Registry
	eventBus    eventbus.EventPublisher
	tracer      trace.Tracer
	logger      *slog.Logger
	now         func() time.Time
}

// NewEngine creates an execution engine. The event bus and tracer are
// optional; a nil bus disables lifecycle events.
func NewEngine(
	persistence persistence.Persistence,
	registry *registry.Registry,
	eventBus eventbus.EventPublisher,
	tracer trace.Tracer,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		persistence: persistence,
		registry:    registry,
		eventBus:    eventBus,
		tracer:      tracer,
		logger:      logger.With("module", "workflow_engine"),
		now:         time.Now,
	}
}

// StartOptions customize a new execution.
type StartOptions struct {
	RecordID    string
	RecordData  map[string]any
	TriggerData map[string]any
	DryRun      bool
}

// StartExecution creates a fresh execution for the workflow and runs it.
// The returned execution reflects the state after the first run segment:
// completed, failed or paused at a wait node.
func (e *Engine) StartExecution(ctx context.Context, workflowID string, opts StartOptions) (*models.WorkflowExecution, error) {
	workflow, err := e.persistence.Workflows().WorkflowByID(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch workflow %s: %w", workflowID, err)
	}

	execCtx := models.NewExecutionContext()
	if opts.RecordData != nil {
		execCtx.RecordData = opts.RecordData
	}

	if opts.TriggerData != nil {
		execCtx.TriggerData = opts.TriggerData
	}

	for k, v := range workflow.Variables {
		execCtx.Variables[k] = v
	}

	now := e.now().UTC()
	execution := &models.WorkflowExecution{
		ID:         uuid.New().String(),
		WorkflowID: workflowID,
		RecordID:   opts.RecordID,
		Status:     models.ExecutionStatusPending,
		Context:    execCtx,
		IsDryRun:   opts.DryRun,
		StartedAt:  &now,
		CreatedAt:  now,
	}

	order, err := e.executionOrder(workflow)
	if err != nil {
		return nil, fmt.Errorf("invalid workflow graph %s: %w", workflowID, err)
	}

	if len(order) > 0 {
		execution.NextNodeID = order[0]
	}

	if err := e.persistence.Executions().SaveExecution(ctx, execution); err != nil {
		return nil, fmt.Errorf("failed to save execution: %w", err)
	}

	e.publish(ctx, execution.ID, events.ExecutionStarted{
		BaseEvent:   events.NewBaseEvent(events.ExecutionStartedEvent),
		ExecutionID: execution.ID,
		WorkflowID:  workflowID,
		RecordID:    opts.RecordID,
		TriggerData: opts.TriggerData,
		IsDryRun:    opts.DryRun,
	})

	if err := e.Execute(ctx, execution); err != nil {
		return execution, err
	}

	return execution, nil
}

// Execute drives an execution forward from its resume pointer until it
// completes, fails, or pauses at a wait node. Calling it on a terminal
// execution is a no-op.
func (e *Engine) Execute(ctx context.Context, execution *models.WorkflowExecution) error {
	logger := e.logger.With(
		"execution_id", execution.ID,
		"workflow_id", execution.WorkflowID,
	)

	if execution.Status.IsTerminal() {
		logger.InfoContext(ctx, "Execution already terminal, nothing to do", "status", execution.Status)

		return nil
	}

	if execution.NextNodeID == "" {
		return e.complete(ctx, logger, execution)
	}

	workflow, err := e.persistence.Workflows().WorkflowByID(ctx, execution.WorkflowID)
	if err != nil {
		return fmt.Errorf("failed to fetch workflow %s: %w", execution.WorkflowID, err)
	}

	order, err := e.executionOrder(workflow)
	if err != nil {
		return e.fail(ctx, logger, execution, "", fmt.Errorf("invalid workflow graph: %w", err))
	}

	// A definition edited underneath a parked execution can orphan the
	// resume pointer. Park the execution paused instead of failing it;
	// it becomes runnable again once the workflow carries the node.
	position := indexOf(order, execution.NextNodeID)
	if position < 0 {
		logger.WarnContext(ctx, "Resume node missing from workflow graph, leaving execution paused",
			"node_id", execution.NextNodeID)

		execution.Status = models.ExecutionStatusPaused

		return e.persistence.Executions().SaveExecution(ctx, execution)
	}

	ctx, span := e.startSpan(ctx, "engine.execute",
		attribute.String(otelhelper.ExecutionIDKey, execution.ID),
		attribute.String(otelhelper.WorkflowIDKey, execution.WorkflowID),
	)
	defer span.End()

	execution.Status = models.ExecutionStatusRunning
	startedAt := e.now()

	for ; position < len(order); position++ {
		nodeID := order[position]

		node := workflow.NodeByID(nodeID)
		if node == nil {
			return e.fail(ctx, logger, execution, nodeID,
				fmt.Errorf("node %s in execution order but not in workflow", nodeID))
		}

		if execution.Context.ShouldSkip(nodeID) {
			logger.DebugContext(ctx, "Skipping node ruled out by earlier decision", "node_id", nodeID)

			continue
		}

		// Persist the position before any side effect runs, so a crash
		// mid-node resumes at this node instead of replaying earlier ones.
		execution.CurrentNodeID = nodeID
		execution.NextNodeID = nextNode(order, position)

		if err := e.persistence.Executions().SaveExecution(ctx, execution); err != nil {
			return fmt.Errorf("failed to persist position at node %s: %w", nodeID, err)
		}

		result, err := e.executeNode(ctx, logger, node, execution)
		if err != nil {
			return e.fail(ctx, logger, execution, nodeID, err)
		}

		switch result.Outcome {
		case protocol.OutcomeSuccess:
			if err := e.handleSuccess(ctx, workflow, execution, node, result); err != nil {
				return err
			}
		case protocol.OutcomeWaiting:
			return e.pause(ctx, logger, execution, node, result)
		case protocol.OutcomeFailed:
			return e.fail(ctx, logger, execution, nodeID, fmt.Errorf("%s", result.Error))
		default:
			return e.fail(ctx, logger, execution, nodeID,
				fmt.Errorf("executor returned unknown outcome %q", result.Outcome))
		}
	}

	e.publishCompleted(ctx, execution, startedAt)

	return e.complete(ctx, logger, execution)
}

// ResumeDue finds paused executions whose resume time or wait timeout has
// passed and runs each of them. Errors on individual executions are logged
// and do not stop the sweep.
func (e *Engine) ResumeDue(ctx context.Context, now time.Time) (int, error) {
	due, err := e.persistence.Executions().DueExecutions(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to list due executions: %w", err)
	}

	resumed := 0

	for _, execution := range due {
		if err := e.Resume(ctx, execution, nil); err != nil {
			e.logger.ErrorContext(ctx, "Failed to resume due execution",
				"execution_id", execution.ID, "error", err)

			continue
		}

		resumed++
	}

	return resumed, nil
}

// Resume transitions a paused execution back to running and drives it
// forward. For event waits, eventData (when non-nil) is merged into the
// wait node's output so downstream nodes can address it.
func (e *Engine) Resume(ctx context.Context, execution *models.WorkflowExecution, eventData map[string]any) error {
	if execution.Status != models.ExecutionStatusPaused {
		return fmt.Errorf("execution %s is %s, not paused", execution.ID, execution.Status)
	}

	if execution.NextNodeID != "" {
		workflow, err := e.persistence.Workflows().WorkflowByID(ctx, execution.WorkflowID)
		if err != nil {
			return fmt.Errorf("failed to fetch workflow %s: %w", execution.WorkflowID, err)
		}

		// Check the pointer before touching the execution so an orphaned
		// resume is a pure no-op: the wait stays intact and the next sweep
		// retries once the definition carries the node again.
		if order, orderErr := e.executionOrder(workflow); orderErr == nil && indexOf(order, execution.NextNodeID) < 0 {
			e.logger.WarnContext(ctx, "Resume node missing from workflow graph, leaving execution paused",
				"execution_id", execution.ID, "node_id", execution.NextNodeID)

			return nil
		}
	}

	if eventData != nil && execution.CurrentNodeID != "" {
		output := execution.Context.NodeOutputs[execution.CurrentNodeID]
		if output == nil {
			output = make(map[string]any)
		}

		for k, v := range eventData {
			output[k] = v
		}

		execution.Context.NodeOutputs[execution.CurrentNodeID] = output
	}

	execution.ClearWait()
	execution.Status = models.ExecutionStatusRunning

	if err := e.persistence.Executions().SaveExecution(ctx, execution); err != nil {
		return fmt.Errorf("failed to save resumed execution: %w", err)
	}

	e.publish(ctx, execution.ID, events.ExecutionResumed{
		BaseEvent:   events.NewBaseEvent(events.ExecutionResumedEvent),
		ExecutionID: execution.ID,
		WorkflowID:  execution.WorkflowID,
		NextNodeID:  execution.NextNodeID,
	})

	return e.Execute(ctx, execution)
}

// ResumeByID loads and resumes a paused execution.
func (e *Engine) ResumeByID(ctx context.Context, executionID string, eventData map[string]any) (*models.WorkflowExecution, error) {
	execution, err := e.persistence.Executions().ExecutionByID(ctx, executionID)
	if err != nil {
		return nil, err
	}

	if err := e.Resume(ctx, execution, eventData); err != nil {
		return execution, err
	}

	return execution, nil
}

func (e *Engine) executeNode(
	ctx context.Context,
	logger *slog.Logger,
	node *models.WorkflowNode,
	execution *models.WorkflowExecution,
) (result *protocol.NodeResult, err error) {
	executor, err := e.registry.CreateExecutor(node)
	if err != nil {
		return nil, fmt.Errorf("failed to create executor for node %s: %w", node.ID, err)
	}

	logger.InfoContext(ctx, "Executing node", "node_id", node.ID, "node_type", node.Type)

	ctx, span := e.startSpan(ctx, "engine.node "+string(node.Type),
		attribute.String(otelhelper.NodeIDKey, node.ID),
		attribute.String(otelhelper.NodeTypeKey, string(node.Type)),
	)
	defer span.End()

	// A panicking executor fails its node, never the whole worker.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("node %s panicked: %v", node.ID, r)
			otelhelper.SetError(span, err)
		}
	}()

	result, err = executor.Execute(ctx, execution)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	return result, nil
}

func (e *Engine) handleSuccess(
	ctx context.Context,
	workflow *models.WorkflowDefinition,
	execution *models.WorkflowExecution,
	node *models.WorkflowNode,
	result *protocol.NodeResult,
) error {
	if result.Output != nil {
		execution.Context.NodeOutputs[node.ID] = result.Output
	}

	execution.Context.MarkExecuted(node.ID)

	if len(result.SkippedHandles) > 0 {
		e.applySkips(workflow, execution, node, result.SkippedHandles)
	}

	step := e.newStep(execution, node, models.StepStatusSuccess, result)

	if err := e.persistence.Executions().RecordStep(ctx, execution, step); err != nil {
		return fmt.Errorf("failed to record step for node %s: %w", node.ID, err)
	}

	e.publish(ctx, execution.ID, events.StepCompleted{
		BaseEvent:   events.NewBaseEvent(events.StepCompletedEvent),
		ExecutionID: execution.ID,
		NodeID:      node.ID,
		NodeType:    node.Type,
		Status:      step.Status,
		DurationMs:  step.Duration.Milliseconds(),
	})

	return nil
}

// applySkips resolves the executor's skipped handles to edges and marks
// every node downstream of those edges as skipped.
func (e *Engine) applySkips(
	workflow *models.WorkflowDefinition,
	execution *models.WorkflowExecution,
	node *models.WorkflowNode,
	handles []string,
) {
	skipped := make(map[string]bool, len(handles))
	for _, handle := range handles {
		skipped[handle] = true
	}

	var starts []string

	for _, edge := range workflow.EdgesFrom(node.ID) {
		if skipped[edge.SourceHandle] {
			starts = append(starts, edge.Target)
		}
	}

	if len(starts) == 0 {
		return
	}

	closure := graph.DownstreamClosure(workflow.Edges, starts)
	execution.Context.MarkSkipped(closure...)
}

func (e *Engine) pause(
	ctx context.Context,
	logger *slog.Logger,
	execution *models.WorkflowExecution,
	node *models.WorkflowNode,
	result *protocol.NodeResult,
) error {
	if result.Wait == nil {
		return e.fail(ctx, logger, execution, node.ID,
			fmt.Errorf("node %s returned waiting without wait info", node.ID))
	}

	now := e.now().UTC()

	execution.Status = models.ExecutionStatusPaused
	execution.PausedAt = &now
	execution.WaitKind = result.Wait.Kind
	execution.ResumeAt = result.Wait.ResumeAt
	execution.WaitEventType = result.Wait.EventType
	execution.WaitTimeoutAt = result.Wait.TimeoutAt

	execution.Context.MarkExecuted(node.ID)

	// The step for the wait node is written now; NextNodeID already points
	// past it, so resumption never re-executes the wait.
	step := e.newStep(execution, node, models.StepStatusWaiting, result)

	if err := e.persistence.Executions().RecordStep(ctx, execution, step); err != nil {
		return fmt.Errorf("failed to record wait step for node %s: %w", node.ID, err)
	}

	logger.InfoContext(ctx, "Execution paused",
		"node_id", node.ID,
		"wait_kind", result.Wait.Kind,
		"resume_at", result.Wait.ResumeAt,
		"wait_event_type", result.Wait.EventType,
	)

	e.publish(ctx, execution.ID, events.ExecutionPaused{
		BaseEvent:     events.NewBaseEvent(events.ExecutionPausedEvent),
		ExecutionID:   execution.ID,
		WorkflowID:    execution.WorkflowID,
		WaitNodeID:    node.ID,
		WaitKind:      result.Wait.Kind,
		ResumeAt:      result.Wait.ResumeAt,
		WaitEventType: result.Wait.EventType,
	})

	return nil
}

func (e *Engine) complete(ctx context.Context, logger *slog.Logger, execution *models.WorkflowExecution) error {
	now := e.now().UTC()

	execution.Status = models.ExecutionStatusCompleted
	execution.CurrentNodeID = ""
	execution.NextNodeID = ""
	execution.CompletedAt = &now
	execution.ClearWait()

	if err := e.persistence.Executions().SaveExecution(ctx, execution); err != nil {
		return fmt.Errorf("failed to save completed execution: %w", err)
	}

	logger.InfoContext(ctx, "Execution completed",
		"nodes_executed", len(execution.Context.ExecutedNodes))

	return nil
}

func (e *Engine) fail(
	ctx context.Context,
	logger *slog.Logger,
	execution *models.WorkflowExecution,
	nodeID string,
	cause error,
) error {
	now := e.now().UTC()

	execution.Status = models.ExecutionStatusFailed
	execution.Error = cause.Error()
	execution.ErrorNodeID = nodeID
	execution.CompletedAt = &now
	execution.ClearWait()

	if err := e.persistence.Executions().SaveExecution(ctx, execution); err != nil {
		return fmt.Errorf("failed to save failed execution: %w", err)
	}

	logger.ErrorContext(ctx, "Execution failed", "node_id", nodeID, "error", cause)

	e.publish(ctx, execution.ID, events.ExecutionFailed{
		BaseEvent:   events.NewBaseEvent(events.ExecutionFailedEvent),
		ExecutionID: execution.ID,
		WorkflowID:  execution.WorkflowID,
		NodeID:      nodeID,
		Error:       cause.Error(),
	})

	return nil
}

// executionOrder returns a valid topological order for the workflow,
// trusting the cached order only when it still matches the graph.
func (e *Engine) executionOrder(workflow *models.WorkflowDefinition) ([]string, error) {
	if len(workflow.ExecutionOrder) > 0 &&
		graph.ValidOrder(workflow.ExecutionOrder, workflow.Nodes, workflow.Edges) {
		return workflow.ExecutionOrder, nil
	}

	return graph.TopologicalOrder(workflow.Nodes, workflow.Edges)
}

func (e *Engine) newStep(
	execution *models.WorkflowExecution,
	node *models.WorkflowNode,
	status models.StepStatus,
	result *protocol.NodeResult,
) *models.WorkflowExecutionStep {
	startedAt := e.now().UTC()

	return &models.WorkflowExecutionStep{
		ID:              uuid.New().String(),
		ExecutionID:     execution.ID,
		NodeID:          node.ID,
		NodeType:        node.Type,
		NodeLabel:       node.Label,
		Status:          status,
		Input:           node.Data,
		Output:          result.Output,
		ConditionResult: result.ConditionResult,
		SelectedBranch:  result.SelectedBranch,
		Error:           result.Error,
		StartedAt:       startedAt,
	}
}

func (e *Engine) publishCompleted(ctx context.Context, execution *models.WorkflowExecution, startedAt time.Time) {
	e.publish(ctx, execution.ID, events.ExecutionCompleted{
		BaseEvent:     events.NewBaseEvent(events.ExecutionCompletedEvent),
		ExecutionID:   execution.ID,
		WorkflowID:    execution.WorkflowID,
		NodesExecuted: len(execution.Context.ExecutedNodes),
		DurationMs:    e.now().Sub(startedAt).Milliseconds(),
	})
}

func (e *Engine) publish(ctx context.Context, key string, event eventbus.Event) {
	if e.eventBus == nil {
		return
	}

	if err := e.eventBus.Publish(ctx, key, event); err != nil {
		e.logger.ErrorContext(ctx, "Failed to publish event",
			"event_type", event.GetType(), "error", err)
	}
}

func (e *Engine) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if e.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}

	return otelhelper.StartSpan(ctx, e.tracer, name, attrs...)
}

func indexOf(order []string, nodeID string) int {
	for i, id := range order {
		if id == nodeID {
			return i
		}
	}

	return -1
}

func nextNode(order []string, position int) string {
	if position+1 < len(order) {
		return order[position+1]
	}

	return ""
}
