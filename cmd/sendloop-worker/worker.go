// Package main provides the Sendloop worker: it consumes bus events and
// resumes executions parked on wait-for-event nodes.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/sendloop/sendloop/pkg/eventbus"
	"github.com/sendloop/sendloop/pkg/events"
	"github.com/sendloop/sendloop/pkg/subscriptions"
	"github.com/sendloop/sendloop/pkg/workflow"
)

// resumableEvents are the bus events an execution can wait on. Lifecycle
// noise like execution.started stays off the list so the worker does not
// chase its own tail.
var resumableEvents = []events.EventType{
	events.EmailQueuedEvent,
	events.ExecutionCompletedEvent,
	events.WarmingDayAdvancedEvent,
	events.WarmingCompletedEvent,
	events.DomainPausedEvent,
	events.HealthCalculatedEvent,
}

type Worker struct {
	id       string
	engine   *workflow.Engine
	store    subscriptions.Store
	eventBus eventbus.EventBus
	logger   *slog.Logger
}

func NewWorker(
	id string,
	engine *workflow.Engine,
	store subscriptions.Store,
	eventBus eventbus.EventBus,
	logger *slog.Logger,
) *Worker {
	return &Worker{
		id:       id,
		engine:   engine,
		store:    store,
		eventBus: eventBus,
		logger:   logger.With("module", "worker", "worker_id", id),
	}
}

// Start registers one resume handler per waitable event type and begins
// consuming. It returns once the subscription is live; consumption runs
// until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	for _, eventType := range resumableEvents {
		eventType := eventType

		err := w.eventBus.Handle(eventType, func(ctx context.Context, event any) error {
			return w.handleEvent(ctx, eventType, event)
		})
		if err != nil {
			return fmt.Errorf("failed to register handler for %s: %w", eventType, err)
		}
	}

	if err := w.eventBus.Subscribe(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to event bus: %w", err)
	}

	w.logger.InfoContext(ctx, "Worker started", "event_types", len(resumableEvents))

	return nil
}

// handleEvent resumes every execution subscribed to this event. A resume
// failure is logged and skipped rather than nacked: redelivery would not
// fix a terminal or missing execution.
func (w *Worker) handleEvent(ctx context.Context, eventType events.EventType, event any) error {
	payload, err := eventPayload(event)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to decode event payload",
			"event_type", eventType, "error", err)

		return nil
	}

	matched, err := w.store.Match(ctx, string(eventType), payload)
	if err != nil {
		return fmt.Errorf("failed to match subscriptions for %s: %w", eventType, err)
	}

	for _, sub := range matched {
		logger := w.logger.With("execution_id", sub.ExecutionID, "event_type", eventType)

		if _, err := w.engine.ResumeByID(ctx, sub.ExecutionID, payload); err != nil {
			logger.ErrorContext(ctx, "Failed to resume execution", "error", err)
		} else {
			logger.InfoContext(ctx, "Resumed execution on event")
		}

		if err := w.store.Delete(ctx, sub.ID); err != nil {
			logger.WarnContext(ctx, "Failed to delete subscription", "error", err)
		}
	}

	return nil
}

// eventPayload flattens an event struct into the map form subscription
// filters compare against.
func eventPayload(event any) (map[string]any, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}

	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}

	return payload, nil
}
