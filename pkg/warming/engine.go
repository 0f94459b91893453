package warming

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/sendloop/sendloop/pkg/eventbus"
	"github.com/sendloop/sendloop/pkg/events"
	"github.com/sendloop/sendloop/pkg/models"
	"github.com/sendloop/sendloop/pkg/otelhelper"
	"github.com/sendloop/sendloop/pkg/persistence"
)

// Engine advances sending domains through their warming schedules. Each
// day-advance is a single synchronous step driven by the external
// scheduler; the engine owns no timers of its own.
type Engine struct {
	persistence persistence.Persistence
	eventBus    eventbus.EventPublisher
	tracer      trace.Tracer
	logger      *slog.Logger
	now         func() time.Time
}

// NewEngine creates a warming engine. The event bus and tracer are
// optional.
func NewEngine(
	persistence persistence.Persistence,
	eventBus eventbus.EventPublisher,
	tracer trace.Tracer,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		persistence: persistence,
		eventBus:    eventBus,
		tracer:      tracer,
		logger:      logger.With("module", "warming_engine"),
		now:         time.Now,
	}
}

// StartWarming puts a verified domain on a warming schedule at day one.
func (e *Engine) StartWarming(ctx context.Context, domainID, scheduleID string) (*models.SendingDomain, error) {
	domain, err := e.persistence.Domains().DomainByID(ctx, domainID)
	if err != nil {
		return nil, err
	}

	if domain.WarmingStatus == models.WarmingInProgress {
		return nil, fmt.Errorf("domain %s is already warming", domain.Domain)
	}

	schedule, err := e.persistence.Domains().ScheduleByID(ctx, scheduleID)
	if err != nil {
		return nil, err
	}

	if err := schedule.Validate(); err != nil {
		return nil, err
	}

	firstVolume := TargetVolume(schedule.Steps, 1)

	domain.Status = models.DomainStatusWarming
	domain.WarmingStatus = models.WarmingInProgress
	domain.WarmingScheduleID = schedule.ID
	domain.WarmingDay = 1
	domain.DailyLimit = firstVolume
	domain.DailySent = 0

	progress := e.newProgress(domain.ID, 1, firstVolume)

	if err := e.persistence.Domains().AdvanceWarming(ctx, domain, progress, nil); err != nil {
		return nil, err
	}

	e.logger.InfoContext(ctx, "Started warming",
		"domain", domain.Domain, "schedule", schedule.Name, "daily_limit", firstVolume)

	return domain, nil
}

// AdvanceDay finalizes the current warming day and moves the domain to the
// next one. A nil progress result with no error means the tick was a
// no-op: the domain is not actively warming, so duplicate or late
// scheduler ticks are safe.
func (e *Engine) AdvanceDay(ctx context.Context, domainID string) (*models.WarmingProgress, error) {
	domain, err := e.persistence.Domains().DomainByID(ctx, domainID)
	if err != nil {
		return nil, err
	}

	logger := e.logger.With("domain", domain.Domain, "warming_day", domain.WarmingDay)

	if domain.WarmingStatus != models.WarmingInProgress {
		logger.InfoContext(ctx, "Domain not warming, skipping day advance",
			"warming_status", domain.WarmingStatus)

		return nil, nil
	}

	schedule, err := e.persistence.Domains().ScheduleByID(ctx, domain.WarmingScheduleID)
	if err != nil {
		return nil, fmt.Errorf("failed to load schedule for %s: %w", domain.Domain, err)
	}

	ctx, span := e.startSpan(ctx, "warming.advance_day",
		attribute.String(otelhelper.DomainIDKey, domain.ID),
		attribute.String(otelhelper.DomainNameKey, domain.Domain),
		attribute.Int(otelhelper.WarmingDayKey, domain.WarmingDay),
	)
	defer span.End()

	progress, err := e.persistence.Domains().ProgressForDay(ctx, domain.ID, domain.WarmingDay)
	if err != nil {
		if !errors.Is(err, persistence.ErrProgressNotFound) {
			return nil, err
		}

		// Nothing tracked for the day; finalize an empty row so the
		// history stays gap-free.
		progress = e.newProgress(domain.ID, domain.WarmingDay, domain.DailyLimit)
	}

	progress.ActualVolume = progress.Sent
	progress.Finalize()

	if progress.BounceRate > schedule.MaxBounceRate || progress.ComplaintRate > schedule.MaxComplaintRate {
		progress.ThresholdExceeded = true

		logger.WarnContext(ctx, "Warming thresholds exceeded",
			"bounce_rate", progress.BounceRate,
			"complaint_rate", progress.ComplaintRate)

		if schedule.AutoPauseOnThreshold {
			return e.pauseOnThreshold(ctx, domain, progress)
		}
	}

	nextDay := domain.WarmingDay + 1
	if nextDay > schedule.MaxDay() {
		return e.completeWarming(ctx, logger, domain, schedule, progress)
	}

	volume := TargetVolume(schedule.Steps, nextDay)

	if schedule.AutoAdjustVolume {
		factor, rationale := AdjustmentFactor(progress, schedule)
		volume = int(math.Round(float64(volume) * factor))
		progress.AIRecommendation = rationale
	}

	domain.WarmingDay = nextDay
	domain.DailyLimit = volume
	domain.DailySent = 0

	next := e.newProgress(domain.ID, nextDay, volume)

	if err := e.persistence.Domains().AdvanceWarming(ctx, domain, progress, next); err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "Advanced warming day", "next_day", nextDay, "target_volume", volume)

	e.publish(ctx, domain.ID, events.WarmingDayAdvanced{
		BaseEvent:    events.NewBaseEvent(events.WarmingDayAdvancedEvent),
		DomainID:     domain.ID,
		Domain:       domain.Domain,
		Day:          nextDay,
		TargetVolume: volume,
		BounceRate:   progress.BounceRate,
		DeliveryRate: progress.DeliveryRate,
	})

	return next, nil
}

// AdvanceAll runs a day-advance for every domain currently warming. Per
// domain failures are logged and skipped.
func (e *Engine) AdvanceAll(ctx context.Context) (int, error) {
	domains, err := e.persistence.Domains().WarmingDomains(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list warming domains: %w", err)
	}

	advanced := 0

	for _, domain := range domains {
		if _, err := e.AdvanceDay(ctx, domain.ID); err != nil {
			e.logger.ErrorContext(ctx, "Failed to advance warming day",
				"domain", domain.Domain, "error", err)

			continue
		}

		advanced++
	}

	return advanced, nil
}

// PauseWarming is the operator pause. Ramp position is preserved, so a
// later resume continues at the same day and limit.
func (e *Engine) PauseWarming(ctx context.Context, domainID, reason string) (*models.SendingDomain, error) {
	domain, err := e.persistence.Domains().DomainByID(ctx, domainID)
	if err != nil {
		return nil, err
	}

	if domain.WarmingStatus != models.WarmingInProgress {
		return nil, fmt.Errorf("domain %s is not warming", domain.Domain)
	}

	domain.Status = models.DomainStatusPaused
	domain.WarmingStatus = models.WarmingPaused

	if err := e.persistence.Domains().SaveDomain(ctx, domain); err != nil {
		return nil, err
	}

	e.logger.InfoContext(ctx, "Paused warming", "domain", domain.Domain, "reason", reason)

	e.publish(ctx, domain.ID, events.DomainPaused{
		BaseEvent: events.NewBaseEvent(events.DomainPausedEvent),
		DomainID:  domain.ID,
		Domain:    domain.Domain,
		Reason:    reason,
		Day:       domain.WarmingDay,
	})

	return domain, nil
}

// ResumeWarming continues a paused ramp at its preserved day and limit.
func (e *Engine) ResumeWarming(ctx context.Context, domainID string) (*models.SendingDomain, error) {
	domain, err := e.persistence.Domains().DomainByID(ctx, domainID)
	if err != nil {
		return nil, err
	}

	if domain.WarmingStatus != models.WarmingPaused {
		return nil, fmt.Errorf("domain %s warming is not paused", domain.Domain)
	}

	domain.Status = models.DomainStatusWarming
	domain.WarmingStatus = models.WarmingInProgress

	if err := e.persistence.Domains().SaveDomain(ctx, domain); err != nil {
		return nil, err
	}

	e.logger.InfoContext(ctx, "Resumed warming",
		"domain", domain.Domain, "warming_day", domain.WarmingDay)

	return domain, nil
}

// TrackActivity increments the current day's delivery counters. Called by
// the telemetry consumer as provider events arrive.
func (e *Engine) TrackActivity(ctx context.Context, domainID string, sent, delivered, bounced, complaints int) error {
	domain, err := e.persistence.Domains().DomainByID(ctx, domainID)
	if err != nil {
		return err
	}

	if domain.WarmingStatus != models.WarmingInProgress {
		return nil
	}

	progress, err := e.persistence.Domains().ProgressForDay(ctx, domain.ID, domain.WarmingDay)
	if err != nil {
		if !errors.Is(err, persistence.ErrProgressNotFound) {
			return err
		}

		progress = e.newProgress(domain.ID, domain.WarmingDay, domain.DailyLimit)
	}

	progress.Sent += sent
	progress.Delivered += delivered
	progress.Bounced += bounced
	progress.Complaints += complaints

	domain.DailySent += sent

	return e.persistence.Domains().AdvanceWarming(ctx, domain, progress, nil)
}

func (e *Engine) pauseOnThreshold(ctx context.Context, domain *models.SendingDomain, progress *models.WarmingProgress) (*models.WarmingProgress, error) {
	reason := fmt.Sprintf(
		"warming thresholds exceeded on day %d: bounce rate %.2f%%, complaint rate %.3f%%",
		domain.WarmingDay, progress.BounceRate*100, progress.ComplaintRate*100)

	domain.Status = models.DomainStatusPaused
	domain.WarmingStatus = models.WarmingPaused

	if err := e.persistence.Domains().AdvanceWarming(ctx, domain, progress, nil); err != nil {
		return nil, err
	}

	e.publish(ctx, domain.ID, events.DomainPaused{
		BaseEvent: events.NewBaseEvent(events.DomainPausedEvent),
		DomainID:  domain.ID,
		Domain:    domain.Domain,
		Reason:    reason,
		Day:       domain.WarmingDay,
	})

	return progress, nil
}

func (e *Engine) completeWarming(
	ctx context.Context,
	logger *slog.Logger,
	domain *models.SendingDomain,
	schedule *models.WarmingSchedule,
	progress *models.WarmingProgress,
) (*models.WarmingProgress, error) {
	domain.Status = models.DomainStatusActive
	domain.WarmingStatus = models.WarmingCompleted
	domain.DailyLimit = schedule.FinalVolume()
	domain.DailySent = 0

	if err := e.persistence.Domains().AdvanceWarming(ctx, domain, progress, nil); err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "Warming completed", "daily_limit", domain.DailyLimit)

	e.publish(ctx, domain.ID, events.WarmingCompleted{
		BaseEvent:  events.NewBaseEvent(events.WarmingCompletedEvent),
		DomainID:   domain.ID,
		Domain:     domain.Domain,
		FinalDay:   domain.WarmingDay,
		DailyLimit: domain.DailyLimit,
	})

	return progress, nil
}

func (e *Engine) newProgress(domainID string, day, targetVolume int) *models.WarmingProgress {
	now := e.now().UTC()

	return &models.WarmingProgress{
		ID:           uuid.New().String(),
		DomainID:     domainID,
		Day:          day,
		TargetVolume: targetVolume,
		Date:         now,
		CreatedAt:    now,
	}
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
