package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sendloop/sendloop/pkg/models"
	"github.com/sendloop/sendloop/pkg/persistence"
)

// Domains manages sending domains and warming schedules. Warming
// lifecycle transitions live in the warming engine; this service owns
// registration, verification and the schedule catalog.
type Domains struct {
	persistence persistence.Persistence
}

func NewDomains(persistence persistence.Persistence) *Domains {
	return &Domains{persistence: persistence}
}

func (s *Domains) List(ctx context.Context) ([]*models.SendingDomain, error) {
	return s.persistence.Domains().Domains(ctx)
}

func (s *Domains) FetchByID(ctx context.Context, id string) (*models.SendingDomain, error) {
	return s.persistence.Domains().DomainByID(ctx, id)
}

// Create registers a new sending domain in pending state. Verification
// is a separate step; a pending domain cannot send or warm.
func (s *Domains) Create(ctx context.Context, domain *models.SendingDomain) (*models.SendingDomain, error) {
	if domain.Domain == "" {
		return nil, newServiceError("create domain", ErrDomainNameRequired)
	}

	if domain.ID == "" {
		domain.ID = uuid.New().String()
	}

	domain.Status = models.DomainStatusPending
	domain.WarmingStatus = models.WarmingNotStarted
	domain.HealthScore = 100
	domain.HealthStatus = models.HealthExcellent
	domain.CreatedAt = time.Now().UTC()

	if err := s.persistence.Domains().SaveDomain(ctx, domain); err != nil {
		return nil, fmt.Errorf("failed to save domain: %w", err)
	}

	return domain, nil
}

// Verify marks a pending domain as verified, making it eligible for
// warming. DNS record checks happen upstream; this records the outcome.
func (s *Domains) Verify(ctx context.Context, id string) (*models.SendingDomain, error) {
	domain, err := s.persistence.Domains().DomainByID(ctx, id)
	if err != nil {
		return nil, err
	}

	domain.Status = models.DomainStatusVerified

	if err := s.persistence.Domains().SaveDomain(ctx, domain); err != nil {
		return nil, fmt.Errorf("failed to save domain: %w", err)
	}

	return domain, nil
}

func (s *Domains) Delete(ctx context.Context, id string) error {
	domain, err := s.persistence.Domains().DomainByID(ctx, id)
	if err != nil {
		return err
	}

	if domain.Status == models.DomainStatusActive || domain.Status == models.DomainStatusWarming {
		return newServiceError("delete domain", ErrDomainHasTraffic)
	}

	return s.persistence.Domains().DeleteDomain(ctx, id)
}

func (s *Domains) Schedules(ctx context.Context) ([]*models.WarmingSchedule, error) {
	return s.persistence.Domains().Schedules(ctx)
}

func (s *Domains) ScheduleByID(ctx context.Context, id string) (*models.WarmingSchedule, error) {
	return s.persistence.Domains().ScheduleByID(ctx, id)
}

// CreateSchedule validates and stores a warming schedule.
func (s *Domains) CreateSchedule(ctx context.Context, schedule *models.WarmingSchedule) (*models.WarmingSchedule, error) {
	if len(schedule.Steps) == 0 {
		return nil, newServiceError("create schedule", ErrScheduleStepsRequired)
	}

	if err := schedule.Validate(); err != nil {
		return nil, newServiceError("create schedule", fmt.Errorf("%w: %s", ErrInvalidRequest, err.Error()))
	}

	if schedule.ID == "" {
		schedule.ID = uuid.New().String()
	}

	if err := s.persistence.Domains().SaveSchedule(ctx, schedule); err != nil {
		return nil, fmt.Errorf("failed to save schedule: %w", err)
	}

	return schedule, nil
}
