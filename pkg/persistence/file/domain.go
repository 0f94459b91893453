package file

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sendloop/sendloop/pkg/models"
	"github.com/sendloop/sendloop/pkg/persistence"
)

const (
	kindDomains    = "domains"
	kindSchedules  = "warming_schedules"
	kindProgress   = "warming_progress"
	kindHealth     = "domain_health"
	kindISPMetrics = "isp_metrics"
	kindStats      = "daily_stats"

	dayFormat = "2006-01-02"

	// totalBucket keys the all-providers aggregate in the stats store.
	totalBucket = "total"
)

// DomainRepository stores sending domains, warming state and health
// rollups as JSON files keyed by their natural keys.
type DomainRepository struct {
	store *Persistence
}

// DomainByID loads a domain by id.
func (r *DomainRepository) DomainByID(_ context.Context, id string) (*models.SendingDomain, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	return r.domainByID(id)
}

func (r *DomainRepository) domainByID(id string) (*models.SendingDomain, error) {
	var domain models.SendingDomain
	if err := r.store.read(kindDomains, id, &domain, persistence.ErrDomainNotFound); err != nil {
		return nil, err
	}

	return &domain, nil
}

// SaveDomain writes a domain.
func (r *DomainRepository) SaveDomain(_ context.Context, domain *models.SendingDomain) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	domain.UpdatedAt = time.Now().UTC()

	return r.store.write(kindDomains, domain.ID, domain)
}

// DeleteDomain removes a domain along with its warming progress and
// health history.
func (r *DomainRepository) DeleteDomain(_ context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if err := r.store.remove(kindDomains, id, persistence.ErrDomainNotFound); err != nil {
		return err
	}

	for _, kind := range []string{kindProgress, kindHealth, kindISPMetrics, kindStats} {
		ids, err := r.store.listIDs(kind)
		if err != nil {
			return err
		}

		for _, key := range ids {
			if !strings.HasPrefix(key, id+"_") {
				continue
			}

			if err := r.store.remove(kind, key, persistence.ErrDomainNotFound); err != nil {
				return err
			}
		}
	}

	return nil
}

// Domains lists every stored domain.
func (r *DomainRepository) Domains(_ context.Context) ([]*models.SendingDomain, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	return r.listDomains(func(*models.SendingDomain) bool { return true })
}

// WarmingDomains returns domains whose warming is in progress.
func (r *DomainRepository) WarmingDomains(_ context.Context) ([]*models.SendingDomain, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	return r.listDomains(func(d *models.SendingDomain) bool {
		return d.WarmingStatus == models.WarmingInProgress
	})
}

func (r *DomainRepository) listDomains(keep func(*models.SendingDomain) bool) ([]*models.SendingDomain, error) {
	ids, err := r.store.listIDs(kindDomains)
	if err != nil {
		return nil, err
	}

	domains := make([]*models.SendingDomain, 0, len(ids))

	for _, id := range ids {
		domain, err := r.domainByID(id)
		if err != nil {
			return nil, err
		}

		if keep(domain) {
			domains = append(domains, domain)
		}
	}

	return domains, nil
}

// ScheduleByID loads a warming schedule.
func (r *DomainRepository) ScheduleByID(_ context.Context, id string) (*models.WarmingSchedule, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var schedule models.WarmingSchedule
	if err := r.store.read(kindSchedules, id, &schedule, persistence.ErrScheduleNotFound); err != nil {
		return nil, err
	}

	return &schedule, nil
}

// SaveSchedule writes a warming schedule.
func (r *DomainRepository) SaveSchedule(_ context.Context, schedule *models.WarmingSchedule) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	return r.store.write(kindSchedules, schedule.ID, schedule)
}

// Schedules lists every stored warming schedule.
func (r *DomainRepository) Schedules(_ context.Context) ([]*models.WarmingSchedule, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	ids, err := r.store.listIDs(kindSchedules)
	if err != nil {
		return nil, err
	}

	schedules := make([]*models.WarmingSchedule, 0, len(ids))

	for _, id := range ids {
		var schedule models.WarmingSchedule
		if err := r.store.read(kindSchedules, id, &schedule, persistence.ErrScheduleNotFound); err != nil {
			return nil, err
		}

		schedules = append(schedules, &schedule)
	}

	return schedules, nil
}

// ProgressForDay is the point lookup for one domain's warming day row.
func (r *DomainRepository) ProgressForDay(_ context.Context, domainID string, day int) (*models.WarmingProgress, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	return r.progressForDay(domainID, day)
}

func (r *DomainRepository) progressForDay(domainID string, day int) (*models.WarmingProgress, error) {
	var progress models.WarmingProgress
	if err := r.store.read(kindProgress, progressKey(domainID, day), &progress, persistence.ErrProgressNotFound); err != nil {
		return nil, err
	}

	return &progress, nil
}

// SaveProgress writes one warming day row.
func (r *DomainRepository) SaveProgress(_ context.Context, progress *models.WarmingProgress) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	progress.UpdatedAt = time.Now().UTC()

	return r.store.write(kindProgress, progressKey(progress.DomainID, progress.Day), progress)
}

// ProgressByDomain returns every warming day row of a domain, ordered by day.
func (r *DomainRepository) ProgressByDomain(_ context.Context, domainID string) ([]*models.WarmingProgress, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var rows []*models.WarmingProgress

	for day := 1; ; day++ {
		progress, err := r.progressForDay(domainID, day)
		if err != nil {
			if errors.Is(err, persistence.ErrProgressNotFound) {
				break
			}

			return nil, err
		}

		rows = append(rows, progress)
	}

	return rows, nil
}

// AdvanceWarming commits the finalized day, the updated domain and the new
// day's row under one lock.
func (r *DomainRepository) AdvanceWarming(_ context.Context, domain *models.SendingDomain, finalized, next *models.WarmingProgress) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	now := time.Now().UTC()

	if finalized != nil {
		finalized.UpdatedAt = now

		if err := r.store.write(kindProgress, progressKey(finalized.DomainID, finalized.Day), finalized); err != nil {
			return persistence.NewDomainError("AdvanceWarming", domain.ID, err)
		}
	}

	domain.UpdatedAt = now

	if err := r.store.write(kindDomains, domain.ID, domain); err != nil {
		return persistence.NewDomainError("AdvanceWarming", domain.ID, err)
	}

	if next != nil {
		next.UpdatedAt = now

		if err := r.store.write(kindProgress, progressKey(next.DomainID, next.Day), next); err != nil {
			return persistence.NewDomainError("AdvanceWarming", domain.ID, err)
		}
	}

	return nil
}

// UpsertDomainHealth writes the daily rollup keyed by (domain, day).
func (r *DomainRepository) UpsertDomainHealth(_ context.Context, health *models.DomainHealth) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	health.UpdatedAt = time.Now().UTC()

	return r.store.write(kindHealth, healthKey(health.DomainID, health.Date), health)
}

// UpsertISPMetrics writes the per-provider rollup keyed by (domain, isp, day).
func (r *DomainRepository) UpsertISPMetrics(_ context.Context, metrics *models.ISPMetrics) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	metrics.UpdatedAt = time.Now().UTC()

	key := fmt.Sprintf("%s_%s_%s", metrics.DomainID, metrics.ISP, metrics.Date.UTC().Format(dayFormat))

	return r.store.write(kindISPMetrics, key, metrics)
}

// HealthForDay loads the daily rollup for one domain and date.
func (r *DomainRepository) HealthForDay(_ context.Context, domainID string, date time.Time) (*models.DomainHealth, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var health models.DomainHealth
	if err := r.store.read(kindHealth, healthKey(domainID, date), &health, persistence.ErrStatsNotFound); err != nil {
		return nil, err
	}

	return &health, nil
}

// DailyStats returns the all-providers telemetry aggregate for a date.
func (r *DomainRepository) DailyStats(_ context.Context, domainID string, date time.Time) (models.DailyStats, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var stats models.DailyStats
	if err := r.store.read(kindStats, statsKey(domainID, totalBucket, date), &stats, persistence.ErrStatsNotFound); err != nil {
		return models.DailyStats{}, err
	}

	return stats, nil
}

// DailyStatsByISP returns per-provider aggregates for a date.
func (r *DomainRepository) DailyStatsByISP(_ context.Context, domainID string, date time.Time) (map[string]models.DailyStats, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	ids, err := r.store.listIDs(kindStats)
	if err != nil {
		return nil, err
	}

	prefix := domainID + "_"
	suffix := "_" + date.UTC().Format(dayFormat)
	buckets := make(map[string]models.DailyStats)

	for _, id := range ids {
		if !strings.HasPrefix(id, prefix) || !strings.HasSuffix(id, suffix) {
			continue
		}

		isp := strings.TrimSuffix(strings.TrimPrefix(id, prefix), suffix)
		if isp == totalBucket {
			continue
		}

		var stats models.DailyStats
		if err := r.store.read(kindStats, id, &stats, persistence.ErrStatsNotFound); err != nil {
			return nil, err
		}

		buckets[isp] = stats
	}

	return buckets, nil
}

// SaveDailyStats upserts one telemetry aggregate. An empty isp stores the
// all-providers bucket.
func (r *DomainRepository) SaveDailyStats(_ context.Context, domainID string, date time.Time, isp string, stats models.DailyStats) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if isp == "" {
		isp = totalBucket
	}

	return r.store.write(kindStats, statsKey(domainID, isp, date), stats)
}

func progressKey(domainID string, day int) string {
	return fmt.Sprintf("%s_day_%03d", domainID, day)
}

func healthKey(domainID string, date time.Time) string {
	return fmt.Sprintf("%s_%s", domainID, date.UTC().Format(dayFormat))
}

func statsKey(domainID, isp string, date time.Time) string {
	return fmt.Sprintf("%s_%s_%s", domainID, isp, date.UTC().Format(dayFormat))
}
