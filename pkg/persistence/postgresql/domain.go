package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sendloop/sendloop/pkg/models"
	"github.com/sendloop/sendloop/pkg/persistence"
)

// DomainRepository handles sending domain, warming and health database
// operations.
type DomainRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

const domainColumns = `
	id
  , workspace_id
  , domain
  , status
  , warming_status
  , warming_day
  , warming_schedule_id
  , daily_limit
  , daily_sent
  , health_score
  , health_status
  , created_at
  , updated_at
`

// DomainByID loads a sending domain by id.
func (r *DomainRepository) DomainByID(ctx context.Context, id string) (*models.SendingDomain, error) {
	query := "SELECT " + domainColumns + " FROM sending_domains WHERE id = $1"

	domain, err := scanDomain(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrDomainNotFound
		}

		return nil, persistence.NewDomainError("get", id, err)
	}

	return domain, nil
}

// SaveDomain upserts a sending domain.
func (r *DomainRepository) SaveDomain(ctx context.Context, domain *models.SendingDomain) error {
	if err := saveDomainTx(ctx, r.db, domain); err != nil {
		return persistence.NewDomainError("save", domain.ID, err)
	}

	return nil
}

// DeleteDomain removes a domain row. Warming progress and health
// history cascade with it.
func (r *DomainRepository) DeleteDomain(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM sending_domains WHERE id = $1", id)
	if err != nil {
		return persistence.NewDomainError("delete", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewDomainError("delete", id, err)
	}

	if affected == 0 {
		return persistence.ErrDomainNotFound
	}

	return nil
}

// Domains lists all sending domains.
func (r *DomainRepository) Domains(ctx context.Context) ([]*models.SendingDomain, error) {
	query := "SELECT " + domainColumns + " FROM sending_domains ORDER BY created_at DESC"

	return r.queryDomains(ctx, query)
}

// WarmingDomains returns domains with warming in progress.
func (r *DomainRepository) WarmingDomains(ctx context.Context) ([]*models.SendingDomain, error) {
	query := "SELECT " + domainColumns + `
		FROM sending_domains
		WHERE warming_status = $1
		ORDER BY created_at
	`

	return r.queryDomains(ctx, query, string(models.WarmingInProgress))
}

func (r *DomainRepository) queryDomains(ctx context.Context, query string, args ...any) ([]*models.SendingDomain, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query domains: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	domains := make([]*models.SendingDomain, 0)

	for rows.Next() {
		domain, err := scanDomain(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan domain: %w", err)
		}

		domains = append(domains, domain)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating domains: %w", err)
	}

	return domains, nil
}

// ScheduleByID loads a warming schedule by id.
func (r *DomainRepository) ScheduleByID(ctx context.Context, id string) (*models.WarmingSchedule, error) {
	query := `
		SELECT
			id
		  , workspace_id
		  , name
		  , is_system
		  , steps
		  , max_bounce_rate
		  , max_complaint_rate
		  , min_delivery_rate
		  , auto_pause_on_threshold
		  , auto_adjust_volume
		  , created_at
		  , updated_at
		FROM warming_schedules
		WHERE id = $1
	`

	schedule, err := scanSchedule(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrScheduleNotFound
		}

		return nil, fmt.Errorf("failed to scan schedule: %w", err)
	}

	return schedule, nil
}

// SaveSchedule upserts a warming schedule.
func (r *DomainRepository) SaveSchedule(ctx context.Context, schedule *models.WarmingSchedule) error {
	steps, err := json.Marshal(schedule.Steps)
	if err != nil {
		return fmt.Errorf("failed to encode steps: %w", err)
	}

	now := time.Now().UTC()
	if schedule.CreatedAt.IsZero() {
		schedule.CreatedAt = now
	}

	schedule.UpdatedAt = now

	query := `
		INSERT INTO warming_schedules (
			id, workspace_id, name, is_system, steps,
			max_bounce_rate, max_complaint_rate, min_delivery_rate,
			auto_pause_on_threshold, auto_adjust_volume, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			steps = EXCLUDED.steps,
			max_bounce_rate = EXCLUDED.max_bounce_rate,
			max_complaint_rate = EXCLUDED.max_complaint_rate,
			min_delivery_rate = EXCLUDED.min_delivery_rate,
			auto_pause_on_threshold = EXCLUDED.auto_pause_on_threshold,
			auto_adjust_volume = EXCLUDED.auto_adjust_volume,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		schedule.ID, schedule.WorkspaceID, schedule.Name, schedule.IsSystem, steps,
		schedule.MaxBounceRate, schedule.MaxComplaintRate, schedule.MinDeliveryRate,
		schedule.AutoPauseOnThreshold, schedule.AutoAdjustVolume,
		schedule.CreatedAt, schedule.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save schedule %s: %w", schedule.ID, err)
	}

	return nil
}

// Schedules lists all warming schedules, system schedules first.
func (r *DomainRepository) Schedules(ctx context.Context) ([]*models.WarmingSchedule, error) {
	query := `
		SELECT
			id
		  , workspace_id
		  , name
		  , is_system
		  , steps
		  , max_bounce_rate
		  , max_complaint_rate
		  , min_delivery_rate
		  , auto_pause_on_threshold
		  , auto_adjust_volume
		  , created_at
		  , updated_at
		FROM warming_schedules
		ORDER BY is_system DESC, name
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query schedules: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	schedules := make([]*models.WarmingSchedule, 0)

	for rows.Next() {
		schedule, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan schedule: %w", err)
		}

		schedules = append(schedules, schedule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating schedules: %w", err)
	}

	return schedules, nil
}

const progressColumns = `
	id
  , domain_id
  , day
  , target_volume
  , actual_volume
  , sent
  , delivered
  , bounced
  , complaints
  , delivery_rate
  , bounce_rate
  , complaint_rate
  , threshold_exceeded
  , ai_recommendation
  , completed
  , date
  , created_at
  , updated_at
`

// ProgressForDay loads one warming day's progress row.
func (r *DomainRepository) ProgressForDay(ctx context.Context, domainID string, day int) (*models.WarmingProgress, error) {
	query := "SELECT " + progressColumns + " FROM warming_progress WHERE domain_id = $1 AND day = $2"

	progress, err := scanProgress(r.db.QueryRowContext(ctx, query, domainID, day))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrProgressNotFound
		}

		return nil, persistence.NewDomainError("progress", domainID, err)
	}

	return progress, nil
}

// SaveProgress upserts one warming day's progress row.
func (r *DomainRepository) SaveProgress(ctx context.Context, progress *models.WarmingProgress) error {
	if err := saveProgressTx(ctx, r.db, progress); err != nil {
		return persistence.NewDomainError("save_progress", progress.DomainID, err)
	}

	return nil
}

// ProgressByDomain returns the full warming history, oldest day first.
func (r *DomainRepository) ProgressByDomain(ctx context.Context, domainID string) ([]*models.WarmingProgress, error) {
	query := "SELECT " + progressColumns + " FROM warming_progress WHERE domain_id = $1 ORDER BY day"

	rows, err := r.db.QueryContext(ctx, query, domainID)
	if err != nil {
		return nil, persistence.NewDomainError("progress_history", domainID, err)
	}

	defer closeRows(ctx, r.logger, rows)

	history := make([]*models.WarmingProgress, 0)

	for rows.Next() {
		progress, err := scanProgress(rows)
		if err != nil {
			return nil, persistence.NewDomainError("progress_history", domainID, err)
		}

		history = append(history, progress)
	}

	if err := rows.Err(); err != nil {
		return nil, persistence.NewDomainError("progress_history", domainID, err)
	}

	return history, nil
}

// AdvanceWarming commits the finalized previous day, the updated domain
// and the next day's fresh row in one transaction.
func (r *DomainRepository) AdvanceWarming(ctx context.Context, domain *models.SendingDomain, finalized, next *models.WarmingProgress) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return persistence.NewDomainError("advance_warming", domain.ID, err)
	}

	defer rollback(ctx, r.logger, tx)

	if err := saveProgressTx(ctx, tx, finalized); err != nil {
		return persistence.NewDomainError("advance_warming", domain.ID, err)
	}

	if err := saveDomainTx(ctx, tx, domain); err != nil {
		return persistence.NewDomainError("advance_warming", domain.ID, err)
	}

	if next != nil {
		if err := saveProgressTx(ctx, tx, next); err != nil {
			return persistence.NewDomainError("advance_warming", domain.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return persistence.NewDomainError("advance_warming", domain.ID, err)
	}

	return nil
}

// UpsertDomainHealth writes or replaces the daily health rollup.
func (r *DomainRepository) UpsertDomainHealth(ctx context.Context, health *models.DomainHealth) error {
	stats, err := json.Marshal(health.Stats)
	if err != nil {
		return persistence.NewDomainError("upsert_health", health.DomainID, err)
	}

	factors, err := json.Marshal(health.ScoreFactors)
	if err != nil {
		return persistence.NewDomainError("upsert_health", health.DomainID, err)
	}

	if health.ID == "" {
		health.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	if health.CreatedAt.IsZero() {
		health.CreatedAt = now
	}

	health.UpdatedAt = now

	query := `
		INSERT INTO domain_health (
			id, domain_id, date, stats, health_score, health_status,
			score_factors, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (domain_id, date) DO UPDATE SET
			stats = EXCLUDED.stats,
			health_score = EXCLUDED.health_score,
			health_status = EXCLUDED.health_status,
			score_factors = EXCLUDED.score_factors,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		health.ID, health.DomainID, health.Date, stats,
		health.HealthScore, string(health.HealthStatus), factors,
		health.CreatedAt, health.UpdatedAt)
	if err != nil {
		return persistence.NewDomainError("upsert_health", health.DomainID, err)
	}

	return nil
}

// UpsertISPMetrics writes or replaces the per-provider daily rollup.
func (r *DomainRepository) UpsertISPMetrics(ctx context.Context, metrics *models.ISPMetrics) error {
	stats, err := json.Marshal(metrics.Stats)
	if err != nil {
		return persistence.NewDomainError("upsert_isp", metrics.DomainID, err)
	}

	if metrics.ID == "" {
		metrics.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	if metrics.CreatedAt.IsZero() {
		metrics.CreatedAt = now
	}

	metrics.UpdatedAt = now

	query := `
		INSERT INTO isp_metrics (
			id, domain_id, isp, date, stats, health_score, health_status,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (domain_id, isp, date) DO UPDATE SET
			stats = EXCLUDED.stats,
			health_score = EXCLUDED.health_score,
			health_status = EXCLUDED.health_status,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		metrics.ID, metrics.DomainID, metrics.ISP, metrics.Date, stats,
		metrics.HealthScore, string(metrics.HealthStatus),
		metrics.CreatedAt, metrics.UpdatedAt)
	if err != nil {
		return persistence.NewDomainError("upsert_isp", metrics.DomainID, err)
	}

	return nil
}

// HealthForDay loads one day's health rollup.
func (r *DomainRepository) HealthForDay(ctx context.Context, domainID string, date time.Time) (*models.DomainHealth, error) {
	query := `
		SELECT
			id
		  , domain_id
		  , date
		  , stats
		  , health_score
		  , health_status
		  , score_factors
		  , created_at
		  , updated_at
		FROM domain_health
		WHERE domain_id = $1 AND date = $2
	`

	var (
		health  models.DomainHealth
		stats   []byte
		factors []byte
	)

	err := r.db.QueryRowContext(ctx, query, domainID, date).Scan(
		&health.ID, &health.DomainID, &health.Date, &stats,
		&health.HealthScore, &health.HealthStatus, &factors,
		&health.CreatedAt, &health.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrStatsNotFound
		}

		return nil, persistence.NewDomainError("health", domainID, err)
	}

	if err := json.Unmarshal(stats, &health.Stats); err != nil {
		return nil, persistence.NewDomainError("health", domainID, err)
	}

	if len(factors) > 0 {
		if err := json.Unmarshal(factors, &health.ScoreFactors); err != nil {
			return nil, persistence.NewDomainError("health", domainID, err)
		}
	}

	return &health, nil
}

// totalBucket is the ISP key under which whole-domain aggregates live.
const totalBucket = "total"

// DailyStats loads the whole-domain aggregate for one day.
func (r *DomainRepository) DailyStats(ctx context.Context, domainID string, date time.Time) (models.DailyStats, error) {
	query := "SELECT stats FROM daily_stats WHERE domain_id = $1 AND isp = $2 AND date = $3"

	var (
		stats models.DailyStats
		raw   []byte
	)

	err := r.db.QueryRowContext(ctx, query, domainID, totalBucket, date).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return stats, persistence.ErrStatsNotFound
		}

		return stats, persistence.NewDomainError("daily_stats", domainID, err)
	}

	if err := json.Unmarshal(raw, &stats); err != nil {
		return stats, persistence.NewDomainError("daily_stats", domainID, err)
	}

	return stats, nil
}

// DailyStatsByISP loads the per-provider aggregates for one day, keyed by
// provider name, excluding the whole-domain bucket.
func (r *DomainRepository) DailyStatsByISP(ctx context.Context, domainID string, date time.Time) (map[string]models.DailyStats, error) {
	query := "SELECT isp, stats FROM daily_stats WHERE domain_id = $1 AND date = $2 AND isp <> $3"

	rows, err := r.db.QueryContext(ctx, query, domainID, date, totalBucket)
	if err != nil {
		return nil, persistence.NewDomainError("daily_stats_isp", domainID, err)
	}

	defer closeRows(ctx, r.logger, rows)

	byISP := make(map[string]models.DailyStats)

	for rows.Next() {
		var (
			isp   string
			raw   []byte
			stats models.DailyStats
		)

		if err := rows.Scan(&isp, &raw); err != nil {
			return nil, persistence.NewDomainError("daily_stats_isp", domainID, err)
		}

		if err := json.Unmarshal(raw, &stats); err != nil {
			return nil, persistence.NewDomainError("daily_stats_isp", domainID, err)
		}

		byISP[isp] = stats
	}

	if err := rows.Err(); err != nil {
		return nil, persistence.NewDomainError("daily_stats_isp", domainID, err)
	}

	return byISP, nil
}

// SaveDailyStats upserts one (domain, isp, day) aggregate. An empty isp
// writes the whole-domain bucket.
func (r *DomainRepository) SaveDailyStats(ctx context.Context, domainID string, date time.Time, isp string, stats models.DailyStats) error {
	if isp == "" {
		isp = totalBucket
	}

	raw, err := json.Marshal(stats)
	if err != nil {
		return persistence.NewDomainError("save_daily_stats", domainID, err)
	}

	query := `
		INSERT INTO daily_stats (domain_id, isp, date, stats)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (domain_id, isp, date) DO UPDATE SET stats = EXCLUDED.stats
	`

	_, err = r.db.ExecContext(ctx, query, domainID, isp, date, raw)
	if err != nil {
		return persistence.NewDomainError("save_daily_stats", domainID, err)
	}

	return nil
}

func saveDomainTx(ctx context.Context, db execer, domain *models.SendingDomain) error {
	now := time.Now().UTC()
	if domain.CreatedAt.IsZero() {
		domain.CreatedAt = now
	}

	domain.UpdatedAt = now

	var scheduleID any
	if domain.WarmingScheduleID != "" {
		scheduleID = domain.WarmingScheduleID
	}

	query := `
		INSERT INTO sending_domains (
			id, workspace_id, domain, status, warming_status, warming_day,
			warming_schedule_id, daily_limit, daily_sent,
			health_score, health_status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			warming_status = EXCLUDED.warming_status,
			warming_day = EXCLUDED.warming_day,
			warming_schedule_id = EXCLUDED.warming_schedule_id,
			daily_limit = EXCLUDED.daily_limit,
			daily_sent = EXCLUDED.daily_sent,
			health_score = EXCLUDED.health_score,
			health_status = EXCLUDED.health_status,
			updated_at = EXCLUDED.updated_at
	`

	_, err := db.ExecContext(ctx, query,
		domain.ID, domain.WorkspaceID, domain.Domain, string(domain.Status),
		string(domain.WarmingStatus), domain.WarmingDay, scheduleID,
		domain.DailyLimit, domain.DailySent,
		domain.HealthScore, string(domain.HealthStatus),
		domain.CreatedAt, domain.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save domain: %w", err)
	}

	return nil
}

func saveProgressTx(ctx context.Context, db execer, progress *models.WarmingProgress) error {
	if progress.ID == "" {
		progress.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	if progress.CreatedAt.IsZero() {
		progress.CreatedAt = now
	}

	progress.UpdatedAt = now

	query := `
		INSERT INTO warming_progress (
			id, domain_id, day, target_volume, actual_volume,
			sent, delivered, bounced, complaints,
			delivery_rate, bounce_rate, complaint_rate,
			threshold_exceeded, ai_recommendation, completed, date,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9,
			$10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (domain_id, day) DO UPDATE SET
			target_volume = EXCLUDED.target_volume,
			actual_volume = EXCLUDED.actual_volume,
			sent = EXCLUDED.sent,
			delivered = EXCLUDED.delivered,
			bounced = EXCLUDED.bounced,
			complaints = EXCLUDED.complaints,
			delivery_rate = EXCLUDED.delivery_rate,
			bounce_rate = EXCLUDED.bounce_rate,
			complaint_rate = EXCLUDED.complaint_rate,
			threshold_exceeded = EXCLUDED.threshold_exceeded,
			ai_recommendation = EXCLUDED.ai_recommendation,
			completed = EXCLUDED.completed,
			updated_at = EXCLUDED.updated_at
	`

	_, err := db.ExecContext(ctx, query,
		progress.ID, progress.DomainID, progress.Day,
		progress.TargetVolume, progress.ActualVolume,
		progress.Sent, progress.Delivered, progress.Bounced, progress.Complaints,
		progress.DeliveryRate, progress.BounceRate, progress.ComplaintRate,
		progress.ThresholdExceeded, progress.AIRecommendation, progress.Completed,
		progress.Date, progress.CreatedAt, progress.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save progress: %w", err)
	}

	return nil
}

func scanDomain(row rowScanner) (*models.SendingDomain, error) {
	var (
		domain     models.SendingDomain
		scheduleID sql.NullString
	)

	err := row.Scan(
		&domain.ID, &domain.WorkspaceID, &domain.Domain, &domain.Status,
		&domain.WarmingStatus, &domain.WarmingDay, &scheduleID,
		&domain.DailyLimit, &domain.DailySent,
		&domain.HealthScore, &domain.HealthStatus,
		&domain.CreatedAt, &domain.UpdatedAt)
	if err != nil {
		return nil, err
	}

	domain.WarmingScheduleID = scheduleID.String

	return &domain, nil
}

func scanSchedule(row rowScanner) (*models.WarmingSchedule, error) {
	var (
		schedule models.WarmingSchedule
		steps    []byte
	)

	err := row.Scan(
		&schedule.ID, &schedule.WorkspaceID, &schedule.Name, &schedule.IsSystem, &steps,
		&schedule.MaxBounceRate, &schedule.MaxComplaintRate, &schedule.MinDeliveryRate,
		&schedule.AutoPauseOnThreshold, &schedule.AutoAdjustVolume,
		&schedule.CreatedAt, &schedule.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(steps, &schedule.Steps); err != nil {
		return nil, fmt.Errorf("failed to decode steps: %w", err)
	}

	return &schedule, nil
}

func scanProgress(row rowScanner) (*models.WarmingProgress, error) {
	var (
		progress       models.WarmingProgress
		recommendation sql.NullString
	)

	err := row.Scan(
		&progress.ID, &progress.DomainID, &progress.Day,
		&progress.TargetVolume, &progress.ActualVolume,
		&progress.Sent, &progress.Delivered, &progress.Bounced, &progress.Complaints,
		&progress.DeliveryRate, &progress.BounceRate, &progress.ComplaintRate,
		&progress.ThresholdExceeded, &recommendation, &progress.Completed,
		&progress.Date, &progress.CreatedAt, &progress.UpdatedAt)
	if err != nil {
		return nil, err
	}

	progress.AIRecommendation = recommendation.String

	return &progress, nil
}
