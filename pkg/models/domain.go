package models

import "time"

// DomainStatus is the lifecycle state of a sending domain.
type DomainStatus string

const (
	DomainStatusPending  DomainStatus = "pending"
	DomainStatusVerified DomainStatus = "verified"
	DomainStatusWarming  DomainStatus = "warming"
	DomainStatusActive   DomainStatus = "active"
	DomainStatusPaused   DomainStatus = "paused"
)

// WarmingStatus tracks ramp progress independently of the domain status,
// so an operator pause never loses ramp position.
type WarmingStatus string

const (
	WarmingNotStarted WarmingStatus = "not_started"
	WarmingInProgress WarmingStatus = "in_progress"
	WarmingPaused     WarmingStatus = "paused"
	WarmingCompleted  WarmingStatus = "completed"
)

// SendingDomain is a domain or subdomain used for outbound mail.
type SendingDomain struct {
	ID          string `json:"id"`
	WorkspaceID string `json:"workspace_id"`
	Domain      string `json:"domain" validate:"required,fqdn"`

	Status        DomainStatus  `json:"status"`
	WarmingStatus WarmingStatus `json:"warming_status"`

	// WarmingDay is 1-based and only ever advances.
	WarmingDay        int    `json:"warming_day"`
	WarmingScheduleID string `json:"warming_schedule_id,omitempty"`

	// DailySent <= DailyLimit is a soft cap enforced by the
	// send-eligibility check, not by storage.
	DailyLimit int `json:"daily_limit"`
	DailySent  int `json:"daily_sent"`

	HealthScore  int          `json:"health_score"`
	HealthStatus HealthStatus `json:"health_status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CanSend reports whether the domain may send another message today.
func (d *SendingDomain) CanSend() bool {
	if d.Status != DomainStatusActive && d.Status != DomainStatusWarming {
		return false
	}

	return d.DailySent < d.DailyLimit
}
