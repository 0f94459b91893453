package web

import (
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/sendloop/sendloop/pkg/models"
	"github.com/sendloop/sendloop/pkg/persistence"
)

func (h *APIHandlers) GetDomains(c fiber.Ctx) error {
	domains, err := h.domainService.List(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{"domains": domains, "total_count": len(domains)})
}

func (h *APIHandlers) GetDomain(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Domain ID is required")
	}

	domain, err := h.domainService.FetchByID(c.Context(), id)
	if err != nil {
		if persistence.IsNotFound(err) {
			return notFound(c, "Domain not found")
		}

		return internalError(c, err)
	}

	return c.JSON(domain)
}

func (h *APIHandlers) CreateDomain(c fiber.Ctx) error {
	var req CreateDomainRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	created, err := h.domainService.Create(c.Context(), &models.SendingDomain{
		Domain:      req.Domain,
		WorkspaceID: req.WorkspaceID,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) VerifyDomain(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Domain ID is required")
	}

	domain, err := h.domainService.Verify(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(domain)
}

func (h *APIHandlers) DeleteDomain(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Domain ID is required")
	}

	if err := h.domainService.Delete(c.Context(), id); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) StartWarming(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Domain ID is required")
	}

	var req StartWarmingRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	domain, err := h.warming.StartWarming(c.Context(), id, req.ScheduleID)
	if err != nil {
		if persistence.IsNotFound(err) {
			return notFound(c, err.Error())
		}

		return conflict(c, err.Error())
	}

	return c.JSON(domain)
}

func (h *APIHandlers) PauseWarming(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Domain ID is required")
	}

	var req PauseWarmingRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	reason := req.Reason
	if reason == "" {
		reason = "paused manually"
	}

	domain, err := h.warming.PauseWarming(c.Context(), id, reason)
	if err != nil {
		if persistence.IsNotFound(err) {
			return notFound(c, "Domain not found")
		}

		return conflict(c, err.Error())
	}

	return c.JSON(domain)
}

func (h *APIHandlers) ResumeWarming(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Domain ID is required")
	}

	domain, err := h.warming.ResumeWarming(c.Context(), id)
	if err != nil {
		if persistence.IsNotFound(err) {
			return notFound(c, "Domain not found")
		}

		return conflict(c, err.Error())
	}

	return c.JSON(domain)
}

// AdvanceWarmingDay closes the domain's current warming day and opens
// the next one. Normally driven by the scheduler; exposed for manual
// catch-up.
func (h *APIHandlers) AdvanceWarmingDay(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Domain ID is required")
	}

	next, err := h.warming.AdvanceDay(c.Context(), id)
	if err != nil {
		if persistence.IsNotFound(err) {
			return notFound(c, err.Error())
		}

		return internalError(c, err)
	}

	domain, err := h.domainService.FetchByID(c.Context(), id)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{"domain": domain, "next_day": next})
}

func (h *APIHandlers) GetWarmingProgress(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Domain ID is required")
	}

	if _, err := h.domainService.FetchByID(c.Context(), id); err != nil {
		if persistence.IsNotFound(err) {
			return notFound(c, "Domain not found")
		}

		return internalError(c, err)
	}

	progress, err := h.persistence.Domains().ProgressByDomain(c.Context(), id)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{"progress": progress, "total_count": len(progress)})
}

func (h *APIHandlers) TrackActivity(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Domain ID is required")
	}

	var req TrackActivityRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	err := h.warming.TrackActivity(c.Context(), id, req.Sent, req.Delivered, req.Bounced, req.Complaints)
	if err != nil {
		if persistence.IsNotFound(err) {
			return notFound(c, err.Error())
		}

		return conflict(c, err.Error())
	}

	return c.SendStatus(fiber.StatusAccepted)
}

// GetDomainHealth returns the stored rollup for a day, computing it on
// demand when asked for a day that has not been scored yet.
func (h *APIHandlers) GetDomainHealth(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Domain ID is required")
	}

	date := time.Now().UTC()

	if dateStr := c.Query("date"); dateStr != "" {
		parsed, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			return badRequest(c, "Invalid date, expected YYYY-MM-DD")
		}

		date = parsed
	}

	health, err := h.persistence.Domains().HealthForDay(c.Context(), id, date)
	if err == nil {
		return c.JSON(health)
	}

	if !persistence.IsNotFound(err) {
		return internalError(c, err)
	}

	health, err = h.reputation.CalculateDomainHealth(c.Context(), id, date)
	if err != nil {
		if persistence.IsNotFound(err) {
			return notFound(c, "Domain not found")
		}

		return internalError(c, err)
	}

	return c.JSON(health)
}

func (h *APIHandlers) GetSchedules(c fiber.Ctx) error {
	schedules, err := h.domainService.Schedules(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{"schedules": schedules, "total_count": len(schedules)})
}

func (h *APIHandlers) GetSchedule(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Schedule ID is required")
	}

	schedule, err := h.domainService.ScheduleByID(c.Context(), id)
	if err != nil {
		if persistence.IsNotFound(err) {
			return notFound(c, "Schedule not found")
		}

		return internalError(c, err)
	}

	return c.JSON(schedule)
}

func (h *APIHandlers) CreateSchedule(c fiber.Ctx) error {
	var req CreateScheduleRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	created, err := h.domainService.CreateSchedule(c.Context(), &models.WarmingSchedule{
		Name:                 req.Name,
		WorkspaceID:          req.WorkspaceID,
		Steps:                req.Steps,
		MaxBounceRate:        req.MaxBounceRate,
		MaxComplaintRate:     req.MaxComplaintRate,
		MinDeliveryRate:      req.MinDeliveryRate,
		AutoPauseOnThreshold: req.AutoPauseOnThreshold,
		AutoAdjustVolume:     req.AutoAdjustVolume,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}
