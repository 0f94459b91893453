// Package main provides the Sendloop API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/sendloop/sendloop/pkg/eventbus"
	"github.com/sendloop/sendloop/pkg/persistence"
	"github.com/sendloop/sendloop/pkg/registry"
	"github.com/sendloop/sendloop/pkg/reputation"
	"github.com/sendloop/sendloop/pkg/services"
	"github.com/sendloop/sendloop/pkg/warming"
	"github.com/sendloop/sendloop/pkg/web"
	"github.com/sendloop/sendloop/pkg/workflow"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	registry    *registry.Registry
	eventBus    eventbus.EventBus
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	registry *registry.Registry,
	eventBus eventbus.EventBus,
) *API {
	return &API{
		logger:      logger,
		persistence: persistence,
		registry:    registry,
		eventBus:    eventBus,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(
		services.NewWorkflow(a.persistence, a.registry),
		services.NewDomains(a.persistence),
		workflow.NewEngine(a.persistence, a.registry, a.eventBus, nil, a.logger),
		warming.NewEngine(a.persistence, a.eventBus, nil, a.logger),
		reputation.NewScorer(a.persistence, a.eventBus, a.logger),
		a.persistence,
		a.validate,
		a.registry,
	)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Sendloop API")
	})

	w := app.Group("/workflows")
	w.Get("/", handlers.GetWorkflows)
	w.Post("/", handlers.CreateWorkflow)
	w.Get("/:id", handlers.GetWorkflow)
	w.Patch("/:id", handlers.UpdateWorkflow)
	w.Delete("/:id", handlers.DeleteWorkflow)
	w.Post("/:id/executions", handlers.TriggerExecution)

	e := app.Group("/executions")
	e.Get("/:id", handlers.GetExecution)
	e.Get("/:id/steps", handlers.GetExecutionSteps)
	e.Post("/:id/resume", handlers.ResumeExecution)

	d := app.Group("/domains")
	d.Get("/", handlers.GetDomains)
	d.Post("/", handlers.CreateDomain)
	d.Get("/:id", handlers.GetDomain)
	d.Delete("/:id", handlers.DeleteDomain)
	d.Post("/:id/verify", handlers.VerifyDomain)
	d.Post("/:id/warming/start", handlers.StartWarming)
	d.Post("/:id/warming/pause", handlers.PauseWarming)
	d.Post("/:id/warming/resume", handlers.ResumeWarming)
	d.Post("/:id/warming/advance", handlers.AdvanceWarmingDay)
	d.Get("/:id/warming/progress", handlers.GetWarmingProgress)
	d.Post("/:id/activity", handlers.TrackActivity)
	d.Get("/:id/health", handlers.GetDomainHealth)

	s := app.Group("/schedules")
	s.Get("/", handlers.GetSchedules)
	s.Post("/", handlers.CreateSchedule)
	s.Get("/:id", handlers.GetSchedule)

	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	return a.App().Listen(":" + strconv.Itoa(port))
}
