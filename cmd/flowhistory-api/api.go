// Package main provides the flowhistory API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/planstudio/flowhistory/pkg/services"
	"github.com/planstudio/flowhistory/pkg/web"
)

type API struct {
	logger         *slog.Logger
	historyService *services.History
	validate       *validator.Validate
}

func NewAPI(logger *slog.Logger, historyService *services.History) *API {
	return &API{
		logger:         logger,
		historyService: historyService,
		validate:       validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(a.historyService, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Flowhistory API")
	})

	e := app.Group("/executions")
	e.Get("/", handlers.GetExecutions)
	e.Post("/", handlers.CreateExecution)
	e.Delete("/", handlers.DeleteExecutions)
	e.Get("/:id", handlers.GetExecution)
	e.Get("/:id/logs", handlers.GetExecutionLogs)
	e.Patch("/:id/status", handlers.TransitionExecutionStatus)

	s := app.Group("/stats")
	s.Get("/summary", handlers.GetSummaryStats)
	s.Get("/timeseries", handlers.GetTimeSeries)
	s.Get("/errors", handlers.GetErrorAnalysis)
	s.Get("/failing-flows", handlers.GetTopFailingFlows)

	app.Get("/flows", handlers.GetFlows)
	app.Post("/alerts/evaluate", handlers.EvaluateAlerts)

	app.Get("/health", handlers.GetHealth)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	err := app.Listen(":" + strconv.Itoa(port))

	return err
}
