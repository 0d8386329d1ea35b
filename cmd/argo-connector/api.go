// Package main provides the connector API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/biodt/argo-connector/pkg/argo"
	"github.com/biodt/argo-connector/pkg/cordra"
	"github.com/biodt/argo-connector/pkg/ingest"
	"github.com/biodt/argo-connector/pkg/persistence"
	"github.com/biodt/argo-connector/pkg/web"
)

type API struct {
	logger     *slog.Logger
	engine     *argo.Client
	repository *cordra.Client
	runs       persistence.RunRepository
	ingest     *ingest.Service
	namespace  string
	validate   *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	engine *argo.Client,
	repository *cordra.Client,
	runs persistence.RunRepository,
	ingestService *ingest.Service,
	namespace string,
) *API {
	return &API{
		logger:     logger,
		engine:     engine,
		repository: repository,
		runs:       runs,
		ingest:     ingestService,
		namespace:  namespace,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(a.ingest, a.engine, a.repository, a.runs, a.validate, a.namespace)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Argo Connector")
	})

	app.Get("/notify/:namespace/:name", handlers.NotifyWorkflow)

	w := app.Group("/workflows")
	w.Get("/", handlers.GetWorkflows)
	w.Post("/", handlers.SubmitWorkflow)
	w.Post("/lint", handlers.LintWorkflow)

	r := app.Group("/runs")
	r.Get("/", handlers.GetRuns)
	r.Get("/:id", handlers.GetRun)

	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	err := app.Listen(":" + strconv.Itoa(port))

	return err
}
