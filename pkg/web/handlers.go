package web

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/biodt/argo-connector/pkg/argo"
	"github.com/biodt/argo-connector/pkg/ingest"
	"github.com/biodt/argo-connector/pkg/models"
	"github.com/biodt/argo-connector/pkg/persistence"
)

// EngineAPI is the engine surface the HTTP layer exposes.
type EngineAPI interface {
	ListWorkflows(ctx context.Context, namespace string, limit int) ([]argo.WorkflowSummary, error)
	Submit(ctx context.Context, namespace string, doc *argo.Document, dryRun bool) (*argo.Workflow, error)
	Lint(ctx context.Context, namespace string, doc *argo.Document) (*argo.Workflow, error)
	HealthCheck(ctx context.Context, namespace string) error
}

// RepositoryAPI is the repository surface the HTTP layer needs.
type RepositoryAPI interface {
	HealthCheck(ctx context.Context) error
}

type APIHandlers struct {
	ingestService    *ingest.Service
	engine           EngineAPI
	repository       RepositoryAPI
	runs             persistence.RunRepository
	validate         *validator.Validate
	defaultNamespace string
}

func NewAPIHandlers(
	ingestService *ingest.Service,
	engine EngineAPI,
	repository RepositoryAPI,
	runs persistence.RunRepository,
	validate *validator.Validate,
	defaultNamespace string,
) *APIHandlers {
	return &APIHandlers{
		ingestService:    ingestService,
		engine:           engine,
		repository:       repository,
		runs:             runs,
		validate:         validate,
		defaultNamespace: defaultNamespace,
	}
}

// NotifyWorkflow accepts a completion notification and queues an ingestion
// run. The ingestion itself happens in the background; the response only
// confirms the workflow is eligible and lists what will be ingested.
func (h *APIHandlers) NotifyWorkflow(c fiber.Ctx) error {
	namespace := c.Params("namespace")
	name := c.Params("name")

	if namespace == "" || name == "" {
		return badRequest(c, "Namespace and workflow name are required")
	}

	run, wf, refs, err := h.ingestService.StartIngestion(c.Context(), namespace, name)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(TransformNotifyResponse(run, wf, refs))
}

// GetWorkflows lists workflows known to the engine.
func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	namespace := c.Query("namespace")
	if namespace == "" {
		namespace = h.defaultNamespace
	}

	limit := 0

	if limitStr := c.Query("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil {
			return badRequest(c, "Invalid limit: "+limitStr)
		}

		limit = parsed
	}

	workflows, err := h.engine.ListWorkflows(c.Context(), namespace, limit)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"namespace": namespace,
		"workflows": workflows,
	})
}

// SubmitWorkflow forwards a workflow document to the engine. With ?dryRun
// set the engine validates without creating.
func (h *APIHandlers) SubmitWorkflow(c fiber.Ctx) error {
	req, err := h.parseSubmitRequest(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	dryRun := c.Query("dryRun") == "true"

	created, err := h.engine.Submit(c.Context(), req.Namespace, req.Document(), dryRun)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

// LintWorkflow asks the engine to validate a workflow document.
func (h *APIHandlers) LintWorkflow(c fiber.Ctx) error {
	req, err := h.parseSubmitRequest(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	linted, err := h.engine.Lint(c.Context(), req.Namespace, req.Document())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(linted)
}

func (h *APIHandlers) parseSubmitRequest(c fiber.Ctx) (*SubmitWorkflowRequest, error) {
	req := &SubmitWorkflowRequest{Namespace: h.defaultNamespace}

	err := c.Bind().JSON(req)
	if err != nil {
		return nil, err
	}

	err = h.validate.Struct(req)
	if err != nil {
		return nil, err
	}

	return req, nil
}

// GetRuns lists ingestion runs, newest first.
func (h *APIHandlers) GetRuns(c fiber.Ctx) error {
	filter := persistence.RunFilter{
		Namespace:    c.Query("namespace"),
		WorkflowName: c.Query("workflow"),
		Status:       models.RunStatus(c.Query("status")),
	}

	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return badRequest(c, "Invalid limit: "+limitStr)
		}

		filter.Limit = limit
	}

	runs, err := h.runs.List(c.Context(), filter)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"runs": runs})
}

// GetRun returns a single ingestion run.
func (h *APIHandlers) GetRun(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Run ID is required")
	}

	run, err := h.runs.GetByID(c.Context(), id)
	if err != nil {
		if persistence.IsRunNotFound(err) {
			return notFound(c, "Ingestion run not found")
		}

		return internalError(c, err)
	}

	return c.JSON(run)
}

// HealthCheck aggregates the engine and repository probes.
func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	engineErr := h.engine.HealthCheck(c.Context(), h.defaultNamespace)
	repositoryErr := h.repository.HealthCheck(c.Context())

	status := "healthy"
	httpStatus := http.StatusOK

	if engineErr != nil || repositoryErr != nil {
		status = "unhealthy"
		httpStatus = http.StatusInternalServerError
	}

	checks := fiber.Map{
		"argo":   checkResult(engineErr),
		"cordra": checkResult(repositoryErr),
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status": status,
		"checks": checks,
	})
}

func checkResult(err error) fiber.Map {
	if err != nil {
		return fiber.Map{"healthy": false, "error": err.Error()}
	}

	return fiber.Map{"healthy": true}
}
