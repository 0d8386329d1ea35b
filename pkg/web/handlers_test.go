package web_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/biodt/argo-connector/pkg/argo"
	"github.com/biodt/argo-connector/pkg/cordra"
	"github.com/biodt/argo-connector/pkg/ingest"
	"github.com/biodt/argo-connector/pkg/models"
	"github.com/biodt/argo-connector/pkg/persistence"
	"github.com/biodt/argo-connector/pkg/persistence/file"
	"github.com/biodt/argo-connector/pkg/web"
)

// stubEngine answers the engine-facing handlers without a real server.
type stubEngine struct {
	summaries []argo.WorkflowSummary
	healthErr error
}

func (e *stubEngine) ListWorkflows(ctx context.Context, namespace string, limit int) ([]argo.WorkflowSummary, error) {
	if limit > 0 && len(e.summaries) > limit {
		return e.summaries[:limit], nil
	}

	return e.summaries, nil
}

func (e *stubEngine) Submit(ctx context.Context, namespace string, doc *argo.Document, dryRun bool) (*argo.Workflow, error) {
	return &argo.Workflow{
		Metadata: argo.Metadata{Name: "bees-xyz99", Namespace: namespace},
	}, nil
}

func (e *stubEngine) Lint(ctx context.Context, namespace string, doc *argo.Document) (*argo.Workflow, error) {
	return &argo.Workflow{Metadata: doc.Metadata}, nil
}

func (e *stubEngine) HealthCheck(ctx context.Context, namespace string) error {
	return e.healthErr
}

type stubRepository struct {
	healthErr error
}

func (r *stubRepository) HealthCheck(ctx context.Context) error {
	return r.healthErr
}

// nullGraphRepo satisfies the assembler without talking to anything.
type nullGraphRepo struct {
	nextID int
}

func (r *nullGraphRepo) Create(ctx context.Context, objectType string, payload map[string]any, attachments ...cordra.Attachment) (*cordra.Object, error) {
	for _, attachment := range attachments {
		_, _ = io.Copy(io.Discard, attachment.Content)
	}

	r.nextID++

	return &cordra.Object{ID: fmt.Sprintf("test/%d", r.nextID), Type: objectType}, nil
}

func (r *nullGraphRepo) Read(ctx context.Context, id string) (map[string]any, error) {
	return map[string]any{}, nil
}

func (r *nullGraphRepo) Update(ctx context.Context, id string, payload map[string]any) error {
	return nil
}

func (r *nullGraphRepo) Delete(ctx context.Context, id string) error {
	return nil
}

type passthroughClassifier struct{}

func (passthroughClassifier) Classify(path string) (string, error) {
	return "application/octet-stream", nil
}

// engineFixture serves one succeeded workflow with one durable artifact.
func engineFixture(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/workflows/argo/bees-abc12", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"metadata": map[string]any{"name": "bees-abc12", "namespace": "argo"},
			"spec":     map[string]any{"workflowTemplateRef": map[string]any{"name": "bees"}},
			"status": map[string]any{
				"phase":      "Succeeded",
				"startedAt":  "2024-05-02T09:00:00Z",
				"finishedAt": "2024-05-02T10:30:00Z",
				"nodes": map[string]any{
					"bees-abc12-1": map[string]any{
						"id":    "bees-abc12-1",
						"phase": "Succeeded",
						"outputs": map[string]any{
							"artifacts": []map[string]any{
								{
									"name": "results",
									"path": "/tmp/results.csv",
									"s3":   map[string]any{"key": "bees-abc12/results.tgz"},
								},
							},
						},
					},
				},
				"storedWorkflowTemplateSpec": map[string]any{"entrypoint": "main"},
			},
		})
	})

	mux.HandleFunc("/api/v1/workflows/argo/bees-running", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"metadata": map[string]any{"name": "bees-running", "namespace": "argo"},
			"status":   map[string]any{"phase": "Running"},
		})
	})

	mux.HandleFunc("/artifact-files/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Disposition", "attachment")
		_, _ = w.Write([]byte("a,b,c"))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return server
}

type testFixture struct {
	app  *fiber.App
	runs persistence.RunRepository
}

func setupTestApp(t *testing.T, engine *stubEngine, repository *stubRepository) *testFixture {
	t.Helper()

	engineClient := argo.NewClient(argo.ClientConfig{BaseURL: engineFixture(t).URL}, slog.Default())
	assembler := ingest.NewAssembler(&nullGraphRepo{}, passthroughClassifier{}, slog.Default(), ingest.Config{})

	store := file.NewPersistence(t.TempDir())
	runs := store.RunRepository()

	tracer := noop.NewTracerProvider().Tracer("test")
	service := ingest.NewService(engineClient, assembler, runs, nil, tracer, slog.Default())

	validate := validator.New(validator.WithRequiredStructEnabled())
	handlers := web.NewAPIHandlers(service, engine, repository, runs, validate, "argo")

	app := fiber.New()
	app.Get("/notify/:namespace/:name", handlers.NotifyWorkflow)
	app.Get("/workflows", handlers.GetWorkflows)
	app.Post("/workflows", handlers.SubmitWorkflow)
	app.Post("/workflows/lint", handlers.LintWorkflow)
	app.Get("/runs", handlers.GetRuns)
	app.Get("/runs/:id", handlers.GetRun)
	app.Get("/health", handlers.HealthCheck)

	return &testFixture{app: app, runs: runs}
}

func doRequest(t *testing.T, app *fiber.App, method, target, body string) (*http.Response, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req)
	require.NoError(t, err)

	t.Cleanup(func() {
		if err := resp.Body.Close(); err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	})

	decoded := map[string]any{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &decoded))
	}

	return resp, decoded
}

func TestNotifyWorkflow(t *testing.T) {
	t.Run("accepted", func(t *testing.T) {
		fixture := setupTestApp(t, &stubEngine{}, &stubRepository{})

		resp, body := doRequest(t, fixture.app, http.MethodGet, "/notify/argo/bees-abc12", "")
		assert.Equal(t, fiber.StatusAccepted, resp.StatusCode)
		assert.Equal(t, "accepted", body["status"])
		assert.Equal(t, "bees-abc12", body["workflow_name"])
		assert.Equal(t, "Succeeded", body["workflow_status"])
		assert.NotEmpty(t, body["run_id"])

		artifacts, ok := body["artifacts"].([]any)
		require.True(t, ok)
		require.Len(t, artifacts, 1)

		runID, _ := body["run_id"].(string)

		run, err := fixture.runs.GetByID(context.Background(), runID)
		require.NoError(t, err)
		assert.Equal(t, "bees-abc12", run.WorkflowName)
	})

	t.Run("workflow not ready", func(t *testing.T) {
		fixture := setupTestApp(t, &stubEngine{}, &stubRepository{})

		resp, body := doRequest(t, fixture.app, http.MethodGet, "/notify/argo/bees-running", "")
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "workflow_not_ready", body["type"])
	})

	t.Run("workflow not found", func(t *testing.T) {
		fixture := setupTestApp(t, &stubEngine{}, &stubRepository{})

		resp, body := doRequest(t, fixture.app, http.MethodGet, "/notify/argo/unknown", "")
		assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "workflow_not_found", body["type"])
	})
}

func TestGetWorkflows(t *testing.T) {
	engine := &stubEngine{summaries: []argo.WorkflowSummary{
		{Name: "bees-abc12", Namespace: "argo", Phase: "Succeeded"},
		{Name: "bees-def34", Namespace: "argo", Phase: "Running"},
	}}

	fixture := setupTestApp(t, engine, &stubRepository{})

	resp, body := doRequest(t, fixture.app, http.MethodGet, "/workflows?limit=1", "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "argo", body["namespace"])

	workflows, ok := body["workflows"].([]any)
	require.True(t, ok)
	assert.Len(t, workflows, 1)

	resp, body = doRequest(t, fixture.app, http.MethodGet, "/workflows?limit=bogus", "")
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "validation_error", body["type"])
}

func TestSubmitWorkflow(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		fixture := setupTestApp(t, &stubEngine{}, &stubRepository{})

		resp, body := doRequest(t, fixture.app, http.MethodPost, "/workflows",
			`{"namespace":"argo","kind":"Workflow","spec":{"entrypoint":"main"}}`)
		assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

		metadata, ok := body["metadata"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "bees-xyz99", metadata["name"])
	})

	t.Run("rejects wrong kind", func(t *testing.T) {
		fixture := setupTestApp(t, &stubEngine{}, &stubRepository{})

		resp, body := doRequest(t, fixture.app, http.MethodPost, "/workflows",
			`{"namespace":"argo","kind":"CronWorkflow","spec":{}}`)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "validation_error", body["type"])
	})

	t.Run("rejects missing spec", func(t *testing.T) {
		fixture := setupTestApp(t, &stubEngine{}, &stubRepository{})

		resp, _ := doRequest(t, fixture.app, http.MethodPost, "/workflows",
			`{"namespace":"argo","kind":"Workflow"}`)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})
}

func TestLintWorkflow(t *testing.T) {
	fixture := setupTestApp(t, &stubEngine{}, &stubRepository{})

	resp, _ := doRequest(t, fixture.app, http.MethodPost, "/workflows/lint",
		`{"namespace":"argo","kind":"Workflow","metadata":{"name":"bees"},"spec":{"entrypoint":"main"}}`)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestGetRuns(t *testing.T) {
	fixture := setupTestApp(t, &stubEngine{}, &stubRepository{})
	ctx := context.Background()

	require.NoError(t, fixture.runs.Save(ctx, &models.IngestionRun{
		ID:           "run-1",
		Namespace:    "argo",
		WorkflowName: "bees-abc12",
		Status:       models.RunStatusSucceeded,
	}))

	resp, body := doRequest(t, fixture.app, http.MethodGet, "/runs?workflow=bees-abc12", "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	runs, ok := body["runs"].([]any)
	require.True(t, ok)
	assert.Len(t, runs, 1)

	resp, _ = doRequest(t, fixture.app, http.MethodGet, "/runs?workflow=other", "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestGetRun(t *testing.T) {
	fixture := setupTestApp(t, &stubEngine{}, &stubRepository{})
	ctx := context.Background()

	require.NoError(t, fixture.runs.Save(ctx, &models.IngestionRun{
		ID:           "run-1",
		Namespace:    "argo",
		WorkflowName: "bees-abc12",
		Status:       models.RunStatusFailed,
		Error:        "repository rejected Dataset",
	}))

	resp, body := doRequest(t, fixture.app, http.MethodGet, "/runs/run-1", "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "failed", body["status"])
	assert.Equal(t, "repository rejected Dataset", body["error"])

	resp, body = doRequest(t, fixture.app, http.MethodGet, "/runs/missing", "")
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", body["type"])
}

func TestHealthCheck(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		fixture := setupTestApp(t, &stubEngine{}, &stubRepository{})

		resp, body := doRequest(t, fixture.app, http.MethodGet, "/health", "")
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Equal(t, "healthy", body["status"])
	})

	t.Run("unhealthy repository", func(t *testing.T) {
		fixture := setupTestApp(t, &stubEngine{}, &stubRepository{healthErr: errors.New("no schemas")})

		resp, body := doRequest(t, fixture.app, http.MethodGet, "/health", "")
		assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
		assert.Equal(t, "unhealthy", body["status"])

		checks, ok := body["checks"].(map[string]any)
		require.True(t, ok)

		cordraCheck, ok := checks["cordra"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, false, cordraCheck["healthy"])
	})
}
