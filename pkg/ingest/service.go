package ingest

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/biodt/argo-connector/pkg/argo"
	"github.com/biodt/argo-connector/pkg/eventbus"
	"github.com/biodt/argo-connector/pkg/events"
	"github.com/biodt/argo-connector/pkg/models"
	"github.com/biodt/argo-connector/pkg/otelhelper"
	"github.com/biodt/argo-connector/pkg/persistence"
)

// ErrNoArtifacts indicates a finished workflow produced nothing durable to
// ingest.
var ErrNoArtifacts = errors.New("no artifacts found")

// Engine is the subset of workflow-engine operations an ingestion run needs.
type Engine interface {
	GetWorkflow(ctx context.Context, namespace, name string) (*argo.Workflow, error)
	StreamArtifacts(namespace, workflowName string, refs []argo.ArtifactRef) *argo.ArtifactStream
}

// Service coordinates ingestion runs: validation, background execution, run
// bookkeeping, and lifecycle events.
type Service struct {
	engine    Engine
	assembler *Assembler
	runs      persistence.RunRepository
	eventBus  eventbus.EventBus
	tracer    trace.Tracer
	logger    *slog.Logger
}

func NewService(
	engine Engine,
	assembler *Assembler,
	runs persistence.RunRepository,
	eventBus eventbus.EventBus,
	tracer trace.Tracer,
	logger *slog.Logger,
) *Service {
	return &Service{
		engine:    engine,
		assembler: assembler,
		runs:      runs,
		eventBus:  eventBus,
		tracer:    tracer,
		logger:    logger,
	}
}

// StartIngestion validates that a workflow is ready for ingestion, records
// a pending run, and executes it in the background. Runs are independent of
// each other and of the caller's request lifetime.
func (s *Service) StartIngestion(ctx context.Context, namespace, name string) (*models.IngestionRun, *argo.Workflow, []argo.ArtifactRef, error) {
	wf, refs, err := s.validate(ctx, namespace, name)
	if err != nil {
		return nil, nil, nil, err
	}

	runID, err := uuid.NewV7()
	if err != nil {
		return nil, nil, nil, err
	}

	run := &models.IngestionRun{
		ID:            runID.String(),
		Namespace:     namespace,
		WorkflowName:  wf.Metadata.Name,
		Status:        models.RunStatusPending,
		ArtifactCount: len(refs),
	}

	err = s.runs.Save(ctx, run)
	if err != nil {
		return nil, nil, nil, err
	}

	go s.Execute(context.WithoutCancel(ctx), run)

	return run, wf, refs, nil
}

// validate checks the workflow exists, finished successfully, and produced
// artifacts.
func (s *Service) validate(ctx context.Context, namespace, name string) (*argo.Workflow, []argo.ArtifactRef, error) {
	wf, err := s.engine.GetWorkflow(ctx, namespace, name)
	if err != nil {
		return nil, nil, err
	}

	if !wf.Succeeded() {
		return nil, nil, &argo.NotReadyError{
			Workflow:    name,
			Phase:       wf.Status.Phase,
			FailedNodes: wf.FailedNodes(),
		}
	}

	refs := argo.ListArtifacts(wf)
	if len(refs) == 0 {
		return nil, nil, ErrNoArtifacts
	}

	return wf, refs, nil
}

// Execute performs one ingestion run to completion, updating the run record
// and publishing lifecycle events along the way. Errors terminate the run;
// by the time one surfaces here the assembler has already rolled back.
func (s *Service) Execute(ctx context.Context, run *models.IngestionRun) {
	ctx, span := otelhelper.StartSpan(ctx, s.tracer, "ingest.run",
		attribute.String(otelhelper.RunIDKey, run.ID),
		attribute.String(otelhelper.NamespaceKey, run.Namespace),
		attribute.String(otelhelper.WorkflowNameKey, run.WorkflowName),
	)
	defer span.End()

	logger := s.logger.With("run_id", run.ID, "namespace", run.Namespace, "workflow", run.WorkflowName)
	logger.InfoContext(ctx, "starting ingestion run")

	startedAt := time.Now().UTC()
	run.Status = models.RunStatusRunning
	run.StartedAt = &startedAt
	s.saveRun(ctx, run)

	s.publish(ctx, run, func(base events.BaseEvent) eventbus.Event {
		base.Type = events.IngestionStartedEvent

		return events.IngestionStarted{BaseEvent: base, ArtifactCount: run.ArtifactCount}
	})

	datasetID, err := s.ingest(ctx, run)

	finishedAt := time.Now().UTC()
	run.FinishedAt = &finishedAt

	if err != nil {
		logger.ErrorContext(ctx, "ingestion run failed", "error", err)
		otelhelper.SetError(span, err)

		run.Status = models.RunStatusFailed
		run.Error = err.Error()
		s.saveRun(ctx, run)

		s.publish(ctx, run, func(base events.BaseEvent) eventbus.Event {
			base.Type = events.IngestionFailedEvent

			return events.IngestionFailed{
				BaseEvent: base,
				Error:     err.Error(),
				Duration:  finishedAt.Sub(startedAt),
			}
		})

		return
	}

	span.SetAttributes(attribute.String(otelhelper.DatasetIDKey, datasetID))
	logger.InfoContext(ctx, "ingestion run succeeded", "dataset_id", datasetID)

	run.Status = models.RunStatusSucceeded
	run.DatasetID = datasetID
	s.saveRun(ctx, run)

	s.publish(ctx, run, func(base events.BaseEvent) eventbus.Event {
		base.Type = events.IngestionCompletedEvent

		return events.IngestionCompleted{
			BaseEvent: base,
			DatasetID: datasetID,
			Duration:  finishedAt.Sub(startedAt),
		}
	})
}

// ingest runs the pipeline: status fetch, artifact discovery, document
// reconstruction and validation, streaming, graph assembly.
func (s *Service) ingest(ctx context.Context, run *models.IngestionRun) (string, error) {
	wf, refs, err := s.validate(ctx, run.Namespace, run.WorkflowName)
	if err != nil {
		return "", err
	}

	run.ArtifactCount = len(refs)

	doc, err := argo.Reconstruct(wf)
	if err != nil {
		return "", err
	}

	err = argo.ValidateDocument(doc)
	if err != nil {
		return "", err
	}

	stream := s.engine.StreamArtifacts(run.Namespace, wf.Metadata.Name, refs)

	return s.assembler.Assemble(ctx, wf, stream, doc)
}

func (s *Service) saveRun(ctx context.Context, run *models.IngestionRun) {
	err := s.runs.Save(ctx, run)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to save run record", "run_id", run.ID, "error", err)
	}
}

func (s *Service) publish(ctx context.Context, run *models.IngestionRun, build func(events.BaseEvent) eventbus.Event) {
	if s.eventBus == nil {
		return
	}

	event := build(events.BaseEvent{
		ID:           s.eventBus.GenerateID(),
		Timestamp:    time.Now().UTC(),
		RunID:        run.ID,
		Namespace:    run.Namespace,
		WorkflowName: run.WorkflowName,
	})

	err := s.eventBus.Publish(ctx, run.Namespace+"/"+run.WorkflowName, event)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to publish lifecycle event",
			"run_id", run.ID, "event_type", event.GetType(), "error", err)
	}
}
