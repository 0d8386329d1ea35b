// Package sweeper periodically reconciles finished workflows against the
// ingestion run log, picking up completions whose notification never arrived.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/biodt/argo-connector/pkg/argo"
	"github.com/biodt/argo-connector/pkg/ingest"
	"github.com/biodt/argo-connector/pkg/models"
	"github.com/biodt/argo-connector/pkg/persistence"
)

// Lister enumerates workflows in a namespace.
type Lister interface {
	ListWorkflows(ctx context.Context, namespace string, limit int) ([]argo.WorkflowSummary, error)
}

// Starter queues an ingestion run for a workflow.
type Starter interface {
	StartIngestion(ctx context.Context, namespace, name string) (*models.IngestionRun, *argo.Workflow, []argo.ArtifactRef, error)
}

type Sweeper struct {
	lister    Lister
	starter   Starter
	runs      persistence.RunRepository
	namespace string
	schedule  string
	cron      *cron.Cron
	logger    *slog.Logger
}

func NewSweeper(
	lister Lister,
	starter Starter,
	runs persistence.RunRepository,
	namespace string,
	schedule string,
	logger *slog.Logger,
) (*Sweeper, error) {
	if schedule == "" {
		return nil, errors.New("sweep schedule is required")
	}

	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule: %w", err)
	}

	return &Sweeper{
		lister:    lister,
		starter:   starter,
		runs:      runs,
		namespace: namespace,
		schedule:  schedule,
		logger:    logger.With("module", "sweeper", "namespace", namespace, "schedule", schedule),
	}, nil
}

func (s *Sweeper) Start(ctx context.Context) error {
	s.logger.Info("Starting sweeper")

	s.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	_, err := s.cron.AddFunc(s.schedule, func() {
		if err := s.Sweep(context.Background()); err != nil {
			s.logger.Error("Sweep failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule sweep: %w", err)
	}

	s.cron.Start()

	return nil
}

func (s *Sweeper) Stop(ctx context.Context) error {
	s.logger.Info("Stopping sweeper")

	if s.cron != nil {
		s.cron.Stop()
	}

	return nil
}

// Sweep lists finished workflows and queues ingestion for every succeeded
// workflow without a successful or in-flight run on record.
func (s *Sweeper) Sweep(ctx context.Context) error {
	s.logger.Info("Sweep started")

	workflows, err := s.lister.ListWorkflows(ctx, s.namespace, 0)
	if err != nil {
		return fmt.Errorf("failed to list workflows: %w", err)
	}

	queued := 0

	for _, wf := range workflows {
		if wf.Phase != argo.PhaseSucceeded {
			continue
		}

		pending, err := s.needsIngestion(ctx, wf.Name)
		if err != nil {
			s.logger.Error("Failed to inspect run history", "workflow", wf.Name, "error", err)

			continue
		}

		if !pending {
			continue
		}

		_, _, _, err = s.starter.StartIngestion(ctx, s.namespace, wf.Name)
		if err != nil {
			if errors.Is(err, ingest.ErrNoArtifacts) {
				continue
			}

			s.logger.Error("Failed to queue ingestion", "workflow", wf.Name, "error", err)

			continue
		}

		queued++
	}

	s.logger.Info("Sweep finished", "workflows", len(workflows), "queued", queued)

	return nil
}

func (s *Sweeper) needsIngestion(ctx context.Context, workflowName string) (bool, error) {
	runs, err := s.runs.List(ctx, persistence.RunFilter{
		Namespace:    s.namespace,
		WorkflowName: workflowName,
	})
	if err != nil {
		return false, err
	}

	for _, run := range runs {
		if run.Status != models.RunStatusFailed {
			return false, nil
		}
	}

	return true, nil
}
