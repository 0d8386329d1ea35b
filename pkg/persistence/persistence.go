// Package persistence defines the ingestion run store and its adapters.
package persistence

import (
	"context"

	"github.com/biodt/argo-connector/pkg/models"
)

// RunFilter narrows a run listing. Zero values mean "no filter".
type RunFilter struct {
	Namespace    string
	WorkflowName string
	Status       models.RunStatus
	Limit        int
}

// RunRepository stores ingestion run records.
type RunRepository interface {
	Save(ctx context.Context, run *models.IngestionRun) error
	GetByID(ctx context.Context, id string) (*models.IngestionRun, error)
	List(ctx context.Context, filter RunFilter) ([]*models.IngestionRun, error)
}

// Persistence is one run-store backend.
type Persistence interface {
	RunRepository() RunRepository
	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
