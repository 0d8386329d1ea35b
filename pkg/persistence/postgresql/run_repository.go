package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/biodt/argo-connector/pkg/models"
	"github.com/biodt/argo-connector/pkg/persistence"
)

// RunRepository handles ingestion-run database operations.
type RunRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewRunRepository creates a new run repository.
func NewRunRepository(db *sql.DB, logger *slog.Logger) *RunRepository {
	return &RunRepository{db: db, logger: logger}
}

const runColumns = `
	id
  , namespace
  , workflow_name
  , status
  , dataset_id
  , error
  , artifact_count
  , started_at
  , finished_at
  , created_at
  , updated_at
`

// Save upserts a run record.
func (r *RunRepository) Save(ctx context.Context, run *models.IngestionRun) error {
	now := time.Now().UTC()

	if run.CreatedAt.IsZero() {
		run.CreatedAt = now
	}

	run.UpdatedAt = now

	query := `
		INSERT INTO ingestion_runs (` + runColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status
		  , dataset_id = EXCLUDED.dataset_id
		  , error = EXCLUDED.error
		  , artifact_count = EXCLUDED.artifact_count
		  , started_at = EXCLUDED.started_at
		  , finished_at = EXCLUDED.finished_at
		  , updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		run.ID,
		run.Namespace,
		run.WorkflowName,
		string(run.Status),
		nullString(run.DatasetID),
		nullString(run.Error),
		run.ArtifactCount,
		run.StartedAt,
		run.FinishedAt,
		run.CreatedAt,
		run.UpdatedAt,
	)
	if err != nil {
		return persistence.NewRunError("Save", run.ID, fmt.Errorf("failed to save run: %w", err))
	}

	return nil
}

func (r *RunRepository) GetByID(ctx context.Context, id string) (*models.IngestionRun, error) {
	query := `SELECT ` + runColumns + ` FROM ingestion_runs WHERE id = $1`

	run, err := scanRun(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewRunError("GetByID", id, persistence.ErrRunNotFound)
		}

		return nil, persistence.NewRunError("GetByID", id, fmt.Errorf("failed to scan run: %w", err))
	}

	return run, nil
}

// List returns runs matching the filter, newest first.
func (r *RunRepository) List(ctx context.Context, filter persistence.RunFilter) ([]*models.IngestionRun, error) {
	query := `SELECT ` + runColumns + ` FROM ingestion_runs WHERE 1=1`
	args := make([]any, 0, 4)

	if filter.Namespace != "" {
		args = append(args, filter.Namespace)
		query += fmt.Sprintf(" AND namespace = $%d", len(args))
	}

	if filter.WorkflowName != "" {
		args = append(args, filter.WorkflowName)
		query += fmt.Sprintf(" AND workflow_name = $%d", len(args))
	}

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}

	query += " ORDER BY created_at DESC"

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, persistence.NewRunError("List", "", fmt.Errorf("failed to query runs: %w", err))
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", closeErr)
		}
	}()

	runs := make([]*models.IngestionRun, 0)

	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, persistence.NewRunError("List", "", fmt.Errorf("failed to scan run: %w", err))
		}

		runs = append(runs, run)
	}

	err = rows.Err()
	if err != nil {
		return nil, persistence.NewRunError("List", "", fmt.Errorf("error iterating runs: %w", err))
	}

	return runs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*models.IngestionRun, error) {
	var (
		run       models.IngestionRun
		status    string
		datasetID sql.NullString
		runError  sql.NullString
	)

	err := row.Scan(
		&run.ID,
		&run.Namespace,
		&run.WorkflowName,
		&status,
		&datasetID,
		&runError,
		&run.ArtifactCount,
		&run.StartedAt,
		&run.FinishedAt,
		&run.CreatedAt,
		&run.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	run.Status = models.RunStatus(status)
	run.DatasetID = datasetID.String
	run.Error = runError.String

	return &run, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
