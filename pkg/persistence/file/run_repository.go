package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/biodt/argo-connector/pkg/models"
	"github.com/biodt/argo-connector/pkg/persistence"
)

const runFileMode = 0o600

// RunRepository stores one JSON file per ingestion run under <root>/runs.
type RunRepository struct {
	root string
}

func NewRunRepository(root string) *RunRepository {
	return &RunRepository{root: root}
}

func (r *RunRepository) runsDir() string {
	return filepath.Join(r.root, "runs")
}

func (r *RunRepository) runPath(id string) string {
	return filepath.Join(r.runsDir(), id+".json")
}

// Save writes a run record, creating the runs directory on first use.
func (r *RunRepository) Save(ctx context.Context, run *models.IngestionRun) error {
	err := os.MkdirAll(r.runsDir(), 0o750)
	if err != nil {
		return persistence.NewRunError("Save", run.ID, fmt.Errorf("failed to create runs directory: %w", err))
	}

	run.UpdatedAt = time.Now().UTC()
	if run.CreatedAt.IsZero() {
		run.CreatedAt = run.UpdatedAt
	}

	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return persistence.NewRunError("Save", run.ID, fmt.Errorf("failed to encode run: %w", err))
	}

	err = os.WriteFile(r.runPath(run.ID), data, runFileMode)
	if err != nil {
		return persistence.NewRunError("Save", run.ID, fmt.Errorf("failed to write run file: %w", err))
	}

	return nil
}

func (r *RunRepository) GetByID(ctx context.Context, id string) (*models.IngestionRun, error) {
	data, err := os.ReadFile(r.runPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewRunError("GetByID", id, persistence.ErrRunNotFound)
		}

		return nil, persistence.NewRunError("GetByID", id, err)
	}

	var run models.IngestionRun

	err = json.Unmarshal(data, &run)
	if err != nil {
		return nil, persistence.NewRunError("GetByID", id, fmt.Errorf("failed to decode run: %w", err))
	}

	return &run, nil
}

// List returns runs matching the filter, newest first.
func (r *RunRepository) List(ctx context.Context, filter persistence.RunFilter) ([]*models.IngestionRun, error) {
	entries, err := os.ReadDir(r.runsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return []*models.IngestionRun{}, nil
		}

		return nil, persistence.NewRunError("List", "", err)
	}

	runs := make([]*models.IngestionRun, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		run, err := r.GetByID(ctx, strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			return nil, persistence.NewRunError("List", "", err)
		}

		if !matches(run, filter) {
			continue
		}

		runs = append(runs, run)
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})

	if filter.Limit > 0 && len(runs) > filter.Limit {
		runs = runs[:filter.Limit]
	}

	return runs, nil
}

func matches(run *models.IngestionRun, filter persistence.RunFilter) bool {
	if filter.Namespace != "" && run.Namespace != filter.Namespace {
		return false
	}

	if filter.WorkflowName != "" && run.WorkflowName != filter.WorkflowName {
		return false
	}

	if filter.Status != "" && run.Status != filter.Status {
		return false
	}

	return true
}
