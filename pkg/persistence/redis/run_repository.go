package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/biodt/argo-connector/pkg/models"
	"github.com/biodt/argo-connector/pkg/persistence"
)

const (
	runKeyPrefix = "argo-connector:runs:"
	runIndexKey  = "argo-connector:runs-by-created-at"
)

// RunRepository stores run records as JSON values keyed by run ID, indexed
// by creation time in a sorted set.
type RunRepository struct {
	client *redis.Client
}

func NewRunRepository(client *redis.Client) *RunRepository {
	return &RunRepository{client: client}
}

func runKey(id string) string {
	return runKeyPrefix + id
}

// Save writes a run record and refreshes its index entry.
func (r *RunRepository) Save(ctx context.Context, run *models.IngestionRun) error {
	run.UpdatedAt = time.Now().UTC()
	if run.CreatedAt.IsZero() {
		run.CreatedAt = run.UpdatedAt
	}

	data, err := json.Marshal(run)
	if err != nil {
		return persistence.NewRunError("Save", run.ID, fmt.Errorf("failed to encode run: %w", err))
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, runKey(run.ID), data, 0)
	pipe.ZAdd(ctx, runIndexKey, redis.Z{
		Score:  float64(run.CreatedAt.UnixNano()),
		Member: run.ID,
	})

	_, err = pipe.Exec(ctx)
	if err != nil {
		return persistence.NewRunError("Save", run.ID, fmt.Errorf("failed to save run: %w", err))
	}

	return nil
}

func (r *RunRepository) GetByID(ctx context.Context, id string) (*models.IngestionRun, error) {
	data, err := r.client.Get(ctx, runKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
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
	ids, err := r.client.ZRevRange(ctx, runIndexKey, 0, -1).Result()
	if err != nil {
		return nil, persistence.NewRunError("List", "", fmt.Errorf("failed to read run index: %w", err))
	}

	runs := make([]*models.IngestionRun, 0, len(ids))

	for _, id := range ids {
		run, err := r.GetByID(ctx, id)
		if err != nil {
			// Index entries may briefly outlive their records.
			if persistence.IsRunNotFound(err) {
				continue
			}

			return nil, persistence.NewRunError("List", "", err)
		}

		if !matches(run, filter) {
			continue
		}

		runs = append(runs, run)

		if filter.Limit > 0 && len(runs) == filter.Limit {
			break
		}
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
