package file_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biodt/argo-connector/pkg/models"
	"github.com/biodt/argo-connector/pkg/persistence"
	"github.com/biodt/argo-connector/pkg/persistence/file"
)

func seedRun(t *testing.T, repo persistence.RunRepository, id, workflow string, status models.RunStatus) {
	t.Helper()

	err := repo.Save(context.Background(), &models.IngestionRun{
		ID:           id,
		Namespace:    "argo",
		WorkflowName: workflow,
		Status:       status,
	})
	require.NoError(t, err)

	// Creation timestamps order the listing; keep them distinct.
	time.Sleep(2 * time.Millisecond)
}

func TestRunRepository_SaveAndGet(t *testing.T) {
	t.Parallel()

	store := file.NewPersistence(t.TempDir())
	repo := store.RunRepository()
	ctx := context.Background()

	run := &models.IngestionRun{
		ID:           "run-1",
		Namespace:    "argo",
		WorkflowName: "bees-abc12",
		Status:       models.RunStatusPending,
	}

	require.NoError(t, repo.Save(ctx, run))
	assert.False(t, run.CreatedAt.IsZero())

	loaded, err := repo.GetByID(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "bees-abc12", loaded.WorkflowName)
	assert.Equal(t, models.RunStatusPending, loaded.Status)

	// Saving again updates in place.
	run.Status = models.RunStatusSucceeded
	run.DatasetID = "test/d1"
	require.NoError(t, repo.Save(ctx, run))

	loaded, err = repo.GetByID(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusSucceeded, loaded.Status)
	assert.Equal(t, "test/d1", loaded.DatasetID)
}

func TestRunRepository_GetMissing(t *testing.T) {
	t.Parallel()

	store := file.NewPersistence(t.TempDir())

	_, err := store.RunRepository().GetByID(context.Background(), "nope")
	assert.True(t, persistence.IsRunNotFound(err))
}

func TestRunRepository_List(t *testing.T) {
	t.Parallel()

	store := file.NewPersistence(t.TempDir())
	repo := store.RunRepository()
	ctx := context.Background()

	seedRun(t, repo, "run-1", "bees-abc12", models.RunStatusSucceeded)
	seedRun(t, repo, "run-2", "bees-abc12", models.RunStatusFailed)
	seedRun(t, repo, "run-3", "moths-xyz", models.RunStatusSucceeded)

	t.Run("newest first", func(t *testing.T) {
		runs, err := repo.List(ctx, persistence.RunFilter{})
		require.NoError(t, err)
		require.Len(t, runs, 3)
		assert.Equal(t, "run-3", runs[0].ID)
		assert.Equal(t, "run-1", runs[2].ID)
	})

	t.Run("by workflow", func(t *testing.T) {
		runs, err := repo.List(ctx, persistence.RunFilter{WorkflowName: "bees-abc12"})
		require.NoError(t, err)
		assert.Len(t, runs, 2)
	})

	t.Run("by status", func(t *testing.T) {
		runs, err := repo.List(ctx, persistence.RunFilter{Status: models.RunStatusFailed})
		require.NoError(t, err)
		require.Len(t, runs, 1)
		assert.Equal(t, "run-2", runs[0].ID)
	})

	t.Run("with limit", func(t *testing.T) {
		runs, err := repo.List(ctx, persistence.RunFilter{Limit: 1})
		require.NoError(t, err)
		require.Len(t, runs, 1)
		assert.Equal(t, "run-3", runs[0].ID)
	})

	t.Run("empty store", func(t *testing.T) {
		empty := file.NewPersistence(t.TempDir())

		runs, err := empty.RunRepository().List(ctx, persistence.RunFilter{})
		require.NoError(t, err)
		assert.Empty(t, runs)
	})
}

func TestPersistence_HealthCheck(t *testing.T) {
	t.Parallel()

	store := file.NewPersistence(t.TempDir())
	assert.NoError(t, store.HealthCheck(context.Background()))

	missing := file.NewPersistence("/nonexistent/path/for/runs")
	assert.Error(t, missing.HealthCheck(context.Background()))
}
