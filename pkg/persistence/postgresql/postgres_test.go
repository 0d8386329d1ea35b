package postgresql_test

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/biodt/argo-connector/pkg/models"
	"github.com/biodt/argo-connector/pkg/persistence"
	"github.com/biodt/argo-connector/pkg/persistence/postgresql"
)

var postgresContainer *postgres.PostgresContainer

func dropDb(ctx context.Context, t *testing.T, databaseURL string) {
	t.Helper()

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	for _, table := range []string{"ingestion_runs", "schema_migrations"} {
		_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE")
		require.NoError(t, err)
	}

	err = db.Close()
	require.NoError(t, err)
}

func setupTestDB(t *testing.T) (*postgresql.Persistence, context.Context, string) {
	t.Helper()

	if os.Getenv("DOCKER_HOST") == "" {
		if _, err := os.Stat("/var/run/docker.sock"); err != nil {
			t.Skip("docker is not available")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	if postgresContainer == nil || !postgresContainer.IsRunning() {
		var err error

		postgresContainer, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("connector_test"),
			postgres.WithUsername("connector"),
			postgres.WithPassword("connector"),
			postgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
	}

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	dropDb(ctx, t, databaseURL)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	store, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		dropDb(ctx, t, databaseURL)

		err = store.Close(ctx)
		require.NoError(t, err)

		cancel()
	})

	return store, ctx, databaseURL
}

func TestNewPersistence_Migrations(t *testing.T) {
	_, ctx, databaseURL := setupTestDB(t)

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	defer func() {
		err := db.Close()
		require.NoError(t, err)
	}()

	var exists bool

	err = db.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = 'ingestion_runs')",
	).Scan(&exists)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestRunRepository_SaveAndGet(t *testing.T) {
	store, ctx, _ := setupTestDB(t)
	repo := store.RunRepository()

	started := time.Now().UTC().Truncate(time.Millisecond)
	run := &models.IngestionRun{
		ID:            uuid.NewString(),
		Namespace:     "argo",
		WorkflowName:  "bees-abc12",
		Status:        models.RunStatusRunning,
		ArtifactCount: 3,
		StartedAt:     &started,
	}

	require.NoError(t, repo.Save(ctx, run))

	loaded, err := repo.GetByID(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, "bees-abc12", loaded.WorkflowName)
	assert.Equal(t, models.RunStatusRunning, loaded.Status)
	assert.Equal(t, 3, loaded.ArtifactCount)
	require.NotNil(t, loaded.StartedAt)
	assert.True(t, started.Equal(*loaded.StartedAt))
	assert.Empty(t, loaded.DatasetID)

	// Upsert on the same identifier.
	finished := time.Now().UTC().Truncate(time.Millisecond)
	run.Status = models.RunStatusSucceeded
	run.DatasetID = "test/d1"
	run.FinishedAt = &finished

	require.NoError(t, repo.Save(ctx, run))

	loaded, err = repo.GetByID(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusSucceeded, loaded.Status)
	assert.Equal(t, "test/d1", loaded.DatasetID)
	require.NotNil(t, loaded.FinishedAt)
}

func TestRunRepository_GetMissing(t *testing.T) {
	store, ctx, _ := setupTestDB(t)

	_, err := store.RunRepository().GetByID(ctx, uuid.NewString())
	assert.True(t, persistence.IsRunNotFound(err))
}

func TestRunRepository_List(t *testing.T) {
	store, ctx, _ := setupTestDB(t)
	repo := store.RunRepository()

	seed := []struct {
		workflow string
		status   models.RunStatus
	}{
		{"bees-abc12", models.RunStatusSucceeded},
		{"bees-abc12", models.RunStatusFailed},
		{"moths-xyz", models.RunStatusSucceeded},
	}

	ids := make([]string, 0, len(seed))

	for _, s := range seed {
		run := &models.IngestionRun{
			ID:           uuid.NewString(),
			Namespace:    "argo",
			WorkflowName: s.workflow,
			Status:       s.status,
		}
		require.NoError(t, repo.Save(ctx, run))

		ids = append(ids, run.ID)

		time.Sleep(2 * time.Millisecond)
	}

	t.Run("newest first", func(t *testing.T) {
		runs, err := repo.List(ctx, persistence.RunFilter{})
		require.NoError(t, err)
		require.Len(t, runs, 3)
		assert.Equal(t, ids[2], runs[0].ID)
		assert.Equal(t, ids[0], runs[2].ID)
	})

	t.Run("by workflow and status", func(t *testing.T) {
		runs, err := repo.List(ctx, persistence.RunFilter{
			WorkflowName: "bees-abc12",
			Status:       models.RunStatusFailed,
		})
		require.NoError(t, err)
		require.Len(t, runs, 1)
		assert.Equal(t, ids[1], runs[0].ID)
	})

	t.Run("by namespace", func(t *testing.T) {
		runs, err := repo.List(ctx, persistence.RunFilter{Namespace: "other"})
		require.NoError(t, err)
		assert.Empty(t, runs)
	})

	t.Run("with limit", func(t *testing.T) {
		runs, err := repo.List(ctx, persistence.RunFilter{Limit: 2})
		require.NoError(t, err)
		assert.Len(t, runs, 2)
	})
}

func TestPersistence_HealthCheck(t *testing.T) {
	store, ctx, _ := setupTestDB(t)

	assert.NoError(t, store.HealthCheck(ctx))
}
