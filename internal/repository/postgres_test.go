package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"inpatient-hub/backend/pkg/models"
)

func TestPostgresStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test-db"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2)),
	)
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Fatalf("failed to terminate container: %s", err)
		}
	}()

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatal(err)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		t.Fatal(err)
	}
	defer pool.Close()

	store := NewPostgresStore(pool)
	require.NoError(t, store.Migrate(ctx))
	require.NoError(t, store.Migrate(ctx), "migrate is idempotent")
	require.NoError(t, store.Ping(ctx))

	t.Run("Users", func(t *testing.T) {
		user := &models.User{
			ID:    uuid.New().String(),
			Name:  "Priya Shah",
			Email: "Priya.Shah@nhs.net",
			Role:  models.RoleWardAdmin,
			Ward:  "Ward 7",
		}
		require.NoError(t, store.UpsertUser(ctx, user))

		got, err := store.GetUserByEmail(ctx, "priya.shah@nhs.net")
		require.NoError(t, err)
		assert.Equal(t, user, got)

		user.Role = models.RoleSeniorAdmin
		require.NoError(t, store.UpsertUser(ctx, user))
		got, err = store.GetUser(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, models.RoleSeniorAdmin, got.Role)

		_, err = store.GetUser(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)

		users, err := store.ListUsers(ctx)
		require.NoError(t, err)
		assert.Len(t, users, 1)
	})

	t.Run("Workflows", func(t *testing.T) {
		wf := &models.Workflow{
			ID:     uuid.New().String(),
			Title:  "Physio referral",
			Ward:   "Ward 7",
			Status: models.WorkflowStatusPending,
			Steps: []models.Step{
				{ID: "s1", Type: models.StepCriteria, Title: "Criteria"},
				{
					ID: "s2", Type: models.StepDecisionYesNo, Title: "Eligible?",
					Branches: []models.Branch{
						{Label: "Yes", Steps: []models.Step{{ID: "s3", Type: models.StepEndpoint, Title: "Refer"}}},
						{Label: "No", Steps: []models.Step{{ID: "s4", Type: models.StepCasenote, Title: "Document"}}},
					},
				},
			},
			Version:   1,
			CreatedBy: "u-1",
		}
		require.NoError(t, store.SaveWorkflow(ctx, wf))
		assert.False(t, wf.CreatedAt.IsZero())

		got, err := store.GetWorkflow(ctx, wf.ID)
		require.NoError(t, err)
		assert.Equal(t, wf.Title, got.Title)
		assert.Equal(t, wf.Steps, got.Steps)
		assert.Equal(t, models.WorkflowStatusPending, got.Status)

		wf.Status = models.WorkflowStatusApproved
		wf.ApprovedBy = "u-2"
		wf.Version = 2
		require.NoError(t, store.SaveWorkflow(ctx, wf))

		list, err := store.ListWorkflows(ctx)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, models.WorkflowStatusApproved, list[0].Status)
		assert.Equal(t, 2, list[0].Version)

		require.NoError(t, store.DeleteWorkflow(ctx, wf.ID))
		assert.ErrorIs(t, store.DeleteWorkflow(ctx, wf.ID), ErrNotFound)
		_, err = store.GetWorkflow(ctx, wf.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Tasks", func(t *testing.T) {
		due := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
		open := &models.WardTask{ID: uuid.New().String(), Ward: "Ward 7", Title: "Bloods", Due: &due}
		done := &models.WardTask{ID: uuid.New().String(), Ward: "Ward 7", Title: "Obs", Done: true}
		other := &models.WardTask{ID: uuid.New().String(), Ward: "Ward 9", Title: "TTO"}
		for _, task := range []*models.WardTask{done, open, other} {
			require.NoError(t, store.SaveTask(ctx, task))
		}

		tasks, err := store.ListTasks(ctx, "Ward 7")
		require.NoError(t, err)
		require.Len(t, tasks, 2)
		assert.Equal(t, open.ID, tasks[0].ID)
		assert.True(t, tasks[0].Due.Equal(due))
		assert.Equal(t, done.ID, tasks[1].ID)

		all, err := store.ListTasks(ctx, "")
		require.NoError(t, err)
		assert.Len(t, all, 3)

		require.NoError(t, store.DeleteTask(ctx, other.ID))
		_, err = store.GetTask(ctx, other.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
