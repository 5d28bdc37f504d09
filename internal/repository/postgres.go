package repository

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"inpatient-hub/backend/pkg/models"
)

//go:embed schema.sql
var schema string

// PostgresStore is a PostgreSQL implementation of the Repository interface.
// Workflow step trees are stored as JSONB.
type PostgresStore struct {
	db *pgxpool.Pool
}

var _ Repository = (*PostgresStore)(nil)

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the tables if they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

const userColumns = "id, name, email, role, ward"

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.Ward); err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (s *PostgresStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	return scanUser(s.db.QueryRow(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = $1", id,
	))
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return scanUser(s.db.QueryRow(ctx,
		"SELECT "+userColumns+" FROM users WHERE lower(email) = lower($1)", email,
	))
}

func (s *PostgresStore) ListUsers(ctx context.Context) ([]*models.User, error) {
	rows, err := s.db.Query(ctx, "SELECT "+userColumns+" FROM users ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *PostgresStore) UpsertUser(ctx context.Context, user *models.User) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO users (id, name, email, role, ward) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, email = EXCLUDED.email,
		    role = EXCLUDED.role, ward = EXCLUDED.ward`,
		user.ID, user.Name, user.Email, user.Role, user.Ward,
	)
	return err
}

const workflowColumns = `id, title, description, ward, status, steps, version,
	created_by, approved_by, created_at, updated_at`

func scanWorkflow(row pgx.Row) (*models.Workflow, error) {
	var wf models.Workflow
	var steps []byte
	err := row.Scan(
		&wf.ID, &wf.Title, &wf.Description, &wf.Ward, &wf.Status, &steps,
		&wf.Version, &wf.CreatedBy, &wf.ApprovedBy, &wf.CreatedAt, &wf.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	if err := json.Unmarshal(steps, &wf.Steps); err != nil {
		return nil, fmt.Errorf("failed to decode steps for workflow %s: %w", wf.ID, err)
	}
	return &wf, nil
}

// SaveWorkflow upserts a workflow, filling in its timestamps.
func (s *PostgresStore) SaveWorkflow(ctx context.Context, workflow *models.Workflow) error {
	steps, err := json.Marshal(workflow.Steps)
	if err != nil {
		return fmt.Errorf("failed to encode steps: %w", err)
	}

	return s.db.QueryRow(ctx, `
		INSERT INTO workflows
			(id, title, description, ward, status, steps, version, created_by, approved_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE
		SET title = EXCLUDED.title, description = EXCLUDED.description,
		    ward = EXCLUDED.ward, status = EXCLUDED.status, steps = EXCLUDED.steps,
		    version = EXCLUDED.version, approved_by = EXCLUDED.approved_by,
		    updated_at = now()
		RETURNING created_at, updated_at`,
		workflow.ID, workflow.Title, workflow.Description, workflow.Ward,
		workflow.Status, steps, workflow.Version, workflow.CreatedBy, workflow.ApprovedBy,
	).Scan(&workflow.CreatedAt, &workflow.UpdatedAt)
}

func (s *PostgresStore) GetWorkflow(ctx context.Context, id string) (*models.Workflow, error) {
	return scanWorkflow(s.db.QueryRow(ctx,
		"SELECT "+workflowColumns+" FROM workflows WHERE id = $1", id,
	))
}

func (s *PostgresStore) ListWorkflows(ctx context.Context) ([]*models.Workflow, error) {
	rows, err := s.db.Query(ctx, "SELECT "+workflowColumns+" FROM workflows ORDER BY title")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var workflows []*models.Workflow
	for rows.Next() {
		wf, err := scanWorkflow(rows)
		if err != nil {
			return nil, err
		}
		workflows = append(workflows, wf)
	}
	return workflows, rows.Err()
}

func (s *PostgresStore) DeleteWorkflow(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, "DELETE FROM workflows WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const taskColumns = `id, ward, title, notes, due, done, created_by, completed_by,
	created_at, updated_at`

func scanTask(row pgx.Row) (*models.WardTask, error) {
	var t models.WardTask
	err := row.Scan(
		&t.ID, &t.Ward, &t.Title, &t.Notes, &t.Due, &t.Done,
		&t.CreatedBy, &t.CompletedBy, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

func (s *PostgresStore) SaveTask(ctx context.Context, task *models.WardTask) error {
	return s.db.QueryRow(ctx, `
		INSERT INTO ward_tasks (id, ward, title, notes, due, done, created_by, completed_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE
		SET ward = EXCLUDED.ward, title = EXCLUDED.title, notes = EXCLUDED.notes,
		    due = EXCLUDED.due, done = EXCLUDED.done,
		    completed_by = EXCLUDED.completed_by, updated_at = now()
		RETURNING created_at, updated_at`,
		task.ID, task.Ward, task.Title, task.Notes, task.Due, task.Done,
		task.CreatedBy, task.CompletedBy,
	).Scan(&task.CreatedAt, &task.UpdatedAt)
}

func (s *PostgresStore) GetTask(ctx context.Context, id string) (*models.WardTask, error) {
	return scanTask(s.db.QueryRow(ctx,
		"SELECT "+taskColumns+" FROM ward_tasks WHERE id = $1", id,
	))
}

func (s *PostgresStore) ListTasks(ctx context.Context, ward string) ([]*models.WardTask, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+taskColumns+` FROM ward_tasks
		WHERE $1 = '' OR ward = $1
		ORDER BY done, due NULLS LAST, created_at`, ward,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := []*models.WardTask{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (s *PostgresStore) DeleteTask(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, "DELETE FROM ward_tasks WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
