package repository

import (
	"context"
	"errors"

	"inpatient-hub/backend/pkg/models"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// UserStore holds the staff roster.
type UserStore interface {
	// GetUser retrieves a user by ID.
	GetUser(ctx context.Context, id string) (*models.User, error)
	// GetUserByEmail retrieves a user by email, case-insensitively.
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	// ListUsers returns the roster ordered by name.
	ListUsers(ctx context.Context) ([]*models.User, error)
	// UpsertUser creates or replaces a user.
	UpsertUser(ctx context.Context, user *models.User) error
}

// WorkflowStore holds referral workflows.
type WorkflowStore interface {
	// SaveWorkflow creates or replaces a workflow.
	SaveWorkflow(ctx context.Context, workflow *models.Workflow) error
	// GetWorkflow retrieves a workflow by ID.
	GetWorkflow(ctx context.Context, id string) (*models.Workflow, error)
	// ListWorkflows returns all workflows ordered by title.
	ListWorkflows(ctx context.Context) ([]*models.Workflow, error)
	// DeleteWorkflow removes a workflow.
	DeleteWorkflow(ctx context.Context, id string) error
}

// TaskStore holds ward task diary entries.
type TaskStore interface {
	SaveTask(ctx context.Context, task *models.WardTask) error
	GetTask(ctx context.Context, id string) (*models.WardTask, error)
	// ListTasks returns a ward's tasks, open tasks first then by due date.
	// An empty ward lists every ward.
	ListTasks(ctx context.Context, ward string) ([]*models.WardTask, error)
	DeleteTask(ctx context.Context, id string) error
}

// Repository is the full storage surface used by the service.
type Repository interface {
	UserStore
	WorkflowStore
	TaskStore
	Ping(ctx context.Context) error
}
