package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"inpatient-hub/backend/internal/access"
	"inpatient-hub/backend/internal/logging"
	"inpatient-hub/backend/internal/repository"
	"inpatient-hub/backend/internal/telemetry"
	"inpatient-hub/backend/pkg/models"
)

// TaskService manages the ward task diary.
type TaskService struct {
	store   repository.TaskStore
	logger  Logger
	metrics *telemetry.Metrics
}

// NewTaskService creates a new TaskService.
func NewTaskService(store repository.TaskStore, logger Logger, metrics *telemetry.Metrics) *TaskService {
	return &TaskService{
		store:   store,
		logger:  logger,
		metrics: metrics,
	}
}

// List returns a ward's diary. An empty ward means the caller's own ward.
func (s *TaskService) List(ctx context.Context, ac access.Context, ward string) ([]*models.WardTask, error) {
	if err := s.check(ctx, ac); err != nil {
		return nil, err
	}
	if ward == "" {
		ward = ac.User.Ward
	}

	tasks, err := s.store.ListTasks(ctx, ward)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, nil
}

// Create adds a task to the diary.
func (s *TaskService) Create(
	ctx context.Context, ac access.Context, task *models.WardTask,
) (*models.WardTask, error) {
	if err := s.check(ctx, ac); err != nil {
		return nil, err
	}

	task.Title = strings.TrimSpace(task.Title)
	if task.Title == "" {
		return nil, fmt.Errorf("%w: task title is required", ErrInvalidInput)
	}
	if task.Ward == "" {
		task.Ward = ac.User.Ward
	}
	if task.Ward == "" {
		return nil, fmt.Errorf("%w: task ward is required", ErrInvalidInput)
	}

	task.ID = uuid.New().String()
	task.Done = false
	task.CompletedBy = ""
	task.CreatedBy = ac.User.ID

	if err := s.store.SaveTask(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to save task: %w", err)
	}

	s.logger.Info("task created", logging.TaskID(task.ID), logging.UserID(ac.User.ID))
	return task, nil
}

// Complete marks a task done. Completing a done task is a no-op.
func (s *TaskService) Complete(
	ctx context.Context, ac access.Context, id string,
) (*models.WardTask, error) {
	if err := s.check(ctx, ac); err != nil {
		return nil, err
	}

	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return nil, storeError(err, "task", id)
	}
	if task.Done {
		return task, nil
	}

	task.Done = true
	task.CompletedBy = ac.User.ID
	if err := s.store.SaveTask(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to complete task: %w", err)
	}

	s.logger.Info("task completed", logging.TaskID(task.ID), logging.UserID(ac.User.ID))
	return task, nil
}

// Delete removes a task. Only its creator or a role allowed to delete may
// remove it.
func (s *TaskService) Delete(ctx context.Context, ac access.Context, id string) error {
	if err := s.check(ctx, ac); err != nil {
		return err
	}

	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return storeError(err, "task", id)
	}
	if task.CreatedBy != ac.User.ID && !ac.CanDelete() {
		s.metrics.Denial(ctx, "delete")
		return fmt.Errorf("%w: only the creator may delete this task", ErrForbidden)
	}

	if err := s.store.DeleteTask(ctx, id); err != nil {
		return storeError(err, "task", id)
	}

	s.logger.Info("task deleted", logging.TaskID(id), logging.UserID(ac.User.ID))
	return nil
}

func (s *TaskService) check(ctx context.Context, ac access.Context) error {
	if err := requireFeature(ctx, s.metrics, ac, models.FeatureWardTasks); err != nil {
		return err
	}
	if ac.User == nil {
		return fmt.Errorf("%w: sign in to use the task diary", ErrForbidden)
	}
	return nil
}
