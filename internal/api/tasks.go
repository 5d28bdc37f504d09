package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"inpatient-hub/backend/internal/auth"
	"inpatient-hub/backend/pkg/models"
)

// ListTasks returns a ward's task diary
// (GET /api/v1/tasks)
func (s *Server) ListTasks(c echo.Context, params ListTasksParams) error {
	ctx := c.Request().Context()

	var ward string
	if params.Ward != nil {
		ward = *params.Ward
	}
	tasks, err := s.Tasks.List(ctx, auth.AccessFromContext(ctx), ward)
	if err != nil {
		return s.fail(c, err)
	}
	if tasks == nil {
		tasks = []*models.WardTask{}
	}
	return c.JSON(http.StatusOK, tasks)
}

// CreateTask adds a task to the diary
// (POST /api/v1/tasks)
func (s *Server) CreateTask(c echo.Context) error {
	ctx := c.Request().Context()

	var task models.WardTask
	if err := c.Bind(&task); err != nil {
		return writeError(c, http.StatusBadRequest, "Invalid request body", err.Error())
	}
	created, err := s.Tasks.Create(ctx, auth.AccessFromContext(ctx), &task)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusCreated, created)
}

// CompleteTask marks a task done
// (POST /api/v1/tasks/{id}/complete)
func (s *Server) CompleteTask(c echo.Context, id string) error {
	ctx := c.Request().Context()

	task, err := s.Tasks.Complete(ctx, auth.AccessFromContext(ctx), id)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, task)
}

// DeleteTask removes a task
// (DELETE /api/v1/tasks/{id})
func (s *Server) DeleteTask(c echo.Context, id string) error {
	ctx := c.Request().Context()

	if err := s.Tasks.Delete(ctx, auth.AccessFromContext(ctx), id); err != nil {
		return s.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
