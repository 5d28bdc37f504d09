// Package api contains the HTTP handlers for the inpatient hub service
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"inpatient-hub/backend/internal/logging"
	"inpatient-hub/backend/internal/services"
	"inpatient-hub/backend/pkg/models"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Logger defines the logging interface compatible with the application logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Server holds the dependencies for the API server.
type Server struct {
	Workflows *services.WorkflowService
	Tasks     *services.TaskService
	Store     Pinger
	Logger    Logger
}

var _ ServerInterface = (*Server)(nil)

// NewServer creates a new Server.
func NewServer(
	workflows *services.WorkflowService, tasks *services.TaskService,
	store Pinger, logger Logger,
) *Server {
	return &Server{
		Workflows: workflows,
		Tasks:     tasks,
		Store:     store,
		Logger:    logger,
	}
}

// HealthStatus represents the health check response
type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
	Version   string    `json:"version"`
}

// HandleHealth reports service health. A store that cannot be reached
// yields 503 with status "degraded".
func (s *Server) HandleHealth(c echo.Context) error {
	status := HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Service:   "inpatient-hub",
		Version:   "1.0.0",
	}
	code := http.StatusOK
	if err := s.Store.Ping(c.Request().Context()); err != nil {
		s.Logger.Warn("health check failed", logging.Error(err))
		status.Status = "degraded"
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, status)
}

// ProblemDetails represents an RFC 7807 Problem Details response
type ProblemDetails struct {
	Type     string   `json:"type"`
	Title    string   `json:"title"`
	Status   int      `json:"status"`
	Detail   string   `json:"detail"`
	Instance string   `json:"instance,omitempty"`
	Errors   []string `json:"errors,omitempty"`
}

// writeError writes an RFC 7807 Problem Details JSON error response
func writeError(c echo.Context, status int, title, detail string) error {
	return writeProblem(c, ProblemDetails{
		Type:   "about:blank",
		Title:  title,
		Status: status,
		Detail: detail,
	})
}

func writeProblem(c echo.Context, problem ProblemDetails) error {
	problem.Instance = c.Request().URL.Path
	c.Response().Header().Set(echo.HeaderContentType, "application/problem+json")
	return c.JSON(problem.Status, problem)
}

func writeValidationError(c echo.Context, res models.ValidationResult) error {
	return writeProblem(c, ProblemDetails{
		Type:   "about:blank",
		Title:  "Workflow is not valid",
		Status: http.StatusUnprocessableEntity,
		Detail: fmt.Sprintf("%d problem(s) must be fixed before saving", len(res.Errors)),
		Errors: res.Errors,
	})
}

// fail maps service errors onto problem responses
func (s *Server) fail(c echo.Context, err error) error {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		return writeValidationError(c, verr.Result)
	case errors.Is(err, services.ErrFeatureDisabled):
		return writeError(c, http.StatusForbidden, "Feature not enabled", err.Error())
	case errors.Is(err, services.ErrForbidden):
		return writeError(c, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, services.ErrNotFound):
		return writeError(c, http.StatusNotFound, "Not found", err.Error())
	case errors.Is(err, services.ErrInvalidInput):
		return writeError(c, http.StatusBadRequest, "Invalid request", err.Error())
	default:
		s.Logger.Error("request failed",
			logging.Error(err),
			"path", c.Request().URL.Path,
		)
		return writeError(c, http.StatusInternalServerError,
			"Internal server error", "the request could not be completed")
	}
}

// ErrorHandler renders echo errors (unknown routes, bad binds) as problem
// details.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	status := http.StatusInternalServerError
	detail := "the request could not be completed"
	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		detail = fmt.Sprint(he.Message)
	}
	_ = writeError(c, status, http.StatusText(status), detail)
}
