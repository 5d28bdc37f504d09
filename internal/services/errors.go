package services

import (
	"errors"
	"fmt"
	"strings"

	"inpatient-hub/backend/internal/repository"
	"inpatient-hub/backend/pkg/models"
)

var (
	ErrForbidden       = errors.New("forbidden")
	ErrFeatureDisabled = errors.New("feature not enabled")
	ErrNotFound        = errors.New("not found")
	ErrInvalidInput    = errors.New("invalid input")
)

// ValidationError is returned when a workflow fails structural validation.
// Result carries the diagnostics verbatim.
type ValidationError struct {
	Result models.ValidationResult
}

func (e *ValidationError) Error() string {
	return "workflow is not valid: " + strings.Join(e.Result.Errors, "; ")
}

// Logger defines the logging interface compatible with the application logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

func storeError(err error, kind, id string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: %s %s", ErrNotFound, kind, id)
	}
	return fmt.Errorf("failed to load %s %s: %w", kind, id, err)
}

func isNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound)
}
