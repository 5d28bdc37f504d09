// Package seed loads demo fixtures (the staff roster, referral workflows and
// ward tasks) from YAML into a repository.
package seed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"inpatient-hub/backend/internal/access"
	"inpatient-hub/backend/internal/logging"
	"inpatient-hub/backend/internal/repository"
	"inpatient-hub/backend/internal/workflow"
	"inpatient-hub/backend/pkg/models"
)

// fixtureNamespace derives stable IDs for fixture entries that omit one, so
// reseeding the same file finds the same records.
var fixtureNamespace = uuid.MustParse("5b0e7d0c-8a43-4a8e-9d51-2f6a3c1e9b27")

var ErrInvalidFixture = errors.New("invalid fixture")

// Logger defines the logging interface compatible with the application logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Fixture is the on-disk seed format
type Fixture struct {
	Users     []models.User     `yaml:"users"`
	Workflows []models.Workflow `yaml:"workflows"`
	Tasks     []models.WardTask `yaml:"tasks"`
}

// Report counts what Apply wrote
type Report struct {
	Users     int
	Workflows int
	Tasks     int
	Skipped   int
}

// LoadFile reads a fixture from path.
func LoadFile(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML fixture. Unknown keys are rejected.
func Parse(data []byte) (*Fixture, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var fx Fixture
	if err := dec.Decode(&fx); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFixture, err)
	}
	for i, u := range fx.Users {
		if u.Email == "" {
			return nil, fmt.Errorf("%w: user %d has no email", ErrInvalidFixture, i)
		}
		if _, ok := access.ParseRole(string(u.Role)); !ok {
			return nil, fmt.Errorf("%w: user %s has unknown role %q", ErrInvalidFixture, u.Email, u.Role)
		}
	}
	return &fx, nil
}

// DecodeWorkflow reads a single workflow document. It accepts YAML or JSON,
// either a workflow object or a bare list of steps.
func DecodeWorkflow(data []byte) (*models.Workflow, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFixture, err)
	}
	if node.Kind == 0 || len(node.Content) == 0 {
		return &models.Workflow{}, nil
	}

	var wf models.Workflow
	doc := node.Content[0]
	if doc.Kind == yaml.SequenceNode {
		if err := doc.Decode(&wf.Steps); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFixture, err)
		}
		return &wf, nil
	}
	if err := doc.Decode(&wf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFixture, err)
	}
	return &wf, nil
}

// Apply writes the fixture into store. Users are upserted. Workflows and
// tasks already present are left alone, and workflows that fail validation
// are skipped with a warning.
func Apply(ctx context.Context, store repository.Repository, fx *Fixture, logger Logger) (Report, error) {
	var rep Report

	for i := range fx.Users {
		u := fx.Users[i]
		if u.ID == "" {
			u.ID = stableID("user", strings.ToLower(u.Email))
		}
		if err := store.UpsertUser(ctx, &u); err != nil {
			return rep, fmt.Errorf("failed to seed user %s: %w", u.Email, err)
		}
		rep.Users++
	}

	for i := range fx.Workflows {
		wf := fx.Workflows[i]
		if wf.ID == "" {
			wf.ID = stableID("workflow", wf.Title)
		}
		res := workflow.Validate(wf.Steps)
		if !res.Valid {
			logger.Warn("skipping invalid workflow",
				logging.WorkflowID(wf.ID),
				"title", wf.Title,
				"errors", res.Errors,
			)
			rep.Skipped++
			continue
		}

		_, err := store.GetWorkflow(ctx, wf.ID)
		exists, err := found(err)
		if err != nil {
			return rep, fmt.Errorf("failed to check workflow %s: %w", wf.ID, err)
		}
		if exists {
			logger.Debug("workflow already seeded", logging.WorkflowID(wf.ID))
			rep.Skipped++
			continue
		}

		if wf.Status == "" {
			wf.Status = models.WorkflowStatusApproved
		}
		wf.Version = 1
		if err := store.SaveWorkflow(ctx, &wf); err != nil {
			return rep, fmt.Errorf("failed to seed workflow %s: %w", wf.ID, err)
		}
		rep.Workflows++
	}

	for i := range fx.Tasks {
		task := fx.Tasks[i]
		if task.ID == "" {
			task.ID = stableID("task", task.Ward+"/"+task.Title)
		}
		_, err := store.GetTask(ctx, task.ID)
		exists, err := found(err)
		if err != nil {
			return rep, fmt.Errorf("failed to check task %s: %w", task.ID, err)
		}
		if exists {
			rep.Skipped++
			continue
		}
		if err := store.SaveTask(ctx, &task); err != nil {
			return rep, fmt.Errorf("failed to seed task %s: %w", task.ID, err)
		}
		rep.Tasks++
	}

	logger.Info("seed applied",
		"users", rep.Users,
		"workflows", rep.Workflows,
		"tasks", rep.Tasks,
		"skipped", rep.Skipped,
	)
	return rep, nil
}

func found(err error) (bool, error) {
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, repository.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

func stableID(kind, key string) string {
	return uuid.NewSHA1(fixtureNamespace, []byte(kind+":"+key)).String()
}
