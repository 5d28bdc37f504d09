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
	"inpatient-hub/backend/internal/workflow"
	"inpatient-hub/backend/pkg/models"
)

// WorkflowService manages referral workflows. It is the single place where
// feature and role checks are applied to workflow operations.
type WorkflowService struct {
	store   repository.WorkflowStore
	logger  Logger
	metrics *telemetry.Metrics
}

// NewWorkflowService creates a new WorkflowService.
func NewWorkflowService(
	store repository.WorkflowStore, logger Logger, metrics *telemetry.Metrics,
) *WorkflowService {
	return &WorkflowService{
		store:   store,
		logger:  logger,
		metrics: metrics,
	}
}

// Validate checks a step tree without saving it.
func (s *WorkflowService) Validate(ctx context.Context, steps []models.Step) models.ValidationResult {
	res := workflow.Validate(steps)
	s.metrics.Validation(ctx, res.Valid)
	return res
}

// List returns the workflows visible to the caller. Staff who can neither
// edit nor approve only see approved workflows.
func (s *WorkflowService) List(ctx context.Context, ac access.Context) ([]*models.Workflow, error) {
	if err := s.requireFeature(ctx, ac, models.FeatureReferrals); err != nil {
		return nil, err
	}

	all, err := s.store.ListWorkflows(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}
	res := make([]*models.Workflow, 0, len(all))
	for _, wf := range all {
		if visible(ac, wf) {
			res = append(res, wf)
		}
	}
	return res, nil
}

// Get returns one workflow if the caller may see it.
func (s *WorkflowService) Get(ctx context.Context, ac access.Context, id string) (*models.Workflow, error) {
	if err := s.requireFeature(ctx, ac, models.FeatureReferrals); err != nil {
		return nil, err
	}

	wf, err := s.store.GetWorkflow(ctx, id)
	if err != nil {
		return nil, storeError(err, "workflow", id)
	}
	if !visible(ac, wf) {
		return nil, fmt.Errorf("%w: workflow %s", ErrNotFound, id)
	}
	return wf, nil
}

// Save creates or updates a workflow. Invalid step trees are never
// persisted; a *ValidationError carries the diagnostics. Saved workflows go
// back to pending until approved again.
func (s *WorkflowService) Save(
	ctx context.Context, ac access.Context, wf *models.Workflow,
) (*models.Workflow, error) {
	if err := s.requireEditor(ctx, ac); err != nil {
		return nil, err
	}
	if !ac.CanEdit() {
		return nil, s.deny(ctx, ac, "edit")
	}

	wf.Title = strings.TrimSpace(wf.Title)
	if wf.Title == "" {
		return nil, fmt.Errorf("%w: workflow title is required", ErrInvalidInput)
	}

	res := s.Validate(ctx, wf.Steps)
	if !res.Valid {
		return nil, &ValidationError{Result: res}
	}
	normalizeSteps(wf.Steps)

	if wf.ID == "" {
		wf.ID = uuid.New().String()
	}
	prev, err := s.store.GetWorkflow(ctx, wf.ID)
	switch {
	case err == nil:
		wf.CreatedBy = prev.CreatedBy
		wf.Version = prev.Version + 1
	case isNotFound(err):
		wf.CreatedBy = ac.User.ID
		wf.Version = 1
	default:
		return nil, storeError(err, "workflow", wf.ID)
	}

	if wf.Ward == "" {
		wf.Ward = ac.User.Ward
	}
	wf.Status = models.WorkflowStatusPending
	wf.ApprovedBy = ""

	if err := s.store.SaveWorkflow(ctx, wf); err != nil {
		return nil, fmt.Errorf("failed to save workflow: %w", err)
	}

	s.logger.Info("workflow saved",
		logging.WorkflowID(wf.ID),
		logging.UserID(ac.User.ID),
		"version", wf.Version,
	)
	return wf, nil
}

// Approve signs off a pending workflow.
func (s *WorkflowService) Approve(
	ctx context.Context, ac access.Context, id string,
) (*models.Workflow, error) {
	if err := s.requireEditor(ctx, ac); err != nil {
		return nil, err
	}
	if !ac.CanApprove() {
		return nil, s.deny(ctx, ac, "approve")
	}

	wf, err := s.store.GetWorkflow(ctx, id)
	if err != nil {
		return nil, storeError(err, "workflow", id)
	}
	if wf.Status == models.WorkflowStatusApproved {
		return wf, nil
	}

	res := s.Validate(ctx, wf.Steps)
	if !res.Valid {
		return nil, &ValidationError{Result: res}
	}

	wf.Status = models.WorkflowStatusApproved
	wf.ApprovedBy = ac.User.ID
	if err := s.store.SaveWorkflow(ctx, wf); err != nil {
		return nil, fmt.Errorf("failed to approve workflow: %w", err)
	}

	s.logger.Info("workflow approved",
		logging.WorkflowID(wf.ID),
		logging.UserID(ac.User.ID),
	)
	return wf, nil
}

// Delete removes a workflow.
func (s *WorkflowService) Delete(ctx context.Context, ac access.Context, id string) error {
	if err := s.requireEditor(ctx, ac); err != nil {
		return err
	}
	if !ac.CanDelete() {
		return s.deny(ctx, ac, "delete")
	}

	if err := s.store.DeleteWorkflow(ctx, id); err != nil {
		return storeError(err, "workflow", id)
	}

	s.logger.Info("workflow deleted",
		logging.WorkflowID(id),
		logging.UserID(ac.User.ID),
	)
	return nil
}

func (s *WorkflowService) requireEditor(ctx context.Context, ac access.Context) error {
	if err := s.requireFeature(ctx, ac, models.FeatureReferrals); err != nil {
		return err
	}
	return s.requireFeature(ctx, ac, models.FeatureWorkflowEditor)
}

func (s *WorkflowService) requireFeature(
	ctx context.Context, ac access.Context, feature models.Feature,
) error {
	return requireFeature(ctx, s.metrics, ac, feature)
}

func (s *WorkflowService) deny(ctx context.Context, ac access.Context, action string) error {
	s.metrics.Denial(ctx, action)
	s.logger.Debug("workflow action denied",
		logging.Role(ac.Role()),
		"action", action,
	)
	return fmt.Errorf("%w: role %q may not %s workflows", ErrForbidden, ac.Role(), action)
}

func requireFeature(
	ctx context.Context, m *telemetry.Metrics, ac access.Context, feature models.Feature,
) error {
	if ac.HasFeature(feature) {
		return nil
	}
	m.Denial(ctx, "feature")
	return fmt.Errorf("%w: %s at version %q", ErrFeatureDisabled, feature, ac.Version)
}

func visible(ac access.Context, wf *models.Workflow) bool {
	return wf.Status == models.WorkflowStatusApproved || ac.CanEdit() || ac.CanApprove()
}

// normalizeSteps drops branches from non-decision steps and assigns IDs to
// steps that lack one. The tree must already have passed validation, which
// rules out cycles through decisions.
func normalizeSteps(steps []models.Step) {
	for i := range steps {
		st := &steps[i]
		if st.ID == "" {
			st.ID = uuid.New().String()
		}
		if !st.IsDecision() {
			st.Branches = nil
			continue
		}
		for j := range st.Branches {
			normalizeSteps(st.Branches[j].Steps)
		}
	}
}
