package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"inpatient-hub/backend/internal/auth"
	"inpatient-hub/backend/pkg/models"
)

// ValidateRequest is the body of POST /workflows/validate.
type ValidateRequest struct {
	Steps []models.Step `json:"steps"`
}

// ListWorkflows returns the workflows visible to the caller
// (GET /api/v1/workflows)
func (s *Server) ListWorkflows(c echo.Context) error {
	ctx := c.Request().Context()

	workflows, err := s.Workflows.List(ctx, auth.AccessFromContext(ctx))
	if err != nil {
		return s.fail(c, err)
	}
	if workflows == nil {
		workflows = []*models.Workflow{}
	}
	return c.JSON(http.StatusOK, workflows)
}

// GetWorkflow returns one workflow
// (GET /api/v1/workflows/{id})
func (s *Server) GetWorkflow(c echo.Context, id string) error {
	ctx := c.Request().Context()

	wf, err := s.Workflows.Get(ctx, auth.AccessFromContext(ctx), id)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, wf)
}

// PutWorkflow creates or updates a workflow
// (PUT /api/v1/workflows)
func (s *Server) PutWorkflow(c echo.Context) error {
	ctx := c.Request().Context()

	var workflow models.Workflow
	if err := c.Bind(&workflow); err != nil {
		return writeError(c, http.StatusBadRequest, "Invalid request body", err.Error())
	}

	saved, err := s.Workflows.Save(ctx, auth.AccessFromContext(ctx), &workflow)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, saved)
}

// DeleteWorkflow removes a workflow
// (DELETE /api/v1/workflows/{id})
func (s *Server) DeleteWorkflow(c echo.Context, id string) error {
	ctx := c.Request().Context()

	if err := s.Workflows.Delete(ctx, auth.AccessFromContext(ctx), id); err != nil {
		return s.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ApproveWorkflow signs off a pending workflow
// (POST /api/v1/workflows/{id}/approve)
func (s *Server) ApproveWorkflow(c echo.Context, id string) error {
	ctx := c.Request().Context()

	wf, err := s.Workflows.Approve(ctx, auth.AccessFromContext(ctx), id)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, wf)
}

// ValidateWorkflow checks a step tree without saving it. An invalid tree is
// still a 200; the result carries the diagnostics.
// (POST /api/v1/workflows/validate)
func (s *Server) ValidateWorkflow(c echo.Context) error {
	ctx := c.Request().Context()

	if !auth.AccessFromContext(ctx).HasFeature(models.FeatureReferrals) {
		return writeError(c, http.StatusForbidden, "Feature not enabled",
			"referrals are not part of this version")
	}

	var req ValidateRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, http.StatusBadRequest, "Invalid request body", err.Error())
	}
	return c.JSON(http.StatusOK, s.Workflows.Validate(ctx, req.Steps))
}
