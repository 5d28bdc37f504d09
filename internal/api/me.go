package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"inpatient-hub/backend/internal/access"
	"inpatient-hub/backend/internal/auth"
	"inpatient-hub/backend/pkg/models"
)

// MeResponse describes the caller and what the current version lets them do.
type MeResponse struct {
	User         *models.User        `json:"user"`
	Version      models.AppVersion   `json:"version"`
	Features     []models.Feature    `json:"features"`
	Capabilities access.Capabilities `json:"capabilities"`
}

// VersionRequest is the body of PUT /me/version.
type VersionRequest struct {
	Version string `json:"version"`
}

// FeaturesResponse is the full version to feature matrix.
type FeaturesResponse struct {
	Versions []models.AppVersion                    `json:"versions"`
	Matrix   map[models.AppVersion][]models.Feature `json:"matrix"`
}

func meResponse(ac access.Context) MeResponse {
	return MeResponse{
		User:         ac.User,
		Version:      ac.Version,
		Features:     access.Features(ac.Version),
		Capabilities: ac.Capabilities(),
	}
}

// GetMe returns the caller's profile
// (GET /api/v1/me)
func (s *Server) GetMe(c echo.Context) error {
	return c.JSON(http.StatusOK, meResponse(auth.AccessFromContext(c.Request().Context())))
}

// PutMeVersion switches the version this browser runs at
// (PUT /api/v1/me/version)
func (s *Server) PutMeVersion(c echo.Context) error {
	var req VersionRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, http.StatusBadRequest, "Invalid request body", err.Error())
	}
	v, ok := access.ParseVersion(req.Version)
	if !ok {
		return writeError(c, http.StatusBadRequest, "Unknown version",
			"version must be one of light, medium, max, max_plus")
	}

	auth.SetVersionCookie(c.Response(), v)

	ac := auth.AccessFromContext(c.Request().Context())
	ac.Version = v
	return c.JSON(http.StatusOK, meResponse(ac))
}

// ListFeatures returns the feature matrix
// (GET /api/v1/features)
func (s *Server) ListFeatures(c echo.Context) error {
	return c.JSON(http.StatusOK, FeaturesResponse{
		Versions: models.AllVersions,
		Matrix:   access.Matrix(),
	})
}
