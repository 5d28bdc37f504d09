package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inpatient-hub/backend/internal/access"
	"inpatient-hub/backend/internal/auth"
	"inpatient-hub/backend/internal/logging"
	"inpatient-hub/backend/internal/repository"
	"inpatient-hub/backend/internal/services"
	"inpatient-hub/backend/internal/telemetry"
	"inpatient-hub/backend/pkg/models"
)

var (
	nurse     = &models.User{ID: "u-nurse", Name: "Nia", Role: models.RoleNormal, Ward: "Ward 7"}
	sister    = &models.User{ID: "u-sister", Name: "Wes", Role: models.RoleWardAdmin, Ward: "Ward 7"}
	registrar = &models.User{ID: "u-reg", Name: "Cat", Role: models.RoleContributor, Ward: "Ward 7"}
	matron    = &models.User{ID: "u-matron", Name: "Sol", Role: models.RoleSeniorAdmin, Ward: "Ward 9"}
)

type downStore struct{}

func (downStore) Ping(context.Context) error { return errors.New("connection refused") }

func newTestEcho(store Pinger) *echo.Echo {
	repo := repository.NewMemoryStore()
	if store == nil {
		store = repo
	}
	srv := NewServer(
		services.NewWorkflowService(repo, logging.Discard(), telemetry.Noop()),
		services.NewTaskService(repo, logging.Discard(), telemetry.Noop()),
		store, logging.Discard(),
	)
	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler
	e.GET("/health", srv.HandleHealth)
	RegisterHandlersWithBaseURL(e, srv, "/api/v1")
	return e
}

func call(
	t *testing.T, e *echo.Echo, ac access.Context, method, path string, body any,
) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		req = httptest.NewRequest(method, path, strings.NewReader(string(data)))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req = req.WithContext(auth.WithAccess(req.Context(), ac))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func at(u *models.User, v models.AppVersion) access.Context {
	return access.Context{User: u, Version: v}
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func referralTree() []models.Step {
	return []models.Step{
		{Type: models.StepCriteria, Title: "Referral criteria"},
		{Type: models.StepDecisionYesNo, Title: "Stable?", Branches: []models.Branch{
			{Label: "Yes", Steps: []models.Step{{Type: models.StepEndpoint, Title: "Refer to clinic"}}},
			{Label: "No", Steps: []models.Step{{Type: models.StepCasenote, Title: "Document and call outreach"}}},
		}},
	}
}

func TestHealth(t *testing.T) {
	rec := call(t, newTestEcho(nil), access.Context{}, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[HealthStatus](t, rec).Status)

	rec = call(t, newTestEcho(downStore{}), access.Context{}, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "degraded", decode[HealthStatus](t, rec).Status)
}

func TestMe(t *testing.T) {
	e := newTestEcho(nil)

	rec := call(t, e, at(sister, models.VersionMedium), http.MethodGet, "/api/v1/me", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decode[MeResponse](t, rec)
	assert.Equal(t, sister.ID, me.User.ID)
	assert.Equal(t, models.VersionMedium, me.Version)
	assert.ElementsMatch(t, []models.Feature{
		models.FeatureBookmarks, models.FeatureReferrals, models.FeatureGuides, models.FeatureWardTasks,
	}, me.Features)
	assert.Equal(t, access.Capabilities{Approve: true}, me.Capabilities)

	rec = call(t, e, at(nurse, "beta"), http.MethodGet, "/api/v1/me", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[MeResponse](t, rec).Features)
}

func TestPutMeVersion(t *testing.T) {
	e := newTestEcho(nil)

	rec := call(t, e, at(nurse, models.VersionLight), http.MethodPut, "/api/v1/me/version",
		VersionRequest{Version: "max_plus"})
	require.Equal(t, http.StatusOK, rec.Code)
	me := decode[MeResponse](t, rec)
	assert.Equal(t, models.VersionMaxPlus, me.Version)
	assert.Contains(t, me.Features, models.FeatureAnalytics)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, auth.VersionCookie, cookies[0].Name)
	assert.Equal(t, "max_plus", cookies[0].Value)

	rec = call(t, e, at(nurse, models.VersionLight), http.MethodPut, "/api/v1/me/version",
		VersionRequest{Version: "ultra"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get(echo.HeaderContentType))
	assert.Empty(t, rec.Result().Cookies())
}

func TestListFeatures(t *testing.T) {
	rec := call(t, newTestEcho(nil), at(nurse, models.VersionLight), http.MethodGet, "/api/v1/features", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	res := decode[FeaturesResponse](t, rec)
	assert.Equal(t, models.AllVersions, res.Versions)
	assert.Len(t, res.Matrix[models.VersionLight], 3)
	assert.Len(t, res.Matrix[models.VersionMaxPlus], 8)
}

func TestWorkflowLifecycle(t *testing.T) {
	e := newTestEcho(nil)

	rec := call(t, e, at(registrar, models.VersionMax), http.MethodPut, "/api/v1/workflows",
		models.Workflow{Title: "Chest pain", Steps: referralTree()})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	saved := decode[models.Workflow](t, rec)
	assert.Equal(t, models.WorkflowStatusPending, saved.Status)
	assert.Equal(t, 1, saved.Version)

	// Pending workflows are hidden from staff who cannot edit or approve.
	rec = call(t, e, at(nurse, models.VersionMax), http.MethodGet, "/api/v1/workflows/"+saved.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = call(t, e, at(sister, models.VersionMax), http.MethodPost,
		"/api/v1/workflows/"+saved.ID+"/approve", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, models.WorkflowStatusApproved, decode[models.Workflow](t, rec).Status)

	rec = call(t, e, at(nurse, models.VersionMedium), http.MethodGet, "/api/v1/workflows", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.Workflow](t, rec), 1)

	rec = call(t, e, at(registrar, models.VersionMax), http.MethodDelete, "/api/v1/workflows/"+saved.ID, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = call(t, e, at(matron, models.VersionMax), http.MethodDelete, "/api/v1/workflows/"+saved.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = call(t, e, at(matron, models.VersionMax), http.MethodGet, "/api/v1/workflows/"+saved.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPutWorkflowInvalid(t *testing.T) {
	e := newTestEcho(nil)

	steps := []models.Step{
		{Type: models.StepDecisionYesNo, Title: "Pain?", Branches: []models.Branch{
			{Label: "Yes", Steps: []models.Step{}},
		}},
	}
	rec := call(t, e, at(registrar, models.VersionMax), http.MethodPut, "/api/v1/workflows",
		models.Workflow{Title: "Broken", Steps: steps})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	problem := decode[ProblemDetails](t, rec)
	assert.Equal(t, http.StatusUnprocessableEntity, problem.Status)
	assert.Equal(t, []string{"Main workflow > Yes has no steps"}, problem.Errors)

	rec = call(t, e, at(matron, models.VersionMax), http.MethodGet, "/api/v1/workflows", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]models.Workflow](t, rec))
}

func TestWorkflowGates(t *testing.T) {
	e := newTestEcho(nil)
	body := models.Workflow{Title: "Sepsis", Steps: referralTree()}

	rec := call(t, e, at(registrar, models.VersionMedium), http.MethodPut, "/api/v1/workflows", body)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Feature not enabled", decode[ProblemDetails](t, rec).Title)

	rec = call(t, e, at(nurse, models.VersionMax), http.MethodPut, "/api/v1/workflows", body)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Forbidden", decode[ProblemDetails](t, rec).Title)

	rec = call(t, e, at(nurse, models.VersionMax), http.MethodPut, "/api/v1/workflows", "not an object")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = call(t, e, at(registrar, models.VersionMax), http.MethodPut, "/api/v1/workflows",
		models.Workflow{Title: "  ", Steps: referralTree()})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestValidateWorkflow(t *testing.T) {
	e := newTestEcho(nil)

	rec := call(t, e, at(nurse, models.VersionMax), http.MethodPost, "/api/v1/workflows/validate",
		ValidateRequest{Steps: referralTree()})
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[models.ValidationResult](t, rec)
	assert.True(t, res.Valid)
	assert.Empty(t, res.Errors)

	rec = call(t, e, at(nurse, models.VersionMax), http.MethodPost, "/api/v1/workflows/validate",
		ValidateRequest{Steps: []models.Step{{Type: models.StepDecisionMulti, Title: "Route"}}})
	require.Equal(t, http.StatusOK, rec.Code)
	res = decode[models.ValidationResult](t, rec)
	assert.False(t, res.Valid)
	assert.Equal(t, []string{`Main workflow: Decision "Route" has no branches defined`}, res.Errors)

	rec = call(t, e, at(nurse, models.VersionLight), http.MethodPost, "/api/v1/workflows/validate",
		ValidateRequest{Steps: referralTree()})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = call(t, e, at(nurse, "beta"), http.MethodPost, "/api/v1/workflows/validate",
		ValidateRequest{Steps: referralTree()})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestTasks(t *testing.T) {
	e := newTestEcho(nil)

	rec := call(t, e, at(nurse, models.VersionMedium), http.MethodPost, "/api/v1/tasks",
		models.WardTask{Title: "Chase bloods"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	task := decode[models.WardTask](t, rec)
	assert.Equal(t, "Ward 7", task.Ward)

	rec = call(t, e, at(matron, models.VersionMedium), http.MethodPost, "/api/v1/tasks",
		models.WardTask{Title: "Bed meeting"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = call(t, e, at(nurse, models.VersionMedium), http.MethodGet, "/api/v1/tasks", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.WardTask](t, rec), 1)

	rec = call(t, e, at(nurse, models.VersionMedium), http.MethodGet, "/api/v1/tasks?ward=Ward+9", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	tasks := decode[[]models.WardTask](t, rec)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Bed meeting", tasks[0].Title)

	rec = call(t, e, at(sister, models.VersionMedium), http.MethodPost,
		"/api/v1/tasks/"+task.ID+"/complete", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[models.WardTask](t, rec).Done)

	rec = call(t, e, at(registrar, models.VersionMedium), http.MethodDelete, "/api/v1/tasks/"+task.ID, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = call(t, e, at(nurse, models.VersionMedium), http.MethodDelete, "/api/v1/tasks/"+task.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = call(t, e, at(nurse, models.VersionLight), http.MethodGet, "/api/v1/tasks", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestUnknownRouteIsProblem(t *testing.T) {
	rec := call(t, newTestEcho(nil), at(nurse, models.VersionMax), http.MethodGet, "/api/v1/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get(echo.HeaderContentType))
}

func TestSpecHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	SpecHandler("https://example.okta.com/oauth2/default")(rec,
		httptest.NewRequest(http.MethodGet, "/openapi.yaml", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "https://example.okta.com/oauth2/default/v1/authorize")
	assert.NotContains(t, rec.Body.String(), "{oktaIssuer}")
}
