package api

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/oapi-codegen/runtime"
)

// ListTasksParams defines parameters for ListTasks.
type ListTasksParams struct {
	// Ward filters the diary; empty means the caller's own ward.
	Ward *string `form:"ward,omitempty" json:"ward,omitempty"`
}

// ServerInterface represents all server handlers under /api/v1.
type ServerInterface interface {
	// (GET /me)
	GetMe(ctx echo.Context) error
	// (PUT /me/version)
	PutMeVersion(ctx echo.Context) error
	// (GET /features)
	ListFeatures(ctx echo.Context) error
	// (GET /workflows)
	ListWorkflows(ctx echo.Context) error
	// (PUT /workflows)
	PutWorkflow(ctx echo.Context) error
	// (POST /workflows/validate)
	ValidateWorkflow(ctx echo.Context) error
	// (GET /workflows/{id})
	GetWorkflow(ctx echo.Context, id string) error
	// (DELETE /workflows/{id})
	DeleteWorkflow(ctx echo.Context, id string) error
	// (POST /workflows/{id}/approve)
	ApproveWorkflow(ctx echo.Context, id string) error
	// (GET /tasks)
	ListTasks(ctx echo.Context, params ListTasksParams) error
	// (POST /tasks)
	CreateTask(ctx echo.Context) error
	// (POST /tasks/{id}/complete)
	CompleteTask(ctx echo.Context, id string) error
	// (DELETE /tasks/{id})
	DeleteTask(ctx echo.Context, id string) error
}

// ServerInterfaceWrapper converts echo contexts to parameters.
type ServerInterfaceWrapper struct {
	Handler ServerInterface
}

func (w *ServerInterfaceWrapper) GetMe(ctx echo.Context) error {
	return w.Handler.GetMe(ctx)
}

func (w *ServerInterfaceWrapper) PutMeVersion(ctx echo.Context) error {
	return w.Handler.PutMeVersion(ctx)
}

func (w *ServerInterfaceWrapper) ListFeatures(ctx echo.Context) error {
	return w.Handler.ListFeatures(ctx)
}

func (w *ServerInterfaceWrapper) ListWorkflows(ctx echo.Context) error {
	return w.Handler.ListWorkflows(ctx)
}

func (w *ServerInterfaceWrapper) PutWorkflow(ctx echo.Context) error {
	return w.Handler.PutWorkflow(ctx)
}

func (w *ServerInterfaceWrapper) ValidateWorkflow(ctx echo.Context) error {
	return w.Handler.ValidateWorkflow(ctx)
}

func (w *ServerInterfaceWrapper) GetWorkflow(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	return w.Handler.GetWorkflow(ctx, id)
}

func (w *ServerInterfaceWrapper) DeleteWorkflow(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	return w.Handler.DeleteWorkflow(ctx, id)
}

func (w *ServerInterfaceWrapper) ApproveWorkflow(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	return w.Handler.ApproveWorkflow(ctx, id)
}

func (w *ServerInterfaceWrapper) ListTasks(ctx echo.Context) error {
	var params ListTasksParams
	err := runtime.BindQueryParameter("form", true, false, "ward", ctx.QueryParams(), &params.Ward)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Invalid format for parameter ward: %s", err))
	}
	return w.Handler.ListTasks(ctx, params)
}

func (w *ServerInterfaceWrapper) CreateTask(ctx echo.Context) error {
	return w.Handler.CreateTask(ctx)
}

func (w *ServerInterfaceWrapper) CompleteTask(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	return w.Handler.CompleteTask(ctx, id)
}

func (w *ServerInterfaceWrapper) DeleteTask(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	return w.Handler.DeleteTask(ctx, id)
}

func pathID(ctx echo.Context) (string, error) {
	var id string
	err := runtime.BindStyledParameterWithOptions("simple", "id", ctx.Param("id"), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		return "", echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Invalid format for parameter id: %s", err))
	}
	return id, nil
}

// EchoRouter is satisfied by both *echo.Echo and *echo.Group.
type EchoRouter interface {
	DELETE(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route
	GET(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route
	POST(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route
	PUT(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route
}

// RegisterHandlers adds each server route to the EchoRouter.
func RegisterHandlers(router EchoRouter, si ServerInterface) {
	RegisterHandlersWithBaseURL(router, si, "")
}

// RegisterHandlersWithBaseURL registers the handlers, prefixing each path
// with baseURL.
func RegisterHandlersWithBaseURL(router EchoRouter, si ServerInterface, baseURL string) {
	wrapper := ServerInterfaceWrapper{
		Handler: si,
	}

	router.GET(baseURL+"/me", wrapper.GetMe)
	router.PUT(baseURL+"/me/version", wrapper.PutMeVersion)
	router.GET(baseURL+"/features", wrapper.ListFeatures)
	router.GET(baseURL+"/workflows", wrapper.ListWorkflows)
	router.PUT(baseURL+"/workflows", wrapper.PutWorkflow)
	router.POST(baseURL+"/workflows/validate", wrapper.ValidateWorkflow)
	router.GET(baseURL+"/workflows/:id", wrapper.GetWorkflow)
	router.DELETE(baseURL+"/workflows/:id", wrapper.DeleteWorkflow)
	router.POST(baseURL+"/workflows/:id/approve", wrapper.ApproveWorkflow)
	router.GET(baseURL+"/tasks", wrapper.ListTasks)
	router.POST(baseURL+"/tasks", wrapper.CreateTask)
	router.POST(baseURL+"/tasks/:id/complete", wrapper.CompleteTask)
	router.DELETE(baseURL+"/tasks/:id", wrapper.DeleteTask)
}
