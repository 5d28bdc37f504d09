package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"inpatient-hub/backend/internal/access"
	"inpatient-hub/backend/internal/auth"
	"inpatient-hub/backend/internal/services"
	"inpatient-hub/backend/pkg/models"
)

type Server struct {
	mcpServer *server.MCPServer
	workflows *services.WorkflowService
}

func NewServer(workflows *services.WorkflowService) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(
			"Inpatient Hub",
			"1.0.0",
			server.WithToolCapabilities(true),
		),
		workflows: workflows,
	}

	s.registerTools()
	return s
}

func (s *Server) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"validate_workflow",
			mcp.WithDescription("Check that every decision path in a workflow ends on a terminal step"),
			mcp.WithString("steps", mcp.Required(), mcp.Description("The workflow steps as a JSON array")),
		),
		s.handleValidateWorkflow,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"has_feature",
			mcp.WithDescription("Report whether a feature is enabled at an app version"),
			mcp.WithString("version", mcp.Required(), mcp.Description("light, medium, max or max_plus")),
			mcp.WithString("feature", mcp.Required(), mcp.Description("The feature name, e.g. ward_tasks")),
		),
		s.handleHasFeature,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"role_capabilities",
			mcp.WithDescription("List what a staff role may do to workflows"),
			mcp.WithString("role", mcp.Required(), mcp.Description("normal, ward_admin, contributor or senior_admin")),
		),
		s.handleRoleCapabilities,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"list_workflows",
			mcp.WithDescription("List the referral workflows visible to the signed-in user"),
		),
		s.handleListWorkflows,
	)
}

func stringArg(request mcp.CallToolRequest, name string) (string, *mcp.CallToolResult) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return "", mcp.NewToolResultError("Invalid arguments type")
	}
	value, ok := args[name].(string)
	if !ok || value == "" {
		return "", mcp.NewToolResultError("Missing required parameter: " + name)
	}
	return value, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleValidateWorkflow(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, errResult := stringArg(request, "steps")
	if errResult != nil {
		return errResult, nil
	}

	var steps []models.Step
	if err := json.Unmarshal([]byte(raw), &steps); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("steps is not a JSON array of steps: %v", err)), nil
	}

	return jsonResult(s.workflows.Validate(ctx, steps))
}

func (s *Server) handleHasFeature(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	version, errResult := stringArg(request, "version")
	if errResult != nil {
		return errResult, nil
	}
	feature, errResult := stringArg(request, "feature")
	if errResult != nil {
		return errResult, nil
	}

	return jsonResult(map[string]bool{
		"enabled": access.HasFeature(models.AppVersion(version), models.Feature(feature)),
	})
}

func (s *Server) handleRoleCapabilities(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	role, errResult := stringArg(request, "role")
	if errResult != nil {
		return errResult, nil
	}
	return jsonResult(access.CapabilitiesFor(models.Role(role)))
}

func (s *Server) handleListWorkflows(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ac := auth.AccessFromContext(ctx)
	if ac.User == nil {
		return mcp.NewToolResultError("Not signed in"), nil
	}

	workflows, err := s.workflows.List(ctx, ac)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list workflows: %v", err)), nil
	}
	if workflows == nil {
		workflows = []*models.Workflow{}
	}
	return jsonResult(workflows)
}

// MountHTTPHandlers serves the SSE transport under /mcp. The access
// context resolved by the HTTP middleware is carried into tool calls.
func MountHTTPHandlers(mux *http.ServeMux, mcpServer *server.MCPServer) {
	sseServer := server.NewSSEServer(mcpServer,
		server.WithStaticBasePath("/mcp"),
		server.WithSSEContextFunc(func(ctx context.Context, r *http.Request) context.Context {
			return auth.WithAccess(ctx, auth.AccessFromContext(r.Context()))
		}),
	)

	mux.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			sseServer.ServeHTTP(w, r)
			return
		}
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	})

	mux.HandleFunc("/mcp/sse", sseServer.ServeHTTP)
	mux.HandleFunc("/mcp/message", sseServer.ServeHTTP)
}
