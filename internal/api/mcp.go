package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/elicit/internal/interview"
	"github.com/kalambet/elicit/internal/pipeline"
	"github.com/kalambet/elicit/internal/storage"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Store       *storage.Store
	Interviewer *pipeline.Interviewer
}

// NewMCPServer creates an MCP server exposing the interview tools and the project list resource.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"elicit",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("elicit runs requirements interviews. Start an interview on a project, then relay the interviewee's answers with reply."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("list_projects",
			mcp.WithDescription("List all projects with their status."),
		),
		mcpListProjects(deps),
	)

	s.AddTool(
		mcp.NewTool("start_interview",
			mcp.WithDescription("Start (or resume) the interview of a project and return the current question."),
			mcp.WithNumber("project_id", mcp.Description("Project id"), mcp.Required()),
		),
		mcpStartInterview(deps),
	)

	s.AddTool(
		mcp.NewTool("reply",
			mcp.WithDescription("Submit the interviewee's answer and return the next question."),
			mcp.WithNumber("project_id", mcp.Description("Project id"), mcp.Required()),
			mcp.WithString("text", mcp.Description("The interviewee's answer"), mcp.Required()),
		),
		mcpReply(deps),
	)

	s.AddTool(
		mcp.NewTool("show_priority",
			mcp.WithDescription("Return the ranked topic order of a project."),
			mcp.WithNumber("project_id", mcp.Description("Project id"), mcp.Required()),
		),
		mcpShowPriority(deps),
	)

	s.AddTool(
		mcp.NewTool("show_topics",
			mcp.WithDescription("Return the sections, topics and slots of a project."),
			mcp.WithNumber("project_id", mcp.Description("Project id"), mcp.Required()),
		),
		mcpShowTopics(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"elicit://projects",
			"Projects",
			mcp.WithResourceDescription("All projects with status and priority sequence"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceProjects(deps),
	)

	return s
}

func mcpProjectID(req mcp.CallToolRequest) (int64, *mcp.CallToolResult) {
	id, err := req.RequireInt("project_id")
	if err != nil || id <= 0 {
		return 0, mcpError("project_id must be a positive integer")
	}
	return int64(id), nil
}

func mcpJSON(v any) *mcp.CallToolResult {
	b, err := json.Marshal(v)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal result: %v", err))
	}
	return mcpText(string(b))
}

func mcpListProjects(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		projects, err := deps.Store.ListProjects(ctx)
		if err != nil {
			return mcpError(fmt.Sprintf("listing projects failed: %v", err)), nil
		}
		if len(projects) == 0 {
			return mcpText("[]"), nil
		}

		type projectSummary struct {
			ID     int64  `json:"id"`
			Name   string `json:"name"`
			Status string `json:"status"`
		}
		out := make([]projectSummary, len(projects))
		for i, p := range projects {
			out[i] = projectSummary{ID: p.ID, Name: p.Name, Status: string(p.Status)}
		}
		return mcpJSON(out), nil
	}
}

func mcpStartInterview(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, bad := mcpProjectID(req)
		if bad != nil {
			return bad, nil
		}
		res, err := deps.Interviewer.Start(ctx, id)
		if err != nil {
			return mcpError(fmt.Sprintf("start failed: %v", err)), nil
		}
		return mcpText(res.Question), nil
	}
}

func mcpReply(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, bad := mcpProjectID(req)
		if bad != nil {
			return bad, nil
		}
		text, err := req.RequireString("text")
		if err != nil || strings.TrimSpace(text) == "" {
			return mcpError("text is required"), nil
		}
		res, err := deps.Interviewer.Reply(ctx, id, text)
		if err != nil {
			return mcpError(fmt.Sprintf("reply failed: %v", err)), nil
		}
		return mcpText(res.Question), nil
	}
}

func mcpShowPriority(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, bad := mcpProjectID(req)
		if bad != nil {
			return bad, nil
		}
		ranking, err := deps.Interviewer.Priority(ctx, id)
		if err != nil {
			return mcpError(fmt.Sprintf("priority failed: %v", err)), nil
		}
		if len(ranking) == 0 {
			return mcpText("[]"), nil
		}
		return mcpJSON(ranking), nil
	}
}

func mcpShowTopics(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, bad := mcpProjectID(req)
		if bad != nil {
			return bad, nil
		}
		if _, err := deps.Store.GetProject(ctx, id); err != nil {
			return mcpError(fmt.Sprintf("project %d: %v", id, err)), nil
		}
		fw, err := interview.LoadFramework(ctx, deps.Store, id)
		if err != nil {
			return mcpError(fmt.Sprintf("loading topics failed: %v", err)), nil
		}
		return mcpJSON(frameworkView(fw)), nil
	}
}

func mcpResourceProjects(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		projects, err := deps.Store.ListProjects(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list projects: %w", err)
		}
		if projects == nil {
			projects = []storage.Project{}
		}

		b, err := json.Marshal(projects)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal projects: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
