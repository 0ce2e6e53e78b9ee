package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/joescharf/crev/internal/errs"
	"github.com/joescharf/crev/internal/models"
)

// Reviewer submits review and rewrite requests.
type Reviewer interface {
	SubmitReview(ctx context.Context, code, language string) (*models.ReviewResult, error)
	SubmitRewrite(ctx context.Context, code, language string) (*models.RewriteResult, error)
}

// Identity verifies the stored session.
type Identity interface {
	RequireSession(ctx context.Context) (*models.User, error)
}

// HealthChecker probes the review service.
type HealthChecker interface {
	Health(ctx context.Context) error
	BaseURL() string
}

// Server exposes the review client as MCP tools.
type Server struct {
	reviewer Reviewer
	identity Identity
	health   HealthChecker
	version  string
}

// NewServer creates the MCP server wrapper with all required dependencies.
func NewServer(r Reviewer, id Identity, hc HealthChecker, version string) *Server {
	if version == "" {
		version = "dev"
	}
	return &Server{reviewer: r, identity: id, health: hc, version: version}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("crev", s.version, server.WithToolCapabilities(true))

	srv.AddTool(s.reviewTool())
	srv.AddTool(s.rewriteTool())
	srv.AddTool(s.whoamiTool())
	srv.AddTool(s.healthTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// ---------------------------------------------------------------------------
// Tool definitions and handlers
// ---------------------------------------------------------------------------

func languageOption() mcp.ToolOption {
	return mcp.WithString("language",
		mcp.Description(fmt.Sprintf("Source language, one of %v. Defaults to %s.", models.Languages, models.DefaultLanguage)))
}

// crev_review
func (s *Server) reviewTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("crev_review",
		mcp.WithDescription("Review a code snippet. Returns JSON with a review text and a list of suggestions. Requires a logged-in crev session."),
		mcp.WithString("code", mcp.Required(), mcp.Description("The code to review")),
		languageOption(),
	)
	return tool, s.handleReview
}

func (s *Server) handleReview(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code, err := request.RequireString("code")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: code"), nil
	}
	res, err := s.reviewer.SubmitReview(ctx, code, request.GetString("language", ""))
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(res)
}

// crev_rewrite
func (s *Server) rewriteTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("crev_rewrite",
		mcp.WithDescription("Rewrite a code snippet with its errors fixed. Returns JSON with rewritten_code and a list of improvements. Requires a logged-in crev session."),
		mcp.WithString("code", mcp.Required(), mcp.Description("The code to rewrite")),
		languageOption(),
	)
	return tool, s.handleRewrite
}

func (s *Server) handleRewrite(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code, err := request.RequireString("code")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: code"), nil
	}
	res, err := s.reviewer.SubmitRewrite(ctx, code, request.GetString("language", ""))
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(res)
}

// crev_whoami
func (s *Server) whoamiTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("crev_whoami",
		mcp.WithDescription("Verify the stored session with the service and return the logged-in user."),
	)
	return tool, s.handleWhoami
}

func (s *Server) handleWhoami(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	u, err := s.identity.RequireSession(ctx)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(u)
}

// crev_health
func (s *Server) healthTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("crev_health",
		mcp.WithDescription("Check whether the review service is reachable and healthy."),
	)
	return tool, s.handleHealth
}

func (s *Server) handleHealth(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out := map[string]any{
		"base_url": s.health.BaseURL(),
		"healthy":  true,
	}
	if err := s.health.Health(ctx); err != nil {
		out["healthy"] = false
		out["error"] = err.Error()
		out["kind"] = errs.KindOf(err).String()
	}
	return jsonResult(out)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// toolError reports a classified failure as a tool error result.
func toolError(err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(fmt.Sprintf("%s error: %s", errs.KindOf(err), err.Error()))
}
