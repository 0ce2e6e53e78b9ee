package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/crev/internal/errs"
	"github.com/joescharf/crev/internal/models"
)

// ---------------------------------------------------------------------------
// Mock implementations
// ---------------------------------------------------------------------------

type mockReviewer struct {
	review  *models.ReviewResult
	rewrite *models.RewriteResult
	err     error

	gotCode     string
	gotLanguage string
}

func (m *mockReviewer) SubmitReview(_ context.Context, code, language string) (*models.ReviewResult, error) {
	m.gotCode, m.gotLanguage = code, language
	if m.err != nil {
		return nil, m.err
	}
	return m.review, nil
}

func (m *mockReviewer) SubmitRewrite(_ context.Context, code, language string) (*models.RewriteResult, error) {
	m.gotCode, m.gotLanguage = code, language
	if m.err != nil {
		return nil, m.err
	}
	return m.rewrite, nil
}

type mockIdentity struct {
	user *models.User
	err  error
}

func (m *mockIdentity) RequireSession(context.Context) (*models.User, error) {
	return m.user, m.err
}

type mockHealth struct {
	err error
}

func (m *mockHealth) Health(context.Context) error { return m.err }
func (m *mockHealth) BaseURL() string              { return "http://127.0.0.1:8000" }

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func newTestServer(t *testing.T) (*Server, *mockReviewer, *mockIdentity, *mockHealth) {
	t.Helper()
	r := &mockReviewer{}
	id := &mockIdentity{}
	h := &mockHealth{}
	return NewServer(r, id, h, "test"), r, id, h
}

func callToolReq(name string, args map[string]any) mcpgo.CallToolRequest {
	return mcpgo.CallToolRequest{
		Params: mcpgo.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

// resultText extracts the concatenated text from a CallToolResult.
func resultText(t *testing.T, result *mcpgo.CallToolResult) string {
	t.Helper()
	var b strings.Builder
	for _, c := range result.Content {
		tc, ok := c.(mcpgo.TextContent)
		if ok {
			b.WriteString(tc.Text)
		}
	}
	return b.String()
}

// resultJSON parses the text result as JSON into the provided target.
func resultJSON(t *testing.T, result *mcpgo.CallToolResult, target any) {
	t.Helper()
	text := resultText(t, result)
	err := json.Unmarshal([]byte(text), target)
	require.NoError(t, err, "failed to parse result JSON: %s", text)
}

// ---------------------------------------------------------------------------
// crev_review / crev_rewrite
// ---------------------------------------------------------------------------

func TestHandleReview(t *testing.T) {
	srv, r, _, _ := newTestServer(t)
	r.review = &models.ReviewResult{Review: "fine", Suggestions: []string{"a"}}

	result, err := srv.handleReview(context.Background(), callToolReq("crev_review", map[string]any{
		"code":     "print(1)",
		"language": "python",
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var got models.ReviewResult
	resultJSON(t, result, &got)
	assert.Equal(t, "fine", got.Review)
	assert.Equal(t, []string{"a"}, got.Suggestions)
	assert.Equal(t, "print(1)", r.gotCode)
	assert.Equal(t, "python", r.gotLanguage)
}

func TestHandleReview_MissingCode(t *testing.T) {
	srv, _, _, _ := newTestServer(t)

	result, err := srv.handleReview(context.Background(), callToolReq("crev_review", map[string]any{}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "code")
}

func TestHandleReview_ClassifiedError(t *testing.T) {
	srv, r, _, _ := newTestServer(t)
	r.err = errs.Auth(401, "Please log in first")

	result, err := srv.handleReview(context.Background(), callToolReq("crev_review", map[string]any{"code": "x"}))
	require.NoError(t, err, "failures are tool results, not protocol errors")
	assert.True(t, result.IsError)
	assert.Equal(t, "auth error: Please log in first", resultText(t, result))
}

func TestHandleRewrite(t *testing.T) {
	srv, r, _, _ := newTestServer(t)
	r.rewrite = &models.RewriteResult{RewrittenCode: "x = 1", Improvements: []string{"spacing"}}

	result, err := srv.handleRewrite(context.Background(), callToolReq("crev_rewrite", map[string]any{"code": "x=1"}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var got map[string]any
	resultJSON(t, result, &got)
	assert.Equal(t, "x = 1", got["rewritten_code"])
	assert.Equal(t, "", r.gotLanguage)
}

func TestHandleRewrite_Busy(t *testing.T) {
	srv, r, _, _ := newTestServer(t)
	r.err = errs.Busy("rewrite")

	result, err := srv.handleRewrite(context.Background(), callToolReq("crev_rewrite", map[string]any{"code": "x"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "busy error")
}

// ---------------------------------------------------------------------------
// crev_whoami / crev_health
// ---------------------------------------------------------------------------

func TestHandleWhoami(t *testing.T) {
	srv, _, id, _ := newTestServer(t)
	id.user = &models.User{ID: 1, Email: "demo@example.com", Name: "Demo"}

	result, err := srv.handleWhoami(context.Background(), callToolReq("crev_whoami", nil))
	require.NoError(t, err)

	var got map[string]any
	resultJSON(t, result, &got)
	assert.Equal(t, "demo@example.com", got["email"])
}

func TestHandleWhoami_NotLoggedIn(t *testing.T) {
	srv, _, id, _ := newTestServer(t)
	id.err = errs.Auth(0, "Please log in first")

	result, err := srv.handleWhoami(context.Background(), callToolReq("crev_whoami", nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleHealth(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		srv, _, _, _ := newTestServer(t)
		result, err := srv.handleHealth(context.Background(), callToolReq("crev_health", nil))
		require.NoError(t, err)

		var got map[string]any
		resultJSON(t, result, &got)
		assert.Equal(t, true, got["healthy"])
		assert.Equal(t, "http://127.0.0.1:8000", got["base_url"])
	})

	t.Run("unreachable", func(t *testing.T) {
		srv, _, _, h := newTestServer(t)
		h.err = errs.Connectivity("Network error. Please try again.", nil)
		result, err := srv.handleHealth(context.Background(), callToolReq("crev_health", nil))
		require.NoError(t, err)

		var got map[string]any
		resultJSON(t, result, &got)
		assert.Equal(t, false, got["healthy"])
		assert.Equal(t, "connectivity", got["kind"])
	})
}

// ---------------------------------------------------------------------------
// Registration
// ---------------------------------------------------------------------------

func TestMCPIntegration_ListTools(t *testing.T) {
	srv, _, _, _ := newTestServer(t)

	mcpSrv := srv.MCPServer()
	require.NotNil(t, mcpSrv)

	// Call tools/list via HandleMessage to verify registration.
	ctx := context.Background()
	reqJSON := []byte(`{"jsonrpc":"2.0","id":1,"method":"tools/list","params":{}}`)
	respMsg := mcpSrv.HandleMessage(ctx, reqJSON)
	require.NotNil(t, respMsg)

	respBytes, err := json.Marshal(respMsg)
	require.NoError(t, err)

	var rpcResp struct {
		Result struct {
			Tools []struct {
				Name string `json:"name"`
			} `json:"tools"`
		} `json:"result"`
	}
	err = json.Unmarshal(respBytes, &rpcResp)
	require.NoError(t, err)

	toolNames := make(map[string]bool)
	for _, tool := range rpcResp.Result.Tools {
		toolNames[tool.Name] = true
	}

	for _, name := range []string{"crev_review", "crev_rewrite", "crev_whoami", "crev_health"} {
		assert.True(t, toolNames[name], "expected tool %q to be registered", name)
	}
}

// Compile-time interface checks for mocks.
var (
	_ Reviewer      = (*mockReviewer)(nil)
	_ Identity      = (*mockIdentity)(nil)
	_ HealthChecker = (*mockHealth)(nil)
)
