package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/joescharf/crev/internal/errs"
	"github.com/joescharf/crev/internal/models"
)

// Fallback items used when the model returns no bullet list.
var (
	DefaultSuggestions = []string{
		"Review code structure and organization",
		"Check for proper error handling",
		"Ensure code follows best practices",
	}
	DefaultImprovements = []string{
		"Fixed syntax errors",
		"Code is error-free",
	}
)

var languagePrompts = map[models.Language]string{
	models.LanguagePython:     "Analyze this Python code for syntax, style (PEP 8), best practices, and potential issues.",
	models.LanguageJavaScript: "Analyze this JavaScript code for syntax, ES6+ features, best practices, and potential issues.",
	models.LanguageTypeScript: "Analyze this TypeScript code for syntax, typing, best practices, and potential issues.",
	models.LanguageJava:       "Analyze this Java code for syntax, conventions, best practices, and potential issues.",
	models.LanguageCPP:        "Analyze this C++ code for syntax, modern C++ practices, memory management, and potential issues.",
	models.LanguageC:          "Analyze this C code for syntax, memory management, best practices, and potential issues.",
	models.LanguageGo:         "Analyze this Go code for syntax, idiomatic style, error handling, and potential issues.",
	models.LanguageRust:       "Analyze this Rust code for syntax, ownership and borrowing, best practices, and potential issues.",
	models.LanguageHTML:       "Analyze this HTML code for structure, accessibility, best practices, and potential issues.",
	models.LanguageCSS:        "Analyze this CSS code for syntax, layout, responsiveness, best practices, and potential issues.",
}

const defaultLanguagePrompt = "Analyze this code for syntax, best practices, and potential issues."

// Client wraps the Anthropic API as a review and rewrite transport.
type Client struct {
	api   *anthropic.Client
	model anthropic.Model
}

// NewClient creates an LLM client with the given API key and model.
func NewClient(apiKey, model string) *Client {
	opts := []option.RequestOption{}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	client := anthropic.NewClient(opts...)
	return &Client{
		api:   &client,
		model: anthropic.Model(model),
	}
}

// buildReviewPrompt constructs the system and user prompts for a review.
func buildReviewPrompt(req models.CodeRequest) (system string, user string) {
	system = "You are an expert code reviewer. Provide detailed, constructive feedback on code quality, best practices, and potential improvements."

	intro, ok := languagePrompts[req.Language]
	if !ok {
		intro = defaultLanguagePrompt
	}

	var sb strings.Builder
	sb.WriteString(intro)
	sb.WriteString("\n\nCode:\n```")
	sb.WriteString(string(req.Language))
	sb.WriteString("\n")
	sb.WriteString(req.Code)
	sb.WriteString("\n```\n\n")
	sb.WriteString(`Provide a concise review in this format:
REVIEW: [Your review text here]

SUGGESTIONS:
- [Suggestion 1]
- [Suggestion 2]
- [Suggestion 3]

Keep it brief and focused on the most important points.`)
	user = sb.String()
	return
}

// buildRewritePrompt constructs the system and user prompts for a rewrite.
func buildRewritePrompt(req models.CodeRequest) (system string, user string) {
	system = `Fix code errors. Return the corrected code first, with no commentary before it.
Optionally follow it with a line "Improvements:" and one "- " bullet per change.`

	var sb strings.Builder
	sb.WriteString("Fix errors in this ")
	sb.WriteString(string(req.Language))
	sb.WriteString(" code.\n\nInput:\n")
	sb.WriteString(req.Code)
	sb.WriteString("\n")
	user = sb.String()
	return
}

// Review asks the model for a review. The token is not used; the API key
// authenticates the call.
func (c *Client) Review(ctx context.Context, _ string, req models.CodeRequest) (*models.ReviewResult, error) {
	systemPrompt, userPrompt := buildReviewPrompt(req)
	text, err := c.complete(ctx, systemPrompt, userPrompt, 1000)
	if err != nil {
		return nil, err
	}
	return parseReview(text), nil
}

// Rewrite asks the model for a corrected version of the code.
func (c *Client) Rewrite(ctx context.Context, _ string, req models.CodeRequest) (*models.RewriteResult, error) {
	systemPrompt, userPrompt := buildRewritePrompt(req)
	text, err := c.complete(ctx, systemPrompt, userPrompt, 1500)
	if err != nil {
		return nil, err
	}
	return parseRewrite(text), nil
}

func (c *Client) complete(ctx context.Context, system, user string, maxTokens int64) (string, error) {
	msg, err := c.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	})
	if err != nil {
		return "", classifyAPIError(err)
	}

	// Extract text from response
	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}
	if text == "" {
		return "", errs.Server(0, "no text content in API response")
	}
	return text, nil
}

// MsgKeyRejected is reported when the API refuses the configured key.
const MsgKeyRejected = "Anthropic API key rejected. Check anthropic.api_key or ANTHROPIC_API_KEY."

// UsesSession reports false: the client authenticates with its API key and
// ignores the service session token.
func (c *Client) UsesSession() bool { return false }

// classifyAPIError maps SDK failures onto the error taxonomy. API errors carry
// a status; anything else never got a response.
func classifyAPIError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden {
			e := errs.Auth(apiErr.StatusCode, MsgKeyRejected)
			e.Err = err
			return e
		}
		e := errs.Server(apiErr.StatusCode, fmt.Sprintf("anthropic API call: %s", apiErr.Error()))
		e.Err = err
		return e
	}
	return errs.Connectivity(fmt.Sprintf("anthropic API call: %v", err), err)
}

// parseReview splits a REVIEW:/SUGGESTIONS: response.
func parseReview(text string) *models.ReviewResult {
	review := strings.TrimSpace(text)
	if _, after, ok := strings.Cut(text, "REVIEW:"); ok {
		before, _, _ := strings.Cut(after, "SUGGESTIONS:")
		review = strings.TrimSpace(before)
	}

	var suggestions []string
	if _, after, ok := strings.Cut(text, "SUGGESTIONS:"); ok {
		suggestions = bullets(after)
	}
	if len(suggestions) == 0 {
		suggestions = append([]string(nil), DefaultSuggestions...)
	}
	return &models.ReviewResult{Review: review, Suggestions: suggestions}
}

// parseRewrite separates the code from an optional Improvements: list.
func parseRewrite(text string) *models.RewriteResult {
	code, tail, found := strings.Cut(text, "Improvements:")
	var improvements []string
	if found {
		improvements = bullets(tail)
	}
	if len(improvements) == 0 {
		improvements = append([]string(nil), DefaultImprovements...)
	}
	return &models.RewriteResult{RewrittenCode: stripFence(code), Improvements: improvements}
}

// bullets returns the "-" or "*" items in s, in order.
func bullets(s string) []string {
	var items []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "-") || strings.HasPrefix(line, "*") {
			if item := strings.TrimSpace(line[1:]); item != "" {
				items = append(items, item)
			}
		}
	}
	return items
}

// stripFence removes a surrounding markdown code fence, if present.
func stripFence(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		lines := strings.SplitN(text, "\n", 2)
		if len(lines) > 1 {
			text = lines[1]
		} else {
			text = ""
		}
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}
	return text
}
