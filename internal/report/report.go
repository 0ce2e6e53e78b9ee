// Package report produces the exportable forms of a review or rewrite:
// clipboard text, the downloadable report, share text, and rendered output.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/joescharf/crev/internal/models"
)

// ShareLimit is how many characters of the review go into share text.
const ShareLimit = 200

// Format selects how Render writes a document.
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
)

// ParseFormat validates a --format value. Empty means text.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatText, nil
	case FormatText, FormatMarkdown, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unknown format: %s (use: text, markdown, json)", s)
	}
}

// Document is one result together with the request that produced it.
// Exactly one of Review and Rewrite is set.
type Document struct {
	Language    models.Language       `json:"language"`
	Code        string                `json:"code,omitempty"`
	Review      *models.ReviewResult  `json:"review,omitempty"`
	Rewrite     *models.RewriteResult `json:"rewrite,omitempty"`
	Share       string                `json:"share,omitempty"`
	GeneratedAt time.Time             `json:"generated_at"`
}

// CopyText is the clipboard form of a review.
func CopyText(r *models.ReviewResult) string {
	return fmt.Sprintf("AI Code Review\n\n%s\n\nSuggestions:\n%s", r.Review, strings.Join(r.Suggestions, "\n"))
}

// RewriteCopyText is the clipboard form of a rewrite: the code alone.
func RewriteCopyText(r *models.RewriteResult) string {
	return r.RewrittenCode
}

// ReportText is the downloadable plain-text report for a review.
func ReportText(r *models.ReviewResult, code string, lang models.Language, at time.Time) string {
	var sb strings.Builder
	sb.WriteString("AI Code Review Report\n")
	sb.WriteString("========================\n")
	fmt.Fprintf(&sb, "Language: %s\n", lang)
	fmt.Fprintf(&sb, "Date: %s\n\n", at.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&sb, "Code:\n%s\n\n", code)
	fmt.Fprintf(&sb, "Review:\n%s\n\n", r.Review)
	fmt.Fprintf(&sb, "Suggestions:\n%s", strings.Join(r.Suggestions, "\n"))
	return sb.String()
}

// ShareText is a short teaser of the review. The first ShareLimit characters
// are kept and "..." is always appended.
func ShareText(r *models.ReviewResult) string {
	runes := []rune(r.Review)
	if len(runes) > ShareLimit {
		runes = runes[:ShareLimit]
	}
	return "Check out this AI code review:\n\n" + string(runes) + "..."
}

// languageExt is the source file extension written for rewritten code.
var languageExt = map[models.Language]string{
	models.LanguagePython:     ".py",
	models.LanguageJavaScript: ".js",
	models.LanguageTypeScript: ".ts",
	models.LanguageJava:       ".java",
	models.LanguageCPP:        ".cpp",
	models.LanguageC:          ".c",
	models.LanguageGo:         ".go",
	models.LanguageRust:       ".rs",
	models.LanguageHTML:       ".html",
	models.LanguageCSS:        ".css",
}

func fileID(at time.Time) string {
	entropy := rand.New(rand.NewSource(at.UnixNano()))
	return strings.ToLower(ulid.MustNew(ulid.Timestamp(at), ulid.Monotonic(entropy, 0)).String())
}

// Filename returns a unique report file name ordered by time.
func Filename(at time.Time) string {
	return fmt.Sprintf("code-review-%s.txt", fileID(at))
}

// RewriteFilename returns a unique file name for rewritten code, with the
// extension of lang (.txt when unknown).
func RewriteFilename(at time.Time, lang models.Language) string {
	ext, ok := languageExt[lang]
	if !ok {
		ext = ".txt"
	}
	return fmt.Sprintf("rewritten-code-%s%s", fileID(at), ext)
}

// Render writes doc to w in the given format.
func Render(w io.Writer, format Format, doc Document) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case FormatMarkdown:
		return renderMarkdown(w, doc)
	case FormatText, "":
		return renderText(w, doc)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

func renderText(w io.Writer, doc Document) error {
	switch {
	case doc.Review != nil:
		_, err := fmt.Fprintln(w, CopyText(doc.Review))
		return err
	case doc.Rewrite != nil:
		fmt.Fprintln(w, RewriteCopyText(doc.Rewrite))
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Improvements:")
		for _, item := range doc.Rewrite.Improvements {
			fmt.Fprintf(w, "- %s\n", item)
		}
		return nil
	default:
		return fmt.Errorf("empty document")
	}
}

func renderMarkdown(w io.Writer, doc Document) error {
	switch {
	case doc.Review != nil:
		fmt.Fprintln(w, "# AI Code Review")
		fmt.Fprintln(w)
		fmt.Fprintf(w, "_Language: %s_\n\n", doc.Language)
		fmt.Fprintln(w, "## Review")
		fmt.Fprintln(w)
		fmt.Fprintln(w, doc.Review.Review)
		fmt.Fprintln(w)
		fmt.Fprintln(w, "## Suggestions")
		fmt.Fprintln(w)
		for _, s := range doc.Review.Suggestions {
			fmt.Fprintf(w, "- %s\n", s)
		}
		return nil
	case doc.Rewrite != nil:
		fmt.Fprintln(w, "# AI Code Rewrite")
		fmt.Fprintln(w)
		fmt.Fprintf(w, "```%s\n%s\n```\n\n", doc.Language, doc.Rewrite.RewrittenCode)
		fmt.Fprintln(w, "## Improvements")
		fmt.Fprintln(w)
		for _, s := range doc.Rewrite.Improvements {
			fmt.Fprintf(w, "- %s\n", s)
		}
		return nil
	default:
		return fmt.Errorf("empty document")
	}
}
