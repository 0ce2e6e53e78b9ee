package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/joescharf/crev/internal/models"
)

// UI provides colored output and respects verbose/dry-run modes.
type UI struct {
	Verbose bool
	DryRun  bool
	Out     io.Writer
	ErrOut  io.Writer
}

// New creates a UI with default stdout/stderr writers.
func New() *UI {
	return &UI{
		Out:    os.Stdout,
		ErrOut: os.Stderr,
	}
}

var (
	infoPrefix    = color.New(color.FgHiBlue).Sprint("i")
	successPrefix = color.New(color.FgHiGreen).Sprint("\u2713")
	warningPrefix = color.New(color.FgHiYellow).Sprint("\u26a0")
	errorPrefix   = color.New(color.FgHiRed).Sprint("\u2717")
	verbosePrefix = color.New(color.FgHiBlue).Sprint("  \u2192")
	cyan          = color.New(color.FgHiCyan).SprintFunc()
	green         = color.New(color.FgHiGreen).SprintFunc()
	yellow        = color.New(color.FgHiYellow).SprintFunc()
	red           = color.New(color.FgHiRed).SprintFunc()
)

// Cyan returns a cyan-colored string.
func Cyan(s string) string { return cyan(s) }

// Green returns a green-colored string.
func Green(s string) string { return green(s) }

// Yellow returns a yellow-colored string.
func Yellow(s string) string { return yellow(s) }

// Red returns a red-colored string.
func Red(s string) string { return red(s) }

// StrengthColor colors a password strength label by its score.
func StrengthColor(score int, label string) string {
	switch {
	case score >= 3:
		return green(label)
	case score == 2:
		return yellow(label)
	default:
		return red(label)
	}
}

// KindColor colors an error kind name: local problems yellow, remote red.
func KindColor(kind string) string {
	switch strings.ToLower(kind) {
	case "validation", "busy":
		return yellow(kind)
	case "auth", "connectivity", "server":
		return red(kind)
	default:
		return kind
	}
}

func (u *UI) Info(format string, a ...any) {
	fmt.Fprintf(u.Out, "%s %s\n", infoPrefix, fmt.Sprintf(format, a...))
}

func (u *UI) Success(format string, a ...any) {
	fmt.Fprintf(u.Out, "%s %s\n", successPrefix, fmt.Sprintf(format, a...))
}

func (u *UI) Warning(format string, a ...any) {
	fmt.Fprintf(u.ErrOut, "%s %s\n", warningPrefix, fmt.Sprintf(format, a...))
}

func (u *UI) Error(format string, a ...any) {
	fmt.Fprintf(u.ErrOut, "%s %s\n", errorPrefix, fmt.Sprintf(format, a...))
}

func (u *UI) VerboseLog(format string, a ...any) {
	if u.Verbose {
		fmt.Fprintf(u.Out, "%s %s\n", verbosePrefix, fmt.Sprintf(format, a...))
	}
}

func (u *UI) DryRunMsg(format string, a ...any) {
	if u.DryRun {
		u.Warning("[DRY-RUN] "+format, a...)
	}
}

// Table creates a new tablewriter configured with consistent styling.
func (u *UI) Table(headers []string) *tablewriter.Table {
	table := tablewriter.NewTable(u.Out,
		tablewriter.WithHeaderAlignment(tw.AlignLeft),
		tablewriter.WithRowAlignment(tw.AlignLeft),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Lines:      tw.LinesNone,
				Separators: tw.SeparatorsNone,
			},
		}),
		tablewriter.WithPadding(tw.Padding{Left: "", Right: "  "}),
	)
	table.Header(headers)
	return table
}

// Review prints a review result: the text, then numbered suggestions.
func (u *UI) Review(r *models.ReviewResult) error {
	fmt.Fprintln(u.Out, cyan("Review"))
	fmt.Fprintln(u.Out, r.Review)
	fmt.Fprintln(u.Out)
	return u.numbered("Suggestion", r.Suggestions)
}

// Rewrite prints a rewrite result: the code, then numbered improvements.
func (u *UI) Rewrite(r *models.RewriteResult) error {
	fmt.Fprintln(u.Out, cyan("Rewritten code"))
	fmt.Fprintln(u.Out, r.RewrittenCode)
	fmt.Fprintln(u.Out)
	return u.numbered("Improvement", r.Improvements)
}

// User prints a profile as key/value rows.
func (u *UI) User(usr *models.User) error {
	table := u.Table([]string{"Field", "Value"})
	created := ""
	if !usr.CreatedAt.IsZero() {
		created = usr.CreatedAt.Local().Format("2006-01-02 15:04")
	}
	rows := [][]string{
		{"ID", fmt.Sprintf("%d", usr.ID)},
		{"Name", usr.Name},
		{"Email", usr.Email},
		{"Created", created},
	}
	for _, r := range rows {
		table.Append(r)
	}
	return table.Render()
}

func (u *UI) numbered(header string, items []string) error {
	if len(items) == 0 {
		return nil
	}
	table := u.Table([]string{"#", header})
	for i, item := range items {
		table.Append([]string{fmt.Sprintf("%d", i+1), item})
	}
	return table.Render()
}
