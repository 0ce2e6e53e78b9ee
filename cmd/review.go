package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/crev/internal/models"
	"github.com/joescharf/crev/internal/output"
	"github.com/joescharf/crev/internal/report"
)

var (
	codeFile     string
	codeLanguage string
	codeFormat   string
	codeOut      string
	codeShare    bool
)

var reviewCmd = &cobra.Command{
	Use:   "review [file]",
	Short: "Review code",
	Long: `Send code for review and show the review with suggestions.

Code is read from the file argument (or --file), or from stdin when no
file is given or the file is "-". The language defaults to the file
extension, then to review.language.

With --out a plain-text report is written; pass a directory to get a
generated code-review-<id>.txt name. With --format json the share text is
part of the document and status lines go to stderr.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return reviewRun(cmd, args)
	},
}

var rewriteCmd = &cobra.Command{
	Use:   "rewrite [file]",
	Short: "Rewrite code with errors fixed",
	Long: `Send code to be corrected and show the rewritten code with the list
of improvements. With --out the rewritten code alone is written to a file;
pass a directory to get a generated rewritten-code-<id> name with the
language's extension.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return rewriteRun(cmd, args)
	},
}

func init() {
	for _, c := range []*cobra.Command{reviewCmd, rewriteCmd} {
		c.Flags().StringVarP(&codeFile, "file", "f", "", "Read code from file (default: stdin)")
		c.Flags().StringVarP(&codeLanguage, "language", "l", "", fmt.Sprintf("Code language: %s", languageList()))
		c.Flags().StringVar(&codeFormat, "format", "text", "Output format: text, markdown, json")
		c.Flags().StringVarP(&codeOut, "out", "o", "", "Write the result to a file")
	}
	reviewCmd.Flags().BoolVar(&codeShare, "share", false, "Also print short share text")

	rootCmd.AddCommand(reviewCmd)
	rootCmd.AddCommand(rewriteCmd)
}

func languageList() string {
	names := make([]string, len(models.Languages))
	for i, l := range models.Languages {
		names[i] = string(l)
	}
	return strings.Join(names, ", ")
}

// extLanguages maps file extensions to languages.
var extLanguages = map[string]models.Language{
	".py":   models.LanguagePython,
	".js":   models.LanguageJavaScript,
	".mjs":  models.LanguageJavaScript,
	".jsx":  models.LanguageJavaScript,
	".ts":   models.LanguageTypeScript,
	".tsx":  models.LanguageTypeScript,
	".java": models.LanguageJava,
	".cpp":  models.LanguageCPP,
	".cc":   models.LanguageCPP,
	".cxx":  models.LanguageCPP,
	".hpp":  models.LanguageCPP,
	".c":    models.LanguageC,
	".h":    models.LanguageC,
	".go":   models.LanguageGo,
	".rs":   models.LanguageRust,
	".html": models.LanguageHTML,
	".htm":  models.LanguageHTML,
	".css":  models.LanguageCSS,
}

// codeInput is the code and language to submit.
type codeInput struct {
	code     string
	language string
}

// readCodeInput resolves the source and language from args and flags.
func readCodeInput(stdin io.Reader, args []string) (codeInput, error) {
	path := codeFile
	if len(args) > 0 {
		path = args[0]
	}

	var data []byte
	var err error
	if path == "" || path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return codeInput{}, fmt.Errorf("read code: %w", err)
	}

	lang := codeLanguage
	if lang == "" && path != "" && path != "-" {
		if l, ok := extLanguages[strings.ToLower(filepath.Ext(path))]; ok {
			lang = string(l)
		}
	}
	if lang == "" {
		lang = viper.GetString("review.language")
	}
	return codeInput{code: string(data), language: lang}, nil
}

// outputPath resolves --out. A directory gets the generated name.
func outputPath(out, name string) string {
	if info, err := os.Stat(out); err == nil && info.IsDir() {
		return filepath.Join(out, name)
	}
	return out
}

// statusUI returns the UI for status lines. JSON output keeps stdout to the
// document alone.
func statusUI(format report.Format) *output.UI {
	if format != report.FormatJSON {
		return ui
	}
	u := *ui
	u.Out = ui.ErrOut
	return &u
}

func writeOutput(u *output.UI, path, content string) error {
	if dryRun {
		u.DryRunMsg("Would write %s", path)
		return nil
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	u.Success("Saved to %s", path)
	return nil
}

func reviewRun(cmd *cobra.Command, args []string) error {
	format, err := report.ParseFormat(codeFormat)
	if err != nil {
		return err
	}
	in, err := readCodeInput(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}
	o, err := newOrchestrator()
	if err != nil {
		return err
	}

	ui.VerboseLog("Reviewing %s code...", in.language)
	res, err := o.SubmitReview(commandContext(cmd), in.code, in.language)
	if err != nil {
		return err
	}

	lang, _ := models.ParseLanguage(in.language)
	at := time.Now()
	if format == report.FormatText {
		if err := ui.Review(res); err != nil {
			return err
		}
	} else {
		doc := report.Document{Language: lang, Code: strings.TrimSpace(in.code), Review: res, GeneratedAt: at}
		if codeShare && format == report.FormatJSON {
			doc.Share = report.ShareText(res)
		}
		if err := report.Render(ui.Out, format, doc); err != nil {
			return err
		}
	}

	if codeShare && format != report.FormatJSON {
		fmt.Fprintln(ui.Out)
		fmt.Fprintln(ui.Out, report.ShareText(res))
	}

	if codeOut != "" {
		path := outputPath(codeOut, report.Filename(at))
		return writeOutput(statusUI(format), path, report.ReportText(res, strings.TrimSpace(in.code), lang, at))
	}
	return nil
}

func rewriteRun(cmd *cobra.Command, args []string) error {
	format, err := report.ParseFormat(codeFormat)
	if err != nil {
		return err
	}
	in, err := readCodeInput(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}
	o, err := newOrchestrator()
	if err != nil {
		return err
	}

	ui.VerboseLog("Rewriting %s code...", in.language)
	res, err := o.SubmitRewrite(commandContext(cmd), in.code, in.language)
	if err != nil {
		return err
	}

	lang, _ := models.ParseLanguage(in.language)
	at := time.Now()
	if format == report.FormatText {
		if err := ui.Rewrite(res); err != nil {
			return err
		}
	} else {
		doc := report.Document{Language: lang, Code: strings.TrimSpace(in.code), Rewrite: res, GeneratedAt: at}
		if err := report.Render(ui.Out, format, doc); err != nil {
			return err
		}
	}

	if codeOut != "" {
		path := outputPath(codeOut, report.RewriteFilename(at, lang))
		return writeOutput(statusUI(format), path, report.RewriteCopyText(res)+"\n")
	}
	return nil
}
