package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/crev/internal/auth"
	"github.com/joescharf/crev/internal/backend"
	"github.com/joescharf/crev/internal/errs"
	"github.com/joescharf/crev/internal/output"
	"github.com/joescharf/crev/internal/review"
	"github.com/joescharf/crev/internal/session"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui           *output.UI
	sessionStore session.Store

	verbose bool
	dryRun  bool
)

var rootCmd = &cobra.Command{
	Use:   "crev",
	Short: "AI code review from the terminal",
	Long: `crev sends code to an AI code review service and shows the review,
suggested improvements, or a corrected rewrite.

Log in once with 'crev login'; the session is kept locally until you
log out or the service rejects it.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	if err := rootCmd.Execute(); err != nil {
		if ui != nil {
			ui.Error("%v", err)
			ui.VerboseLog("error kind: %s", errs.KindOf(err))
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return rootRun(cmd)
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would happen without making changes")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/crev/config.yaml)")
}

func initConfig() {
	// If --config is explicitly set, use that file
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}

		configDir := filepath.Join(home, ".config", "crev")
		viper.AddConfigPath(configDir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("CREV")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

// setDefaults registers every config key with its default.
func setDefaults() {
	home, _ := os.UserHomeDir()
	defaultConfigDir := filepath.Join(home, ".config", "crev")

	viper.SetDefault("api.base_url", backend.DefaultBaseURL)
	viper.SetDefault("api.timeout", backend.DefaultTimeout)
	viper.SetDefault("db_path", filepath.Join(defaultConfigDir, "crev.db"))
	viper.SetDefault("transport", transportBackend)
	viper.SetDefault("anthropic.api_key", "")
	viper.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	viper.SetDefault("review.language", "python")
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose
	ui.DryRun = dryRun

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	// The session store is opened lazily, only when a command needs it.
	// This allows config/version commands to run without a db.
}

// rootRun handles `crev` with no subcommand: report the session state, then
// show help.
func rootRun(cmd *cobra.Command) error {
	g, err := newGateway()
	if err != nil {
		return cmd.Help()
	}

	check, err := g.CheckSession(commandContext(cmd))
	if err != nil {
		return cmd.Help()
	}
	switch check.State {
	case auth.Authenticated:
		ui.Success("Logged in as %s", output.Cyan(check.User.Email))
	case auth.Unauthenticated:
		ui.Warning("Session expired. Run 'crev login' to sign in again.")
	default:
		ui.Info("Not logged in. Run 'crev login' or 'crev signup'.")
	}
	fmt.Fprintln(ui.Out)
	return cmd.Help()
}

// commandContext returns the command's context, or Background when the
// command is invoked directly from a test.
func commandContext(cmd *cobra.Command) context.Context {
	if cmd != nil && cmd.Context() != nil {
		return cmd.Context()
	}
	return context.Background()
}

// getStore returns the shared session store, initializing it on first call.
func getStore() (session.Store, error) {
	if sessionStore != nil {
		return sessionStore, nil
	}

	dbPath := viper.GetString("db_path")
	s, err := session.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open session database: %w", err)
	}

	if err := s.Migrate(context.Background()); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate session database: %w", err)
	}

	sessionStore = s
	return sessionStore, nil
}

// newBackendClient creates the service client from config.
func newBackendClient() *backend.Client {
	return backend.NewClient(viper.GetString("api.base_url"), viper.GetDuration("api.timeout"))
}

// newGateway wires the auth gateway to the service and the session store.
func newGateway() (*auth.Gateway, error) {
	s, err := getStore()
	if err != nil {
		return nil, err
	}
	return auth.NewGateway(newBackendClient(), s), nil
}

// newOrchestrator wires the review orchestrator to the configured transport.
func newOrchestrator() (*review.Orchestrator, error) {
	s, err := getStore()
	if err != nil {
		return nil, err
	}
	t, target, err := newTransport()
	if err != nil {
		return nil, err
	}
	return review.NewOrchestrator(t, s, target), nil
}
