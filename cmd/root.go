package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/andresmejia3/faceseed/internal/config"
	"github.com/andresmejia3/faceseed/internal/event"
	"github.com/andresmejia3/faceseed/internal/store"
	"github.com/andresmejia3/faceseed/internal/utils"
)

var log = event.Log

// Options holds the flags of the generate command
type Options struct {
	InputPath  string
	OutputPath string
	Binary     bool
	Modes      string
	Backend    string
	NoProgress bool
}

var (
	// cfg is loaded once in PersistentPreRunE and shared by subcommands
	cfg *config.Config

	configPath string
	logLevel   string
	logFormat  string
	// dbURL is the connection string, overriding FACESEED_DB and POSTGRES_*
	dbURL string
)

// Version is the application version.
const Version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:           "faceseed",
	Short:         "Face embedding seed generator for per-subject photo folders",
	Version:       Version, // This enables the --version flag
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}

		if cmd.Flags().Changed("log-level") {
			cfg.Log.Level = logLevel
		}
		if cmd.Flags().Changed("log-format") {
			cfg.Log.Format = logFormat
		}
		if dbURL != "" {
			cfg.Database.URL = dbURL
		}

		return event.Configure(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())
	},
}

// reported marks an error that was already shown to the user.
type reported struct{ error }

func (r reported) Unwrap() error { return r.error }

// fail prints the boxed error for a failed command and returns it marked as reported.
func fail(cmd *cobra.Command, msg string, err error) error {
	utils.ShowError(cmd.ErrOrStderr(), msg, err)
	return reported{err}
}

// openStore connects to the configured database. Only publish and reset need one.
func openStore(ctx context.Context) (*store.Store, error) {
	if cfg.Database.URL == "" {
		return nil, errors.New("no database configured (use --db, FACESEED_DB or POSTGRES_HOST)")
	}

	// Use the command's context (which will be cancellable) for the connection
	db, err := store.New(ctx, cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

func Execute() {
	// Create a context that listens for Ctrl+C (SIGINT) or Kill (SIGTERM)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// This tells Cobra not to print the version in the help text, which is cleaner.
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		var r reported
		if !errors.As(err, &r) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "faceseed.yaml", "YAML configuration file (missing file is ignored)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format (text or json)")
	rootCmd.PersistentFlags().StringVar(&dbURL, "db", "", "PostgreSQL connection string (default: FACESEED_DB or POSTGRES_* variables)")
}
