// Package cli provides the command-line interface for askdata.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/askdata/askdata/internal/bus"
	"github.com/askdata/askdata/internal/config"
	"github.com/askdata/askdata/internal/db"
	"github.com/askdata/askdata/internal/diag"
	"github.com/askdata/askdata/internal/flags"
	"github.com/askdata/askdata/internal/gateway"
	"github.com/askdata/askdata/internal/reports"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose bool

	// Global wiring, built in PersistentPreRunE
	cfg         config.Config
	logger      *slog.Logger
	logCleanup  func() error
	appBus      *bus.Bus
	diagRec     *diag.Recorder
	flagStore   *flags.Store
	gw          *gateway.Gateway
	dbClient    *db.Client
	reportStore reports.Store
	recorder    *reports.Recorder
	watchCancel context.CancelFunc
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "askdata",
	Short: "Converse with your datasets",
	Long: `Askdata lets you upload datasets and analyze them by asking questions
in plain language. The backend answers directly, asks a clarifying
question, or requests queries whose results it then summarizes.

With demo mode on, everything is served from built-in sample data and
no backend is needed.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		cfg = config.Load()

		level := cfg.LogLevel
		if verbose {
			level = slog.LevelDebug
		}
		logger, logCleanup = config.SetupLogger(cfg.LogFile, level)
		slog.SetDefault(logger)

		// The sample backend only needs config and logging.
		if cmd.Name() == "serve" {
			return nil
		}

		appBus = bus.New()
		diagRec = diag.NewRecorder()

		var err error
		flagStore, err = flags.Open(cfg.SettingsDir, appBus, logger)
		if err != nil {
			return fmt.Errorf("open settings: %w", err)
		}

		// Follow settings written by other processes for the lifetime of this
		// invocation.
		var watchCtx context.Context
		watchCtx, watchCancel = context.WithCancel(context.Background())
		go func() {
			if err := flagStore.Watch(watchCtx); err != nil && watchCtx.Err() == nil {
				logger.Warn("settings watcher stopped", "error", err)
			}
		}()

		gw = gateway.New(flagStore, diagRec, logger, gateway.Options{
			BaseURL:        cfg.BackendURL,
			RequestTimeout: cfg.RequestTimeout,
			HealthAttempts: cfg.HealthAttempts,
			HealthDelay:    cfg.HealthDelay,
		})

		// Reports live in SurrealDB when configured, in memory otherwise.
		if cfg.SurrealDBURL != "" {
			dbClient, err = db.NewClient(context.Background(), db.Config{
				URL:       cfg.SurrealDBURL,
				Namespace: cfg.SurrealDBNamespace,
				Database:  cfg.SurrealDBDatabase,
				Username:  cfg.SurrealDBUser,
				Password:  cfg.SurrealDBPass,
				AuthLevel: cfg.SurrealDBAuthLevel,
			}, logger)
			if err != nil {
				return fmt.Errorf("connect to database: %w", err)
			}
			if err := dbClient.InitSchema(context.Background()); err != nil {
				return fmt.Errorf("initialize schema: %w", err)
			}
			reportStore = reports.NewSurrealStore(dbClient)
		} else {
			reportStore = reports.NewMemoryStore()
		}
		recorder = reports.NewRecorder(reportStore, flagStore, diagRec, logger)

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if watchCancel != nil {
			watchCancel()
		}
		if gw != nil {
			gw.Close()
		}
		if dbClient != nil {
			if err := dbClient.Close(context.Background()); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
			}
		}
		if logCleanup != nil {
			_ = logCleanup()
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(datasetsCmd)
	rootCmd.AddCommand(jobsCmd)
	rootCmd.AddCommand(reportsCmd)
	rootCmd.AddCommand(flagsCmd)
	rootCmd.AddCommand(diagCmd)
	rootCmd.AddCommand(serveCmd)
}
