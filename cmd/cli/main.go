package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/shift-selector/cmd/cli/commands"
	"github.com/jakechorley/shift-selector/internal/config"
	"github.com/jakechorley/shift-selector/pkg/clients/sheetsclient"
	"github.com/jakechorley/shift-selector/pkg/core/directory"
	"github.com/jakechorley/shift-selector/pkg/core/recounter"
	"github.com/jakechorley/shift-selector/pkg/core/services"
	"github.com/jakechorley/shift-selector/pkg/db"
	"github.com/jakechorley/shift-selector/pkg/postgres"
	"github.com/jakechorley/shift-selector/pkg/utils"
	"github.com/jakechorley/shift-selector/pkg/utils/logging"
)

var (
	env    string
	logDir string
	app    *commands.AppContext
	pgDB   *postgres.DB
)

func main() {
	app = &commands.AppContext{Ctx: context.Background()}

	rootCmd := &cobra.Command{
		Use:   "shift-selector",
		Short: "Shift selector - claim volunteer shifts in a shared spreadsheet",
		Long:  `An HTTP API and CLI for claiming and releasing shifts in the schedule sheet, authenticated against the directory sheet.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initApp()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if pgDB != nil {
				pgDB.Close()
			}
			if app.Logger != nil {
				app.Logger.Sync()
			}
		},
	}

	// Add persistent flags
	rootCmd.PersistentFlags().StringVarP(&env, "env", "e", "", "Environment (required: test, prod, etc.)")
	rootCmd.PersistentFlags().StringVar(&logDir, "log-dir", ".", "Directory the logs/ folder is created in")
	rootCmd.MarkPersistentFlagRequired("env")

	// Add all commands
	rootCmd.AddCommand(commands.ServeCmd(app))
	rootCmd.AddCommand(commands.RecountCmd(app))
	rootCmd.AddCommand(commands.WhoamiCmd(app))
	rootCmd.AddCommand(commands.CheckShiftCmd(app))
	rootCmd.AddCommand(commands.HistoryCmd(app))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// initApp sets up logger, config, clients, journal and the claim engine
func initApp() error {
	var err error

	// Initialize logger
	app.Logger, err = logging.InitLogger(env, logDir)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	app.Logger.Info("Starting application", zap.String("environment", env))

	// Load configuration
	app.Logger.Info("Loading configuration")
	app.Cfg, err = config.LoadWithEnv(env)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	app.Logger.Debug("Configuration loaded successfully")

	// Initialize sheets client
	app.Logger.Info("Initializing sheets client")
	httpClient, err := utils.NewHTTPClient(app.Ctx, app.Cfg.Credentials, env, app.Logger)
	if err != nil {
		return fmt.Errorf("failed to authorize sheets access: %w", err)
	}
	app.SheetsClient, err = sheetsclient.NewClient(app.Ctx, httpClient, app.Cfg.UpstreamTimeout)
	if err != nil {
		return fmt.Errorf("failed to create sheets client: %w", err)
	}
	app.Logger.Debug("Sheets client initialized successfully")

	// Directory
	resolver := directory.NewResolver(app.SheetsClient, app.Cfg.Directory, app.Logger)
	app.Directory = directory.NewCache(resolver, app.Cfg.Directory.CacheTTL)

	// Claim journal
	app.Logger.Info("Initializing claim journal", zap.String("backend", app.Cfg.Journal.Backend))
	app.Journal, err = newJournal()
	if err != nil {
		return err
	}

	// Recount queue, started by serve
	app.Recounts = recounter.NewQueue(app.Recount, recounter.Options{
		Workers:     app.Cfg.Recount.Workers,
		QueueSize:   app.Cfg.Recount.QueueSize,
		MaxAttempts: app.Cfg.Recount.MaxAttempts,
	}, app.Logger)

	app.Engine, err = services.NewClaimEngine(app.SheetsClient, app.Cfg, app.Recounts, app.Journal, app.Logger)
	if err != nil {
		return fmt.Errorf("failed to create claim engine: %w", err)
	}

	return nil
}

func newJournal() (db.ClaimJournal, error) {
	switch app.Cfg.Journal.Backend {
	case "sheets":
		journal, err := db.NewSheetsJournal(app.Ctx, app.SheetsClient, app.Cfg.Schedule.SheetID, app.Cfg.Journal.Tab)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize sheets journal: %w", err)
		}
		return journal, nil

	case "postgres":
		var err error
		pgDB, err = postgres.NewDB(app.Ctx, app.Cfg.Journal.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to journal database: %w", err)
		}
		if err := pgDB.RunMigrations(app.Ctx); err != nil {
			return nil, fmt.Errorf("failed to migrate journal database: %w", err)
		}
		return pgDB, nil

	default:
		return db.NopJournal{}, nil
	}
}
