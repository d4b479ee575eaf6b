package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/robalyx/toxguard/cmd/db/commands"
	"github.com/robalyx/toxguard/internal/database"
	"github.com/robalyx/toxguard/internal/database/migrations"
	"github.com/robalyx/toxguard/internal/setup/config"
	"github.com/robalyx/toxguard/internal/setup/telemetry"
	"github.com/uptrace/bun/migrate"
	"github.com/urfave/cli/v3"
)

const (
	// DBLogDir specifies where database tool log files are stored.
	DBLogDir = "logs/db_logs"
)

func main() {
	if err := run(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	// Setup dependencies
	deps, cleanup, err := setupDependencies(ctx)
	if err != nil {
		return fmt.Errorf("failed to setup dependencies: %w", err)
	}
	defer cleanup()

	var cmds []*cli.Command
	cmds = append(cmds, commands.MigrationCommands(deps)...)
	cmds = append(cmds, commands.StrikeCommands(deps)...)
	cmds = append(cmds, commands.LogCommands(deps)...)

	app := &cli.Command{
		Name:     "db",
		Usage:    "Database management tool",
		Commands: cmds,
	}

	return app.Run(ctx, os.Args)
}

// setupDependencies initializes the database connection and migrator.
func setupDependencies(ctx context.Context) (*commands.CLIDependencies, func(), error) {
	// Load full configuration
	cfg, _, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	logManager := telemetry.NewManager(ctx, telemetry.ComponentDB, DBLogDir, &cfg.Common.Debug, &cfg.Common.Loki, false)

	logger, dbLogger, err := logManager.GetLoggers()
	if err != nil {
		logManager.Stop()
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}

	// Connect to database
	db, err := database.NewConnection(ctx, &cfg.Common.PostgreSQL, dbLogger, false)
	if err != nil {
		logManager.Stop()
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	cleanup := func() {
		db.Close()
		_ = logger.Sync()
		logManager.Stop()
	}

	// Create migrator using database connection and migrations
	return &commands.CLIDependencies{
		DB:       db,
		Migrator: migrate.NewMigrator(db.DB(), migrations.Migrations),
		Logger:   logger,
	}, cleanup, nil
}
