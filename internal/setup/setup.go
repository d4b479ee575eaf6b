package setup

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/generative-ai-go/genai"
	"github.com/robalyx/toxguard/internal/ai"
	"github.com/robalyx/toxguard/internal/database"
	"github.com/robalyx/toxguard/internal/database/migrations"
	"github.com/robalyx/toxguard/internal/redis"
	"github.com/robalyx/toxguard/internal/setup/config"
	"github.com/robalyx/toxguard/internal/setup/telemetry"
	"github.com/uptrace/bun/migrate"
	"github.com/uptrace/uptrace-go/uptrace"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// ServiceVersion is reported with every exported span.
const ServiceVersion = config.RepositoryVersion

var ErrMigrationsPending = errors.New("database migrations are pending")

// Options selects which subsystems are started.
type Options struct {
	// MemoryLedger keeps offense records in process memory instead of PostgreSQL.
	MemoryLedger bool
	// SkipMigrations connects to PostgreSQL without checking for pending migrations.
	SkipMigrations bool
}

// App bundles all core dependencies and services needed by the application.
// Each field represents a major subsystem that needs initialization and cleanup.
type App struct {
	Config       *config.Config         // Application configuration
	Logger       *zap.Logger            // Main application logger
	DBLogger     *zap.Logger            // Database-specific logger
	DB           database.Client        // Database connection pool, nil with an in-memory ledger
	RedisManager *redis.Manager         // Redis connection manager
	GenAIClient  *genai.Client          // Gemini API client
	Classifier   *ai.ToxicityClassifier // Toxicity classifier
	LogManager   *telemetry.Manager     // Log management system
	tracing      bool
}

// InitializeApp bootstraps all application dependencies in the correct order,
// ensuring each component has its required dependencies available.
func InitializeApp(ctx context.Context, component telemetry.Component, logDir string, opts Options) (*App, error) {
	// Load app configuration
	cfg, _, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	// Span export must be configured before any tracer is used
	tracing := cfg.Common.Uptrace.DSN != ""
	if tracing {
		serviceName := cfg.Common.Uptrace.ServiceName
		if serviceName == "" {
			serviceName = "toxguard-" + string(component)
		}

		uptrace.ConfigureOpentelemetry(
			uptrace.WithDSN(cfg.Common.Uptrace.DSN),
			uptrace.WithServiceName(serviceName),
			uptrace.WithServiceVersion(ServiceVersion),
		)
	}

	// Logging system is initialized next to capture setup issues
	logManager := telemetry.NewManager(ctx, component, logDir, &cfg.Common.Debug, &cfg.Common.Loki, tracing)

	logger, dbLogger, err := logManager.GetLoggers()
	if err != nil {
		logManager.Stop()
		return nil, err
	}

	app := &App{
		Config:     cfg,
		Logger:     logger,
		DBLogger:   dbLogger.Named("database"),
		LogManager: logManager,
		tracing:    tracing,
	}

	// Redis manager provides connection pools for the shared cache and counters
	app.RedisManager = redis.NewManager(&cfg.Common.Redis, logger)

	// Initialize database with migration check
	if opts.MemoryLedger {
		logger.Warn("Using in-memory offense ledger - strikes are lost on restart")
	} else {
		db, err := connectDatabase(ctx, &cfg.Common.PostgreSQL, dbLogger, opts.SkipMigrations)
		if err != nil {
			app.Cleanup(ctx)
			return nil, err
		}

		app.DB = db
	}

	// Initialize the classifier
	genaiClient, err := genai.NewClient(ctx, option.WithAPIKey(cfg.Common.GeminiAI.APIKey))
	if err != nil {
		app.Cleanup(ctx)
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	app.GenAIClient = genaiClient
	app.Classifier = ai.NewToxicityClassifier(
		ai.NewGeminiModel(genaiClient, cfg.Common.GeminiAI.Model),
		ai.OptionsFromConfig(&cfg.Common.GeminiAI),
		logger,
	)

	logger.Info("Application initialized",
		zap.String("component", string(component)),
		zap.Bool("memoryLedger", opts.MemoryLedger),
		zap.Bool("tracing", tracing))

	return app, nil
}

// Cleanup ensures graceful shutdown of all components in reverse initialization order.
// Logs but does not fail on cleanup errors to ensure all components get cleanup attempts.
func (s *App) Cleanup(ctx context.Context) {
	if s.GenAIClient != nil {
		if err := s.GenAIClient.Close(); err != nil {
			s.Logger.Error("Failed to close genai client", zap.Error(err))
		}
	}

	// Close database connections
	if s.DB != nil {
		if err := s.DB.Close(); err != nil {
			s.Logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	// Close Redis connections
	if s.RedisManager != nil {
		s.RedisManager.Close()
	}

	// Sync buffered logs before shutdown
	if err := s.Logger.Sync(); err != nil {
		log.Printf("Failed to sync logger: %v", err)
	}

	if err := s.DBLogger.Sync(); err != nil {
		log.Printf("Failed to sync DB logger: %v", err)
	}

	// Stop telemetry manager to flush Loki logs
	s.LogManager.Stop()

	// Flush pending spans last so errors logged above are exported
	if s.tracing {
		if err := uptrace.Shutdown(ctx); err != nil {
			log.Printf("Failed to shutdown uptrace: %v", err)
		}
	}
}

// connectDatabase opens the database and runs pending migrations after confirmation.
func connectDatabase(
	ctx context.Context, cfg *config.PostgreSQL, dbLogger *zap.Logger, skipMigrations bool,
) (database.Client, error) {
	db, err := database.NewConnection(ctx, cfg, dbLogger, false)
	if err != nil {
		return nil, err
	}

	if skipMigrations {
		dbLogger.Warn("Skipping migration check")
		return db, nil
	}

	migrator := migrate.NewMigrator(db.DB(), migrations.Migrations)

	ms, err := migrator.MigrationsWithStatus(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to check migration status: %w", err)
	}

	unapplied := ms.Unapplied()
	if len(unapplied) == 0 {
		return db, nil
	}

	log.Printf("%d database migrations are pending. Would you like to run them now? (y/N)", len(unapplied))

	var response string

	_, _ = fmt.Scanln(&response)

	if response != "y" && response != "Y" {
		db.Close()
		return nil, fmt.Errorf("%w: run them with the db tool", ErrMigrationsPending)
	}

	db.Close()

	return database.NewConnection(ctx, cfg, dbLogger, true)
}
