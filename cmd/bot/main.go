package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/disgoorg/disgo/rest"
	"github.com/robalyx/toxguard/internal/bot"
	"github.com/robalyx/toxguard/internal/discord/platform"
	"github.com/robalyx/toxguard/internal/moderation"
	"github.com/robalyx/toxguard/internal/setup"
	"github.com/robalyx/toxguard/internal/setup/config"
	"github.com/robalyx/toxguard/internal/setup/telemetry"
	"github.com/robalyx/toxguard/pkg/utils"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

const (
	// BotLogDir specifies where bot log files are stored.
	BotLogDir = "logs/bot_logs"
	// ShutdownTimeout bounds how long in-flight messages are awaited on exit.
	ShutdownTimeout = 30 * time.Second
)

func main() {
	app := &cli.Command{
		Name:  "bot",
		Usage: "Discord toxicity moderation bot",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "memory-ledger",
				Usage: "Keep offense records in memory instead of PostgreSQL",
			},
			&cli.BoolFlag{
				Name:  "skip-migrations",
				Usage: "Do not check for pending database migrations",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return run(ctx, setup.Options{
				MemoryLedger:   c.Bool("memory-ledger"),
				SkipMigrations: c.Bool("skip-migrations"),
			})
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts setup.Options) error {
	// Initialize application with required dependencies
	app, err := setup.InitializeApp(ctx, telemetry.ComponentBot, BotLogDir, opts)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ShutdownTimeout)
	defer cancel()
	defer app.Cleanup(shutdownCtx)

	cfg := app.Config.Bot
	token := cfg.Discord.Token

	// The gateway client and the enforcement platform share one REST client
	restClient := rest.NewClient(token)
	discordPlatform := platform.New(rest.New(restClient), utils.GetPlatformRetryOptions(), app.Logger)

	engine, stats, err := newEngine(app, discordPlatform)
	if err != nil {
		return err
	}

	// Create bot instance
	discordBot, err := bot.New(
		token,
		restClient,
		engine,
		stats,
		cfg.Moderation.MaxConcurrentMessages,
		config.Milliseconds(cfg.RequestTimeout),
		app.Logger,
	)
	if err != nil {
		return err
	}

	// Start the bot and connect to Discord
	if err := discordBot.Start(ctx); err != nil {
		return fmt.Errorf("failed to start bot: %w", err)
	}

	log.Println("Bot has been started. Waiting for interrupt signal to gracefully shutdown...")

	// Wait for interrupt signal to gracefully shutdown the bot
	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-sc

	// Stop receiving events, then let queued messages finish
	discordBot.Close(shutdownCtx)

	if err := engine.Close(shutdownCtx); err != nil {
		app.Logger.Error("Failed to stop moderation engine", zap.Error(err))
	}

	return nil
}

// newEngine builds the moderation engine and its collaborators.
// The returned stats are nil when Redis counters are unavailable.
func newEngine(app *setup.App, discordPlatform *platform.Platform) (*moderation.Engine, bot.DailyStats, error) {
	modCfg := &app.Config.Bot.Moderation

	var shared moderation.SharedScores

	if modCfg.SharedCacheTTL > 0 {
		store, err := app.RedisManager.ScoreStore(time.Duration(modCfg.SharedCacheTTL) * time.Second)
		if err != nil {
			app.Logger.Warn("Shared score cache disabled", zap.Error(err))
		} else {
			shared = store
		}
	}

	cache, err := moderation.NewScoreCache(modCfg.CacheSize, shared, app.Logger)
	if err != nil {
		return nil, nil, err
	}

	policy, err := moderation.NewPolicyFromConfig(modCfg)
	if err != nil {
		return nil, nil, err
	}

	var (
		ledger moderation.Ledger
		audit  moderation.AuditLog
	)

	if app.DB != nil {
		ledger = app.DB.Model().Offense()
		audit = app.DB.Model().ModerationLog()
	} else {
		ledger = moderation.NewMemoryLedger()
	}

	var (
		counters moderation.Counters
		stats    bot.DailyStats
	)

	if redisStats, err := app.RedisManager.Stats(); err != nil {
		app.Logger.Warn("Daily counters disabled", zap.Error(err))
	} else {
		counters = redisStats
		stats = redisStats
	}

	reporter := moderation.NewReporter(
		discordPlatform, audit, modCfg.ModChannelID, config.Milliseconds(modCfg.PlatformTimeout), app.Logger,
	)

	engine, err := moderation.NewEngine(moderation.Dependencies{
		Classifier: app.Classifier,
		Cache:      cache,
		Ledger:     ledger,
		Policy:     policy,
		Platform:   discordPlatform,
		Reporter:   reporter,
		Counters:   counters,
	}, moderation.OptionsFromConfig(modCfg), app.Logger)
	if err != nil {
		return nil, nil, err
	}

	return engine, stats, nil
}
