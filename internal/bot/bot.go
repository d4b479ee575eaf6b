package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/disgoorg/disgo"
	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/gateway"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/toxguard/internal/database/types"
	"github.com/robalyx/toxguard/internal/moderation"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// Engine is the moderation engine as used by the bot.
type Engine interface {
	HandleMessage(ctx context.Context, msg *moderation.Message) (*moderation.Outcome, error)
	Score(ctx context.Context, text string) (float64, bool, error)
	IsToxic(score float64) bool
	History(ctx context.Context, guildID, userID uint64) (*types.OffenseRecord, error)
	Reset(ctx context.Context, guildID, userID, moderatorID uint64) error
	CacheStats() moderation.CacheStats
	Threshold() float64
}

// DailyStats reads the moderation counters of the current day.
type DailyStats interface {
	Today(ctx context.Context) (map[string]int64, error)
}

// Bot connects the moderation engine to the Discord gateway.
// Guild messages are handed to the engine on a bounded worker pool.
type Bot struct {
	client         bot.Client
	engine         Engine
	stats          DailyStats
	pool           *pool.Pool
	requestTimeout time.Duration
	logger         *zap.Logger
}

// New creates a bot sharing restClient with the enforcement platform.
func New(
	token string,
	restClient rest.Client,
	engine Engine,
	stats DailyStats,
	maxConcurrent int,
	requestTimeout time.Duration,
	logger *zap.Logger,
) (*Bot, error) {
	b := &Bot{
		engine:         engine,
		stats:          stats,
		pool:           pool.New().WithMaxGoroutines(max(maxConcurrent, 1)),
		requestTimeout: requestTimeout,
		logger:         logger.Named("bot"),
	}

	client, err := disgo.New(token,
		bot.WithRestClient(restClient),
		bot.WithGatewayConfigOpts(
			gateway.WithIntents(
				gateway.IntentGuilds,
				gateway.IntentGuildMessages,
				gateway.IntentMessageContent,
			),
		),
		bot.WithEventListeners(&events.ListenerAdapter{
			OnGuildMessageCreate:            b.handleGuildMessageCreate,
			OnApplicationCommandInteraction: b.handleApplicationCommandInteraction,
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord client: %w", err)
	}

	b.client = client

	return b, nil
}

// Start registers the slash commands and opens the gateway connection.
func (b *Bot) Start(ctx context.Context) error {
	b.logger.Info("Registering commands")

	if _, err := b.client.Rest().SetGlobalCommands(b.client.ApplicationID(), Commands()); err != nil {
		return fmt.Errorf("failed to register commands: %w", err)
	}

	b.logger.Info("Starting bot")

	return b.client.OpenGateway(ctx)
}

// Close stops receiving events and waits for messages already handed to the pool.
func (b *Bot) Close(ctx context.Context) {
	b.logger.Info("Closing bot")
	b.client.Close(ctx)
	b.pool.Wait()
}

// handleGuildMessageCreate queues a guild message for moderation.
// Blocks the gateway event loop while the pool is saturated.
func (b *Bot) handleGuildMessageCreate(event *events.GuildMessageCreate) {
	msg := NewModerationMessage(event.GuildID, event.Message)
	if msg.FromBot {
		return
	}

	b.pool.Go(func() {
		defer func() {
			if r := recover(); r != nil {
				b.logger.Error("Panic in message handler", zap.Any("panic", r))
			}
		}()

		b.moderate(msg)
	})
}

// moderate runs one message through the engine and logs the result.
func (b *Bot) moderate(msg *moderation.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), b.requestTimeout)
	defer cancel()

	outcome, err := b.engine.HandleMessage(ctx, msg)

	fields := []zap.Field{
		zap.Uint64("guildID", msg.GuildID),
		zap.Uint64("userID", msg.UserID),
		zap.Uint64("messageID", msg.MessageID),
		zap.String("outcome", outcome.Kind.String()),
	}

	switch {
	case errors.Is(err, moderation.ErrShuttingDown):
		b.logger.Debug("Message dropped during shutdown", fields...)
	case err != nil:
		b.logger.Warn("Message moderation incomplete", append(fields, zap.Error(err))...)
	case outcome.Kind == moderation.OutcomeActioned:
		b.logger.Info("Message actioned", append(fields,
			zap.Float64("score", outcome.Score),
			zap.Int("strikes", outcome.Strikes),
			zap.String("action", outcome.Action.String()))...)
	default:
		b.logger.Debug("Message moderated", fields...)
	}
}

// NewModerationMessage converts a Discord guild message.
func NewModerationMessage(guildID snowflake.ID, message discord.Message) *moderation.Message {
	return &moderation.Message{
		GuildID:   uint64(guildID),
		ChannelID: uint64(message.ChannelID),
		MessageID: uint64(message.ID),
		UserID:    uint64(message.Author.ID),
		Content:   message.Content,
		FromBot:   message.Author.Bot || message.Author.System || message.WebhookID != nil,
	}
}
