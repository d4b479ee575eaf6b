package bot

import (
	"context"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/json"
	"github.com/robalyx/toxguard/internal/bot/constants"
	"go.uber.org/zap"
)

// Commands returns the slash commands registered by the bot.
func Commands() []discord.ApplicationCommandCreate {
	return []discord.ApplicationCommandCreate{
		discord.SlashCommandCreate{
			Name:        constants.CheckCommandName,
			Description: "Check a message for toxic content",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionString{
					Name:        constants.TextOptionName,
					Description: "The message text to analyze",
					Required:    true,
				},
			},
		},
		discord.SlashCommandCreate{
			Name:                     constants.HistoryCommandName,
			Description:              "View the moderation history of a user",
			DefaultMemberPermissions: json.NewNullablePtr(discord.PermissionManageMessages),
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionUser{
					Name:        constants.UserOptionName,
					Description: "The user to look up",
					Required:    true,
				},
			},
		},
		discord.SlashCommandCreate{
			Name:        constants.StatsCommandName,
			Description: "View bot statistics and configuration",
		},
		discord.SlashCommandCreate{
			Name:                     constants.ResetCommandName,
			Description:              "Clear the strikes of a user",
			DefaultMemberPermissions: json.NewNullablePtr(discord.PermissionAdministrator),
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionUser{
					Name:        constants.UserOptionName,
					Description: "The user to reset",
					Required:    true,
				},
			},
		},
	}
}

// handleApplicationCommandInteraction defers the response and handles the command in a goroutine.
func (b *Bot) handleApplicationCommandInteraction(event *events.ApplicationCommandInteractionCreate) {
	go func() {
		if err := event.DeferCreateMessage(true); err != nil {
			b.logger.Error("Failed to defer create message", zap.Error(err))
			return
		}

		data := event.SlashCommandInteractionData()

		start := time.Now()
		defer func() {
			if r := recover(); r != nil {
				b.logger.Error("Panic in application command interaction handler", zap.Any("panic", r))
				b.respond(event, ErrorEmbed("Internal error. Please report this to an administrator."))
			}

			b.logger.Debug("Application command interaction handled",
				zap.String("command", data.CommandName()),
				zap.Duration("duration", time.Since(start)))
		}()

		ctx, cancel := context.WithTimeout(context.Background(), b.requestTimeout)
		defer cancel()

		b.respond(event, b.runCommand(ctx, event, data))
	}()
}

// runCommand executes a slash command and returns the embed to reply with.
func (b *Bot) runCommand(
	ctx context.Context, event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData,
) discord.Embed {
	switch data.CommandName() {
	case constants.CheckCommandName:
		text := data.String(constants.TextOptionName)

		score, cached, err := b.engine.Score(ctx, text)
		if err != nil {
			b.logger.Warn("Failed to check message", zap.Error(err))
			return ErrorEmbed("The classifier is currently unavailable. Please try again later.")
		}

		return CheckEmbed(text, score, cached, b.engine.IsToxic(score))

	case constants.StatsCommandName:
		var counters map[string]int64
		if b.stats != nil {
			today, err := b.stats.Today(ctx)
			if err != nil {
				b.logger.Warn("Failed to get daily stats", zap.Error(err))
			} else {
				counters = today
			}
		}

		return StatsEmbed(b.engine.CacheStats(), b.engine.Threshold(), counters)
	}

	guildID := event.GuildID()
	if guildID == nil {
		return ErrorEmbed("This command can only be used in a server.")
	}

	userID := uint64(data.Snowflake(constants.UserOptionName))

	switch data.CommandName() {
	case constants.HistoryCommandName:
		record, err := b.engine.History(ctx, uint64(*guildID), userID)
		if err != nil {
			b.logger.Warn("Failed to get history", zap.Error(err))
			return ErrorEmbed("Failed to load the moderation history. Please try again later.")
		}

		return HistoryEmbed(userID, record)

	case constants.ResetCommandName:
		member := event.Member()
		if member == nil || !member.Permissions.Has(discord.PermissionAdministrator) {
			return ErrorEmbed("You need the Administrator permission to reset strikes.")
		}

		if err := b.engine.Reset(ctx, uint64(*guildID), userID, uint64(event.User().ID)); err != nil {
			b.logger.Warn("Failed to reset strikes", zap.Error(err))
			return ErrorEmbed("Failed to reset the strikes. Please try again later.")
		}

		return ResetEmbed(userID)
	}

	return ErrorEmbed("This command is not available.")
}

// respond replaces the deferred response with an embed.
func (b *Bot) respond(event *events.ApplicationCommandInteractionCreate, embed discord.Embed) {
	_, err := event.Client().Rest().UpdateInteractionResponse(
		event.ApplicationID(), event.Token(), discord.NewMessageUpdateBuilder().SetEmbeds(embed).Build(),
	)
	if err != nil {
		b.logger.Error("Failed to update interaction response", zap.Error(err))
	}
}
