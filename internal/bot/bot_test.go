package bot_test

import (
	"strings"
	"testing"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/toxguard/internal/bot"
	"github.com/robalyx/toxguard/internal/bot/constants"
	"github.com/robalyx/toxguard/internal/database/types"
	"github.com/robalyx/toxguard/internal/database/types/enum"
	"github.com/robalyx/toxguard/internal/moderation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fieldValues(embed discord.Embed) map[string]string {
	values := make(map[string]string, len(embed.Fields))
	for _, field := range embed.Fields {
		values[field.Name] = field.Value
	}

	return values
}

func TestNewModerationMessage(t *testing.T) {
	t.Parallel()

	webhookID := snowflake.ID(42)

	tests := []struct {
		name    string
		author  discord.User
		webhook *snowflake.ID
		fromBot bool
	}{
		{name: "member", author: discord.User{ID: 7}},
		{name: "bot", author: discord.User{ID: 7, Bot: true}, fromBot: true},
		{name: "system", author: discord.User{ID: 7, System: true}, fromBot: true},
		{name: "webhook", author: discord.User{ID: 7}, webhook: &webhookID, fromBot: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			msg := bot.NewModerationMessage(1, discord.Message{
				ID:        3,
				ChannelID: 10,
				Author:    tt.author,
				Content:   "hello",
				WebhookID: tt.webhook,
			})

			assert.Equal(t, &moderation.Message{
				GuildID:   1,
				ChannelID: 10,
				MessageID: 3,
				UserID:    7,
				Content:   "hello",
				FromBot:   tt.fromBot,
			}, msg)
		})
	}
}

func TestCommands(t *testing.T) {
	t.Parallel()

	names := make([]string, 0, 4)
	for _, command := range bot.Commands() {
		names = append(names, command.CommandName())
	}

	assert.ElementsMatch(t, []string{
		constants.CheckCommandName,
		constants.HistoryCommandName,
		constants.StatsCommandName,
		constants.ResetCommandName,
	}, names)
}

func TestCheckEmbed(t *testing.T) {
	t.Parallel()

	toxic := bot.CheckEmbed("you are awful", 0.9123, false, true)
	assert.Equal(t, constants.ToxicEmbedColor, toxic.Color)
	assert.Equal(t, "🔴 Toxic", fieldValues(toxic)["Status"])
	assert.Equal(t, "91.23%", fieldValues(toxic)["Confidence"])
	assert.Equal(t, "Classifier", fieldValues(toxic)["Source"])

	clean := bot.CheckEmbed("hello", 0.01, true, false)
	assert.Equal(t, constants.CleanEmbedColor, clean.Color)
	assert.Equal(t, "🟢 Non-toxic", fieldValues(clean)["Status"])
	assert.Equal(t, "Cache", fieldValues(clean)["Source"])
}

func TestHistoryEmbed(t *testing.T) {
	t.Parallel()

	t.Run("clean user", func(t *testing.T) {
		t.Parallel()

		embed := bot.HistoryEmbed(7, &types.OffenseRecord{GuildID: 1, UserID: 7})
		assert.Equal(t, "No moderation history found.", embed.Description)
		assert.Equal(t, "0", fieldValues(embed)["Strikes"])
	})

	t.Run("newest first and capped", func(t *testing.T) {
		t.Parallel()

		now := time.Now()
		record := &types.OffenseRecord{GuildID: 1, UserID: 7, LastOffenseAt: now}

		for i := 1; i <= constants.HistoryEntriesShown+2; i++ {
			record.StrikeCount = i
			record.History = append(record.History, &types.OffenseEntry{
				Strike:    i,
				Score:     0.8,
				Action:    enum.ActionKindTimeout,
				Duration:  10 * time.Second,
				CreatedAt: now,
			})
		}

		embed := bot.HistoryEmbed(7, record)

		assert.Equal(t, "12", fieldValues(embed)["Strikes"])
		assert.Contains(t, embed.Description, "`#12`")
		assert.NotContains(t, embed.Description, "`#2`")
		assert.Contains(t, embed.Description, "… and 2 older")
		assert.Contains(t, embed.Description, "Timeout(10s)")
		assert.Less(t, strings.Index(embed.Description, "`#12`"), strings.Index(embed.Description, "`#11`"))
	})
}

func TestStatsEmbed(t *testing.T) {
	t.Parallel()

	stats := moderation.CacheStats{Size: 12, Capacity: 1000, Hits: 3, Misses: 1}

	embed := bot.StatsEmbed(stats, 0.75, map[string]int64{
		moderation.CounterMessagesScanned: 40,
		moderation.CounterActionsTimeout:  2,
	})

	values := fieldValues(embed)
	assert.Equal(t, "12/1000", values["Cache Usage"])
	assert.Equal(t, "75.00%", values["Cache Hit Ratio"])
	assert.Equal(t, "0.75", values["Toxicity Threshold"])
	assert.Equal(t, "40", values["Scanned"])
	assert.Equal(t, "2", values["Timeouts"])
	assert.Equal(t, "0", values["Warnings"])

	unavailable := bot.StatsEmbed(stats, 0.75, nil)
	require.Contains(t, fieldValues(unavailable), "Today")
	assert.Equal(t, constants.NotApplicable, fieldValues(unavailable)["Today"])
}
