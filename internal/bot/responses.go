package bot

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/disgoorg/disgo/discord"
	"github.com/robalyx/toxguard/internal/bot/constants"
	"github.com/robalyx/toxguard/internal/database/types"
	"github.com/robalyx/toxguard/internal/moderation"
	"github.com/robalyx/toxguard/pkg/utils"
)

const maxCheckedContent = 1000

// CheckEmbed renders the verdict of a manual check.
func CheckEmbed(text string, score float64, cached, toxic bool) discord.Embed {
	status := "🟢 Non-toxic"
	color := constants.CleanEmbedColor

	if toxic {
		status = "🔴 Toxic"
		color = constants.ToxicEmbedColor
	}

	source := "Classifier"
	if cached {
		source = "Cache"
	}

	return discord.NewEmbedBuilder().
		SetTitle("Message Analysis").
		SetDescription("```"+utils.EscapeCodeBlock(utils.TruncateString(text, maxCheckedContent))+"```").
		AddField("Status", status, true).
		AddField("Confidence", moderation.FormatScore(score), true).
		AddField("Source", source, true).
		SetColor(color).
		Build()
}

// HistoryEmbed renders the offense record of a user, newest entries first.
func HistoryEmbed(userID uint64, record *types.OffenseRecord) discord.Embed {
	embed := discord.NewEmbedBuilder().
		SetTitle("Moderation History").
		SetColor(constants.DefaultEmbedColor).
		AddField("User", "<@"+strconv.FormatUint(userID, 10)+">", true).
		AddField("Strikes", strconv.Itoa(record.StrikeCount), true)

	if record.IsClean() {
		return embed.SetDescription("No moderation history found.").Build()
	}

	if !record.LastOffenseAt.IsZero() {
		embed.AddField("Last Offense", fmt.Sprintf("<t:%d:R>", record.LastOffenseAt.Unix()), true)
	}

	entries := slices.Clone(record.History)
	slices.SortFunc(entries, func(a, b *types.OffenseEntry) int {
		return b.Strike - a.Strike
	})

	lines := make([]string, 0, constants.HistoryEntriesShown+1)
	for i, entry := range entries {
		if i == constants.HistoryEntriesShown {
			lines = append(lines, fmt.Sprintf("… and %d older", len(entries)-i))
			break
		}

		action := moderation.Action{Kind: entry.Action, Duration: entry.Duration}
		lines = append(lines, fmt.Sprintf("`#%d` <t:%d:f> %s · %s",
			entry.Strike, entry.CreatedAt.Unix(), action, moderation.FormatScore(entry.Score)))
	}

	return embed.SetDescription(strings.Join(lines, "\n")).Build()
}

// StatsEmbed renders cache usage, the threshold and today's counters.
// Daily counters are shown as unavailable when counters is nil.
func StatsEmbed(stats moderation.CacheStats, threshold float64, counters map[string]int64) discord.Embed {
	embed := discord.NewEmbedBuilder().
		SetTitle("Bot Statistics").
		SetColor(constants.DefaultEmbedColor).
		AddField("Cache Usage", fmt.Sprintf("%d/%d", stats.Size, stats.Capacity), true).
		AddField("Cache Hit Ratio", moderation.FormatScore(stats.HitRatio()), true).
		AddField("Toxicity Threshold", strconv.FormatFloat(threshold, 'f', 2, 64), true)

	if counters == nil {
		return embed.AddField("Today", constants.NotApplicable, false).Build()
	}

	rows := []struct {
		name    string
		counter string
	}{
		{"Scanned", moderation.CounterMessagesScanned},
		{"Toxic", moderation.CounterMessagesToxic},
		{"Warnings", moderation.CounterActionsWarn},
		{"Timeouts", moderation.CounterActionsTimeout},
		{"Deferred", moderation.CounterDeferred},
		{"Alerts", moderation.CounterAlerts},
	}

	for _, row := range rows {
		embed.AddField(row.name, strconv.FormatInt(counters[row.counter], 10), true)
	}

	return embed.Build()
}

// ResetEmbed confirms a ledger reset.
func ResetEmbed(userID uint64) discord.Embed {
	return discord.NewEmbedBuilder().
		SetTitle("Strikes Reset").
		SetDescription("Cleared the moderation history of <@" + strconv.FormatUint(userID, 10) + ">.").
		SetColor(constants.CleanEmbedColor).
		Build()
}

// ErrorEmbed renders a user facing error.
func ErrorEmbed(message string) discord.Embed {
	return discord.NewEmbedBuilder().
		SetTitle("Error").
		SetDescription(message).
		SetColor(constants.ToxicEmbedColor).
		Build()
}
