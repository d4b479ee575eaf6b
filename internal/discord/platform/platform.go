package platform

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/json"
	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/toxguard/internal/moderation"
	"github.com/robalyx/toxguard/internal/setup/config"
	"github.com/robalyx/toxguard/pkg/utils"
	"go.uber.org/zap"
)

// Embed colors of moderation notices.
const (
	ReportEmbedColor = 0xE67E22
	AlertEmbedColor  = 0xED4245
)

// Embed limits enforced by Discord.
const (
	maxEmbedDescription = 4096
	maxEmbedFieldValue  = 1024
	maxAuditLogReason   = 512
)

// ErrInvalidTimeout is returned for durations Discord does not accept.
var ErrInvalidTimeout = errors.New("invalid timeout duration")

// Rest is the subset of the Discord REST API used for enforcement.
// rest.Rest satisfies it.
type Rest interface {
	CreateDMChannel(userID snowflake.ID, opts ...rest.RequestOpt) (*discord.DMChannel, error)
	CreateMessage(
		channelID snowflake.ID, messageCreate discord.MessageCreate, opts ...rest.RequestOpt,
	) (*discord.Message, error)
	UpdateMember(
		guildID snowflake.ID, userID snowflake.ID, memberUpdate discord.MemberUpdate, opts ...rest.RequestOpt,
	) (*discord.Member, error)
}

// Platform applies moderation actions through the Discord REST API.
type Platform struct {
	rest   Rest
	retry  utils.RetryOptions
	logger *zap.Logger
}

// New creates a Discord platform.
func New(client Rest, retry utils.RetryOptions, logger *zap.Logger) *Platform {
	return &Platform{
		rest:   client,
		retry:  retry,
		logger: logger.Named("discord_platform"),
	}
}

// SendDirectMessage sends a plain text message to a user.
func (p *Platform) SendDirectMessage(ctx context.Context, userID uint64, text string) error {
	channel, err := withRetry(ctx, p, func() (*discord.DMChannel, error) {
		return p.rest.CreateDMChannel(snowflake.ID(userID), rest.WithCtx(ctx))
	})
	if err != nil {
		return fmt.Errorf("failed to create DM channel: %w", err)
	}

	message := discord.NewMessageCreateBuilder().
		SetContent(text).
		SetAllowedMentions(&discord.AllowedMentions{}).
		Build()

	if _, err := withRetry(ctx, p, func() (*discord.Message, error) {
		return p.rest.CreateMessage(channel.ID(), message, rest.WithCtx(ctx))
	}); err != nil {
		return fmt.Errorf("failed to send direct message: %w", err)
	}

	p.logger.Debug("Sent direct message", zap.Uint64("userID", userID))

	return nil
}

// ApplyTimeout disables communication of a guild member for the given duration.
func (p *Platform) ApplyTimeout(
	ctx context.Context, guildID, userID uint64, duration time.Duration, reason string,
) error {
	if duration <= 0 || duration > config.MaxTimeoutDuration {
		return fmt.Errorf("%w: %s", ErrInvalidTimeout, duration)
	}

	update := discord.MemberUpdate{
		CommunicationDisabledUntil: json.NewNullablePtr(time.Now().Add(duration)),
	}

	if _, err := withRetry(ctx, p, func() (*discord.Member, error) {
		return p.rest.UpdateMember(snowflake.ID(guildID), snowflake.ID(userID), update,
			rest.WithCtx(ctx), rest.WithReason(utils.TruncateString(reason, maxAuditLogReason)))
	}); err != nil {
		return fmt.Errorf("failed to apply timeout: %w", err)
	}

	p.logger.Info("Applied timeout",
		zap.Uint64("guildID", guildID),
		zap.Uint64("userID", userID),
		zap.Duration("duration", duration))

	return nil
}

// PostToChannel posts a notice as an embed.
func (p *Platform) PostToChannel(ctx context.Context, channelID uint64, notice *moderation.Notice) error {
	message := discord.NewMessageCreateBuilder().
		SetEmbeds(NoticeEmbed(notice)).
		SetAllowedMentions(&discord.AllowedMentions{}).
		Build()

	if _, err := withRetry(ctx, p, func() (*discord.Message, error) {
		return p.rest.CreateMessage(snowflake.ID(channelID), message, rest.WithCtx(ctx))
	}); err != nil {
		return fmt.Errorf("failed to post notice: %w", err)
	}

	return nil
}

// NoticeEmbed renders a notice as a Discord embed.
func NoticeEmbed(notice *moderation.Notice) discord.Embed {
	color := ReportEmbedColor
	if notice.Kind == moderation.NoticeAlert {
		color = AlertEmbedColor
	}

	embed := discord.NewEmbedBuilder().
		SetTitle(notice.Title).
		SetDescription(utils.TruncateString(notice.Content, maxEmbedDescription)).
		SetColor(color)

	for _, field := range notice.Fields {
		embed.AddField(field.Name, utils.TruncateString(field.Value, maxEmbedFieldValue), field.Inline)
	}

	if !notice.Timestamp.IsZero() {
		embed.SetTimestamp(notice.Timestamp)
	}

	return embed.Build()
}

// withRetry retries server side failures. Client errors such as missing
// permissions or closed DMs are returned immediately.
func withRetry[T any](ctx context.Context, p *Platform, fn func() (T, error)) (T, error) {
	return utils.WithRetry(ctx, func() (T, error) {
		result, err := fn()
		if err != nil && !IsRetryable(err) {
			return result, backoff.Permanent(err)
		}

		return result, err
	}, p.retry)
}

// IsRetryable reports whether a REST error may succeed on a later attempt.
func IsRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var restErr *rest.Error
	if errors.As(err, &restErr) {
		return restErr.Response != nil && restErr.Response.StatusCode >= http.StatusInternalServerError
	}

	return true
}
