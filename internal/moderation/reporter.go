package moderation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/robalyx/toxguard/internal/database/types"
	"github.com/robalyx/toxguard/internal/database/types/enum"
	"github.com/robalyx/toxguard/pkg/utils"
	"go.uber.org/zap"
)

// maxQuotedContent is the longest message excerpt quoted in a report.
const maxQuotedContent = 1000

// Report describes an actioned violation.
type Report struct {
	Message  *Message
	Score    float64
	Strikes  int
	Action   Action
	Enforced bool
	// EnforcementErr is set when the platform rejected the action.
	EnforcementErr error
	Timestamp      time.Time
}

// Alert describes a failure of the escalation path.
type Alert struct {
	Message   *Message
	Err       *Error
	Timestamp time.Time
}

// Reporter formats reports and alerts for the moderation channel and the audit log.
type Reporter struct {
	platform  Platform
	audit     AuditLog
	channelID uint64
	timeout   time.Duration
	logger    *zap.Logger
}

// NewReporter creates a reporter posting to channelID. A zero channel disables
// posting and audit may be nil.
func NewReporter(platform Platform, audit AuditLog, channelID uint64, timeout time.Duration, logger *zap.Logger) *Reporter {
	return &Reporter{
		platform:  platform,
		audit:     audit,
		channelID: channelID,
		timeout:   timeout,
		logger:    logger.Named("reporter"),
	}
}

// Report posts an actioned violation to the moderation channel.
func (r *Reporter) Report(ctx context.Context, report *Report) error {
	msg := report.Message

	r.logger.Info("Violation actioned",
		zap.Uint64("guildID", msg.GuildID),
		zap.Uint64("userID", msg.UserID),
		zap.Float64("score", report.Score),
		zap.Int("strikes", report.Strikes),
		zap.String("action", report.Action.String()),
		zap.Bool("enforced", report.Enforced))

	r.store(ctx, &types.ModerationLog{
		Kind:      enum.LogKindReport,
		GuildID:   msg.GuildID,
		UserID:    msg.UserID,
		ChannelID: msg.ChannelID,
		MessageID: msg.MessageID,
		Score:     report.Score,
		Strike:    report.Strikes,
		Action:    report.Action.Kind,
		Duration:  report.Action.Duration,
		Enforced:  report.Enforced,
		CreatedAt: report.Timestamp,
	})

	return r.post(ctx, ReportNotice(report))
}

// Alert posts a system alert to the moderation channel.
func (r *Reporter) Alert(ctx context.Context, alert *Alert) error {
	fields := []zap.Field{
		zap.String("kind", alert.Err.Kind.String()),
		zap.String("op", alert.Err.Op),
		zap.Error(alert.Err.Err),
	}

	log := &types.ModerationLog{
		Kind:      enum.LogKindAlert,
		Details:   alert.Err.Error(),
		CreatedAt: alert.Timestamp,
	}

	if msg := alert.Message; msg != nil {
		fields = append(fields, zap.Uint64("guildID", msg.GuildID), zap.Uint64("userID", msg.UserID))
		log.GuildID = msg.GuildID
		log.UserID = msg.UserID
		log.ChannelID = msg.ChannelID
		log.MessageID = msg.MessageID
	}

	r.logger.Warn("Moderation alert", fields...)
	r.store(ctx, log)

	return r.post(ctx, AlertNotice(alert))
}

// Reset posts an administrative reset to the moderation channel.
func (r *Reporter) Reset(ctx context.Context, guildID, userID, moderatorID uint64) error {
	now := time.Now()

	r.store(ctx, &types.ModerationLog{
		Kind:      enum.LogKindReset,
		GuildID:   guildID,
		UserID:    userID,
		Details:   "reset by " + strconv.FormatUint(moderatorID, 10),
		CreatedAt: now,
	})

	return r.post(ctx, &Notice{
		Kind:  NoticeReport,
		Title: "Strikes Reset",
		Fields: []NoticeField{
			{Name: "User", Value: mentionUser(userID), Inline: true},
			{Name: "Moderator", Value: mentionUser(moderatorID), Inline: true},
		},
		Timestamp: now,
	})
}

func (r *Reporter) post(ctx context.Context, notice *Notice) error {
	if r.channelID == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.platform.PostToChannel(ctx, r.channelID, notice); err != nil {
		return fmt.Errorf("failed to post %q to moderation channel: %w", notice.Title, err)
	}

	return nil
}

// store persists the log entry. Failures never block reporting.
func (r *Reporter) store(ctx context.Context, log *types.ModerationLog) {
	if r.audit == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.audit.Log(ctx, log); err != nil {
		r.logger.Error("Failed to store moderation log", zap.Error(err))
	}
}

// ReportNotice builds the moderation channel notice of a report.
func ReportNotice(report *Report) *Notice {
	msg := report.Message

	enforcement := "Applied"
	if !report.Enforced {
		enforcement = "Failed, manual follow-up required"
		if report.EnforcementErr != nil {
			enforcement += ": " + report.EnforcementErr.Error()
		}
	} else if report.Action.Kind == enum.ActionKindIgnore {
		enforcement = "None"
	}

	quoted := "```" + utils.EscapeCodeBlock(utils.TruncateString(msg.Content, maxQuotedContent)) + "```"

	return &Notice{
		Kind:    NoticeReport,
		Title:   "Toxic Message Detected",
		Content: quoted,
		Fields: []NoticeField{
			{Name: "User", Value: mentionUser(msg.UserID), Inline: true},
			{Name: "Channel", Value: mentionChannel(msg.ChannelID), Inline: true},
			{Name: "Score", Value: FormatScore(report.Score), Inline: true},
			{Name: "Strike", Value: "#" + strconv.Itoa(report.Strikes), Inline: true},
			{Name: "Action", Value: report.Action.String(), Inline: true},
			{Name: "Enforcement", Value: enforcement},
		},
		Timestamp: report.Timestamp,
	}
}

// AlertNotice builds the moderation channel notice of an alert.
func AlertNotice(alert *Alert) *Notice {
	notice := &Notice{
		Kind:      NoticeAlert,
		Title:     alertTitle(alert.Err),
		Content:   utils.TruncateString(alert.Err.Err.Error(), maxQuotedContent),
		Timestamp: alert.Timestamp,
	}

	if msg := alert.Message; msg != nil {
		notice.Fields = []NoticeField{
			{Name: "User", Value: mentionUser(msg.UserID), Inline: true},
			{Name: "Channel", Value: mentionChannel(msg.ChannelID), Inline: true},
		}
	}

	return notice
}

func alertTitle(err *Error) string {
	switch {
	case errors.Is(err, ErrClassificationFailure):
		return "Classifier Unavailable: message not judged"
	case errors.Is(err, ErrPersistenceError):
		return "Ledger Unavailable: strike deferred"
	case errors.Is(err, ErrEnforcementFailure):
		return "Enforcement Failed: check bot permissions"
	default:
		return "Moderation Alert"
	}
}

// WarningText is the direct message sent with a warning.
func WarningText(msg *Message) string {
	return fmt.Sprintf("⚠️ **Warning**: Your message in %s was flagged as toxic.\n"+
		"Please be mindful of the community guidelines.", mentionChannel(msg.ChannelID))
}

// TimeoutText is the direct message sent with a timeout.
func TimeoutText(msg *Message, strikes int, d time.Duration) string {
	return fmt.Sprintf("⚠️ Your message in %s was flagged as toxic.\n"+
		"As this is violation #%d, you have been timed out for %s.", mentionChannel(msg.ChannelID), strikes, d)
}

// FormatScore renders a score as a percentage.
func FormatScore(score float64) string {
	return strconv.FormatFloat(score*100, 'f', 2, 64) + "%"
}

func mentionUser(id uint64) string {
	return "<@" + strconv.FormatUint(id, 10) + ">"
}

func mentionChannel(id uint64) string {
	return "<#" + strconv.FormatUint(id, 10) + ">"
}
