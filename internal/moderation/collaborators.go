package moderation

import (
	"context"
	"time"

	"github.com/robalyx/toxguard/internal/database/types"
)

// Classifier scores text for toxicity. Scores are probabilities in [0, 1].
type Classifier interface {
	Classify(ctx context.Context, text string) (float64, error)
}

// Platform applies enforcement actions and posts notices on the chat platform.
type Platform interface {
	SendDirectMessage(ctx context.Context, userID uint64, text string) error
	ApplyTimeout(ctx context.Context, guildID, userID uint64, duration time.Duration, reason string) error
	PostToChannel(ctx context.Context, channelID uint64, notice *Notice) error
}

// AuditLog persists reports and alerts.
type AuditLog interface {
	Log(ctx context.Context, log *types.ModerationLog) error
}

// Counters tracks daily moderation statistics.
type Counters interface {
	Increment(ctx context.Context, counter string) error
}

// Counter names recorded by the engine.
const (
	CounterMessagesScanned = "messages_scanned"
	CounterMessagesToxic   = "messages_toxic"
	CounterActionsWarn     = "actions_warn"
	CounterActionsTimeout  = "actions_timeout"
	CounterDeferred        = "deferred"
	CounterAlerts          = "alerts"
)

// NoticeKind selects how a notice is presented.
type NoticeKind int

const (
	NoticeReport NoticeKind = iota
	NoticeAlert
)

// Notice is a structured message for the moderation channel.
type Notice struct {
	Kind      NoticeKind
	Title     string
	Content   string
	Fields    []NoticeField
	Timestamp time.Time
}

// NoticeField is a labeled value of a notice.
type NoticeField struct {
	Name   string
	Value  string
	Inline bool
}
