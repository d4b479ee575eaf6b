package types

import (
	"time"

	"github.com/robalyx/toxguard/internal/database/types/enum"
)

// ModerationLog is an entry of the moderation audit log.
type ModerationLog struct {
	ID        int64           `bun:",pk,autoincrement"`
	Kind      enum.LogKind    `bun:",notnull"`
	GuildID   uint64          `bun:",notnull"`
	UserID    uint64          `bun:",notnull"`
	ChannelID uint64          `bun:",notnull"`
	MessageID uint64          `bun:",notnull"`
	Score     float64         `bun:",notnull"`
	Strike    int             `bun:",notnull"`
	Action    enum.ActionKind `bun:",notnull"`
	Duration  time.Duration   `bun:",notnull"`
	Enforced  bool            `bun:",notnull"`
	Details   string          `bun:",type:text"` // Error text for alerts
	CreatedAt time.Time       `bun:",notnull"`
}

// LogCursor represents a pagination cursor for moderation logs.
type LogCursor struct {
	CreatedAt time.Time
	ID        int64
}
