package types

import (
	"time"

	"github.com/robalyx/toxguard/internal/database/types/enum"
)

// OffenseRecord tracks the confirmed violations of a user within a guild.
type OffenseRecord struct {
	GuildID       uint64          `bun:",pk"`              // Guild the strikes belong to
	UserID        uint64          `bun:",pk"`              // Discord user ID
	StrikeCount   int             `bun:",notnull"`         // Number of strikes since the last reset
	LastOffenseAt time.Time       `bun:",nullzero"`        // When the most recent strike was recorded
	History       []*OffenseEntry `bun:"rel:has-many,join:guild_id=guild_id,join:user_id=user_id"`
}

// IsClean reports whether the user has no strikes.
func (r *OffenseRecord) IsClean() bool {
	return r.StrikeCount == 0
}

// ActionDecider returns the action for the post-increment strike count of an
// offense. Ledgers call it before the entry is written.
type ActionDecider func(strikes int) (enum.ActionKind, time.Duration)

// OffenseEntry is one strike in a user's history.
type OffenseEntry struct {
	ID        int64           `bun:",pk,autoincrement"`
	GuildID   uint64          `bun:",notnull"`
	UserID    uint64          `bun:",notnull"`
	Strike    int             `bun:",notnull"` // Strike count after this offense was recorded
	Score     float64         `bun:",notnull"` // Classifier score of the offending message
	Action    enum.ActionKind `bun:",notnull"` // Action decided for the strike
	Duration  time.Duration   `bun:",notnull"` // Timeout duration, zero for other actions
	MessageID uint64          `bun:",notnull"` // Offending message, zero when unknown
	CreatedAt time.Time       `bun:",notnull"`
}
