package models

import (
	"context"
	"fmt"

	"github.com/robalyx/toxguard/internal/database/dbretry"
	"github.com/robalyx/toxguard/internal/database/types"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// ModerationLogModel handles database operations for the moderation audit log.
type ModerationLogModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewModerationLog creates a new moderation log model instance.
func NewModerationLog(db *bun.DB, logger *zap.Logger) *ModerationLogModel {
	return &ModerationLogModel{
		db:     db,
		logger: logger.Named("db_moderation_log"),
	}
}

// Log stores a moderation log entry.
func (m *ModerationLogModel) Log(ctx context.Context, log *types.ModerationLog) error {
	err := dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := m.db.NewInsert().Model(log).Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to store moderation log: %w", err)
		}

		return nil
	})
	if err != nil {
		return err
	}

	m.logger.Debug("Stored moderation log",
		zap.String("kind", log.Kind.String()),
		zap.Uint64("guildID", log.GuildID),
		zap.Uint64("userID", log.UserID))

	return nil
}

// GetLogs retrieves moderation logs of a guild with pagination, newest first.
func (m *ModerationLogModel) GetLogs(
	ctx context.Context, guildID uint64, cursor *types.LogCursor, limit int,
) ([]*types.ModerationLog, *types.LogCursor, error) {
	var (
		logs       []*types.ModerationLog
		nextCursor *types.LogCursor
	)

	err := dbretry.NoResult(ctx, func(ctx context.Context) error {
		logs = nil

		query := m.db.NewSelect().
			Model(&logs).
			Where("guild_id = ?", guildID).
			Limit(limit + 1) // Get one extra to determine if there's a next page

		if cursor != nil {
			query = query.Where("(created_at, id) <= (?, ?)", cursor.CreatedAt, cursor.ID)
		}

		err := query.Order("created_at DESC", "id DESC").Scan(ctx)
		if err != nil {
			return fmt.Errorf("failed to get moderation logs: %w", err)
		}

		if len(logs) > limit {
			last := logs[limit]
			nextCursor = &types.LogCursor{CreatedAt: last.CreatedAt, ID: last.ID}
			logs = logs[:limit]
		}

		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	return logs, nextCursor, nil
}
