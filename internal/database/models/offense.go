package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/robalyx/toxguard/internal/database/dbretry"
	"github.com/robalyx/toxguard/internal/database/types"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// OffenseModel handles database operations for the offense ledger.
type OffenseModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewOffense creates a new offense model instance.
func NewOffense(db *bun.DB, logger *zap.Logger) *OffenseModel {
	return &OffenseModel{
		db:     db,
		logger: logger.Named("db_offense"),
	}
}

// Get returns the offense record of a user with its full history.
// Unknown users get a zero-strike record that is not persisted.
func (m *OffenseModel) Get(ctx context.Context, guildID, userID uint64) (*types.OffenseRecord, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (*types.OffenseRecord, error) {
		record := &types.OffenseRecord{GuildID: guildID, UserID: userID}

		err := m.db.NewSelect().
			Model(record).
			Relation("History", func(q *bun.SelectQuery) *bun.SelectQuery {
				return q.Order("id ASC")
			}).
			WherePK().
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return &types.OffenseRecord{GuildID: guildID, UserID: userID}, nil
			}

			return nil, fmt.Errorf("failed to get offense record: %w", err)
		}

		return record, nil
	})
}

// RecordOffense increments the strike count of a user and appends the entry
// to the history in one transaction. The action of the entry is decided from
// the post-increment strike count while the row is locked. Returns that count,
// which is also stored in entry.Strike.
func (m *OffenseModel) RecordOffense(
	ctx context.Context, guildID, userID uint64, entry *types.OffenseEntry, decide types.ActionDecider,
) (int, error) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	entry.GuildID = guildID
	entry.UserID = userID

	var strikes int

	err := dbretry.Transaction(ctx, m.db, func(ctx context.Context, tx bun.Tx) error {
		record := &types.OffenseRecord{
			GuildID:       guildID,
			UserID:        userID,
			StrikeCount:   1,
			LastOffenseAt: entry.CreatedAt,
		}

		// The row lock taken by the upsert serializes concurrent offenses of
		// the same user until the transaction commits
		err := tx.NewInsert().
			Model(record).
			On("CONFLICT (guild_id, user_id) DO UPDATE").
			Set("strike_count = offense_record.strike_count + 1").
			Set("last_offense_at = EXCLUDED.last_offense_at").
			Returning("strike_count").
			Scan(ctx, &strikes)
		if err != nil {
			return fmt.Errorf("failed to increment strike count: %w", err)
		}

		entry.ID = 0
		entry.Strike = strikes
		entry.Action, entry.Duration = decide(strikes)

		if _, err := tx.NewInsert().Model(entry).Exec(ctx); err != nil {
			return fmt.Errorf("failed to append offense entry: %w", err)
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	m.logger.Debug("Recorded offense",
		zap.Uint64("guildID", guildID),
		zap.Uint64("userID", userID),
		zap.Int("strikes", strikes),
		zap.String("action", entry.Action.String()))

	return strikes, nil
}

// Reset zeroes the strike count of a user and clears the history together.
func (m *OffenseModel) Reset(ctx context.Context, guildID, userID uint64) error {
	err := dbretry.Transaction(ctx, m.db, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewDelete().
			Model((*types.OffenseEntry)(nil)).
			Where("guild_id = ? AND user_id = ?", guildID, userID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to clear offense history: %w", err)
		}

		_, err = tx.NewUpdate().
			Model((*types.OffenseRecord)(nil)).
			Set("strike_count = 0").
			Set("last_offense_at = NULL").
			Where("guild_id = ? AND user_id = ?", guildID, userID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to reset strike count: %w", err)
		}

		return nil
	})
	if err != nil {
		return err
	}

	m.logger.Debug("Reset offense record",
		zap.Uint64("guildID", guildID),
		zap.Uint64("userID", userID))

	return nil
}

// GetTopOffenders returns the records with the most strikes in a guild.
func (m *OffenseModel) GetTopOffenders(ctx context.Context, guildID uint64, limit int) ([]*types.OffenseRecord, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.OffenseRecord, error) {
		var records []*types.OffenseRecord

		err := m.db.NewSelect().
			Model(&records).
			Where("guild_id = ?", guildID).
			Where("strike_count > 0").
			Order("strike_count DESC", "last_offense_at DESC").
			Limit(limit).
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get top offenders: %w", err)
		}

		return records, nil
	})
}
