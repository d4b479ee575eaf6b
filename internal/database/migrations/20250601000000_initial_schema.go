package migrations

import (
	"context"
	"fmt"

	"github.com/robalyx/toxguard/internal/database/types"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		models := []any{
			(*types.OffenseRecord)(nil),
			(*types.OffenseEntry)(nil),
			(*types.ModerationLog)(nil),
		}

		for _, model := range models {
			_, err := db.NewCreateTable().
				Model(model).
				IfNotExists().
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("failed to create table %T: %w", model, err)
			}
		}

		// History lookups always filter by user and walk in insertion order
		_, err := db.NewCreateIndex().
			Model((*types.OffenseEntry)(nil)).
			Index("idx_offense_entries_user").
			Column("guild_id", "user_id", "id").
			IfNotExists().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create offense entry index: %w", err)
		}

		_, err = db.NewCreateIndex().
			Model((*types.ModerationLog)(nil)).
			Index("idx_moderation_logs_guild_time").
			Column("guild_id", "created_at", "id").
			IfNotExists().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create moderation log index: %w", err)
		}

		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		_, err := db.NewRaw("DROP TABLE IF EXISTS moderation_logs, offense_entries, offense_records CASCADE").Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to drop tables: %w", err)
		}

		return nil
	})
}
