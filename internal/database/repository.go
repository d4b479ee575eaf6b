package database

import (
	"github.com/robalyx/toxguard/internal/database/models"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// Repository provides access to all database models.
type Repository struct {
	offense       *models.OffenseModel
	moderationLog *models.ModerationLogModel
}

// NewRepository creates a new repository instance with all models.
func NewRepository(db *bun.DB, logger *zap.Logger) *Repository {
	return &Repository{
		offense:       models.NewOffense(db, logger),
		moderationLog: models.NewModerationLog(db, logger),
	}
}

// Offense returns the offense ledger model repository.
func (r *Repository) Offense() *models.OffenseModel {
	return r.offense
}

// ModerationLog returns the moderation audit log model repository.
func (r *Repository) ModerationLog() *models.ModerationLogModel {
	return r.moderationLog
}
