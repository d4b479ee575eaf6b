package commands

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/robalyx/toxguard/internal/database"
	"github.com/uptrace/bun/migrate"
	"go.uber.org/zap"
)

var (
	ErrNameRequired     = errors.New("NAME argument required")
	ErrGuildUserMissing = errors.New("GUILD_ID and USER_ID arguments required")
	ErrGuildMissing     = errors.New("GUILD_ID argument required")
	ErrInvalidID        = errors.New("invalid snowflake ID")
)

// CLIDependencies holds the common dependencies needed by CLI commands.
type CLIDependencies struct {
	DB       database.Client
	Migrator *migrate.Migrator
	Logger   *zap.Logger
}

// parseID parses a Discord snowflake argument.
func parseID(arg string) (uint64, error) {
	id, err := strconv.ParseUint(arg, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidID, arg)
	}

	return id, nil
}
