package moderation

import (
	"context"
	"sync"
	"time"

	"github.com/robalyx/toxguard/internal/database/types"
)

// Ledger stores the confirmed violations of each user.
// RecordOffense must be linearizable per user.
type Ledger interface {
	// Get returns the record of a user, or a zero-strike record that is not persisted.
	Get(ctx context.Context, guildID, userID uint64) (*types.OffenseRecord, error)
	// RecordOffense appends the entry and increments the strike count atomically.
	// The entry's action is set by decide from the post-increment strike count
	// before it is stored. Returns the post-increment strike count.
	RecordOffense(
		ctx context.Context, guildID, userID uint64, entry *types.OffenseEntry, decide types.ActionDecider,
	) (int, error)
	// Reset zeroes the strike count and clears the history and last offense time together.
	Reset(ctx context.Context, guildID, userID uint64) error
}

type userKey struct {
	guildID uint64
	userID  uint64
}

// MemoryLedger is an in-process Ledger. State is lost on restart.
type MemoryLedger struct {
	mu      sync.RWMutex
	records map[userKey]*types.OffenseRecord
	nextID  int64
}

// NewMemoryLedger creates an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		records: make(map[userKey]*types.OffenseRecord),
	}
}

// Get returns a copy of the record so callers never observe later mutations.
func (l *MemoryLedger) Get(ctx context.Context, guildID, userID uint64) (*types.OffenseRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	record, ok := l.records[userKey{guildID, userID}]
	if !ok {
		return &types.OffenseRecord{GuildID: guildID, UserID: userID}, nil
	}

	clone := *record
	clone.History = make([]*types.OffenseEntry, len(record.History))

	for i, entry := range record.History {
		e := *entry
		clone.History[i] = &e
	}

	return &clone, nil
}

// RecordOffense implements Ledger.
func (l *MemoryLedger) RecordOffense(
	ctx context.Context, guildID, userID uint64, entry *types.OffenseEntry, decide types.ActionDecider,
) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	key := userKey{guildID, userID}

	record, ok := l.records[key]
	if !ok {
		record = &types.OffenseRecord{GuildID: guildID, UserID: userID}
		l.records[key] = record
	}

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	l.nextID++
	record.StrikeCount++
	record.LastOffenseAt = entry.CreatedAt

	entry.Strike = record.StrikeCount
	entry.Action, entry.Duration = decide(record.StrikeCount)

	stored := *entry
	stored.ID = l.nextID
	stored.GuildID = guildID
	stored.UserID = userID
	record.History = append(record.History, &stored)

	return record.StrikeCount, nil
}

// Reset implements Ledger.
func (l *MemoryLedger) Reset(ctx context.Context, guildID, userID uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if record, ok := l.records[userKey{guildID, userID}]; ok {
		record.StrikeCount = 0
		record.LastOffenseAt = time.Time{}
		record.History = nil
	}

	return nil
}
