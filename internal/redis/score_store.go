package redis

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/rueidis"
)

// ScoreKeyPrefix namespaces shared classifier scores.
const ScoreKeyPrefix = "score"

// ErrInvalidScore is returned for a stored score outside [0, 1].
var ErrInvalidScore = errors.New("shared score out of range")

// scoreEntry is the stored form of a shared score.
type scoreEntry struct {
	Score    float64 `json:"score"`
	ScoredAt int64   `json:"scoredAt"`
}

// ScoreStore keeps classifier scores in Redis so bot instances share them.
type ScoreStore struct {
	client rueidis.Client
	ttl    time.Duration
}

// NewScoreStore creates a score store whose entries expire after ttl.
func NewScoreStore(client rueidis.Client, ttl time.Duration) *ScoreStore {
	return &ScoreStore{client: client, ttl: ttl}
}

// GetScore returns the shared score of a fingerprint.
// Entries that cannot be decoded or hold a score outside [0, 1] are misses
// reported with an error.
func (s *ScoreStore) GetScore(ctx context.Context, fingerprint string) (float64, bool, error) {
	data, err := s.client.Do(ctx, s.client.B().Get().Key(scoreKey(fingerprint)).Build()).AsBytes()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return 0, false, nil
		}

		return 0, false, fmt.Errorf("failed to get shared score: %w", err)
	}

	var entry scoreEntry
	if err := sonic.Unmarshal(data, &entry); err != nil {
		return 0, false, fmt.Errorf("failed to decode shared score: %w", err)
	}

	if math.IsNaN(entry.Score) || entry.Score < 0 || entry.Score > 1 {
		return 0, false, fmt.Errorf("%w: %v", ErrInvalidScore, entry.Score)
	}

	return entry.Score, true, nil
}

// SetScore stores the score of a fingerprint.
func (s *ScoreStore) SetScore(ctx context.Context, fingerprint string, score float64) error {
	data, err := sonic.Marshal(scoreEntry{Score: score, ScoredAt: time.Now().Unix()})
	if err != nil {
		return fmt.Errorf("failed to encode shared score: %w", err)
	}

	cmd := s.client.B().Set().Key(scoreKey(fingerprint)).Value(string(data)).Ex(s.ttl).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("failed to set shared score: %w", err)
	}

	return nil
}

func scoreKey(fingerprint string) string {
	return ScoreKeyPrefix + ":" + fingerprint
}
