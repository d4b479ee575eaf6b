package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/rueidis"
	"go.uber.org/zap"
)

const (
	// DailyStatsKeyPrefix namespaces the daily counter hashes.
	DailyStatsKeyPrefix = "daily_stats"
	// DailyStatsExpiry is how long a day's counters are kept.
	DailyStatsExpiry = 8 * 24 * time.Hour
)

// Stats records daily moderation counters in Redis hashes.
type Stats struct {
	client rueidis.Client
	logger *zap.Logger
	now    func() time.Time
}

// NewStats creates a new Stats instance.
func NewStats(client rueidis.Client, logger *zap.Logger) *Stats {
	return &Stats{
		client: client,
		logger: logger.Named("stats"),
		now:    time.Now,
	}
}

// Increment adds one to a counter of the current day.
func (s *Stats) Increment(ctx context.Context, counter string) error {
	key := dailyKey(s.now())

	cmds := rueidis.Commands{
		s.client.B().Hincrby().Key(key).Field(counter).Increment(1).Build(),
		s.client.B().Expire().Key(key).Seconds(int64(DailyStatsExpiry.Seconds())).Build(),
	}

	for _, resp := range s.client.DoMulti(ctx, cmds...) {
		if err := resp.Error(); err != nil {
			return fmt.Errorf("failed to increment %s: %w", counter, err)
		}
	}

	return nil
}

// Today returns the counters of the current day.
func (s *Stats) Today(ctx context.Context) (map[string]int64, error) {
	return s.Day(ctx, s.now())
}

// Day returns the counters of the day containing t.
func (s *Stats) Day(ctx context.Context, t time.Time) (map[string]int64, error) {
	counters, err := s.client.Do(ctx, s.client.B().Hgetall().Key(dailyKey(t)).Build()).AsIntMap()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return map[string]int64{}, nil
		}

		return nil, fmt.Errorf("failed to get daily stats: %w", err)
	}

	return counters, nil
}

func dailyKey(t time.Time) string {
	return fmt.Sprintf("%s:%s", DailyStatsKeyPrefix, t.UTC().Format("2006-01-02"))
}
