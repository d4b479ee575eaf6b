package redis_test

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/rueidis"
	"github.com/robalyx/toxguard/internal/moderation"
	"github.com/robalyx/toxguard/internal/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTest(t *testing.T) (*miniredis.Miniredis, rueidis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{mr.Addr()},
		DisableCache: true,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})

	return mr, client
}

func TestScoreStore(t *testing.T) {
	t.Parallel()

	mr, client := setupTest(t)
	store := redis.NewScoreStore(client, time.Minute)
	ctx := t.Context()

	_, ok, err := store.GetScore(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.SetScore(ctx, "abc", 0.83))

	score, ok, err := store.GetScore(ctx, "abc")
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 0.83, score, 1e-9)

	assert.Equal(t, time.Minute, mr.TTL("score:abc"))

	// Entries disappear once their lifetime passes
	mr.FastForward(2 * time.Minute)

	_, ok, err = store.GetScore(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestScoreStoreCorruptEntry(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload string
		wantErr error
	}{
		{name: "not json", payload: "not json"},
		{name: "above one", payload: `{"score":1.5,"scoredAt":0}`, wantErr: redis.ErrInvalidScore},
		{name: "negative", payload: `{"score":-0.2,"scoredAt":0}`, wantErr: redis.ErrInvalidScore},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			mr, client := setupTest(t)
			store := redis.NewScoreStore(client, time.Minute)

			require.NoError(t, mr.Set("score:bad", tt.payload))

			score, ok, err := store.GetScore(t.Context(), "bad")
			require.Error(t, err)
			assert.False(t, ok)
			assert.Zero(t, score)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestScoreCacheRejectsInvalidSharedScore(t *testing.T) {
	t.Parallel()

	mr, client := setupTest(t)
	store := redis.NewScoreStore(client, time.Minute)

	cache, err := moderation.NewScoreCache(10, store, zap.NewNop())
	require.NoError(t, err)

	fingerprint := moderation.Fingerprint("foreign entry")
	require.NoError(t, mr.Set("score:"+fingerprint, `{"score":7,"scoredAt":0}`))

	// An out of range shared score must send the message back to the classifier
	_, ok := cache.Fetch(t.Context(), fingerprint)
	assert.False(t, ok)

	_, ok = cache.Lookup(fingerprint)
	assert.False(t, ok)
}

func TestScoreStoreAsSharedTier(t *testing.T) {
	t.Parallel()

	_, client := setupTest(t)
	store := redis.NewScoreStore(client, time.Minute)

	// Two bot instances with separate local caches share classifier work
	first, err := moderation.NewScoreCache(10, store, zap.NewNop())
	require.NoError(t, err)
	second, err := moderation.NewScoreCache(10, store, zap.NewNop())
	require.NoError(t, err)

	fingerprint := moderation.Fingerprint("same message")
	first.Store(t.Context(), fingerprint, 0.91)

	score, ok := second.Fetch(t.Context(), fingerprint)
	require.True(t, ok)
	assert.InDelta(t, 0.91, score, 1e-9)
}

func TestStats(t *testing.T) {
	t.Parallel()

	mr, client := setupTest(t)
	stats := redis.NewStats(client, zap.NewNop())
	ctx := t.Context()

	empty, err := stats.Today(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)

	for range 3 {
		require.NoError(t, stats.Increment(ctx, moderation.CounterMessagesScanned))
	}
	require.NoError(t, stats.Increment(ctx, moderation.CounterActionsWarn))

	counters, err := stats.Today(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{
		moderation.CounterMessagesScanned: 3,
		moderation.CounterActionsWarn:     1,
	}, counters)

	key := redis.DailyStatsKeyPrefix + ":" + time.Now().UTC().Format("2006-01-02")
	assert.Equal(t, redis.DailyStatsExpiry, mr.TTL(key))
}

func TestStatsUnavailable(t *testing.T) {
	t.Parallel()

	mr, client := setupTest(t)
	stats := redis.NewStats(client, zap.NewNop())

	mr.SetError("LOADING")

	require.Error(t, stats.Increment(t.Context(), moderation.CounterAlerts))
}
