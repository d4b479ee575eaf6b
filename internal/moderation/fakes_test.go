package moderation_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/robalyx/toxguard/internal/database/types"
	"github.com/robalyx/toxguard/internal/moderation"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const modChannelID = 99

var errFake = errors.New("fake failure")

// fakeClassifier scores texts from a table and counts its invocations.
type fakeClassifier struct {
	scores map[string]float64
	err    error
	// entered and release let a test hold a call in flight when set.
	entered chan struct{}
	release chan struct{}
	calls   atomic.Int32
}

func (c *fakeClassifier) Classify(ctx context.Context, text string) (float64, error) {
	c.calls.Add(1)

	if c.entered != nil {
		c.entered <- struct{}{}
	}

	if c.release != nil {
		select {
		case <-c.release:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}

	if c.err != nil {
		return 0, c.err
	}

	return c.scores[text], nil
}

// blockingClassifier never answers before its context ends.
type blockingClassifier struct{}

func (blockingClassifier) Classify(ctx context.Context, _ string) (float64, error) {
	<-ctx.Done()
	return 0, ctx.Err()
}

type timeoutCall struct {
	GuildID  uint64
	UserID   uint64
	Duration time.Duration
}

// fakePlatform records every call it receives.
type fakePlatform struct {
	mu       sync.Mutex
	dms      map[uint64][]string
	timeouts []timeoutCall
	notices  []*moderation.Notice

	dmErr      error
	timeoutErr error
	postErr    error
	// onEnforce runs before any enforcement call is recorded.
	onEnforce func(userID uint64)
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{dms: make(map[uint64][]string)}
}

func (p *fakePlatform) SendDirectMessage(_ context.Context, userID uint64, text string) error {
	if p.onEnforce != nil {
		p.onEnforce(userID)
	}

	if p.dmErr != nil {
		return p.dmErr
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.dms[userID] = append(p.dms[userID], text)

	return nil
}

func (p *fakePlatform) ApplyTimeout(_ context.Context, guildID, userID uint64, d time.Duration, _ string) error {
	if p.onEnforce != nil {
		p.onEnforce(userID)
	}

	if p.timeoutErr != nil {
		return p.timeoutErr
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.timeouts = append(p.timeouts, timeoutCall{GuildID: guildID, UserID: userID, Duration: d})

	return nil
}

func (p *fakePlatform) PostToChannel(_ context.Context, channelID uint64, notice *moderation.Notice) error {
	if p.postErr != nil {
		return p.postErr
	}

	if channelID != modChannelID {
		return errors.New("unexpected channel")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.notices = append(p.notices, notice)

	return nil
}

func (p *fakePlatform) dmCount(userID uint64) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.dms[userID])
}

func (p *fakePlatform) timeoutCalls() []timeoutCall {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]timeoutCall(nil), p.timeouts...)
}

func (p *fakePlatform) noticesOf(kind moderation.NoticeKind) []*moderation.Notice {
	p.mu.Lock()
	defer p.mu.Unlock()

	var result []*moderation.Notice
	for _, n := range p.notices {
		if n.Kind == kind {
			result = append(result, n)
		}
	}

	return result
}

// flakyLedger fails selected operations of an in-memory ledger.
type flakyLedger struct {
	*moderation.MemoryLedger
	failGet    atomic.Bool
	failRecord atomic.Bool
}

func (l *flakyLedger) Get(ctx context.Context, guildID, userID uint64) (*types.OffenseRecord, error) {
	if l.failGet.Load() {
		return nil, errFake
	}

	return l.MemoryLedger.Get(ctx, guildID, userID)
}

func (l *flakyLedger) RecordOffense(
	ctx context.Context, guildID, userID uint64, entry *types.OffenseEntry, decide types.ActionDecider,
) (int, error) {
	if l.failRecord.Load() {
		return 0, errFake
	}

	return l.MemoryLedger.RecordOffense(ctx, guildID, userID, entry, decide)
}

// racingLedger records a strike for another writer sharing the ledger right
// before each write of the engine.
type racingLedger struct {
	*flakyLedger
}

func (l *racingLedger) RecordOffense(
	ctx context.Context, guildID, userID uint64, entry *types.OffenseEntry, decide types.ActionDecider,
) (int, error) {
	other := &types.OffenseEntry{Score: entry.Score}
	if _, err := l.flakyLedger.RecordOffense(ctx, guildID, userID, other, decide); err != nil {
		return 0, err
	}

	return l.flakyLedger.RecordOffense(ctx, guildID, userID, entry, decide)
}

// stalledScores is a shared score tier that never answers before ctx is done.
type stalledScores struct{}

func (stalledScores) GetScore(ctx context.Context, _ string) (float64, bool, error) {
	<-ctx.Done()
	return 0, false, ctx.Err()
}

func (stalledScores) SetScore(ctx context.Context, _ string, _ float64) error {
	<-ctx.Done()
	return ctx.Err()
}

// stalledCounters never answers before ctx is done.
type stalledCounters struct{}

func (stalledCounters) Increment(ctx context.Context, _ string) error {
	<-ctx.Done()
	return ctx.Err()
}

// memoryAudit collects moderation logs.
type memoryAudit struct {
	mu   sync.Mutex
	logs []*types.ModerationLog
}

func (a *memoryAudit) Log(_ context.Context, log *types.ModerationLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.logs = append(a.logs, log)

	return nil
}

// memoryCounters counts increments per counter.
type memoryCounters struct {
	mu     sync.Mutex
	counts map[string]int
}

func (c *memoryCounters) Increment(_ context.Context, counter string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.counts == nil {
		c.counts = make(map[string]int)
	}
	c.counts[counter]++

	return nil
}

func (c *memoryCounters) get(counter string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.counts[counter]
}

type testEngine struct {
	*moderation.Engine
	ledger   *flakyLedger
	platform *fakePlatform
	audit    *memoryAudit
	counters *memoryCounters
	cache    *moderation.ScoreCache
}

func defaultGrowth() moderation.Growth {
	return moderation.Growth{Mode: moderation.GrowthMultiplicative, Factor: 2, Max: time.Hour}
}

func newTestEngine(t *testing.T, classifier moderation.Classifier) *testEngine {
	t.Helper()

	return newConfiguredTestEngine(t, classifier, nil)
}

// newConfiguredTestEngine lets configure replace dependencies and options
// before the engine is created.
func newConfiguredTestEngine(
	t *testing.T,
	classifier moderation.Classifier,
	configure func(deps *moderation.Dependencies, opts *moderation.Options),
) *testEngine {
	t.Helper()

	logger := zaptest.NewLogger(t)

	cache, err := moderation.NewScoreCache(100, nil, logger)
	require.NoError(t, err)

	policy, err := moderation.NewPolicy(moderation.DefaultRules(1), defaultGrowth())
	require.NoError(t, err)

	ledger := &flakyLedger{MemoryLedger: moderation.NewMemoryLedger()}
	platform := newFakePlatform()
	audit := &memoryAudit{}
	counters := &memoryCounters{}

	deps := moderation.Dependencies{
		Classifier: classifier,
		Cache:      cache,
		Ledger:     ledger,
		Policy:     policy,
		Platform:   platform,
		Reporter:   moderation.NewReporter(platform, audit, modChannelID, time.Second, logger),
		Counters:   counters,
	}
	opts := moderation.Options{
		ToxicityThreshold: 0.75,
		ClassifierTimeout: 200 * time.Millisecond,
		LedgerTimeout:     time.Second,
		PlatformTimeout:   time.Second,
		CacheTimeout:      time.Second,
	}

	if configure != nil {
		configure(&deps, &opts)
	}

	engine, err := moderation.NewEngine(deps, opts, logger)
	require.NoError(t, err)

	return &testEngine{
		Engine:   engine,
		ledger:   ledger,
		platform: platform,
		audit:    audit,
		counters: counters,
		cache:    cache,
	}
}

func message(userID uint64, content string) *moderation.Message {
	return &moderation.Message{
		GuildID:   1,
		ChannelID: 10,
		MessageID: 1000 + userID,
		UserID:    userID,
		Content:   content,
	}
}
