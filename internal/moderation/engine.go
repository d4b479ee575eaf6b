package moderation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/robalyx/toxguard/internal/database/types"
	"github.com/robalyx/toxguard/internal/database/types/enum"
	"github.com/robalyx/toxguard/internal/setup/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const tracerName = "github.com/robalyx/toxguard/internal/moderation"

var errScoreOutOfRange = errors.New("classifier score out of range")

// Message is an inbound chat message.
type Message struct {
	GuildID   uint64
	ChannelID uint64
	MessageID uint64
	UserID    uint64
	Content   string
	// FromBot marks messages sent by bots and webhooks.
	FromBot bool
}

// Options configures the engine.
type Options struct {
	ToxicityThreshold float64
	ClassifierTimeout time.Duration
	LedgerTimeout     time.Duration
	PlatformTimeout   time.Duration
	// CacheTimeout bounds shared score tier and counter calls.
	CacheTimeout time.Duration
}

// OptionsFromConfig extracts the engine options of the moderation configuration.
func OptionsFromConfig(cfg *config.Moderation) Options {
	return Options{
		ToxicityThreshold: cfg.ToxicityThreshold,
		ClassifierTimeout: config.Milliseconds(cfg.ClassifierTimeout),
		LedgerTimeout:     config.Milliseconds(cfg.LedgerTimeout),
		PlatformTimeout:   config.Milliseconds(cfg.PlatformTimeout),
		CacheTimeout:      config.Milliseconds(cfg.CacheTimeout),
	}
}

// Dependencies are the collaborators of the engine. Counters may be nil.
type Dependencies struct {
	Classifier Classifier
	Cache      *ScoreCache
	Ledger     Ledger
	Policy     *Policy
	Platform   Platform
	Reporter   *Reporter
	Counters   Counters
}

// Engine turns classifier scores into escalating enforcement actions.
// Offense recording, enforcement and reporting are serialized per user;
// different users are handled in parallel.
type Engine struct {
	deps   Dependencies
	opts   Options
	locks  *keyedMutex
	flight singleflight.Group
	tracer trace.Tracer
	logger *zap.Logger

	mu       sync.RWMutex
	closed   bool
	inflight sync.WaitGroup
}

// NewEngine creates an engine.
func NewEngine(deps Dependencies, opts Options, logger *zap.Logger) (*Engine, error) {
	switch {
	case deps.Classifier == nil, deps.Cache == nil, deps.Ledger == nil,
		deps.Policy == nil, deps.Platform == nil, deps.Reporter == nil:
		return nil, newError(KindConfigurationError, "new engine", errors.New("missing dependency"))
	case math.IsNaN(opts.ToxicityThreshold) || opts.ToxicityThreshold <= 0 || opts.ToxicityThreshold > 1:
		return nil, newError(KindConfigurationError, "new engine",
			fmt.Errorf("toxicity threshold %v is not in (0, 1]", opts.ToxicityThreshold))
	case opts.ClassifierTimeout <= 0 || opts.LedgerTimeout <= 0 ||
		opts.PlatformTimeout <= 0 || opts.CacheTimeout <= 0:
		return nil, newError(KindConfigurationError, "new engine", errors.New("timeouts must be positive"))
	}

	return &Engine{
		deps:   deps,
		opts:   opts,
		locks:  newKeyedMutex(),
		tracer: otel.Tracer(tracerName),
		logger: logger.Named("engine"),
	}, nil
}

// HandleMessage classifies a message and escalates against its sender when it
// is toxic. The outcome is never nil. The error is an *Error for skipped,
// deferred and unenforced messages, or ErrShuttingDown after Close.
func (e *Engine) HandleMessage(ctx context.Context, msg *Message) (*Outcome, error) {
	if !e.acquire() {
		return &Outcome{Kind: OutcomeRejected}, ErrShuttingDown
	}
	defer e.inflight.Done()

	if msg.FromBot || strings.TrimSpace(msg.Content) == "" {
		return &Outcome{Kind: OutcomeIgnored}, nil
	}

	ctx, span := e.tracer.Start(ctx, "moderation.HandleMessage", trace.WithAttributes(
		attribute.Int64("guild.id", int64(msg.GuildID)), //nolint:gosec // snowflakes fit in int64
		attribute.Int64("user.id", int64(msg.UserID)),   //nolint:gosec // snowflakes fit in int64
	))
	defer span.End()

	// Nothing below may be cut short by the caller
	ctx = context.WithoutCancel(ctx)

	e.count(ctx, CounterMessagesScanned)

	score, cached, err := e.score(ctx, msg.Content)
	if err != nil {
		merr := newError(KindClassificationFailure, "classify message", err)
		span.SetStatus(codes.Error, merr.Error())
		e.alert(ctx, msg, merr)

		return &Outcome{Kind: OutcomeSkipped}, merr
	}

	span.SetAttributes(attribute.Float64("score", score), attribute.Bool("cached", cached))

	if score < e.opts.ToxicityThreshold {
		return &Outcome{Kind: OutcomeNoAction, Score: score, Cached: cached}, nil
	}

	e.count(ctx, CounterMessagesToxic)

	unlock := e.locks.Lock(userKey{msg.GuildID, msg.UserID})
	defer unlock()

	outcome, err := e.escalate(ctx, msg, score)
	outcome.Cached = cached

	span.SetAttributes(
		attribute.String("outcome", outcome.Kind.String()),
		attribute.Int("strikes", outcome.Strikes),
		attribute.String("action", outcome.Action.String()))

	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}

	return outcome, err
}

// escalate records the strike, enforces its action and reports it.
// The caller holds the user's lock.
func (e *Engine) escalate(ctx context.Context, msg *Message, score float64) (*Outcome, error) {
	entry := &types.OffenseEntry{
		Score:     score,
		MessageID: msg.MessageID,
		CreatedAt: time.Now(),
	}

	// The action follows the count the ledger actually assigned, which may
	// include strikes recorded by another process sharing it
	ledgerCtx, cancel := context.WithTimeout(ctx, e.opts.LedgerTimeout)
	strikes, err := e.deps.Ledger.RecordOffense(ledgerCtx, msg.GuildID, msg.UserID, entry, e.decide)
	cancel()

	if err != nil {
		return e.deferOutcome(ctx, msg, score, newError(KindPersistenceError, "record offense", err))
	}

	action := Action{Kind: entry.Action, Duration: entry.Duration}

	enforceErr := e.enforce(ctx, msg, strikes, action)

	outcome := &Outcome{
		Kind:     OutcomeActioned,
		Score:    score,
		Strikes:  strikes,
		Action:   action,
		Enforced: enforceErr == nil,
	}

	switch action.Kind {
	case enum.ActionKindWarn:
		e.count(ctx, CounterActionsWarn)
	case enum.ActionKindTimeout:
		e.count(ctx, CounterActionsTimeout)
	case enum.ActionKindIgnore:
	}

	err = e.deps.Reporter.Report(ctx, &Report{
		Message:        msg,
		Score:          score,
		Strikes:        strikes,
		Action:         action,
		Enforced:       outcome.Enforced,
		EnforcementErr: enforceErr,
		Timestamp:      entry.CreatedAt,
	})
	if err != nil {
		e.logger.Error("Failed to report violation", zap.Error(err))
	}

	if enforceErr != nil {
		merr := newError(KindEnforcementFailure, "enforce "+action.String(), enforceErr)
		e.alert(ctx, msg, merr)

		return outcome, merr
	}

	return outcome, nil
}

// decide adapts the policy to the ledger's decision callback.
func (e *Engine) decide(strikes int) (enum.ActionKind, time.Duration) {
	action := e.deps.Policy.Decide(strikes)
	return action.Kind, action.Duration
}

// deferOutcome raises the alert of a failed ledger operation. Nothing was enforced.
func (e *Engine) deferOutcome(ctx context.Context, msg *Message, score float64, merr *Error) (*Outcome, error) {
	e.count(ctx, CounterDeferred)
	e.alert(ctx, msg, merr)

	return &Outcome{Kind: OutcomeDeferred, Score: score}, merr
}

// enforce applies the action on the platform.
func (e *Engine) enforce(ctx context.Context, msg *Message, strikes int, action Action) error {
	switch action.Kind {
	case enum.ActionKindIgnore:
		return nil
	case enum.ActionKindWarn:
		return e.notify(ctx, msg.UserID, WarningText(msg))
	case enum.ActionKindTimeout:
		platformCtx, cancel := context.WithTimeout(ctx, e.opts.PlatformTimeout)
		defer cancel()

		reason := fmt.Sprintf("Toxic message violation #%d", strikes)
		if err := e.deps.Platform.ApplyTimeout(platformCtx, msg.GuildID, msg.UserID, action.Duration, reason); err != nil {
			return fmt.Errorf("failed to apply timeout: %w", err)
		}

		return e.notify(ctx, msg.UserID, TimeoutText(msg, strikes, action.Duration))
	default:
		return fmt.Errorf("%w: %s", errUnknownAction, action.Kind)
	}
}

func (e *Engine) notify(ctx context.Context, userID uint64, text string) error {
	ctx, cancel := context.WithTimeout(ctx, e.opts.PlatformTimeout)
	defer cancel()

	if err := e.deps.Platform.SendDirectMessage(ctx, userID, text); err != nil {
		return fmt.Errorf("failed to send direct message: %w", err)
	}

	return nil
}

// score returns the score of the content and whether it came from the cache.
// Concurrent misses for the same fingerprint share one classifier call.
func (e *Engine) score(ctx context.Context, content string) (float64, bool, error) {
	fingerprint := Fingerprint(content)

	fetchCtx, cancel := context.WithTimeout(ctx, e.opts.CacheTimeout)
	score, ok := e.deps.Cache.Fetch(fetchCtx, fingerprint)
	cancel()

	if ok {
		return score, true, nil
	}

	result, err, _ := e.flight.Do(fingerprint, func() (any, error) {
		// A flight that just finished may have filled the cache
		if score, ok := e.deps.Cache.Lookup(fingerprint); ok {
			return score, nil
		}

		// Joined callers must not fail because the first one went away
		classifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.opts.ClassifierTimeout)
		defer cancel()

		score, err := e.deps.Classifier.Classify(classifyCtx, content)
		if err != nil {
			return nil, err
		}

		if math.IsNaN(score) || score < 0 || score > 1 {
			return nil, fmt.Errorf("%w: %v", errScoreOutOfRange, score)
		}

		storeCtx, cancelStore := context.WithTimeout(context.WithoutCancel(ctx), e.opts.CacheTimeout)
		defer cancelStore()

		e.deps.Cache.Store(storeCtx, fingerprint, score)

		return score, nil
	})
	if err != nil {
		return 0, false, err
	}

	return result.(float64), false, nil
}

// Score returns the toxicity score of text without recording or enforcing anything.
func (e *Engine) Score(ctx context.Context, text string) (float64, bool, error) {
	score, cached, err := e.score(ctx, text)
	if err != nil {
		return 0, false, newError(KindClassificationFailure, "classify text", err)
	}

	return score, cached, nil
}

// IsToxic reports whether a score reaches the toxicity threshold.
func (e *Engine) IsToxic(score float64) bool {
	return score >= e.opts.ToxicityThreshold
}

// History returns the offense record of a user.
func (e *Engine) History(ctx context.Context, guildID, userID uint64) (*types.OffenseRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, e.opts.LedgerTimeout)
	defer cancel()

	record, err := e.deps.Ledger.Get(ctx, guildID, userID)
	if err != nil {
		return nil, newError(KindPersistenceError, "get offense record", err)
	}

	return record, nil
}

// Reset clears the strikes of a user on behalf of a moderator.
func (e *Engine) Reset(ctx context.Context, guildID, userID, moderatorID uint64) error {
	unlock := e.locks.Lock(userKey{guildID, userID})
	defer unlock()

	ledgerCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.opts.LedgerTimeout)
	defer cancel()

	if err := e.deps.Ledger.Reset(ledgerCtx, guildID, userID); err != nil {
		return newError(KindPersistenceError, "reset offense record", err)
	}

	e.logger.Info("Reset strikes",
		zap.Uint64("guildID", guildID),
		zap.Uint64("userID", userID),
		zap.Uint64("moderatorID", moderatorID))

	if err := e.deps.Reporter.Reset(ctx, guildID, userID, moderatorID); err != nil {
		e.logger.Error("Failed to report reset", zap.Error(err))
	}

	return nil
}

// CacheStats returns the score cache usage.
func (e *Engine) CacheStats() CacheStats {
	return e.deps.Cache.Stats()
}

// Threshold returns the configured toxicity threshold.
func (e *Engine) Threshold() float64 {
	return e.opts.ToxicityThreshold
}

// Close rejects new messages and waits for in-flight ones until ctx is done.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		e.logger.Info("Moderation engine stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("failed to wait for in-flight messages: %w", ctx.Err())
	}
}

func (e *Engine) acquire() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		return false
	}

	e.inflight.Add(1)

	return true
}

func (e *Engine) alert(ctx context.Context, msg *Message, merr *Error) {
	e.count(ctx, CounterAlerts)

	err := e.deps.Reporter.Alert(ctx, &Alert{
		Message:   msg,
		Err:       merr,
		Timestamp: time.Now(),
	})
	if err != nil {
		e.logger.Error("Failed to post alert", zap.NamedError("alert", merr), zap.Error(err))
	}
}

func (e *Engine) count(ctx context.Context, counter string) {
	if e.deps.Counters == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, e.opts.CacheTimeout)
	defer cancel()

	if err := e.deps.Counters.Increment(ctx, counter); err != nil {
		e.logger.Debug("Failed to increment counter", zap.String("counter", counter), zap.Error(err))
	}
}
