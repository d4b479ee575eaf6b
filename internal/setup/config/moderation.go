package config

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig is wrapped by every validation failure of the moderation section.
var ErrInvalidConfig = errors.New("invalid configuration")

// Growth modes for timeouts beyond the last explicit rule.
const (
	GrowthMultiplicative = "multiplicative"
	GrowthAdditive       = "additive"
)

// Rule actions accepted in the rule table.
const (
	RuleActionIgnore  = "ignore"
	RuleActionWarn    = "warn"
	RuleActionTimeout = "timeout"
)

// MaxTimeoutDuration is the longest communication timeout Discord accepts.
const MaxTimeoutDuration = 28 * 24 * time.Hour

// Moderation contains the escalation engine configuration.
type Moderation struct {
	// Minimum classifier score (0-1] that counts as a confirmed violation.
	ToxicityThreshold float64 `koanf:"toxicity_threshold"`
	// Strike count at which warnings begin. Only used to build the default rule
	// table, so it must stay at its default when rules are set.
	WarningThreshold int `koanf:"warning_threshold"`
	// Maximum number of cached classifier scores.
	CacheSize int `koanf:"cache_size"`
	// Lifetime of scores in the shared Redis tier in seconds (0 disables the tier).
	SharedCacheTTL int `koanf:"shared_cache_ttl"`
	// Channel that receives moderation reports and system alerts.
	ModChannelID uint64 `koanf:"mod_channel_id"`
	// Classifier call timeout in milliseconds.
	ClassifierTimeout int `koanf:"classifier_timeout"`
	// Ledger read/write timeout in milliseconds.
	LedgerTimeout int `koanf:"ledger_timeout"`
	// Platform call timeout in milliseconds.
	PlatformTimeout int `koanf:"platform_timeout"`
	// Shared score tier and counter timeout in milliseconds.
	CacheTimeout int `koanf:"cache_timeout"`
	// Maximum number of messages processed concurrently.
	MaxConcurrentMessages int `koanf:"max_concurrent_messages"`
	// Growth rule applied beyond the last explicit rule.
	Growth Growth `koanf:"growth"`
	// Explicit rule table. Built from WarningThreshold when empty.
	Rules []Rule `koanf:"rules"`
}

// Growth configures how timeout durations grow past the rule table.
type Growth struct {
	// Either "multiplicative" or "additive".
	Mode string `koanf:"mode"`
	// Multiplier applied per strike in multiplicative mode.
	Factor float64 `koanf:"factor"`
	// Duration added per strike in additive mode, in milliseconds.
	Step int64 `koanf:"step"`
	// Upper bound for any timeout in milliseconds.
	MaxDuration int64 `koanf:"max_duration"`
}

// Rule maps a strike count to an action.
type Rule struct {
	// Strike count at which this rule starts to apply.
	Strikes int `koanf:"strikes"`
	// One of "ignore", "warn" or "timeout".
	Action string `koanf:"action"`
	// Timeout duration in milliseconds.
	Duration int64 `koanf:"duration"`
}

// DefaultWarningThreshold is the strike count at which warnings begin by default.
const DefaultWarningThreshold = 1

// DefaultModeration returns the moderation defaults used when a key is absent.
func DefaultModeration() Moderation {
	return Moderation{
		ToxicityThreshold:     0.75,
		WarningThreshold:      DefaultWarningThreshold,
		CacheSize:             1000,
		SharedCacheTTL:        0,
		ClassifierTimeout:     10000,
		LedgerTimeout:         5000,
		PlatformTimeout:       5000,
		CacheTimeout:          1000,
		MaxConcurrentMessages: 64,
		Growth: Growth{
			Mode:        GrowthMultiplicative,
			Factor:      2,
			MaxDuration: MaxTimeoutDuration.Milliseconds(),
		},
	}
}

// Validate checks the moderation section for values the engine cannot run with.
func (m *Moderation) Validate() error {
	if m.ToxicityThreshold <= 0 || m.ToxicityThreshold > 1 {
		return fmt.Errorf("%w: toxicity_threshold must be in (0, 1], got %v", ErrInvalidConfig, m.ToxicityThreshold)
	}

	if m.WarningThreshold < 1 {
		return fmt.Errorf("%w: warning_threshold must be at least 1, got %d", ErrInvalidConfig, m.WarningThreshold)
	}

	if m.CacheSize < 1 {
		return fmt.Errorf("%w: cache_size must be at least 1, got %d", ErrInvalidConfig, m.CacheSize)
	}

	if m.SharedCacheTTL < 0 {
		return fmt.Errorf("%w: shared_cache_ttl must not be negative", ErrInvalidConfig)
	}

	if m.ClassifierTimeout <= 0 || m.LedgerTimeout <= 0 || m.PlatformTimeout <= 0 || m.CacheTimeout <= 0 {
		return fmt.Errorf("%w: classifier, ledger, platform and cache timeouts must be positive", ErrInvalidConfig)
	}

	if m.MaxConcurrentMessages < 1 {
		return fmt.Errorf("%w: max_concurrent_messages must be at least 1", ErrInvalidConfig)
	}

	if err := m.Growth.validate(); err != nil {
		return err
	}

	// The rule table replaces the warning threshold entirely
	if len(m.Rules) > 0 && m.WarningThreshold != DefaultWarningThreshold {
		return fmt.Errorf("%w: warning_threshold has no effect when rules are set", ErrInvalidConfig)
	}

	prev := 0
	for i, rule := range m.Rules {
		if rule.Strikes <= prev {
			return fmt.Errorf("%w: rules[%d].strikes must be strictly increasing and positive", ErrInvalidConfig, i)
		}

		switch rule.Action {
		case RuleActionIgnore, RuleActionWarn:
		case RuleActionTimeout:
			if rule.Duration <= 0 || rule.Duration > m.Growth.MaxDuration {
				return fmt.Errorf("%w: rules[%d].duration must be in (0, max_duration]", ErrInvalidConfig, i)
			}
		default:
			return fmt.Errorf("%w: rules[%d].action %q is not one of ignore, warn, timeout",
				ErrInvalidConfig, i, rule.Action)
		}

		prev = rule.Strikes
	}

	return nil
}

func (g *Growth) validate() error {
	switch g.Mode {
	case GrowthMultiplicative:
		if g.Factor <= 1 {
			return fmt.Errorf("%w: growth.factor must be greater than 1", ErrInvalidConfig)
		}
	case GrowthAdditive:
		if g.Step <= 0 {
			return fmt.Errorf("%w: growth.step must be positive", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: growth.mode %q is not one of %s, %s",
			ErrInvalidConfig, g.Mode, GrowthMultiplicative, GrowthAdditive)
	}

	if g.MaxDuration <= 0 || g.MaxDuration > MaxTimeoutDuration.Milliseconds() {
		return fmt.Errorf("%w: growth.max_duration must be in (0, %d]", ErrInvalidConfig, MaxTimeoutDuration.Milliseconds())
	}

	return nil
}

// Milliseconds converts a configured millisecond value to a duration.
func Milliseconds[T int | int64](ms T) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
