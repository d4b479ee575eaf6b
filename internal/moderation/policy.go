package moderation

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/robalyx/toxguard/internal/database/types/enum"
	"github.com/robalyx/toxguard/internal/setup/config"
)

// Default timeouts of the built-in rule table.
const (
	DefaultFirstTimeout  = 10 * time.Second
	DefaultSecondTimeout = 30 * time.Second
)

var (
	errEmptyRules      = errors.New("rule table is empty")
	errRuleOrder       = errors.New("rule strikes must be positive and strictly increasing")
	errRuleSeverity    = errors.New("rule severity must not decrease")
	errRuleDuration    = errors.New("timeout duration must be in (0, max duration]")
	errInvalidGrowth   = errors.New("invalid growth rule")
	errUnknownAction   = errors.New("unknown action")
	errUnknownGrowthBy = errors.New("unknown growth mode")
)

// Action is the enforcement decided for a strike.
type Action struct {
	Kind     enum.ActionKind
	Duration time.Duration
}

// Ignore returns the action that records a strike without contacting the user.
func Ignore() Action {
	return Action{Kind: enum.ActionKindIgnore}
}

// Warn returns the warning action.
func Warn() Action {
	return Action{Kind: enum.ActionKindWarn}
}

// Timeout returns a timeout action of duration d.
func Timeout(d time.Duration) Action {
	return Action{Kind: enum.ActionKindTimeout, Duration: d}
}

// IsTimeout reports whether the action restricts the user.
func (a Action) IsTimeout() bool {
	return a.Kind == enum.ActionKindTimeout
}

func (a Action) String() string {
	if a.IsTimeout() {
		return fmt.Sprintf("Timeout(%s)", a.Duration)
	}

	return a.Kind.String()
}

// Compare orders actions by severity: Ignore < Warn < Timeout, timeouts by duration.
func (a Action) Compare(other Action) int {
	if a.Kind != other.Kind {
		if a.Kind < other.Kind {
			return -1
		}

		return 1
	}

	if !a.IsTimeout() {
		return 0
	}

	switch {
	case a.Duration < other.Duration:
		return -1
	case a.Duration > other.Duration:
		return 1
	default:
		return 0
	}
}

// Rule applies Action from Strikes onward until the next rule.
type Rule struct {
	Strikes int
	Action  Action
}

// GrowthMode selects how timeouts grow past the last rule.
type GrowthMode int

const (
	GrowthMultiplicative GrowthMode = iota
	GrowthAdditive
)

// Growth extends the last timeout rule indefinitely.
type Growth struct {
	Mode   GrowthMode
	Factor float64
	Step   time.Duration
	Max    time.Duration
}

// Policy maps strike counts to actions. It is immutable and safe for concurrent use.
type Policy struct {
	rules  []Rule
	growth Growth
}

// DefaultRules returns the built-in table: a warning at warningThreshold strikes
// followed by two timeouts of increasing length.
func DefaultRules(warningThreshold int) []Rule {
	return []Rule{
		{Strikes: warningThreshold, Action: Warn()},
		{Strikes: warningThreshold + 1, Action: Timeout(DefaultFirstTimeout)},
		{Strikes: warningThreshold + 2, Action: Timeout(DefaultSecondTimeout)},
	}
}

// NewPolicy validates the rule table and growth rule.
func NewPolicy(rules []Rule, growth Growth) (*Policy, error) {
	if err := validateGrowth(growth); err != nil {
		return nil, newError(KindConfigurationError, "new policy", err)
	}

	if len(rules) == 0 {
		return nil, newError(KindConfigurationError, "new policy", errEmptyRules)
	}

	for i, rule := range rules {
		if rule.Strikes < 1 || (i > 0 && rule.Strikes <= rules[i-1].Strikes) {
			return nil, newError(KindConfigurationError, "new policy", fmt.Errorf("rule %d: %w", i, errRuleOrder))
		}

		if !rule.Action.Kind.IsAActionKind() {
			return nil, newError(KindConfigurationError, "new policy", fmt.Errorf("rule %d: %w", i, errUnknownAction))
		}

		if rule.Action.IsTimeout() && (rule.Action.Duration <= 0 || rule.Action.Duration > growth.Max) {
			return nil, newError(KindConfigurationError, "new policy", fmt.Errorf("rule %d: %w", i, errRuleDuration))
		}

		if i > 0 && rule.Action.Compare(rules[i-1].Action) < 0 {
			return nil, newError(KindConfigurationError, "new policy", fmt.Errorf("rule %d: %w", i, errRuleSeverity))
		}
	}

	return &Policy{
		rules:  append([]Rule(nil), rules...),
		growth: growth,
	}, nil
}

// NewPolicyFromConfig builds the policy of the moderation configuration.
// The default table is used when no explicit rules are configured.
func NewPolicyFromConfig(cfg *config.Moderation) (*Policy, error) {
	growth := Growth{
		Factor: cfg.Growth.Factor,
		Step:   config.Milliseconds(cfg.Growth.Step),
		Max:    config.Milliseconds(cfg.Growth.MaxDuration),
	}

	switch cfg.Growth.Mode {
	case config.GrowthMultiplicative:
		growth.Mode = GrowthMultiplicative
	case config.GrowthAdditive:
		growth.Mode = GrowthAdditive
	default:
		return nil, newError(KindConfigurationError, "new policy",
			fmt.Errorf("%w: %q", errUnknownGrowthBy, cfg.Growth.Mode))
	}

	if len(cfg.Rules) == 0 {
		return NewPolicy(DefaultRules(cfg.WarningThreshold), growth)
	}

	rules := make([]Rule, 0, len(cfg.Rules))
	for _, r := range cfg.Rules {
		kind, err := enum.ActionKindString(r.Action)
		if err != nil {
			return nil, newError(KindConfigurationError, "new policy",
				fmt.Errorf("%w: %q", errUnknownAction, r.Action))
		}

		action := Action{Kind: kind}
		if kind == enum.ActionKindTimeout {
			action.Duration = config.Milliseconds(r.Duration)
		}

		rules = append(rules, Rule{Strikes: r.Strikes, Action: action})
	}

	return NewPolicy(rules, growth)
}

// Decide returns the action for a strike count. It is defined for every count:
// counts below the first rule are ignored and counts past the last rule follow
// the growth rule when the last rule is a timeout.
func (p *Policy) Decide(strikes int) Action {
	// Index of the first rule above strikes
	i := sort.Search(len(p.rules), func(i int) bool {
		return p.rules[i].Strikes > strikes
	})
	if i == 0 {
		return Ignore()
	}

	rule := p.rules[i-1]
	if i < len(p.rules) || !rule.Action.IsTimeout() {
		return rule.Action
	}

	return Timeout(p.grow(rule.Action.Duration, strikes-rule.Strikes))
}

// grow applies the growth rule steps times to base, capped at the maximum.
func (p *Policy) grow(base time.Duration, steps int) time.Duration {
	if steps <= 0 {
		return base
	}

	limit := p.growth.Max

	switch p.growth.Mode {
	case GrowthAdditive:
		if time.Duration(steps) > (limit-base)/p.growth.Step {
			return limit
		}

		return base + time.Duration(steps)*p.growth.Step
	default:
		grown := float64(base) * math.Pow(p.growth.Factor, float64(steps))
		if math.IsInf(grown, 0) || grown >= float64(limit) {
			return limit
		}

		return time.Duration(grown)
	}
}

// Rules returns a copy of the rule table.
func (p *Policy) Rules() []Rule {
	return append([]Rule(nil), p.rules...)
}

func validateGrowth(g Growth) error {
	if g.Max <= 0 || g.Max > config.MaxTimeoutDuration {
		return fmt.Errorf("%w: max duration must be in (0, %s]", errInvalidGrowth, config.MaxTimeoutDuration)
	}

	switch g.Mode {
	case GrowthMultiplicative:
		if g.Factor <= 1 || math.IsNaN(g.Factor) || math.IsInf(g.Factor, 0) {
			return fmt.Errorf("%w: factor must be a finite number greater than 1", errInvalidGrowth)
		}
	case GrowthAdditive:
		if g.Step <= 0 {
			return fmt.Errorf("%w: step must be positive", errInvalidGrowth)
		}
	default:
		return fmt.Errorf("%w: %d", errUnknownGrowthBy, g.Mode)
	}

	return nil
}
