package moderation_test

import (
	"testing"
	"time"

	"github.com/robalyx/toxguard/internal/moderation"
	"github.com/robalyx/toxguard/internal/setup/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicyDecideDefaultTable(t *testing.T) {
	t.Parallel()

	policy, err := moderation.NewPolicy(moderation.DefaultRules(1), defaultGrowth())
	require.NoError(t, err)

	tests := []struct {
		strikes int
		want    moderation.Action
	}{
		{strikes: -1, want: moderation.Ignore()},
		{strikes: 0, want: moderation.Ignore()},
		{strikes: 1, want: moderation.Warn()},
		{strikes: 2, want: moderation.Timeout(10 * time.Second)},
		{strikes: 3, want: moderation.Timeout(30 * time.Second)},
		{strikes: 4, want: moderation.Timeout(60 * time.Second)},
		{strikes: 5, want: moderation.Timeout(120 * time.Second)},
		{strikes: 10, want: moderation.Timeout(time.Hour)},
		{strikes: 1 << 30, want: moderation.Timeout(time.Hour)},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, policy.Decide(tt.strikes), "strikes=%d", tt.strikes)
	}
}

func TestPolicyWarningThreshold(t *testing.T) {
	t.Parallel()

	policy, err := moderation.NewPolicy(moderation.DefaultRules(3), defaultGrowth())
	require.NoError(t, err)

	assert.Equal(t, moderation.Ignore(), policy.Decide(1))
	assert.Equal(t, moderation.Ignore(), policy.Decide(2))
	assert.Equal(t, moderation.Warn(), policy.Decide(3))
	assert.Equal(t, moderation.Timeout(10*time.Second), policy.Decide(4))
	assert.Equal(t, moderation.Timeout(30*time.Second), policy.Decide(5))
}

func TestPolicyAdditiveGrowth(t *testing.T) {
	t.Parallel()

	policy, err := moderation.NewPolicy(moderation.DefaultRules(1), moderation.Growth{
		Mode: moderation.GrowthAdditive,
		Step: time.Minute,
		Max:  3 * time.Minute,
	})
	require.NoError(t, err)

	assert.Equal(t, moderation.Timeout(30*time.Second), policy.Decide(3))
	assert.Equal(t, moderation.Timeout(90*time.Second), policy.Decide(4))
	assert.Equal(t, moderation.Timeout(150*time.Second), policy.Decide(5))
	assert.Equal(t, moderation.Timeout(3*time.Minute), policy.Decide(6))
	assert.Equal(t, moderation.Timeout(3*time.Minute), policy.Decide(1_000_000))
}

func TestPolicyTotalAndMonotonic(t *testing.T) {
	t.Parallel()

	growths := map[string]moderation.Growth{
		"multiplicative": {Mode: moderation.GrowthMultiplicative, Factor: 1.5, Max: config.MaxTimeoutDuration},
		"additive":       {Mode: moderation.GrowthAdditive, Step: 7 * time.Minute, Max: config.MaxTimeoutDuration},
	}

	for name, growth := range growths {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			policy, err := moderation.NewPolicy(moderation.DefaultRules(2), growth)
			require.NoError(t, err)

			prev := policy.Decide(0)
			for n := 1; n <= 10_000; n++ {
				action := policy.Decide(n)
				require.GreaterOrEqual(t, action.Compare(prev), 0, "severity decreased at %d", n)

				if action.IsTimeout() {
					require.LessOrEqual(t, action.Duration, config.MaxTimeoutDuration)
				}

				prev = action
			}
		})
	}
}

func TestPolicyTableEndingInWarning(t *testing.T) {
	t.Parallel()

	policy, err := moderation.NewPolicy([]moderation.Rule{
		{Strikes: 2, Action: moderation.Warn()},
	}, defaultGrowth())
	require.NoError(t, err)

	assert.Equal(t, moderation.Ignore(), policy.Decide(1))
	assert.Equal(t, moderation.Warn(), policy.Decide(2))
	assert.Equal(t, moderation.Warn(), policy.Decide(50))
}

func TestNewPolicyRejectsInvalidTables(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		rules  []moderation.Rule
		growth moderation.Growth
	}{
		{
			name:   "empty table",
			rules:  nil,
			growth: defaultGrowth(),
		},
		{
			name: "strikes not increasing",
			rules: []moderation.Rule{
				{Strikes: 2, Action: moderation.Warn()},
				{Strikes: 2, Action: moderation.Timeout(time.Second)},
			},
			growth: defaultGrowth(),
		},
		{
			name:   "zero strikes",
			rules:  []moderation.Rule{{Strikes: 0, Action: moderation.Warn()}},
			growth: defaultGrowth(),
		},
		{
			name: "decreasing severity",
			rules: []moderation.Rule{
				{Strikes: 1, Action: moderation.Timeout(time.Minute)},
				{Strikes: 2, Action: moderation.Warn()},
			},
			growth: defaultGrowth(),
		},
		{
			name: "shorter timeout",
			rules: []moderation.Rule{
				{Strikes: 1, Action: moderation.Timeout(time.Minute)},
				{Strikes: 2, Action: moderation.Timeout(time.Second)},
			},
			growth: defaultGrowth(),
		},
		{
			name:   "timeout above max",
			rules:  []moderation.Rule{{Strikes: 1, Action: moderation.Timeout(2 * time.Hour)}},
			growth: defaultGrowth(),
		},
		{
			name:   "factor not growing",
			rules:  moderation.DefaultRules(1),
			growth: moderation.Growth{Mode: moderation.GrowthMultiplicative, Factor: 1, Max: time.Hour},
		},
		{
			name:   "additive without step",
			rules:  moderation.DefaultRules(1),
			growth: moderation.Growth{Mode: moderation.GrowthAdditive, Max: time.Hour},
		},
		{
			name:   "max above platform limit",
			rules:  moderation.DefaultRules(1),
			growth: moderation.Growth{Mode: moderation.GrowthMultiplicative, Factor: 2, Max: 30 * 24 * time.Hour},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := moderation.NewPolicy(tt.rules, tt.growth)
			require.ErrorIs(t, err, moderation.ErrConfigurationError)
		})
	}
}

func TestNewPolicyFromConfig(t *testing.T) {
	t.Parallel()

	t.Run("default table", func(t *testing.T) {
		t.Parallel()

		cfg := config.DefaultModeration()
		cfg.WarningThreshold = 2

		policy, err := moderation.NewPolicyFromConfig(&cfg)
		require.NoError(t, err)
		assert.Equal(t, moderation.DefaultRules(2), policy.Rules())
	})

	t.Run("explicit table", func(t *testing.T) {
		t.Parallel()

		cfg := config.DefaultModeration()
		cfg.Growth = config.Growth{Mode: config.GrowthAdditive, Step: 60000, MaxDuration: 600000}
		cfg.Rules = []config.Rule{
			{Strikes: 1, Action: config.RuleActionIgnore},
			{Strikes: 2, Action: config.RuleActionWarn},
			{Strikes: 4, Action: config.RuleActionTimeout, Duration: 120000},
		}

		policy, err := moderation.NewPolicyFromConfig(&cfg)
		require.NoError(t, err)

		assert.Equal(t, moderation.Ignore(), policy.Decide(1))
		assert.Equal(t, moderation.Warn(), policy.Decide(3))
		assert.Equal(t, moderation.Timeout(2*time.Minute), policy.Decide(4))
		assert.Equal(t, moderation.Timeout(3*time.Minute), policy.Decide(5))
		assert.Equal(t, moderation.Timeout(10*time.Minute), policy.Decide(100))
	})

	t.Run("unknown growth mode", func(t *testing.T) {
		t.Parallel()

		cfg := config.DefaultModeration()
		cfg.Growth.Mode = "exponential"

		_, err := moderation.NewPolicyFromConfig(&cfg)
		require.ErrorIs(t, err, moderation.ErrConfigurationError)
	})

	t.Run("unknown rule action", func(t *testing.T) {
		t.Parallel()

		cfg := config.DefaultModeration()
		cfg.Rules = []config.Rule{{Strikes: 1, Action: "ban"}}

		_, err := moderation.NewPolicyFromConfig(&cfg)
		require.ErrorIs(t, err, moderation.ErrConfigurationError)
	})
}

func TestActionCompare(t *testing.T) {
	t.Parallel()

	ordered := []moderation.Action{
		moderation.Ignore(),
		moderation.Warn(),
		moderation.Timeout(time.Second),
		moderation.Timeout(time.Minute),
	}

	for i := range ordered {
		for j := range ordered {
			want := 0
			if i < j {
				want = -1
			} else if i > j {
				want = 1
			}

			assert.Equal(t, want, ordered[i].Compare(ordered[j]), "%s vs %s", ordered[i], ordered[j])
		}
	}

	assert.Equal(t, "Timeout(10s)", moderation.Timeout(10*time.Second).String())
	assert.Equal(t, "Warn", moderation.Warn().String())
}
