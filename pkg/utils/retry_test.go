package utils_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/robalyx/toxguard/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	errTemporary = errors.New("temporary error")
	errFatal     = errors.New("fatal error")
)

func testRetryOptions() utils.RetryOptions {
	return utils.RetryOptions{
		MaxElapsedTime:  time.Second,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		MaxRetries:      3,
	}
}

func TestWithRetry(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		failures      int
		permanent     bool
		expectedCalls int
		expectedErr   error
	}{
		{
			name:          "succeeds first try",
			failures:      0,
			expectedCalls: 1,
		},
		{
			name:          "succeeds after retries",
			failures:      2,
			expectedCalls: 3,
		},
		{
			name:          "fails all retries",
			failures:      10,
			expectedCalls: 4, // Initial + 3 retries
			expectedErr:   errTemporary,
		},
		{
			name:          "permanent error stops immediately",
			failures:      10,
			permanent:     true,
			expectedCalls: 1,
			expectedErr:   errFatal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			calls := 0
			result, err := utils.WithRetry(t.Context(), func() (int, error) {
				calls++
				if calls <= tt.failures {
					if tt.permanent {
						return 0, backoff.Permanent(errFatal)
					}
					return 0, errTemporary
				}
				return 42, nil
			}, testRetryOptions())

			if tt.expectedErr != nil {
				require.Error(t, err)
				require.ErrorIs(t, err, tt.expectedErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, 42, result)
			}

			assert.Equal(t, tt.expectedCalls, calls)
		})
	}
}

func TestWithRetryContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	calls := 0
	err := utils.WithRetryNoResult(ctx, func() error {
		calls++
		return errTemporary
	}, testRetryOptions())

	require.Error(t, err)
	assert.LessOrEqual(t, calls, 1)
}
