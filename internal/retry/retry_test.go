package retry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDoRetriesTransientThenSucceeds(t *testing.T) {
	attempts := 0
	budget := Budget{MaxAttempts: 5, InitialWait: 0, MaxWait: 0}
	err := Do(context.Background(), budget, func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return &TransientError{Err: errors.New("rate limited")}
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, attempts)
}

func TestDoDoesNotRetryPermanentError(t *testing.T) {
	attempts := 0
	budget := Budget{MaxAttempts: 5, InitialWait: 0, MaxWait: 0}
	err := Do(context.Background(), budget, func(ctx context.Context) error {
		attempts++
		return errors.New("config error")
	})
	require.Error(t, err)
	require.Equal(t, 1, attempts)
}

func TestTokenBudgetDoubling(t *testing.T) {
	tb := NewTokenBudget(100, 1000)
	require.Equal(t, 100, tb.Current())
	require.True(t, tb.Double())
	require.Equal(t, 200, tb.Current())
	require.True(t, tb.Double())
	require.Equal(t, 400, tb.Current())
	require.True(t, tb.Double())
	require.Equal(t, 800, tb.Current())
	require.True(t, tb.Double())
	require.Equal(t, 1000, tb.Current()) // clamped to ceiling
	require.False(t, tb.Double())        // already at ceiling
}

func TestRunWithSentinelExhaustsToSentinel(t *testing.T) {
	budget := Budget{MaxAttempts: 1, InitialWait: 0, MaxWait: 0}
	tb := NewTokenBudget(10, 20)
	out := RunWithSentinel(context.Background(), budget, tb, "FAILED_TO_TITLE",
		func(ctx context.Context, maxTokens int) (string, error) {
			return "", ErrIncompleteOutput
		})
	require.Equal(t, "FAILED_TO_TITLE", out)
}

func TestRunWithSentinelGrowsThenSucceeds(t *testing.T) {
	budget := Budget{MaxAttempts: 1, InitialWait: 0, MaxWait: 0}
	tb := NewTokenBudget(10, 100)
	calls := 0
	out := RunWithSentinel(context.Background(), budget, tb, "FAILED_TO_TITLE",
		func(ctx context.Context, maxTokens int) (string, error) {
			calls++
			if maxTokens < 40 {
				return "", ErrIncompleteOutput
			}
			return "a fine title", nil
		})
	require.Equal(t, "a fine title", out)
	require.Equal(t, 4, calls) // 10 -> 20 -> 40 -> succeeds
}
