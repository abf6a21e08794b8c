package inference_test

import (
	"context"
	"testing"
	"time"

	"github.com/ogulcanaydogan/cloud-budget-sentinel/pkg/inference"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdaptiveLimiter_AllowanceTiers(t *testing.T) {
	limiter := inference.NewAdaptiveLimiter(10)

	tests := []struct {
		name        string
		utilization float64
		want        int
	}{
		{"well under budget", 0.0, 10},
		{"just below first tier", 0.39, 10},
		{"moderate utilization", 0.40, 7},
		{"upper moderate", 0.59, 7},
		{"high utilization", 0.60, 5},
		{"near exhaustion", 0.80, 3},
		{"over budget", 1.0, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, limiter.Allowance(tt.utilization))
		})
	}
}

func TestAdaptiveLimiter_AllowanceNeverBelowOne(t *testing.T) {
	limiter := inference.NewAdaptiveLimiter(2)
	assert.Equal(t, 1, limiter.Allowance(0.95), "30% of 2 rounds down but floors at one")
}

func TestAdaptiveLimiter_AcquireWithinAllowance(t *testing.T) {
	limiter := inference.NewAdaptiveLimiter(3)
	ctx := context.Background()

	for range 3 {
		require.NoError(t, limiter.Acquire(ctx, 0.0))
	}
}

func TestAdaptiveLimiter_BlocksWhenExhaustedUntilCancel(t *testing.T) {
	limiter := inference.NewAdaptiveLimiter(1)
	require.NoError(t, limiter.Acquire(context.Background(), 0.0))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := limiter.Acquire(ctx, 0.0)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAdaptiveLimiter_WindowResets(t *testing.T) {
	limiter := inference.NewAdaptiveLimiter(1)
	now := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	limiter.SetClock(func() time.Time { return now })

	ctx := context.Background()
	require.NoError(t, limiter.Acquire(ctx, 0.0))

	now = now.Add(time.Minute)
	require.NoError(t, limiter.Acquire(ctx, 0.0), "fresh window grants a new allowance")
}

func TestAdaptiveLimiter_TighterAllowanceUnderHighUtilization(t *testing.T) {
	limiter := inference.NewAdaptiveLimiter(10)
	ctx := context.Background()

	// At 85% utilization only 3 of the nominal 10 slots are available.
	for range 3 {
		require.NoError(t, limiter.Acquire(ctx, 0.85))
	}
	cancelCtx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.Error(t, limiter.Acquire(cancelCtx, 0.85))
}
