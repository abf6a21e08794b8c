package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ogulcanaydogan/cloud-budget-sentinel/pkg/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig() retry.Config {
	return retry.Config{
		MaxAttempts:       3,
		BaseDelay:         time.Millisecond,
		MaxDelay:          5 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

func TestDo_SucceedsAfterRetries(t *testing.T) {
	transient := &retry.TransientError{Op: "publish", StatusCode: 503, Err: errors.New("unavailable")}

	calls := 0
	result, retries, err := retry.Do(context.Background(), fastConfig(), nil, func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", transient
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 2, retries)
	assert.Equal(t, 3, calls)
}

func TestDo_NonRetryableFailsImmediately(t *testing.T) {
	validation := &retry.ValidationError{Field: "device_token", Reason: "not hex"}

	calls := 0
	_, retries, err := retry.Do(context.Background(), fastConfig(), nil, func(context.Context) (string, error) {
		calls++
		return "", validation
	})

	assert.ErrorAs(t, err, &validation)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, retries)
}

func TestDo_ExhaustsAttemptsReturnsLastError(t *testing.T) {
	calls := 0
	_, retries, err := retry.Do(context.Background(), fastConfig(), nil, func(context.Context) (int, error) {
		calls++
		return 0, &retry.TransientError{Op: "invoke", Err: errors.New("timeout")}
	})

	var transient *retry.TransientError
	assert.ErrorAs(t, err, &transient)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 2, retries)
}

func TestDo_CustomClassifier(t *testing.T) {
	marker := errors.New("E")
	classify := func(err error) bool { return errors.Is(err, marker) }

	calls := 0
	result, retries, err := retry.Do(context.Background(), fastConfig(), classify, func(context.Context) (int, error) {
		calls++
		if calls <= 2 {
			return 0, marker
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, result)
	assert.Equal(t, 2, retries)
}

func TestDo_ContextCancelledDuringBackoff(t *testing.T) {
	cfg := retry.Config{MaxAttempts: 5, BaseDelay: time.Hour, BackoffMultiplier: 2.0}
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, _, err := retry.Do(ctx, cfg, nil, func(context.Context) (int, error) {
		return 0, &retry.TransientError{Op: "publish", Err: errors.New("flaky")}
	})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"transient 503", &retry.TransientError{Op: "x", StatusCode: 503}, true},
		{"throttling 429", retry.FromStatus("x", 429, errors.New("slow down")), true},
		{"permanent 404", retry.FromStatus("x", 404, errors.New("gone")), false},
		{"permanent 403", &retry.PermanentError{Op: "x", StatusCode: 403}, false},
		{"validation", &retry.ValidationError{Field: "token", Reason: "short"}, false},
		{"deadline", context.DeadlineExceeded, true},
		{"wrapped transient", errors.Join(errors.New("outer"), &retry.TransientError{Op: "x"}), true},
		{"plain error", errors.New("who knows"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, retry.Retryable(tt.err))
		})
	}
}

func TestFromStatus(t *testing.T) {
	var transient *retry.TransientError
	assert.ErrorAs(t, retry.FromStatus("op", 500, errors.New("boom")), &transient)
	assert.ErrorAs(t, retry.FromStatus("op", 429, errors.New("boom")), &transient)

	var permanent *retry.PermanentError
	assert.ErrorAs(t, retry.FromStatus("op", 400, errors.New("boom")), &permanent)
}
