// Package retry provides the single bounded-retry-with-backoff wrapper used
// by every outbound network call in the system. No other component sleeps
// or re-attempts on its own.
package retry

import (
	"context"
	"errors"
	"math"
	"net"
	"syscall"
	"time"
)

// Config bounds the retry loop.
type Config struct {
	MaxAttempts       int
	BaseDelay         time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
}

// DefaultConfig returns the retry policy used when none is configured:
// three attempts, 500ms base delay doubling up to 10s.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:       3,
		BaseDelay:         500 * time.Millisecond,
		MaxDelay:          10 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// Classifier decides whether an error is worth retrying.
type Classifier func(error) bool

// Retryable is the default classification: transient infrastructure
// errors (throttling, 5xx, timeouts, connection resets) are retryable;
// validation and permanent errors are not, and neither is anything
// unrecognized.
func Retryable(err error) bool {
	if err == nil {
		return false
	}

	var validation *ValidationError
	if errors.As(err, &validation) {
		return false
	}
	var permanent *PermanentError
	if errors.As(err, &permanent) {
		return false
	}
	var transient *TransientError
	if errors.As(err, &transient) {
		return true
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}

	return false
}

// Do runs op, retrying on failures the classifier marks retryable.
//
// It returns the operation result, the number of retries performed (zero
// when the first attempt succeeds), and the final error. Non-retryable
// errors are returned immediately and never masked by the loop; exhausting
// attempts returns the last error. The backoff sleep is a plain timer wait
// that holds no locks and aborts when ctx is cancelled.
func Do[T any](ctx context.Context, cfg Config, classify Classifier, op func(ctx context.Context) (T, error)) (T, int, error) {
	var zero T
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if classify == nil {
		classify = Retryable
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, attempt - 1, nil
		}
		lastErr = err

		if !classify(err) {
			return zero, attempt - 1, err
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		delay := backoffDelay(cfg, attempt)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, attempt - 1, ctx.Err()
		case <-timer.C:
		}
	}

	return zero, cfg.MaxAttempts - 1, lastErr
}

// backoffDelay computes min(base * multiplier^(attempt-1), max).
func backoffDelay(cfg Config, attempt int) time.Duration {
	multiplier := cfg.BackoffMultiplier
	if multiplier <= 0 {
		multiplier = 1
	}
	delay := time.Duration(float64(cfg.BaseDelay) * math.Pow(multiplier, float64(attempt-1)))
	if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
		delay = cfg.MaxDelay
	}
	return delay
}
