package inference

import (
	"context"
	"sync"
	"time"
)

// AdaptiveLimiter is a fixed-window per-minute limiter whose allowance
// shrinks as budget utilization grows: full rate below 40% utilization,
// 70% of nominal between 40-60%, 50% between 60-80%, and 30% above 80%.
// When the scaled allowance for the current minute is used up, Acquire
// blocks until the window resets.
type AdaptiveLimiter struct {
	mu          sync.Mutex
	nominal     int
	windowStart time.Time
	count       int
	now         func() time.Time
}

// NewAdaptiveLimiter creates a limiter with the given nominal
// requests-per-minute allowance.
func NewAdaptiveLimiter(requestsPerMinute int) *AdaptiveLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 10
	}
	return &AdaptiveLimiter{
		nominal: requestsPerMinute,
		now:     time.Now,
	}
}

// Allowance returns the scaled per-minute allowance for the given budget
// utilization (a fraction in [0, 1]). Never below one request.
func (l *AdaptiveLimiter) Allowance(utilization float64) int {
	var factor float64
	switch {
	case utilization < 0.4:
		factor = 1.0
	case utilization < 0.6:
		factor = 0.7
	case utilization < 0.8:
		factor = 0.5
	default:
		factor = 0.3
	}
	allowance := int(float64(l.nominal) * factor)
	if allowance < 1 {
		allowance = 1
	}
	return allowance
}

// Acquire takes one slot in the current minute window, blocking until the
// window resets when the scaled allowance is exhausted. It returns early
// with the context error if ctx is cancelled while waiting. The lock is
// never held across the wait.
func (l *AdaptiveLimiter) Acquire(ctx context.Context, utilization float64) error {
	for {
		l.mu.Lock()
		now := l.now()
		if now.Sub(l.windowStart) >= time.Minute {
			l.windowStart = now
			l.count = 0
		}
		if l.count < l.Allowance(utilization) {
			l.count++
			l.mu.Unlock()
			return nil
		}
		wait := time.Minute - now.Sub(l.windowStart)
		l.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// SetClock overrides the wall clock. Tests only.
func (l *AdaptiveLimiter) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}
