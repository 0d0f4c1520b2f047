package serpapi

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	domain "github.com/donaldgifford/market-comps/pkg/types"
)

// ErrQuotaExhausted is returned when the search quota for the current
// window is used up. It wraps domain.ErrProviderUnavailable so callers fall
// back the same way they do for any provider outage.
var ErrQuotaExhausted = fmt.Errorf("search quota exhausted: %w", domain.ErrProviderUnavailable)

// RateLimiter paces provider calls with a token bucket and caps the number
// of calls per rolling window. A zero quota means unlimited.
type RateLimiter struct {
	limiter *rate.Limiter
	quota   int64
	window  time.Duration
	nowFunc func() time.Time

	mu      sync.Mutex
	used    int64
	resetAt time.Time
}

// RateLimiterOption configures the RateLimiter.
type RateLimiterOption func(*RateLimiter)

// WithRateLimiterNowFunc overrides the time function for testing.
func WithRateLimiterNowFunc(f func() time.Time) RateLimiterOption {
	return func(r *RateLimiter) {
		r.nowFunc = f
	}
}

// WithQuotaWindow sets the window length. The default is 24 hours.
func WithQuotaWindow(d time.Duration) RateLimiterOption {
	return func(r *RateLimiter) {
		r.window = d
	}
}

// NewRateLimiter creates a limiter allowing perSecond calls with the given
// burst and at most quota calls per window.
func NewRateLimiter(perSecond float64, burst int, quota int64, opts ...RateLimiterOption) *RateLimiter {
	r := &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
		quota:   quota,
		window:  24 * time.Hour,
		nowFunc: time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.resetAt = r.nowFunc().Add(r.window)
	return r
}

// Wait blocks until a call is allowed, the quota is exhausted, or ctx ends.
// The quota slot is reserved before pacing so concurrent callers cannot
// overshoot it.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if err := r.reserve(); err != nil {
		return err
	}

	if err := r.limiter.Wait(ctx); err != nil {
		r.release()
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("rate limiter wait: %w", err)
		}
		return fmt.Errorf("rate limiter wait: %w: %w", domain.ErrProviderUnavailable, err)
	}
	return nil
}

func (r *RateLimiter) reserve() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.rollWindow()
	if r.quota > 0 && r.used >= r.quota {
		return fmt.Errorf("%w (%d/%d)", ErrQuotaExhausted, r.used, r.quota)
	}
	r.used++
	return nil
}

func (r *RateLimiter) release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.used > 0 {
		r.used--
	}
}

// rollWindow must be called with mu held.
func (r *RateLimiter) rollWindow() {
	now := r.nowFunc()
	if now.After(r.resetAt) {
		r.used = 0
		r.resetAt = now.Add(r.window)
	}
}

// Used returns the calls made in the current window.
func (r *RateLimiter) Used() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rollWindow()
	return r.used
}

// Remaining returns the calls left in the current window, or -1 when
// unlimited.
func (r *RateLimiter) Remaining() int64 {
	if r.quota <= 0 {
		return -1
	}
	return max(r.quota-r.Used(), 0)
}

// ResetAt returns when the current window ends.
func (r *RateLimiter) ResetAt() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resetAt
}

// Quota returns the configured calls per window. Zero means unlimited.
func (r *RateLimiter) Quota() int64 {
	return r.quota
}
