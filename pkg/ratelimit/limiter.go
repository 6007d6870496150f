package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter defines the interface for rate limiting
type Limiter interface {
	// Allow checks if a request is allowed under the current rate limit
	Allow() bool
	// Wait blocks until the rate limit allows another request or ctx ends
	Wait(ctx context.Context) error
	// Reset resets the rate limiter state
	Reset()
	// Status reports current usage for display
	Status() Status
}

// Status is a point-in-time view of a limiter
type Status struct {
	Used    int
	Max     int
	ResetAt time.Time
}

// New builds a limiter by name: "token_bucket", "sliding_window" or "rate"
// (the default). It admits n events per period.
func New(kind string, n int, period time.Duration) (Limiter, error) {
	if n <= 0 || period <= 0 {
		return nil, fmt.Errorf("invalid limit %d per %v", n, period)
	}
	switch kind {
	case "token_bucket":
		return NewTokenBucket(n, period), nil
	case "sliding_window":
		return NewSlidingWindow(n, period), nil
	case "", "rate":
		return NewRate(n, period), nil
	default:
		return nil, fmt.Errorf("unknown limiter %q", kind)
	}
}

// sleepCtx sleeps for d unless ctx ends first
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TokenBucket implements a token bucket rate limiter
type TokenBucket struct {
	capacity     int           // Maximum number of tokens
	tokens       int           // Current number of tokens
	refillPeriod time.Duration // Period after which bucket is refilled
	lastRefill   time.Time     // Last time the bucket was refilled
	mu           sync.Mutex
}

// NewTokenBucket creates a new token bucket rate limiter
func NewTokenBucket(capacity int, refillPeriod time.Duration) *TokenBucket {
	return &TokenBucket{
		capacity:     capacity,
		tokens:       capacity,
		refillPeriod: refillPeriod,
		lastRefill:   time.Now(),
	}
}

// Allow checks if a request can proceed
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()

	if tb.tokens > 0 {
		tb.tokens--
		return true
	}

	return false
}

// Wait blocks until a token is available
func (tb *TokenBucket) Wait(ctx context.Context) error {
	for !tb.Allow() {
		tb.mu.Lock()
		timeUntilRefill := tb.refillPeriod - time.Since(tb.lastRefill)
		tb.mu.Unlock()

		if timeUntilRefill <= 0 {
			// Small sleep to prevent busy waiting
			timeUntilRefill = 100 * time.Millisecond
		}
		if err := sleepCtx(ctx, timeUntilRefill); err != nil {
			return err
		}
	}
	return nil
}

// Status reports tokens spent in the current period
func (tb *TokenBucket) Status() Status {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()
	return Status{
		Used:    tb.capacity - tb.tokens,
		Max:     tb.capacity,
		ResetAt: tb.lastRefill.Add(tb.refillPeriod),
	}
}

// Reset resets the token bucket to full capacity
func (tb *TokenBucket) Reset() {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.tokens = tb.capacity
	tb.lastRefill = time.Now()
}

// refill adds tokens based on elapsed time
func (tb *TokenBucket) refill() {
	now := time.Now()
	elapsed := now.Sub(tb.lastRefill)

	if elapsed >= tb.refillPeriod {
		tb.tokens = tb.capacity
		tb.lastRefill = now
	}
}

// SlidingWindow implements a sliding window rate limiter
type SlidingWindow struct {
	windowSize  time.Duration
	maxRequests int
	requests    []time.Time
	mu          sync.Mutex
}

// NewSlidingWindow creates a new sliding window rate limiter
func NewSlidingWindow(maxRequests int, windowSize time.Duration) *SlidingWindow {
	return &SlidingWindow{
		windowSize:  windowSize,
		maxRequests: maxRequests,
		requests:    make([]time.Time, 0, maxRequests),
	}
}

// Allow checks if a request can proceed
func (sw *SlidingWindow) Allow() bool {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	now := time.Now()
	sw.cleanOldRequests(now)

	if len(sw.requests) < sw.maxRequests {
		sw.requests = append(sw.requests, now)
		return true
	}

	return false
}

// Wait blocks until a request is allowed
func (sw *SlidingWindow) Wait(ctx context.Context) error {
	for !sw.Allow() {
		timeToWait := 100 * time.Millisecond
		sw.mu.Lock()
		if len(sw.requests) > 0 {
			if d := sw.windowSize - time.Since(sw.requests[0]); d > 0 {
				timeToWait = d
			}
		}
		sw.mu.Unlock()

		if err := sleepCtx(ctx, timeToWait); err != nil {
			return err
		}
	}
	return nil
}

// Status reports requests inside the current window
func (sw *SlidingWindow) Status() Status {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	now := time.Now()
	sw.cleanOldRequests(now)
	resetAt := now
	if len(sw.requests) > 0 {
		resetAt = sw.requests[0].Add(sw.windowSize)
	}
	return Status{Used: len(sw.requests), Max: sw.maxRequests, ResetAt: resetAt}
}

// Reset clears all recorded requests
func (sw *SlidingWindow) Reset() {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	sw.requests = sw.requests[:0]
}

// cleanOldRequests removes requests outside the sliding window
func (sw *SlidingWindow) cleanOldRequests(now time.Time) {
	cutoff := now.Add(-sw.windowSize)

	// Find the first request that's within the window
	i := 0
	for i < len(sw.requests) && sw.requests[i].Before(cutoff) {
		i++
	}

	// Keep only requests within the window
	if i > 0 {
		copy(sw.requests, sw.requests[i:])
		sw.requests = sw.requests[:len(sw.requests)-i]
	}
}

// Rate wraps golang.org/x/time/rate with a burst of one, spreading n events
// evenly over the period
type Rate struct {
	limiter *rate.Limiter
	n       int
	period  time.Duration

	mu      sync.Mutex
	used    int
	resetAt time.Time
}

// NewRate creates a smooth limiter admitting n events per period
func NewRate(n int, period time.Duration) *Rate {
	return &Rate{
		limiter: rate.NewLimiter(rate.Every(period/time.Duration(n)), 1),
		n:       n,
		period:  period,
		resetAt: time.Now().Add(period),
	}
}

// Allow reports whether an event may happen now
func (r *Rate) Allow() bool {
	if !r.limiter.Allow() {
		return false
	}
	r.count()
	return true
}

// Wait blocks until an event may happen
func (r *Rate) Wait(ctx context.Context) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return err
	}
	r.count()
	return nil
}

// Reset restores the limiter to a fresh state
func (r *Rate) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.limiter = rate.NewLimiter(rate.Every(r.period/time.Duration(r.n)), 1)
	r.used = 0
	r.resetAt = time.Now().Add(r.period)
}

// Status reports events admitted in the current period
func (r *Rate) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.rollover(time.Now())
	return Status{Used: r.used, Max: r.n, ResetAt: r.resetAt}
}

func (r *Rate) count() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.rollover(time.Now())
	r.used++
}

func (r *Rate) rollover(now time.Time) {
	if now.After(r.resetAt) {
		r.used = 0
		r.resetAt = now.Add(r.period)
	}
}
