package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	errs "igharvest/pkg/errors"
)

// BackoffStrategy computes the wait before retry number attempt (1-based)
type BackoffStrategy interface {
	NextDelay(attempt int) time.Duration
	Reset()
}

// ExponentialBackoff waits BaseDelay * Multiplier^(attempt-1), capped at
// MaxDelay, then spread by ±JitterFactor
type ExponentialBackoff struct {
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	JitterFactor float64
}

// DefaultExponentialBackoff starts at 1s and doubles up to a minute
func DefaultExponentialBackoff() *ExponentialBackoff {
	return &ExponentialBackoff{
		BaseDelay:    time.Second,
		MaxDelay:     time.Minute,
		Multiplier:   2.0,
		JitterFactor: 0.1,
	}
}

func (eb *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	delay := float64(eb.BaseDelay) * math.Pow(eb.Multiplier, float64(attempt-1))
	return spread(capAt(delay, eb.MaxDelay), eb.JitterFactor)
}

func (eb *ExponentialBackoff) Reset() {}

// LinearBackoff waits BaseDelay + Increment*(attempt-1), capped at MaxDelay
type LinearBackoff struct {
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	Increment    time.Duration
	JitterFactor float64
}

func (lb *LinearBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	delay := float64(lb.BaseDelay + lb.Increment*time.Duration(attempt-1))
	return spread(capAt(delay, lb.MaxDelay), lb.JitterFactor)
}

func (lb *LinearBackoff) Reset() {}

// ConstantBackoff always waits Delay
type ConstantBackoff struct {
	Delay time.Duration
}

func (cb *ConstantBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return cb.Delay
}

func (cb *ConstantBackoff) Reset() {}

// UniformJitterBackoff returns a delay drawn uniformly from [Min, Max] on
// every attempt. It paces polling loops such as new-tab detection.
type UniformJitterBackoff struct {
	Min time.Duration
	Max time.Duration
}

func (ub *UniformJitterBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	if ub.Max <= ub.Min {
		return ub.Min
	}
	return ub.Min + time.Duration(rand.Int63n(int64(ub.Max-ub.Min)+1))
}

func (ub *UniformJitterBackoff) Reset() {}

func capAt(delay float64, max time.Duration) float64 {
	if max > 0 && delay > float64(max) {
		return float64(max)
	}
	return delay
}

// spread moves delay by a random amount within ±factor of itself
func spread(delay, factor float64) time.Duration {
	if factor > 0 {
		delay += (rand.Float64()*2 - 1) * delay * factor
	}
	if delay < 0 {
		return 0
	}
	return time.Duration(delay)
}

// Wait sleeps for delay or until ctx is done
func Wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ErrorTypeBackoff holds one strategy per retryable failure class of the
// media client
type ErrorTypeBackoff struct {
	NetworkErrorBackoff BackoffStrategy
	// CDN throttling; waits much longer than the others
	RateLimitBackoff   BackoffStrategy
	ServerErrorBackoff BackoffStrategy
	DefaultBackoff     BackoffStrategy
}

func NewErrorTypeBackoff() *ErrorTypeBackoff {
	return &ErrorTypeBackoff{
		NetworkErrorBackoff: &ExponentialBackoff{BaseDelay: time.Second, MaxDelay: 30 * time.Second, Multiplier: 2.0, JitterFactor: 0.2},
		RateLimitBackoff:    &ExponentialBackoff{BaseDelay: 30 * time.Second, MaxDelay: 5 * time.Minute, Multiplier: 1.5, JitterFactor: 0.3},
		ServerErrorBackoff:  &ExponentialBackoff{BaseDelay: 5 * time.Second, MaxDelay: time.Minute, Multiplier: 2.0, JitterFactor: 0.1},
		DefaultBackoff:      DefaultExponentialBackoff(),
	}
}

// GetBackoffForError picks the strategy for a failure of type t
func (etb *ErrorTypeBackoff) GetBackoffForError(t errs.ErrorType) BackoffStrategy {
	switch t {
	case errs.ErrorTypeNetwork:
		return etb.NetworkErrorBackoff
	case errs.ErrorTypeRateLimit:
		return etb.RateLimitBackoff
	case errs.ErrorTypeServerError:
		return etb.ServerErrorBackoff
	default:
		return etb.DefaultBackoff
	}
}
