// Package retry provides backoff, retry and pacing primitives.
//
// Retrying a failing operation:
//
//	err := retry.Do(func() error {
//		return fetch(ctx, url)
//	}, &retry.Config{
//		MaxAttempts: 4,
//		Backoff:     &retry.UniformJitterBackoff{Min: 500 * time.Millisecond, Max: time.Second},
//		RetryIf:     func(error) bool { return true },
//		Context:     ctx,
//	})
//
// Strategies: ExponentialBackoff, LinearBackoff, ConstantBackoff and
// UniformJitterBackoff. NewHTTPRetrier selects a strategy per error type
// (network, rate_limit, server_error).
//
// Pacer produces the randomized waits that make a browser session look
// operated by a person. All waits are context-aware.
package retry
