// Package ratelimit paces outbound actions: tab opens against the site and
// media downloads against its CDN.
//
// Three Limiter implementations are available:
//
//   - TokenBucket refills to full capacity after each period
//   - SlidingWindow admits at most N events in any moving window
//   - Rate spreads N events evenly over the period (golang.org/x/time/rate)
//
// Every limiter has a context-aware Wait and a Status used by the run
// dashboard:
//
//	limiter, _ := ratelimit.New("rate", 30, time.Minute)
//	if err := limiter.Wait(ctx); err != nil {
//	    return err
//	}
package ratelimit
