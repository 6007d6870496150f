package retry

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Sleeper blocks for d or until ctx is done
type Sleeper func(ctx context.Context, d time.Duration) error

// Pacer produces randomized human-like delays. It is safe for concurrent use.
type Pacer struct {
	mu    sync.Mutex
	rng   *rand.Rand
	sleep Sleeper
}

// NewPacer creates a pacer seeded from the clock that sleeps with Wait
func NewPacer() *Pacer {
	return NewPacerWith(rand.New(rand.NewSource(time.Now().UnixNano())), Wait)
}

// NewPacerWith creates a pacer with an explicit random source and sleeper.
// Tests pass a fixed seed and a recording sleeper.
func NewPacerWith(rng *rand.Rand, sleep Sleeper) *Pacer {
	if sleep == nil {
		sleep = Wait
	}
	return &Pacer{rng: rng, sleep: sleep}
}

// Between returns a random duration in [min, max]
func (p *Pacer) Between(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return min + time.Duration(p.rng.Int63n(int64(max-min)+1))
}

// IntBetween returns a random int in [lo, hi]
func (p *Pacer) IntBetween(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return lo + p.rng.Intn(hi-lo+1)
}

// Chance returns true with probability prob
func (p *Pacer) Chance(prob float64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rng.Float64() < prob
}

// Sleep waits a random duration in [min, max]. It returns ctx.Err() if
// the context ends first.
func (p *Pacer) Sleep(ctx context.Context, min, max time.Duration) error {
	return p.sleep(ctx, p.Between(min, max))
}

// SleepFor waits exactly d through the configured sleeper
func (p *Pacer) SleepFor(ctx context.Context, d time.Duration) error {
	return p.sleep(ctx, d)
}
