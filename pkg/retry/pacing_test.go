package retry

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPacerBounds(t *testing.T) {
	p := NewPacerWith(rand.New(rand.NewSource(1)), nil)

	for i := 0; i < 100; i++ {
		d := p.Between(800*time.Millisecond, 1500*time.Millisecond)
		require.GreaterOrEqual(t, d, 800*time.Millisecond)
		require.LessOrEqual(t, d, 1500*time.Millisecond)

		n := p.IntBetween(4, 8)
		require.GreaterOrEqual(t, n, 4)
		require.LessOrEqual(t, n, 8)
	}

	assert.Equal(t, time.Second, p.Between(time.Second, time.Second))
	assert.Equal(t, 3, p.IntBetween(3, 1))
	assert.False(t, p.Chance(0))
	assert.True(t, p.Chance(1.01))
}

func TestPacerSleepUsesSleeper(t *testing.T) {
	var slept []time.Duration
	p := NewPacerWith(rand.New(rand.NewSource(7)), func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	})

	require.NoError(t, p.Sleep(context.Background(), 2*time.Second, 5*time.Second))
	require.NoError(t, p.SleepFor(context.Background(), time.Millisecond))

	require.Len(t, slept, 2)
	assert.GreaterOrEqual(t, slept[0], 2*time.Second)
	assert.LessOrEqual(t, slept[0], 5*time.Second)
	assert.Equal(t, time.Millisecond, slept[1])
}

func TestPacerSleepHonorsContext(t *testing.T) {
	p := NewPacer()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.Sleep(ctx, time.Minute, 2*time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
}
