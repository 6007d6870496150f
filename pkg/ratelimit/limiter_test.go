package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenBucket(t *testing.T) {
	tb := NewTokenBucket(5, time.Second)

	// Test initial capacity
	for i := 0; i < 5; i++ {
		if !tb.Allow() {
			t.Errorf("Expected token %d to be available", i+1)
		}
	}

	// Test exhaustion
	if tb.Allow() {
		t.Error("Expected no more tokens to be available")
	}

	// Test refill after waiting
	time.Sleep(time.Second + 100*time.Millisecond)
	if !tb.Allow() {
		t.Error("Expected tokens to be refilled after waiting")
	}

	// Test reset
	tb.tokens = 0
	tb.Reset()
	if tb.tokens != tb.capacity {
		t.Error("Expected tokens to be reset to capacity")
	}
}

func TestSlidingWindow(t *testing.T) {
	sw := NewSlidingWindow(3, time.Second)

	// Test initial requests
	for i := 0; i < 3; i++ {
		if !sw.Allow() {
			t.Errorf("Expected request %d to be allowed", i+1)
		}
	}

	// Test limit reached
	if sw.Allow() {
		t.Error("Expected request to be denied when limit is reached")
	}

	// Test window sliding
	time.Sleep(time.Second + 100*time.Millisecond)
	if !sw.Allow() {
		t.Error("Expected request to be allowed after window slides")
	}

	// Test reset
	sw.Reset()
	if len(sw.requests) != 0 {
		t.Error("Expected requests to be cleared after reset")
	}
}

func TestWaitHonorsContext(t *testing.T) {
	limiters := map[string]Limiter{
		"token_bucket":   NewTokenBucket(1, time.Hour),
		"sliding_window": NewSlidingWindow(1, time.Hour),
		"rate":           NewRate(1, time.Hour),
	}

	for name, l := range limiters {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, l.Wait(context.Background()))

			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
			defer cancel()
			assert.Error(t, l.Wait(ctx))

			status := l.Status()
			assert.Equal(t, 1, status.Used)
			assert.Equal(t, 1, status.Max)
			assert.True(t, status.ResetAt.After(time.Now()))
		})
	}
}

func TestRateSpacing(t *testing.T) {
	r := NewRate(20, time.Second)

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, r.Wait(context.Background()))
	}
	// Burst of one: the 2nd and 3rd events wait ~50ms each
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
	assert.Equal(t, 3, r.Status().Used)

	r.Reset()
	assert.Equal(t, 0, r.Status().Used)
	assert.True(t, r.Allow())
}

func TestNew(t *testing.T) {
	tests := []struct {
		kind    string
		n       int
		wantErr bool
	}{
		{"token_bucket", 5, false},
		{"sliding_window", 5, false},
		{"rate", 5, false},
		{"", 5, false},
		{"leaky", 5, true},
		{"rate", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			l, err := New(tt.kind, tt.n, time.Minute)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, l.Allow())
		})
	}
}

func TestNewByKind(t *testing.T) {
	tests := []struct {
		kind    string
		want    interface{}
		wantErr bool
	}{
		{"sliding_window", &SlidingWindow{}, false},
		{"token_bucket", &TokenBucket{}, false},
		{"rate", &Rate{}, false},
		{"", &Rate{}, false},
		{"leaky", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			l, err := New(tt.kind, 20, time.Minute)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, l)
			assert.Equal(t, 20, l.Status().Max)
		})
	}

	_, err := New("rate", 0, time.Minute)
	assert.Error(t, err)
}
