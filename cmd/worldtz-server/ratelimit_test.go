package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter(t *testing.T) {
	now := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	rl := newRateLimiter(3, time.Minute)
	rl.now = func() time.Time { return now }

	for i := range 3 {
		assert.True(t, rl.allow("198.51.100.1"), "request %d", i+1)
	}
	assert.False(t, rl.allow("198.51.100.1"))
	assert.True(t, rl.allow("198.51.100.2"), "limits are per client")

	now = now.Add(61 * time.Second)
	assert.True(t, rl.allow("198.51.100.1"), "window slides")
}

func TestRateLimiterSweep(t *testing.T) {
	now := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	rl := newRateLimiter(3, time.Minute)
	rl.now = func() time.Time { return now }

	rl.allow("a")
	now = now.Add(30 * time.Second)
	rl.allow("b")

	now = now.Add(45 * time.Second)
	assert.Equal(t, 1, rl.sweep())
	assert.Len(t, rl.requests, 1)
	assert.Contains(t, rl.requests, "b")
}
