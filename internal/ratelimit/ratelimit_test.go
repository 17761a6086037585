package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLimiter(t *testing.T) {
	now := time.Date(2025, 6, 18, 13, 0, 0, 0, time.UTC)
	l := New(5 * time.Second)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("a"), "first call must pass")
	assert.False(t, l.Allow("a"), "second call within interval must be denied")

	assert.True(t, l.Allow("b"), "keys are independent")

	now = now.Add(4 * time.Second)
	assert.False(t, l.Allow("a"))

	now = now.Add(time.Second)
	assert.True(t, l.Allow("a"), "call after interval must pass")
	assert.False(t, l.Allow("a"))
}

func TestLimiterReset(t *testing.T) {
	now := time.Date(2025, 6, 18, 13, 0, 0, 0, time.UTC)
	l := New(time.Minute)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))

	l.Reset("a")
	assert.True(t, l.Allow("a"))
}
