package signal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRoomRateLimiterSlidingWindow(t *testing.T) {
	now := time.Unix(1000, 0)
	rl := NewRoomRateLimiter(2, 10*time.Second)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("u1"))
	assert.True(t, rl.Allow("u1"))
	assert.False(t, rl.Allow("u1"))
	assert.True(t, rl.Allow("u2"))

	now = now.Add(11 * time.Second)
	assert.True(t, rl.Allow("u1"))
}

func TestRoomRateLimiterForget(t *testing.T) {
	now := time.Unix(1000, 0)
	rl := NewRoomRateLimiter(1, time.Second)
	rl.now = func() time.Time { return now }
	rl.Allow("u1")
	rl.Allow("u2")

	assert.Equal(t, 0, rl.Forget())
	now = now.Add(2 * time.Second)
	assert.Equal(t, 2, rl.Forget())
	assert.Empty(t, rl.history)
}

func TestRoomRateLimiterDisabled(t *testing.T) {
	rl := NewRoomRateLimiter(0, time.Second)
	for range 100 {
		assert.True(t, rl.Allow("u1"))
	}
}
