package ratelimit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLimiter_BurstThenReject(t *testing.T) {
	l := NewLocalLimiter(60, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := l.Allow(ctx, "alice@example.com")
		require.NoError(t, err)
		assert.True(t, res.Allowed, "request %d should pass", i)
	}

	res, err := l.Allow(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Greater(t, res.RetryAfter.Seconds(), 0.0)
	assert.Equal(t, 60, res.Limit)
}

func TestLocalLimiter_KeysAreIndependent(t *testing.T) {
	l := NewLocalLimiter(60, 1)
	ctx := context.Background()

	res, err := l.Allow(ctx, "a")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	res, err = l.Allow(ctx, "b")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	res, err = l.Allow(ctx, "a")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
}

func (l *LocalLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}

func TestLocalLimiter_IdleKeysAreSwept(t *testing.T) {
	// 60/min with burst 2 refills in 2s, so idle entries go after a minute
	l := NewLocalLimiter(60, 2)
	clock := time.Unix(1_700_000_000, 0)
	l.now = func() time.Time { return clock }
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		_, err := l.Allow(ctx, fmt.Sprintf("203.0.113.%d", i))
		require.NoError(t, err)
	}
	assert.Equal(t, 100, l.size())

	clock = clock.Add(l.idleTTL / 2)
	_, err := l.Allow(ctx, "203.0.113.7")
	require.NoError(t, err)
	assert.Equal(t, 100, l.size(), "nothing is idle yet")

	clock = clock.Add(l.idleTTL - time.Second)
	res, err := l.Allow(ctx, "198.51.100.1")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 2, l.size(), "only the recently seen key and the new one remain")
}
