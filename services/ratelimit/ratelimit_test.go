package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLimiter(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	l := NewMemoryLimiter(2, time.Minute)
	l.nowFunc = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		ok, _, err := l.Allow(ctx, "checkout:1.2.3.4")
		require.NoError(t, err)
		assert.True(t, ok)
	}

	ok, retry, err := l.Allow(ctx, "checkout:1.2.3.4")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, time.Minute, retry)

	// other keys have their own window
	ok, _, _ = l.Allow(ctx, "checkout:5.6.7.8")
	assert.True(t, ok)

	now = now.Add(time.Minute)
	ok, _, _ = l.Allow(ctx, "checkout:1.2.3.4")
	assert.True(t, ok)
}

func TestMemoryLimiter_dropsExpiredWindows(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	l := NewMemoryLimiter(1, time.Minute)
	l.nowFunc = func() time.Time { return now }

	for _, ip := range []string{"1.1.1.1", "2.2.2.2", "3.3.3.3"} {
		ok, _, err := l.Allow(ctx, "checkout:"+ip)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	assert.Len(t, l.windows, 3)

	now = now.Add(2 * time.Minute)
	ok, _, err := l.Allow(ctx, "checkout:4.4.4.4")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Len(t, l.windows, 1)
	assert.Contains(t, l.windows, "checkout:4.4.4.4")
}
