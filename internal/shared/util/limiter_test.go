package util

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_BurstThenRefill(t *testing.T) {
	l := NewLimiter(20, 2)
	assert.True(t, l.Allow(1))
	assert.True(t, l.Allow(1))
	assert.False(t, l.Allow(1), "burst should be spent")

	time.Sleep(100 * time.Millisecond)
	assert.True(t, l.Allow(1))
}

func TestLimiter_WaitHonoursContext(t *testing.T) {
	l := NewIntervalLimiter(time.Hour, 1)
	require.True(t, l.Allow(1))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, l.Wait(ctx, 1))
}

func TestNewIntervalLimiter_ZeroNeverLimits(t *testing.T) {
	l := NewIntervalLimiter(0, 1)
	for i := 0; i < 10; i++ {
		require.True(t, l.Allow(1))
	}
	require.NoError(t, l.Wait(context.Background(), 1))
}

func TestClientLimiters(t *testing.T) {
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewClientLimiters(1, 1, time.Minute)
	c.now = func() time.Time { return clock }

	a := c.For("10.0.0.1")
	b := c.For("10.0.0.2")
	assert.NotSame(t, a, b)
	assert.Same(t, a, c.For("10.0.0.1"))
	assert.Equal(t, 2, c.Len())

	clock = clock.Add(30 * time.Second)
	c.For("10.0.0.1")

	// Only 10.0.0.2 has been idle for longer than a minute.
	clock = clock.Add(45 * time.Second)
	c.For("10.0.0.3")
	assert.Equal(t, 2, c.Len())
	assert.NotSame(t, b, c.For("10.0.0.2"))
}
