package queue

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBounded_OfferDrain(t *testing.T) {
	q := NewBounded[string](2)
	t.Cleanup(q.Close)

	assert.True(t, q.Offer("a.js"))
	assert.True(t, q.Offer("b.js"))
	assert.False(t, q.Offer("c.js"), "full queue refuses")
	assert.Equal(t, 2, q.Len())

	batch, err := q.Drain(context.Background(), 8, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.js", "b.js"}, batch)
	assert.Zero(t, q.Len())
}

func TestBounded_DrainRespectsLimit(t *testing.T) {
	q := NewBounded[int](4)
	t.Cleanup(q.Close)
	for i := 1; i <= 3; i++ {
		require.True(t, q.Offer(i))
	}

	batch, err := q.Drain(context.Background(), 2, 0)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, batch)

	batch, err = q.Drain(context.Background(), 2, 0)
	require.NoError(t, err)
	assert.Equal(t, []int{3}, batch)
}

func TestBounded_EmptyDrain(t *testing.T) {
	q := NewBounded[int](0)
	t.Cleanup(q.Close)

	batch, err := q.Drain(context.Background(), 1, 5*time.Millisecond)
	assert.NoError(t, err)
	assert.Empty(t, batch)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = q.Drain(ctx, 1, time.Second)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = q.Drain(ctx, 1, 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBounded_CloseDrainsThenEOF(t *testing.T) {
	q := NewBounded[string](2)
	require.True(t, q.Offer("a.js"))
	q.Close()
	q.Close()
	assert.False(t, q.Offer("b.js"))

	batch, err := q.Drain(context.Background(), 2, 0)
	assert.Equal(t, []string{"a.js"}, batch)
	assert.ErrorIs(t, err, io.EOF)

	batch, err = q.Drain(context.Background(), 2, time.Second)
	assert.Empty(t, batch)
	assert.ErrorIs(t, err, io.EOF)
}
