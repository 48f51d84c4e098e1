package state

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func next[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		require.True(t, ok, "channel closed")
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for value")
	}
	var zero T
	return zero
}

func TestCell_GetSet(t *testing.T) {
	c := NewCell(1)
	assert.Equal(t, 1, c.Get())

	c.Set(2)
	assert.Equal(t, 2, c.Get())

	assert.Equal(t, 5, c.Update(func(v int) int { return v + 3 }))
	assert.Equal(t, 5, c.Get())
}

func TestCell_SubscribeEmitsCurrentFirst(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := NewCell("a")
	ch := c.Subscribe(ctx)
	assert.Equal(t, "a", next(t, ch))

	c.Set("b")
	assert.Equal(t, "b", next(t, ch))
}

func TestCell_SlowSubscriberSeesLatest(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := NewCell(0)
	ch := c.Subscribe(ctx)

	for i := 1; i <= 100; i++ {
		c.Set(i)
	}

	assert.Equal(t, 100, next(t, ch))
	select {
	case v := <-ch:
		t.Fatalf("unexpected extra value %d", v)
	default:
	}
}

func TestCell_SubscribeClosesOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := NewCell(0)
	ch := c.Subscribe(ctx)
	next(t, ch)

	cancel()

	assert.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, c.Subscribers())

	// Setting after the subscriber left must not panic.
	c.Set(1)
}

func TestCell_ConcurrentUpdates(t *testing.T) {
	c := NewCell(0)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Update(func(v int) int { return v + 1 })
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, c.Get())
}
