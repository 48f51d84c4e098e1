// Package state holds the observable values the session exposes.
//
// A Cell is a mutable value whose observers always see the latest state.
// A Switch derives a value from a Cell key by re-subscribing to a new
// upstream each time the key changes.
package state

import (
	"context"
	"sync"
)

// Cell is a concurrency-safe observable value. Subscribers are conflated:
// a slow reader skips intermediate values and receives only the newest.
type Cell[T any] struct {
	mu     sync.Mutex
	value  T
	nextID int
	subs   map[int]chan T
}

func NewCell[T any](initial T) *Cell[T] {
	return &Cell[T]{value: initial, subs: make(map[int]chan T)}
}

func (c *Cell[T]) Get() T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

func (c *Cell[T]) Set(value T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLocked(value)
}

// Update applies fn to the current value atomically and returns the result.
func (c *Cell[T]) Update(fn func(T) T) T {
	c.mu.Lock()
	defer c.mu.Unlock()
	next := fn(c.value)
	c.setLocked(next)
	return next
}

func (c *Cell[T]) setLocked(value T) {
	c.value = value
	for _, ch := range c.subs {
		offer(ch, value)
	}
}

// offer replaces whatever is pending in a one-slot channel with value.
// Only called with the owning lock held, so there is a single sender.
func offer[T any](ch chan T, value T) {
	select {
	case ch <- value:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	ch <- value
}

// Subscribe returns a channel that first yields the current value and then
// every later one. It is closed once ctx is done.
func (c *Cell[T]) Subscribe(ctx context.Context) <-chan T {
	ch := make(chan T, 1)

	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = ch
	ch <- c.value
	c.mu.Unlock()

	go func() {
		<-ctx.Done()
		c.mu.Lock()
		delete(c.subs, id)
		close(ch)
		c.mu.Unlock()
	}()

	return ch
}

// Subscribers returns the number of live subscriptions.
func (c *Cell[T]) Subscribers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}
