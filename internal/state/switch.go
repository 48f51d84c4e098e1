package state

import (
	"context"
	"log"
	"sync"
	"time"
)

// Source opens the upstream sequence for key. The channel must close when ctx is done.
type Source[K comparable, V any] func(ctx context.Context, key K) (<-chan V, error)

// Keyed tags a value with the key it was produced for.
type Keyed[K comparable, V any] struct {
	Key   K
	Value V
}

// Switch derives a value from a key by following the upstream for the
// latest key only. At most one upstream is open at a time; a key change
// cancels the previous upstream before the next one starts. The zero key
// means "no source" and yields the empty value.
//
// The upstream is shared by all observers and kept open for a grace period
// after the last one leaves, so a quick unsubscribe/resubscribe does not
// restart it.
type Switch[K comparable, V any] struct {
	source Source[K, V]
	empty  V
	grace  time.Duration

	mu        sync.Mutex
	key       K
	gen       uint64
	graceGen  uint64
	observers int
	nextSub   int
	subs      map[int]chan V
	cancel    context.CancelFunc
	closed    bool
	out       *Cell[Keyed[K, V]]
}

func NewSwitch[K comparable, V any](source Source[K, V], empty V, grace time.Duration) *Switch[K, V] {
	var zero K
	return &Switch[K, V]{
		source: source,
		empty:  empty,
		grace:  grace,
		subs:   make(map[int]chan V),
		out:    NewCell(Keyed[K, V]{Key: zero, Value: empty}),
	}
}

// Key returns the key the switch currently follows.
func (s *Switch[K, V]) Key() K {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.key
}

// Get returns the latest value for the current key, or the empty value
// if nothing has arrived for it yet.
func (s *Switch[K, V]) Get() V {
	s.mu.Lock()
	defer s.mu.Unlock()
	latest := s.out.Get()
	if latest.Key != s.key {
		return s.empty
	}
	return latest.Value
}

// SetKey switches to a new key. Once it returns, no value produced for the
// previous key will be published.
func (s *Switch[K, V]) SetKey(key K) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || key == s.key {
		return
	}
	s.stopUpstreamLocked()
	s.key = key
	// Drop anything still pending for the old key.
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
	}
	s.out.Set(Keyed[K, V]{Key: key, Value: s.empty})

	if s.observers > 0 {
		s.startUpstreamLocked()
	}
}

// Subscribe yields the current value followed by every later value for the
// key in effect at delivery time. The channel closes when ctx is done.
func (s *Switch[K, V]) Subscribe(ctx context.Context) <-chan V {
	out := make(chan V, 1)
	id := s.acquire(out)

	in := s.out.Subscribe(ctx)
	go func() {
		defer s.release(id)
		for kv := range in {
			s.deliver(out, kv)
		}
	}()

	return out
}

// deliver forwards kv if it still matches the current key. Holding the lock
// makes the check and the send atomic with respect to SetKey.
func (s *Switch[K, V]) deliver(out chan V, kv Keyed[K, V]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if kv.Key == s.key {
		offer(out, kv.Value)
	}
}

// Active reports whether an upstream is currently open.
func (s *Switch[K, V]) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// Close stops the upstream. Existing subscriptions stay open until their
// contexts are done but receive no further values.
func (s *Switch[K, V]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.graceGen++
	s.stopUpstreamLocked()
}

func (s *Switch[K, V]) acquire(out chan V) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.subs[id] = out

	s.observers++
	s.graceGen++ // cancels a pending grace stop
	if s.cancel == nil && !s.closed {
		s.startUpstreamLocked()
	}
	return id
}

func (s *Switch[K, V]) release(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	close(s.subs[id])
	delete(s.subs, id)
	s.observers--
	if s.observers > 0 {
		return
	}
	if s.grace <= 0 {
		s.stopUpstreamLocked()
		return
	}

	s.graceGen++
	graceGen := s.graceGen
	time.AfterFunc(s.grace, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.graceGen == graceGen && s.observers == 0 {
			s.stopUpstreamLocked()
		}
	})
}

func (s *Switch[K, V]) startUpstreamLocked() {
	var zero K
	if s.key == zero {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.pump(ctx, s.key, s.gen)
}

func (s *Switch[K, V]) stopUpstreamLocked() {
	s.gen++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Switch[K, V]) pump(ctx context.Context, key K, gen uint64) {
	values, err := s.source(ctx, key)
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("State: failed to open source for %v: %v", key, err)
		}
		s.mu.Lock()
		if s.gen == gen {
			s.stopUpstreamLocked()
		}
		s.mu.Unlock()
		return
	}

	for value := range values {
		s.publish(key, gen, value)
	}
}

func (s *Switch[K, V]) publish(key K, gen uint64, value V) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return
	}
	s.out.Set(Keyed[K, V]{Key: key, Value: value})
}
