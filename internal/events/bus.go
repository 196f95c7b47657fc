package events

import (
	"sync"
)

// DefaultSubscriberCapacity bounds each subscriber's backlog.
const DefaultSubscriberCapacity = 256

// Subscription is one consumer's view of a Bus.
type Subscription[T any] struct {
	rc  *RingChannel[T]
	bus *Bus[T]
}

// C delivers published values in publish order.
func (s *Subscription[T]) C() <-chan T {
	return s.rc.C()
}

// Dropped returns how many values were overwritten because the consumer lagged.
func (s *Subscription[T]) Dropped() int64 {
	return s.rc.GetMetrics().Overwritten
}

// Close detaches the subscription and closes its channel. Safe to call twice.
func (s *Subscription[T]) Close() {
	s.bus.remove(s)
}

// Bus fans values out to every subscriber. Publish never blocks; a slow
// subscriber loses its oldest values, never the order of the rest.
type Bus[T any] struct {
	mu       sync.Mutex
	subs     []*Subscription[T]
	capacity int
	closed   bool
}

// NewBus creates a bus whose subscribers buffer up to capacity values.
func NewBus[T any](capacity int) *Bus[T] {
	if capacity <= 0 {
		capacity = DefaultSubscriberCapacity
	}
	return &Bus[T]{capacity: capacity}
}

// Subscribe registers a new consumer. Subscribing to a closed bus returns a
// subscription whose channel is already closed.
func (b *Bus[T]) Subscribe() *Subscription[T] {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := &Subscription[T]{rc: NewRingChannel[T](b.capacity), bus: b}
	if b.closed {
		s.rc.Close()
		return s
	}
	b.subs = append(b.subs, s)
	return s
}

// Publish delivers v to all current subscribers.
func (b *Bus[T]) Publish(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, s := range b.subs {
		s.rc.ForceSend(v)
	}
}

// Close closes every subscription; later publishes are dropped.
func (b *Bus[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	for _, s := range b.subs {
		s.rc.Close()
	}
	b.subs = nil
}

func (b *Bus[T]) remove(target *Subscription[T]) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, s := range b.subs {
		if s == target {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			break
		}
	}
	target.rc.Close()
}
