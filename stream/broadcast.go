// Package stream implements the fan-out broadcast primitive spec.md §5
// asks for: many subscribers, one producer, and a
// publish call that must never block no matter how slow a subscriber is.
//
// The shape is borrowed from two places in the retrieved pack: dividat's
// driver daemon wires github.com/cskr/pubsub for exactly this kind of
// fan-out between its serial/BLE readers and its WebSocket clients, and
// srgg/blecli's SubscriptionManager tracks subscriber goroutines with a
// sync.WaitGroup plus per-subscription context.CancelFunc. pubsub.Pub
// blocks a publisher against a full subscriber channel, which spec.md §5
// forbids outright, so the broadcaster below keeps pubsub's topic-less,
// one-channel-per-subscriber shape but sends with a non-blocking select
// and counts the drop instead.
package stream

import (
	"sync"
)

// Broadcaster fans out values of type T to any number of subscribers. The
// zero value is not usable; use New.
type Broadcaster[T any] struct {
	mu      sync.Mutex
	subs    map[chan T]struct{}
	closed  bool
	dropped uint64
}

// New creates an empty Broadcaster.
func New[T any]() *Broadcaster[T] {
	return &Broadcaster[T]{subs: make(map[chan T]struct{})}
}

// Subscribe registers a new subscriber and returns its channel, buffered to
// capacity. Call Unsubscribe (or cancel the channel via Unsubscribe) when
// done; a subscriber that never unsubscribes is retained until Close.
func (b *Broadcaster[T]) Subscribe(capacity int) chan T {
	if capacity < 1 {
		capacity = 1
	}
	ch := make(chan T, capacity)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.subs[ch] = struct{}{}
	return ch
}

// Unsubscribe detaches a subscriber and closes its channel. Safe to call
// more than once for the same channel.
func (b *Broadcaster[T]) Unsubscribe(ch chan T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[ch]; !ok {
		return
	}
	delete(b.subs, ch)
	close(ch)
}

// Publish fans v out to every current subscriber without blocking. A
// subscriber whose buffer is full drops the value; Dropped reports the
// running total of such drops as a metric, per spec.md §9 ("drops on full
// buffers are allowed and must be surfaced only as a metric, not as an
// error").
func (b *Broadcaster[T]) Publish(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for ch := range b.subs {
		select {
		case ch <- v:
		default:
			b.dropped++
		}
	}
}

// Dropped returns the cumulative count of values dropped because a
// subscriber's buffer was full.
func (b *Broadcaster[T]) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// Close detaches and closes every current subscriber's channel and marks
// the broadcaster closed; further Subscribe calls receive an
// already-closed channel and Publish becomes a no-op. Idempotent.
func (b *Broadcaster[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.subs {
		close(ch)
	}
	b.subs = make(map[chan T]struct{})
}
