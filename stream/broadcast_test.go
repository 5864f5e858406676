package stream

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublish_FansOutToAllSubscribers(t *testing.T) {
	b := New[int]()
	a := b.Subscribe(4)
	c := b.Subscribe(4)

	b.Publish(7)

	select {
	case v := <-a:
		assert.Equal(t, 7, v)
	default:
		t.Fatal("subscriber a got nothing")
	}
	select {
	case v := <-c:
		assert.Equal(t, 7, v)
	default:
		t.Fatal("subscriber c got nothing")
	}
}

func TestPublish_NeverBlocksOnFullSubscriber(t *testing.T) {
	b := New[int]()
	slow := b.Subscribe(1)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			b.Publish(i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}

	assert.GreaterOrEqual(t, b.Dropped(), uint64(8))
	<-slow // drain the one value that made it through
}

func TestUnsubscribe_ClosesChannel(t *testing.T) {
	b := New[int]()
	ch := b.Subscribe(1)
	b.Unsubscribe(ch)
	_, ok := <-ch
	assert.False(t, ok)

	// idempotent
	b.Unsubscribe(ch)
}

func TestClose_ClosesAllSubscribers(t *testing.T) {
	b := New[int]()
	a := b.Subscribe(1)
	c := b.Subscribe(1)
	b.Close()

	_, ok := <-a
	assert.False(t, ok)
	_, ok = <-c
	assert.False(t, ok)

	// Publish after Close is a no-op, not a panic.
	require.NotPanics(t, func() { b.Publish(1) })

	// Subscribe after Close returns an already-closed channel.
	ch := b.Subscribe(1)
	_, ok = <-ch
	assert.False(t, ok)
}
