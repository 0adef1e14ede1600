package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBroadcasterFansOut(t *testing.T) {
	b := NewBroadcaster()
	a, cancelA := b.Subscribe(2)
	c, cancelC := b.Subscribe(2)
	defer cancelA()
	defer cancelC()

	assert.Equal(t, 2, b.Publish(Event{Seq: 1}))
	assert.Equal(t, uint64(1), (<-a).Seq)
	assert.Equal(t, uint64(1), (<-c).Seq)
}

func TestBroadcasterDropsWhenFull(t *testing.T) {
	b := NewBroadcaster()
	ch, cancel := b.Subscribe(1)
	defer cancel()

	assert.Equal(t, 1, b.Publish(Event{Seq: 1}))
	assert.Equal(t, 0, b.Publish(Event{Seq: 2}), "a full subscriber never blocks the publisher")
	assert.Equal(t, uint64(1), (<-ch).Seq)
}

func TestBroadcasterUnsubscribe(t *testing.T) {
	b := NewBroadcaster()
	ch, cancel := b.Subscribe(1)

	cancel()
	cancel()

	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 0, b.Publish(Event{Seq: 1}))
}

func TestBroadcasterClose(t *testing.T) {
	b := NewBroadcaster()
	ch, cancel := b.Subscribe(1)
	b.Close()
	cancel()

	_, open := <-ch
	assert.False(t, open)

	late, _ := b.Subscribe(1)
	_, open = <-late
	assert.False(t, open)
}
