package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, sub Subscriber) *Event {
	t.Helper()
	select {
	case event := <-sub:
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestPublishDeliversToSubscribers(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	first := b.Subscribe()
	second := b.Subscribe()
	assert.Equal(t, 2, b.SubscriberCount())

	b.Publish(&Event{
		Type:     EventRoleChanged,
		Resource: "data0",
		Metadata: map[string]string{"from": "secondary", "to": "primary"},
	})

	for _, sub := range []Subscriber{first, second} {
		event := receive(t, sub)
		assert.Equal(t, EventRoleChanged, event.Type)
		assert.Equal(t, "data0", event.Resource)
		assert.NotEmpty(t, event.ID)
		assert.False(t, event.Timestamp.IsZero())
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub := b.Subscribe()
	b.Unsubscribe(sub)
	b.Unsubscribe(sub)

	_, ok := <-sub
	assert.False(t, ok)
	assert.Equal(t, 0, b.SubscriberCount())
}

func TestPublishAfterStopDoesNotBlock(t *testing.T) {
	b := NewBroker()
	b.Start()
	b.Stop()
	b.Stop()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 500; i++ {
			b.Publish(&Event{Type: EventWorkerExited})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		require.Fail(t, "Publish blocked after Stop")
	}
}

func TestSubscribeFiltersByType(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	exits := b.Subscribe(EventWorkerExited)
	all := b.Subscribe()

	b.Publish(&Event{Type: EventRoleChanged, Resource: "data0"})
	b.Publish(&Event{Type: EventWorkerExited, Resource: "data1"})

	assert.Equal(t, EventRoleChanged, receive(t, all).Type)
	assert.Equal(t, EventWorkerExited, receive(t, all).Type)

	event := receive(t, exits)
	assert.Equal(t, EventWorkerExited, event.Type)
	assert.Equal(t, "data1", event.Resource)
	assert.Empty(t, exits)
}

func TestStopClosesSubscribers(t *testing.T) {
	b := NewBroker()
	b.Start()

	sub := b.Subscribe()
	b.Stop()

	_, ok := <-sub
	assert.False(t, ok)
	assert.Equal(t, 0, b.SubscriberCount())

	b.Unsubscribe(sub)

	late := b.Subscribe()
	_, ok = <-late
	assert.False(t, ok)
}

func TestPublishCountsDroppedEvents(t *testing.T) {
	b := NewBroker()
	defer b.Stop()

	for i := 0; i < queueSize+3; i++ {
		b.Publish(&Event{Type: EventWorkerStarted})
	}

	assert.Equal(t, uint64(3), b.Dropped())
}
