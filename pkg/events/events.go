package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// EventType names a resource lifecycle event
type EventType string

const (
	EventRoleChanged     EventType = "role.changed"
	EventWorkerStarted   EventType = "worker.started"
	EventWorkerStopped   EventType = "worker.stopped"
	EventWorkerExited    EventType = "worker.exited"
	EventWorkerRestarted EventType = "worker.restarted"
)

const (
	queueSize      = 100
	subscriberSize = 50
)

// Event represents a resource lifecycle event
type Event struct {
	ID        string
	Type      EventType
	Resource  string
	Timestamp time.Time
	Message   string
	Metadata  map[string]string
}

// Subscriber is a channel that receives events
type Subscriber chan *Event

// Broker fans published events out to subscribers
type Broker struct {
	mu          sync.RWMutex
	subscribers map[Subscriber]map[EventType]bool
	stopped     bool

	queue    chan *Event
	stopCh   chan struct{}
	stopOnce sync.Once
	dropped  atomic.Uint64
}

// NewBroker creates a new event broker
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[Subscriber]map[EventType]bool),
		queue:       make(chan *Event, queueSize),
		stopCh:      make(chan struct{}),
	}
}

// Start begins the broker's event distribution loop
func (b *Broker) Start() {
	go b.run()
}

// Stop ends distribution and closes every subscriber channel
func (b *Broker) Stop() {
	b.stopOnce.Do(func() {
		close(b.stopCh)

		b.mu.Lock()
		defer b.mu.Unlock()
		b.stopped = true
		for sub := range b.subscribers {
			close(sub)
		}
		b.subscribers = nil
	})
}

// Subscribe returns a channel receiving events of the given types, or
// of every type when none are given. On a stopped broker the channel is
// already closed.
func (b *Broker) Subscribe(types ...EventType) Subscriber {
	sub := make(Subscriber, subscriberSize)

	var filter map[EventType]bool
	if len(types) > 0 {
		filter = make(map[EventType]bool, len(types))
		for _, t := range types {
			filter[t] = true
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		close(sub)
		return sub
	}
	b.subscribers[sub] = filter
	return sub
}

// Unsubscribe removes sub and closes it. Unknown subscribers are ignored.
func (b *Broker) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subscribers[sub]; !ok {
		return
	}
	delete(b.subscribers, sub)
	close(sub)
}

// Publish queues event for delivery. It never blocks: when the queue is
// full the event is dropped and counted.
func (b *Broker) Publish(event *Event) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case <-b.stopCh:
		return
	default:
	}

	select {
	case b.queue <- event:
	default:
		b.dropped.Add(1)
	}
}

// Dropped returns how many events were lost to full queues
func (b *Broker) Dropped() uint64 {
	return b.dropped.Load()
}

// SubscriberCount returns the number of active subscribers
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

func (b *Broker) run() {
	for {
		select {
		case event := <-b.queue:
			b.broadcast(event)
		case <-b.stopCh:
			return
		}
	}
}

func (b *Broker) broadcast(event *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub, filter := range b.subscribers {
		if filter != nil && !filter[event.Type] {
			continue
		}
		select {
		case sub <- event:
		default:
			b.dropped.Add(1)
		}
	}
}
