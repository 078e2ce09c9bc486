package notify

import (
	"context"
	"sync"
)

const defaultSubscriberBuffer = 16

// Dispatcher fans messages out to live per-user subscribers. Messages for users without
// subscribers are dropped, as are messages for subscribers whose buffer is full.
type Dispatcher struct {
	mu          sync.RWMutex
	subscribers map[string]map[int64]*subscriber
	nextID      int64
	bufferSize  int
}

type subscriber struct {
	id     int64
	stream chan Message
}

// NewDispatcher constructs an empty Dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		subscribers: make(map[string]map[int64]*subscriber),
		bufferSize:  defaultSubscriberBuffer,
	}
}

// Subscribe registers a stream for userID until ctx ends or the returned cleanup runs.
func (d *Dispatcher) Subscribe(ctx context.Context, userID string) (<-chan Message, func()) {
	if userID == "" {
		ch := make(chan Message)
		close(ch)
		return ch, func() {}
	}
	entry := &subscriber{
		id:     d.nextSequence(),
		stream: make(chan Message, d.bufferSize),
	}
	d.register(userID, entry)

	var once sync.Once
	cleanup := func() {
		once.Do(func() { d.unregister(userID, entry.id) })
	}
	go func() {
		<-ctx.Done()
		cleanup()
	}()
	return entry.stream, cleanup
}

// Notify publishes the message to the user's current subscribers.
func (d *Dispatcher) Notify(_ context.Context, message Message) error {
	d.Publish(message)
	return nil
}

// Publish delivers without blocking.
func (d *Dispatcher) Publish(message Message) {
	if message.UserID == "" {
		return
	}
	d.mu.RLock()
	registered := d.subscribers[message.UserID]
	if len(registered) == 0 {
		d.mu.RUnlock()
		return
	}
	copies := make([]*subscriber, 0, len(registered))
	for _, entry := range registered {
		copies = append(copies, entry)
	}
	d.mu.RUnlock()

	for _, entry := range copies {
		select {
		case entry.stream <- message:
		default:
		}
	}
}

// SubscriberCount reports the live subscribers of userID.
func (d *Dispatcher) SubscriberCount(userID string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subscribers[userID])
}

func (d *Dispatcher) nextSequence() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	return d.nextID
}

func (d *Dispatcher) register(userID string, entry *subscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.subscribers[userID]; !ok {
		d.subscribers[userID] = make(map[int64]*subscriber)
	}
	d.subscribers[userID][entry.id] = entry
}

func (d *Dispatcher) unregister(userID string, subscriberID int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	registered := d.subscribers[userID]
	if registered == nil {
		return
	}
	delete(registered, subscriberID)
	if len(registered) == 0 {
		delete(d.subscribers, userID)
	}
}
