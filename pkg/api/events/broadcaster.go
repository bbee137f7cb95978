// Package events fans workflow lifecycle events out to in-process
// subscribers, bridging the dispatch facade to the websocket layer.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/skylane/skylane/pkg/alert"
	"github.com/skylane/skylane/pkg/dispatch"
)

// Broadcaster broadcasts workflow events to in-process subscribers. It
// implements dispatch.EventPublisher so the facade can publish into it
// directly.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[chan dispatch.Event]struct{}
}

var (
	_ dispatch.EventPublisher = (*Broadcaster)(nil)
	_ alert.Notifier          = (*Broadcaster)(nil)
)

// NewBroadcaster creates a broadcaster instance.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[chan dispatch.Event]struct{}),
	}
}

// Subscribe subscribes to events with a buffered channel.
func (b *Broadcaster) Subscribe(buffer int) chan dispatch.Event {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan dispatch.Event, buffer)
	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Broadcaster) Unsubscribe(ch chan dispatch.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subscribers[ch]; !ok {
		return
	}
	delete(b.subscribers, ch)
	close(ch)
}

// Publish implements dispatch.EventPublisher.
func (b *Broadcaster) Publish(_ context.Context, event dispatch.Event) {
	b.Broadcast(event)
}

// Notify implements alert.Notifier: reconciliation alerts reach streaming
// consumers as saga.alert events.
func (b *Broadcaster) Notify(_ context.Context, a alert.Alert) {
	b.Broadcast(dispatch.Event{
		Type:      dispatch.EventAlert,
		SagaID:    a.SagaID,
		Workflow:  a.Workflow,
		Payload:   a,
		Timestamp: a.Timestamp,
	})
}

// Broadcast delivers an event to all subscribers without blocking.
func (b *Broadcaster) Broadcast(event dispatch.Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	b.mu.RLock()
	subs := make([]chan dispatch.Event, 0, len(b.subscribers))
	for ch := range b.subscribers {
		subs = append(subs, ch)
	}
	b.mu.RUnlock()

	for _, ch := range subs {
		select {
		case ch <- event:
		default:
			// Drop on overflow to keep publishers non-blocking.
		}
	}
}

// Close closes all subscriber channels.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, ch)
	}
}
