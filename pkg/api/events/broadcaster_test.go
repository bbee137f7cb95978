package events

import (
	"context"
	"testing"
	"time"

	"github.com/skylane/skylane/pkg/alert"
	"github.com/skylane/skylane/pkg/dispatch"
)

func TestBroadcaster_SubscribeBroadcastUnsubscribe(t *testing.T) {
	b := NewBroadcaster()
	ch := b.Subscribe(1)

	b.Broadcast(dispatch.Event{
		Type:       dispatch.EventDeliveryScheduled,
		SagaID:     "saga-1",
		Workflow:   "schedule-delivery",
		DeliveryID: "d-1",
	})

	select {
	case event := <-ch:
		if event.Type != dispatch.EventDeliveryScheduled {
			t.Fatalf("type = %q, want %q", event.Type, dispatch.EventDeliveryScheduled)
		}
		if event.SagaID != "saga-1" {
			t.Fatalf("saga id = %q, want saga-1", event.SagaID)
		}
		if event.Timestamp.IsZero() {
			t.Fatal("expected broadcast to stamp the event")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for broadcast event")
	}

	b.Unsubscribe(ch)
}

func TestBroadcaster_PublishReachesAllSubscribers(t *testing.T) {
	b := NewBroadcaster()
	first := b.Subscribe(2)
	second := b.Subscribe(2)

	b.Publish(context.Background(), dispatch.Event{
		Type:   dispatch.EventDeliveryCompleted,
		SagaID: "saga-2",
	})

	for _, ch := range []chan dispatch.Event{first, second} {
		select {
		case event := <-ch:
			if event.SagaID != "saga-2" {
				t.Fatalf("saga id = %q, want saga-2", event.SagaID)
			}
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for published event")
		}
	}
}

func TestBroadcaster_DropsOnFullSubscriber(t *testing.T) {
	b := NewBroadcaster()
	ch := b.Subscribe(1)

	b.Broadcast(dispatch.Event{Type: dispatch.EventDeliveryScheduled, SagaID: "saga-1"})
	b.Broadcast(dispatch.Event{Type: dispatch.EventDeliveryScheduled, SagaID: "saga-2"})

	event := <-ch
	if event.SagaID != "saga-1" {
		t.Fatalf("saga id = %q, want saga-1", event.SagaID)
	}
	select {
	case extra := <-ch:
		t.Fatalf("expected second event to be dropped, got %q", extra.SagaID)
	default:
	}
}

func TestBroadcaster_CloseClosesSubscribers(t *testing.T) {
	b := NewBroadcaster()
	ch := b.Subscribe(1)

	b.Close()

	if _, ok := <-ch; ok {
		t.Fatal("expected subscriber channel to be closed")
	}

	// Unsubscribe after close must not panic.
	b.Unsubscribe(ch)
}

func TestBroadcaster_NotifyForwardsAlerts(t *testing.T) {
	b := NewBroadcaster()
	ch := b.Subscribe(1)

	b.Notify(context.Background(), alert.Alert{
		Type:     alert.TypeDroneReleaseFailed,
		Severity: alert.SeverityWarning,
		SagaID:   "saga-5",
		Workflow: "complete-delivery",
		Message:  "drone release exhausted retries",
	})

	select {
	case event := <-ch:
		if event.Type != dispatch.EventAlert {
			t.Fatalf("type = %q, want %q", event.Type, dispatch.EventAlert)
		}
		if event.SagaID != "saga-5" {
			t.Fatalf("saga id = %q, want saga-5", event.SagaID)
		}
		a, ok := event.Payload.(alert.Alert)
		if !ok {
			t.Fatalf("payload = %T, want alert.Alert", event.Payload)
		}
		if a.Type != alert.TypeDroneReleaseFailed {
			t.Fatalf("alert type = %q", a.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for alert event")
	}
}
