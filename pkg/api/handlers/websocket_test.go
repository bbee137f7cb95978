package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/skylane/skylane/pkg/api/events"
	"github.com/skylane/skylane/pkg/dispatch"
	"github.com/skylane/skylane/pkg/logger"
)

func testWSLogger() logger.Logger {
	return logger.New(&logger.Config{
		Level:  logger.ErrorLevel,
		Format: "json",
		Output: "stdout",
	})
}

func wsURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http")
}

func TestWebSocketHandler_RejectsNonUpgrade(t *testing.T) {
	handler := NewWebSocketHandler(testWSLogger(), WebSocketConfig{})

	req := httptest.NewRequest(http.MethodGet, "/ws/events", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestWebSocketHandler_SubscribeAndBroadcast(t *testing.T) {
	handler := NewWebSocketHandler(testWSLogger(), WebSocketConfig{
		MaxConnections: 5,
	})

	server := httptest.NewServer(handler)
	defer server.Close()
	defer handler.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(server.URL), nil)
	if err != nil {
		t.Fatalf("failed to dial websocket: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(map[string]any{
		"type":    "subscribe",
		"saga_id": "saga-1",
	}); err != nil {
		t.Fatalf("failed to subscribe: %v", err)
	}

	// Subscription is applied by the read pump; give it a moment.
	time.Sleep(100 * time.Millisecond)

	if err := handler.Broadcast(dispatch.Event{
		Type:       dispatch.EventDeliveryScheduled,
		SagaID:     "saga-1",
		Workflow:   "schedule-delivery",
		DeliveryID: "d-1",
	}); err != nil {
		t.Fatalf("broadcast failed: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got dispatch.Event
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("failed to read broadcast event: %v", err)
	}
	if got.Type != dispatch.EventDeliveryScheduled {
		t.Fatalf("type = %q, want %q", got.Type, dispatch.EventDeliveryScheduled)
	}
	if got.SagaID != "saga-1" {
		t.Fatalf("saga id = %q, want saga-1", got.SagaID)
	}
}

func TestWebSocketHandler_ListenForwardsBroadcasterEvents(t *testing.T) {
	handler := NewWebSocketHandler(testWSLogger(), WebSocketConfig{})
	broadcaster := events.NewBroadcaster()

	server := httptest.NewServer(handler)
	defer server.Close()
	defer handler.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handler.Listen(ctx, broadcaster)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(server.URL), nil)
	if err != nil {
		t.Fatalf("failed to dial websocket: %v", err)
	}
	defer conn.Close()

	// Wait for the connection to register before publishing.
	deadline := time.Now().Add(2 * time.Second)
	for handler.manager.Count() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("timeout waiting for websocket registration")
		}
		time.Sleep(10 * time.Millisecond)
	}

	broadcaster.Publish(context.Background(), dispatch.Event{
		Type:   dispatch.EventDeliveryCompleted,
		SagaID: "saga-9",
	})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got dispatch.Event
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("failed to read forwarded event: %v", err)
	}
	if got.SagaID != "saga-9" {
		t.Fatalf("saga id = %q, want saga-9", got.SagaID)
	}
}

func TestWebSocketHandler_ConnectionLimit(t *testing.T) {
	handler := NewWebSocketHandler(testWSLogger(), WebSocketConfig{
		MaxConnections: 1,
	})

	server := httptest.NewServer(handler)
	defer server.Close()
	defer handler.Close()

	first, _, err := websocket.DefaultDialer.Dial(wsURL(server.URL), nil)
	if err != nil {
		t.Fatalf("failed to open first websocket: %v", err)
	}
	defer first.Close()

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(server.URL), nil)
	if err == nil {
		t.Fatal("expected second websocket dial to fail")
	}
	var handshakeErr websocket.HandshakeError
	if !errors.As(err, &handshakeErr) {
		t.Logf("dial returned non-handshake error type: %T", err)
	}
	if resp == nil {
		t.Fatal("expected HTTP response for failed upgrade")
	}
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusServiceUnavailable)
	}
}

func TestWebSocketHandler_OriginCheck(t *testing.T) {
	handler := NewWebSocketHandler(testWSLogger(), WebSocketConfig{
		AllowedOrigins: []string{"http://allowed.example"},
	})
	server := httptest.NewServer(handler)
	defer server.Close()
	defer handler.Close()

	dialer := websocket.Dialer{}
	headers := http.Header{}
	headers.Set("Origin", "http://blocked.example")

	_, resp, err := dialer.Dial(wsURL(server.URL), headers)
	if err == nil {
		t.Fatal("expected websocket dial with blocked origin to fail")
	}
	if resp == nil {
		t.Fatal("expected HTTP response for blocked origin")
	}
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusForbidden)
	}
}

func TestConnectionManager_RegisterUnregisterBroadcast(t *testing.T) {
	manager := NewConnectionManager(2)
	clientA := newWSClient(nil)
	clientB := newWSClient(nil)

	clientA.subscribe("saga-1")

	if err := manager.Register(clientA); err != nil {
		t.Fatalf("register clientA failed: %v", err)
	}
	if err := manager.Register(clientB); err != nil {
		t.Fatalf("register clientB failed: %v", err)
	}
	if manager.Count() != 2 {
		t.Fatalf("count = %d, want 2", manager.Count())
	}

	eventSaga1 := dispatch.Event{
		Type:   dispatch.EventDeliveryScheduled,
		SagaID: "saga-1",
	}
	if err := manager.Broadcast(eventSaga1); err != nil {
		t.Fatalf("broadcast failed: %v", err)
	}

	select {
	case <-clientA.send:
	case <-time.After(time.Second):
		t.Fatal("expected subscribed clientA to receive saga-1 event")
	}
	select {
	case <-clientB.send:
	case <-time.After(time.Second):
		t.Fatal("expected global clientB to receive saga-1 event")
	}

	eventSaga2 := dispatch.Event{
		Type:   dispatch.EventDeliveryScheduled,
		SagaID: "saga-2",
	}
	if err := manager.Broadcast(eventSaga2); err != nil {
		t.Fatalf("broadcast failed: %v", err)
	}

	select {
	case <-clientA.send:
		t.Fatal("did not expect clientA subscription to receive saga-2 event")
	case <-time.After(200 * time.Millisecond):
	}
	select {
	case <-clientB.send:
	case <-time.After(time.Second):
		t.Fatal("expected global clientB to receive saga-2 event")
	}

	manager.Unregister(clientA)
	if manager.Count() != 1 {
		t.Fatalf("count after unregister = %d, want 1", manager.Count())
	}
}
