package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/skylane/skylane/pkg/alert"
	"go.opentelemetry.io/otel/trace"
)

func TestNewManager(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = true

	m := NewManager(cfg)
	if m == nil {
		t.Fatal("NewManager returned nil")
	}

	if !m.Enabled() {
		t.Error("Expected metrics to be enabled")
	}
}

func TestNewManager_Disabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = false

	m := NewManager(cfg)
	if m == nil {
		t.Fatal("NewManager returned nil")
	}

	if m.Enabled() {
		t.Error("Expected metrics to be disabled")
	}
}

func TestMetricsHandler(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = true

	m := NewManager(cfg)

	// Record some metrics
	m.RecordSagaStarted("schedule-delivery")
	m.RecordSagaCompleted("schedule-delivery", "succeeded", 2*time.Second)
	m.RecordStepExecution("schedule-delivery", "create-delivery", "completed", 100*time.Millisecond)
	m.RecordStepRetry("schedule-delivery", "schedule-transport")
	m.RecordCompensation("schedule-delivery", "create-delivery", "completed")
	m.RecordRemoteCall("/delivery.DeliveryService/CreateDelivery", "OK", 50*time.Millisecond)
	m.Notify(context.Background(), alert.Alert{Type: alert.TypeDroneReleaseFailed, Severity: alert.SeverityWarning})

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()

	m.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	body := w.Body.String()
	if body == "" {
		t.Error("Expected non-empty metrics output")
	}

	expectedMetrics := []string{
		"saga_started_total",
		"saga_completed_total",
		"saga_duration_seconds",
		"saga_step_executions_total",
		"saga_step_retries_total",
		"saga_compensations_total",
		"remote_calls_total",
		"alerts_total",
	}

	for _, metric := range expectedMetrics {
		if !strings.Contains(body, metric) {
			t.Errorf("Expected metric %s not found in output", metric)
		}
	}
}

func TestMetricsHandler_Disabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = false

	m := NewManager(cfg)

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()

	m.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 when disabled, got %d", w.Code)
	}
}

func TestNoOpManagerRecordsNothing(t *testing.T) {
	m := NoOpManager()

	// None of these should panic on the nil collectors.
	m.RecordSagaStarted("schedule-delivery")
	m.RecordSagaCompleted("schedule-delivery", "succeeded", time.Second)
	m.RecordStepExecution("schedule-delivery", "create-delivery", "completed", time.Millisecond)
	m.RecordStepRetry("schedule-delivery", "create-delivery")
	m.RecordCompensation("schedule-delivery", "create-delivery", "failed")
	m.RecordRemoteCall("/account.AccountService/GetAccount", "OK", time.Millisecond)
	m.Notify(context.Background(), alert.Alert{Type: alert.TypeCompensationFailed})
	m.SetActiveSagas(3)
	m.RecordHTTPRequest("GET", "/api/v1/health", "200", time.Millisecond)
	m.IncActiveConnections()
	m.DecActiveConnections()
}

func TestActiveSagasGauge(t *testing.T) {
	cfg := DefaultConfig()
	m := NewManager(cfg)

	m.SetActiveSagas(5)

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, req)

	if !strings.Contains(w.Body.String(), "saga_active_count 5") {
		t.Errorf("Expected saga_active_count 5 in output")
	}
}

func TestRecordHTTPRequestWithContext(t *testing.T) {
	cfg := DefaultConfig()
	m := NewManager(cfg)

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9},
		SpanID:     trace.SpanID{3, 3, 3, 3, 3, 3, 3, 3},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	m.RecordHTTPRequestWithContext(ctx, "POST", "/api/v1/deliveries", "201", 40*time.Millisecond)
	// Unsampled context takes the plain path.
	m.RecordHTTPRequestWithContext(context.Background(), "POST", "/api/v1/deliveries", "201", 40*time.Millisecond)

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, req)

	if !strings.Contains(w.Body.String(), `http_requests_total{method="POST",path="/api/v1/deliveries",status="201"} 2`) {
		t.Errorf("expected request counter at 2:\n%s", w.Body.String())
	}
}

func TestNoOpManagerContextRecorder(t *testing.T) {
	m := NoOpManager()
	m.RecordHTTPRequestWithContext(context.Background(), "GET", "/api/v1/sagas", "200", time.Millisecond)
}
