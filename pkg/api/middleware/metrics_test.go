package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/trace"
)

type recordedRequest struct {
	method string
	path   string
	status string
}

type fakeRecorder struct {
	requests []recordedRequest
	inFlight int
	maxSeen  int
}

func (f *fakeRecorder) RecordHTTPRequest(method, path, status string, _ time.Duration) {
	f.requests = append(f.requests, recordedRequest{method, path, status})
}

func (f *fakeRecorder) IncActiveConnections() {
	f.inFlight++
	if f.inFlight > f.maxSeen {
		f.maxSeen = f.inFlight
	}
}

func (f *fakeRecorder) DecActiveConnections() { f.inFlight-- }

type fakeContextRecorder struct {
	fakeRecorder
	ctxCalls int
	traceID  string
}

func (f *fakeContextRecorder) RecordHTTPRequestWithContext(ctx context.Context, method, path, status string, _ time.Duration) {
	f.ctxCalls++
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		f.traceID = sc.TraceID().String()
	}
}

func TestMetricsRecordsServedRequest(t *testing.T) {
	rec := &fakeRecorder{}
	handler := Metrics(rec)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodDelete, "/api/v1/sagas/550e8400-e29b-41d4-a716-446655440000", nil))

	if len(rec.requests) != 1 {
		t.Fatalf("got %d observations, want 1", len(rec.requests))
	}
	got := rec.requests[0]
	if got.method != http.MethodDelete || got.status != "409" {
		t.Errorf("observation = %+v", got)
	}
	if got.path != "/api/v1/sagas/{id}" {
		t.Errorf("path label = %q, want /api/v1/sagas/{id}", got.path)
	}
	if rec.inFlight != 0 || rec.maxSeen != 1 {
		t.Errorf("in-flight = %d (max %d), want 0 (max 1)", rec.inFlight, rec.maxSeen)
	}
}

func TestMetricsUsesRoutePattern(t *testing.T) {
	rec := &fakeRecorder{}
	r := chi.NewRouter()
	r.Use(Metrics(rec))
	r.Get("/api/v1/deliveries/{id}", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/deliveries/meds-9", nil))

	if len(rec.requests) != 1 {
		t.Fatalf("got %d observations, want 1", len(rec.requests))
	}
	if rec.requests[0].path != "/api/v1/deliveries/{id}" {
		t.Errorf("path label = %q, want route pattern", rec.requests[0].path)
	}
}

func TestMetricsSkipsScrapeEndpoint(t *testing.T) {
	rec := &fakeRecorder{}
	handler := Metrics(rec)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if len(rec.requests) != 0 {
		t.Errorf("got %d observations for /metrics, want 0", len(rec.requests))
	}
}

func TestMetricsRecordsPanicAsServerError(t *testing.T) {
	rec := &fakeRecorder{}
	handler := Metrics(rec)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	defer func() {
		if recover() == nil {
			t.Fatal("panic not propagated to outer middleware")
		}
		if len(rec.requests) != 1 || rec.requests[0].status != "500" {
			t.Errorf("observations = %+v, want one 500", rec.requests)
		}
		if rec.inFlight != 0 {
			t.Errorf("in-flight = %d after panic, want 0", rec.inFlight)
		}
	}()
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/deliveries", nil))
}

func TestMetricsPrefersContextRecorder(t *testing.T) {
	rec := &fakeContextRecorder{}
	handler := Metrics(rec)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1},
		SpanID:     trace.SpanID{2, 2, 2, 2, 2, 2, 2, 2},
		TraceFlags: trace.FlagsSampled,
	})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/sagas", nil).
		WithContext(trace.ContextWithSpanContext(context.Background(), sc))

	handler.ServeHTTP(httptest.NewRecorder(), req)

	if rec.ctxCalls != 1 {
		t.Fatalf("context recorder calls = %d, want 1", rec.ctxCalls)
	}
	if len(rec.requests) != 0 {
		t.Errorf("base recorder called %d times, want 0", len(rec.requests))
	}
	if rec.traceID != sc.TraceID().String() {
		t.Errorf("trace id = %q, want %q", rec.traceID, sc.TraceID().String())
	}
}

func TestMetricPathFallback(t *testing.T) {
	cases := map[string]string{
		"/api/v1/deliveries/42":                                      "/api/v1/deliveries/{id}",
		"/api/v1/sagas/550e8400-e29b-41d4-a716-446655440000":         "/api/v1/sagas/{id}",
		"/api/v1/sagas/550e8400-e29b-41d4-a716-446655440000/history": "/api/v1/sagas/{id}/history",
		"/api/v1/deliveries":                                         "/api/v1/deliveries",
		"/health":                                                    "/health",
	}
	for in, want := range cases {
		req := httptest.NewRequest(http.MethodGet, in, nil)
		if got := metricPath(req); got != want {
			t.Errorf("metricPath(%q) = %q, want %q", in, got, want)
		}
	}
}
