package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// MetricsRecorder receives one observation per API request.
type MetricsRecorder interface {
	RecordHTTPRequest(method, path, status string, duration time.Duration)
	IncActiveConnections()
	DecActiveConnections()
}

// ContextMetricsRecorder is implemented by recorders that can exemplar-link
// an observation to the active trace. When the recorder supports it, the
// middleware prefers this method.
type ContextMetricsRecorder interface {
	RecordHTTPRequestWithContext(ctx context.Context, method, path, status string, duration time.Duration)
}

// Metrics observes request rate, latency, and in-flight count. The path
// label is the matched route pattern, so delivery and saga ids never become
// label values.
func Metrics(recorder MetricsRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, "/metrics") {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			recorder.IncActiveConnections()
			defer recorder.DecActiveConnections()

			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			observe := func(status int) {
				path := metricPath(r)
				statusLabel := strconv.Itoa(status)
				if ctxRecorder, ok := recorder.(ContextMetricsRecorder); ok {
					ctxRecorder.RecordHTTPRequestWithContext(r.Context(), r.Method, path, statusLabel, time.Since(start))
					return
				}
				recorder.RecordHTTPRequest(r.Method, path, statusLabel, time.Since(start))
			}

			// A panic still counts as a served request; record it as a 500
			// before the recovery middleware takes over.
			defer func() {
				if v := recover(); v != nil {
					observe(http.StatusInternalServerError)
					panic(v)
				}
			}()

			next.ServeHTTP(wrapped, r)
			observe(wrapped.statusCode)
		})
	}
}

// metricPath prefers the chi route pattern ("/api/v1/deliveries/{id}"). The
// fallback collapses id-shaped segments so an unrouted path cannot blow up
// label cardinality.
func metricPath(r *http.Request) string {
	if pattern := routePattern(r); pattern != r.URL.Path {
		return pattern
	}
	parts := strings.Split(r.URL.Path, "/")
	for i, part := range parts {
		if len(part) == 36 && strings.Count(part, "-") == 4 {
			parts[i] = "{id}"
			continue
		}
		if _, err := strconv.Atoi(part); err == nil && part != "" {
			parts[i] = "{id}"
		}
	}
	return strings.Join(parts, "/")
}
