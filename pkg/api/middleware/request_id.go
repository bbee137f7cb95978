package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// contextKey keeps middleware context values from colliding with other
// packages.
type contextKey string

const requestIDKey contextKey = "request_id"

// requestIDHeader is honored inbound so a gateway-assigned id survives the
// hop, and always set outbound so clients can quote it in reports.
const requestIDHeader = "X-Request-ID"

// RequestID tags every request with an id. The same id ends up in the access
// log, the error envelope, and the saga log fields, which is what ties a
// client report to the workflow that served it.
func RequestID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(requestIDHeader)
			if id == "" {
				id = uuid.New().String()
			}

			w.Header().Set(requestIDHeader, id)
			ctx := context.WithValue(r.Context(), requestIDKey, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetRequestID returns the id RequestID stored on the context, or "" when
// the request skipped the middleware.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
