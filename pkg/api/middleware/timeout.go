package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/skylane/skylane/pkg/api/response"
)

// timeoutWriter hands the response to exactly one writer: the handler, or
// the 504 path once the deadline fires. Whichever claims it first wins and
// the other side's writes are dropped.
type timeoutWriter struct {
	mu       sync.Mutex
	w        http.ResponseWriter
	timedOut bool
}

func (tw *timeoutWriter) Header() http.Header {
	return tw.w.Header()
}

func (tw *timeoutWriter) WriteHeader(code int) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.timedOut {
		return
	}
	tw.w.WriteHeader(code)
}

func (tw *timeoutWriter) Write(b []byte) (int, error) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.timedOut {
		return len(b), nil
	}
	return tw.w.Write(b)
}

func (tw *timeoutWriter) claimTimeout() bool {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.timedOut {
		return false
	}
	tw.timedOut = true
	return true
}

// Timeout bounds how long a request may hold a connection. The handler's
// context is cancelled at the deadline, so an in-flight remote call aborts;
// a saga the handler already started is not cancelled and can be re-polled
// through the sagas resource.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			tw := &timeoutWriter{w: w}
			done := make(chan struct{})
			go func() {
				defer close(done)
				next.ServeHTTP(tw, r.WithContext(ctx))
			}()

			select {
			case <-done:
			case <-ctx.Done():
				if tw.claimTimeout() {
					response.Error(w,
						http.StatusGatewayTimeout,
						response.ErrCodeGatewayTimeout,
						"request deadline exceeded",
						GetRequestID(r.Context()),
					)
				}
			}
		})
	}
}
