package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/skylane/skylane/pkg/api/response"
	"github.com/skylane/skylane/pkg/logger"
)

// Recovery converts a handler panic into a 500 envelope. The panic value and
// stack go to the log only; a saga that was already started by the handler
// keeps running in the orchestrator, so the client can re-poll the saga
// resource after an opaque 500.
func Recovery(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				v := recover()
				if v == nil {
					return
				}
				if v == http.ErrAbortHandler {
					// net/http uses this sentinel to abort the response.
					panic(v)
				}

				log.Error("panic in handler",
					"panic", v,
					"method", r.Method,
					"path", r.URL.Path,
					"request_id", GetRequestID(r.Context()),
					"stack", string(debug.Stack()),
				)

				response.Error(w,
					http.StatusInternalServerError,
					response.ErrCodeInternalServer,
					"internal server error",
					GetRequestID(r.Context()),
				)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
