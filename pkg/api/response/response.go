// Package response writes the coordinator's JSON bodies. Success payloads
// are the model structs as-is; every failure shares one envelope so callers
// can branch on a stable code. The code is either one of the transport codes
// below or a workflow failure code (account_not_found, saga_compensated, ...)
// passed through verbatim from the dispatch layer.
package response

import (
	"encoding/json"
	"net/http"
)

// Transport-level error codes. Workflow failure codes come from the dispatch
// layer and are written unchanged.
const (
	ErrCodeBadRequest         = "BAD_REQUEST"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeConflict           = "CONFLICT"
	ErrCodeRateLimited        = "RATE_LIMITED"
	ErrCodeInternalServer     = "INTERNAL_SERVER_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	ErrCodeGatewayTimeout     = "GATEWAY_TIMEOUT"
)

// ErrorResponse is the failure envelope.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the failure code, a human-readable message, and the
// request id so a client report can be matched to the server logs.
type ErrorDetail struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"request_id"`
}

// JSON writes data with the given status. A nil data writes the status line
// only. Once the header is out an encoding failure cannot be reported to the
// client, so the body is simply cut short.
func JSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(data)
}

// Error writes the failure envelope.
func Error(w http.ResponseWriter, statusCode int, code, message, requestID string) {
	JSON(w, statusCode, ErrorResponse{Error: ErrorDetail{
		Code:      code,
		Message:   message,
		RequestID: requestID,
	}})
}
