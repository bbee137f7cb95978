package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/skylane/skylane/pkg/api/response"
)

func TestTimeoutFastHandlerUntouched(t *testing.T) {
	handler := Timeout(200 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"saga_id":"s-1"}`))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/deliveries", nil))

	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", rec.Code)
	}
	if rec.Body.String() != `{"saga_id":"s-1"}` {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestTimeoutSlowHandlerGets504(t *testing.T) {
	release := make(chan struct{})
	handlerDone := make(chan struct{})
	handler := Timeout(20 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer close(handlerDone)
		<-release
		// Late write after the deadline; must not corrupt the 504 body.
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("late"))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/sagas/s-1", nil))
	close(release)
	<-handlerDone

	if rec.Code != http.StatusGatewayTimeout {
		t.Fatalf("status = %d, want 504", rec.Code)
	}
	var resp response.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if resp.Error.Code != response.ErrCodeGatewayTimeout {
		t.Errorf("code = %q, want %q", resp.Error.Code, response.ErrCodeGatewayTimeout)
	}
}

func TestTimeoutCancelsHandlerContext(t *testing.T) {
	ctxErr := make(chan error, 1)
	handler := Timeout(20 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
		ctxErr <- r.Context().Err()
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/sagas", nil))

	select {
	case err := <-ctxErr:
		if err == nil {
			t.Error("handler context not cancelled")
		}
	case <-time.After(time.Second):
		t.Fatal("handler never observed cancellation")
	}
}
