package handlers

import (
	"net/http"
	"time"

	"github.com/skylane/skylane/pkg/api/response"
	"github.com/skylane/skylane/pkg/saga"
	"github.com/skylane/skylane/pkg/version"
)

// HealthHandler handles health check endpoints. Readiness is tied to the run
// store: a coordinator that cannot read its runs cannot make progress.
type HealthHandler struct {
	store     saga.Store
	startedAt time.Time
}

// NewHealthHandler creates a health handler.
func NewHealthHandler(store saga.Store) *HealthHandler {
	return &HealthHandler{
		store:     store,
		startedAt: time.Now().UTC(),
	}
}

// Health handles the /health endpoint (liveness probe).
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Ready handles the /ready endpoint (readiness probe).
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if err := h.storeReady(r); err != nil {
		response.JSON(w, http.StatusServiceUnavailable, map[string]any{
			"ready": false,
			"error": err.Error(),
		})
		return
	}
	response.JSON(w, http.StatusOK, map[string]bool{
		"ready": true,
	})
}

// Status handles the /status endpoint (detailed status).
func (h *HealthHandler) Status(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"status":  "ok",
		"version": version.Info(),
		"uptime":  time.Since(h.startedAt).Round(time.Second).String(),
	}

	if counts, err := h.stateCounts(r); err == nil {
		status["sagas"] = counts
	}

	response.JSON(w, http.StatusOK, status)
}

func (h *HealthHandler) storeReady(r *http.Request) error {
	if h.store == nil {
		return nil
	}
	_, err := h.store.List(r.Context(), saga.ListFilter{Limit: 1})
	return err
}

func (h *HealthHandler) stateCounts(r *http.Request) (map[string]int, error) {
	counts := make(map[string]int)
	if h.store == nil {
		return counts, nil
	}
	for _, state := range []saga.State{
		saga.StateRunning,
		saga.StateCompensating,
		saga.StateSucceeded,
		saga.StateCompensated,
		saga.StateFailed,
	} {
		runs, err := h.store.List(r.Context(), saga.ListFilter{State: &state})
		if err != nil {
			return nil, err
		}
		counts[state.String()] = len(runs)
	}
	return counts, nil
}
