package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/skylane/skylane/pkg/api/middleware"
	"github.com/skylane/skylane/pkg/api/models"
	"github.com/skylane/skylane/pkg/api/response"
	"github.com/skylane/skylane/pkg/logger"
	"github.com/skylane/skylane/pkg/saga"
)

const defaultRunListLimit = 50

// RunsHandler exposes saga run records over HTTP.
type RunsHandler struct {
	orch *saga.Orchestrator
	log  logger.Logger
}

// NewRunsHandler creates a runs handler.
func NewRunsHandler(orch *saga.Orchestrator, log logger.Logger) *RunsHandler {
	return &RunsHandler{
		orch: orch,
		log:  log,
	}
}

// List handles GET /api/v1/sagas.
func (h *RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	filter, err := listFilterFromQuery(r)
	if err != nil {
		response.Error(w, http.StatusBadRequest, response.ErrCodeBadRequest, err.Error(), requestID)
		return
	}

	runs, err := h.orch.ListRuns(r.Context(), filter)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, response.ErrCodeInternalServer,
			"Failed to list saga runs", requestID)
		return
	}

	resp := models.RunListResponse{
		Runs:   make([]models.RunResponse, 0, len(runs)),
		Count:  len(runs),
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}
	for _, run := range runs {
		resp.Runs = append(resp.Runs, models.RunFromSaga(run))
	}
	response.JSON(w, http.StatusOK, resp)
}

// Get handles GET /api/v1/sagas/{id}.
func (h *RunsHandler) Get(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	sagaID := chi.URLParam(r, "id")

	run, err := h.orch.GetRun(r.Context(), sagaID)
	if err != nil {
		if errors.Is(err, saga.ErrRunNotFound) {
			response.Error(w, http.StatusNotFound, response.ErrCodeNotFound,
				"Saga run not found: "+sagaID, requestID)
			return
		}
		response.Error(w, http.StatusInternalServerError, response.ErrCodeInternalServer,
			"Failed to load saga run", requestID)
		return
	}

	response.JSON(w, http.StatusOK, models.RunFromSaga(run))
}

// History handles GET /api/v1/sagas/{id}/history.
func (h *RunsHandler) History(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	sagaID := chi.URLParam(r, "id")

	if _, err := h.orch.GetRun(r.Context(), sagaID); err != nil {
		if errors.Is(err, saga.ErrRunNotFound) {
			response.Error(w, http.StatusNotFound, response.ErrCodeNotFound,
				"Saga run not found: "+sagaID, requestID)
			return
		}
		response.Error(w, http.StatusInternalServerError, response.ErrCodeInternalServer,
			"Failed to load saga run", requestID)
		return
	}

	entries, err := h.orch.History(r.Context(), sagaID)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, response.ErrCodeInternalServer,
			"Failed to load saga history", requestID)
		return
	}

	response.JSON(w, http.StatusOK, models.HistoryFromWAL(sagaID, entries))
}

// Delete handles DELETE /api/v1/sagas/{id}. Only terminal runs may be deleted.
func (h *RunsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	sagaID := chi.URLParam(r, "id")

	run, err := h.orch.GetRun(r.Context(), sagaID)
	if err != nil {
		if errors.Is(err, saga.ErrRunNotFound) {
			response.Error(w, http.StatusNotFound, response.ErrCodeNotFound,
				"Saga run not found: "+sagaID, requestID)
			return
		}
		response.Error(w, http.StatusInternalServerError, response.ErrCodeInternalServer,
			"Failed to load saga run", requestID)
		return
	}
	if !run.State.IsTerminal() {
		response.Error(w, http.StatusConflict, response.ErrCodeConflict,
			"Saga run is still in progress: "+sagaID, requestID)
		return
	}

	if err := h.orch.DeleteRun(r.Context(), sagaID); err != nil {
		response.Error(w, http.StatusInternalServerError, response.ErrCodeInternalServer,
			"Failed to delete saga run", requestID)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func listFilterFromQuery(r *http.Request) (saga.ListFilter, error) {
	filter := saga.ListFilter{
		Workflow: r.URL.Query().Get("workflow"),
		Limit:    defaultRunListLimit,
	}

	if raw := r.URL.Query().Get("state"); raw != "" {
		state, err := saga.ParseState(raw)
		if err != nil {
			return filter, err
		}
		filter.State = &state
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return filter, errors.New("limit must be a non-negative integer")
		}
		filter.Limit = limit
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return filter, errors.New("offset must be a non-negative integer")
		}
		filter.Offset = offset
	}

	return filter, nil
}
