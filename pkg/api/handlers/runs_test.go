package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skylane/skylane/pkg/api/models"
	"github.com/skylane/skylane/pkg/api/response"
	"github.com/skylane/skylane/pkg/saga"
)

func newRunsRouter(t *testing.T) (chi.Router, *saga.Orchestrator, *saga.MemoryStore, *saga.MemoryWAL) {
	t.Helper()

	store := saga.NewMemoryStore()
	wal := saga.NewMemoryWAL()
	orch := saga.NewOrchestrator(saga.WithStore(store), saga.WithWAL(wal))
	t.Cleanup(func() { orch.Close() })

	handler := NewRunsHandler(orch, testWSLogger())
	r := chi.NewRouter()
	r.Get("/sagas", handler.List)
	r.Get("/sagas/{id}", handler.Get)
	r.Get("/sagas/{id}/history", handler.History)
	r.Delete("/sagas/{id}", handler.Delete)
	return r, orch, store, wal
}

func seedRun(t *testing.T, store *saga.MemoryStore, id, workflow string, state saga.State) {
	t.Helper()

	run := saga.NewRun(id, workflow)
	run.State = state
	require.NoError(t, store.Save(context.Background(), run))
}

func TestRunsHandler_List(t *testing.T) {
	router, _, store, _ := newRunsRouter(t)
	seedRun(t, store, "saga-1", "schedule-delivery", saga.StateSucceeded)
	seedRun(t, store, "saga-2", "pickup-package", saga.StateRunning)
	seedRun(t, store, "saga-3", "schedule-delivery", saga.StateCompensated)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sagas", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.RunListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Count)
	assert.Len(t, resp.Runs, 3)
}

func TestRunsHandler_ListFiltered(t *testing.T) {
	router, _, store, _ := newRunsRouter(t)
	seedRun(t, store, "saga-1", "schedule-delivery", saga.StateSucceeded)
	seedRun(t, store, "saga-2", "pickup-package", saga.StateRunning)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sagas?workflow=pickup-package&state=running", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.RunListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "saga-2", resp.Runs[0].ID)
	assert.Equal(t, "running", resp.Runs[0].State)
}

func TestRunsHandler_ListBadQuery(t *testing.T) {
	router, _, _, _ := newRunsRouter(t)

	for _, path := range []string{"/sagas?state=bogus", "/sagas?limit=-1", "/sagas?offset=x"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, "path %s", path)
	}
}

func TestRunsHandler_Get(t *testing.T) {
	router, _, store, _ := newRunsRouter(t)
	seedRun(t, store, "saga-1", "schedule-delivery", saga.StateSucceeded)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sagas/saga-1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.RunResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "saga-1", resp.ID)
	assert.Equal(t, "schedule-delivery", resp.Workflow)
	assert.Equal(t, "succeeded", resp.State)
}

func TestRunsHandler_GetNotFound(t *testing.T) {
	router, _, _, _ := newRunsRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sagas/missing", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	var resp response.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, response.ErrCodeNotFound, resp.Error.Code)
}

func TestRunsHandler_History(t *testing.T) {
	router, _, store, wal := newRunsRouter(t)
	seedRun(t, store, "saga-1", "schedule-delivery", saga.StateSucceeded)

	ctx := context.Background()
	for _, entry := range []saga.WALEntry{
		{SagaID: "saga-1", Type: saga.WALEntryTypeStepStarted, Step: "verify-account"},
		{SagaID: "saga-1", Type: saga.WALEntryTypeStepCompleted, Step: "verify-account"},
	} {
		_, err := wal.Append(ctx, entry)
		require.NoError(t, err)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sagas/saga-1/history", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.HistoryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "saga-1", resp.SagaID)
	require.Len(t, resp.Entries, 2)
	assert.Equal(t, uint64(1), resp.Entries[0].Sequence)
	assert.Equal(t, "step_started", resp.Entries[0].Type)
	assert.Equal(t, "verify-account", resp.Entries[0].Step)
}

func TestRunsHandler_HistoryNotFound(t *testing.T) {
	router, _, _, _ := newRunsRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sagas/missing/history", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRunsHandler_Delete(t *testing.T) {
	router, orch, store, _ := newRunsRouter(t)
	seedRun(t, store, "saga-1", "schedule-delivery", saga.StateSucceeded)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/sagas/saga-1", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)

	_, err := orch.GetRun(context.Background(), "saga-1")
	assert.ErrorIs(t, err, saga.ErrRunNotFound)
}

func TestRunsHandler_DeleteInProgress(t *testing.T) {
	router, _, store, _ := newRunsRouter(t)
	seedRun(t, store, "saga-1", "pickup-package", saga.StateRunning)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/sagas/saga-1", nil))
	require.Equal(t, http.StatusConflict, rec.Code)

	var resp response.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, response.ErrCodeConflict, resp.Error.Code)
}
