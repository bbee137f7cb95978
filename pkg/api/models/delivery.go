// Package models defines API request and response shapes.
package models

import (
	"time"

	"github.com/skylane/skylane/pkg/remote"
	"github.com/skylane/skylane/pkg/saga"
)

// ScheduleDeliveryRequest is the body of POST /api/v1/deliveries. SagaID is
// the caller's idempotency token; leaving it empty lets the server mint one.
type ScheduleDeliveryRequest struct {
	SagaID   string  `json:"saga_id,omitempty"`
	Username string  `json:"username"`
	Weight   float64 `json:"weight"`
	Height   float64 `json:"height"`
	Width    float64 `json:"width"`
}

// ScheduleDeliveryResponse is returned when a delivery is scheduled.
type ScheduleDeliveryResponse struct {
	SagaID     string            `json:"saga_id"`
	DeliveryID string            `json:"delivery_id"`
	PackageID  string            `json:"package_id"`
	Transport  *remote.Transport `json:"transport,omitempty"`
}

// DeliveryResponse is the read view of one delivery record.
type DeliveryResponse struct {
	ID        string `json:"id"`
	AccountID string `json:"account_id"`
	PackageID string `json:"package_id,omitempty"`
	DroneID   string `json:"drone_id,omitempty"`
	Status    string `json:"status"`
}

// DeliveryFromRemote converts a remote delivery into its API representation.
func DeliveryFromRemote(d *remote.Delivery) DeliveryResponse {
	return DeliveryResponse{
		ID:        d.ID,
		AccountID: d.AccountID,
		PackageID: d.PackageID,
		DroneID:   d.DroneID,
		Status:    string(d.Status),
	}
}

// PickupRequest is the body of POST /api/v1/deliveries/{id}/pickup.
type PickupRequest struct {
	SagaID string `json:"saga_id,omitempty"`
}

// PickupResponse is returned when a package pickup is confirmed.
type PickupResponse struct {
	DeliveryID string            `json:"delivery_id"`
	Status     string            `json:"status"`
	Pickup     remote.Coordinate `json:"pickup"`
	Dropoff    remote.Coordinate `json:"dropoff"`
}

// CompleteRequest is the body of POST /api/v1/deliveries/{id}/complete.
type CompleteRequest struct {
	SagaID string `json:"saga_id,omitempty"`
}

// CompleteResponse is returned when a delivery is completed.
type CompleteResponse struct {
	SagaID        string `json:"saga_id"`
	DeliveryID    string `json:"delivery_id"`
	DroneID       string `json:"drone_id,omitempty"`
	DroneReleased bool   `json:"drone_released"`
}

// RunResponse is the detailed view of one saga run.
type RunResponse struct {
	ID                string     `json:"id"`
	Workflow          string     `json:"workflow"`
	State             string     `json:"state"`
	CompletedSteps    []string   `json:"completed_steps,omitempty"`
	CompensatedSteps  []string   `json:"compensated_steps,omitempty"`
	FailedStep        string     `json:"failed_step,omitempty"`
	FailureReason     string     `json:"failure_reason,omitempty"`
	CompensationError string     `json:"compensation_error,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
	StartedAt         *time.Time `json:"started_at,omitempty"`
	FinishedAt        *time.Time `json:"finished_at,omitempty"`
}

// RunFromSaga converts a saga run into its API representation.
func RunFromSaga(run *saga.Run) RunResponse {
	return RunResponse{
		ID:                run.ID,
		Workflow:          run.Workflow,
		State:             run.State.String(),
		CompletedSteps:    run.CompletedSteps,
		CompensatedSteps:  run.CompensatedSteps,
		FailedStep:        run.FailedStep,
		FailureReason:     run.FailureReason,
		CompensationError: run.CompensationError,
		CreatedAt:         run.CreatedAt,
		UpdatedAt:         run.UpdatedAt,
		StartedAt:         run.StartedAt,
		FinishedAt:        run.FinishedAt,
	}
}

// RunListResponse is the paginated listing of saga runs.
type RunListResponse struct {
	Runs   []RunResponse `json:"runs"`
	Count  int           `json:"count"`
	Limit  int           `json:"limit,omitempty"`
	Offset int           `json:"offset,omitempty"`
}

// HistoryEntry is one recorded saga progress event.
type HistoryEntry struct {
	Sequence  uint64    `json:"sequence"`
	Step      string    `json:"step,omitempty"`
	Type      string    `json:"type"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// HistoryResponse is the recorded progress log of one saga run.
type HistoryResponse struct {
	SagaID  string         `json:"saga_id"`
	Entries []HistoryEntry `json:"entries"`
}

// HistoryFromWAL converts recorded saga progress into its API representation.
func HistoryFromWAL(sagaID string, entries []saga.WALEntry) HistoryResponse {
	resp := HistoryResponse{
		SagaID:  sagaID,
		Entries: make([]HistoryEntry, 0, len(entries)),
	}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, HistoryEntry{
			Sequence:  e.Sequence,
			Step:      e.Step,
			Type:      string(e.Type),
			Detail:    e.Detail,
			Timestamp: e.Timestamp,
		})
	}
	return resp
}
