package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/skylane/skylane/pkg/remote"
)

// Workflow kinds registered with the saga engine.
const (
	WorkflowSchedule = "schedule-delivery"
	WorkflowPickup   = "pickup-package"
	WorkflowComplete = "complete-delivery"
)

// Step names of the schedule workflow, in execution order.
const (
	StepVerifyAccount     = "verify-account"
	StepCreateDelivery    = "create-delivery"
	StepCreatePackage     = "create-package"
	StepScheduleTransport = "schedule-transport"
)

// Step names of the pickup and complete workflows.
const (
	StepLoadDelivery     = "load-delivery"
	StepPickupPackage    = "pickup-package"
	StepCompleteDelivery = "complete-delivery"
)

// DeliveryRequest is the input of the schedule workflow. Immutable once
// submitted.
type DeliveryRequest struct {
	Username string  `json:"username" validate:"required"`
	Weight   float64 `json:"weight" validate:"required,gt=0"`
	Height   float64 `json:"height" validate:"required,gt=0"`
	Width    float64 `json:"width" validate:"required,gt=0"`
}

// deliveryRef is the persisted saga input of the pickup and complete
// workflows.
type deliveryRef struct {
	DeliveryID string `json:"delivery_id"`
}

// ScheduleResult is the outcome of a successful schedule workflow.
type ScheduleResult struct {
	SagaID     string            `json:"saga_id"`
	DeliveryID string            `json:"delivery_id"`
	PackageID  string            `json:"package_id"`
	Transport  *remote.Transport `json:"transport"`
}

// CompleteResult is the outcome of a successful complete workflow. A false
// DroneReleased means a DroneReleaseFailed alert was raised; the delivery
// itself is still completed.
type CompleteResult struct {
	SagaID        string `json:"saga_id"`
	DeliveryID    string `json:"delivery_id"`
	DroneID       string `json:"drone_id,omitempty"`
	DroneReleased bool   `json:"drone_released"`
}

// Event is a workflow lifecycle notification for interested consumers.
type Event struct {
	Type       string    `json:"type"`
	SagaID     string    `json:"saga_id"`
	Workflow   string    `json:"workflow"`
	DeliveryID string    `json:"delivery_id,omitempty"`
	Payload    any       `json:"payload,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Event types published by the facade.
const (
	EventDeliveryScheduled = "delivery.scheduled"
	EventDeliveryPickedUp  = "delivery.picked_up"
	EventDeliveryCompleted = "delivery.completed"
	EventSagaCompensated   = "saga.compensated"
	EventAlert             = "saga.alert"
)

// EventPublisher receives workflow lifecycle events.
type EventPublisher interface {
	Publish(ctx context.Context, event Event)
}

// stepResult re-materializes a recorded step result. Live runs hold the
// typed value; runs reloaded from the store hold its JSON-decoded form, so
// anything that is not already a T goes through a JSON round trip.
func stepResult[T any](results map[string]any, step string) (T, error) {
	var zero T
	raw, ok := results[step]
	if !ok {
		return zero, fmt.Errorf("step %s has no recorded result", step)
	}
	if typed, ok := raw.(T); ok {
		return typed, nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return zero, fmt.Errorf("re-encode result of step %s: %w", step, err)
	}
	var typed T
	if err := json.Unmarshal(data, &typed); err != nil {
		return zero, fmt.Errorf("decode result of step %s: %w", step, err)
	}
	return typed, nil
}
