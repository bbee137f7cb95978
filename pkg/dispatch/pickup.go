package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/skylane/skylane/pkg/remote"
	"github.com/skylane/skylane/pkg/saga"
)

// pickupDefinition builds the pickup workflow: validate the delivery
// reference, then register the physical pickup. Neither step registers a
// compensation; a pickup cannot be undone by the coordinator.
func (s *Service) pickupDefinition() (*saga.Definition, error) {
	return saga.New(WorkflowPickup).
		Step(StepLoadDelivery, saga.Action(s.loadDeliveryForPickup)).
		Step(StepPickupPackage, saga.Action(s.pickupPackage)).
		WithDefaultStepTimeout(s.stepTimeout).
		WithStepRetry(s.stepRetry).
		WithCompensationRetry(s.compRetry).
		Build()
}

func (s *Service) loadDeliveryForPickup(ctx context.Context, stepCtx *saga.StepContext) (any, error) {
	var ref deliveryRef
	if err := stepCtx.DecodeInput(&ref); err != nil {
		return nil, err
	}
	delivery, err := s.ports.Deliveries.GetDelivery(stepCall(ctx, stepCtx), ref.DeliveryID)
	if err != nil {
		return nil, err
	}
	if delivery.Status != remote.DeliveryStatusTransportScheduled {
		return nil, &WorkflowError{
			Code:     CodeInvalidState,
			Workflow: WorkflowPickup,
			Step:     StepLoadDelivery,
			Err:      fmt.Errorf("delivery %s is %s, not eligible for pickup", delivery.ID, delivery.Status),
		}
	}
	return delivery.ID, nil
}

func (s *Service) pickupPackage(ctx context.Context, stepCtx *saga.StepContext) (any, error) {
	var ref deliveryRef
	if err := stepCtx.DecodeInput(&ref); err != nil {
		return nil, err
	}
	confirmation, err := s.ports.Deliveries.PickupPackage(stepCall(ctx, stepCtx), ref.DeliveryID)
	if err != nil {
		return nil, err
	}
	return confirmation, nil
}

// PickupPackage runs the pickup workflow and returns the confirmation with
// the leg coordinates.
func (s *Service) PickupPackage(ctx context.Context, sagaID, deliveryID string) (*remote.PickupConfirmation, error) {
	if deliveryID == "" {
		return nil, &WorkflowError{
			Code:     CodeDeliveryNotFound,
			Workflow: WorkflowPickup,
			Err:      fmt.Errorf("delivery id is required"),
		}
	}
	if sagaID == "" {
		sagaID = uuid.NewString()
	}

	wfCtx, cancel := s.workflowContext(ctx)
	defer cancel()

	run, err := s.orch.ExecuteWithID(wfCtx, s.pickup, sagaID, deliveryRef{DeliveryID: deliveryID})
	if err != nil {
		wfErr := s.failure(WorkflowPickup, run, err)
		s.logger.Warn("pickup workflow failed",
			slog.String("saga_id", sagaID),
			slog.String("delivery_id", deliveryID),
			slog.String("code", string(wfErr.Code)))
		return nil, wfErr
	}

	confirmation, err := stepResult[*remote.PickupConfirmation](run.StepResults, StepPickupPackage)
	if err != nil {
		return nil, &WorkflowError{Code: CodeSagaFatal, Workflow: WorkflowPickup, Err: err}
	}

	s.logger.Info("package picked up",
		slog.String("saga_id", run.ID),
		slog.String("delivery_id", deliveryID))
	s.events.Publish(ctx, Event{
		Type:       EventDeliveryPickedUp,
		SagaID:     run.ID,
		Workflow:   WorkflowPickup,
		DeliveryID: deliveryID,
		Payload:    confirmation,
		Timestamp:  time.Now().UTC(),
	})
	return confirmation, nil
}
