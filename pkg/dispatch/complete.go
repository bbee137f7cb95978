package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/skylane/skylane/pkg/alert"
	"github.com/skylane/skylane/pkg/remote"
	"github.com/skylane/skylane/pkg/saga"
)

// completeDefinition builds the complete workflow. Marking the delivery
// completed is terminal: once it commits there is no rollback, so the step
// registers no compensation.
func (s *Service) completeDefinition() (*saga.Definition, error) {
	return saga.New(WorkflowComplete).
		Step(StepCompleteDelivery, saga.Action(s.completeDelivery)).
		WithDefaultStepTimeout(s.stepTimeout).
		WithStepRetry(s.stepRetry).
		WithCompensationRetry(s.compRetry).
		Build()
}

func (s *Service) completeDelivery(ctx context.Context, stepCtx *saga.StepContext) (any, error) {
	var ref deliveryRef
	if err := stepCtx.DecodeInput(&ref); err != nil {
		return nil, err
	}
	delivery, err := s.ports.Deliveries.CompleteDelivery(stepCall(ctx, stepCtx), ref.DeliveryID)
	if err != nil {
		return nil, err
	}
	return delivery, nil
}

// CompleteDelivery runs the complete workflow. The delivery is marked
// completed first; the drone release that follows runs as an independent
// retried call because the completion must not be rolled back when release
// fails. An exhausted release raises a DroneReleaseFailed alert and the
// workflow still reports success.
func (s *Service) CompleteDelivery(ctx context.Context, sagaID, deliveryID string) (*CompleteResult, error) {
	if deliveryID == "" {
		return nil, &WorkflowError{
			Code:     CodeDeliveryNotFound,
			Workflow: WorkflowComplete,
			Err:      fmt.Errorf("delivery id is required"),
		}
	}
	if sagaID == "" {
		sagaID = uuid.NewString()
	}

	wfCtx, cancel := s.workflowContext(ctx)
	defer cancel()

	run, err := s.orch.ExecuteWithID(wfCtx, s.complete, sagaID, deliveryRef{DeliveryID: deliveryID})
	if err != nil {
		wfErr := s.failure(WorkflowComplete, run, err)
		s.logger.Warn("complete workflow failed",
			slog.String("saga_id", sagaID),
			slog.String("delivery_id", deliveryID),
			slog.String("code", string(wfErr.Code)))
		return nil, wfErr
	}

	delivery, err := stepResult[*remote.Delivery](run.StepResults, StepCompleteDelivery)
	if err != nil {
		return nil, &WorkflowError{Code: CodeSagaFatal, Workflow: WorkflowComplete, Err: err}
	}

	result := &CompleteResult{
		SagaID:     run.ID,
		DeliveryID: delivery.ID,
		DroneID:    delivery.DroneID,
	}
	result.DroneReleased = s.releaseDrone(ctx, run, delivery)

	s.logger.Info("delivery completed",
		slog.String("saga_id", run.ID),
		slog.String("delivery_id", delivery.ID),
		slog.Bool("drone_released", result.DroneReleased))
	s.events.Publish(ctx, Event{
		Type:       EventDeliveryCompleted,
		SagaID:     run.ID,
		Workflow:   WorkflowComplete,
		DeliveryID: delivery.ID,
		Payload:    result,
		Timestamp:  time.Now().UTC(),
	})
	return result, nil
}

// releaseDrone idles the delivery's drone with its own retry budget.
// Idling an already idle drone is a remote no-op, so retries are safe.
func (s *Service) releaseDrone(ctx context.Context, run *saga.Run, delivery *remote.Delivery) bool {
	releaseCtx := remote.WithIdempotencyKey(context.WithoutCancel(ctx),
		saga.StepKey(run.ID, "release-drone"))

	droneID := delivery.DroneID
	if droneID == "" {
		// The completion response may omit the drone; the delivery record
		// is the fallback source and gets the same retry budget.
		var loaded *remote.Delivery
		err := s.droneRetryDo(func() error {
			var inner error
			loaded, inner = s.ports.Deliveries.GetDelivery(releaseCtx, delivery.ID)
			return inner
		})
		if err != nil {
			s.droneReleaseFailed(releaseCtx, run, delivery.ID, "", err)
			return false
		}
		if loaded.DroneID == "" {
			// No drone was ever assigned; nothing to release.
			return true
		}
		droneID = loaded.DroneID
	}

	if err := s.droneRetryDo(func() error {
		return s.ports.Drones.IdleDrone(releaseCtx, droneID)
	}); err != nil {
		s.droneReleaseFailed(releaseCtx, run, delivery.ID, droneID, err)
		return false
	}
	return true
}

// droneRetryDo runs fn under the drone release retry policy, retrying only
// transient failures.
func (s *Service) droneRetryDo(fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < s.droneRetry.MaxAttempts; attempt++ {
		if lastErr = fn(); lastErr == nil {
			return nil
		}
		if !remote.IsTransient(lastErr) {
			return lastErr
		}
		if attempt < s.droneRetry.MaxAttempts-1 {
			time.Sleep(s.droneRetry.Backoff(attempt))
		}
	}
	return lastErr
}

func (s *Service) droneReleaseFailed(ctx context.Context, run *saga.Run, deliveryID, droneID string, cause error) {
	s.logger.Error("drone release failed after retries",
		slog.String("saga_id", run.ID),
		slog.String("delivery_id", deliveryID),
		slog.String("drone_id", droneID),
		slog.String("error", cause.Error()))
	details := map[string]any{
		"delivery_id": deliveryID,
		"error":       cause.Error(),
	}
	if droneID != "" {
		details["drone_id"] = droneID
	}
	s.alerts.Notify(ctx, alert.Alert{
		Type:     alert.TypeDroneReleaseFailed,
		Severity: alert.SeverityWarning,
		SagaID:   run.ID,
		Workflow: WorkflowComplete,
		Message:  "delivery completed but its drone could not be released",
		Details:  details,
	})
}
