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

// scheduleDefinition builds the four-step schedule workflow. Account
// verification commits nothing and is non-compensable; the three creating
// steps each register their undo.
func (s *Service) scheduleDefinition() (*saga.Definition, error) {
	return saga.New(WorkflowSchedule).
		Step(StepVerifyAccount, saga.Action(s.verifyAccount)).
		Step(StepCreateDelivery, saga.Action(s.createDelivery)).
		Step(StepCreatePackage, saga.Action(s.createPackage)).
		Step(StepScheduleTransport, saga.Action(s.scheduleTransport)).
		Compensate(StepCreateDelivery, s.cancelDelivery).
		Compensate(StepCreatePackage, s.deletePackage).
		Compensate(StepScheduleTransport, s.cancelTransport).
		WithDefaultStepTimeout(s.stepTimeout).
		WithStepRetry(s.stepRetry).
		WithCompensationRetry(s.compRetry).
		Build()
}

func (s *Service) verifyAccount(ctx context.Context, stepCtx *saga.StepContext) (any, error) {
	var req DeliveryRequest
	if err := stepCtx.DecodeInput(&req); err != nil {
		return nil, err
	}
	account, err := s.ports.Accounts.GetAccount(stepCall(ctx, stepCtx), req.Username)
	if err != nil {
		return nil, err
	}
	if !account.Active {
		return nil, remote.Rejected("account", "GetAccount", fmt.Errorf("account %s is inactive", req.Username))
	}
	return account.ID, nil
}

func (s *Service) createDelivery(ctx context.Context, stepCtx *saga.StepContext) (any, error) {
	accountID, err := stepResult[string](stepCtx.Results, StepVerifyAccount)
	if err != nil {
		return nil, err
	}
	delivery, err := s.ports.Deliveries.CreateDelivery(stepCall(ctx, stepCtx), remote.CreateDeliveryRequest{
		AccountID: accountID,
	})
	if err != nil {
		return nil, err
	}
	return delivery.ID, nil
}

func (s *Service) createPackage(ctx context.Context, stepCtx *saga.StepContext) (any, error) {
	var req DeliveryRequest
	if err := stepCtx.DecodeInput(&req); err != nil {
		return nil, err
	}
	deliveryID, err := stepResult[string](stepCtx.Results, StepCreateDelivery)
	if err != nil {
		return nil, err
	}
	pkg, err := s.ports.Packages.CreatePackage(stepCall(ctx, stepCtx), remote.CreatePackageRequest{
		DeliveryID: deliveryID,
		Weight:     req.Weight,
		Height:     req.Height,
		Width:      req.Width,
	})
	if err != nil {
		return nil, err
	}
	return pkg.ID, nil
}

func (s *Service) scheduleTransport(ctx context.Context, stepCtx *saga.StepContext) (any, error) {
	deliveryID, err := stepResult[string](stepCtx.Results, StepCreateDelivery)
	if err != nil {
		return nil, err
	}
	packageID, err := stepResult[string](stepCtx.Results, StepCreatePackage)
	if err != nil {
		return nil, err
	}
	transport, err := s.ports.Transports.ScheduleTransport(stepCall(ctx, stepCtx), remote.ScheduleTransportRequest{
		DeliveryID: deliveryID,
		PackageID:  packageID,
	})
	if err != nil {
		return nil, err
	}
	return transport, nil
}

func (s *Service) cancelDelivery(ctx context.Context, compCtx *saga.CompensationContext) error {
	deliveryID, err := stepResult[string](compCtx.Results, StepCreateDelivery)
	if err != nil {
		return err
	}
	return s.ports.Deliveries.CancelDelivery(undoCall(ctx, compCtx), deliveryID)
}

func (s *Service) deletePackage(ctx context.Context, compCtx *saga.CompensationContext) error {
	packageID, err := stepResult[string](compCtx.Results, StepCreatePackage)
	if err != nil {
		return err
	}
	return s.ports.Packages.DeletePackage(undoCall(ctx, compCtx), packageID)
}

func (s *Service) cancelTransport(ctx context.Context, compCtx *saga.CompensationContext) error {
	transport, err := stepResult[*remote.Transport](compCtx.Results, StepScheduleTransport)
	if err != nil {
		return err
	}
	return s.ports.Transports.CancelTransport(undoCall(ctx, compCtx), transport.ID)
}

// ScheduleDelivery runs the schedule workflow. sagaID is the caller's
// idempotency token; an empty one gets a fresh id. Re-invoking with a sagaID
// that already finished returns the recorded outcome without touching any
// remote service.
func (s *Service) ScheduleDelivery(ctx context.Context, sagaID string, req DeliveryRequest) (*ScheduleResult, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, &WorkflowError{Code: CodeDeliveryRejected, Workflow: WorkflowSchedule, Err: err}
	}
	if sagaID == "" {
		sagaID = uuid.NewString()
	}

	wfCtx, cancel := s.workflowContext(ctx)
	defer cancel()

	run, err := s.orch.ExecuteWithID(wfCtx, s.schedule, sagaID, req)
	if err != nil {
		wfErr := s.failure(WorkflowSchedule, run, err)
		s.logger.Warn("schedule workflow failed",
			slog.String("saga_id", sagaID),
			slog.String("code", string(wfErr.Code)),
			slog.String("step", wfErr.Step),
			slog.Bool("compensated", wfErr.Compensated))
		if wfErr.Compensated {
			s.events.Publish(ctx, Event{
				Type:      EventSagaCompensated,
				SagaID:    sagaID,
				Workflow:  WorkflowSchedule,
				Timestamp: time.Now().UTC(),
			})
		}
		return nil, wfErr
	}

	result, err := scheduleResultFromRun(run)
	if err != nil {
		return nil, &WorkflowError{Code: CodeSagaFatal, Workflow: WorkflowSchedule, Err: err}
	}

	s.logger.Info("delivery scheduled",
		slog.String("saga_id", run.ID),
		slog.String("delivery_id", result.DeliveryID),
		slog.String("package_id", result.PackageID))
	s.events.Publish(ctx, Event{
		Type:       EventDeliveryScheduled,
		SagaID:     run.ID,
		Workflow:   WorkflowSchedule,
		DeliveryID: result.DeliveryID,
		Payload:    result,
		Timestamp:  time.Now().UTC(),
	})
	return result, nil
}

func scheduleResultFromRun(run *saga.Run) (*ScheduleResult, error) {
	deliveryID, err := stepResult[string](run.StepResults, StepCreateDelivery)
	if err != nil {
		return nil, err
	}
	packageID, err := stepResult[string](run.StepResults, StepCreatePackage)
	if err != nil {
		return nil, err
	}
	transport, err := stepResult[*remote.Transport](run.StepResults, StepScheduleTransport)
	if err != nil {
		return nil, err
	}
	return &ScheduleResult{
		SagaID:     run.ID,
		DeliveryID: deliveryID,
		PackageID:  packageID,
		Transport:  transport,
	}, nil
}
