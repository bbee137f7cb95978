// Package dispatch is the externally callable facade of the coordinator. It
// exposes one operation per workflow (schedule, pickup, complete), wires
// each into a saga definition, and translates saga outcomes into stable
// workflow error codes.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/skylane/skylane/pkg/alert"
	"github.com/skylane/skylane/pkg/remote"
	"github.com/skylane/skylane/pkg/saga"
)

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, Event) {}

// ServiceOption configures the facade.
type ServiceOption func(s *Service)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithAlertNotifier sets the reconciliation alert sink.
func WithAlertNotifier(n alert.Notifier) ServiceOption {
	return func(s *Service) {
		if n != nil {
			s.alerts = n
		}
	}
}

// WithEventPublisher sets the lifecycle event sink.
func WithEventPublisher(p EventPublisher) ServiceOption {
	return func(s *Service) {
		if p != nil {
			s.events = p
		}
	}
}

// WithStepRetry overrides the retry policy applied to forward steps of all
// workflows.
func WithStepRetry(policy saga.RetryPolicy) ServiceOption {
	return func(s *Service) { s.stepRetry = policy }
}

// WithCompensationRetry overrides the retry policy applied to compensations.
func WithCompensationRetry(policy saga.RetryPolicy) ServiceOption {
	return func(s *Service) { s.compRetry = policy }
}

// WithDroneReleaseRetry overrides the retry policy of the independent drone
// release that follows a completed delivery.
func WithDroneReleaseRetry(policy saga.RetryPolicy) ServiceOption {
	return func(s *Service) { s.droneRetry = policy }
}

// WithStepTimeout overrides the per-call timeout applied to remote steps.
func WithStepTimeout(timeout time.Duration) ServiceOption {
	return func(s *Service) {
		if timeout > 0 {
			s.stepTimeout = timeout
		}
	}
}

// WithWorkflowTimeout bounds a whole workflow execution, compensation
// included. Zero leaves workflows without a deadline.
func WithWorkflowTimeout(timeout time.Duration) ServiceOption {
	return func(s *Service) { s.workflowTimeout = timeout }
}

// Service coordinates the three delivery workflows over the remote ports.
type Service struct {
	ports  remote.Services
	orch   *saga.Orchestrator
	alerts alert.Notifier
	events EventPublisher
	logger *slog.Logger

	validate        *validator.Validate
	stepRetry       saga.RetryPolicy
	compRetry       saga.RetryPolicy
	droneRetry      saga.RetryPolicy
	stepTimeout     time.Duration
	workflowTimeout time.Duration

	schedule *saga.Definition
	pickup   *saga.Definition
	complete *saga.Definition
}

// NewService builds the facade and registers the workflow definitions with
// the orchestrator's vocabulary.
func NewService(ports remote.Services, orch *saga.Orchestrator, opts ...ServiceOption) (*Service, error) {
	if ports.Accounts == nil || ports.Deliveries == nil || ports.Packages == nil || ports.Transports == nil || ports.Drones == nil {
		return nil, fmt.Errorf("all remote ports must be wired")
	}
	if orch == nil {
		return nil, fmt.Errorf("orchestrator cannot be nil")
	}

	s := &Service{
		ports:       ports,
		orch:        orch,
		alerts:      alert.NewLogNotifier(nil),
		events:      nopPublisher{},
		logger:      slog.Default(),
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		stepRetry:   saga.DefaultRetryPolicy(),
		compRetry:   saga.DefaultRetryPolicy(),
		droneRetry:  saga.DefaultRetryPolicy(),
		stepTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}

	var err error
	if s.schedule, err = s.scheduleDefinition(); err != nil {
		return nil, fmt.Errorf("build schedule workflow: %w", err)
	}
	if s.pickup, err = s.pickupDefinition(); err != nil {
		return nil, fmt.Errorf("build pickup workflow: %w", err)
	}
	if s.complete, err = s.completeDefinition(); err != nil {
		return nil, fmt.Errorf("build complete workflow: %w", err)
	}
	return s, nil
}

// Definitions returns the resolver recovery uses to map persisted runs back
// to their workflow definitions.
func (s *Service) Definitions() saga.DefinitionResolver {
	return func(workflow string) (*saga.Definition, bool) {
		switch workflow {
		case WorkflowSchedule:
			return s.schedule, true
		case WorkflowPickup:
			return s.pickup, true
		case WorkflowComplete:
			return s.complete, true
		default:
			return nil, false
		}
	}
}

// GetDelivery reads one delivery record straight through the port. Reads
// run no saga; callers classify failures with the remote error kinds.
func (s *Service) GetDelivery(ctx context.Context, deliveryID string) (*remote.Delivery, error) {
	if deliveryID == "" {
		return nil, remote.NotFound("delivery", "GetDelivery", fmt.Errorf("delivery id is required"))
	}
	callCtx, cancel := context.WithTimeout(ctx, s.stepTimeout)
	defer cancel()
	return s.ports.Deliveries.GetDelivery(callCtx, deliveryID)
}

// RetryClassifier is the transient failure predicate workflows expect the
// orchestrator to be configured with.
func RetryClassifier(err error) bool {
	return remote.IsTransient(err)
}

// workflowContext applies the configured whole-workflow deadline.
func (s *Service) workflowContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.workflowTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.workflowTimeout)
}

// stepCall attaches the step's idempotency key before issuing a remote call.
func stepCall(ctx context.Context, stepCtx *saga.StepContext) context.Context {
	return remote.WithIdempotencyKey(ctx, stepCtx.IdempotencyKey)
}

// undoCall attaches the compensation's idempotency key.
func undoCall(ctx context.Context, compCtx *saga.CompensationContext) context.Context {
	return remote.WithIdempotencyKey(ctx, compCtx.IdempotencyKey)
}

// failure converts a finished run and its cause into the caller-visible
// workflow error. Specific codes are assigned from the failed step and the
// remote failure kind; everything else reports the rollback outcome.
func (s *Service) failure(workflow string, run *saga.Run, cause error) *WorkflowError {
	wfErr := &WorkflowError{
		Code:     CodeSagaFatal,
		Workflow: workflow,
		Err:      cause,
	}
	if run == nil {
		return wfErr
	}
	wfErr.Step = run.FailedStep
	wfErr.Compensated = run.State == saga.StateCompensated

	var embedded *WorkflowError
	hasEmbedded := errors.As(cause, &embedded)

	switch {
	case hasEmbedded:
		wfErr.Code = embedded.Code
	case run.FailedStep == StepVerifyAccount && remote.IsNotFound(cause):
		wfErr.Code = CodeAccountNotFound
	case run.FailedStep == StepCreateDelivery && remote.IsRejected(cause):
		wfErr.Code = CodeDeliveryRejected
	case run.FailedStep == StepCreatePackage && remote.IsRejected(cause):
		wfErr.Code = CodePackageRejected
	case run.FailedStep == StepScheduleTransport && remote.IsUnavailable(cause):
		wfErr.Code = CodeTransportUnavailable
	case (run.FailedStep == StepLoadDelivery || run.FailedStep == StepPickupPackage || run.FailedStep == StepCompleteDelivery) && remote.IsNotFound(cause):
		wfErr.Code = CodeDeliveryNotFound
	case wfErr.Compensated:
		wfErr.Code = CodeSagaCompensated
	}

	if run.State == saga.StateFailed && run.CompensationError != "" {
		s.alerts.Notify(context.Background(), alert.Alert{
			Type:     alert.TypeCompensationFailed,
			Severity: alert.SeverityCritical,
			SagaID:   run.ID,
			Workflow: workflow,
			Message:  "compensation did not fully complete",
			Details: map[string]any{
				"failed_step":        run.FailedStep,
				"compensation_error": run.CompensationError,
			},
		})
	}
	return wfErr
}
