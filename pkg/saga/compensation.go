package saga

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Registry maps step names to their compensating actions. A step absent from
// the registry is non-compensable: its effect survives rollback.
type Registry struct {
	mu      sync.RWMutex
	actions map[string]CompensationFunc
}

// NewRegistry creates an empty compensation registry.
func NewRegistry() *Registry {
	return &Registry{actions: make(map[string]CompensationFunc)}
}

// Register binds a compensation to a step name, replacing any previous one.
func (r *Registry) Register(step string, fn CompensationFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions[step] = fn
}

// Lookup returns the compensation for a step, if one is registered.
func (r *Registry) Lookup(step string) (CompensationFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.actions[step]
	return fn, ok
}

// Compensable reports whether a step has a registered compensation.
func (r *Registry) Compensable(step string) bool {
	_, ok := r.Lookup(step)
	return ok
}

// CompensationExecutor undoes the committed steps of a failed saga in
// reverse completion order. Each compensation is retried under the
// definition's compensation policy and de-duplicated with its own
// idempotency key. A failing compensation does not stop the remaining ones;
// all failures are collected and returned joined.
type CompensationExecutor struct {
	wal     WAL
	idem    IdempotencyStore
	metrics MetricsRecorder
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewCompensationExecutor creates an executor over the given durability
// components.
func NewCompensationExecutor(wal WAL, idem IdempotencyStore) *CompensationExecutor {
	if wal == nil {
		wal = NopWAL{}
	}
	if idem == nil {
		idem = NewMemoryIdempotencyStore()
	}
	return &CompensationExecutor{
		wal:     wal,
		idem:    idem,
		metrics: nopMetrics{},
		sleep:   sleepContext,
	}
}

// Execute compensates every committed step of the run that has a registered
// compensation, newest first. The failed step itself never committed, so it
// is not compensated.
func (e *CompensationExecutor) Execute(ctx context.Context, def *Definition, run *Run, cause error) error {
	ctx, span := tracer().Start(ctx, "saga.compensate",
		trace.WithAttributes(sagaAttrs(run)...))
	defer span.End()

	var failures []error
	for i := len(run.CompletedSteps) - 1; i >= 0; i-- {
		step := run.CompletedSteps[i]
		fn, ok := def.Compensations.Lookup(step)
		if !ok {
			continue
		}
		if err := e.compensateStep(ctx, def, run, step, fn, cause); err != nil {
			e.metrics.RecordCompensation(run.Workflow, step, "failed")
			failures = append(failures, fmt.Errorf("compensate %s: %w", step, err))
			continue
		}
		e.metrics.RecordCompensation(run.Workflow, step, "completed")
		run.MarkStepCompensated(step)
	}

	if len(failures) > 0 {
		err := errors.Join(failures...)
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return err
	}
	return nil
}

func (e *CompensationExecutor) compensateStep(ctx context.Context, def *Definition, run *Run, step string, fn CompensationFunc, cause error) error {
	key := CompensationKey(run.ID, step)
	if seen, err := e.idem.Seen(ctx, key); err == nil && seen {
		return nil
	}

	if _, err := e.wal.Append(ctx, WALEntry{
		SagaID: run.ID,
		Step:   step,
		Type:   WALEntryTypeCompensationStarted,
	}); err != nil {
		return fmt.Errorf("wal append compensation_started: %w", err)
	}

	compCtx := &CompensationContext{
		SagaID:         run.ID,
		Step:           step,
		IdempotencyKey: key,
		FailedStep:     run.FailedStep,
		Failure:        cause,
		Input:          run.Input,
		Result:         run.StepResults[step],
		Results:        run.StepResults,
	}

	call := func() error {
		callCtx := ctx
		if timeout := def.DefaultStepTimeout; timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		return fn(callCtx, compCtx)
	}

	policy := def.CompensationRetry
	var lastErr error
	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		if err := call(); err == nil {
			if markErr := e.idem.Mark(ctx, key); markErr != nil {
				return fmt.Errorf("mark idempotency key %s: %w", key, markErr)
			}
			if _, walErr := e.wal.Append(ctx, WALEntry{
				SagaID: run.ID,
				Step:   step,
				Type:   WALEntryTypeCompensationCompleted,
			}); walErr != nil {
				return fmt.Errorf("wal append compensation_completed: %w", walErr)
			}
			return nil
		} else {
			lastErr = err
		}
		if !retriableCompensation(lastErr) {
			break
		}
		if attempt == policy.MaxAttempts-1 {
			break
		}
		if sleepErr := e.sleep(ctx, policy.Backoff(attempt)); sleepErr != nil {
			lastErr = sleepErr
			break
		}
	}

	if _, walErr := e.wal.Append(ctx, WALEntry{
		SagaID: run.ID,
		Step:   step,
		Type:   WALEntryTypeCompensationFailed,
		Detail: lastErr.Error(),
	}); walErr != nil {
		return errors.Join(lastErr, fmt.Errorf("wal append compensation_failed: %w", walErr))
	}
	return lastErr
}

// retriableCompensation reports whether a compensation failure should be
// retried. Undo calls target state the saga itself created, so anything
// short of caller cancellation is retried up to the policy bound.
func retriableCompensation(err error) bool {
	return !errors.Is(err, context.Canceled)
}
