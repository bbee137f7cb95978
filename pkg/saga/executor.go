package saga

import (
	"context"
	"errors"
	"fmt"
	"time"

	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StepExecutor runs one forward step at a time: it applies the per-call
// timeout, retries transient failures with exponential backoff, de-duplicates
// through the idempotency store and records the outcome durably before
// returning.
type StepExecutor struct {
	wal       WAL
	store     Store
	idem      IdempotencyStore
	retryable func(error) bool
	metrics   MetricsRecorder
	sleep     func(ctx context.Context, d time.Duration) error
}

// NewStepExecutor creates an executor over the given durability components.
// A nil retryable classifier treats only timeouts as transient.
func NewStepExecutor(wal WAL, store Store, idem IdempotencyStore, retryable func(error) bool) *StepExecutor {
	if wal == nil {
		wal = NopWAL{}
	}
	if idem == nil {
		idem = NewMemoryIdempotencyStore()
	}
	return &StepExecutor{
		wal:       wal,
		store:     store,
		idem:      idem,
		retryable: retryable,
		metrics:   nopMetrics{},
		sleep:     sleepContext,
	}
}

// Execute runs one step to completion. On success the step result is
// recorded on the run and persisted before Execute returns. A step whose
// idempotency key was already marked is not re-issued; its recorded result
// is returned instead.
func (e *StepExecutor) Execute(ctx context.Context, def *Definition, run *Run, step *Step) (any, error) {
	key := StepKey(run.ID, step.Name)

	if seen, err := e.idem.Seen(ctx, key); err == nil && seen {
		return run.StepResults[step.Name], nil
	}

	ctx, span := tracer().Start(ctx, "saga.step."+step.Name,
		trace.WithAttributes(stepAttrs(run, step.Name)...))
	defer span.End()

	if _, err := e.wal.Append(ctx, WALEntry{
		SagaID: run.ID,
		Step:   step.Name,
		Type:   WALEntryTypeStepStarted,
	}); err != nil {
		return nil, fmt.Errorf("wal append step_started: %w", err)
	}

	policy := def.StepRetry
	started := time.Now()
	var lastErr error
	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		result, err := e.invoke(ctx, def, run, step, key)
		if err == nil {
			if markErr := e.idem.Mark(ctx, key); markErr != nil {
				return nil, fmt.Errorf("mark idempotency key %s: %w", key, markErr)
			}
			run.MarkStepCompleted(step.Name, result)
			if e.store != nil {
				if saveErr := e.store.Save(ctx, run); saveErr != nil {
					return nil, fmt.Errorf("persist run after step %s: %w", step.Name, saveErr)
				}
			}
			if _, walErr := e.wal.Append(ctx, WALEntry{
				SagaID: run.ID,
				Step:   step.Name,
				Type:   WALEntryTypeStepCompleted,
			}); walErr != nil {
				return nil, fmt.Errorf("wal append step_completed: %w", walErr)
			}
			e.metrics.RecordStepExecution(run.Workflow, step.Name, "completed", time.Since(started))
			return result, nil
		}

		lastErr = err
		if !e.isTransient(err) {
			break
		}
		if attempt == policy.MaxAttempts-1 {
			break
		}
		e.metrics.RecordStepRetry(run.Workflow, step.Name)
		if sleepErr := e.sleep(ctx, policy.Backoff(attempt)); sleepErr != nil {
			lastErr = sleepErr
			break
		}
	}

	span.RecordError(lastErr)
	span.SetStatus(otelcodes.Error, lastErr.Error())
	e.metrics.RecordStepExecution(run.Workflow, step.Name, "failed", time.Since(started))
	if _, walErr := e.wal.Append(ctx, WALEntry{
		SagaID: run.ID,
		Step:   step.Name,
		Type:   WALEntryTypeStepFailed,
		Detail: lastErr.Error(),
	}); walErr != nil {
		return nil, errors.Join(lastErr, fmt.Errorf("wal append step_failed: %w", walErr))
	}
	return nil, fmt.Errorf("step %s: %w", step.Name, lastErr)
}

func (e *StepExecutor) invoke(ctx context.Context, def *Definition, run *Run, step *Step, key string) (any, error) {
	stepCtx := ctx
	if timeout := def.StepTimeout(step); timeout > 0 {
		var cancel context.CancelFunc
		stepCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return step.Action(stepCtx, &StepContext{
		SagaID:         run.ID,
		Step:           step.Name,
		IdempotencyKey: key,
		Input:          run.Input,
		Results:        run.StepResults,
	})
}

// isTransient classifies whether a failure is worth retrying. Call timeouts
// always are; everything else is delegated to the configured classifier.
func (e *StepExecutor) isTransient(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if e.retryable != nil {
		return e.retryable(err)
	}
	return false
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
