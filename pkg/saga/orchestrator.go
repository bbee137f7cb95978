package saga

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const defaultMaxConcurrentSagas = 64

// Option configures an orchestrator.
type Option func(o *Orchestrator)

// WithStore sets the run store. Defaults to an in-memory store.
func WithStore(store Store) Option {
	return func(o *Orchestrator) { o.store = store }
}

// WithWAL sets the write-ahead log. Defaults to a nop log.
func WithWAL(wal WAL) Option {
	return func(o *Orchestrator) { o.wal = wal }
}

// WithIdempotencyStore sets the idempotency store shared by step and
// compensation executors.
func WithIdempotencyStore(idem IdempotencyStore) Option {
	return func(o *Orchestrator) { o.idem = idem }
}

// WithRetryClassifier sets the predicate deciding whether a step failure is
// transient. Timeouts are always transient regardless of the classifier.
func WithRetryClassifier(fn func(error) bool) Option {
	return func(o *Orchestrator) { o.retryable = fn }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(o *Orchestrator) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithMaxConcurrentSagas bounds how many sagas execute at once.
func WithMaxConcurrentSagas(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxConcurrent = n
		}
	}
}

// WithObserver registers a callback invoked with a snapshot of the run after
// every persisted state change.
func WithObserver(fn func(run *Run)) Option {
	return func(o *Orchestrator) { o.observer = fn }
}

// Orchestrator drives saga definitions: it executes steps strictly in order,
// persists progress after each one, and rolls back through the compensation
// executor when a step fails permanently. Concurrent executions of distinct
// sagas are bounded by a semaphore; executions of the same saga id serialize
// on a per-id lock, so steps within one saga never overlap and a re-delivered
// id cannot race its first execution.
type Orchestrator struct {
	store       Store
	wal         WAL
	idem        IdempotencyStore
	retryable   func(error) bool
	metrics     MetricsRecorder
	observer    func(run *Run)
	executor    *StepExecutor
	compensator *CompensationExecutor

	maxConcurrent int
	sema          chan struct{}
	active        atomic.Int64
	ids           idLocks
}

// idLocks serializes executions of the same saga id. Each id gets its own
// mutex for as long as at least one execution holds or waits on it.
type idLocks struct {
	mu   sync.Mutex
	held map[string]*idLock
}

type idLock struct {
	mu   sync.Mutex
	refs int
}

func (l *idLocks) lock(id string) func() {
	l.mu.Lock()
	if l.held == nil {
		l.held = make(map[string]*idLock)
	}
	entry, ok := l.held[id]
	if !ok {
		entry = &idLock{}
		l.held[id] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.held, id)
		}
		l.mu.Unlock()
	}
}

// NewOrchestrator creates an orchestrator with the given options.
func NewOrchestrator(opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:         NewMemoryStore(),
		wal:           NopWAL{},
		idem:          NewMemoryIdempotencyStore(),
		metrics:       nopMetrics{},
		maxConcurrent: defaultMaxConcurrentSagas,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.sema = make(chan struct{}, o.maxConcurrent)

	o.executor = NewStepExecutor(o.wal, o.store, o.idem, o.retryable)
	o.executor.metrics = o.metrics
	o.compensator = NewCompensationExecutor(o.wal, o.idem)
	o.compensator.metrics = o.metrics
	return o
}

// Execute runs the definition under a fresh saga id.
func (o *Orchestrator) Execute(ctx context.Context, def *Definition, input any) (*Run, error) {
	return o.ExecuteWithID(ctx, def, uuid.NewString(), input)
}

// ExecuteWithID runs the definition under a caller-chosen saga id.
// Re-executing an id whose run already finished does not re-issue any remote
// call: the recorded outcome is returned. Re-executing a non-terminal id
// resumes it from its last committed step. Concurrent executions of the same
// id serialize: the first one proceeds and the rest resume or replay its
// persisted outcome.
func (o *Orchestrator) ExecuteWithID(ctx context.Context, def *Definition, sagaID string, input any) (*Run, error) {
	if def == nil {
		return nil, fmt.Errorf("saga definition cannot be nil")
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	if sagaID == "" {
		return nil, fmt.Errorf("saga id cannot be empty")
	}

	unlock := o.ids.lock(sagaID)
	defer unlock()

	existing, err := o.store.Get(ctx, sagaID)
	switch {
	case err == nil:
		return o.resume(ctx, def, existing)
	case errors.Is(err, ErrRunNotFound):
	default:
		return nil, fmt.Errorf("load saga %s: %w", sagaID, err)
	}

	release, err := o.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	run := NewRun(sagaID, def.Name)
	if input != nil {
		raw, err := json.Marshal(input)
		if err != nil {
			return nil, fmt.Errorf("encode saga input: %w", err)
		}
		run.Input = raw
	}
	if err := o.saveRun(ctx, run); err != nil {
		return nil, err
	}
	return o.start(ctx, def, run)
}

// Resume continues a previously persisted run: forward from the last
// committed step when it was executing, or through the remaining
// compensations when it crashed mid-rollback. Terminal runs are returned
// as-is with their recorded outcome. The caller's snapshot may be stale; the
// run is re-read under the saga id lock before anything executes.
func (o *Orchestrator) Resume(ctx context.Context, def *Definition, run *Run) (*Run, error) {
	unlock := o.ids.lock(run.ID)
	defer unlock()

	if latest, err := o.store.Get(ctx, run.ID); err == nil {
		run = latest
	}
	return o.resume(ctx, def, run)
}

// resume runs the non-terminal continuation paths. The caller holds the saga
// id lock.
func (o *Orchestrator) resume(ctx context.Context, def *Definition, run *Run) (*Run, error) {
	if run.State.IsTerminal() {
		return run, replayError(run)
	}

	release, err := o.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	switch run.State {
	case StateCreated:
		return o.start(ctx, def, run)
	case StateRunning:
		return o.runForward(ctx, def, run)
	case StateCompensating:
		cause := errors.New(run.FailureReason)
		return run, o.finishCompensation(ctx, def, run, cause)
	default:
		return nil, fmt.Errorf("cannot resume saga %s in state %s", run.ID, run.State)
	}
}

// GetRun loads one run from the store.
func (o *Orchestrator) GetRun(ctx context.Context, sagaID string) (*Run, error) {
	return o.store.Get(ctx, sagaID)
}

// ListRuns queries runs from the store.
func (o *Orchestrator) ListRuns(ctx context.Context, filter ListFilter) ([]*Run, error) {
	return o.store.List(ctx, filter)
}

// DeleteRun removes a run record and its WAL entries.
func (o *Orchestrator) DeleteRun(ctx context.Context, sagaID string) error {
	if err := o.store.Delete(ctx, sagaID); err != nil {
		return err
	}
	return o.wal.DeleteBySagaID(ctx, sagaID)
}

// History returns the durable event log of one saga.
func (o *Orchestrator) History(ctx context.Context, sagaID string) ([]WALEntry, error) {
	return o.wal.List(ctx, sagaID)
}

// Close releases the underlying store and log.
func (o *Orchestrator) Close() error {
	var errs []error
	if err := o.wal.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := o.store.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (o *Orchestrator) start(ctx context.Context, def *Definition, run *Run) (*Run, error) {
	if err := run.TransitionTo(StateRunning); err != nil {
		return nil, err
	}
	if err := o.saveRun(ctx, run); err != nil {
		return nil, err
	}
	return o.runForward(ctx, def, run)
}

func (o *Orchestrator) runForward(ctx context.Context, def *Definition, run *Run) (*Run, error) {
	ctx, span := tracer().Start(ctx, "saga.execute",
		trace.WithAttributes(sagaAttrs(run)...))
	defer span.End()

	if def.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, def.Timeout)
		defer cancel()
	}

	o.metrics.RecordSagaStarted(run.Workflow)
	started := time.Now()

	for _, step := range def.Steps {
		if run.HasCompleted(step.Name) {
			continue
		}
		// Cancellation takes effect only between steps; a step in flight
		// always finishes or fails on its own.
		if err := ctx.Err(); err != nil {
			return o.rollback(ctx, def, run, step.Name, err, started)
		}
		if _, err := o.executor.Execute(ctx, def, run, step); err != nil {
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, err.Error())
			return o.rollback(ctx, def, run, step.Name, err, started)
		}
	}

	if err := run.TransitionTo(StateSucceeded); err != nil {
		return nil, err
	}
	if err := o.saveRun(ctx, run); err != nil {
		return nil, err
	}
	o.metrics.RecordSagaCompleted(run.Workflow, "succeeded", time.Since(started))
	return run, nil
}

// rollback records the failure and undoes committed steps. The returned
// error is always the original step failure; the compensation outcome is
// reflected in the run state, StateFailed when any compensation could not
// complete.
func (o *Orchestrator) rollback(ctx context.Context, def *Definition, run *Run, failedStep string, cause error, started time.Time) (*Run, error) {
	run.SetFailure(failedStep, cause)
	if err := run.TransitionTo(StateCompensating); err != nil {
		return nil, err
	}
	if err := o.saveRun(ctx, run); err != nil {
		return nil, errors.Join(cause, err)
	}

	if err := o.finishCompensation(ctx, def, run, cause); err != nil {
		return run, errors.Join(cause, err)
	}
	o.metrics.RecordSagaCompleted(run.Workflow, run.State.String(), time.Since(started))
	return run, cause
}

func (o *Orchestrator) finishCompensation(ctx context.Context, def *Definition, run *Run, cause error) error {
	// Compensation must complete even when the caller's context is gone.
	compCtx := context.WithoutCancel(ctx)

	compErr := o.compensator.Execute(compCtx, def, run, cause)
	target := StateCompensated
	if compErr != nil {
		run.CompensationError = compErr.Error()
		target = StateFailed
	}
	if err := run.TransitionTo(target); err != nil {
		return err
	}
	if err := o.saveRun(compCtx, run); err != nil {
		return err
	}
	return compErr
}

func (o *Orchestrator) saveRun(ctx context.Context, run *Run) error {
	if err := o.store.Save(ctx, run); err != nil {
		return fmt.Errorf("persist saga %s: %w", run.ID, err)
	}
	if o.observer != nil {
		o.observer(run.Clone())
	}
	return nil
}

func (o *Orchestrator) acquire(ctx context.Context) (func(), error) {
	select {
	case o.sema <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	o.metrics.SetActiveSagas(int(o.active.Add(1)))
	return func() {
		<-o.sema
		o.metrics.SetActiveSagas(int(o.active.Add(-1)))
	}, nil
}

// replayError reconstructs the caller-visible outcome of a finished run.
func replayError(run *Run) error {
	switch run.State {
	case StateSucceeded:
		return nil
	case StateCompensated:
		return fmt.Errorf("saga %s was rolled back at step %s: %s", run.ID, run.FailedStep, run.FailureReason)
	default:
		return fmt.Errorf("saga %s failed at step %s: %s", run.ID, run.FailedStep, run.FailureReason)
	}
}
