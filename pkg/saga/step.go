// Package saga provides orchestration-based distributed transaction primitives.
//
// A saga is an ordered sequence of remote steps executed as one logical unit
// of work. Steps run strictly sequentially: later steps consume identifiers
// produced by earlier ones, so there is no intra-saga parallelism. Failure of
// a step triggers compensation of the already committed steps in reverse
// order through the compensation registry.
package saga

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// ActionFunc executes the forward call of one saga step.
type ActionFunc func(ctx context.Context, stepCtx *StepContext) (any, error)

// CompensationFunc semantically undoes a previously committed step.
type CompensationFunc func(ctx context.Context, compCtx *CompensationContext) error

// StepContext carries runtime information into a forward step execution.
// Input is the saga input exactly as persisted on the run, so actions decode
// the same bytes whether the saga runs live or is resumed after a crash.
// IdempotencyKey is stable across retries and resumed executions of the same
// step, so remote services can de-duplicate re-delivered requests.
type StepContext struct {
	SagaID         string
	Step           string
	IdempotencyKey string
	Input          json.RawMessage
	Results        map[string]any
}

// DecodeInput unmarshals the saga input into v.
func (c *StepContext) DecodeInput(v any) error {
	if len(c.Input) == 0 {
		return fmt.Errorf("saga %s has no input", c.SagaID)
	}
	return json.Unmarshal(c.Input, v)
}

// CompensationContext carries runtime information into an undo execution.
type CompensationContext struct {
	SagaID         string
	Step           string
	IdempotencyKey string
	FailedStep     string
	Failure        error
	Input          json.RawMessage
	Result         any
	Results        map[string]any
}

// DecodeInput unmarshals the saga input into v.
func (c *CompensationContext) DecodeInput(v any) error {
	if len(c.Input) == 0 {
		return fmt.Errorf("saga %s has no input", c.SagaID)
	}
	return json.Unmarshal(c.Input, v)
}

// Step is one executable unit in a saga definition.
type Step struct {
	Name    string
	Action  ActionFunc
	Timeout time.Duration
}

// StepOption configures a step definition.
type StepOption func(step *Step) error

// Action configures the forward action function.
func Action(fn ActionFunc) StepOption {
	return func(step *Step) error {
		if fn == nil {
			return fmt.Errorf("action cannot be nil")
		}
		step.Action = fn
		return nil
	}
}

// StepTimeout configures the per-call timeout for this step.
func StepTimeout(timeout time.Duration) StepOption {
	return func(step *Step) error {
		if timeout < 0 {
			return fmt.Errorf("step timeout cannot be negative")
		}
		step.Timeout = timeout
		return nil
	}
}

// StepKey builds the idempotency key for one forward step invocation.
func StepKey(sagaID, step string) string {
	return fmt.Sprintf("%s:%s", sagaID, step)
}

// CompensationKey builds the idempotency key for one undo invocation.
func CompensationKey(sagaID, step string) string {
	return fmt.Sprintf("%s:%s:undo", sagaID, step)
}
