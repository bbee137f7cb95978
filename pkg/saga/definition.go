package saga

import (
	"fmt"
	"math"
	"time"
)

// RetryPolicy bounds retries of a transiently failing call with exponential
// backoff.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffFactor  float64
}

// DefaultRetryPolicy is the retry policy applied when a definition does not
// override it.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		BackoffFactor:  2.0,
	}
}

// Validate checks the policy bounds.
func (p RetryPolicy) Validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be at least 1, got %d", p.MaxAttempts)
	}
	if p.InitialBackoff < 0 || p.MaxBackoff < 0 {
		return fmt.Errorf("backoff durations cannot be negative")
	}
	if p.BackoffFactor < 1 {
		return fmt.Errorf("backoff factor must be at least 1, got %f", p.BackoffFactor)
	}
	return nil
}

// Backoff returns the wait before the given zero-based retry attempt.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	backoff := float64(p.InitialBackoff) * math.Pow(p.BackoffFactor, float64(attempt))
	if max := float64(p.MaxBackoff); p.MaxBackoff > 0 && backoff > max {
		backoff = max
	}
	return time.Duration(backoff)
}

// Definition is an immutable, validated description of a saga workflow: its
// ordered steps, compensations, timeouts and retry policies. Definitions are
// built once through Builder and shared across executions.
type Definition struct {
	Name               string
	Steps              []*Step
	Compensations      *Registry
	Timeout            time.Duration
	DefaultStepTimeout time.Duration
	StepRetry          RetryPolicy
	CompensationRetry  RetryPolicy
}

// Validate checks structural integrity of the definition.
func (d *Definition) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("saga definition requires a name")
	}
	if len(d.Steps) == 0 {
		return fmt.Errorf("saga %s has no steps", d.Name)
	}
	seen := make(map[string]struct{}, len(d.Steps))
	for _, step := range d.Steps {
		if step.Name == "" {
			return fmt.Errorf("saga %s has a step without a name", d.Name)
		}
		if _, dup := seen[step.Name]; dup {
			return fmt.Errorf("saga %s has duplicate step %s", d.Name, step.Name)
		}
		seen[step.Name] = struct{}{}
		if step.Action == nil {
			return fmt.Errorf("step %s has no action", step.Name)
		}
	}
	if err := d.StepRetry.Validate(); err != nil {
		return fmt.Errorf("step retry policy: %w", err)
	}
	if err := d.CompensationRetry.Validate(); err != nil {
		return fmt.Errorf("compensation retry policy: %w", err)
	}
	return nil
}

// StepTimeout resolves the effective timeout for a step.
func (d *Definition) StepTimeout(step *Step) time.Duration {
	if step.Timeout > 0 {
		return step.Timeout
	}
	return d.DefaultStepTimeout
}

// Builder assembles a saga definition step by step.
type Builder struct {
	def  *Definition
	errs []error
}

// New starts building a saga definition with the given workflow name.
func New(name string) *Builder {
	return &Builder{
		def: &Definition{
			Name:               name,
			Compensations:      NewRegistry(),
			DefaultStepTimeout: 10 * time.Second,
			StepRetry:          DefaultRetryPolicy(),
			CompensationRetry:  DefaultRetryPolicy(),
		},
	}
}

// Step appends a step to the execution order.
func (b *Builder) Step(name string, opts ...StepOption) *Builder {
	step := &Step{Name: name}
	for _, opt := range opts {
		if err := opt(step); err != nil {
			b.errs = append(b.errs, fmt.Errorf("step %s: %w", name, err))
		}
	}
	b.def.Steps = append(b.def.Steps, step)
	return b
}

// Compensate registers a compensation for a previously declared step. Steps
// without a compensation are non-compensable: once committed they survive
// rollback of the rest of the saga.
func (b *Builder) Compensate(step string, fn CompensationFunc) *Builder {
	if fn == nil {
		b.errs = append(b.errs, fmt.Errorf("compensation for %s cannot be nil", step))
		return b
	}
	b.def.Compensations.Register(step, fn)
	return b
}

// WithTimeout sets the overall execution timeout for the saga.
func (b *Builder) WithTimeout(timeout time.Duration) *Builder {
	b.def.Timeout = timeout
	return b
}

// WithDefaultStepTimeout sets the timeout applied to steps that do not
// declare their own.
func (b *Builder) WithDefaultStepTimeout(timeout time.Duration) *Builder {
	b.def.DefaultStepTimeout = timeout
	return b
}

// WithStepRetry sets the retry policy for forward steps.
func (b *Builder) WithStepRetry(policy RetryPolicy) *Builder {
	b.def.StepRetry = policy
	return b
}

// WithCompensationRetry sets the retry policy for compensations.
func (b *Builder) WithCompensationRetry(policy RetryPolicy) *Builder {
	b.def.CompensationRetry = policy
	return b
}

// Build validates and returns the definition.
func (b *Builder) Build() (*Definition, error) {
	if len(b.errs) > 0 {
		return nil, b.errs[0]
	}
	if err := b.def.Validate(); err != nil {
		return nil, err
	}
	for step := range b.def.Compensations.actions {
		if !b.hasStep(step) {
			return nil, fmt.Errorf("compensation registered for unknown step %s", step)
		}
	}
	return b.def, nil
}

func (b *Builder) hasStep(name string) bool {
	for _, step := range b.def.Steps {
		if step.Name == name {
			return true
		}
	}
	return false
}
