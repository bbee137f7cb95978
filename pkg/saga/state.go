package saga

import (
	"encoding/json"
	"fmt"
	"time"
)

// State represents the lifecycle state of a saga run.
type State int

const (
	// StateCreated indicates the run exists but has not started executing.
	StateCreated State = iota
	// StateRunning indicates forward steps are executing.
	StateRunning
	// StateSucceeded indicates every step committed.
	StateSucceeded
	// StateCompensating indicates a step failed and committed steps are
	// being undone.
	StateCompensating
	// StateCompensated indicates every committed step was undone.
	StateCompensated
	// StateFailed indicates the run failed and compensation did not fully
	// complete, leaving state that needs reconciliation.
	StateFailed
)

// String returns the lowercase name of the state.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateSucceeded:
		return "succeeded"
	case StateCompensating:
		return "compensating"
	case StateCompensated:
		return "compensated"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// IsTerminal reports whether the state is final.
func (s State) IsTerminal() bool {
	switch s {
	case StateSucceeded, StateCompensated, StateFailed:
		return true
	default:
		return false
	}
}

// ParseState converts a state name back to its State value.
func ParseState(name string) (State, error) {
	switch name {
	case "created":
		return StateCreated, nil
	case "running":
		return StateRunning, nil
	case "succeeded":
		return StateSucceeded, nil
	case "compensating":
		return StateCompensating, nil
	case "compensated":
		return StateCompensated, nil
	case "failed":
		return StateFailed, nil
	default:
		return StateCreated, fmt.Errorf("unknown saga state %q", name)
	}
}

var validTransitions = map[State][]State{
	StateCreated:      {StateRunning},
	StateRunning:      {StateSucceeded, StateCompensating, StateFailed},
	StateCompensating: {StateCompensated, StateFailed},
}

// CanTransition reports whether a transition between two states is legal.
func CanTransition(from, to State) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Run is the durable record of one saga execution. It is the unit persisted
// to the run store after every state change, and the checkpoint recovery
// resumes from.
type Run struct {
	ID                string          `json:"id"`
	Workflow          string          `json:"workflow"`
	State             State           `json:"state"`
	Input             json.RawMessage `json:"input,omitempty"`
	CompletedSteps    []string        `json:"completed_steps,omitempty"`
	CompensatedSteps  []string        `json:"compensated_steps,omitempty"`
	StepResults       map[string]any  `json:"step_results,omitempty"`
	FailedStep        string          `json:"failed_step,omitempty"`
	FailureReason     string          `json:"failure_reason,omitempty"`
	CompensationError string          `json:"compensation_error,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	StartedAt         *time.Time      `json:"started_at,omitempty"`
	FinishedAt        *time.Time      `json:"finished_at,omitempty"`
}

// NewRun creates a run record in the created state.
func NewRun(id, workflow string) *Run {
	now := time.Now().UTC()
	return &Run{
		ID:          id,
		Workflow:    workflow,
		State:       StateCreated,
		StepResults: make(map[string]any),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// TransitionTo moves the run to a new state, enforcing the lifecycle graph.
func (r *Run) TransitionTo(to State) error {
	if !CanTransition(r.State, to) {
		return fmt.Errorf("invalid saga state transition %s -> %s", r.State, to)
	}
	now := time.Now().UTC()
	r.State = to
	r.UpdatedAt = now
	switch to {
	case StateRunning:
		if r.StartedAt == nil {
			r.StartedAt = &now
		}
	case StateSucceeded, StateCompensated, StateFailed:
		r.FinishedAt = &now
	}
	return nil
}

// MarkStepCompleted records a committed forward step and its result.
func (r *Run) MarkStepCompleted(step string, result any) {
	if !r.HasCompleted(step) {
		r.CompletedSteps = append(r.CompletedSteps, step)
	}
	if r.StepResults == nil {
		r.StepResults = make(map[string]any)
	}
	r.StepResults[step] = result
	r.UpdatedAt = time.Now().UTC()
}

// MarkStepCompensated records a successfully undone step.
func (r *Run) MarkStepCompensated(step string) {
	r.CompensatedSteps = append(r.CompensatedSteps, step)
	r.UpdatedAt = time.Now().UTC()
}

// SetFailure records the step that failed and why.
func (r *Run) SetFailure(step string, cause error) {
	r.FailedStep = step
	if cause != nil {
		r.FailureReason = cause.Error()
	}
	r.UpdatedAt = time.Now().UTC()
}

// HasCompleted reports whether a forward step already committed.
func (r *Run) HasCompleted(step string) bool {
	for _, name := range r.CompletedSteps {
		if name == step {
			return true
		}
	}
	return false
}

// Clone returns a deep enough copy for handing snapshots to callers.
func (r *Run) Clone() *Run {
	clone := *r
	clone.Input = append(json.RawMessage(nil), r.Input...)
	clone.CompletedSteps = append([]string(nil), r.CompletedSteps...)
	clone.CompensatedSteps = append([]string(nil), r.CompensatedSteps...)
	if r.StepResults != nil {
		clone.StepResults = make(map[string]any, len(r.StepResults))
		for k, v := range r.StepResults {
			clone.StepResults[k] = v
		}
	}
	return &clone
}
