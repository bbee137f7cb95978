package saga

import (
	"context"
	"fmt"
	"log/slog"
)

// DefinitionResolver maps a persisted workflow name back to its definition.
// Recovery needs it because the store only records names, not step code.
type DefinitionResolver func(workflow string) (*Definition, bool)

// RecoveryReport summarizes one recovery pass.
type RecoveryReport struct {
	Resumed int
	Failed  int
	Skipped int
}

// RecoveryManager resumes sagas a previous process left unfinished. On
// startup it scans the run store for non-terminal runs and re-executes each
// from its last committed step; steps that already committed are skipped via
// their idempotency keys, so remote services see no duplicate calls.
type RecoveryManager struct {
	orch    *Orchestrator
	resolve DefinitionResolver
	logger  *slog.Logger
}

// NewRecoveryManager creates a recovery manager over the orchestrator.
func NewRecoveryManager(orch *Orchestrator, resolve DefinitionResolver, logger *slog.Logger) (*RecoveryManager, error) {
	if orch == nil {
		return nil, fmt.Errorf("orchestrator cannot be nil")
	}
	if resolve == nil {
		return nil, fmt.Errorf("definition resolver cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RecoveryManager{orch: orch, resolve: resolve, logger: logger}, nil
}

// Recover resumes every non-terminal run. A run whose workflow has no
// registered definition is skipped and logged; it stays in the store for a
// later pass.
func (m *RecoveryManager) Recover(ctx context.Context) (RecoveryReport, error) {
	report := RecoveryReport{}

	for _, state := range []State{StateCreated, StateRunning, StateCompensating} {
		state := state
		runs, err := m.orch.ListRuns(ctx, ListFilter{State: &state})
		if err != nil {
			return report, fmt.Errorf("list %s sagas: %w", state, err)
		}

		for _, run := range runs {
			def, ok := m.resolve(run.Workflow)
			if !ok {
				report.Skipped++
				m.logger.Warn("skipping saga with unknown workflow",
					slog.String("saga_id", run.ID),
					slog.String("workflow", run.Workflow))
				continue
			}

			m.logger.Info("resuming saga",
				slog.String("saga_id", run.ID),
				slog.String("workflow", run.Workflow),
				slog.String("state", run.State.String()))

			resumed, err := m.orch.Resume(ctx, def, run)
			if err != nil {
				report.Failed++
				m.logger.Error("saga recovery finished with failure",
					slog.String("saga_id", run.ID),
					slog.String("state", stateName(resumed, run)),
					slog.String("error", err.Error()))
				continue
			}
			report.Resumed++
		}
	}
	return report, nil
}

func stateName(resumed, fallback *Run) string {
	if resumed != nil {
		return resumed.State.String()
	}
	return fallback.State.String()
}
