package saga

import (
	"context"
	"log/slog"
	"testing"
)

func TestRecoveryResumesUnfinishedRuns(t *testing.T) {
	rec := &callRecorder{}
	def, err := New("wf").
		Step("a", rec.step("a", nil)).
		Step("b", rec.step("b", nil)).
		WithStepRetry(fastRetry()).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	store := NewMemoryStore()
	ctx := context.Background()

	crashed := NewRun("crashed", "wf")
	if err := crashed.TransitionTo(StateRunning); err != nil {
		t.Fatal(err)
	}
	crashed.MarkStepCompleted("a", "a-result")
	if err := store.Save(ctx, crashed); err != nil {
		t.Fatal(err)
	}

	finished := NewRun("finished", "wf")
	if err := finished.TransitionTo(StateRunning); err != nil {
		t.Fatal(err)
	}
	if err := finished.TransitionTo(StateSucceeded); err != nil {
		t.Fatal(err)
	}
	if err := store.Save(ctx, finished); err != nil {
		t.Fatal(err)
	}

	unknown := NewRun("unknown", "gone-wf")
	if err := unknown.TransitionTo(StateRunning); err != nil {
		t.Fatal(err)
	}
	if err := store.Save(ctx, unknown); err != nil {
		t.Fatal(err)
	}

	orch := NewOrchestrator(WithStore(store))
	manager, err := NewRecoveryManager(orch, func(workflow string) (*Definition, bool) {
		if workflow == "wf" {
			return def, true
		}
		return nil, false
	}, slog.Default())
	if err != nil {
		t.Fatalf("new recovery manager: %v", err)
	}

	report, err := manager.Recover(ctx)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if report.Resumed != 1 || report.Skipped != 1 || report.Failed != 0 {
		t.Fatalf("report = %+v", report)
	}

	// Only the uncommitted step runs again.
	assertCalls(t, rec, "b")

	resumed, err := store.Get(ctx, "crashed")
	if err != nil {
		t.Fatal(err)
	}
	if resumed.State != StateSucceeded {
		t.Fatalf("state = %s", resumed.State)
	}
}

func TestMemoryIdempotencyStore(t *testing.T) {
	store := NewMemoryIdempotencyStore()
	ctx := context.Background()

	seen, err := store.Seen(ctx, "k")
	if err != nil || seen {
		t.Fatalf("fresh key seen = %v err = %v", seen, err)
	}
	if err := store.Mark(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	seen, err = store.Seen(ctx, "k")
	if err != nil || !seen {
		t.Fatalf("marked key seen = %v err = %v", seen, err)
	}
}
