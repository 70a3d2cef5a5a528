package controller

import (
	"context"
	"testing"

	"github.com/ixado-dev/ixado/internal/model"
	"github.com/ixado-dev/ixado/internal/state"
)

// TestRun_HappyPath_SingleTaskCIDisabled exercises: a single TODO task, a
// clean tree, CI disabled. The phase should transition all the way through
// PLANNING -> BRANCHING -> CODING -> DONE, the scheduler visiting the one
// task, the tester being skipped (no configured command, nothing
// auto-detectable), and no fix-tasks created.
func TestRun_HappyPath_SingleTaskCIDisabled(t *testing.T) {
	phase := *model.NewPhase("ship it", "feature/single-task")
	phase.Tasks = []model.Task{model.NewTask("write the code", "do the thing")}
	store := state.NewMemoryStore([]model.Phase{phase})
	store.RunTask = func(ctx context.Context, p model.Phase, task model.Task, assignee model.AdapterID, resume bool) (model.TaskStatus, string, string, error) {
		return model.TaskDone, "wrote the code", "", nil
	}

	runner := newScriptedRunner()
	r := newTestRunner(testConfig(), runner, store)
	r.CIEnabled = false

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	snapshot, err := store.GetState(context.Background())
	if err != nil {
		t.Fatalf("unexpected error reading state: %v", err)
	}

	final := snapshot.Phases[0]
	if final.Status != model.PhaseDone {
		t.Fatalf("expected phase DONE, got %s", final.Status)
	}
	if final.Tasks[0].Status != model.TaskDone {
		t.Fatalf("expected task DONE, got %s", final.Tasks[0].Status)
	}
	for _, tk := range final.Tasks {
		if tk.Status == model.TaskCIFix {
			t.Fatal("expected no fix-tasks to be created on the happy path")
		}
	}
}

func TestRun_ReconcilesOrphanedInProgressTasksBeforeScheduling(t *testing.T) {
	phase := *model.NewPhase("resume", "feature/resume")
	orphaned := model.NewTask("was running when the process died", "desc")
	orphaned.Status = model.TaskInProgress
	phase.Tasks = []model.Task{orphaned}
	store := state.NewMemoryStore([]model.Phase{phase})

	var sawStatus model.TaskStatus
	store.RunTask = func(ctx context.Context, p model.Phase, task model.Task, assignee model.AdapterID, resume bool) (model.TaskStatus, string, string, error) {
		sawStatus = task.Status
		return model.TaskDone, "", "", nil
	}

	r := newTestRunner(testConfig(), newScriptedRunner(), store)
	r.CIEnabled = false

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sawStatus != model.TaskInProgress {
		t.Fatalf("expected the reconciled task to be handed to the runner as IN_PROGRESS at dispatch time, got %s", sawStatus)
	}

	snapshot, _ := store.GetState(context.Background())
	if snapshot.Phases[0].Status != model.PhaseDone {
		t.Fatalf("expected DONE, got %s", snapshot.Phases[0].Status)
	}
}

func TestRun_PreflightFailsClosedGateWithoutMutatingState(t *testing.T) {
	phase := *model.NewPhase("done already", "feature/done")
	phase.Status = model.PhaseDone
	phase.Tasks = []model.Task{{Status: model.TaskDone}}
	store := state.NewMemoryStore([]model.Phase{phase})

	r := newTestRunner(testConfig(), newScriptedRunner(), store)
	err := r.Run(context.Background())
	if _, ok := err.(*PhasePreflightError); !ok {
		t.Fatalf("expected PhasePreflightError, got %v", err)
	}

	snapshot, _ := store.GetState(context.Background())
	if snapshot.Phases[0].Status != model.PhaseDone {
		t.Fatalf("expected status to remain untouched at DONE, got %s", snapshot.Phases[0].Status)
	}
}
