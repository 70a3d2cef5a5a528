package controller

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ixado-dev/ixado/internal/classify"
	"github.com/ixado-dev/ixado/internal/events"
	"github.com/ixado-dev/ixado/internal/hooks"
	"github.com/ixado-dev/ixado/internal/model"
	"github.com/ixado-dev/ixado/internal/scheduler"
	"github.com/ixado-dev/ixado/internal/state"
	"github.com/ixado-dev/ixado/internal/tester"
)

// runExecutionLoop drives CODING: while the scheduler still returns a
// task, run it (with task-level recovery), then run the tester. A tester
// failure stops the loop with the phase already set to CI_FAILED.
func (r *PhaseRunner) runExecutionLoop(ctx context.Context, phaseID uuid.UUID) error {
	if err := r.Store.SetPhaseStatus(ctx, state.SetPhaseStatusParams{PhaseID: phaseID, Status: model.PhaseCoding}); err != nil {
		return fmt.Errorf("set phase status CODING: %w", err)
	}

	iteration := 0
	for {
		snapshot, err := r.Store.GetState(ctx)
		if err != nil {
			return fmt.Errorf("read state: %w", err)
		}
		phase, err := findPhase(snapshot, phaseID)
		if err != nil {
			return err
		}

		idx := scheduler.PickNextTask(phase.Tasks)
		if idx == -1 {
			return nil
		}

		if iteration > 0 {
			outcome, err := r.AdvanceGate.Await(ctx)
			if err != nil {
				return fmt.Errorf("await advance gate: %w", err)
			}
			if outcome == AdvanceStop {
				return nil
			}
		}
		iteration++

		task := phase.Tasks[idx]
		if err := r.runTaskStep(ctx, phaseID, idx+1, task); err != nil {
			if failErr := r.failPhase(ctx, phaseID, model.FailureKindRecovery, err); failErr != nil {
				return failErr
			}
			return err
		}

		if err := r.runTesterStep(ctx, phaseID, task); err != nil {
			if failErr := r.failPhase(ctx, phaseID, model.FailureKindTester, err); failErr != nil {
				return failErr
			}
			return err
		}
	}
}

// runTaskStep runs one task to completion, retrying through recovery on
// FAILED up to maxRecoveryAttempts+1 total runs.
func (r *PhaseRunner) runTaskStep(ctx context.Context, phaseID uuid.UUID, taskNumber int, task model.Task) error {
	assignee := task.Assignee
	if assignee == model.AdapterUnassigned {
		assignee = r.DefaultAssignee
	}

	maxAttempts := r.Config.MaxRecoveryAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	totalRuns := maxAttempts + 1

	resume := false
	for run := 1; run <= totalRuns; run++ {
		r.fireHook(ctx, hooks.BeforeTaskStart, map[string]any{"phaseId": phaseID, "taskId": task.ID, "attempt": run})

		status, err := r.Store.StartActiveTaskAndWait(ctx, state.StartActiveTaskParams{
			PhaseID: phaseID, TaskNumber: taskNumber, Assignee: assignee, Resume: resume,
		})
		if status == model.TaskDone {
			r.fireHook(ctx, hooks.AfterTaskDone, map[string]any{"phaseId": phaseID, "taskId": task.ID})
			r.publishEvent(phaseID, events.FamilyTaskLifecycle, events.LevelImportant, "task completed", task.Title)
			return nil
		}
		if status != model.TaskFailed {
			return fmt.Errorf("unexpected task status after run: %s", status)
		}

		errMessage := task.Title + " failed"
		if err != nil {
			errMessage = err.Error()
		}
		taskIDStr := task.ID.String()
		exception := classify.BuildExceptionMetadata(uuidPtr(phaseID), &taskIDStr, errMessage, "")

		if !exception.Recoverable() {
			return fmt.Errorf("task %s failed with non-recoverable exception %s: %s", task.Title, exception.AdapterFailureKind, errMessage)
		}
		if run == totalRuns {
			return fmt.Errorf("task %s exhausted %d runs: %s", task.Title, totalRuns, errMessage)
		}

		result, recErr := r.runRecoveryAttempt(ctx, phaseID, &task.ID, exception, assignee, run, nil)
		if recErr != nil {
			return recErr
		}
		if result.Status != model.RecoveryFixed {
			return &ExhaustedError{Exception: exception, Attempts: run}
		}
		resume = true
	}
	return nil
}

// runTesterStep invokes the tester workflow after a task completes. On
// failure it creates a deduplicated fix-task, then stops the loop by
// returning an error (the caller sets CI_FAILED).
func (r *PhaseRunner) runTesterStep(ctx context.Context, phaseID uuid.UUID, triggerTask model.Task) error {
	outcome := r.Tester.Run(ctx, r.Cwd, r.TesterCommand, r.TesterArgs, triggerTask)
	if outcome.Status != tester.StatusFailed {
		return nil
	}

	snapshot, err := r.Store.GetState(ctx)
	if err != nil {
		return fmt.Errorf("read state for tester dedup: %w", err)
	}
	phase, err := findPhase(snapshot, phaseID)
	if err != nil {
		return err
	}

	if dedupFixTask(phase.Tasks, *outcome.FixTask) {
		return fmt.Errorf("tester failed after %s; fix-task already pending", triggerTask.Title)
	}
	if r.CiFixMaxDepth > 0 && fixTaskChainDepth(phase.Tasks, *outcome.FixTask)+1 > r.CiFixMaxDepth {
		return fmt.Errorf("CI_FIX cascade depth cap exceeded (%d)", r.CiFixMaxDepth)
	}

	if _, err := r.Store.CreateTask(ctx, state.CreateTaskParams{
		PhaseID: phaseID, Title: outcome.FixTask.Title, Description: outcome.FixTask.Description,
		Assignee: outcome.FixTask.Assignee, Dependencies: outcome.FixTask.Dependencies, Status: outcome.FixTask.Status,
	}); err != nil {
		return fmt.Errorf("create tester fix-task: %w", err)
	}

	r.publishEvent(phaseID, events.FamilyTesterRecovery, events.LevelImportant, "tester failed", outcome.FixTask.Title)
	return fmt.Errorf("tester failed after %s", triggerTask.Title)
}

// dedupFixTask reports whether an existing task already covers the
// proposed fix-task: same title, same trigger-task dependency, or any
// shared dependency.
func dedupFixTask(existing []model.Task, proposed model.Task) bool {
	for _, t := range existing {
		if t.Status != model.TaskCIFix {
			continue
		}
		if t.Title == proposed.Title {
			return true
		}
		if sharesDependency(t.Dependencies, proposed.Dependencies) {
			return true
		}
	}
	return false
}

func sharesDependency(a, b []uuid.UUID) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

// fixTaskChainDepth walks how many CI_FIX generations deep the proposed
// task's dependency chain already runs.
func fixTaskChainDepth(existing []model.Task, proposed model.Task) int {
	byID := make(map[uuid.UUID]model.Task, len(existing))
	for _, t := range existing {
		byID[t.ID] = t
	}

	depth := 0
	frontier := proposed.Dependencies
	for len(frontier) > 0 {
		var next []uuid.UUID
		sawFixTask := false
		for _, id := range frontier {
			t, ok := byID[id]
			if !ok || t.Status != model.TaskCIFix {
				continue
			}
			sawFixTask = true
			next = append(next, t.Dependencies...)
		}
		if !sawFixTask {
			break
		}
		depth++
		frontier = next
	}
	return depth
}

func (r *PhaseRunner) failPhase(ctx context.Context, phaseID uuid.UUID, kind model.FailureKind, cause error) error {
	r.fireHook(ctx, hooks.OnCIFailed, map[string]any{"phaseId": phaseID, "kind": kind, "cause": cause.Error()})
	r.publishEvent(phaseID, events.FamilyTerminalOutcome, events.LevelCritical, "phase failed", cause.Error())
	return r.Store.SetPhaseStatus(ctx, state.SetPhaseStatusParams{
		PhaseID: phaseID, Status: model.PhaseCIFailed, FailureKind: kind, CIStatusContext: cause.Error(),
	})
}

func findPhase(snapshot state.Snapshot, phaseID uuid.UUID) (model.Phase, error) {
	for _, p := range snapshot.Phases {
		if p.ID == phaseID {
			return p, nil
		}
	}
	return model.Phase{}, &state.PhaseNotFoundError{PhaseID: phaseID}
}
