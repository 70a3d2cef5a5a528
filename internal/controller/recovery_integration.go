package controller

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ixado-dev/ixado/internal/events"
	"github.com/ixado-dev/ixado/internal/hooks"
	"github.com/ixado-dev/ixado/internal/model"
	"github.com/ixado-dev/ixado/internal/recovery"
	"github.com/ixado-dev/ixado/internal/state"
)

// ExhaustedError is returned when a recoverable exception survives every
// attempt up to maxRecoveryAttempts.
type ExhaustedError struct {
	Exception model.ExceptionMetadata
	Attempts  int
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("recovery exhausted after %d attempts for %s: %s", e.Attempts, e.Exception.Category, e.Exception.Message)
}

// runRecoveryAttempt executes exactly one runExceptionRecovery attempt and
// records it against the owning phase/task, returning the parsed result.
func (r *PhaseRunner) runRecoveryAttempt(
	ctx context.Context,
	phaseID uuid.UUID,
	taskID *uuid.UUID,
	exception model.ExceptionMetadata,
	assignee model.AdapterID,
	attemptNumber int,
	verify recovery.VerifyPostcondition,
) (model.RecoveryResult, error) {
	runWork := func(ctx context.Context, prompt string, resume bool) (string, error) {
		result, err := r.Store.RunInternalWork(ctx, state.RunInternalWorkParams{
			Assignee: assignee, Prompt: prompt, PhaseID: &phaseID, TaskID: taskID, Resume: resume,
		})
		return result.Stdout, err
	}

	record, err := r.RecoveryLoop.Run(ctx, recovery.Request{
		Cwd: r.Cwd, Assignee: assignee, Exception: exception,
		AttemptNumber: attemptNumber, RunInternalWork: runWork, VerifyPostcondition: verify,
	})
	if err != nil {
		return model.RecoveryResult{}, err
	}

	if recErr := r.Store.RecordRecoveryAttempt(ctx, state.RecordRecoveryAttemptParams{
		PhaseID: phaseID, TaskID: taskID, AttemptNumber: attemptNumber, Exception: exception, Result: record.Result,
	}); recErr != nil {
		return model.RecoveryResult{}, fmt.Errorf("record recovery attempt: %w", recErr)
	}

	r.fireHook(ctx, hooks.OnRecovery, map[string]any{
		"phaseId": phaseID, "taskId": taskID, "category": exception.Category, "attempt": attemptNumber, "status": record.Result.Status,
	})
	r.publishEvent(phaseID, events.FamilyTesterRecovery, events.LevelImportant, "recovery attempt "+string(record.Result.Status), exception.Message)

	return record.Result, nil
}

// attemptRecovery drives runExceptionRecovery up to maxRecoveryAttempts
// times against the same exception (used for a single precondition, e.g.
// a dirty worktree, rather than an entire failed task run). A
// non-recoverable exception, an authorization denial, or a
// parse/validation failure returns immediately. Exhaustion returns
// *ExhaustedError. Success (status == fixed) returns nil.
func (r *PhaseRunner) attemptRecovery(
	ctx context.Context,
	phaseID uuid.UUID,
	taskID *uuid.UUID,
	exception model.ExceptionMetadata,
	assignee model.AdapterID,
	verify recovery.VerifyPostcondition,
) error {
	if !exception.Recoverable() {
		return fmt.Errorf("non-recoverable exception %s: %s", exception.Category, exception.Message)
	}

	maxAttempts := r.Config.MaxRecoveryAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, err := r.runRecoveryAttempt(ctx, phaseID, taskID, exception, assignee, attempt, verify)
		if err != nil {
			return err
		}
		if result.Status == model.RecoveryFixed {
			return nil
		}
	}

	return &ExhaustedError{Exception: exception, Attempts: maxAttempts}
}
