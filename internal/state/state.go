// Package state defines the external state-store contract the engine
// consumes: a transactional read-modify-write boundary over phases and
// tasks, plus the two calls that actually talk to an external worker
// (startActiveTaskAndWait, runInternalWork). The engine never persists
// this state itself; every implementation lives outside the core.
package state

import (
	"context"

	"github.com/google/uuid"

	"github.com/ixado-dev/ixado/internal/model"
)

// Snapshot is the full project state a Store read returns: every known
// phase, plus which one is active.
type Snapshot struct {
	ActivePhaseID *uuid.UUID
	Phases        []model.Phase
}

// SetPhaseStatusParams updates a phase's status and, optionally, its
// failure annotation and CI status context line.
type SetPhaseStatusParams struct {
	PhaseID         uuid.UUID
	Status          model.PhaseStatus
	FailureKind     model.FailureKind // "" leaves the existing value untouched
	CIStatusContext string            // "" leaves the existing value untouched
}

// StartActiveTaskParams selects a task by its 1-based position within the
// phase's task list and runs it to completion via the external worker.
type StartActiveTaskParams struct {
	PhaseID    uuid.UUID
	TaskNumber int
	Assignee   model.AdapterID
	Resume     bool
}

// CreateTaskParams describes a new task to append to a phase.
type CreateTaskParams struct {
	PhaseID      uuid.UUID
	Title        string
	Description  string
	Assignee     model.AdapterID
	Dependencies []uuid.UUID
	Status       model.TaskStatus
}

// RecordRecoveryAttemptParams persists one recovery attempt's outcome
// against the owning phase (and, when the failure was task-scoped, task).
type RecordRecoveryAttemptParams struct {
	PhaseID       uuid.UUID
	TaskID        *uuid.UUID
	AttemptNumber int
	Exception     model.ExceptionMetadata
	Result        model.RecoveryResult
}

// RunInternalWorkParams invokes an adapter directly, outside of the
// per-task bookkeeping startActiveTaskAndWait applies — used by recovery
// and CI-validation, which need raw adapter stdout rather than a task
// status transition.
type RunInternalWorkParams struct {
	Assignee model.AdapterID
	Prompt   string
	PhaseID  *uuid.UUID
	TaskID   *uuid.UUID
	Resume   bool
}

// RunInternalWorkResult is the adapter's captured output.
type RunInternalWorkResult struct {
	Stdout string
	Stderr string
}

// Store is the narrow transactional contract the engine depends on. Every
// method is a single read-modify-write (or pure read) transaction; the
// engine performs no locking of its own around these calls.
type Store interface {
	GetState(ctx context.Context) (Snapshot, error)
	SetPhaseStatus(ctx context.Context, params SetPhaseStatusParams) error
	SetPhasePrUrl(ctx context.Context, phaseID uuid.UUID, prURL string) error
	StartActiveTaskAndWait(ctx context.Context, params StartActiveTaskParams) (model.TaskStatus, error)
	CreateTask(ctx context.Context, params CreateTaskParams) (model.Task, error)
	ReconcileInProgressTasks(ctx context.Context) (int, error)
	RecordRecoveryAttempt(ctx context.Context, params RecordRecoveryAttemptParams) error
	RunInternalWork(ctx context.Context, params RunInternalWorkParams) (RunInternalWorkResult, error)
}

// PhaseNotFoundError is returned when an active-phase ID points at a phase
// the store no longer has.
type PhaseNotFoundError struct{ PhaseID uuid.UUID }

func (e *PhaseNotFoundError) Error() string {
	return "phase not found: " + e.PhaseID.String()
}

// TaskNotFoundError is returned when a 1-based task position is out of
// range for the phase's task list.
type TaskNotFoundError struct {
	PhaseID    uuid.UUID
	TaskNumber int
}

func (e *TaskNotFoundError) Error() string {
	return "task not found in phase " + e.PhaseID.String()
}

// ResolveActivePhase applies the "activePhaseId -> phase; if absent, first
// phase" rule shared by every Store implementation's caller.
func ResolveActivePhase(snapshot Snapshot) (model.Phase, error) {
	if snapshot.ActivePhaseID == nil {
		if len(snapshot.Phases) == 0 {
			return model.Phase{}, &PhaseNotFoundError{}
		}
		return snapshot.Phases[0], nil
	}
	for _, p := range snapshot.Phases {
		if p.ID == *snapshot.ActivePhaseID {
			return p, nil
		}
	}
	return model.Phase{}, &PhaseNotFoundError{PhaseID: *snapshot.ActivePhaseID}
}
