// Package model defines the data types shared across the phase-execution
// engine: phases, tasks, and the small value types that travel between
// components.
package model

import "github.com/google/uuid"

// PhaseStatus is the state of the phase state machine.
type PhaseStatus string

const (
	PhasePlanning        PhaseStatus = "PLANNING"
	PhaseBranching       PhaseStatus = "BRANCHING"
	PhaseCoding          PhaseStatus = "CODING"
	PhaseCreatingPR      PhaseStatus = "CREATING_PR"
	PhaseAwaitingCI      PhaseStatus = "AWAITING_CI"
	PhaseReadyForReview  PhaseStatus = "READY_FOR_REVIEW"
	PhaseCIFailed        PhaseStatus = "CI_FAILED"
	PhaseDone            PhaseStatus = "DONE"
)

// TerminalStatuses is the set of phase statuses that end the state machine,
// some of which may still be RESUMABLE if actionable tasks remain.
var TerminalStatuses = map[PhaseStatus]bool{
	PhaseDone:           true,
	PhaseAwaitingCI:     true,
	PhaseReadyForReview: true,
	PhaseCIFailed:       true,
}

// FailureKind annotates why a phase landed in CI_FAILED.
type FailureKind string

const (
	FailureKindRemoteCI    FailureKind = "REMOTE_CI"
	FailureKindRecovery    FailureKind = "RECOVERY_EXHAUSTED"
	FailureKindTester      FailureKind = "TESTER"
	FailureKindValidation  FailureKind = "VALIDATION_EXHAUSTED"
)

// Phase is the top-level unit of work: it owns a branch, a task list, and
// maps one-to-one to a pull request.
type Phase struct {
	ID              uuid.UUID
	Name            string
	BranchName      string
	Status          PhaseStatus
	PRUrl           string
	CIStatusContext string
	FailureKind     FailureKind
	Tasks           []Task
}

// TaskStatus is the lifecycle status of a single task within a phase.
type TaskStatus string

const (
	TaskTODO       TaskStatus = "TODO"
	TaskInProgress TaskStatus = "IN_PROGRESS"
	TaskDone       TaskStatus = "DONE"
	TaskFailed     TaskStatus = "FAILED"
	TaskCIFix      TaskStatus = "CI_FIX"
)

// AdapterID is the closed enumeration of supported external worker CLIs.
type AdapterID string

const (
	AdapterClaudeCode AdapterID = "claude-code"
	AdapterCodex      AdapterID = "codex"
	AdapterAider      AdapterID = "aider"
	AdapterMockCLI    AdapterID = "MOCK_CLI"
	AdapterUnassigned AdapterID = ""
)

// Task is a single unit of scheduled work owned exclusively by a Phase.
type Task struct {
	ID                 uuid.UUID
	Title              string
	Description        string
	Status             TaskStatus
	Assignee           AdapterID
	Dependencies       []uuid.UUID
	ErrorLogs          string
	ErrorCategory      ExceptionCategory
	AdapterFailureKind AdapterFailureKind
	ResultContext      string
}

// NewPhase constructs a Phase with a fresh ID in the PLANNING status.
func NewPhase(name, branchName string) *Phase {
	return &Phase{
		ID:         uuid.New(),
		Name:       name,
		BranchName: branchName,
		Status:     PhasePlanning,
	}
}

// NewTask constructs a Task with a fresh ID, defaulting to TODO/unassigned.
func NewTask(title, description string) Task {
	return Task{
		ID:          uuid.New(),
		Title:       title,
		Description: description,
		Status:      TaskTODO,
		Assignee:    AdapterUnassigned,
	}
}
