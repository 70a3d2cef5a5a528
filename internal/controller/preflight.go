package controller

import (
	"context"
	"fmt"
	"strings"

	"github.com/ixado-dev/ixado/internal/model"
	"github.com/ixado-dev/ixado/internal/process"
)

// gate is the preflight admission decision for a phase.
type gate string

const (
	gateClosed    gate = "CLOSED"
	gateResumable gate = "RESUMABLE"
	gateOpen      gate = "OPEN"
)

// evaluateGate implements the PhaseExecutionGate rule: CLOSED when the
// phase is terminal and has no actionable task; RESUMABLE when terminal
// but actionable work remains; OPEN otherwise.
func evaluateGate(phase model.Phase) gate {
	terminal := model.TerminalStatuses[phase.Status]
	actionable := hasActionableTask(phase.Tasks)

	switch {
	case terminal && !actionable:
		return gateClosed
	case terminal && actionable:
		return gateResumable
	default:
		return gateOpen
	}
}

func hasActionableTask(tasks []model.Task) bool {
	for _, t := range tasks {
		if t.Status == model.TaskTODO || t.Status == model.TaskCIFix {
			return true
		}
	}
	return false
}

// preflight runs the non-recoverable checks that must hold before any
// state-mutating work begins: a non-empty branch name, gate admission,
// and the base-branch precondition.
func (r *PhaseRunner) preflight(ctx context.Context, phase model.Phase) error {
	if phase.BranchName == "" {
		return &PhasePreflightError{Reason: "phase branchName is empty"}
	}

	g := evaluateGate(phase)
	if g == gateClosed {
		return &PhasePreflightError{Reason: fmt.Sprintf("phase %s is terminal (%s) with no actionable task", phase.ID, phase.Status)}
	}
	if g == gateResumable {
		r.logf("phase %s resumed: terminal status %s with actionable work remaining", phase.ID, phase.Status)
	}

	return r.checkBaseBranchPrecondition(ctx, phase)
}

// checkBaseBranchPrecondition enforces: if the phase branch does not yet
// exist locally, HEAD must equal ciBaseBranch.
func (r *PhaseRunner) checkBaseBranchPrecondition(ctx context.Context, phase model.Phase) error {
	exists, err := r.branchExistsLocally(ctx, phase.BranchName)
	if err != nil {
		return fmt.Errorf("check local branch existence: %w", err)
	}
	if exists {
		return nil
	}

	head, err := r.currentBranch(ctx)
	if err != nil {
		return fmt.Errorf("read current branch: %w", err)
	}
	if head != r.CIBaseBranch {
		return &BaseBranchPreconditionError{Expected: r.CIBaseBranch, Actual: head}
	}
	return nil
}

func (r *PhaseRunner) branchExistsLocally(ctx context.Context, branch string) (bool, error) {
	_, err := r.Runner.Run(ctx, process.Request{
		Command: "git", Args: []string{"rev-parse", "--verify", "--quiet", "refs/heads/" + branch}, Cwd: r.Cwd,
	})
	if err != nil {
		if _, ok := err.(*process.ExecutionError); ok {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *PhaseRunner) currentBranch(ctx context.Context) (string, error) {
	result, err := r.Runner.Run(ctx, process.Request{
		Command: "git", Args: []string{"rev-parse", "--abbrev-ref", "HEAD"}, Cwd: r.Cwd,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(result.Stdout), nil
}
