package controller

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ixado-dev/ixado/internal/model"
	"github.com/ixado-dev/ixado/internal/process"
	"github.com/ixado-dev/ixado/internal/state"
)

// runBranching drives the BRANCHING transition: ensure a clean worktree
// (recovering from a dirty one), then land on the phase's branch, either
// by checking it out or, failing that, creating it from HEAD.
func (r *PhaseRunner) runBranching(ctx context.Context, phaseID uuid.UUID, branchName string) error {
	if err := r.Store.SetPhaseStatus(ctx, state.SetPhaseStatusParams{PhaseID: phaseID, Status: model.PhaseBranching}); err != nil {
		return fmt.Errorf("set phase status BRANCHING: %w", err)
	}

	if err := r.ensureCleanWorktree(ctx, phaseID); err != nil {
		return err
	}

	current, err := r.currentBranch(ctx)
	if err != nil {
		return fmt.Errorf("read current branch: %w", err)
	}
	if current == branchName {
		return nil
	}

	if _, err := r.Runner.Run(ctx, process.Request{Command: "git", Args: []string{"checkout", branchName}, Cwd: r.Cwd}); err == nil {
		return nil
	}

	if _, err := r.Runner.Run(ctx, process.Request{Command: "git", Args: []string{"checkout", "-b", branchName}, Cwd: r.Cwd}); err != nil {
		return fmt.Errorf("create branch %s from HEAD: %w", branchName, err)
	}
	return nil
}

// ensureCleanWorktree checks `git status --porcelain`; a dirty tree is
// routed through recovery with category DIRTY_WORKTREE, postcondition
// re-checking cleanliness.
func (r *PhaseRunner) ensureCleanWorktree(ctx context.Context, phaseID uuid.UUID) error {
	dirty, err := r.worktreeDirty(ctx)
	if err != nil {
		return fmt.Errorf("check worktree cleanliness: %w", err)
	}
	if !dirty {
		return nil
	}

	exception := model.ExceptionMetadata{
		Category: model.CategoryDirtyWorktree,
		Message:  "working tree has uncommitted changes",
		PhaseID:  uuidPtr(phaseID),
	}

	verify := func(ctx context.Context, category model.ExceptionCategory) (bool, error) {
		stillDirty, err := r.worktreeDirty(ctx)
		if err != nil {
			return false, err
		}
		return !stillDirty, nil
	}

	return r.attemptRecovery(ctx, phaseID, nil, exception, r.DefaultAssignee, verify)
}

func (r *PhaseRunner) worktreeDirty(ctx context.Context) (bool, error) {
	result, err := r.Runner.Run(ctx, process.Request{Command: "git", Args: []string{"status", "--porcelain"}, Cwd: r.Cwd})
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(result.Stdout) != "", nil
}

func uuidPtr(id uuid.UUID) *string {
	s := id.String()
	return &s
}
