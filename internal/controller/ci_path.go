package controller

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ixado-dev/ixado/internal/authz"
	"github.com/ixado-dev/ixado/internal/ci"
	"github.com/ixado-dev/ixado/internal/events"
	"github.com/ixado-dev/ixado/internal/hooks"
	"github.com/ixado-dev/ixado/internal/model"
	"github.com/ixado-dev/ixado/internal/process"
	"github.com/ixado-dev/ixado/internal/state"
)

// runCIPath runs C8 -> C9 -> C10 after the execution loop finishes
// cleanly. With CI disabled, the phase simply finishes DONE.
func (r *PhaseRunner) runCIPath(ctx context.Context, phaseID uuid.UUID) error {
	if !r.CIEnabled {
		r.publishEvent(phaseID, events.FamilyTerminalOutcome, events.LevelImportant, "phase done", "CI disabled")
		return r.Store.SetPhaseStatus(ctx, state.SetPhaseStatusParams{PhaseID: phaseID, Status: model.PhaseDone})
	}

	snapshot, err := r.Store.GetState(ctx)
	if err != nil {
		return fmt.Errorf("read state before CI: %w", err)
	}
	phase, err := findPhase(snapshot, phaseID)
	if err != nil {
		return err
	}

	prURL, err := r.createPR(ctx, phaseID, phase)
	if err != nil {
		return err
	}

	if err := r.Store.SetPhasePrUrl(ctx, phaseID, prURL); err != nil {
		return fmt.Errorf("record PR url: %w", err)
	}
	if err := r.Store.SetPhaseStatus(ctx, state.SetPhaseStatusParams{PhaseID: phaseID, Status: model.PhaseAwaitingCI}); err != nil {
		return fmt.Errorf("set phase status AWAITING_CI: %w", err)
	}

	summary, err := r.Poller.Poll(ctx, r.Cwd, prURL)
	if err != nil {
		return fmt.Errorf("poll CI status: %w", err)
	}

	if summary.Overall != model.CheckSuccess {
		return r.mapCIFailureToFixTasks(ctx, phaseID, summary, prURL)
	}

	return r.runCIValidation(ctx, phaseID, prURL)
}

// createPR drives the integrator, recovering once from a
// *ci.MissingCommitError (staging found nothing to commit); any other
// integrator error is returned without recovery.
func (r *PhaseRunner) createPR(ctx context.Context, phaseID uuid.UUID, phase model.Phase) (string, error) {
	if err := r.Store.SetPhaseStatus(ctx, state.SetPhaseStatusParams{PhaseID: phaseID, Status: model.PhaseCreatingPR}); err != nil {
		return "", fmt.Errorf("set phase status CREATING_PR: %w", err)
	}

	req := ci.CreatePRRequest{
		PhaseName: phase.Name, CompletedTasks: completedTaskTitles(phase.Tasks),
		Repository: r.Repository, HeadBranch: phase.BranchName, Templates: r.PRTemplates,
		DefaultLabels: r.PRDefaultLabels, Assignees: r.PRAssignees, Draft: r.PRDraft,
	}

	prURL, err := r.Integrator.Run(ctx, r.Cwd, req)
	if err == nil {
		return prURL, nil
	}

	if _, denied := err.(*ci.AuthorizationError); denied {
		return "", fmt.Errorf("create PR: %w", err)
	}

	exception := model.ExceptionMetadata{Category: model.CategoryUnknown, Message: err.Error(), PhaseID: uuidPtr(phaseID)}
	if _, missingCommit := err.(*ci.MissingCommitError); missingCommit {
		exception.Category = model.CategoryMissingCommit
	}
	if !exception.Recoverable() {
		return "", fmt.Errorf("create PR: %w", err)
	}

	result, recErr := r.runRecoveryAttempt(ctx, phaseID, nil, exception, r.DefaultAssignee, 1, nil)
	if recErr != nil {
		return "", recErr
	}
	if result.Status != model.RecoveryFixed {
		return "", &ExhaustedError{Exception: exception, Attempts: 1}
	}

	return r.Integrator.Run(ctx, r.Cwd, req)
}

func completedTaskTitles(tasks []model.Task) []string {
	var titles []string
	for _, t := range tasks {
		if t.Status == model.TaskDone {
			titles = append(titles, t.Title)
		}
	}
	return titles
}

// mapCIFailureToFixTasks derives and persists fix-tasks from a failing CI
// run, then sets the phase CI_FAILED with a REMOTE_CI failure kind so the
// RESUMABLE preflight path can pick it back up.
func (r *PhaseRunner) mapCIFailureToFixTasks(ctx context.Context, phaseID uuid.UUID, summary model.CiStatusSummary, prURL string) error {
	snapshot, err := r.Store.GetState(ctx)
	if err != nil {
		return fmt.Errorf("read state for CI mapping: %w", err)
	}
	phase, err := findPhase(snapshot, phaseID)
	if err != nil {
		return err
	}

	mapped, err := ci.MapToFixTasks(summary, phase.Tasks, prURL, ci.MapperConfig{
		FanOutCap: r.CiFanOutCap, DepthCap: r.CiFixMaxDepth,
	}, maxExistingFixDepth(phase.Tasks))
	if err != nil {
		return fmt.Errorf("map CI failure to fix-tasks: %w", err)
	}

	for _, task := range mapped.Created {
		if _, err := r.Store.CreateTask(ctx, state.CreateTaskParams{
			PhaseID: phaseID, Title: task.Title, Description: task.Description,
			Assignee: task.Assignee, Dependencies: task.Dependencies, Status: task.Status,
		}); err != nil {
			return fmt.Errorf("create CI fix-task: %w", err)
		}
	}

	context := fmt.Sprintf("CI_FIX mapping: created=%d, skipped_existing=%d", len(mapped.Created), mapped.Skipped)
	r.fireHook(ctx, hooks.OnCIFailed, map[string]any{"phaseId": phaseID, "kind": model.FailureKindRemoteCI, "context": context})
	r.publishEvent(phaseID, events.FamilyCIPRLifecycle, events.LevelCritical, "CI checks failed", context)
	return r.Store.SetPhaseStatus(ctx, state.SetPhaseStatusParams{
		PhaseID: phaseID, Status: model.PhaseCIFailed, FailureKind: model.FailureKindRemoteCI, CIStatusContext: context,
	})
}

func maxExistingFixDepth(tasks []model.Task) int {
	depth := 0
	for _, t := range tasks {
		if t.Status == model.TaskCIFix {
			d := fixTaskChainDepth(tasks, t) + 1
			if d > depth {
				depth = d
			}
		}
	}
	return depth
}

// runCIValidation runs the reviewer/fixer loop over the PR's working
// diff, marking the PR ready when configured to and setting the phase's
// terminal status accordingly.
func (r *PhaseRunner) runCIValidation(ctx context.Context, phaseID uuid.UUID, prURL string) error {
	loop := ci.Loop{
		MaxRetries: r.MaxCiValidationRetries,
		CurrentDiff: func(ctx context.Context) (string, error) {
			result, err := r.Runner.Run(ctx, process.Request{Command: "git", Args: []string{"diff", r.CIBaseBranch}, Cwd: r.Cwd})
			if err != nil {
				return "", err
			}
			return strings.TrimSpace(result.Stdout), nil
		},
		InvokeReviewer: func(ctx context.Context, diff string) (ci.ReviewVerdict, error) {
			return r.invokeValidationArchetype(ctx, phaseID, reviewerPrompt(diff), false)
		},
		InvokeFixer: func(ctx context.Context, comments []string, resume bool) error {
			_, err := r.Store.RunInternalWork(ctx, state.RunInternalWorkParams{
				Assignee: r.DefaultAssignee, Prompt: fixerPrompt(comments), PhaseID: &phaseID, Resume: resume,
			})
			return err
		},
	}

	outcome, err := loop.Run(ctx)
	if err != nil {
		return fmt.Errorf("CI validation loop: %w", err)
	}

	if !outcome.Approved {
		context := fmt.Sprintf("CI validation: %s after %d fix attempts", outcome.Status, r.MaxCiValidationRetries)
		r.fireHook(ctx, hooks.OnCIFailed, map[string]any{"phaseId": phaseID, "kind": model.FailureKindValidation, "context": context})
		r.publishEvent(phaseID, events.FamilyCIPRLifecycle, events.LevelCritical, "CI validation exhausted", context)
		return r.Store.SetPhaseStatus(ctx, state.SetPhaseStatusParams{
			PhaseID: phaseID, Status: model.PhaseCIFailed, FailureKind: model.FailureKindValidation, CIStatusContext: context,
		})
	}

	if r.PRDraft && r.MarkReadyOnApproval {
		if err := r.markPRReady(ctx, prURL); err != nil {
			return err
		}
	}

	r.publishEvent(phaseID, events.FamilyCIPRLifecycle, events.LevelImportant, "ready for review", prURL)
	return r.Store.SetPhaseStatus(ctx, state.SetPhaseStatusParams{PhaseID: phaseID, Status: model.PhaseReadyForReview})
}

func (r *PhaseRunner) invokeValidationArchetype(ctx context.Context, phaseID uuid.UUID, prompt string, resume bool) (ci.ReviewVerdict, error) {
	result, err := r.Store.RunInternalWork(ctx, state.RunInternalWorkParams{
		Assignee: r.DefaultAssignee, Prompt: prompt, PhaseID: &phaseID, Resume: resume,
	})
	if err != nil {
		return ci.ReviewVerdict{}, err
	}
	return ci.ParseReviewVerdict(result.Stdout)
}

func (r *PhaseRunner) markPRReady(ctx context.Context, prURL string) error {
	decision := r.Authorizer.Authorize(authz.ActionGitPRMerge)
	if !decision.Allowed {
		return &AuthorizationDeniedError{Action: authz.ActionGitPRMerge, Reason: string(decision.Reason)}
	}
	_, err := r.Runner.Run(ctx, process.Request{Command: "gh", Args: []string{"pr", "ready", prURL}, Cwd: r.Cwd})
	return err
}

func reviewerPrompt(diff string) string {
	return "Review this diff and respond with a single JSON object {\"verdict\": \"APPROVED\"|\"CHANGES_REQUESTED\", \"comments\": [string]} and nothing else.\n\n" + diff
}

func fixerPrompt(comments []string) string {
	return fmt.Sprintf("Address these review comments:\n- %s", strings.Join(comments, "\n- "))
}
