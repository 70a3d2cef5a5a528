// Package recovery implements the exception-recovery loop: one failed
// task or phase transition goes in, an authorized adapter invocation and a
// validated, postcondition-checked RecoveryAttemptRecord come out.
package recovery

import (
	"context"
	"fmt"
	"strings"

	"github.com/ixado-dev/ixado/internal/authz"
	"github.com/ixado-dev/ixado/internal/model"
)

// dirtyWorktreeNudge is the literal attempt-1 prompt for DIRTY_WORKTREE: a
// plain cleanup instruction with no JSON contract attached.
const dirtyWorktreeNudge = "You left uncommitted changes. Please `git add` and `git commit` all your work with a descriptive message, then verify the repository is clean."

// AuthorizationError is returned when the exception-recovery action itself
// is denied.
type AuthorizationError struct {
	Decision model.AuthDecision
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("exception recovery not authorized: %s", e.Decision.Reason)
}

// RunInternalWork invokes the assigned adapter with prompt/resume and
// returns its combined stdout. It is the engine's sole collaborator
// contract for actually talking to an external CLI.
type RunInternalWork func(ctx context.Context, prompt string, resume bool) (stdout string, err error)

// VerifyPostcondition re-checks the real-world condition a category's fix
// claims to have established (e.g. DIRTY_WORKTREE -> working tree clean).
type VerifyPostcondition func(ctx context.Context, category model.ExceptionCategory) (bool, error)

// Authorizer is the narrow collaborator the loop needs from the
// authorization evaluator.
type Authorizer interface {
	Authorize(actionKey string) model.AuthDecision
}

// AuditLogger receives one structured event per recovery milestone.
type AuditLogger interface {
	Log(event string, fields map[string]any)
}

// Request is everything a single recovery attempt needs.
type Request struct {
	Cwd                 string
	Assignee            model.AdapterID
	Exception           model.ExceptionMetadata
	AttemptNumber       int
	RunInternalWork     RunInternalWork
	VerifyPostcondition VerifyPostcondition
}

// Loop drives runExceptionRecovery for a single attempt.
type Loop struct {
	Authorizer Authorizer
	Audit      AuditLogger
	NewID      func() string
	Now        func() string
}

// Run executes one recovery attempt and returns its record. A denied
// authorization check returns an *AuthorizationError instead of a record.
func (l *Loop) Run(ctx context.Context, req Request) (model.RecoveryAttemptRecord, error) {
	decision := l.Authorizer.Authorize(authz.ActionOrchestratorExceptionRecovery)
	if !decision.Allowed {
		return model.RecoveryAttemptRecord{}, &AuthorizationError{Decision: decision}
	}

	l.log("recovery:detected", map[string]any{
		"category":      req.Exception.Category,
		"attemptNumber": req.AttemptNumber,
	})

	prompt, resume, skipJSON := buildRecoveryPrompt(req.Exception, req.AttemptNumber)

	l.log("recovery:adapter-invoked", map[string]any{
		"category": req.Exception.Category,
		"resume":   resume,
	})

	stdout, err := req.RunInternalWork(ctx, prompt, resume)
	if err != nil {
		return model.RecoveryAttemptRecord{}, fmt.Errorf("recovery adapter invocation failed: %w", err)
	}

	var result model.RecoveryResult
	if skipJSON {
		result = model.RecoveryResult{Status: model.RecoveryFixed, Reasoning: "adapter instructed to stage and commit outstanding changes"}
	} else {
		result, err = extractStrictJSON(stdout)
		if err != nil {
			return model.RecoveryAttemptRecord{}, fmt.Errorf("recovery result parse failed: %w", err)
		}
		if err := validateActions(result.ActionsTaken); err != nil {
			return model.RecoveryAttemptRecord{}, err
		}
	}

	if result.Status == model.RecoveryFixed && req.VerifyPostcondition != nil {
		ok, verr := req.VerifyPostcondition(ctx, req.Exception.Category)
		if verr != nil {
			return model.RecoveryAttemptRecord{}, fmt.Errorf("postcondition verification failed: %w", verr)
		}
		if !ok {
			result.Status = model.RecoveryUnfixable
			result.Reasoning = result.Reasoning + " (postcondition verification failed: adapter claimed fixed but condition still holds)"
		}
	}

	l.log("recovery:parsed-result", map[string]any{
		"status": result.Status,
	})

	return model.RecoveryAttemptRecord{
		ID:            l.newID(),
		OccurredAt:    l.now(),
		AttemptNumber: req.AttemptNumber,
		Exception:     req.Exception,
		Result:        result,
	}, nil
}

// buildRecoveryPrompt implements the DIRTY_WORKTREE attempt-1 special case
// and the strict-JSON contract used for every other case.
func buildRecoveryPrompt(exception model.ExceptionMetadata, attemptNumber int) (prompt string, resume bool, skipJSON bool) {
	if exception.Category == model.CategoryDirtyWorktree && attemptNumber == 1 {
		return dirtyWorktreeNudge, true, true
	}

	var sb strings.Builder
	sb.WriteString("An exception occurred that needs to be fixed. Respond with a single JSON object and nothing else, matching exactly this schema (no extra fields):\n")
	sb.WriteString(`{"status": "fixed" | "unfixable", "reasoning": string, "actionsTaken": [string], "filesTouched": [string]}`)
	sb.WriteString("\n\n")
	sb.WriteString(fmt.Sprintf("Category: %s\n", exception.Category))
	sb.WriteString(fmt.Sprintf("Message: %s\n", exception.Message))
	if exception.Category == model.CategoryAgentFailure {
		sb.WriteString(fmt.Sprintf("Adapter failure kind: %s\n", exception.AdapterFailureKind))
	}
	sb.WriteString("\nOnly `git add` and `git commit` are permitted git actions; `git push` and `git rebase` are forbidden.\n")

	return sb.String(), false, false
}

// validateActions enforces the git-action guardrail: of any action that
// begins with "git " (case-insensitive), only "git add" and "git commit"
// forms are allowed. Non-git actions pass through unchanged.
func validateActions(actions []string) error {
	for _, action := range actions {
		trimmed := strings.TrimSpace(action)
		lower := strings.ToLower(trimmed)
		if !strings.HasPrefix(lower, "git ") && lower != "git" {
			continue
		}
		if strings.HasPrefix(lower, "git add") || strings.HasPrefix(lower, "git commit") {
			continue
		}
		return fmt.Errorf("recovery action %q violates git guardrails: only git add/commit are permitted", action)
	}
	return nil
}

func (l *Loop) log(event string, fields map[string]any) {
	if l.Audit != nil {
		l.Audit.Log(event, fields)
	}
}

func (l *Loop) newID() string {
	if l.NewID != nil {
		return l.NewID()
	}
	return ""
}

func (l *Loop) now() string {
	if l.Now != nil {
		return l.Now()
	}
	return ""
}
