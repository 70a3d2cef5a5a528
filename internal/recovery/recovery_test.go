package recovery

import (
	"context"
	"testing"

	"github.com/ixado-dev/ixado/internal/model"
)

type allowAuthorizer struct{ decision model.AuthDecision }

func (a allowAuthorizer) Authorize(string) model.AuthDecision { return a.decision }

type noopAudit struct{ events []string }

func (n *noopAudit) Log(event string, _ map[string]any) { n.events = append(n.events, event) }

func TestLoop_Run_DirtyWorktreeAttempt1_SkipsJSON(t *testing.T) {
	audit := &noopAudit{}
	var sentPrompt string
	var sentResume bool

	loop := &Loop{
		Authorizer: allowAuthorizer{decision: model.AuthDecision{Allowed: true}},
		Audit:      audit,
		NewID:      func() string { return "rec-1" },
		Now:        func() string { return "2026-01-01T00:00:00Z" },
	}

	req := Request{
		Exception:     model.ExceptionMetadata{Category: model.CategoryDirtyWorktree, Message: "dirty"},
		AttemptNumber: 1,
		RunInternalWork: func(ctx context.Context, prompt string, resume bool) (string, error) {
			sentPrompt = prompt
			sentResume = resume
			return "", nil
		},
		VerifyPostcondition: func(ctx context.Context, category model.ExceptionCategory) (bool, error) {
			return true, nil
		},
	}

	record, err := loop.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sentPrompt != dirtyWorktreeNudge {
		t.Fatalf("expected literal nudge prompt, got %q", sentPrompt)
	}
	if !sentResume {
		t.Fatal("expected resume=true for dirty-worktree attempt 1")
	}
	if record.Result.Status != model.RecoveryFixed {
		t.Fatalf("expected fixed status, got %s", record.Result.Status)
	}
}

func TestLoop_Run_DeniedAuthorization(t *testing.T) {
	loop := &Loop{
		Authorizer: allowAuthorizer{decision: model.AuthDecision{Allowed: false, Reason: model.DenyNoRole}},
	}
	_, err := loop.Run(context.Background(), Request{})
	if err == nil {
		t.Fatal("expected authorization error")
	}
	if _, ok := err.(*AuthorizationError); !ok {
		t.Fatalf("expected *AuthorizationError, got %T", err)
	}
}

func TestLoop_Run_StrictJSONParsing(t *testing.T) {
	loop := &Loop{
		Authorizer: allowAuthorizer{decision: model.AuthDecision{Allowed: true}},
		Audit:      &noopAudit{},
	}

	req := Request{
		Exception:     model.ExceptionMetadata{Category: model.CategoryMissingCommit, Message: "no commit found"},
		AttemptNumber: 1,
		RunInternalWork: func(ctx context.Context, prompt string, resume bool) (string, error) {
			return "```json\n{\"status\": \"fixed\", \"reasoning\": \"committed\", \"actionsTaken\": [\"git add .\", \"git commit -m x\"], \"filesTouched\": [\"a.go\"]}\n```", nil
		},
		VerifyPostcondition: func(ctx context.Context, category model.ExceptionCategory) (bool, error) {
			return true, nil
		},
	}

	record, err := loop.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if record.Result.Status != model.RecoveryFixed {
		t.Fatalf("expected fixed, got %s", record.Result.Status)
	}
}

func TestLoop_Run_ForbiddenGitActionRejected(t *testing.T) {
	loop := &Loop{
		Authorizer: allowAuthorizer{decision: model.AuthDecision{Allowed: true}},
		Audit:      &noopAudit{},
	}

	req := Request{
		Exception:     model.ExceptionMetadata{Category: model.CategoryMissingCommit},
		AttemptNumber: 2,
		RunInternalWork: func(ctx context.Context, prompt string, resume bool) (string, error) {
			return `{"status": "fixed", "reasoning": "pushed it", "actionsTaken": ["git push origin main"], "filesTouched": []}`, nil
		},
	}

	_, err := loop.Run(context.Background(), req)
	if err == nil {
		t.Fatal("expected error for forbidden git push action")
	}
}

func TestLoop_Run_ForbiddenGitActionRejectedCaseInsensitive(t *testing.T) {
	loop := &Loop{
		Authorizer: allowAuthorizer{decision: model.AuthDecision{Allowed: true}},
		Audit:      &noopAudit{},
	}

	req := Request{
		Exception:     model.ExceptionMetadata{Category: model.CategoryMissingCommit},
		AttemptNumber: 2,
		RunInternalWork: func(ctx context.Context, prompt string, resume bool) (string, error) {
			return `{"status": "fixed", "reasoning": "pushed it", "actionsTaken": ["Git Push origin main"], "filesTouched": []}`, nil
		},
	}

	_, err := loop.Run(context.Background(), req)
	if err == nil {
		t.Fatal("expected error for forbidden git push action regardless of case")
	}
}

func TestLoop_Run_PostconditionFailureDowngradesToUnfixable(t *testing.T) {
	loop := &Loop{
		Authorizer: allowAuthorizer{decision: model.AuthDecision{Allowed: true}},
		Audit:      &noopAudit{},
	}

	req := Request{
		Exception:     model.ExceptionMetadata{Category: model.CategoryDirtyWorktree},
		AttemptNumber: 2,
		RunInternalWork: func(ctx context.Context, prompt string, resume bool) (string, error) {
			return `{"status": "fixed", "reasoning": "done", "actionsTaken": ["git add ."], "filesTouched": []}`, nil
		},
		VerifyPostcondition: func(ctx context.Context, category model.ExceptionCategory) (bool, error) {
			return false, nil
		},
	}

	record, err := loop.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if record.Result.Status != model.RecoveryUnfixable {
		t.Fatalf("expected unfixable after postcondition failure, got %s", record.Result.Status)
	}
}
