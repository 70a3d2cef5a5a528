package controller

import (
	"context"
	"testing"

	"github.com/ixado-dev/ixado/internal/model"
	"github.com/ixado-dev/ixado/internal/process"
	"github.com/ixado-dev/ixado/internal/state"
)

func TestRunBranching_ChecksOutExistingBranch(t *testing.T) {
	phase := *model.NewPhase("p", "feature/x")
	store := state.NewMemoryStore([]model.Phase{phase})
	runner := newScriptedRunner()
	runner.on("git", []string{"rev-parse", "--abbrev-ref", "HEAD"}, func(req process.Request) (process.Result, error) {
		return process.Result{Stdout: "develop\n"}, nil
	})

	r := newTestRunner(testConfig(), runner, store)
	if err := r.runBranching(context.Background(), phase.ID, "feature/x"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !containsCall(runner.calls, "git checkout feature/x") {
		t.Fatalf("expected checkout call, got %v", runner.calls)
	}
}

func TestRunBranching_AlreadyOnBranchSkipsCheckout(t *testing.T) {
	phase := *model.NewPhase("p", "feature/x")
	store := state.NewMemoryStore([]model.Phase{phase})
	runner := newScriptedRunner()
	runner.on("git", []string{"rev-parse", "--abbrev-ref", "HEAD"}, func(req process.Request) (process.Result, error) {
		return process.Result{Stdout: "feature/x\n"}, nil
	})

	r := newTestRunner(testConfig(), runner, store)
	if err := r.runBranching(context.Background(), phase.ID, "feature/x"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if containsCall(runner.calls, "git checkout feature/x") {
		t.Fatalf("expected no checkout call, got %v", runner.calls)
	}
}

func TestRunBranching_CreatesBranchWhenCheckoutFails(t *testing.T) {
	phase := *model.NewPhase("p", "feature/new")
	store := state.NewMemoryStore([]model.Phase{phase})
	runner := newScriptedRunner()
	runner.on("git", []string{"rev-parse", "--abbrev-ref", "HEAD"}, func(req process.Request) (process.Result, error) {
		return process.Result{Stdout: "main\n"}, nil
	})
	runner.on("git", []string{"checkout", "feature/new"}, func(req process.Request) (process.Result, error) {
		return process.Result{}, &process.ExecutionError{Request: req, Result: process.Result{ExitCode: 1}}
	})

	r := newTestRunner(testConfig(), runner, store)
	if err := r.runBranching(context.Background(), phase.ID, "feature/new"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !containsCall(runner.calls, "git checkout -b feature/new") {
		t.Fatalf("expected create-branch call, got %v", runner.calls)
	}
}

func TestEnsureCleanWorktree_RecoversDirtyTree(t *testing.T) {
	phase := *model.NewPhase("p", "feature/x")
	store := state.NewMemoryStore([]model.Phase{phase})

	dirty := true
	runner := newScriptedRunner()
	runner.on("git", []string{"status", "--porcelain"}, func(req process.Request) (process.Result, error) {
		if dirty {
			return process.Result{Stdout: " M file.go\n"}, nil
		}
		return process.Result{Stdout: ""}, nil
	})

	r := newTestRunner(testConfig(), runner, store)
	store.RunWork = func(ctx context.Context, p state.RunInternalWorkParams) (state.RunInternalWorkResult, error) {
		dirty = false
		return state.RunInternalWorkResult{Stdout: "```json\n{\"status\": \"FIXED\", \"summary\": \"committed stray changes\"}\n```"}, nil
	}

	if err := r.ensureCleanWorktree(context.Background(), phase.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func containsCall(calls []string, want string) bool {
	for _, c := range calls {
		if c == want {
			return true
		}
	}
	return false
}
