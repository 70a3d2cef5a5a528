package controller

import (
	"context"
	"testing"

	"github.com/ixado-dev/ixado/internal/model"
	"github.com/ixado-dev/ixado/internal/process"
	"github.com/ixado-dev/ixado/internal/state"
)

func TestRunCIPath_CIDisabledSetsDone(t *testing.T) {
	phase := *model.NewPhase("p", "feature/x")
	store := state.NewMemoryStore([]model.Phase{phase})
	r := newTestRunner(testConfig(), newScriptedRunner(), store)
	r.CIEnabled = false

	if err := r.runCIPath(context.Background(), phase.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	snapshot, _ := store.GetState(context.Background())
	if snapshot.Phases[0].Status != model.PhaseDone {
		t.Fatalf("expected DONE, got %s", snapshot.Phases[0].Status)
	}
}

func TestRunCIPath_SuccessfulChecksGoesReadyForReview(t *testing.T) {
	phase := *model.NewPhase("p", "feature/x")
	phase.Tasks = []model.Task{{Status: model.TaskDone, Title: "did work"}}
	store := state.NewMemoryStore([]model.Phase{phase})

	runner := newScriptedRunner()
	runner.on("git", []string{"add", "-A"}, func(req process.Request) (process.Result, error) { return process.Result{}, nil })
	runner.on("git", []string{"diff", "--cached", "--name-only"}, func(req process.Request) (process.Result, error) {
		return process.Result{Stdout: "file.go\n"}, nil
	})
	runner.on("git", []string{"commit", "-m", "chore: finalize p"}, func(req process.Request) (process.Result, error) { return process.Result{}, nil })
	runner.on("git", []string{"rev-parse", "--abbrev-ref", "HEAD"}, func(req process.Request) (process.Result, error) {
		return process.Result{Stdout: "feature/x\n"}, nil
	})
	runner.on("git", []string{"push", "-u", "origin", "feature/x"}, func(req process.Request) (process.Result, error) { return process.Result{}, nil })
	runner.on("gh", []string{"pr", "create", "--title", "p", "--body", "## Phase: p\n\nCompleted tasks:\n- did work\n\n---\n*Opened automatically by the phase-execution engine.*\n", "--repo", ""}, func(req process.Request) (process.Result, error) {
		return process.Result{Stdout: "https://github.com/acme/repo/pull/1\n"}, nil
	})
	runner.on("gh", []string{"pr", "checks", "https://github.com/acme/repo/pull/1", "--json", "name,state,link"}, func(req process.Request) (process.Result, error) {
		return process.Result{Stdout: `[{"name":"build","state":"SUCCESS","link":""}]`}, nil
	})
	runner.on("git", []string{"diff", "main"}, func(req process.Request) (process.Result, error) {
		return process.Result{Stdout: ""}, nil
	})

	cfg := testConfig()
	cfg.TerminalConfirmations = 1
	r := newTestRunner(cfg, runner, store)
	r.CIEnabled = true

	if err := r.runCIPath(context.Background(), phase.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	snapshot, _ := store.GetState(context.Background())
	if snapshot.Phases[0].Status != model.PhaseReadyForReview {
		t.Fatalf("expected READY_FOR_REVIEW, got %s", snapshot.Phases[0].Status)
	}
	if snapshot.Phases[0].PRUrl != "https://github.com/acme/repo/pull/1" {
		t.Fatalf("expected PR url to be recorded, got %q", snapshot.Phases[0].PRUrl)
	}
}

func TestRunCIPath_FailingChecksMapToFixTasksAndCIFailed(t *testing.T) {
	phase := *model.NewPhase("p", "feature/x")
	phase.Tasks = []model.Task{{Status: model.TaskDone, Title: "did work"}}
	store := state.NewMemoryStore([]model.Phase{phase})

	runner := newScriptedRunner()
	runner.on("git", []string{"add", "-A"}, func(req process.Request) (process.Result, error) { return process.Result{}, nil })
	runner.on("git", []string{"diff", "--cached", "--name-only"}, func(req process.Request) (process.Result, error) {
		return process.Result{Stdout: "file.go\n"}, nil
	})
	runner.on("git", []string{"commit", "-m", "chore: finalize p"}, func(req process.Request) (process.Result, error) { return process.Result{}, nil })
	runner.on("git", []string{"rev-parse", "--abbrev-ref", "HEAD"}, func(req process.Request) (process.Result, error) {
		return process.Result{Stdout: "feature/x\n"}, nil
	})
	runner.on("git", []string{"push", "-u", "origin", "feature/x"}, func(req process.Request) (process.Result, error) { return process.Result{}, nil })
	runner.on("gh", []string{"pr", "create", "--title", "p", "--body", "## Phase: p\n\nCompleted tasks:\n- did work\n\n---\n*Opened automatically by the phase-execution engine.*\n", "--repo", ""}, func(req process.Request) (process.Result, error) {
		return process.Result{Stdout: "https://github.com/acme/repo/pull/2\n"}, nil
	})
	runner.on("gh", []string{"pr", "checks", "https://github.com/acme/repo/pull/2", "--json", "name,state,link"}, func(req process.Request) (process.Result, error) {
		return process.Result{Stdout: `[{"name":"build","state":"FAILURE","link":"https://ci/1"}]`}, nil
	})

	cfg := testConfig()
	cfg.TerminalConfirmations = 1
	r := newTestRunner(cfg, runner, store)
	r.CIEnabled = true

	if err := r.runCIPath(context.Background(), phase.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	snapshot, _ := store.GetState(context.Background())
	if snapshot.Phases[0].Status != model.PhaseCIFailed {
		t.Fatalf("expected CI_FAILED, got %s", snapshot.Phases[0].Status)
	}
	if snapshot.Phases[0].FailureKind != model.FailureKindRemoteCI {
		t.Fatalf("expected REMOTE_CI failure kind, got %s", snapshot.Phases[0].FailureKind)
	}

	fixTaskFound := false
	for _, tk := range snapshot.Phases[0].Tasks {
		if tk.Status == model.TaskCIFix {
			fixTaskFound = true
		}
	}
	if !fixTaskFound {
		t.Fatal("expected a CI_FIX task to be created from the failing check")
	}
}
