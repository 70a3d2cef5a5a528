// Package controller composes the phase-execution engine's components
// (C3-C11) into the phase state-machine driver: preflight, branching,
// the task/tester execution loop, and the CI integration/poll/validation
// path. It is the composition root, generalizing the teacher's single
// large Controller (internal/controller/controller.go,
// internal/controller/phase_loop.go) decomposed per-concern the way the
// surrounding packages already are.
package controller

import (
	"context"
	"fmt"

	"github.com/ixado-dev/ixado/internal/ci"
	"github.com/ixado-dev/ixado/internal/config"
	"github.com/ixado-dev/ixado/internal/events"
	"github.com/ixado-dev/ixado/internal/hooks"
	"github.com/ixado-dev/ixado/internal/model"
	"github.com/ixado-dev/ixado/internal/process"
	"github.com/ixado-dev/ixado/internal/recovery"
	"github.com/ixado-dev/ixado/internal/state"
	"github.com/ixado-dev/ixado/internal/tester"
)

// Authorizer is the narrow collaborator every privileged step needs.
type Authorizer interface {
	Authorize(actionKey string) model.AuthDecision
}

// PhaseRunner drives exactly one phase through
// PLANNING -> BRANCHING -> CODING -> CREATING_PR -> AWAITING_CI ->
// READY_FOR_REVIEW, with CI_FAILED/DONE side branches, for the lock
// holder that owns it.
type PhaseRunner struct {
	Store      state.Store
	Runner     process.Runner
	Authorizer Authorizer

	RecoveryLoop *recovery.Loop
	Tester       *tester.Workflow
	Integrator   *ci.Integrator
	Poller       *ci.Poller
	Hooks        *hooks.Registry
	Events       *events.Bus
	AdvanceGate  AdvanceGate

	Cwd             string
	Repository      string
	CIBaseBranch    string
	CIEnabled       bool
	DefaultAssignee model.AdapterID
	TesterCommand   string
	TesterArgs      []string

	CiFanOutCap            int
	CiFixMaxDepth          int
	MaxCiValidationRetries int
	MarkReadyOnApproval    bool

	PRTemplates     []ci.TemplateMapping
	PRDefaultLabels []string
	PRAssignees     []string
	PRDraft         bool

	Config *config.EngineConfig
	Logf   func(format string, args ...any)
}

// New constructs a PhaseRunner from an EngineConfig plus the collaborators
// that must be wired by the caller (store, runner, authorizer).
// AdvanceGate starts as NopAdvanceGate.
func New(cfg *config.EngineConfig, store state.Store, runner process.Runner, authz Authorizer) *PhaseRunner {
	return &PhaseRunner{
		Store: store, Runner: runner, Authorizer: authz,
		RecoveryLoop: &recovery.Loop{Authorizer: authz},
		Tester:       &tester.Workflow{Runner: runner},
		Integrator:   &ci.Integrator{Runner: runner, Authorizer: authz},
		Poller:       &ci.Poller{Runner: runner, IntervalMs: cfg.PollIntervalMs, TerminalConfirmations: cfg.TerminalConfirmations},
		Hooks:        hooks.NewRegistry(),
		Events:       events.NewBus(),
		AdvanceGate:  NopAdvanceGate{},
		CIBaseBranch: cfg.CiBaseBranch, DefaultAssignee: cfg.DefaultAssignee,
		CiFanOutCap: cfg.CiFanOutCap, CiFixMaxDepth: cfg.CiFixMaxDepth,
		MaxCiValidationRetries: cfg.MaxCiValidationRetries, MarkReadyOnApproval: cfg.MarkReadyOnApproval,
		Config: cfg,
	}
}

// Run executes the full phase state machine to one of its terminal
// statuses (DONE, CI_FAILED, READY_FOR_REVIEW) or returns an error for a
// fatal, non-recoverable condition (preflight, authorization, exhausted
// recovery).
func (r *PhaseRunner) Run(ctx context.Context) error {
	reconciled, err := r.Store.ReconcileInProgressTasks(ctx)
	if err != nil {
		return fmt.Errorf("reconcile in-progress tasks: %w", err)
	}
	if reconciled > 0 {
		r.logf("reconciled %d orphaned IN_PROGRESS task(s) back to TODO", reconciled)
	}

	snapshot, err := r.Store.GetState(ctx)
	if err != nil {
		return fmt.Errorf("read state: %w", err)
	}
	phase, err := state.ResolveActivePhase(snapshot)
	if err != nil {
		return &PhasePreflightError{Reason: err.Error()}
	}

	if err := r.preflight(ctx, phase); err != nil {
		return err
	}

	if err := r.runBranching(ctx, phase.ID, phase.BranchName); err != nil {
		_ = r.failPhase(ctx, phase.ID, model.FailureKindRecovery, err)
		return err
	}

	if err := r.runExecutionLoop(ctx, phase.ID); err != nil {
		return err
	}

	snapshot, err = r.Store.GetState(ctx)
	if err != nil {
		return fmt.Errorf("read state before CI path: %w", err)
	}
	refreshed, err := findPhase(snapshot, phase.ID)
	if err != nil {
		return err
	}
	if model.TerminalStatuses[refreshed.Status] {
		return nil
	}

	return r.runCIPath(ctx, phase.ID)
}

func (r *PhaseRunner) logf(format string, args ...any) {
	if r.Logf != nil {
		r.Logf(format, args...)
		return
	}
}
