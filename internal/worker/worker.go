// Package worker is the concrete external-worker boundary the state
// store's TaskRunner/WorkRunner callbacks delegate to: given an adapter
// ID and a prompt, build the adapter's non-interactive execution plan
// (internal/agent) and run it through a process.Runner, generalizing the
// teacher's runAgentContainer (internal/controller/docker.go) from a
// docker-exec invocation into a direct subprocess invocation against the
// adapter's own CLI.
package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ixado-dev/ixado/internal/agent"
	"github.com/ixado-dev/ixado/internal/model"
	"github.com/ixado-dev/ixado/internal/process"
	"github.com/ixado-dev/ixado/internal/state"
)

// Driver runs adapters via a process.Runner using the registered Spec and
// execution-plan builder. It is the only place in the CLI wiring that
// actually shells out to an external coding-assistant binary.
type Driver struct {
	Runner          process.Runner
	Cwd             string
	TimeoutMs       int
	BypassApprovals bool
	// CommandOverride, when set for an adapter ID, replaces Spec.DefaultCommand
	// (e.g. pointing "claude-code" at a wrapper script).
	CommandOverride map[model.AdapterID]string
}

// Invoke runs assignee non-interactively with prompt/resume and returns its
// combined stdout. Both RunTask and RunWork funnel through this.
func (d *Driver) Invoke(ctx context.Context, assignee model.AdapterID, prompt string, resume bool) (string, error) {
	spec, err := agent.Get(assignee)
	if err != nil {
		return "", err
	}

	baseArgs := spec.BaseArgs(d.BypassApprovals)
	if err := spec.Validate(baseArgs); err != nil {
		return "", err
	}

	plan, err := agent.BuildExecutionPlan(spec.PlanStyle, baseArgs, prompt, resume)
	if err != nil {
		return "", err
	}
	if err := spec.Validate(plan.Args); err != nil {
		return "", err
	}

	command := spec.DefaultCommand
	if override, ok := d.CommandOverride[assignee]; ok && override != "" {
		command = override
	}

	result, err := d.Runner.Run(ctx, process.Request{
		Command:   command,
		Args:      plan.Args,
		Cwd:       d.Cwd,
		TimeoutMs: d.TimeoutMs,
		Stdin:     plan.Stdin,
	})
	if err != nil {
		return result.Stdout, fmt.Errorf("invoke adapter %s: %w", assignee, err)
	}
	return result.Stdout, nil
}

// RunTask adapts Invoke to state.TaskRunner: the adapter is told what the
// task is, and DONE/FAILED is read back from the adapter's exit status
// rather than parsed from its output (the adapter itself is trusted to
// finish or fail the work, unlike the strict-JSON recovery/review
// archetypes which speak a contract back to the engine).
func (d *Driver) RunTask(ctx context.Context, phase model.Phase, task model.Task, assignee model.AdapterID, resume bool) (model.TaskStatus, string, string, error) {
	prompt := taskPrompt(phase, task)
	stdout, err := d.Invoke(ctx, assignee, prompt, resume)
	if err != nil {
		message := err.Error()
		var execErr *process.ExecutionError
		if errors.As(err, &execErr) && execErr.Result.Stderr != "" {
			message = execErr.Result.Stderr
		}
		return model.TaskFailed, "", message, errors.New(message)
	}
	return model.TaskDone, stdout, "", nil
}

// RunWork adapts Invoke to state.WorkRunner for the raw-prompt callers
// (recovery, CI validation) that need stdout/stderr rather than a task
// status transition.
func (d *Driver) RunWork(ctx context.Context, params state.RunInternalWorkParams) (state.RunInternalWorkResult, error) {
	stdout, err := d.Invoke(ctx, params.Assignee, params.Prompt, params.Resume)
	if err != nil {
		var execErr *process.ExecutionError
		if errors.As(err, &execErr) {
			return state.RunInternalWorkResult{Stdout: stdout, Stderr: execErr.Result.Stderr}, err
		}
		return state.RunInternalWorkResult{Stdout: stdout}, err
	}
	return state.RunInternalWorkResult{Stdout: stdout}, nil
}

// taskPrompt renders the natural-language instruction handed to the
// adapter for one task.
func taskPrompt(phase model.Phase, task model.Task) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Phase: %s\nTask: %s\n\n%s\n", phase.Name, task.Title, task.Description)
	if task.ErrorLogs != "" {
		fmt.Fprintf(&b, "\nPrevious attempt failed with:\n%s\n", task.ErrorLogs)
	}
	return b.String()
}
