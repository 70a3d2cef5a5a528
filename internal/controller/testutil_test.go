package controller

import (
	"context"
	"fmt"
	"strings"

	"github.com/ixado-dev/ixado/internal/model"
	"github.com/ixado-dev/ixado/internal/process"
)

// allowAllAuthorizer authorizes every action, for tests that only care
// about the phase state machine.
type allowAllAuthorizer struct{}

func (allowAllAuthorizer) Authorize(actionKey string) model.AuthDecision {
	return model.AuthDecision{Allowed: true, MatchedPattern: "*"}
}

// scriptedRunner answers process.Runner.Run by matching on the joined
// command+args, falling back to a clean/success default so tests only
// need to script the calls they care about.
type scriptedRunner struct {
	responses map[string]func(req process.Request) (process.Result, error)
	calls     []string
}

func newScriptedRunner() *scriptedRunner {
	return &scriptedRunner{responses: make(map[string]func(req process.Request) (process.Result, error))}
}

func (r *scriptedRunner) on(command string, args []string, fn func(req process.Request) (process.Result, error)) {
	r.responses[key(command, args)] = fn
}

func key(command string, args []string) string {
	return command + " " + strings.Join(args, " ")
}

func (r *scriptedRunner) Run(ctx context.Context, req process.Request) (process.Result, error) {
	r.calls = append(r.calls, key(req.Command, req.Args))

	if fn, ok := r.responses[key(req.Command, req.Args)]; ok {
		return fn(req)
	}

	switch req.Command {
	case "git":
		if len(req.Args) > 0 {
			switch req.Args[0] {
			case "status":
				return process.Result{Stdout: ""}, nil
			case "rev-parse":
				if len(req.Args) > 1 && req.Args[1] == "--abbrev-ref" {
					return process.Result{Stdout: "main\n"}, nil
				}
				return process.Result{}, &process.ExecutionError{Request: req, Result: process.Result{ExitCode: 1}}
			case "diff":
				return process.Result{Stdout: ""}, nil
			}
		}
		return process.Result{}, nil
	}
	return process.Result{}, fmt.Errorf("scriptedRunner: no response configured for %q", key(req.Command, req.Args))
}
