// Package claudecode registers the adapter spec for the Claude Code CLI.
package claudecode

import (
	"github.com/ixado-dev/ixado/internal/agent"
	"github.com/ixado-dev/ixado/internal/model"
)

// BypassFlag is claude-code's permission-skip flag; gated behind explicit
// opt-in.
const BypassFlag = "--dangerously-skip-permissions"

func init() {
	agent.Register(Spec())
}

// Spec returns the claude-code adapter record: non-interactive batch mode
// via "--print", a prompt passed as a trailing positional argument, and a
// "--continue" resume convention.
func Spec() agent.Spec {
	return agent.Spec{
		ID:             model.AdapterClaudeCode,
		DefaultCommand: "claude",
		RequiredBaseArgs: []string{
			"--print",
		},
		ForbiddenArgs: []string{
			"--interactive",
		},
		BypassFlag: BypassFlag,
		PlanStyle:  agent.PlanStyleContinueFlag,
	}
}
