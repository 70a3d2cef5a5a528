// Package aider registers the adapter spec for the aider CLI.
package aider

import (
	"github.com/ixado-dev/ixado/internal/agent"
	"github.com/ixado-dev/ixado/internal/model"
)

// BypassFlag is aider's auto-confirm flag; gated behind explicit opt-in.
const BypassFlag = "--yes-always"

func init() {
	agent.Register(Spec())
}

// Spec returns the aider adapter record: non-interactive batch mode via
// "--no-pretty" plus a stdin-delivered prompt behind an empty "--prompt"
// flag, and a "--restore-chat-history" resume convention.
func Spec() agent.Spec {
	return agent.Spec{
		ID:             model.AdapterAider,
		DefaultCommand: "aider",
		RequiredBaseArgs: []string{
			"--no-pretty", "--no-gui",
		},
		ForbiddenArgs: []string{
			"--gui",
		},
		BypassFlag: BypassFlag,
		PlanStyle:  agent.PlanStyleEmptyPromptFlagStdin,
	}
}
