// Package codex registers the adapter spec for OpenAI's Codex CLI.
package codex

import (
	"github.com/ixado-dev/ixado/internal/agent"
	"github.com/ixado-dev/ixado/internal/model"
)

// BypassFlag is codex's auto-approve-all flag; gated behind explicit opt-in.
const BypassFlag = "--yolo"

func init() {
	agent.Register(Spec())
}

// Spec returns the codex adapter record: non-interactive batch mode via
// "exec", stdin-delivered prompts behind a literal "-", and an
// "exec resume --last" resume convention.
func Spec() agent.Spec {
	return agent.Spec{
		ID:             model.AdapterCodex,
		DefaultCommand: "codex",
		RequiredBaseArgs: []string{
			"exec", "--json", "--skip-git-repo-check", "--cd", "/workspace",
		},
		ForbiddenArgs: []string{
			"--interactive",
		},
		BypassFlag: BypassFlag,
		PlanStyle:  agent.PlanStyleStdinDashResume,
	}
}
