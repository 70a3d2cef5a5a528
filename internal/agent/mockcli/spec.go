// Package mockcli registers a synthetic adapter spec used only by tests and
// local dry-runs, never by a real external CLI.
package mockcli

import (
	"github.com/ixado-dev/ixado/internal/agent"
	"github.com/ixado-dev/ixado/internal/model"
)

func init() {
	agent.Register(Spec())
}

// Spec returns the MOCK_CLI adapter record: no bypass flag, a trivial
// continue-flag plan style, used to drive the engine end-to-end without a
// real external process.
func Spec() agent.Spec {
	return agent.Spec{
		ID:               model.AdapterMockCLI,
		DefaultCommand:   "true",
		RequiredBaseArgs: []string{"--batch"},
		ForbiddenArgs:    []string{"--interactive"},
		PlanStyle:        agent.PlanStyleContinueFlag,
	}
}
