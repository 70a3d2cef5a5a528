// Package agent holds the typed registry of external worker CLIs the
// engine can drive, the non-interactive arg-policy guarantee applied to
// every one of them, and the pure execution-plan builder that turns a
// prompt into adapter-specific argv/stdin.
package agent

import (
	"fmt"

	"github.com/ixado-dev/ixado/internal/model"
)

// InteractiveModeError is returned when an adapter's argument list violates
// the non-interactive execution guarantee: a required batch-mode flag is
// missing, a forbidden interactive flag is present, or a bypass-of-approvals
// flag appears more than once.
type InteractiveModeError struct {
	AdapterID model.AdapterID
	Reason    string
}

func (e *InteractiveModeError) Error() string {
	return fmt.Sprintf("adapter %s violates non-interactive execution guarantee: %s", e.AdapterID, e.Reason)
}

// Spec is one adapter record: the default command, the non-interactive
// flags it must always carry, the interactive flags it must never carry,
// and an optional bypass-of-approvals flag that is off unless explicitly
// opted into.
type Spec struct {
	ID               model.AdapterID
	DefaultCommand   string
	RequiredBaseArgs []string
	ForbiddenArgs    []string
	BypassFlag       string
	PlanStyle        PlanStyle
}

// BaseArgs returns this adapter's required args, plus its bypass flag when
// bypassApprovals is requested. The adapter has no bypass flag at all when
// Spec.BypassFlag is empty, in which case bypassApprovals has no effect.
func (s Spec) BaseArgs(bypassApprovals bool) []string {
	args := append([]string{}, s.RequiredBaseArgs...)
	if bypassApprovals && s.BypassFlag != "" {
		args = append(args, s.BypassFlag)
	}
	return args
}

// Validate re-checks the non-interactive arg policy against a fully built
// argument list. It is called at construction time and again immediately
// before every run() as a defence-in-depth check against tampering between
// the two.
func (s Spec) Validate(args []string) error {
	for _, required := range s.RequiredBaseArgs {
		if !containsArg(args, required) {
			return &InteractiveModeError{AdapterID: s.ID, Reason: fmt.Sprintf("missing required arg %q", required)}
		}
	}
	for _, forbidden := range s.ForbiddenArgs {
		if containsArg(args, forbidden) {
			return &InteractiveModeError{AdapterID: s.ID, Reason: fmt.Sprintf("forbidden interactive arg %q present", forbidden)}
		}
	}
	if s.BypassFlag != "" {
		if count := countArg(args, s.BypassFlag); count > 1 {
			return &InteractiveModeError{AdapterID: s.ID, Reason: fmt.Sprintf("bypass flag %q present %d times, must appear at most once", s.BypassFlag, count)}
		}
	}
	return nil
}

func containsArg(args []string, target string) bool {
	return countArg(args, target) > 0
}

func countArg(args []string, target string) int {
	n := 0
	for _, a := range args {
		if a == target {
			n++
		}
	}
	return n
}
