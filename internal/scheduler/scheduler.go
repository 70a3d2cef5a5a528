// Package scheduler selects the next task a phase should work on. The
// selection rule is a pure function so the phase loop can call it
// repeatedly without any hidden state, mirroring how the controller's
// task-phase bookkeeping stays a plain in-memory map keyed by task ID.
package scheduler

import "github.com/ixado-dev/ixado/internal/model"

// PickNextTask returns the index of the next actionable task, or -1 if
// none exists. CI_FIX outranks TODO; within a tier the earliest (lowest
// index) entry wins so the result is stable across state reloads.
// IN_PROGRESS is never pickable: it either indicates active work or a
// crashed predecessor left behind for startup reconciliation to resolve.
func PickNextTask(tasks []model.Task) int {
	ciFixIdx := -1
	todoIdx := -1

	for i, t := range tasks {
		switch t.Status {
		case model.TaskCIFix:
			if ciFixIdx == -1 {
				ciFixIdx = i
			}
		case model.TaskTODO:
			if todoIdx == -1 {
				todoIdx = i
			}
		}
	}

	if ciFixIdx != -1 {
		return ciFixIdx
	}
	return todoIdx
}
