package ci

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/ixado-dev/ixado/internal/model"
)

// FanOutCapExceededError is returned when a mapping pass would create more
// fix-tasks than the configured fan-out cap allows.
type FanOutCapExceededError struct{ Cap, Attempted int }

func (e *FanOutCapExceededError) Error() string {
	return fmt.Sprintf("CI_FIX fan-out cap exceeded (%d): attempted to create %d fix-tasks in one mapping pass", e.Cap, e.Attempted)
}

// DepthCapExceededError is returned when a fix-task chain would grow past
// the configured depth cap.
type DepthCapExceededError struct{ Cap int }

func (e *DepthCapExceededError) Error() string {
	return fmt.Sprintf("CI_FIX cascade depth cap exceeded (%d)", e.Cap)
}

// MappingResult is the outcome of one check-to-fix-task mapping pass.
type MappingResult struct {
	Created []model.Task
	Skipped int // existing CI_FIX tasks with a matching title, deduplicated
}

// MapperConfig bounds how aggressively a mapping pass may create work.
type MapperConfig struct {
	FanOutCap int // 0 disables the cap
	DepthCap  int // 0 disables the cap
}

// MapToFixTasks derives targeted fix-tasks from a CiStatusSummary and the
// phase's existing tasks. Blocking checks (FAILURE/CANCELLED/UNKNOWN) are
// sorted by (normalized-name, state, detailsUrl); each yields a
// "CI_FIX: <name>" task unless one already exists in CI_FIX status, which
// is recorded as a dedup skip instead. When there are zero blocking checks
// but the overall state is terminal-non-success, one fallback task is
// emitted.
func MapToFixTasks(summary model.CiStatusSummary, existing []model.Task, prURL string, cfg MapperConfig, currentDepth int) (MappingResult, error) {
	blocking := blockingChecks(summary)

	var result MappingResult

	if len(blocking) == 0 && summary.Overall != model.CheckSuccess && model.TerminalCheckStates[summary.Overall] {
		title := fmt.Sprintf("CI_FIX: CI pipeline (%s)", summary.Overall)
		if taskExistsInCIFix(existing, title) {
			result.Skipped++
		} else {
			result.Created = append(result.Created, newFixTask(title, fallbackDescription(summary, prURL)))
		}
		return finalizeMapping(result, cfg, currentDepth)
	}

	for _, check := range blocking {
		title := fmt.Sprintf("CI_FIX: %s", normalizeCheckName(check.Name))
		if taskExistsInCIFix(existing, title) {
			result.Skipped++
			continue
		}
		result.Created = append(result.Created, newFixTask(title, checkDescription(check, prURL)))
	}

	return finalizeMapping(result, cfg, currentDepth)
}

func finalizeMapping(result MappingResult, cfg MapperConfig, currentDepth int) (MappingResult, error) {
	if cfg.FanOutCap > 0 && len(result.Created) > cfg.FanOutCap {
		return MappingResult{}, &FanOutCapExceededError{Cap: cfg.FanOutCap, Attempted: len(result.Created)}
	}
	if len(result.Created) > 0 && cfg.DepthCap > 0 && currentDepth > cfg.DepthCap {
		return MappingResult{}, &DepthCapExceededError{Cap: cfg.DepthCap}
	}
	return result, nil
}

func blockingChecks(summary model.CiStatusSummary) []model.CiCheck {
	var blocking []model.CiCheck
	for _, c := range summary.Checks {
		if model.BlockingCheckStates[c.State] {
			blocking = append(blocking, c)
		}
	}
	sort.Slice(blocking, func(i, j int) bool {
		ni, nj := normalizeCheckName(blocking[i].Name), normalizeCheckName(blocking[j].Name)
		if ni != nj {
			return ni < nj
		}
		if blocking[i].State != blocking[j].State {
			return blocking[i].State < blocking[j].State
		}
		return blocking[i].DetailsURL < blocking[j].DetailsURL
	})
	return dedupeAdjacent(blocking)
}

// dedupeAdjacent collapses consecutive checks that normalize to the exact
// same (name, state) pair, since a rerun commonly reports the identical
// check twice.
func dedupeAdjacent(checks []model.CiCheck) []model.CiCheck {
	var out []model.CiCheck
	for i, c := range checks {
		if i > 0 {
			prev := checks[i-1]
			if normalizeCheckName(prev.Name) == normalizeCheckName(c.Name) && prev.State == c.State {
				continue
			}
		}
		out = append(out, c)
	}
	return out
}

func normalizeCheckName(name string) string {
	normalized := strings.ToLower(strings.TrimSpace(name))
	return strings.ReplaceAll(normalized, "-", " ")
}

func taskExistsInCIFix(tasks []model.Task, title string) bool {
	for _, t := range tasks {
		if t.Status == model.TaskCIFix && t.Title == title {
			return true
		}
	}
	return false
}

func newFixTask(title, description string) model.Task {
	return model.Task{
		ID:          uuid.New(),
		Title:       title,
		Description: description,
		Status:      model.TaskCIFix,
		Assignee:    model.AdapterUnassigned,
	}
}

func checkDescription(check model.CiCheck, prURL string) string {
	return fmt.Sprintf(
		"PR: %s\nCheck: %s\nState: %s\nDetails: %s\n\nNext action: inspect the failing check's logs at the details URL and fix the underlying cause.",
		prURL, check.Name, check.State, check.DetailsURL,
	)
}

func fallbackDescription(summary model.CiStatusSummary, prURL string) string {
	return fmt.Sprintf(
		"PR: %s\nOverall CI state: %s\n\nNext action: no individual check reported a blocking failure, but the overall pipeline did not succeed. Inspect the PR's checks tab.",
		prURL, summary.Overall,
	)
}
