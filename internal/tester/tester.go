// Package tester runs (or auto-detects) the project test command after a
// task completes, and derives a deterministic fix-task on failure.
package tester

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/ixado-dev/ixado/internal/model"
	"github.com/ixado-dev/ixado/internal/process"
)

// maxOutputChars is the truncation bound applied to combined stdout+stderr
// embedded in a generated fix-task description.
const maxOutputChars = 4000

// truncatedMarker is appended after the truncation point.
const truncatedMarker = "[truncated]"

// Outcome is the result of one tester invocation.
type Outcome struct {
	Status  string // "PASSED", "FAILED", or "SKIPPED"
	Output  string
	FixTask *model.Task
}

const (
	StatusPassed  = "PASSED"
	StatusFailed  = "FAILED"
	StatusSkipped = "SKIPPED"
)

// Workflow runs the configured (or auto-detected) test command.
type Workflow struct {
	Runner process.Runner
}

// Run executes the tester for a just-completed task. testerCommand and
// testerArgs may both be empty, in which case Run auto-detects by probing
// cwd for package.json (npm test) then Makefile (make test), else SKIPPED.
func (w *Workflow) Run(ctx context.Context, cwd, testerCommand string, testerArgs []string, triggerTask model.Task) Outcome {
	command, args, detected := resolveCommand(cwd, testerCommand, testerArgs)
	if !detected {
		return Outcome{Status: StatusSkipped}
	}

	result, err := w.Runner.Run(ctx, process.Request{Command: command, Args: args, Cwd: cwd})
	combined := result.Stdout + result.Stderr

	if err == nil && result.ExitCode == 0 {
		return Outcome{Status: StatusPassed, Output: combined}
	}

	errMessage := ""
	if err != nil {
		errMessage = err.Error()
	}

	fixTask := buildFixTask(command, args, errMessage, combined, triggerTask)
	return Outcome{Status: StatusFailed, Output: combined, FixTask: &fixTask}
}

// resolveCommand returns the configured command/args if present, otherwise
// auto-detects from cwd's contents. detected is false only when neither a
// configured command nor an auto-detected one is available.
func resolveCommand(cwd, testerCommand string, testerArgs []string) (command string, args []string, detected bool) {
	if testerCommand != "" {
		return testerCommand, testerArgs, true
	}

	if fileExists(filepath.Join(cwd, "package.json")) {
		return "npm", []string{"test"}, true
	}
	if fileExists(filepath.Join(cwd, "Makefile")) {
		return "make", []string{"test"}, true
	}
	return "", nil, false
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func buildFixTask(command string, args []string, errMessage, output string, triggerTask model.Task) model.Task {
	truncated := truncate(output, maxOutputChars)

	description := fmt.Sprintf(
		"Command: %s %v\nError: %s\n\nOutput:\n%s",
		command, args, errMessage, truncated,
	)

	return model.Task{
		ID:           uuid.New(),
		Title:        fmt.Sprintf("Fix tests after %s", triggerTask.Title),
		Description:  description,
		Status:       model.TaskCIFix,
		Assignee:     model.AdapterUnassigned,
		Dependencies: []uuid.UUID{triggerTask.ID},
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "\n" + truncatedMarker
}
