// Package ci implements the CI-integration, polling, check-mapping, and
// review-validation pipeline that follows a finished phase: stage, commit,
// push, open a PR, wait for checks, and either map failures to fix-tasks
// or run the reviewer/fixer validation loop.
package ci

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/ixado-dev/ixado/internal/authz"
	"github.com/ixado-dev/ixado/internal/model"
	"github.com/ixado-dev/ixado/internal/process"
)

const (
	titleMaxChars = 250
	bodyMaxChars  = 60000
)

// MissingCommitError is returned when staging produces no changes to
// commit.
type MissingCommitError struct{ Cwd string }

func (e *MissingCommitError) Error() string {
	return fmt.Sprintf("no staged changes to commit in %s", e.Cwd)
}

// AuthorizationError wraps a denied privileged CI step.
type AuthorizationError struct {
	Step     string
	Decision model.AuthDecision
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("ci step %q not authorized: %s", e.Step, e.Decision.Reason)
}

// Authorizer is the narrow collaborator the integrator needs.
type Authorizer interface {
	Authorize(actionKey string) model.AuthDecision
}

// TemplateMapping selects a PR template by longest-matching branch prefix.
type TemplateMapping struct {
	BranchPrefix string
	TemplatePath string
}

// PRMetadata is the derived title/body/template/labels for a new PR.
type PRMetadata struct {
	Title        string
	Body         string
	TemplatePath string
	Labels       []string
	Assignees    []string
	Draft        bool
}

// CreatePRRequest carries everything needed to derive PR metadata.
type CreatePRRequest struct {
	PhaseName      string
	CompletedTasks []string
	Repository     string
	HeadBranch     string
	Templates      []TemplateMapping
	DefaultLabels  []string
	Assignees      []string
	Draft          bool
}

// Integrator drives the stage -> commit -> push -> PR-create sequence.
type Integrator struct {
	Runner     process.Runner
	Authorizer Authorizer
}

// Run executes the full sequence in cwd and returns the created PR URL.
func (in *Integrator) Run(ctx context.Context, cwd string, req CreatePRRequest) (prURL string, err error) {
	if _, err := in.Runner.Run(ctx, process.Request{Command: "git", Args: []string{"add", "-A"}, Cwd: cwd}); err != nil {
		return "", fmt.Errorf("stage changes: %w", err)
	}

	staged, err := in.Runner.Run(ctx, process.Request{Command: "git", Args: []string{"diff", "--cached", "--name-only"}, Cwd: cwd})
	if err != nil {
		return "", fmt.Errorf("check staged changes: %w", err)
	}
	if strings.TrimSpace(staged.Stdout) == "" {
		return "", &MissingCommitError{Cwd: cwd}
	}

	commitMsg := fmt.Sprintf("chore: finalize %s", req.PhaseName)
	if _, err := in.Runner.Run(ctx, process.Request{Command: "git", Args: []string{"commit", "-m", commitMsg}, Cwd: cwd}); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}

	branch, err := in.currentBranch(ctx, cwd)
	if err != nil {
		return "", err
	}

	if err := in.authorize(authz.ActionGitPush, "push"); err != nil {
		return "", err
	}
	if _, err := in.Runner.Run(ctx, process.Request{Command: "git", Args: []string{"push", "-u", "origin", branch}, Cwd: cwd}); err != nil {
		return "", fmt.Errorf("push: %w", err)
	}

	if err := in.authorize(authz.ActionGitPROpen, "pr-open"); err != nil {
		return "", err
	}
	meta := DerivePRMetadata(req)
	args := []string{"pr", "create", "--title", meta.Title, "--body", meta.Body, "--repo", req.Repository}
	if meta.Draft {
		args = append(args, "--draft")
	}
	for _, label := range meta.Labels {
		args = append(args, "--label", label)
	}
	for _, assignee := range meta.Assignees {
		args = append(args, "--assignee", assignee)
	}

	result, err := in.Runner.Run(ctx, process.Request{Command: "gh", Args: args, Cwd: cwd})
	if err != nil {
		return "", fmt.Errorf("create pr: %w", err)
	}

	return parsePRURL(result.Stdout), nil
}

func (in *Integrator) currentBranch(ctx context.Context, cwd string) (string, error) {
	result, err := in.Runner.Run(ctx, process.Request{Command: "git", Args: []string{"rev-parse", "--abbrev-ref", "HEAD"}, Cwd: cwd})
	if err != nil {
		return "", fmt.Errorf("read current branch: %w", err)
	}
	return strings.TrimSpace(result.Stdout), nil
}

func (in *Integrator) authorize(action, step string) error {
	decision := in.Authorizer.Authorize(action)
	if !decision.Allowed {
		return &AuthorizationError{Step: step, Decision: decision}
	}
	return nil
}

var prURLPattern = regexp.MustCompile(`https://\S+/pull/\d+`)

func parsePRURL(output string) string {
	if m := prURLPattern.FindString(output); m != "" {
		return m
	}
	return strings.TrimSpace(output)
}

// DerivePRMetadata computes title/body/template/draft for a CreatePRRequest.
func DerivePRMetadata(req CreatePRRequest) PRMetadata {
	title := strings.ReplaceAll(req.PhaseName, "\n", " ")
	title = strings.TrimSpace(title)
	if len(title) > titleMaxChars {
		title = title[:titleMaxChars]
	}

	sorted := append([]string{}, req.CompletedTasks...)
	sort.Strings(sorted)

	var body strings.Builder
	fmt.Fprintf(&body, "## Phase: %s\n\n", req.PhaseName)
	if len(sorted) > 0 {
		body.WriteString("Completed tasks:\n")
		for _, task := range sorted {
			fmt.Fprintf(&body, "- %s\n", task)
		}
		body.WriteString("\n")
	}
	body.WriteString("---\n*Opened automatically by the phase-execution engine.*\n")

	bodyStr := body.String()
	if len(bodyStr) > bodyMaxChars {
		bodyStr = bodyStr[:bodyMaxChars]
	}

	return PRMetadata{
		Title:        title,
		Body:         bodyStr,
		TemplatePath: selectTemplate(req.HeadBranch, req.Templates),
		Labels:       req.DefaultLabels,
		Assignees:    req.Assignees,
		Draft:        req.Draft,
	}
}

// selectTemplate picks the longest matching branchPrefix whose prefix is a
// prefix of headBranch, so that "feature/auth/" beats "feature/" for a
// branch named "feature/auth/login".
func selectTemplate(headBranch string, mappings []TemplateMapping) string {
	sorted := append([]TemplateMapping{}, mappings...)
	sort.Slice(sorted, func(i, j int) bool {
		return len(sorted[i].BranchPrefix) > len(sorted[j].BranchPrefix)
	})
	for _, m := range sorted {
		if strings.HasPrefix(headBranch, m.BranchPrefix) {
			return m.TemplatePath
		}
	}
	return ""
}
