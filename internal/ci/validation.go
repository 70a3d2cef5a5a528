package ci

import (
	"context"
	"fmt"
)

// ReviewVerdict is the strict-schema JSON a reviewer invocation must return.
type ReviewVerdict struct {
	Verdict  string   `json:"verdict"`
	Comments []string `json:"comments"`
}

const (
	VerdictApproved         = "APPROVED"
	VerdictChangesRequested = "CHANGES_REQUESTED"
)

// ValidationOutcome is the terminal state of a CiValidationLoop run.
type ValidationOutcome struct {
	Approved bool
	Status   string // "APPROVED" or "MAX_RETRIES_EXCEEDED"
	Comments []string
}

// ReviewerInvalidError is fatal: a reviewer returned CHANGES_REQUESTED with
// zero comments.
type ReviewerInvalidError struct{}

func (e *ReviewerInvalidError) Error() string {
	return "reviewer returned CHANGES_REQUESTED with no comments"
}

// InvokeReviewer runs the reviewer archetype against the working diff and
// returns its parsed verdict.
type InvokeReviewer func(ctx context.Context, diff string) (ReviewVerdict, error)

// InvokeFixer runs the fixer archetype with the reviewer's comments; resume
// becomes true after the first fix attempt.
type InvokeFixer func(ctx context.Context, comments []string, resume bool) error

// Loop drives the reviewer -> fixer cycle until APPROVED or retries are
// exhausted.
type Loop struct {
	MaxRetries     int
	InvokeReviewer InvokeReviewer
	InvokeFixer    InvokeFixer
	CurrentDiff    func(ctx context.Context) (string, error)
}

// Run executes the loop. An empty diff at any point is an immediate
// approval.
func (l *Loop) Run(ctx context.Context) (ValidationOutcome, error) {
	fixAttempts := 0

	for {
		diff, err := l.CurrentDiff(ctx)
		if err != nil {
			return ValidationOutcome{}, fmt.Errorf("read working diff: %w", err)
		}
		if diff == "" {
			return ValidationOutcome{Approved: true, Status: VerdictApproved}, nil
		}

		verdict, err := l.InvokeReviewer(ctx, diff)
		if err != nil {
			return ValidationOutcome{}, fmt.Errorf("invoke reviewer: %w", err)
		}

		if verdict.Verdict == VerdictChangesRequested && len(verdict.Comments) == 0 {
			return ValidationOutcome{}, &ReviewerInvalidError{}
		}

		if verdict.Verdict == VerdictApproved {
			return ValidationOutcome{Approved: true, Status: VerdictApproved}, nil
		}

		if fixAttempts >= l.MaxRetries {
			return ValidationOutcome{Approved: false, Status: "MAX_RETRIES_EXCEEDED", Comments: verdict.Comments}, nil
		}

		resume := fixAttempts > 0
		if err := l.InvokeFixer(ctx, verdict.Comments, resume); err != nil {
			return ValidationOutcome{}, fmt.Errorf("invoke fixer: %w", err)
		}
		fixAttempts++
	}
}
