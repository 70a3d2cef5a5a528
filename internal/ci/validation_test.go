package ci

import (
	"context"
	"testing"
)

func TestLoop_Run_EmptyDiffApproves(t *testing.T) {
	loop := &Loop{
		CurrentDiff: func(ctx context.Context) (string, error) { return "", nil },
	}
	outcome, err := loop.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !outcome.Approved {
		t.Fatal("expected approved for empty diff")
	}
}

func TestLoop_Run_ApprovedOnFirstReview(t *testing.T) {
	loop := &Loop{
		CurrentDiff: func(ctx context.Context) (string, error) { return "diff", nil },
		InvokeReviewer: func(ctx context.Context, diff string) (ReviewVerdict, error) {
			return ReviewVerdict{Verdict: VerdictApproved}, nil
		},
	}
	outcome, err := loop.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !outcome.Approved {
		t.Fatal("expected approved")
	}
}

func TestLoop_Run_ChangesRequestedWithNoCommentsIsFatal(t *testing.T) {
	loop := &Loop{
		CurrentDiff: func(ctx context.Context) (string, error) { return "diff", nil },
		InvokeReviewer: func(ctx context.Context, diff string) (ReviewVerdict, error) {
			return ReviewVerdict{Verdict: VerdictChangesRequested}, nil
		},
	}
	_, err := loop.Run(context.Background())
	if err == nil {
		t.Fatal("expected error for changes-requested with zero comments")
	}
	if _, ok := err.(*ReviewerInvalidError); !ok {
		t.Fatalf("expected *ReviewerInvalidError, got %T", err)
	}
}

func TestLoop_Run_FixerLoopThenApproved(t *testing.T) {
	reviews := 0
	var resumeValues []bool

	loop := &Loop{
		MaxRetries:  3,
		CurrentDiff: func(ctx context.Context) (string, error) { return "diff", nil },
		InvokeReviewer: func(ctx context.Context, diff string) (ReviewVerdict, error) {
			reviews++
			if reviews == 1 {
				return ReviewVerdict{Verdict: VerdictChangesRequested, Comments: []string{"fix x"}}, nil
			}
			return ReviewVerdict{Verdict: VerdictApproved}, nil
		},
		InvokeFixer: func(ctx context.Context, comments []string, resume bool) error {
			resumeValues = append(resumeValues, resume)
			return nil
		},
	}

	outcome, err := loop.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !outcome.Approved {
		t.Fatal("expected eventual approval")
	}
	if len(resumeValues) != 1 || resumeValues[0] != false {
		t.Fatalf("expected first fix attempt with resume=false, got %v", resumeValues)
	}
}

func TestLoop_Run_MaxRetriesExceeded(t *testing.T) {
	loop := &Loop{
		MaxRetries:  1,
		CurrentDiff: func(ctx context.Context) (string, error) { return "diff", nil },
		InvokeReviewer: func(ctx context.Context, diff string) (ReviewVerdict, error) {
			return ReviewVerdict{Verdict: VerdictChangesRequested, Comments: []string{"still broken"}}, nil
		},
		InvokeFixer: func(ctx context.Context, comments []string, resume bool) error { return nil },
	}

	outcome, err := loop.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Approved || outcome.Status != "MAX_RETRIES_EXCEEDED" {
		t.Fatalf("expected MAX_RETRIES_EXCEEDED, got %+v", outcome)
	}
	if len(outcome.Comments) != 1 {
		t.Fatalf("expected pending comments preserved, got %v", outcome.Comments)
	}
}
