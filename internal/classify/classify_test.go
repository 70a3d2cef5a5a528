package classify

import (
	"testing"

	"github.com/ixado-dev/ixado/internal/model"
)

func TestClassifyAdapterFailure(t *testing.T) {
	tests := []struct {
		name    string
		message string
		code    string
		want    model.AdapterFailureKind
	}{
		{"unauthorized", "Error: Unauthorized access to resource", "", model.AdapterFailureAuth},
		{"forbidden status", "request failed with status 403", "", model.AdapterFailureAuth},
		{"missing binary", "exec: \"codex\": executable file not found in $PATH", "", model.AdapterFailureMissingBinary},
		{"enoent code", "spawn codex ENOENT", "ENOENT", model.AdapterFailureMissingBinary},
		{"timeout", "the operation timed out", "", model.AdapterFailureTimeout},
		{"deadline", "context deadline exceeded", "", model.AdapterFailureTimeout},
		{"network", "dial tcp: connection refused", "", model.AdapterFailureNetwork},
		{"unknown", "something unexpected happened", "", model.AdapterFailureUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyAdapterFailure(tt.message, tt.code); got != tt.want {
				t.Errorf("ClassifyAdapterFailure(%q, %q) = %s, want %s", tt.message, tt.code, got, tt.want)
			}
		})
	}
}

func TestClassifyAdapterFailure_AuthPrecedesOtherMatches(t *testing.T) {
	// A message that could plausibly also read as a timeout must still
	// classify as auth when an auth signal is present, since auth is
	// checked first.
	got := ClassifyAdapterFailure("401 unauthorized: request timed out waiting for token refresh", "")
	if got != model.AdapterFailureAuth {
		t.Fatalf("expected auth to take precedence, got %s", got)
	}
}

func TestBuildExceptionMetadata(t *testing.T) {
	phaseID := "phase-1"
	taskID := "task-1"
	meta := BuildExceptionMetadata(&phaseID, &taskID, "permission denied", "")

	if meta.Category != model.CategoryAgentFailure {
		t.Fatalf("expected AGENT_FAILURE category, got %s", meta.Category)
	}
	if meta.AdapterFailureKind != model.AdapterFailureAuth {
		t.Fatalf("expected auth kind, got %s", meta.AdapterFailureKind)
	}
	if meta.Recoverable() {
		t.Fatalf("expected auth failure to be non-recoverable")
	}
}
