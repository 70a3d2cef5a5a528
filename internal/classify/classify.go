// Package classify maps raw adapter errors into the typed exception
// vocabulary the recovery loop understands, using case-insensitive
// pattern checks.
package classify

import (
	"regexp"

	"github.com/ixado-dev/ixado/internal/model"
)

// authPatterns match messages indicating the adapter's credentials are
// missing, expired, or rejected.
var authPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)unauthorized`),
	regexp.MustCompile(`(?i)authentication`),
	regexp.MustCompile(`(?i)invalid api key`),
	regexp.MustCompile(`(?i)forbidden`),
	regexp.MustCompile(`(?i)401`),
	regexp.MustCompile(`(?i)403`),
	regexp.MustCompile(`(?i)token expired`),
	regexp.MustCompile(`(?i)permission denied`),
}

// missingBinaryPatterns match messages indicating the adapter's CLI itself
// could not be located or executed.
var missingBinaryPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)command not found`),
	regexp.MustCompile(`(?i)no such file or directory`),
	regexp.MustCompile(`(?i)executable file not found`),
	regexp.MustCompile(`(?i)ENOENT`),
}

// networkPatterns match messages indicating a transient connectivity
// failure rather than a configuration problem.
var networkPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)connection refused`),
	regexp.MustCompile(`(?i)connection reset`),
	regexp.MustCompile(`(?i)no route to host`),
	regexp.MustCompile(`(?i)dns`),
	regexp.MustCompile(`(?i)network is unreachable`),
	regexp.MustCompile(`(?i)EOF`),
	regexp.MustCompile(`(?i)TLS handshake`),
}

// timeoutPatterns match messages indicating the adapter ran out of time
// rather than failing outright.
var timeoutPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)timed? ?out`),
	regexp.MustCompile(`(?i)deadline exceeded`),
	regexp.MustCompile(`(?i)context canceled`),
}

// ClassifyAdapterFailure inspects an error message (and, when present, an
// OS-style error code such as "ENOENT" or "ETIMEDOUT") and returns the
// adapterFailureKind it matches. The first matching category wins, checked
// in order: auth, missing-binary, timeout, network. No match yields
// "unknown".
func ClassifyAdapterFailure(message, code string) model.AdapterFailureKind {
	combined := message + " " + code

	switch {
	case matchesAny(authPatterns, combined):
		return model.AdapterFailureAuth
	case matchesAny(missingBinaryPatterns, combined):
		return model.AdapterFailureMissingBinary
	case matchesAny(timeoutPatterns, combined):
		return model.AdapterFailureTimeout
	case matchesAny(networkPatterns, combined):
		return model.AdapterFailureNetwork
	default:
		return model.AdapterFailureUnknown
	}
}

func matchesAny(patterns []*regexp.Regexp, s string) bool {
	for _, p := range patterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}

// BuildExceptionMetadata assembles the full ExceptionMetadata envelope for
// an AGENT_FAILURE, classifying the adapterFailureKind from the raw error.
func BuildExceptionMetadata(phaseID, taskID *string, message, code string) model.ExceptionMetadata {
	return model.ExceptionMetadata{
		Category:           model.CategoryAgentFailure,
		Message:            message,
		PhaseID:            phaseID,
		TaskID:             taskID,
		AdapterFailureKind: ClassifyAdapterFailure(message, code),
	}
}
