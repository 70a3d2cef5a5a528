package model

// CheckState is the terminal or in-flight state of a single CI check.
type CheckState string

const (
	CheckSuccess   CheckState = "SUCCESS"
	CheckFailure   CheckState = "FAILURE"
	CheckCancelled CheckState = "CANCELLED"
	CheckPending   CheckState = "PENDING"
	CheckUnknown   CheckState = "UNKNOWN"
)

// TerminalCheckStates are the states that stop polling once confirmed.
var TerminalCheckStates = map[CheckState]bool{
	CheckSuccess:   true,
	CheckFailure:   true,
	CheckCancelled: true,
	CheckUnknown:   true,
}

// BlockingCheckStates are the states that make a check "blocking" for
// fix-task derivation.
var BlockingCheckStates = map[CheckState]bool{
	CheckFailure:   true,
	CheckCancelled: true,
	CheckUnknown:   true,
}

// CiCheck is a single named status check reported by the host CLI.
type CiCheck struct {
	Name       string
	State      CheckState
	DetailsURL string
}

// CiStatusSummary is the full status-check rollup for a PR at a point in
// time.
type CiStatusSummary struct {
	Overall CheckState
	Checks  []CiCheck
}
