package authz

// Action constants used by the evaluator.
const (
	ActionStatusRead       = "status:read"
	ActionTasksRead        = "tasks:read"
	ActionLogsRead         = "logs:read"
	ActionUsageRead        = "usage:read"
	ActionExecutionStart   = "execution:start"
	ActionExecutionStop    = "execution:stop"
	ActionExecutionNext    = "execution:next"
	ActionPhaseCreate      = "phase:create"
	ActionTaskCreate       = "task:create"
	ActionTaskUpdate       = "task:update"
	ActionGitBranchCreate  = "git:privileged:branch-create"
	ActionGitPush          = "git:privileged:push"
	ActionGitRebase        = "git:privileged:rebase"
	ActionGitPROpen        = "git:privileged:pr-open"
	ActionGitPRMerge       = "git:privileged:pr-merge"
	ActionConfigWrite      = "config:write"
	ActionAgentKill        = "agent:kill"
	ActionAgentRestart     = "agent:restart"

	ActionOrchestratorCIIntegration     = "orchestrator:ci-integration:run"
	ActionOrchestratorExceptionRecovery = "orchestrator:exception-recovery:run"
	ActionOrchestratorCIValidation      = "orchestrator:ci-validation:run"
)

// DefaultActionMap is the identity mapping used when the orchestrator-level
// action key is already a concrete policy action string.
func DefaultActionMap() map[string]string {
	actions := []string{
		ActionStatusRead, ActionTasksRead, ActionLogsRead, ActionUsageRead,
		ActionExecutionStart, ActionExecutionStop, ActionExecutionNext,
		ActionPhaseCreate, ActionTaskCreate, ActionTaskUpdate,
		ActionGitBranchCreate, ActionGitPush, ActionGitRebase, ActionGitPROpen, ActionGitPRMerge,
		ActionConfigWrite, ActionAgentKill, ActionAgentRestart,
		ActionOrchestratorCIIntegration, ActionOrchestratorExceptionRecovery, ActionOrchestratorCIValidation,
	}
	m := make(map[string]string, len(actions))
	for _, a := range actions {
		m[a] = a
	}
	return m
}
