// Package authz implements the pattern-match authorization evaluator that
// gates every privileged action in the engine.
package authz

import (
	"fmt"
	"os"
	"strings"

	"github.com/ixado-dev/ixado/internal/model"
	"gopkg.in/yaml.v3"
)

// Evaluate decides allow/deny for (role, action, policy) with a fixed check
// order: no-role, then denylist (which always wins, even over a "*"
// allowlist entry), then allowlist, then default deny.
func Evaluate(role model.Role, action string, policy model.AuthPolicy) model.AuthDecision {
	if role == model.RoleNone {
		return model.AuthDecision{Allowed: false, Reason: model.DenyNoRole}
	}

	rp, ok := policy.Roles[role]
	if !ok {
		return model.AuthDecision{Allowed: false, Reason: model.DenyNoAllowlistMatch}
	}

	for _, pattern := range rp.Denylist {
		if matchPattern(pattern, action) {
			return model.AuthDecision{Allowed: false, Reason: model.DenyDenylistMatch, Detail: pattern}
		}
	}

	for _, pattern := range rp.Allowlist {
		if matchPattern(pattern, action) {
			return model.AuthDecision{Allowed: true, MatchedPattern: pattern}
		}
	}

	return model.AuthDecision{Allowed: false, Reason: model.DenyNoAllowlistMatch}
}

// matchPattern implements the three pattern kinds: "*" matches anything,
// "ns:*" matches any string starting with "ns:" (but not the bare "ns"),
// and anything else is an exact match.
func matchPattern(pattern, action string) bool {
	if pattern == "*" {
		return true
	}
	if strings.HasSuffix(pattern, ":*") {
		prefix := strings.TrimSuffix(pattern, "*")
		return strings.HasPrefix(action, prefix)
	}
	return pattern == action
}

// DefaultPolicy is the built-in role policy used when no policy file is
// configured.
func DefaultPolicy() model.AuthPolicy {
	return model.AuthPolicy{
		Version: 1,
		Roles: map[model.Role]model.RolePolicy{
			model.RoleOwner: {Allowlist: []string{"*"}, Denylist: []string{}},
			model.RoleAdmin: {Allowlist: []string{"*"}, Denylist: []string{}},
			model.RoleOperator: {
				Allowlist: []string{"status:*", "tasks:*", "logs:*", "usage:*", "execution:*", "phase:create", "task:*", "orchestrator:*"},
				Denylist:  []string{"git:privileged:*", "config:write", "agent:kill", "agent:restart"},
			},
			model.RoleViewer: {
				Allowlist: []string{"status:*", "tasks:*", "logs:*", "usage:*"},
				Denylist:  []string{"execution:*", "phase:create", "task:*", "git:privileged:*", "config:write", "agent:*"},
			},
		},
	}
}

// LoadPolicy reads an AuthPolicy document from a YAML file at path. A path
// of "" returns the built-in DefaultPolicy.
func LoadPolicy(path string) (model.AuthPolicy, error) {
	if path == "" {
		return DefaultPolicy(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return model.AuthPolicy{}, fmt.Errorf("load auth policy %s: %w", path, err)
	}
	var policy model.AuthPolicy
	if err := yaml.Unmarshal(data, &policy); err != nil {
		return model.AuthPolicy{}, fmt.Errorf("parse auth policy %s: %w", path, err)
	}
	return policy, nil
}

// RoleResolver resolves the acting role for the current invocation (e.g.
// from a session token or CLI flag). It is a narrow external-collaborator
// contract: the evaluator only needs a Role back.
type RoleResolver interface {
	ResolveRole() (model.Role, error)
}

// ActionEvaluator composes role resolution and policy loading into the
// higher-level authorizeOrchestratorAction entry point, additionally
// emitting the policy-load-failed / role-resolution-failed /
// evaluator-error / missing-action-mapping deny reasons.
type ActionEvaluator struct {
	PolicyPath   string
	RoleResolver RoleResolver
	// ActionMap maps a known orchestrator-level action constant to its
	// concrete policy action string. A lookup miss is a
	// missing-action-mapping deny.
	ActionMap map[string]string
}

// Authorize resolves role + policy and evaluates the given orchestrator
// action key against it.
func (e *ActionEvaluator) Authorize(actionKey string) model.AuthDecision {
	action, ok := e.ActionMap[actionKey]
	if !ok {
		return model.AuthDecision{Allowed: false, Reason: model.DenyMissingActionMap, Detail: actionKey}
	}

	if e.RoleResolver == nil {
		return model.AuthDecision{Allowed: false, Reason: model.DenyEvaluatorError, Detail: "no role resolver configured"}
	}
	role, err := e.RoleResolver.ResolveRole()
	if err != nil {
		return model.AuthDecision{Allowed: false, Reason: model.DenyRoleResolutionFail, Detail: err.Error()}
	}

	policy, err := LoadPolicy(e.PolicyPath)
	if err != nil {
		return model.AuthDecision{Allowed: false, Reason: model.DenyPolicyLoadFailed, Detail: err.Error()}
	}

	return evaluateSafely(role, action, policy)
}

// evaluateSafely wraps Evaluate so an unexpected panic in pattern matching
// surfaces as evaluator-error rather than crashing the caller.
func evaluateSafely(role model.Role, action string, policy model.AuthPolicy) (decision model.AuthDecision) {
	defer func() {
		if r := recover(); r != nil {
			decision = model.AuthDecision{Allowed: false, Reason: model.DenyEvaluatorError, Detail: fmt.Sprintf("%v", r)}
		}
	}()
	return Evaluate(role, action, policy)
}
