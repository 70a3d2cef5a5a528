package authz

import (
	"testing"

	"github.com/ixado-dev/ixado/internal/model"
)

func TestEvaluate_NoRoleAlwaysDenies(t *testing.T) {
	policy := DefaultPolicy()
	decision := Evaluate(model.RoleNone, "status:read", policy)
	if decision.Allowed {
		t.Fatalf("expected deny for role=none, got allow")
	}
	if decision.Reason != model.DenyNoRole {
		t.Fatalf("expected reason %s, got %s", model.DenyNoRole, decision.Reason)
	}
}

func TestEvaluate_DenylistDominatesWildcardAllowlist(t *testing.T) {
	policy := model.AuthPolicy{
		Version: 1,
		Roles: map[model.Role]model.RolePolicy{
			model.RoleAdmin: {
				Allowlist: []string{"*"},
				Denylist:  []string{"git:privileged:push"},
			},
		},
	}

	decision := Evaluate(model.RoleAdmin, "git:privileged:push", policy)
	if decision.Allowed {
		t.Fatalf("expected denylist to dominate wildcard allowlist")
	}
	if decision.Reason != model.DenyDenylistMatch {
		t.Fatalf("expected reason %s, got %s", model.DenyDenylistMatch, decision.Reason)
	}
}

func TestEvaluate_PrefixWildcard(t *testing.T) {
	policy := model.AuthPolicy{
		Roles: map[model.Role]model.RolePolicy{
			model.RoleOperator: {Allowlist: []string{"git:*"}},
		},
	}

	tests := []struct {
		action string
		want   bool
	}{
		{"git:privileged:push", true},
		{"git", false}, // bare prefix without the separator must not match
		{"gitlab:read", false},
	}

	for _, tt := range tests {
		decision := Evaluate(model.RoleOperator, tt.action, policy)
		if decision.Allowed != tt.want {
			t.Errorf("action %q: got allowed=%v, want %v", tt.action, decision.Allowed, tt.want)
		}
	}
}

func TestEvaluate_DefaultDenyNoAllowlistMatch(t *testing.T) {
	policy := DefaultPolicy()
	decision := Evaluate(model.RoleViewer, "orchestrator:ci-integration:run", policy)
	if decision.Allowed {
		t.Fatalf("expected deny for viewer on orchestrator:ci-integration:run")
	}
	if decision.Reason != model.DenyNoAllowlistMatch {
		t.Fatalf("expected reason %s, got %s", model.DenyNoAllowlistMatch, decision.Reason)
	}
}

func TestEvaluate_UnknownRoleDenies(t *testing.T) {
	policy := DefaultPolicy()
	decision := Evaluate(model.Role("ghost"), "status:read", policy)
	if decision.Allowed {
		t.Fatalf("expected deny for unknown role")
	}
	if decision.Reason != model.DenyNoAllowlistMatch {
		t.Fatalf("expected reason %s, got %s", model.DenyNoAllowlistMatch, decision.Reason)
	}
}

type fixedRoleResolver struct {
	role model.Role
	err  error
}

func (f fixedRoleResolver) ResolveRole() (model.Role, error) { return f.role, f.err }

func TestActionEvaluator_MissingActionMapping(t *testing.T) {
	e := &ActionEvaluator{
		RoleResolver: fixedRoleResolver{role: model.RoleOwner},
		ActionMap:    map[string]string{},
	}
	decision := e.Authorize("orchestrator:ci-integration:run")
	if decision.Allowed {
		t.Fatalf("expected deny for missing action mapping")
	}
	if decision.Reason != model.DenyMissingActionMap {
		t.Fatalf("expected reason %s, got %s", model.DenyMissingActionMap, decision.Reason)
	}
}

func TestActionEvaluator_RoleResolutionFailed(t *testing.T) {
	e := &ActionEvaluator{
		RoleResolver: fixedRoleResolver{err: errResolve},
		ActionMap:    DefaultActionMap(),
	}
	decision := e.Authorize(ActionStatusRead)
	if decision.Allowed || decision.Reason != model.DenyRoleResolutionFail {
		t.Fatalf("expected role-resolution-failed deny, got %+v", decision)
	}
}

var errResolve = errTest("role resolution failed")

type errTest string

func (e errTest) Error() string { return string(e) }
