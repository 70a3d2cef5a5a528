package cli

import (
	"fmt"

	"github.com/ixado-dev/ixado/internal/model"
)

// flagRoleResolver resolves the acting role from the --role persistent
// flag / IXADO_ROLE environment override, the simplest RoleResolver
// implementation for a single-operator CLI invocation.
type flagRoleResolver struct {
	role string
}

func (r flagRoleResolver) ResolveRole() (model.Role, error) {
	switch r.role {
	case string(model.RoleOwner):
		return model.RoleOwner, nil
	case string(model.RoleAdmin):
		return model.RoleAdmin, nil
	case string(model.RoleOperator):
		return model.RoleOperator, nil
	case string(model.RoleViewer):
		return model.RoleViewer, nil
	case "":
		return model.RoleNone, nil
	default:
		return model.RoleNone, fmt.Errorf("unknown role %q", r.role)
	}
}
