package pipeline

import (
	"context"
	"net/http"

	"github.com/scholaraid/apiserver/types"
)

// Access restricts a route to a set of roles. The zero value admits any
// authenticated caller.
type Access struct {
	roles   []types.Role
	message string
}

var (
	Admin      = Access{roles: []types.Role{types.RoleAdmin, types.RoleSuperAdmin}, message: "Admin access required"}
	SuperAdmin = Access{roles: []types.Role{types.RoleSuperAdmin}, message: "Super admin access required"}
)

// Restricted reports whether the access table names any role.
func (a Access) Restricted() bool {
	return len(a.roles) > 0
}

func (a Access) allows(role types.Role) bool {
	for _, r := range a.roles {
		if r == role {
			return true
		}
	}
	return false
}

// Authorize returns the stage enforcing a. It must run after authentication.
func Authorize(a Access) Stage {
	return func(_ context.Context, c Call) (Call, error) {
		if c.Identity == nil {
			return c, Unauthorized(msgMissingHeader)
		}
		if !a.allows(c.Identity.Role) {
			return c, Fail(http.StatusForbidden, a.message)
		}
		return c, nil
	}
}
