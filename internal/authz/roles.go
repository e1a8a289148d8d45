// Package authz decides whether an authenticated principal may perform an
// action. It is independent of transport and storage: callers pass in the
// actor and the target and get back nil or an AuthorizationError.
package authz

import (
	"github.com/sppt/server/internal/model"
)

// Rank orders staff roles: EMPLOYEE < CO_OWNER < OWNER < SUPER_ADMIN.
// Unknown roles rank 0.
func Rank(r model.Role) int {
	switch r {
	case model.RoleEmployee:
		return 1
	case model.RoleCoOwner:
		return 2
	case model.RoleOwner:
		return 3
	case model.RoleSuperAdmin:
		return 4
	}
	return 0
}

// Outranks reports whether a is strictly above b.
func Outranks(a, b model.Role) bool {
	return Rank(a) > Rank(b)
}

// AtLeast returns every role ranked at or above min, highest first.
func AtLeast(min model.Role) []model.Role {
	var out []model.Role
	for _, r := range model.Roles {
		if Rank(r) >= Rank(min) {
			out = append(out, r)
		}
	}
	return out
}
