package authz

import "github.com/sppt/server/internal/model"

// Action names a protected operation.
type Action string

const (
	ActionBusinessCreate Action = "business:create"
	ActionBusinessList   Action = "business:list"
	ActionBusinessRead   Action = "business:read"
	ActionBusinessUpdate Action = "business:update"
	ActionStaffList      Action = "staff:list"
	ActionStaffRead      Action = "staff:read"
	ActionStaffCreate    Action = "staff:create"
	ActionStaffUpdate    Action = "staff:update"
	ActionStaffActivate  Action = "staff:activate"
	ActionStaffReset     Action = "staff:reset-password"
	ActionClientRead     Action = "client:read"
)

// rolePermissions is the single source of truth for role x action.
// Tenant scope and rank rules are applied on top of it by Authorize and CanManage.
var rolePermissions = map[model.Role][]Action{
	model.RoleSuperAdmin: {
		ActionBusinessCreate, ActionBusinessList, ActionBusinessRead, ActionBusinessUpdate,
		ActionStaffList, ActionStaffRead, ActionStaffCreate, ActionStaffUpdate,
		ActionStaffActivate, ActionStaffReset,
		ActionClientRead,
	},
	model.RoleOwner: {
		ActionBusinessCreate, ActionBusinessRead, ActionBusinessUpdate,
		ActionStaffList, ActionStaffRead, ActionStaffCreate, ActionStaffUpdate,
		ActionStaffActivate, ActionStaffReset,
		ActionClientRead,
	},
	model.RoleCoOwner: {
		ActionBusinessRead, ActionBusinessUpdate,
		ActionStaffList, ActionStaffRead, ActionStaffCreate, ActionStaffUpdate,
		ActionStaffActivate, ActionStaffReset,
		ActionClientRead,
	},
	model.RoleEmployee: {
		ActionBusinessRead,
		ActionStaffRead,
		ActionClientRead,
	},
}

// Can reports whether role is granted action by the permission table.
func Can(role model.Role, action Action) bool {
	for _, a := range rolePermissions[role] {
		if a == action {
			return true
		}
	}
	return false
}

// RolesFor returns the roles granted action, highest first.
func RolesFor(action Action) []model.Role {
	var out []model.Role
	for _, r := range model.Roles {
		if Can(r, action) {
			out = append(out, r)
		}
	}
	return out
}

// PermissionsForRole returns a copy of the actions granted to role.
func PermissionsForRole(role model.Role) []Action {
	perms := rolePermissions[role]
	out := make([]Action, len(perms))
	copy(out, perms)
	return out
}
