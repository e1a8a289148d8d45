package authz

import (
	"github.com/google/uuid"

	"github.com/sppt/server/internal/apperr"
	"github.com/sppt/server/internal/model"
)

var (
	ErrInsufficientRole = apperr.New(apperr.KindAuthorization, "insufficient_role", "insufficient role")
	ErrCrossTenant      = apperr.New(apperr.KindAuthorization, "cross_tenant", "cross-tenant access")
	ErrPeerRank         = apperr.New(apperr.KindAuthorization, "peer_rank", "cannot act on a user of equal or higher rank")
	ErrSelfModification = apperr.New(apperr.KindAuthorization, "self_modification", "action not allowed on your own account")
	ErrOwnerHasBusiness = apperr.New(apperr.KindAuthorization, "owner_has_business", "owner already has a business")
	ErrNotResourceOwner = apperr.New(apperr.KindAuthorization, "not_resource_owner", "resource belongs to another client")

	// ErrBusinessHasOwner is returned when a second OWNER is created for a business.
	ErrBusinessHasOwner = apperr.New(apperr.KindConflict, "business_has_owner", "business already has an owner")
)

// Actor is the authorization view of a staff principal.
type Actor struct {
	ID         uuid.UUID
	Role       model.Role
	BusinessID *uuid.UUID
}

// ActorFromUser builds an Actor from a stored staff user.
func ActorFromUser(u model.StaffUser) Actor {
	return Actor{ID: u.ID, Role: u.Role, BusinessID: u.BusinessID}
}

// Authorize is the base decision for every protected staff operation:
// the actor's role must be in required, and unless the actor is SUPER_ADMIN,
// a specified target tenant must be the actor's own business.
func Authorize(actor Actor, required []model.Role, target *uuid.UUID) error {
	if !hasRole(required, actor.Role) {
		return ErrInsufficientRole
	}
	if actor.Role != model.RoleSuperAdmin && target != nil && !sameTenant(actor.BusinessID, target) {
		return ErrCrossTenant
	}
	return nil
}

// Require authorizes actor for action using the permission table.
func Require(actor Actor, action Action, target *uuid.UUID) error {
	return Authorize(actor, RolesFor(action), target)
}

// CanManage reports whether actor may modify target. A principal may always act
// on itself; otherwise the actor must strictly outrank the target, which also
// limits CO_OWNER to EMPLOYEE targets, and must share the target's tenant.
func CanManage(actor, target Actor) error {
	if Rank(actor.Role) == 0 {
		return ErrInsufficientRole
	}
	if actor.ID == target.ID {
		return nil
	}
	if actor.Role != model.RoleSuperAdmin && !sameTenant(actor.BusinessID, target.BusinessID) {
		return ErrCrossTenant
	}
	if !Outranks(actor.Role, target.Role) {
		return ErrPeerRank
	}
	return nil
}

// CanDeactivate is CanManage without the self exemption.
func CanDeactivate(actor, target Actor) error {
	if actor.ID == target.ID {
		return ErrSelfModification
	}
	return CanManage(actor, target)
}

// CanCreateStaff decides whether actor may create a user with role in business.
// SUPER_ADMIN is never created through this path, OWNER only by SUPER_ADMIN, and
// every other role only by someone who outranks it within the same business.
func CanCreateStaff(actor Actor, role model.Role, business *uuid.UUID) error {
	if !role.Valid() || role == model.RoleSuperAdmin {
		return ErrInsufficientRole
	}
	if role == model.RoleOwner && actor.Role != model.RoleSuperAdmin {
		return ErrInsufficientRole
	}
	if !Outranks(actor.Role, role) {
		return ErrInsufficientRole
	}
	if role != model.RoleOwner && business == nil {
		return apperr.Invalid("businessId is required for " + string(role))
	}
	if actor.Role != model.RoleSuperAdmin && !sameTenant(actor.BusinessID, business) {
		return ErrCrossTenant
	}
	return nil
}

// CanCreateBusiness allows SUPER_ADMIN, and an OWNER that has no business yet.
func CanCreateBusiness(actor Actor) error {
	switch actor.Role {
	case model.RoleSuperAdmin:
		return nil
	case model.RoleOwner:
		if actor.BusinessID != nil {
			return ErrOwnerHasBusiness
		}
		return nil
	}
	return ErrInsufficientRole
}

// AuthorizeClient is the client-side rule: a client may only act on its own resources.
func AuthorizeClient(subject, owner uuid.UUID) error {
	if subject == uuid.Nil || subject != owner {
		return ErrNotResourceOwner
	}
	return nil
}

func hasRole(roles []model.Role, r model.Role) bool {
	for _, x := range roles {
		if x == r {
			return true
		}
	}
	return false
}

func sameTenant(a, b *uuid.UUID) bool {
	return a != nil && b != nil && *a == *b
}
