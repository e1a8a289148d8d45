package authz

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sppt/server/internal/apperr"
	"github.com/sppt/server/internal/model"
)

func ptr(id uuid.UUID) *uuid.UUID { return &id }

func TestRankOrder(t *testing.T) {
	assert.Less(t, Rank(model.RoleEmployee), Rank(model.RoleCoOwner))
	assert.Less(t, Rank(model.RoleCoOwner), Rank(model.RoleOwner))
	assert.Less(t, Rank(model.RoleOwner), Rank(model.RoleSuperAdmin))
	assert.Equal(t, 0, Rank(model.Role("GUEST")))
	assert.Equal(t, []model.Role{model.RoleSuperAdmin, model.RoleOwner}, AtLeast(model.RoleOwner))
}

// Every subset of roles as a required set.
func roleSubsets() [][]model.Role {
	var out [][]model.Role
	n := len(model.Roles)
	for mask := 0; mask < 1<<n; mask++ {
		var set []model.Role
		for i := 0; i < n; i++ {
			if mask&(1<<i) != 0 {
				set = append(set, model.Roles[i])
			}
		}
		out = append(out, set)
	}
	return out
}

func TestAuthorize_RoleCheckIndependentOfTenant(t *testing.T) {
	home := uuid.New()
	other := uuid.New()
	targets := []*uuid.UUID{nil, ptr(home), ptr(other)}

	for _, role := range model.Roles {
		actor := Actor{ID: uuid.New(), Role: role, BusinessID: ptr(home)}
		if role == model.RoleSuperAdmin {
			actor.BusinessID = nil
		}
		for _, required := range roleSubsets() {
			for _, target := range targets {
				err := Authorize(actor, required, target)
				if !hasRole(required, role) {
					assert.ErrorIs(t, err, ErrInsufficientRole, "role=%s required=%v", role, required)
				} else {
					assert.NotErrorIs(t, err, ErrInsufficientRole, "role=%s required=%v", role, required)
				}
			}
		}
	}
}

func TestAuthorize_CrossTenantIsolation(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	owner := Actor{ID: uuid.New(), Role: model.RoleOwner, BusinessID: ptr(a)}
	all := model.Roles

	assert.NoError(t, Authorize(owner, all, ptr(a)))
	assert.NoError(t, Authorize(owner, all, nil))
	err := Authorize(owner, all, ptr(b))
	assert.ErrorIs(t, err, ErrCrossTenant)
	assert.Equal(t, apperr.KindAuthorization, apperr.KindOf(err))

	superAdmin := Actor{ID: uuid.New(), Role: model.RoleSuperAdmin}
	assert.NoError(t, Authorize(superAdmin, all, ptr(b)))

	detached := Actor{ID: uuid.New(), Role: model.RoleOwner}
	assert.ErrorIs(t, Authorize(detached, all, ptr(a)), ErrCrossTenant)
}

func TestRequire_UsesPermissionTable(t *testing.T) {
	biz := uuid.New()
	employee := Actor{ID: uuid.New(), Role: model.RoleEmployee, BusinessID: ptr(biz)}
	coOwner := Actor{ID: uuid.New(), Role: model.RoleCoOwner, BusinessID: ptr(biz)}

	assert.NoError(t, Require(employee, ActionBusinessRead, ptr(biz)))
	assert.ErrorIs(t, Require(employee, ActionStaffCreate, ptr(biz)), ErrInsufficientRole)
	assert.NoError(t, Require(coOwner, ActionBusinessUpdate, ptr(biz)))
	assert.ErrorIs(t, Require(coOwner, ActionBusinessCreate, nil), ErrInsufficientRole)
	assert.ErrorIs(t, Require(coOwner, ActionBusinessList, nil), ErrInsufficientRole)
}

func TestPermissionsForRole_ReturnsCopy(t *testing.T) {
	perms := PermissionsForRole(model.RoleEmployee)
	require.NotEmpty(t, perms)
	perms[0] = ActionBusinessCreate
	assert.False(t, Can(model.RoleEmployee, ActionBusinessCreate))
}

func TestCanManage(t *testing.T) {
	biz, otherBiz := uuid.New(), uuid.New()
	superAdmin := Actor{ID: uuid.New(), Role: model.RoleSuperAdmin}
	owner := Actor{ID: uuid.New(), Role: model.RoleOwner, BusinessID: ptr(biz)}
	owner2 := Actor{ID: uuid.New(), Role: model.RoleOwner, BusinessID: ptr(biz)}
	coOwner := Actor{ID: uuid.New(), Role: model.RoleCoOwner, BusinessID: ptr(biz)}
	coOwner2 := Actor{ID: uuid.New(), Role: model.RoleCoOwner, BusinessID: ptr(biz)}
	employee := Actor{ID: uuid.New(), Role: model.RoleEmployee, BusinessID: ptr(biz)}
	foreignEmployee := Actor{ID: uuid.New(), Role: model.RoleEmployee, BusinessID: ptr(otherBiz)}

	tests := []struct {
		name   string
		actor  Actor
		target Actor
		want   error
	}{
		{"super admin manages owner", superAdmin, owner, nil},
		{"owner manages co-owner", owner, coOwner, nil},
		{"owner manages employee", owner, employee, nil},
		{"owner cannot manage another owner", owner, owner2, ErrPeerRank},
		{"co-owner manages employee", coOwner, employee, nil},
		{"co-owner cannot manage co-owner", coOwner, coOwner2, ErrPeerRank},
		{"co-owner cannot manage owner", coOwner, owner, ErrPeerRank},
		{"employee cannot manage employee", employee, Actor{ID: uuid.New(), Role: model.RoleEmployee, BusinessID: ptr(biz)}, ErrPeerRank},
		{"owner cannot cross tenant", owner, foreignEmployee, ErrCrossTenant},
		{"super admin crosses tenant", superAdmin, foreignEmployee, nil},
		{"self is allowed", employee, employee, nil},
		{"nobody manages super admin", owner, superAdmin, ErrCrossTenant},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CanManage(tt.actor, tt.target)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCanDeactivate_Self(t *testing.T) {
	owner := Actor{ID: uuid.New(), Role: model.RoleOwner, BusinessID: ptr(uuid.New())}
	assert.ErrorIs(t, CanDeactivate(owner, owner), ErrSelfModification)

	superAdmin := Actor{ID: uuid.New(), Role: model.RoleSuperAdmin}
	assert.ErrorIs(t, CanDeactivate(superAdmin, superAdmin), ErrSelfModification)
}

func TestCanCreateStaff(t *testing.T) {
	biz, otherBiz := uuid.New(), uuid.New()
	superAdmin := Actor{ID: uuid.New(), Role: model.RoleSuperAdmin}
	owner := Actor{ID: uuid.New(), Role: model.RoleOwner, BusinessID: ptr(biz)}
	coOwner := Actor{ID: uuid.New(), Role: model.RoleCoOwner, BusinessID: ptr(biz)}
	employee := Actor{ID: uuid.New(), Role: model.RoleEmployee, BusinessID: ptr(biz)}

	assert.NoError(t, CanCreateStaff(superAdmin, model.RoleOwner, ptr(biz)))
	assert.NoError(t, CanCreateStaff(superAdmin, model.RoleOwner, nil))
	assert.NoError(t, CanCreateStaff(owner, model.RoleCoOwner, ptr(biz)))
	assert.NoError(t, CanCreateStaff(owner, model.RoleEmployee, ptr(biz)))
	assert.NoError(t, CanCreateStaff(coOwner, model.RoleEmployee, ptr(biz)))

	assert.ErrorIs(t, CanCreateStaff(owner, model.RoleOwner, ptr(biz)), ErrInsufficientRole)
	assert.ErrorIs(t, CanCreateStaff(coOwner, model.RoleCoOwner, ptr(biz)), ErrInsufficientRole)
	assert.ErrorIs(t, CanCreateStaff(employee, model.RoleEmployee, ptr(biz)), ErrInsufficientRole)
	assert.ErrorIs(t, CanCreateStaff(superAdmin, model.RoleSuperAdmin, nil), ErrInsufficientRole)
	assert.ErrorIs(t, CanCreateStaff(owner, model.RoleEmployee, ptr(otherBiz)), ErrCrossTenant)

	err := CanCreateStaff(superAdmin, model.RoleEmployee, nil)
	assert.Equal(t, apperr.KindInvalid, apperr.KindOf(err))
}

func TestCanCreateBusiness(t *testing.T) {
	assert.NoError(t, CanCreateBusiness(Actor{Role: model.RoleSuperAdmin}))
	assert.NoError(t, CanCreateBusiness(Actor{Role: model.RoleOwner}))
	assert.ErrorIs(t, CanCreateBusiness(Actor{Role: model.RoleOwner, BusinessID: ptr(uuid.New())}), ErrOwnerHasBusiness)
	assert.ErrorIs(t, CanCreateBusiness(Actor{Role: model.RoleCoOwner, BusinessID: ptr(uuid.New())}), ErrInsufficientRole)
}

func TestAuthorizeClient(t *testing.T) {
	id := uuid.New()
	assert.NoError(t, AuthorizeClient(id, id))
	assert.ErrorIs(t, AuthorizeClient(id, uuid.New()), ErrNotResourceOwner)
	assert.ErrorIs(t, AuthorizeClient(uuid.Nil, uuid.Nil), ErrNotResourceOwner)
}
