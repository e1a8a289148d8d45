// Package service holds the staff, business, client and verification use
// cases. Every staff operation takes the acting principal as an authz.Actor
// and is authorized here, not in the HTTP layer.
package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sppt/server/internal/apperr"
	"github.com/sppt/server/internal/auth"
	"github.com/sppt/server/internal/authz"
	"github.com/sppt/server/internal/model"
	"github.com/sppt/server/internal/repo"
)

// StaffSessions is the part of the staff session protocol the staff service
// drives on behalf of another user.
type StaffSessions interface {
	RevokeAll(ctx context.Context, principalID uuid.UUID) (int64, error)
	ResetPassword(ctx context.Context, id uuid.UUID, next string) error
}

// CreateStaffInput describes a new staff user.
type CreateStaffInput struct {
	Email      string
	Password   string
	Name       string
	LastName   string
	Role       model.Role
	BusinessID *uuid.UUID
}

// StaffService manages back-office users
type StaffService struct {
	users    repo.StaffRepo
	sessions StaffSessions
	hasher   auth.PasswordHasher
	log      zerolog.Logger
}

// NewStaffService creates a new staff service
func NewStaffService(users repo.StaffRepo, sessions StaffSessions, hasher auth.PasswordHasher, log zerolog.Logger) *StaffService {
	return &StaffService{
		users:    users,
		sessions: sessions,
		hasher:   hasher,
		log:      log.With().Str("service", "staff").Logger(),
	}
}

// Create adds a staff user. When the caller omits the business, a
// non-OWNER user is placed in the actor's own business.
func (s *StaffService) Create(ctx context.Context, actor authz.Actor, in CreateStaffInput) (model.StaffUser, error) {
	in.Email = auth.NormalizeEmail(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	if in.Email == "" || in.Name == "" {
		return model.StaffUser{}, apperr.Invalid("email and name are required")
	}
	if err := auth.CheckPassword(in.Password); err != nil {
		return model.StaffUser{}, err
	}
	if in.BusinessID == nil && in.Role != model.RoleOwner && actor.Role != model.RoleSuperAdmin {
		in.BusinessID = actor.BusinessID
	}

	if err := authz.Require(actor, authz.ActionStaffCreate, nil); err != nil {
		return model.StaffUser{}, err
	}
	if err := authz.CanCreateStaff(actor, in.Role, in.BusinessID); err != nil {
		return model.StaffUser{}, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return model.StaffUser{}, err
	}
	u, err := s.users.Create(ctx, model.StaffUser{
		Email:        in.Email,
		PasswordHash: hash,
		Name:         in.Name,
		LastName:     strings.TrimSpace(in.LastName),
		Role:         in.Role,
		BusinessID:   in.BusinessID,
	})
	if err != nil {
		return model.StaffUser{}, err
	}
	s.log.Info().
		Str("actor_id", actor.ID.String()).
		Str("user_id", u.ID.String()).
		Str("role", string(u.Role)).
		Msg("staff user created")
	return u, nil
}

// ListByBusiness lists the staff of one business
func (s *StaffService) ListByBusiness(ctx context.Context, actor authz.Actor, businessID uuid.UUID) ([]model.StaffUser, error) {
	if err := authz.Require(actor, authz.ActionStaffList, &businessID); err != nil {
		return nil, err
	}
	return s.users.ListByBusiness(ctx, businessID)
}

// Get returns one staff user. Anyone may read themselves.
func (s *StaffService) Get(ctx context.Context, actor authz.Actor, id uuid.UUID) (model.StaffUser, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return model.StaffUser{}, err
	}
	if actor.ID == id {
		return u, nil
	}
	if err := s.requireTenant(actor, authz.ActionStaffRead, u); err != nil {
		return model.StaffUser{}, err
	}
	return u, nil
}

// Update changes profile fields of a user the actor may manage
func (s *StaffService) Update(ctx context.Context, actor authz.Actor, id uuid.UUID, upd repo.StaffUpdate) (model.StaffUser, error) {
	target, err := s.manageable(ctx, actor, authz.ActionStaffUpdate, id)
	if err != nil {
		return model.StaffUser{}, err
	}
	if upd.Email != nil {
		e := auth.NormalizeEmail(*upd.Email)
		if e == "" {
			return model.StaffUser{}, apperr.Invalid("email must not be empty")
		}
		upd.Email = &e
	}
	u, err := s.users.Update(ctx, target.ID, upd)
	if err != nil {
		return model.StaffUser{}, err
	}
	return u, nil
}

// Deactivate soft-deletes a user and revokes all of its sessions. Nobody can
// deactivate themselves.
func (s *StaffService) Deactivate(ctx context.Context, actor authz.Actor, id uuid.UUID) error {
	if err := authz.Require(actor, authz.ActionStaffActivate, nil); err != nil {
		return err
	}
	target, err := s.users.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := authz.CanDeactivate(actor, authz.ActorFromUser(target)); err != nil {
		return err
	}
	if err := s.users.SetActive(ctx, id, false); err != nil {
		return err
	}
	if _, err := s.sessions.RevokeAll(ctx, id); err != nil {
		return err
	}
	s.log.Info().Str("actor_id", actor.ID.String()).Str("user_id", id.String()).Msg("staff user deactivated")
	return nil
}

// Activate re-enables a deactivated user
func (s *StaffService) Activate(ctx context.Context, actor authz.Actor, id uuid.UUID) error {
	target, err := s.manageable(ctx, actor, authz.ActionStaffActivate, id)
	if err != nil {
		return err
	}
	return s.users.SetActive(ctx, target.ID, true)
}

// ResetPassword sets another user's password without the current one and
// revokes its sessions. Users change their own password through
// ChangePassword, which checks the current one.
func (s *StaffService) ResetPassword(ctx context.Context, actor authz.Actor, id uuid.UUID, next string) error {
	if actor.ID == id {
		return authz.ErrSelfModification
	}
	target, err := s.manageable(ctx, actor, authz.ActionStaffReset, id)
	if err != nil {
		return err
	}
	if err := s.sessions.ResetPassword(ctx, target.ID, next); err != nil {
		return err
	}
	s.log.Info().Str("actor_id", actor.ID.String()).Str("user_id", id.String()).Msg("password reset")
	return nil
}

func (s *StaffService) manageable(ctx context.Context, actor authz.Actor, action authz.Action, id uuid.UUID) (model.StaffUser, error) {
	if err := authz.Require(actor, action, nil); err != nil {
		return model.StaffUser{}, err
	}
	target, err := s.users.GetByID(ctx, id)
	if err != nil {
		return model.StaffUser{}, err
	}
	if err := authz.CanManage(actor, authz.ActorFromUser(target)); err != nil {
		return model.StaffUser{}, err
	}
	return target, nil
}

// requireTenant authorizes action against the target's business. A target
// without a business is only visible to SUPER_ADMIN.
func (s *StaffService) requireTenant(actor authz.Actor, action authz.Action, target model.StaffUser) error {
	if err := authz.Require(actor, action, target.BusinessID); err != nil {
		return err
	}
	if target.BusinessID == nil && actor.Role != model.RoleSuperAdmin {
		return authz.ErrCrossTenant
	}
	return nil
}
