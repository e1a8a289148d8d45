package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sppt/server/internal/apperr"
	"github.com/sppt/server/internal/authz"
	"github.com/sppt/server/internal/model"
	"github.com/sppt/server/internal/repo"
)

// Business status values
const (
	BusinessActive   = "ACTIVE"
	BusinessInactive = "INACTIVE"
)

// BusinessService manages tenants
type BusinessService struct {
	businesses repo.BusinessRepo
	log        zerolog.Logger
}

// NewBusinessService creates a new business service
func NewBusinessService(businesses repo.BusinessRepo, log zerolog.Logger) *BusinessService {
	return &BusinessService{
		businesses: businesses,
		log:        log.With().Str("service", "business").Logger(),
	}
}

// Create adds a business. A business created by an OWNER is assigned to it
// in the same transaction; an OWNER can hold only one.
func (s *BusinessService) Create(ctx context.Context, actor authz.Actor, name string) (model.Business, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Business{}, apperr.Invalid("name is required")
	}
	if err := authz.CanCreateBusiness(actor); err != nil {
		return model.Business{}, err
	}

	var (
		b   model.Business
		err error
	)
	if actor.Role == model.RoleOwner {
		b, err = s.businesses.CreateForOwner(ctx, name, actor.ID)
	} else {
		b, err = s.businesses.Create(ctx, name)
	}
	if err != nil {
		return model.Business{}, err
	}
	s.log.Info().Str("actor_id", actor.ID.String()).Str("business_id", b.ID.String()).Msg("business created")
	return b, nil
}

// List returns every business. SUPER_ADMIN only.
func (s *BusinessService) List(ctx context.Context, actor authz.Actor) ([]model.Business, error) {
	if err := authz.Require(actor, authz.ActionBusinessList, nil); err != nil {
		return nil, err
	}
	return s.businesses.List(ctx)
}

func (s *BusinessService) Get(ctx context.Context, actor authz.Actor, id uuid.UUID) (model.Business, error) {
	if err := authz.Require(actor, authz.ActionBusinessRead, &id); err != nil {
		return model.Business{}, err
	}
	return s.businesses.GetByID(ctx, id)
}

// Update renames a business or changes its status
func (s *BusinessService) Update(ctx context.Context, actor authz.Actor, id uuid.UUID, upd repo.BusinessUpdate) (model.Business, error) {
	if err := authz.Require(actor, authz.ActionBusinessUpdate, &id); err != nil {
		return model.Business{}, err
	}
	if upd.Name != nil {
		n := strings.TrimSpace(*upd.Name)
		if n == "" {
			return model.Business{}, apperr.Invalid("name must not be empty")
		}
		upd.Name = &n
	}
	if upd.Status != nil && *upd.Status != BusinessActive && *upd.Status != BusinessInactive {
		return model.Business{}, apperr.Invalid("status must be ACTIVE or INACTIVE")
	}
	return s.businesses.Update(ctx, id, upd)
}

// Stats returns staff and client counters of a business
func (s *BusinessService) Stats(ctx context.Context, actor authz.Actor, id uuid.UUID) (model.BusinessStats, error) {
	if err := authz.Require(actor, authz.ActionBusinessRead, &id); err != nil {
		return model.BusinessStats{}, err
	}
	if _, err := s.businesses.GetByID(ctx, id); err != nil {
		return model.BusinessStats{}, err
	}
	return s.businesses.Stats(ctx, id)
}
