package handlers

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sppt/server/internal/apperr"
	"github.com/sppt/server/internal/authz"
	"github.com/sppt/server/internal/middleware"
	"github.com/sppt/server/internal/model"
	"github.com/sppt/server/internal/repo"
	"github.com/sppt/server/internal/service"
)

// StaffManager is the staff service as the HTTP layer sees it.
type StaffManager interface {
	Create(ctx context.Context, actor authz.Actor, in service.CreateStaffInput) (model.StaffUser, error)
	ListByBusiness(ctx context.Context, actor authz.Actor, businessID uuid.UUID) ([]model.StaffUser, error)
	Get(ctx context.Context, actor authz.Actor, id uuid.UUID) (model.StaffUser, error)
	Update(ctx context.Context, actor authz.Actor, id uuid.UUID, upd repo.StaffUpdate) (model.StaffUser, error)
	Deactivate(ctx context.Context, actor authz.Actor, id uuid.UUID) error
	Activate(ctx context.Context, actor authz.Actor, id uuid.UUID) error
}

// UsersHandler handles staff management endpoints
type UsersHandler struct {
	staff    StaffManager
	validate *validator.Validate
	log      zerolog.Logger
}

func NewUsersHandler(staff StaffManager, log zerolog.Logger) *UsersHandler {
	return &UsersHandler{staff: staff, validate: newValidator(), log: log.With().Str("handler", "users").Logger()}
}

type createUserRequest struct {
	Email      string     `json:"email" validate:"required,email"`
	Password   string     `json:"password" validate:"required,min=6"`
	Name       string     `json:"name" validate:"required"`
	LastName   string     `json:"lastName"`
	Role       model.Role `json:"role" validate:"required,oneof=OWNER CO_OWNER EMPLOYEE"`
	BusinessID *string    `json:"businessId" validate:"omitempty,uuid"`
}

// HandleCreate handles POST /users
func (h *UsersHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req createUserRequest
	if !decode(w, r, h.validate, &req) {
		return
	}
	in := service.CreateStaffInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		LastName: req.LastName,
		Role:     req.Role,
	}
	if req.BusinessID != nil {
		id := uuid.MustParse(*req.BusinessID)
		in.BusinessID = &id
	}
	u, err := h.staff.Create(r.Context(), actor, in)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, toStaff(u))
}

// HandleListByBusiness handles GET /users/business/{businessId}
func (h *UsersHandler) HandleListByBusiness(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	businessID, ok := uuidParam(w, r, "businessId")
	if !ok {
		return
	}
	users, err := h.staff.ListByBusiness(r.Context(), actor, businessID)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	out := make([]staffResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toStaff(u))
	}
	respondJSON(w, http.StatusOK, out)
}

// HandleGet handles GET /users/{id}
func (h *UsersHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	u, err := h.staff.Get(r.Context(), actor, id)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, toStaff(u))
}

type updateUserRequest struct {
	Email    *string `json:"email" validate:"omitempty,email"`
	Name     *string `json:"name" validate:"omitempty,min=1"`
	LastName *string `json:"lastName"`
}

// HandleUpdate handles PATCH /users/{id}
func (h *UsersHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req updateUserRequest
	if !decode(w, r, h.validate, &req) {
		return
	}
	u, err := h.staff.Update(r.Context(), actor, id, repo.StaffUpdate{Email: req.Email, Name: req.Name, LastName: req.LastName})
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, toStaff(u))
}

// HandleDeactivate handles DELETE /users/{id}. Users are never hard-deleted.
func (h *UsersHandler) HandleDeactivate(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.staff.Deactivate(r.Context(), actor, id); err != nil {
		respondError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, messageResponse{Message: "user deactivated"})
}

// HandleActivate handles PATCH /users/{id}/activate
func (h *UsersHandler) HandleActivate(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.staff.Activate(r.Context(), actor, id); err != nil {
		respondError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, messageResponse{Message: "user activated"})
}

func (h *UsersHandler) actor(w http.ResponseWriter, r *http.Request) (authz.Actor, bool) {
	actor, ok := middleware.GetActor(r.Context())
	if !ok {
		respondError(w, r, h.log, apperr.ErrUnauthenticated)
	}
	return actor, ok
}
