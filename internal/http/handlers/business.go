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
)

// BusinessManager is the business service as the HTTP layer sees it.
type BusinessManager interface {
	Create(ctx context.Context, actor authz.Actor, name string) (model.Business, error)
	List(ctx context.Context, actor authz.Actor) ([]model.Business, error)
	Get(ctx context.Context, actor authz.Actor, id uuid.UUID) (model.Business, error)
	Update(ctx context.Context, actor authz.Actor, id uuid.UUID, upd repo.BusinessUpdate) (model.Business, error)
	Stats(ctx context.Context, actor authz.Actor, id uuid.UUID) (model.BusinessStats, error)
}

// BusinessHandler handles tenant endpoints
type BusinessHandler struct {
	businesses BusinessManager
	validate   *validator.Validate
	log        zerolog.Logger
}

func NewBusinessHandler(businesses BusinessManager, log zerolog.Logger) *BusinessHandler {
	return &BusinessHandler{businesses: businesses, validate: newValidator(), log: log.With().Str("handler", "business").Logger()}
}

type createBusinessRequest struct {
	Name string `json:"name" validate:"required"`
}

// HandleCreate handles POST /business
func (h *BusinessHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.GetActor(r.Context())
	if !ok {
		respondError(w, r, h.log, apperr.ErrUnauthenticated)
		return
	}
	var req createBusinessRequest
	if !decode(w, r, h.validate, &req) {
		return
	}
	b, err := h.businesses.Create(r.Context(), actor, req.Name)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, toBusiness(b))
}

// HandleList handles GET /business
func (h *BusinessHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.GetActor(r.Context())
	if !ok {
		respondError(w, r, h.log, apperr.ErrUnauthenticated)
		return
	}
	list, err := h.businesses.List(r.Context(), actor)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	out := make([]businessResponse, 0, len(list))
	for _, b := range list {
		out = append(out, toBusiness(b))
	}
	respondJSON(w, http.StatusOK, out)
}

// HandleGet handles GET /business/{id}
func (h *BusinessHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.target(w, r)
	if !ok {
		return
	}
	b, err := h.businesses.Get(r.Context(), actor, id)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, toBusiness(b))
}

type updateBusinessRequest struct {
	Name   *string `json:"name" validate:"omitempty,min=1"`
	Status *string `json:"status" validate:"omitempty,oneof=ACTIVE INACTIVE"`
}

// HandleUpdate handles PATCH /business/{id}
func (h *BusinessHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.target(w, r)
	if !ok {
		return
	}
	var req updateBusinessRequest
	if !decode(w, r, h.validate, &req) {
		return
	}
	b, err := h.businesses.Update(r.Context(), actor, id, repo.BusinessUpdate{Name: req.Name, Status: req.Status})
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, toBusiness(b))
}

type statsResponse struct {
	TotalUsers    int `json:"totalUsers"`
	ActiveUsers   int `json:"activeUsers"`
	TotalClients  int `json:"totalClients"`
	ActiveClients int `json:"activeClients"`
}

// HandleStats handles GET /business/{id}/stats
func (h *BusinessHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.target(w, r)
	if !ok {
		return
	}
	s, err := h.businesses.Stats(r.Context(), actor, id)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, statsResponse(s))
}

func (h *BusinessHandler) target(w http.ResponseWriter, r *http.Request) (authz.Actor, uuid.UUID, bool) {
	actor, ok := middleware.GetActor(r.Context())
	if !ok {
		respondError(w, r, h.log, apperr.ErrUnauthenticated)
		return authz.Actor{}, uuid.Nil, false
	}
	id, ok := uuidParam(w, r, "id")
	return actor, id, ok
}
