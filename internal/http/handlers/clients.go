package handlers

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sppt/server/internal/apperr"
	"github.com/sppt/server/internal/auth"
	"github.com/sppt/server/internal/middleware"
	"github.com/sppt/server/internal/model"
	"github.com/sppt/server/internal/service"
)

// ClientSessions is the client session protocol as the HTTP layer sees it.
type ClientSessions interface {
	Login(ctx context.Context, login, password string) (auth.Session[auth.ClientPrincipal], error)
	Refresh(ctx context.Context, token string) (auth.Session[auth.ClientPrincipal], error)
	Logout(ctx context.Context, principalID uuid.UUID, token string) error
}

// ClientManager is the client service as the HTTP layer sees it.
type ClientManager interface {
	Register(ctx context.Context, in service.RegisterClientInput) (auth.Session[auth.ClientPrincipal], error)
	Me(ctx context.Context, clientID uuid.UUID) (model.Client, error)
	RegisterBusiness(ctx context.Context, clientID, businessID uuid.UUID) (model.ClientBusiness, error)
	Businesses(ctx context.Context, clientID uuid.UUID) ([]model.ClientBusiness, error)
	Points(ctx context.Context, clientID, businessID uuid.UUID) (model.ClientBusiness, error)
}

// ClientsHandler handles end-customer endpoints
type ClientsHandler struct {
	sessions ClientSessions
	clients  ClientManager
	attempts middleware.Limiter
	validate *validator.Validate
	log      zerolog.Logger
}

func NewClientsHandler(sessions ClientSessions, clients ClientManager, attempts middleware.Limiter, log zerolog.Logger) *ClientsHandler {
	return &ClientsHandler{
		sessions: sessions,
		clients:  clients,
		attempts: attempts,
		validate: newValidator(),
		log:      log.With().Str("handler", "clients").Logger(),
	}
}

type registerClientRequest struct {
	Name     string `json:"name" validate:"required"`
	Phone    string `json:"phone" validate:"required"`
	Email    string `json:"email" validate:"omitempty,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type clientSessionResponse struct {
	tokenPair
	Client clientResponse `json:"client"`
}

// HandleRegister handles POST /clients/register
func (h *ClientsHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerClientRequest
	if !decode(w, r, h.validate, &req) {
		return
	}
	sess, err := h.clients.Register(r.Context(), service.RegisterClientInput{
		Phone:    req.Phone,
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, clientSessionResponse{
		tokenPair: newTokenPair(sess.AccessToken, sess.RefreshToken, sess.AccessExpiresAt),
		Client:    toClient(sess.Principal.Client),
	})
}

type clientLoginRequest struct {
	// Login is a phone number or an email.
	Login    string `json:"login" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// HandleLogin handles POST /clients/login
func (h *ClientsHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req clientLoginRequest
	if !decode(w, r, h.validate, &req) {
		return
	}
	if !allowAttempt(w, r, h.attempts, middleware.AttemptKey("client-login", req.Login), h.log) {
		return
	}
	sess, err := h.sessions.Login(r.Context(), req.Login, req.Password)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, clientSessionResponse{
		tokenPair: newTokenPair(sess.AccessToken, sess.RefreshToken, sess.AccessExpiresAt),
		Client:    toClient(sess.Principal.Client),
	})
}

// HandleRefresh handles POST /clients/refresh
func (h *ClientsHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decode(w, r, h.validate, &req) {
		return
	}
	sess, err := h.sessions.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, newTokenPair(sess.AccessToken, sess.RefreshToken, sess.AccessExpiresAt))
}

// HandleLogout handles POST /clients/logout (protected)
func (h *ClientsHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	clientID, ok := h.clientID(w, r)
	if !ok {
		return
	}
	var req refreshRequest
	if !decode(w, r, h.validate, &req) {
		return
	}
	if err := h.sessions.Logout(r.Context(), clientID, req.RefreshToken); err != nil {
		respondError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, messageResponse{Message: "logged out"})
}

// HandleMe handles GET /clients/me (protected)
func (h *ClientsHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	clientID, ok := h.clientID(w, r)
	if !ok {
		return
	}
	c, err := h.clients.Me(r.Context(), clientID)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, toClient(c))
}

type registerBusinessRequest struct {
	BusinessID string `json:"businessId" validate:"required,uuid"`
}

// HandleRegisterBusiness handles POST /clients/register-business (protected)
func (h *ClientsHandler) HandleRegisterBusiness(w http.ResponseWriter, r *http.Request) {
	clientID, ok := h.clientID(w, r)
	if !ok {
		return
	}
	var req registerBusinessRequest
	if !decode(w, r, h.validate, &req) {
		return
	}
	m, err := h.clients.RegisterBusiness(r.Context(), clientID, uuid.MustParse(req.BusinessID))
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, toMembership(m))
}

// HandleBusinesses handles GET /clients/businesses (protected)
func (h *ClientsHandler) HandleBusinesses(w http.ResponseWriter, r *http.Request) {
	clientID, ok := h.clientID(w, r)
	if !ok {
		return
	}
	list, err := h.clients.Businesses(r.Context(), clientID)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	out := make([]membershipResponse, 0, len(list))
	for _, m := range list {
		out = append(out, toMembership(m))
	}
	respondJSON(w, http.StatusOK, out)
}

// HandlePoints handles GET /clients/businesses/{businessId}/points (protected)
func (h *ClientsHandler) HandlePoints(w http.ResponseWriter, r *http.Request) {
	clientID, ok := h.clientID(w, r)
	if !ok {
		return
	}
	businessID, ok := uuidParam(w, r, "businessId")
	if !ok {
		return
	}
	m, err := h.clients.Points(r.Context(), clientID, businessID)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, toMembership(m))
}

func (h *ClientsHandler) clientID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, ok := middleware.GetClientID(r.Context())
	if !ok {
		respondError(w, r, h.log, apperr.ErrUnauthenticated)
	}
	return id, ok
}
