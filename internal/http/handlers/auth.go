package handlers

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sppt/server/internal/apperr"
	"github.com/sppt/server/internal/auth"
	"github.com/sppt/server/internal/authz"
	"github.com/sppt/server/internal/logging"
	"github.com/sppt/server/internal/metrics"
	"github.com/sppt/server/internal/middleware"
)

// StaffSessions is the staff session protocol as the HTTP layer sees it.
type StaffSessions interface {
	Login(ctx context.Context, login, password string) (auth.Session[auth.StaffPrincipal], error)
	Refresh(ctx context.Context, token string) (auth.Session[auth.StaffPrincipal], error)
	Logout(ctx context.Context, principalID uuid.UUID, token string) error
	RevokeAll(ctx context.Context, principalID uuid.UUID) (int64, error)
	ChangePassword(ctx context.Context, id uuid.UUID, current, next string) error
}

// PasswordResetter resets another staff user's password after authorizing the actor.
type PasswordResetter interface {
	ResetPassword(ctx context.Context, actor authz.Actor, id uuid.UUID, next string) error
}

// AuthHandler handles staff authentication endpoints
type AuthHandler struct {
	sessions StaffSessions
	staff    PasswordResetter
	attempts middleware.Limiter
	validate *validator.Validate
	log      zerolog.Logger
}

// NewAuthHandler creates a new auth handler. attempts limits login attempts
// per email.
func NewAuthHandler(sessions StaffSessions, staff PasswordResetter, attempts middleware.Limiter, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		sessions: sessions,
		staff:    staff,
		attempts: attempts,
		validate: newValidator(),
		log:      log.With().Str("handler", "auth").Logger(),
	}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type staffLoginResponse struct {
	tokenPair
	User staffResponse `json:"user"`
}

// HandleLogin handles POST /auth/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, h.validate, &req) {
		return
	}
	if !allowAttempt(w, r, h.attempts, middleware.AttemptKey("staff-login", req.Email), h.log) {
		return
	}

	sess, err := h.sessions.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.log.Info().Str("email", logging.MaskEmail(req.Email)).Str("ip", middleware.GetIPKey(r)).Msg("staff login failed")
		respondError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, staffLoginResponse{
		tokenPair: newTokenPair(sess.AccessToken, sess.RefreshToken, sess.AccessExpiresAt),
		User:      toStaff(sess.Principal.StaffUser),
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// HandleRefresh handles POST /auth/refresh
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
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

// HandleLogout handles POST /auth/logout (protected)
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetStaff(r.Context())
	if !ok {
		respondError(w, r, h.log, apperr.ErrUnauthenticated)
		return
	}
	var req refreshRequest
	if !decode(w, r, h.validate, &req) {
		return
	}
	if err := h.sessions.Logout(r.Context(), user.ID, req.RefreshToken); err != nil {
		respondError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, messageResponse{Message: "logged out"})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=6"`
}

// HandleChangePassword handles POST /auth/change-password (protected)
func (h *AuthHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetStaff(r.Context())
	if !ok {
		respondError(w, r, h.log, apperr.ErrUnauthenticated)
		return
	}
	var req changePasswordRequest
	if !decode(w, r, h.validate, &req) {
		return
	}
	if err := h.sessions.ChangePassword(r.Context(), user.ID, req.CurrentPassword, req.NewPassword); err != nil {
		respondError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, messageResponse{Message: "password changed"})
}

type resetPasswordRequest struct {
	UserID      string `json:"userId" validate:"required,uuid"`
	NewPassword string `json:"newPassword" validate:"required,min=6"`
}

// HandleResetPassword handles POST /auth/reset-password (protected)
func (h *AuthHandler) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.GetActor(r.Context())
	if !ok {
		respondError(w, r, h.log, apperr.ErrUnauthenticated)
		return
	}
	var req resetPasswordRequest
	if !decode(w, r, h.validate, &req) {
		return
	}
	if err := h.staff.ResetPassword(r.Context(), actor, uuid.MustParse(req.UserID), req.NewPassword); err != nil {
		respondError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, messageResponse{Message: "password reset"})
}

type revokeAllResponse struct {
	Message string `json:"message"`
	Revoked int64  `json:"revoked"`
}

// HandleRevokeAll handles POST /auth/revoke-all-sessions (protected)
func (h *AuthHandler) HandleRevokeAll(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetStaff(r.Context())
	if !ok {
		respondError(w, r, h.log, apperr.ErrUnauthenticated)
		return
	}
	n, err := h.sessions.RevokeAll(r.Context(), user.ID)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, revokeAllResponse{Message: "all sessions revoked", Revoked: n})
}

// HandleMe handles GET /auth/me (protected). Returns the authenticated user.
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetStaff(r.Context())
	if !ok {
		respondError(w, r, h.log, apperr.ErrUnauthenticated)
		return
	}
	respondJSON(w, http.StatusOK, toStaff(user))
}

// allowAttempt applies a per-identity limiter. A limiter outage does not
// block logins.
func allowAttempt(w http.ResponseWriter, r *http.Request, l middleware.Limiter, key string, log zerolog.Logger) bool {
	if l == nil {
		return true
	}
	ok, err := l.Allow(r.Context(), key)
	if err != nil {
		log.Warn().Err(err).Msg("attempt limiter unavailable")
		return true
	}
	if !ok {
		metrics.RecordRateLimited("attempts")
		respondError(w, r, log, apperr.ErrRateLimited)
		return false
	}
	return true
}
