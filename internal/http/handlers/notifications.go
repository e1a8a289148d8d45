package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sppt/server/internal/middleware"
	"github.com/sppt/server/internal/service"
)

// PhoneVerifier issues and redeems phone verification codes.
type PhoneVerifier interface {
	RequestCode(ctx context.Context, phone string) (service.CodeRequest, error)
	ConfirmCode(ctx context.Context, phone, code string) (uuid.UUID, error)
}

// NotificationsHandler handles phone verification endpoints
type NotificationsHandler struct {
	verifier PhoneVerifier
	attempts middleware.Limiter
	validate *validator.Validate
	log      zerolog.Logger
}

// NewNotificationsHandler creates the handler. attempts limits confirm
// attempts per phone.
func NewNotificationsHandler(verifier PhoneVerifier, attempts middleware.Limiter, log zerolog.Logger) *NotificationsHandler {
	return &NotificationsHandler{
		verifier: verifier,
		attempts: attempts,
		validate: newValidator(),
		log:      log.With().Str("handler", "notifications").Logger(),
	}
}

type requestCodeRequest struct {
	Phone string `json:"phone" validate:"required"`
}

type requestCodeResponse struct {
	Message   string `json:"message"`
	Phone     string `json:"phone"`
	ExpiresIn string `json:"expiresIn"`
}

// HandleRequest handles POST /notifications/verify/request
func (h *NotificationsHandler) HandleRequest(w http.ResponseWriter, r *http.Request) {
	var req requestCodeRequest
	if !decode(w, r, h.validate, &req) {
		return
	}
	res, err := h.verifier.RequestCode(r.Context(), req.Phone)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, requestCodeResponse{
		Message:   "verification code sent",
		Phone:     res.MaskedPhone,
		ExpiresIn: fmt.Sprintf("%d minutes", int(res.ExpiresIn/time.Minute)),
	})
}

type confirmCodeRequest struct {
	Phone string `json:"phone" validate:"required"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}

type confirmCodeResponse struct {
	Message       string `json:"message"`
	PhoneVerified bool   `json:"phoneVerified"`
}

// HandleConfirm handles POST /notifications/verify/confirm
func (h *NotificationsHandler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	var req confirmCodeRequest
	if !decode(w, r, h.validate, &req) {
		return
	}
	if !allowAttempt(w, r, h.attempts, middleware.AttemptKey("verify", req.Phone), h.log) {
		return
	}
	if _, err := h.verifier.ConfirmCode(r.Context(), req.Phone, req.Code); err != nil {
		respondError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, confirmCodeResponse{Message: "phone verified", PhoneVerified: true})
}
