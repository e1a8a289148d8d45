// Package handlers holds the HTTP handlers. Handlers decode and validate
// requests, call a service and map its errors to status codes; they make no
// authorization decisions of their own.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sppt/server/internal/apperr"
	"github.com/sppt/server/internal/model"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondWithError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}

// respondError maps a service error to its status. Authentication failures
// share one message; internal errors are logged and never shown.
func respondError(w http.ResponseWriter, r *http.Request, log zerolog.Logger, err error) {
	e, ok := apperr.As(err)
	if !ok || e.Kind == apperr.KindInternal {
		log.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("request failed")
		respondWithError(w, http.StatusInternalServerError, "internal", "internal server error")
		return
	}
	switch e.Kind {
	case apperr.KindAuthentication:
		// the specific reason stays in the log
		log.Info().Str("reason", e.Code).Str("path", r.URL.Path).Msg("authentication failed")
		respondWithError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
	case apperr.KindAuthorization:
		respondWithError(w, http.StatusForbidden, e.Code, e.Msg)
	case apperr.KindConflict:
		respondWithError(w, http.StatusConflict, e.Code, e.Msg)
	case apperr.KindNotFound:
		respondWithError(w, http.StatusNotFound, e.Code, e.Msg)
	case apperr.KindInvalid:
		respondWithError(w, http.StatusBadRequest, e.Code, e.Msg)
	case apperr.KindRateLimited:
		respondWithError(w, http.StatusTooManyRequests, e.Code, e.Msg)
	}
}

// decode reads a JSON body into dst and validates it. On failure the 400 is
// already written.
func decode(w http.ResponseWriter, r *http.Request, v *validator.Validate, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_body", "invalid request body")
		return false
	}
	if err := v.Struct(dst); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_request", validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request"
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return fe.Field() + " must be a valid email"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "len":
		return fmt.Sprintf("%s must be %s characters", fe.Field(), fe.Param())
	case "uuid":
		return fe.Field() + " must be a UUID"
	default:
		return fe.Field() + " is invalid"
	}
}

func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_id", name+" must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

type staffResponse struct {
	ID         string     `json:"id"`
	Email      string     `json:"email"`
	Name       string     `json:"name"`
	LastName   string     `json:"lastName"`
	Role       model.Role `json:"role"`
	BusinessID *string    `json:"businessId"`
	Active     bool       `json:"active"`
	CreatedAt  time.Time  `json:"createdAt"`
}

func toStaff(u model.StaffUser) staffResponse {
	out := staffResponse{
		ID:        u.ID.String(),
		Email:     u.Email,
		Name:      u.Name,
		LastName:  u.LastName,
		Role:      u.Role,
		Active:    u.Active,
		CreatedAt: u.CreatedAt,
	}
	if u.BusinessID != nil {
		s := u.BusinessID.String()
		out.BusinessID = &s
	}
	return out
}

type businessResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

func toBusiness(b model.Business) businessResponse {
	return businessResponse{ID: b.ID.String(), Name: b.Name, Status: b.Status, CreatedAt: b.CreatedAt}
}

type clientResponse struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Phone         string  `json:"phone"`
	Email         *string `json:"email"`
	PhoneVerified bool    `json:"phoneVerified"`
}

func toClient(c model.Client) clientResponse {
	return clientResponse{ID: c.ID.String(), Name: c.Name, Phone: c.Phone, Email: c.Email, PhoneVerified: c.PhoneVerified}
}

type membershipResponse struct {
	BusinessID    string    `json:"businessId"`
	BusinessName  string    `json:"businessName"`
	CurrentPoints int       `json:"currentPoints"`
	Active        bool      `json:"active"`
	JoinedAt      time.Time `json:"joinedAt"`
}

func toMembership(m model.ClientBusiness) membershipResponse {
	return membershipResponse{
		BusinessID:    m.BusinessID.String(),
		BusinessName:  m.BusinessName,
		CurrentPoints: m.CurrentPoints,
		Active:        m.Active,
		JoinedAt:      m.CreatedAt,
	}
}

type tokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

func newTokenPair(access, refresh string, accessExp time.Time) tokenPair {
	return tokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresIn:    int64(time.Until(accessExp).Seconds()),
	}
}
