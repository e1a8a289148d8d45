package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sppt/server/internal/apperr"
	"github.com/sppt/server/internal/auth"
	"github.com/sppt/server/internal/authz"
	"github.com/sppt/server/internal/model"
)

type contextKey string

const (
	staffKey    contextKey = "staff"
	clientIDKey contextKey = "client_id"
)

// StaffLoader loads the staff user named by a token subject.
type StaffLoader interface {
	GetByID(ctx context.Context, id uuid.UUID) (model.StaffUser, error)
}

// ClientLoader loads the client named by a token subject.
type ClientLoader interface {
	GetByID(ctx context.Context, id uuid.UUID) (model.Client, error)
}

// StaffAuth validates a staff access token, loads the user from the DB and
// attaches it to the context. Role and tenant are taken from the stored
// user, not from the token, so a demoted or moved user loses access at once.
func StaffAuth(tokens *auth.JWTService, users StaffLoader, log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := authenticate(w, r, tokens, model.KindStaff)
			if !ok {
				return
			}
			user, err := users.GetByID(r.Context(), id)
			if err != nil {
				if !errors.Is(err, apperr.ErrNotFound) {
					log.Error().Err(err).Msg("load staff principal")
				}
				unauthorized(w)
				return
			}
			if !user.Active {
				unauthorized(w)
				return
			}
			ctx := context.WithValue(r.Context(), staffKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClientAuth validates a client access token and attaches the client id.
func ClientAuth(tokens *auth.JWTService, clients ClientLoader, log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := authenticate(w, r, tokens, model.KindClient)
			if !ok {
				return
			}
			c, err := clients.GetByID(r.Context(), id)
			if err != nil {
				if !errors.Is(err, apperr.ErrNotFound) {
					log.Error().Err(err).Msg("load client principal")
				}
				unauthorized(w)
				return
			}
			if !c.Active {
				unauthorized(w)
				return
			}
			ctx := context.WithValue(r.Context(), clientIDKey, c.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func authenticate(w http.ResponseWriter, r *http.Request, tokens *auth.JWTService, kind model.PrincipalKind) (uuid.UUID, bool) {
	authHeader := r.Header.Get("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		unauthorized(w)
		return uuid.Nil, false
	}

	claims, err := tokens.VerifyToken(strings.TrimSpace(parts[1]))
	if err != nil || claims.Kind != kind {
		unauthorized(w)
		return uuid.Nil, false
	}
	id, err := claims.PrincipalID()
	if err != nil {
		unauthorized(w)
		return uuid.Nil, false
	}
	return id, true
}

// RequireRoles rejects staff whose role is not listed. Use after StaffAuth.
func RequireRoles(roles ...model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := GetActor(r.Context())
			if !ok {
				unauthorized(w)
				return
			}
			if err := authz.Authorize(actor, roles, nil); err != nil {
				e, _ := apperr.As(err)
				respondWithError(w, http.StatusForbidden, e.Code, e.Msg)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithStaff attaches a staff user to ctx, as StaffAuth does.
func WithStaff(ctx context.Context, u model.StaffUser) context.Context {
	return context.WithValue(ctx, staffKey, u)
}

// WithClientID attaches a client id to ctx, as ClientAuth does.
func WithClientID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, clientIDKey, id)
}

// GetStaff returns the staff user attached by StaffAuth
func GetStaff(ctx context.Context) (model.StaffUser, bool) {
	u, ok := ctx.Value(staffKey).(model.StaffUser)
	return u, ok
}

// GetActor returns the authorization view of the authenticated staff user
func GetActor(ctx context.Context) (authz.Actor, bool) {
	u, ok := GetStaff(ctx)
	if !ok {
		return authz.Actor{}, false
	}
	return authz.ActorFromUser(u), true
}

// GetClientID returns the client id attached by ClientAuth
func GetClientID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(clientIDKey).(uuid.UUID)
	return id, ok
}
