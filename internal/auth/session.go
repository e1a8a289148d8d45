package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sppt/server/internal/apperr"
	"github.com/sppt/server/internal/metrics"
	"github.com/sppt/server/internal/model"
)

const (
	DefaultStaffRefreshTTL  = 7 * 24 * time.Hour
	DefaultClientRefreshTTL = 30 * 24 * time.Hour
)

// SessionStore persists refresh tokens for one principal kind. Lookups of an
// absent token return an error matching apperr.ErrNotFound. Rotate must revoke
// the old token and insert the new one atomically, failing with
// apperr.ErrTokenRevoked when the old token was already revoked.
type SessionStore interface {
	Save(ctx context.Context, principalID uuid.UUID, tokenHash string, expiresAt time.Time) (model.RefreshToken, error)
	FindByTokenHash(ctx context.Context, tokenHash string) (model.RefreshToken, error)
	Rotate(ctx context.Context, oldID, principalID uuid.UUID, newHash string, expiresAt time.Time) (model.RefreshToken, error)
	Revoke(ctx context.Context, id uuid.UUID) error
	RevokeAllForPrincipal(ctx context.Context, principalID uuid.UUID) (int64, error)
}

// Session is an issued token pair.
type Session[P Principal] struct {
	Principal        P
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// SessionOptions tunes a Sessions instance.
type SessionOptions struct {
	RefreshTTL time.Duration
	Logger     zerolog.Logger
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Sessions runs login, refresh, logout, revoke-all and password changes for
// one principal kind. The same implementation serves staff and clients.
type Sessions[P Principal] struct {
	kind       model.PrincipalKind
	principals PrincipalStore[P]
	store      SessionStore
	hasher     PasswordHasher
	tokens     *JWTService
	refreshTTL time.Duration
	log        zerolog.Logger
	now        func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

// NewSessions creates the session protocol for kind.
func NewSessions[P Principal](
	kind model.PrincipalKind,
	principals PrincipalStore[P],
	store SessionStore,
	hasher PasswordHasher,
	tokens *JWTService,
	opts SessionOptions,
) *Sessions[P] {
	if opts.RefreshTTL <= 0 {
		opts.RefreshTTL = DefaultStaffRefreshTTL
		if kind == model.KindClient {
			opts.RefreshTTL = DefaultClientRefreshTTL
		}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Sessions[P]{
		kind:       kind,
		principals: principals,
		store:      store,
		hasher:     hasher,
		tokens:     tokens,
		refreshTTL: opts.RefreshTTL,
		log:        opts.Logger.With().Str("principal_kind", string(kind)).Logger(),
		now:        opts.Now,
	}
}

// RefreshTTL returns the lifetime given to new refresh tokens.
func (s *Sessions[P]) RefreshTTL() time.Duration { return s.refreshTTL }

// Login checks the credential and issues a new token pair. An unknown login,
// an inactive principal, a principal without a password and a wrong password
// all fail with the same ErrInvalidCredentials.
func (s *Sessions[P]) Login(ctx context.Context, login, password string) (Session[P], error) {
	p, err := s.principals.FindByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			s.verifyDummy(password)
			s.recordFailure("login", "unknown principal")
			return Session[P]{}, apperr.ErrInvalidCredentials
		}
		return Session[P]{}, fmt.Errorf("find principal: %w", err)
	}

	// verify before looking at the active flag so every rejection costs a hash
	matched := s.hasher.Verify(password, p.Secret())
	if !p.IsActive() || !matched {
		s.log.Warn().Str("principal_id", p.PrincipalID().String()).Bool("active", p.IsActive()).Msg("login rejected")
		s.recordFailure("login", "")
		return Session[P]{}, apperr.ErrInvalidCredentials
	}

	sess, err := s.issue(ctx, p)
	if err != nil {
		return Session[P]{}, err
	}
	metrics.RecordAuthAttempt(string(s.kind), "login", true)
	s.log.Info().Str("principal_id", p.PrincipalID().String()).Msg("login")
	return sess, nil
}

// verifyDummy spends the same hashing work as a real check, so an unknown
// login takes as long to reject as a wrong password.
func (s *Sessions[P]) verifyDummy(password string) {
	s.dummyOnce.Do(func() {
		h, err := s.hasher.Hash("sppt-unknown-principal")
		if err != nil {
			s.log.Error().Err(err).Msg("hash dummy credential")
			return
		}
		s.dummyHash = h
	})
	s.hasher.Verify(password, s.dummyHash)
}

// Issue creates a token pair for an already-authenticated principal, e.g.
// right after registration.
func (s *Sessions[P]) Issue(ctx context.Context, p P) (Session[P], error) {
	return s.issue(ctx, p)
}

func (s *Sessions[P]) issue(ctx context.Context, p P) (Session[P], error) {
	access, accessExp, err := s.tokens.SignAccessToken(p.PrincipalID(), p.Claims())
	if err != nil {
		return Session[P]{}, err
	}
	token, hash, err := GenerateRefreshToken()
	if err != nil {
		return Session[P]{}, fmt.Errorf("generate refresh token: %w", err)
	}
	rec, err := s.store.Save(ctx, p.PrincipalID(), hash, s.now().Add(s.refreshTTL))
	if err != nil {
		return Session[P]{}, fmt.Errorf("save refresh token: %w", err)
	}
	return Session[P]{
		Principal:        p,
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     token,
		RefreshExpiresAt: rec.ExpiresAt,
	}, nil
}

// Refresh redeems a refresh token for a new pair and revokes the redeemed one.
// Checks run in order and the first failure wins: unknown token, revoked,
// expired, principal missing or inactive. The new access token reflects the
// principal as stored now, not as it was at login.
func (s *Sessions[P]) Refresh(ctx context.Context, token string) (Session[P], error) {
	rec, err := s.store.FindByTokenHash(ctx, HashRefreshToken(token))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			s.recordFailure("refresh", "unknown token")
			return Session[P]{}, apperr.ErrTokenInvalid
		}
		return Session[P]{}, fmt.Errorf("find refresh token: %w", err)
	}

	if rec.Revoked {
		ev := s.log.Warn().Str("principal_id", rec.PrincipalID.String()).Str("token_id", rec.ID.String())
		if rec.ReplacedBy != nil {
			ev = ev.Str("replaced_by", rec.ReplacedBy.String())
		}
		ev.Msg("revoked refresh token presented")
		s.recordFailure("refresh", "")
		return Session[P]{}, apperr.ErrTokenRevoked
	}

	if !s.now().Before(rec.ExpiresAt) {
		s.recordFailure("refresh", "expired")
		return Session[P]{}, apperr.ErrTokenExpired
	}

	p, err := s.principals.FindByID(ctx, rec.PrincipalID)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return Session[P]{}, fmt.Errorf("find principal: %w", err)
	}
	if err != nil || !p.IsActive() {
		s.recordFailure("refresh", "principal inactive")
		return Session[P]{}, apperr.ErrPrincipalInactive
	}

	access, accessExp, err := s.tokens.SignAccessToken(p.PrincipalID(), p.Claims())
	if err != nil {
		return Session[P]{}, err
	}
	next, nextHash, err := GenerateRefreshToken()
	if err != nil {
		return Session[P]{}, fmt.Errorf("generate refresh token: %w", err)
	}
	newRec, err := s.store.Rotate(ctx, rec.ID, p.PrincipalID(), nextHash, s.now().Add(s.refreshTTL))
	if err != nil {
		if errors.Is(err, apperr.ErrTokenRevoked) {
			s.log.Warn().Str("token_id", rec.ID.String()).Msg("refresh lost rotation race")
			s.recordFailure("refresh", "")
			return Session[P]{}, apperr.ErrTokenRevoked
		}
		return Session[P]{}, fmt.Errorf("rotate refresh token: %w", err)
	}

	metrics.RecordAuthAttempt(string(s.kind), "refresh", true)
	metrics.RecordRevoked(string(s.kind), "rotation", 1)
	return Session[P]{
		Principal:        p,
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     next,
		RefreshExpiresAt: newRec.ExpiresAt,
	}, nil
}

// Logout revokes exactly the presented token. A token that does not exist,
// or that belongs to someone else, is ErrSessionNotFound.
func (s *Sessions[P]) Logout(ctx context.Context, principalID uuid.UUID, token string) error {
	rec, err := s.store.FindByTokenHash(ctx, HashRefreshToken(token))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return apperr.ErrSessionNotFound
		}
		return fmt.Errorf("find refresh token: %w", err)
	}
	if rec.PrincipalID != principalID {
		s.log.Warn().Str("principal_id", principalID.String()).Msg("logout with foreign refresh token")
		return apperr.ErrSessionNotFound
	}
	if err := s.store.Revoke(ctx, rec.ID); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	metrics.RecordAuthAttempt(string(s.kind), "logout", true)
	metrics.RecordRevoked(string(s.kind), "logout", 1)
	return nil
}

// RevokeAll revokes every live refresh token of the principal and returns how
// many were revoked. Calling it again revokes nothing further.
func (s *Sessions[P]) RevokeAll(ctx context.Context, principalID uuid.UUID) (int64, error) {
	n, err := s.store.RevokeAllForPrincipal(ctx, principalID)
	if err != nil {
		return 0, fmt.Errorf("revoke all refresh tokens: %w", err)
	}
	metrics.RecordRevoked(string(s.kind), "revoke_all", n)
	s.log.Info().Str("principal_id", principalID.String()).Int64("revoked", n).Msg("revoked all sessions")
	return n, nil
}

// ChangePassword verifies the current password, stores the new one and
// revokes every session of the principal. A wrong current password changes
// nothing.
func (s *Sessions[P]) ChangePassword(ctx context.Context, id uuid.UUID, current, next string) error {
	if err := CheckPassword(next); err != nil {
		return err
	}
	p, err := s.principals.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return apperr.ErrInvalidCredentials
		}
		return fmt.Errorf("find principal: %w", err)
	}
	if !s.hasher.Verify(current, p.Secret()) {
		s.recordFailure("change_password", "")
		return apperr.ErrInvalidCredentials
	}
	if err := s.setPassword(ctx, id, next); err != nil {
		return err
	}
	metrics.RecordAuthAttempt(string(s.kind), "change_password", true)
	return nil
}

// ResetPassword stores a new password without checking the old one and
// revokes every session. Whether the caller may do this is decided by the
// authorization layer before calling.
func (s *Sessions[P]) ResetPassword(ctx context.Context, id uuid.UUID, next string) error {
	if err := CheckPassword(next); err != nil {
		return err
	}
	if _, err := s.principals.FindByID(ctx, id); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return err
		}
		return fmt.Errorf("find principal: %w", err)
	}
	if err := s.setPassword(ctx, id, next); err != nil {
		return err
	}
	metrics.RecordAuthAttempt(string(s.kind), "reset_password", true)
	return nil
}

func (s *Sessions[P]) setPassword(ctx context.Context, id uuid.UUID, plain string) error {
	hash, err := s.hasher.Hash(plain)
	if err != nil {
		return err
	}
	if err := s.principals.UpdatePassword(ctx, id, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if _, err := s.RevokeAll(ctx, id); err != nil {
		return err
	}
	return nil
}

func (s *Sessions[P]) recordFailure(event, reason string) {
	metrics.RecordAuthAttempt(string(s.kind), event, false)
	if reason != "" {
		s.log.Debug().Str("event", event).Str("reason", reason).Msg("auth failure")
	}
}

// CheckPassword enforces the rules for a new password.
func CheckPassword(p string) error {
	if len(p) < MinPasswordLength {
		return apperr.Invalid(fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}
	return nil
}
