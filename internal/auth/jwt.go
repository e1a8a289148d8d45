package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/sppt/server/internal/apperr"
	"github.com/sppt/server/internal/model"
)

const (
	DefaultAccessTokenTTL = time.Hour
	DefaultIssuer         = "sppt"
)

// AccessClaims is the claim set of an access token. It carries enough to
// authorize a request without a lookup: subject, identity, role and tenant.
type AccessClaims struct {
	Kind       model.PrincipalKind `json:"kind"`
	Email      string              `json:"email,omitempty"`
	Phone      string              `json:"phone,omitempty"`
	Role       model.Role          `json:"role,omitempty"`
	BusinessID *uuid.UUID          `json:"businessId"`
	jwt.RegisteredClaims
}

// PrincipalID parses the subject claim.
func (c *AccessClaims) PrincipalID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

// Identity returns the email for staff tokens and the phone for client tokens.
func (c *AccessClaims) Identity() string {
	if c.Kind == model.KindClient {
		return c.Phone
	}
	return c.Email
}

// JWTService signs and verifies HS256 access tokens
type JWTService struct {
	secret    []byte
	issuer    string
	accessTTL time.Duration
	now       func() time.Time
}

// NewJWTService creates a JWT service. A zero ttl means DefaultAccessTokenTTL.
func NewJWTService(secret, issuer string, accessTTL time.Duration) *JWTService {
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTokenTTL
	}
	if issuer == "" {
		issuer = DefaultIssuer
	}
	return &JWTService{
		secret:    []byte(secret),
		issuer:    issuer,
		accessTTL: accessTTL,
		now:       time.Now,
	}
}

// AccessTTL returns the configured access token lifetime.
func (s *JWTService) AccessTTL() time.Duration { return s.accessTTL }

// SignAccessToken signs c for subject with the configured lifetime and
// returns the token and its expiry.
func (s *JWTService) SignAccessToken(subject uuid.UUID, c AccessClaims) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.accessTTL)
	c.RegisteredClaims = jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   subject.String(),
		Issuer:    s.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign access token: %w", err)
	}
	return signed, exp, nil
}

// VerifyToken parses and validates an access token. Every failure is an
// AuthenticationError; expiry is reported separately from other failures.
func (s *JWTService) VerifyToken(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperr.Wrap(apperr.ErrTokenExpired, err)
		}
		return nil, apperr.Wrap(apperr.ErrTokenInvalid, err)
	}
	if !token.Valid {
		return nil, apperr.ErrTokenInvalid
	}
	if _, err := claims.PrincipalID(); err != nil {
		return nil, apperr.Wrap(apperr.ErrTokenInvalid, err)
	}
	if claims.Kind != model.KindStaff && claims.Kind != model.KindClient {
		return nil, apperr.ErrTokenInvalid
	}
	return claims, nil
}
