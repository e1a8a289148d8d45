package auth

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/sppt/server/internal/model"
)

// Principal is what the session protocol needs from an authenticated actor.
type Principal interface {
	PrincipalID() uuid.UUID
	IsActive() bool
	// Secret returns the stored password hash, or "" when none is set.
	Secret() string
	// Claims returns the identity part of the access token claims.
	Claims() AccessClaims
}

// PrincipalStore loads principals for one principal kind. Lookups of an
// absent principal return an error matching apperr.ErrNotFound.
type PrincipalStore[P Principal] interface {
	FindByLogin(ctx context.Context, login string) (P, error)
	FindByID(ctx context.Context, id uuid.UUID) (P, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error
}

// StaffPrincipal adapts a staff user to Principal
type StaffPrincipal struct {
	model.StaffUser
}

func (p StaffPrincipal) PrincipalID() uuid.UUID { return p.ID }
func (p StaffPrincipal) IsActive() bool         { return p.Active }
func (p StaffPrincipal) Secret() string         { return p.PasswordHash }

func (p StaffPrincipal) Claims() AccessClaims {
	return AccessClaims{
		Kind:       model.KindStaff,
		Email:      p.Email,
		Role:       p.Role,
		BusinessID: p.BusinessID,
	}
}

// ClientPrincipal adapts a client to Principal
type ClientPrincipal struct {
	model.Client
}

func (p ClientPrincipal) PrincipalID() uuid.UUID { return p.ID }
func (p ClientPrincipal) IsActive() bool         { return p.Active }

func (p ClientPrincipal) Secret() string {
	if p.PasswordHash == nil {
		return ""
	}
	return *p.PasswordHash
}

func (p ClientPrincipal) Claims() AccessClaims {
	c := AccessClaims{Kind: model.KindClient, Phone: p.Phone}
	if p.Email != nil {
		c.Email = *p.Email
	}
	return c
}

// StaffLookup is the part of the staff repository the protocol uses.
type StaffLookup interface {
	GetByEmail(ctx context.Context, email string) (model.StaffUser, error)
	GetByID(ctx context.Context, id uuid.UUID) (model.StaffUser, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error
}

// ClientLookup is the part of the client repository the protocol uses.
type ClientLookup interface {
	GetByPhoneOrEmail(ctx context.Context, login string) (model.Client, error)
	GetByID(ctx context.Context, id uuid.UUID) (model.Client, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error
}

type staffPrincipals struct{ users StaffLookup }

// NewStaffPrincipals logs staff in by email.
func NewStaffPrincipals(users StaffLookup) PrincipalStore[StaffPrincipal] {
	return staffPrincipals{users: users}
}

func (s staffPrincipals) FindByLogin(ctx context.Context, login string) (StaffPrincipal, error) {
	u, err := s.users.GetByEmail(ctx, NormalizeEmail(login))
	return StaffPrincipal{u}, err
}

func (s staffPrincipals) FindByID(ctx context.Context, id uuid.UUID) (StaffPrincipal, error) {
	u, err := s.users.GetByID(ctx, id)
	return StaffPrincipal{u}, err
}

func (s staffPrincipals) UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error {
	return s.users.UpdatePassword(ctx, id, hash)
}

type clientPrincipals struct{ clients ClientLookup }

// NewClientPrincipals logs clients in by phone or email.
func NewClientPrincipals(clients ClientLookup) PrincipalStore[ClientPrincipal] {
	return clientPrincipals{clients: clients}
}

func (s clientPrincipals) FindByLogin(ctx context.Context, login string) (ClientPrincipal, error) {
	login = strings.TrimSpace(login)
	if strings.Contains(login, "@") {
		login = NormalizeEmail(login)
	}
	c, err := s.clients.GetByPhoneOrEmail(ctx, login)
	return ClientPrincipal{c}, err
}

func (s clientPrincipals) FindByID(ctx context.Context, id uuid.UUID) (ClientPrincipal, error) {
	c, err := s.clients.GetByID(ctx, id)
	return ClientPrincipal{c}, err
}

func (s clientPrincipals) UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error {
	return s.clients.UpdatePassword(ctx, id, hash)
}

// NormalizeEmail lower-cases and trims an email for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
