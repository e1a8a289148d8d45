package model

import (
	"time"

	"github.com/google/uuid"
)

// Role is a staff role. Clients have no role.
type Role string

const (
	RoleSuperAdmin Role = "SUPER_ADMIN"
	RoleOwner      Role = "OWNER"
	RoleCoOwner    Role = "CO_OWNER"
	RoleEmployee   Role = "EMPLOYEE"
)

// Roles lists every staff role, highest privilege first.
var Roles = []Role{RoleSuperAdmin, RoleOwner, RoleCoOwner, RoleEmployee}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleOwner, RoleCoOwner, RoleEmployee:
		return true
	}
	return false
}

// PrincipalKind distinguishes staff tokens from client tokens.
type PrincipalKind string

const (
	KindStaff  PrincipalKind = "staff"
	KindClient PrincipalKind = "client"
)

// Business is the tenant boundary
type Business struct {
	ID        uuid.UUID
	Name      string
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// BusinessStats holds the counters shown on the business dashboard
type BusinessStats struct {
	TotalUsers    int
	ActiveUsers   int
	TotalClients  int
	ActiveClients int
}

// StaffUser is a back-office user. BusinessID is nil for SUPER_ADMIN and for
// an OWNER that has not created its business yet.
type StaffUser struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	Name         string
	LastName     string
	Role         Role
	BusinessID   *uuid.UUID
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Client is an end customer of one or more businesses
type Client struct {
	ID            uuid.UUID
	Phone         string
	Email         *string
	PasswordHash  *string
	Name          string
	PhoneVerified bool
	Active        bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ClientBusiness is a client's membership in a business loyalty program
type ClientBusiness struct {
	ID            uuid.UUID
	ClientID      uuid.UUID
	BusinessID    uuid.UUID
	BusinessName  string
	CurrentPoints int
	Active        bool
	CreatedAt     time.Time
}

// RefreshToken is a stored refresh token. The same shape backs staff and
// client sessions; PrincipalID is the user or client id.
type RefreshToken struct {
	ID          uuid.UUID
	PrincipalID uuid.UUID
	TokenHash   string
	CreatedAt   time.Time
	ExpiresAt   time.Time
	Revoked     bool
	RevokedAt   *time.Time
	ReplacedBy  *uuid.UUID
}

// VerificationCode is a one-time phone verification code
type VerificationCode struct {
	ID        uuid.UUID
	ClientID  uuid.UUID
	CodeHash  string
	ExpiresAt time.Time
	Used      bool
	UsedAt    *time.Time
	CreatedAt time.Time
}
