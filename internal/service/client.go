package service

import (
	"context"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sppt/server/internal/apperr"
	"github.com/sppt/server/internal/auth"
	"github.com/sppt/server/internal/authz"
	"github.com/sppt/server/internal/logging"
	"github.com/sppt/server/internal/model"
	"github.com/sppt/server/internal/repo"
)

var phonePattern = regexp.MustCompile(`^\+?[0-9]{10,15}$`)

// ValidPhone reports whether phone is 10 to 15 digits with an optional leading +.
func ValidPhone(phone string) bool {
	return phonePattern.MatchString(phone)
}

// ClientSessionIssuer issues a session for a freshly registered client.
type ClientSessionIssuer interface {
	Issue(ctx context.Context, p auth.ClientPrincipal) (auth.Session[auth.ClientPrincipal], error)
}

// RegisterClientInput describes a self-registering client.
type RegisterClientInput struct {
	Phone    string
	Email    string
	Password string
	Name     string
}

// ClientService runs client registration and loyalty-membership reads
type ClientService struct {
	clients     repo.ClientRepo
	memberships repo.MembershipRepo
	businesses  repo.BusinessRepo
	sessions    ClientSessionIssuer
	hasher      auth.PasswordHasher
	log         zerolog.Logger
}

// NewClientService creates a new client service
func NewClientService(
	clients repo.ClientRepo,
	memberships repo.MembershipRepo,
	businesses repo.BusinessRepo,
	sessions ClientSessionIssuer,
	hasher auth.PasswordHasher,
	log zerolog.Logger,
) *ClientService {
	return &ClientService{
		clients:     clients,
		memberships: memberships,
		businesses:  businesses,
		sessions:    sessions,
		hasher:      hasher,
		log:         log.With().Str("service", "client").Logger(),
	}
}

// Register creates a client and logs it in
func (s *ClientService) Register(ctx context.Context, in RegisterClientInput) (auth.Session[auth.ClientPrincipal], error) {
	in.Phone = strings.TrimSpace(in.Phone)
	in.Name = strings.TrimSpace(in.Name)
	if !ValidPhone(in.Phone) {
		return auth.Session[auth.ClientPrincipal]{}, apperr.Invalid("phone must be 10 to 15 digits")
	}
	if in.Name == "" {
		return auth.Session[auth.ClientPrincipal]{}, apperr.Invalid("name is required")
	}
	if err := auth.CheckPassword(in.Password); err != nil {
		return auth.Session[auth.ClientPrincipal]{}, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return auth.Session[auth.ClientPrincipal]{}, err
	}
	c := model.Client{Phone: in.Phone, Name: in.Name, PasswordHash: &hash}
	if e := auth.NormalizeEmail(in.Email); e != "" {
		c.Email = &e
	}

	created, err := s.clients.Create(ctx, c)
	if err != nil {
		return auth.Session[auth.ClientPrincipal]{}, err
	}
	s.log.Info().Str("client_id", created.ID.String()).Str("phone", logging.MaskPhone(created.Phone)).Msg("client registered")

	return s.sessions.Issue(ctx, auth.ClientPrincipal{Client: created})
}

// Me returns the client's own profile
func (s *ClientService) Me(ctx context.Context, clientID uuid.UUID) (model.Client, error) {
	return s.clients.GetByID(ctx, clientID)
}

// RegisterBusiness enrolls the client in a business loyalty program
func (s *ClientService) RegisterBusiness(ctx context.Context, clientID, businessID uuid.UUID) (model.ClientBusiness, error) {
	b, err := s.businesses.GetByID(ctx, businessID)
	if err != nil {
		return model.ClientBusiness{}, err
	}
	if b.Status != BusinessActive {
		return model.ClientBusiness{}, apperr.Invalid("business is not active")
	}
	m, err := s.memberships.AddBusiness(ctx, clientID, businessID)
	if err != nil {
		return model.ClientBusiness{}, err
	}
	s.log.Info().Str("client_id", clientID.String()).Str("business_id", businessID.String()).Msg("client joined business")
	return m, nil
}

// Businesses lists the client's memberships
func (s *ClientService) Businesses(ctx context.Context, clientID uuid.UUID) ([]model.ClientBusiness, error) {
	return s.memberships.ListBusinesses(ctx, clientID)
}

// Points returns the client's membership, with its point balance, in one business
func (s *ClientService) Points(ctx context.Context, clientID, businessID uuid.UUID) (model.ClientBusiness, error) {
	m, err := s.memberships.GetMembership(ctx, clientID, businessID)
	if err != nil {
		return model.ClientBusiness{}, err
	}
	if err := authz.AuthorizeClient(clientID, m.ClientID); err != nil {
		return model.ClientBusiness{}, err
	}
	return m, nil
}
