package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sppt/server/internal/apperr"
	"github.com/sppt/server/internal/logging"
	"github.com/sppt/server/internal/repo"
)

const (
	DefaultCodeTTL = 15 * time.Minute
	codeLength     = 6
	// At most maxCodeRequests codes per client per requestWindow.
	maxCodeRequests = 5
	requestWindow   = 15 * time.Minute
)

// VerificationOptions tunes a VerificationService.
type VerificationOptions struct {
	TTL time.Duration
	// Pepper is mixed into the stored code hash.
	Pepper string
	Now    func() time.Time
}

// CodeRequest is the caller-visible result of requesting a code.
type CodeRequest struct {
	MaskedPhone string
	ExpiresIn   time.Duration
}

// VerificationService issues and redeems phone verification codes
type VerificationService struct {
	clients repo.ClientRepo
	codes   repo.VerificationRepo
	sender  CodeSender
	ttl     time.Duration
	pepper  string
	now     func() time.Time
	log     zerolog.Logger
}

// NewVerificationService creates a new verification service
func NewVerificationService(clients repo.ClientRepo, codes repo.VerificationRepo, sender CodeSender, opts VerificationOptions, log zerolog.Logger) *VerificationService {
	if opts.TTL <= 0 {
		opts.TTL = DefaultCodeTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &VerificationService{
		clients: clients,
		codes:   codes,
		sender:  sender,
		ttl:     opts.TTL,
		pepper:  opts.Pepper,
		now:     opts.Now,
		log:     log.With().Str("service", "verification").Logger(),
	}
}

// RequestCode issues a new code for the client with this phone and sends it.
// Any earlier unused code of the client stops being redeemable.
func (s *VerificationService) RequestCode(ctx context.Context, phone string) (CodeRequest, error) {
	phone = strings.TrimSpace(phone)
	c, err := s.clients.GetByPhone(ctx, phone)
	if err != nil {
		return CodeRequest{}, err
	}
	if !c.Active {
		return CodeRequest{}, apperr.Invalid("client is not active")
	}

	now := s.now()
	n, err := s.codes.CountRecent(ctx, c.ID, now.Add(-requestWindow))
	if err != nil {
		return CodeRequest{}, err
	}
	if n >= maxCodeRequests {
		s.log.Warn().Str("client_id", c.ID.String()).Int("recent", n).Msg("verification request limit reached")
		return CodeRequest{}, apperr.ErrRateLimited
	}

	code, err := generateCode()
	if err != nil {
		return CodeRequest{}, fmt.Errorf("generate code: %w", err)
	}
	expiresAt := now.Add(s.ttl)
	if _, err := s.codes.Replace(ctx, c.ID, s.hashCode(c.ID, code), expiresAt); err != nil {
		return CodeRequest{}, err
	}

	err = s.sender.SendCode(ctx, CodeMessage{
		ClientID:   c.ID.String(),
		ClientName: c.Name,
		Phone:      c.Phone,
		Code:       code,
		ExpiresAt:  expiresAt,
		TTL:        s.ttl,
	})
	if err != nil {
		s.log.Error().Err(err).Str("phone", logging.MaskPhone(phone)).Msg("send verification code")
		return CodeRequest{}, fmt.Errorf("send verification code: %w", err)
	}

	s.log.Info().Str("client_id", c.ID.String()).Str("phone", logging.MaskPhone(phone)).Msg("verification code issued")
	return CodeRequest{MaskedPhone: logging.MaskPhone(phone), ExpiresIn: s.ttl}, nil
}

// ConfirmCode redeems a code and marks the client's phone verified. It
// returns the verified client's id.
func (s *VerificationService) ConfirmCode(ctx context.Context, phone, code string) (uuid.UUID, error) {
	c, err := s.clients.GetByPhone(ctx, strings.TrimSpace(phone))
	if err != nil {
		return uuid.Nil, err
	}
	if _, err := s.codes.Consume(ctx, c.ID, s.hashCode(c.ID, strings.TrimSpace(code)), s.now()); err != nil {
		return uuid.Nil, err
	}
	s.log.Info().Str("client_id", c.ID.String()).Msg("phone verified")
	return c.ID, nil
}

// hashCode binds the code to the client so equal codes of different clients
// never share a hash.
func (s *VerificationService) hashCode(clientID uuid.UUID, code string) string {
	sum := sha256.Sum256([]byte(clientID.String() + ":" + code + ":" + s.pepper))
	return hex.EncodeToString(sum[:])
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", codeLength, n.Int64()+100000), nil
}
