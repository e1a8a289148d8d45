package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/sppt/server/internal/repo"
)

// CleanupReport counts the rows a cleanup run removed.
type CleanupReport struct {
	StaffTokens  int64
	ClientTokens int64
	Codes        int64
}

// Housekeeping deletes dead refresh tokens and verification codes
type Housekeeping struct {
	staffTokens  repo.RefreshRepo
	clientTokens repo.RefreshRepo
	codes        repo.VerificationRepo
	log          zerolog.Logger
}

func NewHousekeeping(staffTokens, clientTokens repo.RefreshRepo, codes repo.VerificationRepo, log zerolog.Logger) *Housekeeping {
	return &Housekeeping{
		staffTokens:  staffTokens,
		clientTokens: clientTokens,
		codes:        codes,
		log:          log.With().Str("service", "housekeeping").Logger(),
	}
}

// Run removes tokens and codes that expired or were revoked before cutoff.
func (h *Housekeeping) Run(ctx context.Context, cutoff time.Time) (CleanupReport, error) {
	var (
		r   CleanupReport
		err error
	)
	if r.StaffTokens, err = h.staffTokens.DeleteExpired(ctx, cutoff); err != nil {
		return r, err
	}
	if r.ClientTokens, err = h.clientTokens.DeleteExpired(ctx, cutoff); err != nil {
		return r, err
	}
	if r.Codes, err = h.codes.DeleteStale(ctx, cutoff); err != nil {
		return r, err
	}
	h.log.Info().
		Int64("staff_tokens", r.StaffTokens).
		Int64("client_tokens", r.ClientTokens).
		Int64("codes", r.Codes).
		Msg("cleanup done")
	return r, nil
}
