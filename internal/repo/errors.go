package repo

import (
	"errors"

	"github.com/lib/pq"

	"github.com/sppt/server/internal/apperr"
)

var (
	ErrUserNotFound         = apperr.NotFound("user_not_found", "user not found")
	ErrClientNotFound       = apperr.NotFound("client_not_found", "client not found")
	ErrBusinessNotFound     = apperr.NotFound("business_not_found", "business not found")
	ErrMembershipNotFound   = apperr.NotFound("membership_not_found", "client is not registered in this business")
	ErrRefreshTokenNotFound = apperr.NotFound("refresh_token_not_found", "refresh token not found")

	ErrEmailTaken        = apperr.Conflict("email_taken", "email already in use")
	ErrPhoneOrEmailTaken = apperr.Conflict("phone_or_email_taken", "phone or email already registered")
	ErrAlreadyMember     = apperr.Conflict("already_member", "client already registered in this business")

	ErrCodeInvalid = apperr.New(apperr.KindInvalid, "code_invalid", "verification code invalid or expired")
)

// Postgres SQLSTATE codes
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

func pqError(err error) (*pq.Error, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr, true
	}
	return nil, false
}

func isUniqueViolation(err error) bool {
	e, ok := pqError(err)
	return ok && e.Code == pgUniqueViolation
}

func isForeignKeyViolation(err error) bool {
	e, ok := pqError(err)
	return ok && e.Code == pgForeignKeyViolation
}

// violatedConstraint returns the constraint name of a pq error, if any.
func violatedConstraint(err error) string {
	if e, ok := pqError(err); ok {
		return e.Constraint
	}
	return ""
}
