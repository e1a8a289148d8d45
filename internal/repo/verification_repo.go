package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sppt/server/internal/model"
)

// VerificationRepo defines the interface for phone verification code operations
type VerificationRepo interface {
	Replace(ctx context.Context, clientID uuid.UUID, codeHash string, expiresAt time.Time) (model.VerificationCode, error)
	CountRecent(ctx context.Context, clientID uuid.UUID, since time.Time) (int, error)
	Consume(ctx context.Context, clientID uuid.UUID, codeHash string, now time.Time) (model.VerificationCode, error)
	DeleteStale(ctx context.Context, before time.Time) (int64, error)
}

type verificationRepo struct {
	db *sql.DB
}

// NewVerificationRepo creates a new VerificationRepo instance
func NewVerificationRepo(db *sql.DB) VerificationRepo {
	return &verificationRepo{db: db}
}

const verificationColumns = `id, client_id, code_hash, expires_at, used, used_at, created_at`

func scanVerification(row rowScanner) (model.VerificationCode, error) {
	var v model.VerificationCode
	var usedAt sql.NullTime
	if err := row.Scan(&v.ID, &v.ClientID, &v.CodeHash, &v.ExpiresAt, &v.Used, &usedAt, &v.CreatedAt); err != nil {
		return model.VerificationCode{}, err
	}
	if usedAt.Valid {
		at := usedAt.Time
		v.UsedAt = &at
	}
	return v, nil
}

// Replace marks every unused code of the client as used and inserts a new
// one, so at most one code per client is redeemable. Concurrent requests for
// the same client are serialized with a transaction-scoped advisory lock.
func (r *verificationRepo) Replace(ctx context.Context, clientID uuid.UUID, codeHash string, expiresAt time.Time) (model.VerificationCode, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.VerificationCode{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	// Released on COMMIT/ROLLBACK.
	_, err = tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(2, hashtext($1))`, clientID.String())
	if err != nil {
		return model.VerificationCode{}, fmt.Errorf("advisory lock: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE verification_codes
		SET used = true, used_at = now()
		WHERE client_id = $1 AND used = false
	`, clientID)
	if err != nil {
		return model.VerificationCode{}, fmt.Errorf("invalidate codes: %w", err)
	}

	v, err := scanVerification(tx.QueryRowContext(ctx, `
		INSERT INTO verification_codes (client_id, code_hash, expires_at)
		VALUES ($1, $2, $3)
		RETURNING `+verificationColumns,
		clientID, codeHash, expiresAt,
	))
	if err != nil {
		if isForeignKeyViolation(err) {
			return model.VerificationCode{}, ErrClientNotFound
		}
		return model.VerificationCode{}, fmt.Errorf("insert code: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return model.VerificationCode{}, fmt.Errorf("commit: %w", err)
	}
	return v, nil
}

// CountRecent returns the number of codes issued to the client since the given time
func (r *verificationRepo) CountRecent(ctx context.Context, clientID uuid.UUID, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM verification_codes
		WHERE client_id = $1 AND created_at >= $2
	`, clientID, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count recent codes: %w", err)
	}
	return count, nil
}

// Consume redeems a live code and marks the client's phone verified in one
// transaction. The code is matched with used = false, so a code can be
// redeemed once even under concurrent confirms. No live match is ErrCodeInvalid.
func (r *verificationRepo) Consume(ctx context.Context, clientID uuid.UUID, codeHash string, now time.Time) (model.VerificationCode, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.VerificationCode{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	v, err := scanVerification(tx.QueryRowContext(ctx, `
		UPDATE verification_codes
		SET used = true, used_at = $3
		WHERE id = (
			SELECT id FROM verification_codes
			WHERE client_id = $1 AND code_hash = $2 AND used = false AND expires_at >= $3
			ORDER BY created_at DESC
			LIMIT 1
		) AND used = false
		RETURNING `+verificationColumns,
		clientID, codeHash, now,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.VerificationCode{}, ErrCodeInvalid
		}
		return model.VerificationCode{}, fmt.Errorf("consume code: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE clients SET phone_verified = true, updated_at = now() WHERE id = $1
	`, clientID)
	if err != nil {
		return model.VerificationCode{}, fmt.Errorf("mark phone verified: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return model.VerificationCode{}, fmt.Errorf("commit: %w", err)
	}
	return v, nil
}

// DeleteStale removes used codes and codes that expired before the cutoff
func (r *verificationRepo) DeleteStale(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM verification_codes WHERE used OR expires_at < $1
	`, before)
	if err != nil {
		return 0, fmt.Errorf("delete stale codes: %w", err)
	}
	return result.RowsAffected()
}
