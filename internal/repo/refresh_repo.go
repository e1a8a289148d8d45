package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sppt/server/internal/apperr"
	"github.com/sppt/server/internal/model"
)

// RefreshRepo defines the interface for refresh token repository operations.
// Staff and client tokens live in separate tables with the same shape.
type RefreshRepo interface {
	Save(ctx context.Context, principalID uuid.UUID, tokenHash string, expiresAt time.Time) (model.RefreshToken, error)
	FindByTokenHash(ctx context.Context, tokenHash string) (model.RefreshToken, error)
	Rotate(ctx context.Context, oldID, principalID uuid.UUID, newHash string, expiresAt time.Time) (model.RefreshToken, error)
	Revoke(ctx context.Context, id uuid.UUID) error
	RevokeAllForPrincipal(ctx context.Context, principalID uuid.UUID) (int64, error)
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

type refreshRepo struct {
	db    *sql.DB
	table string
	owner string
}

// NewStaffRefreshRepo stores staff refresh tokens in refresh_tokens
func NewStaffRefreshRepo(db *sql.DB) RefreshRepo {
	return &refreshRepo{db: db, table: "refresh_tokens", owner: "user_id"}
}

// NewClientRefreshRepo stores client refresh tokens in client_refresh_tokens
func NewClientRefreshRepo(db *sql.DB) RefreshRepo {
	return &refreshRepo{db: db, table: "client_refresh_tokens", owner: "client_id"}
}

func (r *refreshRepo) columns() string {
	return "id, " + r.owner + ", token_hash, created_at, expires_at, revoked, revoked_at, replaced_by"
}

func scanRefresh(row rowScanner) (model.RefreshToken, error) {
	var t model.RefreshToken
	var revokedAt sql.NullTime
	var replacedBy uuid.NullUUID
	err := row.Scan(
		&t.ID,
		&t.PrincipalID,
		&t.TokenHash,
		&t.CreatedAt,
		&t.ExpiresAt,
		&t.Revoked,
		&revokedAt,
		&replacedBy,
	)
	if err != nil {
		return model.RefreshToken{}, err
	}
	if revokedAt.Valid {
		at := revokedAt.Time
		t.RevokedAt = &at
	}
	if replacedBy.Valid {
		id := replacedBy.UUID
		t.ReplacedBy = &id
	}
	return t, nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *refreshRepo) insert(ctx context.Context, q queryRower, principalID uuid.UUID, tokenHash string, expiresAt time.Time) (model.RefreshToken, error) {
	t, err := scanRefresh(q.QueryRowContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (%s, token_hash, expires_at)
		VALUES ($1, $2, $3)
		RETURNING %s
	`, r.table, r.owner, r.columns()), principalID, tokenHash, expiresAt))
	if err != nil {
		if isUniqueViolation(err) {
			return model.RefreshToken{}, fmt.Errorf("insert refresh token: %w", apperr.ErrConflict)
		}
		return model.RefreshToken{}, fmt.Errorf("insert refresh token: %w", err)
	}
	return t, nil
}

// Save inserts a new refresh token
func (r *refreshRepo) Save(ctx context.Context, principalID uuid.UUID, tokenHash string, expiresAt time.Time) (model.RefreshToken, error) {
	return r.insert(ctx, r.db, principalID, tokenHash, expiresAt)
}

// FindByTokenHash returns the token whether or not it is revoked or expired.
// The session protocol decides what each state means.
func (r *refreshRepo) FindByTokenHash(ctx context.Context, tokenHash string) (model.RefreshToken, error) {
	t, err := scanRefresh(r.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT %s FROM %s WHERE token_hash = $1
	`, r.columns(), r.table), tokenHash))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.RefreshToken{}, ErrRefreshTokenNotFound
		}
		return model.RefreshToken{}, fmt.Errorf("find refresh token: %w", err)
	}
	return t, nil
}

// Rotate inserts the successor token and revokes oldID in one transaction.
// The revoke only matches a row that is still live, so of two concurrent
// rotations of the same token exactly one commits; the other gets
// apperr.ErrTokenRevoked and its successor is rolled back.
func (r *refreshRepo) Rotate(ctx context.Context, oldID, principalID uuid.UUID, newHash string, expiresAt time.Time) (model.RefreshToken, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.RefreshToken{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	next, err := r.insert(ctx, tx, principalID, newHash, expiresAt)
	if err != nil {
		return model.RefreshToken{}, err
	}

	result, err := tx.ExecContext(ctx, fmt.Sprintf(`
		UPDATE %s
		SET revoked = true, revoked_at = now(), replaced_by = $2
		WHERE id = $1 AND revoked = false
	`, r.table), oldID, next.ID)
	if err != nil {
		return model.RefreshToken{}, fmt.Errorf("revoke rotated token: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return model.RefreshToken{}, fmt.Errorf("revoke rotated token: %w", err)
	}
	if n == 0 {
		return model.RefreshToken{}, apperr.ErrTokenRevoked
	}

	if err := tx.Commit(); err != nil {
		return model.RefreshToken{}, fmt.Errorf("commit: %w", err)
	}
	return next, nil
}

// Revoke marks one token revoked. Revoking an already revoked token is a no-op.
func (r *refreshRepo) Revoke(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, fmt.Sprintf(`
		UPDATE %s
		SET revoked = true, revoked_at = COALESCE(revoked_at, now())
		WHERE id = $1
	`, r.table), id)
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return ErrRefreshTokenNotFound
	}
	return nil
}

// RevokeAllForPrincipal revokes every live token of the principal and
// returns how many rows changed
func (r *refreshRepo) RevokeAllForPrincipal(ctx context.Context, principalID uuid.UUID) (int64, error) {
	result, err := r.db.ExecContext(ctx, fmt.Sprintf(`
		UPDATE %s
		SET revoked = true, revoked_at = now()
		WHERE %s = $1 AND revoked = false
	`, r.table, r.owner), principalID)
	if err != nil {
		return 0, fmt.Errorf("revoke all refresh tokens: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("revoke all refresh tokens: %w", err)
	}
	return n, nil
}

// DeleteExpired removes tokens that expired, or were revoked, before the cutoff
func (r *refreshRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, fmt.Sprintf(`
		DELETE FROM %s
		WHERE expires_at < $1 OR (revoked AND revoked_at < $1)
	`, r.table), before)
	if err != nil {
		return 0, fmt.Errorf("delete expired refresh tokens: %w", err)
	}
	return result.RowsAffected()
}
