package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/sppt/server/internal/authz"
	"github.com/sppt/server/internal/model"
)

// BusinessUpdate carries the editable business fields. Nil fields are left as is.
type BusinessUpdate struct {
	Name   *string
	Status *string
}

// BusinessRepo defines the interface for business repository operations
type BusinessRepo interface {
	Create(ctx context.Context, name string) (model.Business, error)
	CreateForOwner(ctx context.Context, name string, ownerID uuid.UUID) (model.Business, error)
	GetByID(ctx context.Context, id uuid.UUID) (model.Business, error)
	List(ctx context.Context) ([]model.Business, error)
	Update(ctx context.Context, id uuid.UUID, upd BusinessUpdate) (model.Business, error)
	Stats(ctx context.Context, id uuid.UUID) (model.BusinessStats, error)
}

type businessRepo struct {
	db *sql.DB
}

// NewBusinessRepo creates a new BusinessRepo instance
func NewBusinessRepo(db *sql.DB) BusinessRepo {
	return &businessRepo{db: db}
}

const businessColumns = `id, name, status, created_at, updated_at`

func scanBusiness(row rowScanner) (model.Business, error) {
	var b model.Business
	err := row.Scan(&b.ID, &b.Name, &b.Status, &b.CreatedAt, &b.UpdatedAt)
	return b, err
}

// Create inserts a business with no owner attached
func (r *businessRepo) Create(ctx context.Context, name string) (model.Business, error) {
	b, err := scanBusiness(r.db.QueryRowContext(ctx, `
		INSERT INTO businesses (name) VALUES ($1) RETURNING `+businessColumns, name))
	if err != nil {
		return model.Business{}, fmt.Errorf("insert business: %w", err)
	}
	return b, nil
}

// CreateForOwner inserts a business and assigns it to the owner in one
// transaction. The assignment only succeeds while the owner has no business,
// so two concurrent calls for the same owner cannot both commit.
func (r *businessRepo) CreateForOwner(ctx context.Context, name string, ownerID uuid.UUID) (model.Business, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Business{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	b, err := scanBusiness(tx.QueryRowContext(ctx, `
		INSERT INTO businesses (name) VALUES ($1) RETURNING `+businessColumns, name))
	if err != nil {
		return model.Business{}, fmt.Errorf("insert business: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE users
		SET business_id = $2, updated_at = now()
		WHERE id = $1 AND role = 'OWNER' AND business_id IS NULL
	`, ownerID, b.ID)
	if err != nil {
		return model.Business{}, fmt.Errorf("assign owner: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return model.Business{}, fmt.Errorf("assign owner: %w", err)
	}
	if n == 0 {
		return model.Business{}, authz.ErrOwnerHasBusiness
	}

	if err := tx.Commit(); err != nil {
		return model.Business{}, fmt.Errorf("commit: %w", err)
	}
	return b, nil
}

// GetByID retrieves a business by ID
func (r *businessRepo) GetByID(ctx context.Context, id uuid.UUID) (model.Business, error) {
	b, err := scanBusiness(r.db.QueryRowContext(ctx, `SELECT `+businessColumns+` FROM businesses WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Business{}, ErrBusinessNotFound
		}
		return model.Business{}, fmt.Errorf("query business: %w", err)
	}
	return b, nil
}

// List returns all businesses, newest first
func (r *businessRepo) List(ctx context.Context) ([]model.Business, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+businessColumns+` FROM businesses ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list businesses: %w", err)
	}
	defer rows.Close()

	out := []model.Business{}
	for rows.Next() {
		b, err := scanBusiness(rows)
		if err != nil {
			return nil, fmt.Errorf("scan business: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *businessRepo) Update(ctx context.Context, id uuid.UUID, upd BusinessUpdate) (model.Business, error) {
	b, err := scanBusiness(r.db.QueryRowContext(ctx, `
		UPDATE businesses
		SET name = COALESCE($2, name),
		    status = COALESCE($3, status),
		    updated_at = now()
		WHERE id = $1
		RETURNING `+businessColumns,
		id, upd.Name, upd.Status,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Business{}, ErrBusinessNotFound
		}
		return model.Business{}, fmt.Errorf("update business: %w", err)
	}
	return b, nil
}

// Stats counts staff and client memberships of a business
func (r *businessRepo) Stats(ctx context.Context, id uuid.UUID) (model.BusinessStats, error) {
	var s model.BusinessStats
	err := r.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM users WHERE business_id = $1),
			(SELECT COUNT(*) FROM users WHERE business_id = $1 AND active),
			(SELECT COUNT(*) FROM client_businesses WHERE business_id = $1),
			(SELECT COUNT(*) FROM client_businesses WHERE business_id = $1 AND active)
	`, id).Scan(&s.TotalUsers, &s.ActiveUsers, &s.TotalClients, &s.ActiveClients)
	if err != nil {
		return model.BusinessStats{}, fmt.Errorf("business stats: %w", err)
	}
	return s, nil
}
