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

// StaffUpdate carries the editable profile fields. Nil fields are left as is.
type StaffUpdate struct {
	Email    *string
	Name     *string
	LastName *string
}

// StaffRepo defines the interface for staff user repository operations
type StaffRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (model.StaffUser, error)
	GetByEmail(ctx context.Context, email string) (model.StaffUser, error)
	ListByBusiness(ctx context.Context, businessID uuid.UUID) ([]model.StaffUser, error)
	Create(ctx context.Context, u model.StaffUser) (model.StaffUser, error)
	Update(ctx context.Context, id uuid.UUID, upd StaffUpdate) (model.StaffUser, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error
}

type staffRepo struct {
	db *sql.DB
}

// NewStaffRepo creates a new StaffRepo instance
func NewStaffRepo(db *sql.DB) StaffRepo {
	return &staffRepo{db: db}
}

const staffColumns = `id, email, password_hash, name, last_name, role, business_id, active, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStaff(row rowScanner) (model.StaffUser, error) {
	var u model.StaffUser
	var role string
	var businessID uuid.NullUUID
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.Name,
		&u.LastName,
		&role,
		&businessID,
		&u.Active,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return model.StaffUser{}, err
	}
	u.Role = model.Role(role)
	if businessID.Valid {
		id := businessID.UUID
		u.BusinessID = &id
	}
	return u, nil
}

// GetByID retrieves a staff user by ID
func (r *staffRepo) GetByID(ctx context.Context, id uuid.UUID) (model.StaffUser, error) {
	u, err := scanStaff(r.db.QueryRowContext(ctx, `SELECT `+staffColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.StaffUser{}, ErrUserNotFound
		}
		return model.StaffUser{}, fmt.Errorf("query user: %w", err)
	}
	return u, nil
}

// GetByEmail retrieves a staff user by normalized email
func (r *staffRepo) GetByEmail(ctx context.Context, email string) (model.StaffUser, error) {
	u, err := scanStaff(r.db.QueryRowContext(ctx, `SELECT `+staffColumns+` FROM users WHERE email = $1`, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.StaffUser{}, ErrUserNotFound
		}
		return model.StaffUser{}, fmt.Errorf("query user: %w", err)
	}
	return u, nil
}

// ListByBusiness returns every staff user of a business, active or not
func (r *staffRepo) ListByBusiness(ctx context.Context, businessID uuid.UUID) ([]model.StaffUser, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+staffColumns+`
		FROM users
		WHERE business_id = $1
		ORDER BY created_at
	`, businessID)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := []model.StaffUser{}
	for rows.Next() {
		u, err := scanStaff(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

// Create inserts a staff user. When the user belongs to a business, the
// business row is locked so that two concurrent OWNER creations cannot both
// pass the one-owner check.
func (r *staffRepo) Create(ctx context.Context, u model.StaffUser) (model.StaffUser, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.StaffUser{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if u.BusinessID != nil {
		var locked uuid.UUID
		err = tx.QueryRowContext(ctx, `SELECT id FROM businesses WHERE id = $1 FOR UPDATE`, *u.BusinessID).Scan(&locked)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return model.StaffUser{}, ErrBusinessNotFound
			}
			return model.StaffUser{}, fmt.Errorf("lock business: %w", err)
		}

		if u.Role == model.RoleOwner {
			var exists bool
			err = tx.QueryRowContext(ctx, `
				SELECT EXISTS (SELECT 1 FROM users WHERE business_id = $1 AND role = 'OWNER')
			`, *u.BusinessID).Scan(&exists)
			if err != nil {
				return model.StaffUser{}, fmt.Errorf("check owner: %w", err)
			}
			if exists {
				return model.StaffUser{}, authz.ErrBusinessHasOwner
			}
		}
	}

	created, err := scanStaff(tx.QueryRowContext(ctx, `
		INSERT INTO users (email, password_hash, name, last_name, role, business_id, active)
		VALUES ($1, $2, $3, $4, $5, $6, true)
		RETURNING `+staffColumns,
		u.Email, u.PasswordHash, u.Name, u.LastName, string(u.Role), u.BusinessID,
	))
	if err != nil {
		if isUniqueViolation(err) {
			if violatedConstraint(err) == "users_one_owner_per_business" {
				return model.StaffUser{}, authz.ErrBusinessHasOwner
			}
			return model.StaffUser{}, ErrEmailTaken
		}
		return model.StaffUser{}, fmt.Errorf("insert user: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return model.StaffUser{}, fmt.Errorf("commit: %w", err)
	}
	return created, nil
}

// Update changes the non-nil profile fields and bumps updated_at
func (r *staffRepo) Update(ctx context.Context, id uuid.UUID, upd StaffUpdate) (model.StaffUser, error) {
	u, err := scanStaff(r.db.QueryRowContext(ctx, `
		UPDATE users
		SET email = COALESCE($2, email),
		    name = COALESCE($3, name),
		    last_name = COALESCE($4, last_name),
		    updated_at = now()
		WHERE id = $1
		RETURNING `+staffColumns,
		id, upd.Email, upd.Name, upd.LastName,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.StaffUser{}, ErrUserNotFound
		}
		if isUniqueViolation(err) {
			return model.StaffUser{}, ErrEmailTaken
		}
		return model.StaffUser{}, fmt.Errorf("update user: %w", err)
	}
	return u, nil
}

// SetActive activates or deactivates a staff user
func (r *staffRepo) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE users SET active = $2, updated_at = now() WHERE id = $1
	`, id, active)
	if err != nil {
		return fmt.Errorf("set active: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// UpdatePassword stores a new password hash
func (r *staffRepo) UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1
	`, id, hash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}
