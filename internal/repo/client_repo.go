package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/sppt/server/internal/model"
)

// ClientRepo defines the interface for client repository operations
type ClientRepo interface {
	Create(ctx context.Context, c model.Client) (model.Client, error)
	GetByID(ctx context.Context, id uuid.UUID) (model.Client, error)
	GetByPhone(ctx context.Context, phone string) (model.Client, error)
	GetByPhoneOrEmail(ctx context.Context, login string) (model.Client, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error
}

type clientRepo struct {
	db *sql.DB
}

// NewClientRepo creates a new ClientRepo instance
func NewClientRepo(db *sql.DB) ClientRepo {
	return &clientRepo{db: db}
}

const clientColumns = `id, phone, email, password_hash, name, phone_verified, active, created_at, updated_at`

func scanClient(row rowScanner) (model.Client, error) {
	var c model.Client
	var email, hash sql.NullString
	err := row.Scan(
		&c.ID,
		&c.Phone,
		&email,
		&hash,
		&c.Name,
		&c.PhoneVerified,
		&c.Active,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return model.Client{}, err
	}
	if email.Valid {
		c.Email = &email.String
	}
	if hash.Valid && hash.String != "" {
		c.PasswordHash = &hash.String
	}
	return c, nil
}

// Create inserts a client. A taken phone or email is ErrPhoneOrEmailTaken.
func (r *clientRepo) Create(ctx context.Context, c model.Client) (model.Client, error) {
	created, err := scanClient(r.db.QueryRowContext(ctx, `
		INSERT INTO clients (phone, email, password_hash, name, phone_verified, active)
		VALUES ($1, $2, $3, $4, false, true)
		RETURNING `+clientColumns,
		c.Phone, c.Email, c.PasswordHash, c.Name,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return model.Client{}, ErrPhoneOrEmailTaken
		}
		return model.Client{}, fmt.Errorf("insert client: %w", err)
	}
	return created, nil
}

// GetByID retrieves a client by ID
func (r *clientRepo) GetByID(ctx context.Context, id uuid.UUID) (model.Client, error) {
	return r.getOne(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = $1`, id)
}

// GetByPhone retrieves a client by phone number
func (r *clientRepo) GetByPhone(ctx context.Context, phone string) (model.Client, error) {
	return r.getOne(ctx, `SELECT `+clientColumns+` FROM clients WHERE phone = $1`, phone)
}

// GetByPhoneOrEmail treats a login containing "@" as an email, anything else
// as a phone number.
func (r *clientRepo) GetByPhoneOrEmail(ctx context.Context, login string) (model.Client, error) {
	if strings.Contains(login, "@") {
		return r.getOne(ctx, `SELECT `+clientColumns+` FROM clients WHERE email = $1`, login)
	}
	return r.GetByPhone(ctx, login)
}

func (r *clientRepo) getOne(ctx context.Context, query string, arg any) (model.Client, error) {
	c, err := scanClient(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Client{}, ErrClientNotFound
		}
		return model.Client{}, fmt.Errorf("query client: %w", err)
	}
	return c, nil
}

// UpdatePassword stores a new password hash
func (r *clientRepo) UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE clients SET password_hash = $2, updated_at = now() WHERE id = $1
	`, id, hash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return ErrClientNotFound
	}
	return nil
}
