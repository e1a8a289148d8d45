package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/sppt/server/internal/model"
)

// MembershipRepo stores client registrations in business loyalty programs
type MembershipRepo interface {
	AddBusiness(ctx context.Context, clientID, businessID uuid.UUID) (model.ClientBusiness, error)
	ListBusinesses(ctx context.Context, clientID uuid.UUID) ([]model.ClientBusiness, error)
	GetMembership(ctx context.Context, clientID, businessID uuid.UUID) (model.ClientBusiness, error)
}

type membershipRepo struct {
	db *sql.DB
}

// NewMembershipRepo creates a new MembershipRepo instance
func NewMembershipRepo(db *sql.DB) MembershipRepo {
	return &membershipRepo{db: db}
}

const membershipSelect = `
	SELECT cb.id, cb.client_id, cb.business_id, b.name, cb.current_points, cb.active, cb.created_at
	FROM client_businesses cb
	JOIN businesses b ON b.id = cb.business_id
`

func scanMembership(row rowScanner) (model.ClientBusiness, error) {
	var m model.ClientBusiness
	err := row.Scan(&m.ID, &m.ClientID, &m.BusinessID, &m.BusinessName, &m.CurrentPoints, &m.Active, &m.CreatedAt)
	return m, err
}

// AddBusiness registers the client in a business with zero points
func (r *membershipRepo) AddBusiness(ctx context.Context, clientID, businessID uuid.UUID) (model.ClientBusiness, error) {
	var id uuid.UUID
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO client_businesses (client_id, business_id)
		VALUES ($1, $2)
		RETURNING id
	`, clientID, businessID).Scan(&id)
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return model.ClientBusiness{}, ErrAlreadyMember
		case isForeignKeyViolation(err):
			return model.ClientBusiness{}, ErrBusinessNotFound
		}
		return model.ClientBusiness{}, fmt.Errorf("insert membership: %w", err)
	}
	return r.GetMembership(ctx, clientID, businessID)
}

// ListBusinesses returns the client's memberships with business names
func (r *membershipRepo) ListBusinesses(ctx context.Context, clientID uuid.UUID) ([]model.ClientBusiness, error) {
	rows, err := r.db.QueryContext(ctx, membershipSelect+`
		WHERE cb.client_id = $1
		ORDER BY cb.created_at
	`, clientID)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	defer rows.Close()

	out := []model.ClientBusiness{}
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// GetMembership returns one membership or ErrMembershipNotFound
func (r *membershipRepo) GetMembership(ctx context.Context, clientID, businessID uuid.UUID) (model.ClientBusiness, error) {
	m, err := scanMembership(r.db.QueryRowContext(ctx, membershipSelect+`
		WHERE cb.client_id = $1 AND cb.business_id = $2
	`, clientID, businessID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.ClientBusiness{}, ErrMembershipNotFound
		}
		return model.ClientBusiness{}, fmt.Errorf("query membership: %w", err)
	}
	return m, nil
}
