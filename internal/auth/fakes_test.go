package auth

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sppt/server/internal/apperr"
	"github.com/sppt/server/internal/model"
)

type fakeStaffRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]model.StaffUser
}

func newFakeStaffRepo(users ...model.StaffUser) *fakeStaffRepo {
	r := &fakeStaffRepo{users: map[uuid.UUID]model.StaffUser{}}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *fakeStaffRepo) GetByEmail(_ context.Context, email string) (model.StaffUser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return model.StaffUser{}, apperr.ErrNotFound
}

func (r *fakeStaffRepo) GetByID(_ context.Context, id uuid.UUID) (model.StaffUser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return model.StaffUser{}, apperr.ErrNotFound
	}
	return u, nil
}

func (r *fakeStaffRepo) UpdatePassword(_ context.Context, id uuid.UUID, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return apperr.ErrNotFound
	}
	u.PasswordHash = hash
	r.users[id] = u
	return nil
}

func (r *fakeStaffRepo) set(u model.StaffUser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[u.ID] = u
}

type fakeClientRepo struct {
	mu      sync.Mutex
	clients map[uuid.UUID]model.Client
}

func (r *fakeClientRepo) GetByPhoneOrEmail(_ context.Context, login string) (model.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.clients {
		if c.Phone == login || (c.Email != nil && *c.Email == login) {
			return c, nil
		}
	}
	return model.Client{}, apperr.ErrNotFound
}

func (r *fakeClientRepo) GetByID(_ context.Context, id uuid.UUID) (model.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clients[id]
	if !ok {
		return model.Client{}, apperr.ErrNotFound
	}
	return c, nil
}

func (r *fakeClientRepo) UpdatePassword(_ context.Context, id uuid.UUID, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.clients[id]
	c.PasswordHash = &hash
	r.clients[id] = c
	return nil
}

// memSessionStore mirrors the SQL store: Rotate is a compare-and-swap on the
// revoked flag followed by an insert, under one lock.
type memSessionStore struct {
	mu             sync.Mutex
	byID           map[uuid.UUID]*model.RefreshToken
	byHash         map[string]*model.RefreshToken
	revokeAllCalls int
}

func newMemSessionStore() *memSessionStore {
	return &memSessionStore{
		byID:   map[uuid.UUID]*model.RefreshToken{},
		byHash: map[string]*model.RefreshToken{},
	}
}

func (s *memSessionStore) insert(principalID uuid.UUID, hash string, expiresAt time.Time) model.RefreshToken {
	rec := &model.RefreshToken{
		ID:          uuid.New(),
		PrincipalID: principalID,
		TokenHash:   hash,
		CreatedAt:   time.Now(),
		ExpiresAt:   expiresAt,
	}
	s.byID[rec.ID] = rec
	s.byHash[hash] = rec
	return *rec
}

func (s *memSessionStore) Save(_ context.Context, principalID uuid.UUID, hash string, expiresAt time.Time) (model.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insert(principalID, hash, expiresAt), nil
}

func (s *memSessionStore) FindByTokenHash(_ context.Context, hash string) (model.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byHash[hash]
	if !ok {
		return model.RefreshToken{}, apperr.ErrNotFound
	}
	return *rec, nil
}

func (s *memSessionStore) Rotate(_ context.Context, oldID, principalID uuid.UUID, newHash string, expiresAt time.Time) (model.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.byID[oldID]
	if !ok || old.Revoked {
		return model.RefreshToken{}, apperr.ErrTokenRevoked
	}
	rec := s.insert(principalID, newHash, expiresAt)
	now := time.Now()
	old.Revoked = true
	old.RevokedAt = &now
	old.ReplacedBy = &rec.ID
	return rec, nil
}

func (s *memSessionStore) Revoke(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byID[id]
	if !ok {
		return apperr.ErrNotFound
	}
	if !rec.Revoked {
		now := time.Now()
		rec.Revoked = true
		rec.RevokedAt = &now
	}
	return nil
}

func (s *memSessionStore) RevokeAllForPrincipal(_ context.Context, principalID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revokeAllCalls++
	var n int64
	now := time.Now()
	for _, rec := range s.byID {
		if rec.PrincipalID == principalID && !rec.Revoked {
			rec.Revoked = true
			rec.RevokedAt = &now
			n++
		}
	}
	return n, nil
}

func (s *memSessionStore) revokedSet(principalID uuid.UUID) map[uuid.UUID]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[uuid.UUID]bool{}
	for id, rec := range s.byID {
		if rec.PrincipalID == principalID && rec.Revoked {
			out[id] = true
		}
	}
	return out
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}
