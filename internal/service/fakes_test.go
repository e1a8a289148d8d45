package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/sppt/server/internal/auth"
	"github.com/sppt/server/internal/authz"
	"github.com/sppt/server/internal/model"
	"github.com/sppt/server/internal/repo"
)

var testHasher = auth.NewBcryptHasher(bcrypt.MinCost)

type fakeStaff struct {
	mu    sync.Mutex
	users map[uuid.UUID]model.StaffUser
}

func newFakeStaff(users ...model.StaffUser) *fakeStaff {
	f := &fakeStaff{users: map[uuid.UUID]model.StaffUser{}}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeStaff) GetByID(_ context.Context, id uuid.UUID) (model.StaffUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return model.StaffUser{}, repo.ErrUserNotFound
	}
	return u, nil
}

func (f *fakeStaff) GetByEmail(_ context.Context, email string) (model.StaffUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return model.StaffUser{}, repo.ErrUserNotFound
}

func (f *fakeStaff) ListByBusiness(_ context.Context, businessID uuid.UUID) ([]model.StaffUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.StaffUser{}
	for _, u := range f.users {
		if u.BusinessID != nil && *u.BusinessID == businessID {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeStaff) Create(_ context.Context, u model.StaffUser) (model.StaffUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, x := range f.users {
		if x.Email == u.Email {
			return model.StaffUser{}, repo.ErrEmailTaken
		}
		if u.Role == model.RoleOwner && x.Role == model.RoleOwner && u.BusinessID != nil &&
			x.BusinessID != nil && *x.BusinessID == *u.BusinessID {
			return model.StaffUser{}, authz.ErrBusinessHasOwner
		}
	}
	u.ID = uuid.New()
	u.Active = true
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	f.users[u.ID] = u
	return u, nil
}

func (f *fakeStaff) Update(_ context.Context, id uuid.UUID, upd repo.StaffUpdate) (model.StaffUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return model.StaffUser{}, repo.ErrUserNotFound
	}
	if upd.Email != nil {
		u.Email = *upd.Email
	}
	if upd.Name != nil {
		u.Name = *upd.Name
	}
	if upd.LastName != nil {
		u.LastName = *upd.LastName
	}
	f.users[id] = u
	return u, nil
}

func (f *fakeStaff) SetActive(_ context.Context, id uuid.UUID, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return repo.ErrUserNotFound
	}
	u.Active = active
	f.users[id] = u
	return nil
}

func (f *fakeStaff) UpdatePassword(_ context.Context, id uuid.UUID, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return repo.ErrUserNotFound
	}
	u.PasswordHash = hash
	f.users[id] = u
	return nil
}

type fakeStaffSessions struct {
	revokedFor []uuid.UUID
	resets     map[uuid.UUID]string
}

func (f *fakeStaffSessions) RevokeAll(_ context.Context, id uuid.UUID) (int64, error) {
	f.revokedFor = append(f.revokedFor, id)
	return 1, nil
}

func (f *fakeStaffSessions) ResetPassword(_ context.Context, id uuid.UUID, next string) error {
	if f.resets == nil {
		f.resets = map[uuid.UUID]string{}
	}
	f.resets[id] = next
	return nil
}

type fakeBusinesses struct {
	mu         sync.Mutex
	businesses map[uuid.UUID]model.Business
	owners     map[uuid.UUID]uuid.UUID // owner id -> business id
	stats      model.BusinessStats
}

func newFakeBusinesses(bs ...model.Business) *fakeBusinesses {
	f := &fakeBusinesses{businesses: map[uuid.UUID]model.Business{}, owners: map[uuid.UUID]uuid.UUID{}}
	for _, b := range bs {
		f.businesses[b.ID] = b
	}
	return f
}

func (f *fakeBusinesses) Create(_ context.Context, name string) (model.Business, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b := model.Business{ID: uuid.New(), Name: name, Status: BusinessActive}
	f.businesses[b.ID] = b
	return b, nil
}

func (f *fakeBusinesses) CreateForOwner(_ context.Context, name string, ownerID uuid.UUID) (model.Business, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.owners[ownerID]; ok {
		return model.Business{}, authz.ErrOwnerHasBusiness
	}
	b := model.Business{ID: uuid.New(), Name: name, Status: BusinessActive}
	f.businesses[b.ID] = b
	f.owners[ownerID] = b.ID
	return b, nil
}

func (f *fakeBusinesses) GetByID(_ context.Context, id uuid.UUID) (model.Business, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.businesses[id]
	if !ok {
		return model.Business{}, repo.ErrBusinessNotFound
	}
	return b, nil
}

func (f *fakeBusinesses) List(_ context.Context) ([]model.Business, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Business{}
	for _, b := range f.businesses {
		out = append(out, b)
	}
	return out, nil
}

func (f *fakeBusinesses) Update(_ context.Context, id uuid.UUID, upd repo.BusinessUpdate) (model.Business, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.businesses[id]
	if !ok {
		return model.Business{}, repo.ErrBusinessNotFound
	}
	if upd.Name != nil {
		b.Name = *upd.Name
	}
	if upd.Status != nil {
		b.Status = *upd.Status
	}
	f.businesses[id] = b
	return b, nil
}

func (f *fakeBusinesses) Stats(_ context.Context, _ uuid.UUID) (model.BusinessStats, error) {
	return f.stats, nil
}

type fakeClients struct {
	mu      sync.Mutex
	clients map[uuid.UUID]model.Client
}

func newFakeClients(cs ...model.Client) *fakeClients {
	f := &fakeClients{clients: map[uuid.UUID]model.Client{}}
	for _, c := range cs {
		f.clients[c.ID] = c
	}
	return f
}

func (f *fakeClients) Create(_ context.Context, c model.Client) (model.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, x := range f.clients {
		if x.Phone == c.Phone || (c.Email != nil && x.Email != nil && *x.Email == *c.Email) {
			return model.Client{}, repo.ErrPhoneOrEmailTaken
		}
	}
	c.ID = uuid.New()
	c.Active = true
	f.clients[c.ID] = c
	return c, nil
}

func (f *fakeClients) GetByID(_ context.Context, id uuid.UUID) (model.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.clients[id]
	if !ok {
		return model.Client{}, repo.ErrClientNotFound
	}
	return c, nil
}

func (f *fakeClients) GetByPhone(_ context.Context, phone string) (model.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.clients {
		if c.Phone == phone {
			return c, nil
		}
	}
	return model.Client{}, repo.ErrClientNotFound
}

func (f *fakeClients) GetByPhoneOrEmail(ctx context.Context, login string) (model.Client, error) {
	f.mu.Lock()
	for _, c := range f.clients {
		if c.Email != nil && *c.Email == login {
			f.mu.Unlock()
			return c, nil
		}
	}
	f.mu.Unlock()
	return f.GetByPhone(ctx, login)
}

func (f *fakeClients) UpdatePassword(_ context.Context, id uuid.UUID, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.clients[id]
	if !ok {
		return repo.ErrClientNotFound
	}
	c.PasswordHash = &hash
	f.clients[id] = c
	return nil
}

type fakeMemberships struct {
	mu sync.Mutex
	ms []model.ClientBusiness
}

func (f *fakeMemberships) AddBusiness(_ context.Context, clientID, businessID uuid.UUID) (model.ClientBusiness, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.ms {
		if m.ClientID == clientID && m.BusinessID == businessID {
			return model.ClientBusiness{}, repo.ErrAlreadyMember
		}
	}
	m := model.ClientBusiness{ID: uuid.New(), ClientID: clientID, BusinessID: businessID, Active: true}
	f.ms = append(f.ms, m)
	return m, nil
}

func (f *fakeMemberships) ListBusinesses(_ context.Context, clientID uuid.UUID) ([]model.ClientBusiness, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.ClientBusiness{}
	for _, m := range f.ms {
		if m.ClientID == clientID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMemberships) GetMembership(_ context.Context, clientID, businessID uuid.UUID) (model.ClientBusiness, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.ms {
		if m.ClientID == clientID && m.BusinessID == businessID {
			return m, nil
		}
	}
	return model.ClientBusiness{}, repo.ErrMembershipNotFound
}

type fakeCodes struct {
	mu    sync.Mutex
	codes []model.VerificationCode
	// verified records clients whose phone was marked verified.
	verified map[uuid.UUID]bool
	now      func() time.Time
}

func (f *fakeCodes) Replace(_ context.Context, clientID uuid.UUID, codeHash string, expiresAt time.Time) (model.VerificationCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.codes {
		if f.codes[i].ClientID == clientID {
			f.codes[i].Used = true
		}
	}
	created := time.Now()
	if f.now != nil {
		created = f.now()
	}
	v := model.VerificationCode{ID: uuid.New(), ClientID: clientID, CodeHash: codeHash, ExpiresAt: expiresAt, CreatedAt: created}
	f.codes = append(f.codes, v)
	return v, nil
}

func (f *fakeCodes) CountRecent(_ context.Context, clientID uuid.UUID, since time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.codes {
		if c.ClientID == clientID && !c.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (f *fakeCodes) Consume(_ context.Context, clientID uuid.UUID, codeHash string, now time.Time) (model.VerificationCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.codes) - 1; i >= 0; i-- {
		c := &f.codes[i]
		if c.ClientID == clientID && c.CodeHash == codeHash && !c.Used && !now.After(c.ExpiresAt) {
			c.Used = true
			c.UsedAt = &now
			if f.verified == nil {
				f.verified = map[uuid.UUID]bool{}
			}
			f.verified[clientID] = true
			return *c, nil
		}
	}
	return model.VerificationCode{}, repo.ErrCodeInvalid
}

func (f *fakeCodes) DeleteStale(_ context.Context, before time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.codes[:0]
	var n int64
	for _, c := range f.codes {
		if c.Used || c.ExpiresAt.Before(before) {
			n++
			continue
		}
		kept = append(kept, c)
	}
	f.codes = kept
	return n, nil
}

type captureSender struct {
	sent []CodeMessage
	err  error
}

func (s *captureSender) SendCode(_ context.Context, msg CodeMessage) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

func ptr[T any](v T) *T { return &v }
