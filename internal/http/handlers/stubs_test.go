package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/sppt/server/internal/auth"
	"github.com/sppt/server/internal/authz"
	"github.com/sppt/server/internal/model"
	"github.com/sppt/server/internal/repo"
	"github.com/sppt/server/internal/service"
)

type stubStaffSessions struct {
	login          func(login, password string) (auth.Session[auth.StaffPrincipal], error)
	logoutErr      error
	changed        []string
	revokedFor     uuid.UUID
	revokeAllCount int64
}

func (s *stubStaffSessions) Login(_ context.Context, login, password string) (auth.Session[auth.StaffPrincipal], error) {
	return s.login(login, password)
}

func (s *stubStaffSessions) Refresh(_ context.Context, token string) (auth.Session[auth.StaffPrincipal], error) {
	return auth.Session[auth.StaffPrincipal]{AccessToken: "a2", RefreshToken: "r2"}, nil
}

func (s *stubStaffSessions) Logout(_ context.Context, _ uuid.UUID, _ string) error { return s.logoutErr }

func (s *stubStaffSessions) RevokeAll(_ context.Context, id uuid.UUID) (int64, error) {
	s.revokedFor = id
	return s.revokeAllCount, nil
}

func (s *stubStaffSessions) ChangePassword(_ context.Context, _ uuid.UUID, current, next string) error {
	s.changed = append(s.changed, current, next)
	return nil
}

type stubStaffManager struct {
	created service.CreateStaffInput
	actor   authz.Actor
	err     error
}

func (s *stubStaffManager) Create(_ context.Context, actor authz.Actor, in service.CreateStaffInput) (model.StaffUser, error) {
	s.actor, s.created = actor, in
	if s.err != nil {
		return model.StaffUser{}, s.err
	}
	return model.StaffUser{ID: uuid.New(), Email: in.Email, Name: in.Name, Role: in.Role, BusinessID: in.BusinessID, Active: true}, nil
}

func (s *stubStaffManager) ListByBusiness(_ context.Context, _ authz.Actor, _ uuid.UUID) ([]model.StaffUser, error) {
	return nil, s.err
}

func (s *stubStaffManager) Get(_ context.Context, _ authz.Actor, id uuid.UUID) (model.StaffUser, error) {
	return model.StaffUser{ID: id}, s.err
}

func (s *stubStaffManager) Update(_ context.Context, _ authz.Actor, id uuid.UUID, _ repo.StaffUpdate) (model.StaffUser, error) {
	return model.StaffUser{ID: id}, s.err
}

func (s *stubStaffManager) Deactivate(_ context.Context, _ authz.Actor, _ uuid.UUID) error { return s.err }
func (s *stubStaffManager) Activate(_ context.Context, _ authz.Actor, _ uuid.UUID) error   { return s.err }

func (s *stubStaffManager) ResetPassword(_ context.Context, actor authz.Actor, _ uuid.UUID, _ string) error {
	s.actor = actor
	return s.err
}

type stubVerifier struct {
	confirmErr error
}

func (s *stubVerifier) RequestCode(_ context.Context, phone string) (service.CodeRequest, error) {
	return service.CodeRequest{MaskedPhone: "+57******4567", ExpiresIn: service.DefaultCodeTTL}, nil
}

func (s *stubVerifier) ConfirmCode(_ context.Context, _, _ string) (uuid.UUID, error) {
	return uuid.New(), s.confirmErr
}

func jsonRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if s, ok := body.(string); ok {
		buf.WriteString(s)
	} else {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	return httptest.NewRequest(method, target, &buf)
}

func withURLParams(r *http.Request, kv ...string) *http.Request {
	rctx := chi.NewRouteContext()
	for i := 0; i+1 < len(kv); i += 2 {
		rctx.URLParams.Add(kv[i], kv[i+1])
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}
