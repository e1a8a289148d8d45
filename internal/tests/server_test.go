package tests

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/sppt/server/internal/auth"
	"github.com/sppt/server/internal/db"
	httphandler "github.com/sppt/server/internal/http"
	"github.com/sppt/server/internal/http/handlers"
	"github.com/sppt/server/internal/middleware"
	"github.com/sppt/server/internal/model"
	"github.com/sppt/server/internal/repo"
	"github.com/sppt/server/internal/service"
)

const (
	testSecret        = "test-jwt-secret-at-least-32-characters-long"
	superAdminEmail   = "root@sppt.test"
	superAdminSecret  = "root-password"
	attemptsPerWindow = 10
)

// testServer holds the server and DB for integration tests
type testServer struct {
	Server *httptest.Server
	DB     *sql.DB
	Codes  *CodeRecorder
	staff  repo.StaffRepo
	hasher auth.PasswordHasher
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set; skipping integration test")
	}
	log := zerolog.Nop()
	ctx := context.Background()

	database, err := db.Open(ctx, url, db.DefaultPool, log)
	require.NoError(t, err, "database open must succeed; check DATABASE_URL and that test DB exists")
	t.Cleanup(func() { database.Close() })
	require.NoError(t, db.Migrate(database, log), "migrations must run successfully")

	staffRepo := repo.NewStaffRepo(database)
	businessRepo := repo.NewBusinessRepo(database)
	clientRepo := repo.NewClientRepo(database)

	hasher := auth.NewBcryptHasher(4)
	tokens := auth.NewJWTService(testSecret, "sppt", 15*time.Minute)
	staffSessions := auth.NewSessions(model.KindStaff, auth.NewStaffPrincipals(staffRepo),
		repo.NewStaffRefreshRepo(database), hasher, tokens, auth.SessionOptions{Logger: log})
	clientSessions := auth.NewSessions(model.KindClient, auth.NewClientPrincipals(clientRepo),
		repo.NewClientRefreshRepo(database), hasher, tokens, auth.SessionOptions{Logger: log})

	codes := NewCodeRecorder()
	staffService := service.NewStaffService(staffRepo, staffSessions, hasher, log)
	clientService := service.NewClientService(clientRepo, repo.NewMembershipRepo(database), businessRepo, clientSessions, hasher, log)
	verification := service.NewVerificationService(clientRepo, repo.NewVerificationRepo(database), codes,
		service.VerificationOptions{Pepper: testSecret}, log)

	attempts := middleware.NewMemoryLimiter(time.Minute, attemptsPerWindow)
	t.Cleanup(attempts.Stop)

	router, err := httphandler.NewRouter(httphandler.RouterConfig{
		Log:           log,
		DevMode:       true,
		Attempts:      attempts,
		Tokens:        tokens,
		Staff:         staffRepo,
		Clients:       clientRepo,
		Health:        handlers.NewHealthHandler(database),
		Auth:          handlers.NewAuthHandler(staffSessions, staffService, attempts, log),
		Users:         handlers.NewUsersHandler(staffService, log),
		Business:      handlers.NewBusinessHandler(service.NewBusinessService(businessRepo, log), log),
		ClientsAPI:    handlers.NewClientsHandler(clientSessions, clientService, attempts, log),
		Notifications: handlers.NewNotificationsHandler(verification, attempts, log),
	})
	require.NoError(t, err)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &testServer{Server: server, DB: database, Codes: codes, staff: staffRepo, hasher: hasher}
}

func (s *testServer) TruncateAuth(t *testing.T) {
	t.Helper()
	require.NoError(t, TruncateAuthTables(context.Background(), s.DB), "truncate auth tables")
}

// SeedSuperAdmin inserts the platform administrator directly, the way
// spptctl seed does.
func (s *testServer) SeedSuperAdmin(t *testing.T) {
	t.Helper()
	hash, err := s.hasher.Hash(superAdminSecret)
	require.NoError(t, err)
	_, err = s.staff.Create(context.Background(), model.StaffUser{
		Email: superAdminEmail, PasswordHash: hash, Name: "Root", Role: model.RoleSuperAdmin,
	})
	require.NoError(t, err)
}

// call sends a JSON request and decodes the JSON response into out, if given.
func (s *testServer) call(t *testing.T, method, path, token string, body, out any) int {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, s.Server.URL+path, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.Server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if out != nil && len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, out), "body: %s", raw)
	}
	return resp.StatusCode
}

// tokenResponse matches the token fields of login and refresh responses
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

// errorResponse matches error JSON body
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type staffLogin struct {
	tokenResponse
	User struct {
		ID         string  `json:"id"`
		Email      string  `json:"email"`
		Role       string  `json:"role"`
		BusinessID *string `json:"businessId"`
	} `json:"user"`
}

func (s *testServer) loginStaff(t *testing.T, email, password string) staffLogin {
	t.Helper()
	var res staffLogin
	status := s.call(t, http.MethodPost, "/auth/login", "", map[string]string{"email": email, "password": password}, &res)
	require.Equal(t, http.StatusOK, status, "login %s", email)
	return res
}
