// Package tests holds end-to-end tests that run the full HTTP stack against
// a real Postgres. They are skipped unless DATABASE_URL is set.
package tests

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/sppt/server/internal/service"
)

// authTables lists every table the tests write to, children first.
const authTables = "verification_codes, client_refresh_tokens, refresh_tokens, client_businesses, clients, users, businesses"

// TruncateAuthTables truncates auth-related tables for a clean test state.
func TruncateAuthTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, "TRUNCATE TABLE "+authTables+" RESTART IDENTITY CASCADE")
	if err != nil {
		return fmt.Errorf("truncate auth tables: %w", err)
	}
	return nil
}

// CodeRecorder is a CodeSender that keeps the last code sent to each phone,
// standing in for the SMS gateway.
type CodeRecorder struct {
	mu    sync.Mutex
	codes map[string]string
}

func NewCodeRecorder() *CodeRecorder {
	return &CodeRecorder{codes: map[string]string{}}
}

func (r *CodeRecorder) SendCode(_ context.Context, msg service.CodeMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codes[msg.Phone] = msg.Code
	return nil
}

// Last returns the most recent code sent to phone.
func (r *CodeRecorder) Last(phone string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.codes[phone]
}
