// Command spptctl runs maintenance tasks against the SPPT database:
// migrations, demo seed data and cleanup of dead sessions.
package main

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/sppt/server/internal/db"
	"github.com/sppt/server/internal/logging"
)

var (
	databaseURL string
	logLevel    string
)

var rootCmd = &cobra.Command{
	Use:           "spptctl",
	Short:         "SPPT maintenance tool",
	Long:          "Run migrations, seed demo data and clean up expired sessions",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if databaseURL == "" {
			databaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&databaseURL, "database-url", "", "Postgres DSN (defaults to $DATABASE_URL)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level")
}

func main() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load("server/.env")

	if err := rootCmd.Execute(); err != nil {
		logger := newLogger()
		logger.Error().Err(err).Msg("spptctl failed")
		os.Exit(1)
	}
}

func newLogger() zerolog.Logger {
	return logging.New(logLevel, true)
}

// openDB opens the configured database. Callers close it.
func openDB(ctx context.Context, log zerolog.Logger) (*sql.DB, error) {
	if databaseURL == "" {
		return nil, errors.New("DATABASE_URL environment variable or --database-url is required")
	}
	return db.Open(ctx, databaseURL, db.DefaultPool, log)
}
