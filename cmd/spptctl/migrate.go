package main

import (
	"github.com/spf13/cobra"

	"github.com/sppt/server/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger()
		database, err := openDB(cmd.Context(), log)
		if err != nil {
			return err
		}
		defer database.Close()

		if err := db.Migrate(database, log); err != nil {
			return err
		}
		v, err := db.Version(database)
		if err != nil {
			return err
		}
		cmd.Printf("Schema at version %d\n", v)
		return nil
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show which migrations are applied",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger()
		database, err := openDB(cmd.Context(), log)
		if err != nil {
			return err
		}
		defer database.Close()
		return db.MigrationStatus(database, log)
	},
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd, migrateStatusCmd)
	rootCmd.AddCommand(migrateCmd)
}
