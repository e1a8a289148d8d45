package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/sppt/server/internal/repo"
	"github.com/sppt/server/internal/service"
)

var cleanupGrace time.Duration

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete expired or revoked refresh tokens and stale verification codes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger()
		database, err := openDB(cmd.Context(), log)
		if err != nil {
			return err
		}
		defer database.Close()

		hk := service.NewHousekeeping(
			repo.NewStaffRefreshRepo(database),
			repo.NewClientRefreshRepo(database),
			repo.NewVerificationRepo(database),
			log,
		)
		report, err := hk.Run(cmd.Context(), time.Now().Add(-cleanupGrace))
		if err != nil {
			return err
		}
		cmd.Printf("Removed %d staff tokens, %d client tokens, %d verification codes\n",
			report.StaffTokens, report.ClientTokens, report.Codes)
		return nil
	},
}

func init() {
	cleanupCmd.Flags().DurationVar(&cleanupGrace, "grace", 24*time.Hour, "Keep rows that died less than this long ago")
	rootCmd.AddCommand(cleanupCmd)
}
