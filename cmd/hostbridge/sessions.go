package main

import (
	"github.com/spf13/cobra"

	"github.com/hostbridge/hostbridge/internal/config"
	"github.com/hostbridge/hostbridge/internal/repository"
)

func newSessionsCommand(envFile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Session store maintenance",
	}
	cmd.AddCommand(newSessionsReapCommand(envFile))
	return cmd
}

// Session expiry is lazy: verification filters expired rows but never
// deletes them. This command is the scheduled collaborator that keeps
// the table bounded.
func newSessionsReapCommand(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "reap",
		Short: "Delete expired session rows",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*envFile)
			if err != nil {
				return err
			}
			db, err := repository.OpenDatabase(cfg)
			if err != nil {
				return err
			}
			defer func() {
				if sqlDB, err := db.DB(); err == nil {
					_ = sqlDB.Close()
				}
			}()

			reaped, err := repository.NewSessionRepository(db).DeleteExpired()
			if err != nil {
				return err
			}
			cmd.Printf("reaped %d expired sessions\n", reaped)
			return nil
		},
	}
}
