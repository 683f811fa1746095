package main

import (
	"github.com/spf13/cobra"

	"github.com/1001stories/stories-api/internal/platform/postgres"
)

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate up|down|status|version",
		Short:     "Apply or inspect database migrations",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down", "status", "version"},
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := ctx.database(cmd.Context())
			if err != nil {
				return err
			}
			_, log, _ := ctx.ensureConfig()
			return postgres.Migrate(cmd.Context(), db, args[0], log)
		},
	}
}
