package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var jsonFlag bool

	ctx := newCommandContext(&jsonFlag)

	rootCmd := &cobra.Command{
		Use:           "storiesctl",
		Short:         "1001 Stories administration",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			ctx.close()
		},
	}

	rootCmd.PersistentFlags().BoolVar(&jsonFlag, "json", false, "Print results as JSON")

	rootCmd.AddCommand(newMigrateCommand(ctx))
	rootCmd.AddCommand(newDigestCommand(ctx))
	rootCmd.AddCommand(newRetentionCommand(ctx))
	rootCmd.AddCommand(newJobsCommand(ctx))
	rootCmd.AddCommand(newHashPasswordCommand())

	return rootCmd
}
