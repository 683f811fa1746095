package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/1001stories/stories-api/internal/retention"
)

func newRetentionCommand(ctx *commandContext) *cobra.Command {
	retentionCmd := &cobra.Command{
		Use:   "retention",
		Short: "Data retention tasks",
	}
	retentionCmd.AddCommand(newRetentionRunCommand(ctx))
	retentionCmd.AddCommand(newHardDeleteCommand(ctx))
	return retentionCmd
}

func newRetentionRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run every retention task",
		RunE: func(cmd *cobra.Command, args []string) error {
			driver, err := ctx.retentionDriver(cmd.Context())
			if err != nil {
				return err
			}
			report := driver.RunAll(cmd.Context())

			if ctx.json() {
				if err := writeJSON(cmd, report); err != nil {
					return err
				}
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), renderRetentionReport(report))
			}
			if len(report.Errors) > 0 {
				return fmt.Errorf("%d retention task(s) failed", len(report.Errors))
			}
			return nil
		},
	}
}

func newHardDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "hard-delete",
		Short: "Permanently delete accounts past their recovery deadline",
		RunE: func(cmd *cobra.Command, args []string) error {
			driver, err := ctx.retentionDriver(cmd.Context())
			if err != nil {
				return err
			}
			n, err := driver.HardDelete(cmd.Context())
			if err != nil {
				return err
			}
			if ctx.json() {
				return writeJSON(cmd, map[string]int{"deleted": n})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Hard deleted %d account(s)\n", n)
			return nil
		},
	}
}

func renderRetentionReport(r retention.Report) string {
	out := renderTable(
		[]string{"Task", "Deleted"},
		[][]string{
			{"hard delete accounts", strconv.Itoa(r.HardDeleted)},
			{"expire exports", strconv.Itoa(r.ExportsExpired)},
			{"delete read notifications", strconv.Itoa(r.NotificationsDeleted)},
		},
		[]columnAlignment{alignLeft, alignRight},
	)
	if len(r.Errors) > 0 {
		out += "\nErrors:\n  " + strings.Join(r.Errors, "\n  ")
	}
	return out
}
