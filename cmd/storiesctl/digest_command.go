package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/1001stories/stories-api/internal/digest"
)

func newDigestCommand(ctx *commandContext) *cobra.Command {
	digestCmd := &cobra.Command{
		Use:   "digest",
		Short: "Notification digest emails",
	}
	digestCmd.AddCommand(newDigestRunCommand(ctx))
	return digestCmd
}

func newDigestRunCommand(ctx *commandContext) *cobra.Command {
	var at string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Evaluate and send the daily and weekly digests",
		Long: "Evaluate the daily and weekly digests as of --at (default now). " +
			"A period that was already sent is reported as duplicate.",
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now().UTC()
			if at != "" {
				t, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("invalid --at: %w", err)
				}
				now = t.UTC()
			}

			driver, err := ctx.digestDriver(cmd.Context())
			if err != nil {
				return err
			}
			summary := driver.Evaluate(cmd.Context(), now)

			if ctx.json() {
				return writeJSON(cmd, summary)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderDigestSummary(summary))
			return nil
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "Evaluation time in RFC 3339 format")
	return cmd
}

func renderDigestSummary(s digest.Summary) string {
	row := func(name string, r digest.Result) []string {
		return []string{name, string(r.Status), r.Period, strconv.Itoa(r.Sent), strconv.Itoa(r.Failed), r.Error}
	}
	return renderTable(
		[]string{"Digest", "Status", "Period", "Sent", "Failed", "Error"},
		[][]string{row("daily", s.Daily), row("weekly", s.Weekly)},
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
	)
}
