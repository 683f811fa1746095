package main

import (
	"fmt"
	"io"
	"slices"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/1001stories/stories-api/internal/task"
)

var jobStates = []task.State{task.StateWaiting, task.StateActive, task.StateCompleted, task.StateFailed}

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect background jobs",
	}
	jobsCmd.AddCommand(newJobsStatsCommand(ctx))
	jobsCmd.AddCommand(newJobsShowCommand(ctx))
	return jobsCmd
}

func newJobsStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show job counts by type and state",
		RunE: func(cmd *cobra.Command, args []string) error {
			queue, err := ctx.jobQueue(cmd.Context())
			if err != nil {
				return err
			}
			stats, err := queue.Stats(cmd.Context())
			if err != nil {
				return err
			}
			if ctx.json() {
				return writeJSON(cmd, stats)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderJobStats(stats))
			return nil
		},
	}
}

func newJobsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show one job's status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid job id %q", args[0])
			}
			queue, err := ctx.jobQueue(cmd.Context())
			if err != nil {
				return err
			}
			status, err := queue.GetStatus(cmd.Context(), id)
			if err != nil {
				return err
			}
			if ctx.json() {
				return writeJSON(cmd, status)
			}
			printJobStatus(cmd.OutOrStdout(), status)
			return nil
		},
	}
}

func renderJobStats(stats map[string]map[task.State]int) string {
	types := make([]string, 0, len(stats))
	for typ := range stats {
		types = append(types, typ)
	}
	slices.Sort(types)

	headers := []string{"Type"}
	aligns := []columnAlignment{alignLeft}
	for _, s := range jobStates {
		headers = append(headers, string(s))
		aligns = append(aligns, alignRight)
	}

	rows := make([][]string, 0, len(types))
	for _, typ := range types {
		row := []string{typ}
		for _, s := range jobStates {
			row = append(row, strconv.Itoa(stats[typ][s]))
		}
		rows = append(rows, row)
	}
	return renderTable(headers, rows, aligns)
}

func printJobStatus(out io.Writer, s task.Status) {
	fmt.Fprintf(out, "ID:       %s\n", s.ID)
	fmt.Fprintf(out, "Type:     %s\n", s.Type)
	fmt.Fprintf(out, "State:    %s\n", s.State)
	fmt.Fprintf(out, "Progress: %d%%\n", s.Progress)
	fmt.Fprintf(out, "Attempts: %d\n", s.Attempts)
	fmt.Fprintf(out, "Created:  %s\n", s.CreatedAt.Format("2006-01-02 15:04:05"))
	if s.FinishedAt != nil {
		fmt.Fprintf(out, "Finished: %s\n", s.FinishedAt.Format("2006-01-02 15:04:05"))
	}
	if s.FailureReason != "" {
		fmt.Fprintf(out, "Failure:  %s\n", s.FailureReason)
	}
	if len(s.Result) > 0 {
		fmt.Fprintf(out, "Result:   %s\n", s.Result)
	}
}
