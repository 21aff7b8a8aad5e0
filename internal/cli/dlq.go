package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/yashwanth22122002/QueueCTL/internal/models"
)

func newDLQCmd(a *app) *cobra.Command {
	dlqCmd := &cobra.Command{
		Use:   "dlq",
		Short: "Manage the dead letter queue",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs that exhausted their retries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			jobs, err := s.ListJobsByState(models.JobStateDead)
			if err != nil {
				return fmt.Errorf("failed to list dead jobs: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(jobs) == 0 {
				fmt.Fprintln(out, "DLQ is empty.")
				return nil
			}

			fmt.Fprintln(out, "--- Dead Letter Queue ---")
			for _, job := range jobs {
				exit := "-"
				if job.ExitCode != nil {
					exit = strconv.Itoa(*job.ExitCode)
				}
				fmt.Fprintf(out, "ID: %s | Attempts: %d | Exit: %s | Command: %s\n",
					job.ID, job.Attempts, exit, job.Command)
			}
			return nil
		},
	}

	retryCmd := &cobra.Command{
		Use:   "retry <id>",
		Short: "Move a dead job back to pending for a fresh round of attempts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.RequeueDead(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Job %s has been re-queued from DLQ.\n", args[0])
			return nil
		},
	}

	dlqCmd.AddCommand(listCmd)
	dlqCmd.AddCommand(retryCmd)
	return dlqCmd
}
