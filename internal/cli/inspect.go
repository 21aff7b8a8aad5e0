package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newInspectCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <id>",
		Short: "Show one job in full, including its execution history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			job, err := s.GetJob(args[0])
			if err != nil {
				return fmt.Errorf("failed to load job: %w", err)
			}
			if job == nil {
				return fmt.Errorf("job %q not found", args[0])
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ID:          %s\n", job.ID)
			fmt.Fprintf(out, "Command:     %s\n", job.Command)
			fmt.Fprintf(out, "State:       %s\n", job.State)
			fmt.Fprintf(out, "Attempts:    %d (max retries %d)\n", job.Attempts, job.MaxRetries)
			fmt.Fprintf(out, "Run at:      %s\n", job.RunAt.Format(time.RFC3339))
			fmt.Fprintf(out, "Enqueued at: %s\n", job.EnqueuedAt.Format(time.RFC3339))
			fmt.Fprintf(out, "Updated at:  %s\n", job.UpdatedAt.Format(time.RFC3339))
			if job.ExitCode != nil {
				fmt.Fprintf(out, "Exit code:   %d\n", *job.ExitCode)
			}
			if job.LastError != "" {
				fmt.Fprintf(out, "Last error:  %s\n", job.LastError)
			}

			execs, err := s.ListExecutions(job.ID)
			if err != nil {
				return fmt.Errorf("failed to load execution history: %w", err)
			}
			if len(execs) == 0 {
				return nil
			}

			fmt.Fprintln(out)
			fmt.Fprintln(out, "--- Executions ---")
			fmt.Fprintf(out, "%-8s %-20s %-20s %-20s %-5s %s\n",
				"ATTEMPT", "WORKER", "STARTED", "FINISHED", "EXIT", "OUTCOME")
			for _, e := range execs {
				fmt.Fprintf(out, "%-8d %-20s %-20s %-20s %-5d %s\n",
					e.Attempt, e.WorkerID,
					e.StartedAt.Format(time.RFC3339), e.FinishedAt.Format(time.RFC3339),
					e.ExitCode, e.Outcome)
			}
			return nil
		},
	}
}
