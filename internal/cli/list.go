package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/yashwanth22122002/QueueCTL/internal/models"
	"github.com/yashwanth22122002/QueueCTL/internal/store"
)

func newListCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs, optionally filtered by state",
		RunE: func(cmd *cobra.Command, args []string) error {
			stateArg, _ := cmd.Flags().GetString("state")

			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			out := cmd.OutOrStdout()
			var jobs []models.Job
			if stateArg != "" {
				state, err := models.ParseJobState(stateArg)
				if err != nil {
					return fmt.Errorf("%w (valid states: %v)", err, models.AllJobStates)
				}
				jobs, err = s.ListJobsByState(state)
				if err != nil {
					return fmt.Errorf("failed to list jobs: %w", err)
				}
				fmt.Fprintf(out, "--- Jobs in '%s' state ---\n", state)
			} else {
				jobs, err = listAllStates(s)
				if err != nil {
					return fmt.Errorf("failed to list jobs: %w", err)
				}
				fmt.Fprintln(out, "--- All Jobs ---")
			}

			if len(jobs) == 0 {
				fmt.Fprintln(out, "No jobs found.")
				return nil
			}
			printJobRows(out, jobs)
			return nil
		},
	}
	cmd.Flags().String("state", "", "filter by state (pending, processing, completed, dead)")
	return cmd
}

// listAllStates concatenates the per-state listings in lifecycle order.
func listAllStates(s store.Store) ([]models.Job, error) {
	var jobs []models.Job
	for _, state := range models.AllJobStates {
		batch, err := s.ListJobsByState(state)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, batch...)
	}
	return jobs, nil
}

func printJobRows(out io.Writer, jobs []models.Job) {
	for _, job := range jobs {
		fmt.Fprintf(out, "ID: %s | State: %s | Attempts: %d | Command: %s\n",
			job.ID, job.State, job.Attempts, job.Command)
	}
}
