package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yashwanth22122002/QueueCTL/internal/models"
	"github.com/yashwanth22122002/QueueCTL/internal/store"
)

func newEnqueueCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "enqueue <job-json>",
		Short: "Add a job to the queue",
		Long: `Add a job to the queue.

The argument is a JSON object with exactly two fields, both strings:

  queuectl enqueue '{"id": "report-42", "command": "make report"}'

The id must be unique across the lifetime of the queue. Unknown fields
are rejected.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := models.ParseEnqueueRequest([]byte(args[0]))
			if err != nil {
				return err
			}

			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			job, err := s.CreateJob(req.ID, req.Command)
			if err != nil {
				if errors.Is(err, store.ErrDuplicateID) {
					return fmt.Errorf("job %q already exists", req.ID)
				}
				return fmt.Errorf("failed to enqueue job: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Job %s enqueued.\n", job.ID)
			return nil
		},
	}
}
