package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/yashwanth22122002/QueueCTL/internal/models"
)

func newAdminCmd(a *app) *cobra.Command {
	adminCmd := &cobra.Command{
		Use:   "admin",
		Short: "Operator maintenance commands",
	}
	adminCmd.AddCommand(newRequeueStaleCmd(a))
	return adminCmd
}

func newRequeueStaleCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "requeue-stale",
		Short: "Reset processing jobs abandoned by crashed workers back to pending",
		Long: `Reset processing jobs abandoned by crashed workers back to pending.

A worker killed mid-execution leaves its job in the processing state
forever. This command requeues every processing job whose last update is
older than --older-than. Run it only when no worker could still be
executing those jobs, otherwise a finished job may be run twice.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			olderThan, _ := cmd.Flags().GetDuration("older-than")
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive, got %v", olderThan)
			}

			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			n, err := s.RequeueStaleProcessing(models.UTCNow().Add(-olderThan))
			if err != nil {
				return fmt.Errorf("failed to requeue stale jobs: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Requeued %d stale processing job(s).\n", n)
			return nil
		},
	}
	cmd.Flags().Duration("older-than", 10*time.Minute, "treat processing jobs untouched for this long as abandoned")
	return cmd
}
