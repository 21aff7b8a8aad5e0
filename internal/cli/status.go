package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show job counts per state and the live worker count",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			summary, err := s.Summary()
			if err != nil {
				return fmt.Errorf("failed to read queue summary: %w", err)
			}

			reg, err := a.openRegistry()
			if err != nil {
				return err
			}
			entries, err := reg.Entries()
			if err != nil {
				return fmt.Errorf("failed to read worker registry: %w", err)
			}
			active := 0
			for _, e := range entries {
				if e.Alive {
					active++
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "--- Job Status Summary ---")
			fmt.Fprintf(out, "Pending:    %d\n", summary.Pending)
			fmt.Fprintf(out, "Processing: %d\n", summary.Processing)
			fmt.Fprintf(out, "Completed:  %d\n", summary.Completed)
			fmt.Fprintf(out, "Dead (DLQ): %d\n", summary.Dead)
			fmt.Fprintln(out)
			fmt.Fprintln(out, "--- Worker Status ---")
			fmt.Fprintf(out, "Active Workers: %d\n", active)
			return nil
		},
	}
}
