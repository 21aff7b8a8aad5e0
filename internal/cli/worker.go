package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yashwanth22122002/QueueCTL/internal/supervisor"
	"github.com/yashwanth22122002/QueueCTL/internal/worker"
)

func newWorkerCmd(a *app) *cobra.Command {
	workerCmd := &cobra.Command{
		Use:   "worker",
		Short: "Run and manage worker processes",
	}
	workerCmd.AddCommand(newWorkerRunCmd(a))
	workerCmd.AddCommand(newWorkerStartCmd(a))
	workerCmd.AddCommand(newWorkerStopCmd(a))
	return workerCmd
}

func newWorkerRunCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a single worker in the foreground",
		Long: `Run a single worker in the foreground.

The worker claims due jobs one at a time and executes them under /bin/sh.
SIGINT or SIGTERM starts a graceful drain: the job in flight finishes and
is settled before the process exits.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			reg, err := a.openRegistry()
			if err != nil {
				return err
			}

			if addr, _ := cmd.Flags().GetString("metrics-addr"); addr != "" {
				worker.StartMetricsServer(addr)
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigCh)
			go func() {
				sig := <-sigCh
				slog.Info("Received shutdown signal, draining", "signal", sig.String())
				cancel()
			}()

			w := worker.New(s, worker.WithRegistry(reg))
			slog.Info("Worker started", "worker_id", w.ID(), "pid", os.Getpid())
			return w.Run(ctx)
		},
	}
	cmd.Flags().String("metrics-addr", "", "address to expose Prometheus metrics on (empty disables)")
	return cmd
}

func newWorkerStartCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Spawn detached worker processes",
		Long: `Spawn detached worker processes.

Each worker is a separate OS process running "queuectl worker run" against
the same database, registered in the PID directory so that "worker stop"
can find it. The command returns immediately; the workers keep running
after the terminal closes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			count, _ := cmd.Flags().GetInt("count")

			reg, err := a.openRegistry()
			if err != nil {
				return err
			}

			// Children inherit the database and registry settings
			// explicitly, so they agree with this invocation even when
			// the environment differs.
			childArgs := []string{"worker", "run", "--db", a.dsn(), "--pid-dir", reg.Dir()}
			sup, err := supervisor.New(reg, childArgs)
			if err != nil {
				return err
			}

			pids, err := sup.StartWorkers(count)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Started %d worker(s) with PIDs: %v\n", len(pids), pids)
			return nil
		},
	}
	cmd.Flags().Int("count", 1, "number of workers to start")
	return cmd
}

func newWorkerStopCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Signal all registered workers to shut down gracefully",
		Long: `Signal all registered workers to shut down gracefully.

Each worker receives SIGTERM, finishes the job it is executing, settles
it, and exits. The command does not wait for the workers; stale registry
entries from crashed workers are cleaned up along the way.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := a.openRegistry()
			if err != nil {
				return err
			}
			sup, err := supervisor.New(reg, nil)
			if err != nil {
				return err
			}

			stopped, err := sup.StopWorkers()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(stopped) == 0 {
				fmt.Fprintln(out, "No active workers found.")
				return nil
			}
			for _, pid := range stopped {
				fmt.Fprintf(out, "Sent stop signal to worker %d.\n", pid)
			}
			return nil
		},
	}
}
