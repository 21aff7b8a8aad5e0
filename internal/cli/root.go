// Package cli wires the queuectl command tree.
//
// Commands open the store lazily inside their run functions so the
// persistent --db and --pid-dir flags are honored wherever they appear on
// the command line. Every command is short-lived: open, act, close, exit.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/yashwanth22122002/QueueCTL/internal/registry"
	"github.com/yashwanth22122002/QueueCTL/internal/store"
)

// DefaultDBFileName is the SQLite database used when no DSN is configured,
// created in the current working directory.
const DefaultDBFileName = "queue.db"

// Config holds the environment-derived defaults for the persistent flags.
type Config struct {
	// DBDSN selects the queue database: a SQLite file path or a
	// PostgreSQL URL.
	DBDSN string
	// PIDDir overrides the worker PID registry directory. Empty selects
	// the per-user default under the system temp directory.
	PIDDir string
}

// app carries the resolved flag values shared by every command.
type app struct {
	cfg Config
}

// NewRootCmd builds the queuectl command tree with cfg as the flag defaults.
func NewRootCmd(cfg Config) *cobra.Command {
	a := &app{cfg: cfg}

	rootCmd := &cobra.Command{
		Use:   "queuectl",
		Short: "A CLI-based persistent background job queue",
		Long: `queuectl runs opaque shell commands as background jobs.

Jobs live in an embedded database shared by every process, so enqueueing,
inspecting, and working the queue are separate invocations that may run on
different terminals. Failed jobs retry with exponential backoff until they
exhaust their budget and land in the dead letter queue.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&a.cfg.DBDSN, "db", cfg.DBDSN,
		"database DSN: SQLite file path or PostgreSQL URL (overrides $QUEUECTL_DB_DSN)")
	rootCmd.PersistentFlags().StringVar(&a.cfg.PIDDir, "pid-dir", cfg.PIDDir,
		"worker PID registry directory (overrides $QUEUECTL_PID_DIR)")

	rootCmd.AddCommand(
		newEnqueueCmd(a),
		newStatusCmd(a),
		newListCmd(a),
		newInspectCmd(a),
		newConfigCmd(a),
		newWorkerCmd(a),
		newDLQCmd(a),
		newAdminCmd(a),
	)
	return rootCmd
}

// dsn returns the configured database DSN, defaulting to a SQLite file in
// the current working directory.
func (a *app) dsn() string {
	if a.cfg.DBDSN != "" {
		return a.cfg.DBDSN
	}
	return DefaultDBFileName
}

// openStore connects to the configured queue database.
func (a *app) openStore() (store.Store, error) {
	dsn := a.dsn()
	if store.DetectDSNType(dsn) == "postgres" {
		return store.NewStore(store.WithPostgresDSN(dsn))
	}
	return store.NewStore(store.WithSQLiteDSN(dsn))
}

// openRegistry opens the worker PID registry.
func (a *app) openRegistry() (*registry.Registry, error) {
	return registry.New(a.cfg.PIDDir)
}
