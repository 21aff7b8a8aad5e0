// Package store provides the persistence layer for QueueCTL.
//
// It defines the Store interface and two backends: SQLite (the default; a
// single embedded database file is the only coordination point between the
// CLI and every worker process) and PostgreSQL for shared deployments. The
// backend is selected by DSN detection.
package store

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yashwanth22122002/QueueCTL/internal/models"
)

// Store errors surfaced to callers.
var (
	// ErrDuplicateID is returned by CreateJob when a job with the same id
	// already exists.
	ErrDuplicateID = errors.New("job id already exists")
	// ErrJobNotFound is returned when the referenced job does not exist.
	ErrJobNotFound = errors.New("job not found")
	// ErrNotProcessing is returned by settlement operations when the job is
	// no longer in the processing state, for example after an operator
	// requeued it while the worker was still running the command.
	ErrNotProcessing = errors.New("job is not processing")
	// ErrNotDead is returned by RequeueDead when the job exists but is not
	// in the dead letter queue.
	ErrNotDead = errors.New("job is not in the dead letter queue")
)

// Store defines persistence for jobs, execution audit records, and queue
// configuration. Implementations are safe for concurrent use from multiple
// processes; every mutation runs as a single atomic transaction.
type Store interface {
	// CreateJob inserts a new pending job with the given id and command.
	// The job's retry budget is snapshotted from the max_retries config key
	// in the same transaction. Returns ErrDuplicateID if the id is taken.
	CreateJob(id, command string) (*models.Job, error)

	// ClaimNextJob atomically moves the oldest due pending job (run_at <=
	// now, ordered by run_at, enqueued_at, id) to processing and returns
	// it. At most one caller receives a given job. Returns (nil, nil) when
	// no job is due.
	ClaimNextJob(now time.Time) (*models.Job, error)

	// MarkCompleted settles a processing job as completed and records the
	// execution. Returns ErrNotProcessing if the job is not processing.
	MarkCompleted(exec models.Execution) error

	// ScheduleRetry settles a failed execution: the job returns to pending
	// with run_at set to the retry time and attempts set to exec.Attempt,
	// and the execution is recorded. Returns ErrNotProcessing if the job
	// is not processing.
	ScheduleRetry(exec models.Execution, lastError string, runAt time.Time) error

	// MarkDead settles a failed execution whose retry budget is exhausted:
	// the job moves to the dead letter queue and the execution is recorded.
	// Returns ErrNotProcessing if the job is not processing.
	MarkDead(exec models.Execution, lastError string) error

	// RequeueDead moves a dead job back to pending with attempts reset to
	// zero and run_at set to now, giving it a fresh retry budget. Returns
	// ErrJobNotFound or ErrNotDead when the job is missing or not dead.
	RequeueDead(id string) error

	// GetJob retrieves a single job by id. Returns (nil, nil) when the job
	// does not exist.
	GetJob(id string) (*models.Job, error)

	// ListJobsByState returns all jobs in the given state ordered by
	// enqueued_at, then id.
	ListJobsByState(state models.JobState) ([]models.Job, error)

	// ListExecutions returns the recorded execution attempts for a job
	// ordered by started_at, then attempt.
	ListExecutions(jobID string) ([]models.Execution, error)

	// Summary returns per-state job counts.
	Summary() (models.Summary, error)

	// RequeueStaleProcessing resets processing jobs that have not been
	// touched since before the given time back to pending and reports how
	// many rows changed. Operator-driven crash recovery; never invoked
	// automatically.
	RequeueStaleProcessing(before time.Time) (int, error)

	// GetConfig returns the value for a recognized config key, falling
	// back to the built-in default when the row is missing.
	GetConfig(key string) (string, error)

	// SetConfig validates and upserts a config key.
	SetConfig(key, value string) error

	// Close closes the underlying database connection.
	Close() error
}

// Opts holds store configuration options.
type Opts struct {
	PostgresDSN string
	SQLiteDSN   string
}

// Option defines a configuration option for store construction.
type Option func(*Opts)

// WithPostgresDSN selects the PostgreSQL backend with the given DSN.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.PostgresDSN = dsn }
}

// WithSQLiteDSN selects the SQLite backend with the given database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.SQLiteDSN = dsn }
}

// DetectDSNType reports which backend a DSN refers to: "postgres" for
// postgres:// and postgresql:// URLs or key=value connection strings
// containing host=, "sqlite" for anything else (treated as a database file
// path).
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}

// NewStore creates a store backend based on the provided options. Exactly
// one DSN option must be set.
func NewStore(opts ...Option) (Store, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	switch {
	case cfg.PostgresDSN != "":
		return NewPostgresStore(opts...)
	case cfg.SQLiteDSN != "":
		return NewSQLiteStore(opts...)
	default:
		return nil, fmt.Errorf("database DSN not set")
	}
}
