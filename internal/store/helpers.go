package store

import (
	"database/sql"
	"fmt"

	"github.com/yashwanth22122002/QueueCTL/internal/models"
)

// jobColumns is the canonical column order used by every job SELECT.
const jobColumns = `id, command, state, attempts, max_retries, run_at, enqueued_at, updated_at, last_error, exit_code`

// executionColumns is the canonical column order used by every execution SELECT.
const executionColumns = `id, job_id, worker_id, attempt, started_at, finished_at, exit_code, outcome`

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// scanJob scans a job from sql.Rows in jobColumns order.
func scanJob(rows *sql.Rows) (models.Job, error) {
	var j models.Job
	var lastError sql.NullString
	var exitCode sql.NullInt64
	err := rows.Scan(
		&j.ID, &j.Command, &j.State, &j.Attempts, &j.MaxRetries,
		&j.RunAt, &j.EnqueuedAt, &j.UpdatedAt, &lastError, &exitCode,
	)
	if err != nil {
		return j, fmt.Errorf("scan job failed: %w", err)
	}
	j.LastError = lastError.String
	if exitCode.Valid {
		code := int(exitCode.Int64)
		j.ExitCode = &code
	}
	return j, nil
}

// scanJobRow scans a job from a single sql.Row. The error is returned
// unwrapped so callers can test for sql.ErrNoRows.
func scanJobRow(row *sql.Row) (models.Job, error) {
	var j models.Job
	var lastError sql.NullString
	var exitCode sql.NullInt64
	err := row.Scan(
		&j.ID, &j.Command, &j.State, &j.Attempts, &j.MaxRetries,
		&j.RunAt, &j.EnqueuedAt, &j.UpdatedAt, &lastError, &exitCode,
	)
	if err != nil {
		return j, err
	}
	j.LastError = lastError.String
	if exitCode.Valid {
		code := int(exitCode.Int64)
		j.ExitCode = &code
	}
	return j, nil
}

// scanExecution scans an execution from sql.Rows in executionColumns order.
func scanExecution(rows *sql.Rows) (models.Execution, error) {
	var e models.Execution
	err := rows.Scan(
		&e.ID, &e.JobID, &e.WorkerID, &e.Attempt,
		&e.StartedAt, &e.FinishedAt, &e.ExitCode, &e.Outcome,
	)
	if err != nil {
		return e, fmt.Errorf("scan execution failed: %w", err)
	}
	return e, nil
}

// configDefault returns the built-in default for a recognized config key.
func configDefault(key string) (string, bool) {
	switch key {
	case models.ConfigKeyMaxRetries:
		return fmt.Sprintf("%d", models.DefaultMaxRetries), true
	case models.ConfigKeyBackoffBase:
		return fmt.Sprintf("%d", models.DefaultBackoffBase), true
	default:
		return "", false
	}
}
