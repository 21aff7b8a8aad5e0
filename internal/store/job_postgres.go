package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/yashwanth22122002/QueueCTL/internal/models"
)

func (s *PostgresStore) CreateJob(id, command string) (*models.Job, error) {
	now := models.UTCNow()
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin create transaction: %w", err)
	}
	defer tx.Rollback()

	var raw string
	maxRetries := models.DefaultMaxRetries
	if err := tx.QueryRow(`SELECT value FROM config WHERE key = $1`, models.ConfigKeyMaxRetries).Scan(&raw); err == nil {
		if n, convErr := strconv.Atoi(raw); convErr == nil {
			maxRetries = n
		}
	}

	_, err = tx.Exec(
		`INSERT INTO jobs (id, command, state, attempts, max_retries, run_at, enqueued_at, updated_at)
		 VALUES ($1, $2, 'pending', 0, $3, $4, $5, $6)`,
		id, command, maxRetries, now, now, now,
	)
	if err != nil {
		if isPqDuplicateKey(err) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, id)
		}
		return nil, fmt.Errorf("insert job failed: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit create failed: %w", err)
	}

	slog.Debug("PostgresStore.CreateJob", "id", id, "max_retries", maxRetries)
	return &models.Job{
		ID:         id,
		Command:    command,
		State:      models.JobStatePending,
		MaxRetries: maxRetries,
		RunAt:      now,
		EnqueuedAt: now,
		UpdatedAt:  now,
	}, nil
}

// ClaimNextJob locks and flips the oldest due pending row in one statement.
// SKIP LOCKED lets concurrent claimers pass over a row another transaction
// already holds instead of blocking on it.
func (s *PostgresStore) ClaimNextJob(now time.Time) (*models.Job, error) {
	row := s.db.QueryRow(
		`UPDATE jobs SET state = 'processing', updated_at = $1
		 WHERE id IN (
		   SELECT id FROM jobs WHERE state = 'pending' AND run_at <= $1
		   ORDER BY run_at ASC, enqueued_at ASC, id ASC LIMIT 1
		   FOR UPDATE SKIP LOCKED
		 )
		 RETURNING `+jobColumns,
		now,
	)
	j, err := scanJobRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore.ClaimNextJob failed", "error", err)
		return nil, fmt.Errorf("claim next job failed: %w", err)
	}
	slog.Debug("PostgresStore.ClaimNextJob claimed", "id", j.ID, "attempts", j.Attempts)
	return &j, nil
}

// settle applies a guarded processing-to-next-state update and records the
// execution in the same transaction. A zero-row update means the job was
// not processing.
func (s *PostgresStore) settle(exec models.Execution, outcome string, update func(tx *sql.Tx) (sql.Result, error)) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin settle transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := update(tx)
	if err != nil {
		return fmt.Errorf("settle update failed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("settle rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotProcessing, exec.JobID)
	}

	execID := exec.ID
	if execID == "" {
		execID = uuid.NewString()
	}
	if _, err := tx.Exec(
		`INSERT INTO executions (id, job_id, worker_id, attempt, started_at, finished_at, exit_code, outcome)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		execID, exec.JobID, exec.WorkerID, exec.Attempt,
		exec.StartedAt, exec.FinishedAt, exec.ExitCode, outcome,
	); err != nil {
		return fmt.Errorf("insert execution failed: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit settle failed: %w", err)
	}
	return nil
}

func (s *PostgresStore) MarkCompleted(exec models.Execution) error {
	err := s.settle(exec, models.OutcomeCompleted, func(tx *sql.Tx) (sql.Result, error) {
		return tx.Exec(
			`UPDATE jobs SET state = 'completed', attempts = $1, exit_code = $2, last_error = NULL, updated_at = $3
			 WHERE id = $4 AND state = 'processing'`,
			exec.Attempt, exec.ExitCode, exec.FinishedAt, exec.JobID,
		)
	})
	if err != nil {
		return err
	}
	slog.Debug("PostgresStore.MarkCompleted", "id", exec.JobID, "attempt", exec.Attempt)
	return nil
}

func (s *PostgresStore) ScheduleRetry(exec models.Execution, lastError string, runAt time.Time) error {
	err := s.settle(exec, models.OutcomeRetried, func(tx *sql.Tx) (sql.Result, error) {
		return tx.Exec(
			`UPDATE jobs SET state = 'pending', attempts = $1, run_at = $2, last_error = $3, exit_code = $4, updated_at = $5
			 WHERE id = $6 AND state = 'processing'`,
			exec.Attempt, runAt, nilIfEmpty(lastError), exec.ExitCode, exec.FinishedAt, exec.JobID,
		)
	})
	if err != nil {
		return err
	}
	slog.Debug("PostgresStore.ScheduleRetry", "id", exec.JobID, "attempt", exec.Attempt, "run_at", runAt)
	return nil
}

func (s *PostgresStore) MarkDead(exec models.Execution, lastError string) error {
	err := s.settle(exec, models.OutcomeDead, func(tx *sql.Tx) (sql.Result, error) {
		return tx.Exec(
			`UPDATE jobs SET state = 'dead', attempts = $1, last_error = $2, exit_code = $3, updated_at = $4
			 WHERE id = $5 AND state = 'processing'`,
			exec.Attempt, nilIfEmpty(lastError), exec.ExitCode, exec.FinishedAt, exec.JobID,
		)
	})
	if err != nil {
		return err
	}
	slog.Debug("PostgresStore.MarkDead", "id", exec.JobID, "attempt", exec.Attempt)
	return nil
}

func (s *PostgresStore) RequeueDead(id string) error {
	now := models.UTCNow()
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin requeue transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`UPDATE jobs SET state = 'pending', attempts = 0, run_at = $1, last_error = NULL, exit_code = NULL, updated_at = $2
		 WHERE id = $3 AND state = 'dead'`,
		now, now, id,
	)
	if err != nil {
		return fmt.Errorf("requeue dead update failed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("requeue dead rows affected: %w", err)
	}
	if n == 0 {
		var state string
		err := tx.QueryRow(`SELECT state FROM jobs WHERE id = $1`, id).Scan(&state)
		if err == sql.ErrNoRows {
			return fmt.Errorf("%w: %s", ErrJobNotFound, id)
		}
		if err != nil {
			return fmt.Errorf("requeue dead lookup failed: %w", err)
		}
		return fmt.Errorf("%w: %s is %s", ErrNotDead, id, state)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit requeue failed: %w", err)
	}
	slog.Debug("PostgresStore.RequeueDead", "id", id)
	return nil
}

func (s *PostgresStore) GetJob(id string) (*models.Job, error) {
	row := s.db.QueryRow(`SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)
	j, err := scanJobRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job failed: %w", err)
	}
	return &j, nil
}

func (s *PostgresStore) ListJobsByState(state models.JobState) ([]models.Job, error) {
	rows, err := s.db.Query(
		`SELECT `+jobColumns+` FROM jobs WHERE state = $1 ORDER BY enqueued_at ASC, id ASC`, state)
	if err != nil {
		return nil, fmt.Errorf("list jobs query failed: %w", err)
	}
	defer rows.Close()

	var jobs []models.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list jobs iteration failed: %w", err)
	}
	return jobs, nil
}

func (s *PostgresStore) ListExecutions(jobID string) ([]models.Execution, error) {
	rows, err := s.db.Query(
		`SELECT `+executionColumns+` FROM executions WHERE job_id = $1 ORDER BY started_at ASC, attempt ASC`, jobID)
	if err != nil {
		return nil, fmt.Errorf("list executions query failed: %w", err)
	}
	defer rows.Close()

	var execs []models.Execution
	for rows.Next() {
		e, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		execs = append(execs, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list executions iteration failed: %w", err)
	}
	return execs, nil
}

func (s *PostgresStore) Summary() (models.Summary, error) {
	var sum models.Summary
	rows, err := s.db.Query(`SELECT state, COUNT(*) FROM jobs GROUP BY state`)
	if err != nil {
		return sum, fmt.Errorf("summary query failed: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var state models.JobState
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return sum, fmt.Errorf("scan summary row failed: %w", err)
		}
		switch state {
		case models.JobStatePending:
			sum.Pending = count
		case models.JobStateProcessing:
			sum.Processing = count
		case models.JobStateCompleted:
			sum.Completed = count
		case models.JobStateDead:
			sum.Dead = count
		}
	}
	if err := rows.Err(); err != nil {
		return sum, fmt.Errorf("summary iteration failed: %w", err)
	}
	return sum, nil
}

func (s *PostgresStore) RequeueStaleProcessing(before time.Time) (int, error) {
	now := models.UTCNow()
	result, err := s.db.Exec(
		`UPDATE jobs SET state = 'pending', updated_at = $1 WHERE state = 'processing' AND updated_at < $2`,
		now, before,
	)
	if err != nil {
		return 0, fmt.Errorf("requeue stale jobs failed: %w", err)
	}
	n, _ := result.RowsAffected()
	if n > 0 {
		slog.Info("PostgresStore.RequeueStaleProcessing", "requeued", n)
	}
	return int(n), nil
}
