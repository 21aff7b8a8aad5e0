package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/yashwanth22122002/QueueCTL/internal/models"
)

func (s *SQLiteStore) CreateJob(id, command string) (*models.Job, error) {
	now := models.UTCNow()
	var job *models.Job
	err := withBusyRetry(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin create transaction: %w", err)
		}
		defer tx.Rollback()

		// Snapshot the retry budget in the same transaction so a
		// concurrent config set cannot split it from the insert.
		maxRetries := configValueTx(tx, models.ConfigKeyMaxRetries, models.DefaultMaxRetries)

		_, err = tx.Exec(
			`INSERT INTO jobs (id, command, state, attempts, max_retries, run_at, enqueued_at, updated_at)
			 VALUES (?, ?, 'pending', 0, ?, ?, ?, ?)`,
			id, command, maxRetries, now, now, now,
		)
		if err != nil {
			if isDuplicateKey(err) {
				return fmt.Errorf("%w: %s", ErrDuplicateID, id)
			}
			return fmt.Errorf("insert job failed: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit create failed: %w", err)
		}
		job = &models.Job{
			ID:         id,
			Command:    command,
			State:      models.JobStatePending,
			MaxRetries: maxRetries,
			RunAt:      now,
			EnqueuedAt: now,
			UpdatedAt:  now,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slog.Debug("SQLiteStore.CreateJob", "id", id, "max_retries", job.MaxRetries)
	return job, nil
}

// ClaimNextJob is the dispatch primitive. The transaction opens with BEGIN
// IMMEDIATE (see sqliteDSNParams), so the pending-row lookup and the state
// flip commit as one unit; a concurrent claimer blocks on the busy timeout
// until this transaction finishes and then sees the row as processing.
func (s *SQLiteStore) ClaimNextJob(now time.Time) (*models.Job, error) {
	var claimed *models.Job
	err := withBusyRetry(func() error {
		claimed = nil
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin claim transaction: %w", err)
		}
		defer tx.Rollback()

		row := tx.QueryRow(
			`SELECT `+jobColumns+` FROM jobs
			 WHERE state = 'pending' AND run_at <= ?
			 ORDER BY run_at ASC, enqueued_at ASC, id ASC LIMIT 1`, now)
		j, err := scanJobRow(row)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return fmt.Errorf("select next pending job failed: %w", err)
		}

		if _, err := tx.Exec(
			`UPDATE jobs SET state = 'processing', updated_at = ? WHERE id = ?`,
			now, j.ID,
		); err != nil {
			return fmt.Errorf("mark job processing failed: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit claim failed: %w", err)
		}
		j.State = models.JobStateProcessing
		j.UpdatedAt = now
		claimed = &j
		return nil
	})
	if err != nil {
		slog.Error("SQLiteStore.ClaimNextJob failed", "error", err)
		return nil, err
	}
	if claimed != nil {
		slog.Debug("SQLiteStore.ClaimNextJob claimed", "id", claimed.ID, "attempts", claimed.Attempts)
	}
	return claimed, nil
}

// settle applies a guarded processing-to-next-state update and records the
// execution in the same transaction, so the job row and its audit trail can
// never disagree. A zero-row update means the job was not processing.
func (s *SQLiteStore) settle(exec models.Execution, outcome string, update func(tx *sql.Tx) (sql.Result, error)) error {
	return withBusyRetry(func() error {
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
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			execID, exec.JobID, exec.WorkerID, exec.Attempt,
			exec.StartedAt, exec.FinishedAt, exec.ExitCode, outcome,
		); err != nil {
			return fmt.Errorf("insert execution failed: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit settle failed: %w", err)
		}
		return nil
	})
}

func (s *SQLiteStore) MarkCompleted(exec models.Execution) error {
	err := s.settle(exec, models.OutcomeCompleted, func(tx *sql.Tx) (sql.Result, error) {
		return tx.Exec(
			`UPDATE jobs SET state = 'completed', attempts = ?, exit_code = ?, last_error = NULL, updated_at = ?
			 WHERE id = ? AND state = 'processing'`,
			exec.Attempt, exec.ExitCode, exec.FinishedAt, exec.JobID,
		)
	})
	if err != nil {
		return err
	}
	slog.Debug("SQLiteStore.MarkCompleted", "id", exec.JobID, "attempt", exec.Attempt)
	return nil
}

func (s *SQLiteStore) ScheduleRetry(exec models.Execution, lastError string, runAt time.Time) error {
	err := s.settle(exec, models.OutcomeRetried, func(tx *sql.Tx) (sql.Result, error) {
		return tx.Exec(
			`UPDATE jobs SET state = 'pending', attempts = ?, run_at = ?, last_error = ?, exit_code = ?, updated_at = ?
			 WHERE id = ? AND state = 'processing'`,
			exec.Attempt, runAt, nilIfEmpty(lastError), exec.ExitCode, exec.FinishedAt, exec.JobID,
		)
	})
	if err != nil {
		return err
	}
	slog.Debug("SQLiteStore.ScheduleRetry", "id", exec.JobID, "attempt", exec.Attempt, "run_at", runAt)
	return nil
}

func (s *SQLiteStore) MarkDead(exec models.Execution, lastError string) error {
	err := s.settle(exec, models.OutcomeDead, func(tx *sql.Tx) (sql.Result, error) {
		return tx.Exec(
			`UPDATE jobs SET state = 'dead', attempts = ?, last_error = ?, exit_code = ?, updated_at = ?
			 WHERE id = ? AND state = 'processing'`,
			exec.Attempt, nilIfEmpty(lastError), exec.ExitCode, exec.FinishedAt, exec.JobID,
		)
	})
	if err != nil {
		return err
	}
	slog.Debug("SQLiteStore.MarkDead", "id", exec.JobID, "attempt", exec.Attempt)
	return nil
}

func (s *SQLiteStore) RequeueDead(id string) error {
	now := models.UTCNow()
	err := withBusyRetry(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin requeue transaction: %w", err)
		}
		defer tx.Rollback()

		res, err := tx.Exec(
			`UPDATE jobs SET state = 'pending', attempts = 0, run_at = ?, last_error = NULL, exit_code = NULL, updated_at = ?
			 WHERE id = ? AND state = 'dead'`,
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
			err := tx.QueryRow(`SELECT state FROM jobs WHERE id = ?`, id).Scan(&state)
			if err == sql.ErrNoRows {
				return fmt.Errorf("%w: %s", ErrJobNotFound, id)
			}
			if err != nil {
				return fmt.Errorf("requeue dead lookup failed: %w", err)
			}
			return fmt.Errorf("%w: %s is %s", ErrNotDead, id, state)
		}
		return tx.Commit()
	})
	if err != nil {
		return err
	}
	slog.Debug("SQLiteStore.RequeueDead", "id", id)
	return nil
}

func (s *SQLiteStore) GetJob(id string) (*models.Job, error) {
	row := s.db.QueryRow(`SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	j, err := scanJobRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job failed: %w", err)
	}
	return &j, nil
}

func (s *SQLiteStore) ListJobsByState(state models.JobState) ([]models.Job, error) {
	rows, err := s.db.Query(
		`SELECT `+jobColumns+` FROM jobs WHERE state = ? ORDER BY enqueued_at ASC, id ASC`, state)
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

func (s *SQLiteStore) ListExecutions(jobID string) ([]models.Execution, error) {
	rows, err := s.db.Query(
		`SELECT `+executionColumns+` FROM executions WHERE job_id = ? ORDER BY started_at ASC, attempt ASC`, jobID)
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

func (s *SQLiteStore) Summary() (models.Summary, error) {
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

func (s *SQLiteStore) RequeueStaleProcessing(before time.Time) (int, error) {
	now := models.UTCNow()
	var n int64
	err := withBusyRetry(func() error {
		result, err := s.db.Exec(
			`UPDATE jobs SET state = 'pending', updated_at = ? WHERE state = 'processing' AND updated_at < ?`,
			now, before,
		)
		if err != nil {
			return fmt.Errorf("requeue stale jobs failed: %w", err)
		}
		n, _ = result.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, err
	}
	if n > 0 {
		slog.Info("SQLiteStore.RequeueStaleProcessing", "requeued", n)
	}
	return int(n), nil
}
