package store

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/yashwanth22122002/QueueCTL/internal/models"
)

// newTestSQLiteStore creates a store backed by a database file in a
// temporary directory that is removed when the test finishes.
func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dir, err := os.MkdirTemp("", "queuectl_store_test_")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	s, err := NewSQLiteStore(WithSQLiteDSN(filepath.Join(dir, "queue.db")))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// mustExec runs raw SQL against the test database, for backdating
// timestamps and similar adjustments the public API does not allow.
func mustExec(t *testing.T, s *SQLiteStore, query string, args ...interface{}) {
	t.Helper()
	if _, err := s.db.Exec(query, args...); err != nil {
		t.Fatalf("exec %q failed: %v", query, err)
	}
}

func TestCreateJobDefaults(t *testing.T) {
	s := newTestSQLiteStore(t)

	job, err := s.CreateJob("job1", "echo hello")
	if err != nil {
		t.Fatalf("CreateJob failed: %v", err)
	}
	if job.State != models.JobStatePending {
		t.Errorf("state = %q, want pending", job.State)
	}
	if job.Attempts != 0 {
		t.Errorf("attempts = %d, want 0", job.Attempts)
	}
	if job.MaxRetries != models.DefaultMaxRetries {
		t.Errorf("max_retries = %d, want %d", job.MaxRetries, models.DefaultMaxRetries)
	}
	if !job.RunAt.Equal(job.EnqueuedAt) {
		t.Errorf("run_at %v != enqueued_at %v", job.RunAt, job.EnqueuedAt)
	}

	got, err := s.GetJob("job1")
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if got == nil {
		t.Fatal("GetJob returned nil for existing job")
	}
	if got.ID != "job1" || got.Command != "echo hello" || got.State != models.JobStatePending {
		t.Errorf("GetJob = %+v, want job1/echo hello/pending", got)
	}
	if got.ExitCode != nil {
		t.Errorf("exit_code = %v, want nil", *got.ExitCode)
	}
}

func TestCreateJobDuplicateID(t *testing.T) {
	s := newTestSQLiteStore(t)

	if _, err := s.CreateJob("job1", "true"); err != nil {
		t.Fatalf("CreateJob failed: %v", err)
	}
	_, err := s.CreateJob("job1", "false")
	if !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("duplicate CreateJob error = %v, want ErrDuplicateID", err)
	}

	// The original row must be untouched.
	got, err := s.GetJob("job1")
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if got.Command != "true" {
		t.Errorf("command = %q, want original %q", got.Command, "true")
	}
}

func TestCreateJobSnapshotsMaxRetries(t *testing.T) {
	s := newTestSQLiteStore(t)

	if err := s.SetConfig(models.ConfigKeyMaxRetries, "7"); err != nil {
		t.Fatalf("SetConfig failed: %v", err)
	}
	first, err := s.CreateJob("job1", "true")
	if err != nil {
		t.Fatalf("CreateJob failed: %v", err)
	}
	if first.MaxRetries != 7 {
		t.Errorf("max_retries = %d, want 7", first.MaxRetries)
	}

	if err := s.SetConfig(models.ConfigKeyMaxRetries, "1"); err != nil {
		t.Fatalf("SetConfig failed: %v", err)
	}
	second, err := s.CreateJob("job2", "true")
	if err != nil {
		t.Fatalf("CreateJob failed: %v", err)
	}
	if second.MaxRetries != 1 {
		t.Errorf("max_retries = %d, want 1", second.MaxRetries)
	}

	// The earlier job keeps the budget it was enqueued with.
	got, err := s.GetJob("job1")
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if got.MaxRetries != 7 {
		t.Errorf("job1 max_retries after config change = %d, want 7", got.MaxRetries)
	}
}

func TestClaimNextJobOrdering(t *testing.T) {
	s := newTestSQLiteStore(t)
	base := models.UTCNow().Add(-time.Hour)

	for _, id := range []string{"c", "a", "b"} {
		if _, err := s.CreateJob(id, "true"); err != nil {
			t.Fatalf("CreateJob(%s) failed: %v", id, err)
		}
	}
	// c is due earliest; a and b tie on run_at, a was enqueued first.
	mustExec(t, s, `UPDATE jobs SET run_at = ?, enqueued_at = ? WHERE id = 'c'`, base, base.Add(3*time.Second))
	mustExec(t, s, `UPDATE jobs SET run_at = ?, enqueued_at = ? WHERE id = 'a'`, base.Add(time.Second), base.Add(time.Second))
	mustExec(t, s, `UPDATE jobs SET run_at = ?, enqueued_at = ? WHERE id = 'b'`, base.Add(time.Second), base.Add(2*time.Second))

	now := models.UTCNow()
	var order []string
	for {
		job, err := s.ClaimNextJob(now)
		if err != nil {
			t.Fatalf("ClaimNextJob failed: %v", err)
		}
		if job == nil {
			break
		}
		order = append(order, job.ID)
	}
	want := []string{"c", "a", "b"}
	if len(order) != len(want) {
		t.Fatalf("claimed %d jobs %v, want %d", len(order), order, len(want))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("claim order = %v, want %v", order, want)
		}
	}
}

func TestClaimNextJobIDBreaksTies(t *testing.T) {
	s := newTestSQLiteStore(t)
	base := models.UTCNow().Add(-time.Hour)

	for _, id := range []string{"z", "y"} {
		if _, err := s.CreateJob(id, "true"); err != nil {
			t.Fatalf("CreateJob(%s) failed: %v", id, err)
		}
	}
	mustExec(t, s, `UPDATE jobs SET run_at = ?, enqueued_at = ?`, base, base)

	job, err := s.ClaimNextJob(models.UTCNow())
	if err != nil {
		t.Fatalf("ClaimNextJob failed: %v", err)
	}
	if job == nil || job.ID != "y" {
		t.Fatalf("ClaimNextJob = %+v, want id y (lexicographically smallest)", job)
	}
}

func TestClaimNextJobEligibility(t *testing.T) {
	s := newTestSQLiteStore(t)
	now := models.UTCNow()

	// A job scheduled in the future must not be claimed.
	if _, err := s.CreateJob("future", "true"); err != nil {
		t.Fatalf("CreateJob failed: %v", err)
	}
	mustExec(t, s, `UPDATE jobs SET run_at = ? WHERE id = 'future'`, now.Add(time.Hour))

	job, err := s.ClaimNextJob(now)
	if err != nil {
		t.Fatalf("ClaimNextJob failed: %v", err)
	}
	if job != nil {
		t.Fatalf("ClaimNextJob = %+v, want nil for future job", job)
	}

	// Non-pending jobs must not be claimed either.
	mustExec(t, s, `UPDATE jobs SET run_at = ?, state = 'dead' WHERE id = 'future'`, now.Add(-time.Hour))
	job, err = s.ClaimNextJob(now)
	if err != nil {
		t.Fatalf("ClaimNextJob failed: %v", err)
	}
	if job != nil {
		t.Fatalf("ClaimNextJob = %+v, want nil for dead job", job)
	}
}

func TestClaimNextJobExactlyOnce(t *testing.T) {
	s := newTestSQLiteStore(t)

	const jobs = 8
	for i := 0; i < jobs; i++ {
		if _, err := s.CreateJob(string(rune('a'+i)), "true"); err != nil {
			t.Fatalf("CreateJob failed: %v", err)
		}
	}

	var mu sync.Mutex
	seen := make(map[string]int)
	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				job, err := s.ClaimNextJob(models.UTCNow())
				if err != nil {
					t.Errorf("ClaimNextJob failed: %v", err)
					return
				}
				if job == nil {
					return
				}
				mu.Lock()
				seen[job.ID]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != jobs {
		t.Fatalf("claimed %d distinct jobs, want %d", len(seen), jobs)
	}
	for id, n := range seen {
		if n != 1 {
			t.Errorf("job %s claimed %d times, want exactly once", id, n)
		}
	}
}

func claimForTest(t *testing.T, s *SQLiteStore, id string) *models.Job {
	t.Helper()
	job, err := s.ClaimNextJob(models.UTCNow())
	if err != nil {
		t.Fatalf("ClaimNextJob failed: %v", err)
	}
	if job == nil || job.ID != id {
		t.Fatalf("ClaimNextJob = %+v, want %s", job, id)
	}
	return job
}

func TestMarkCompleted(t *testing.T) {
	s := newTestSQLiteStore(t)
	if _, err := s.CreateJob("job1", "true"); err != nil {
		t.Fatalf("CreateJob failed: %v", err)
	}
	job := claimForTest(t, s, "job1")

	started := models.UTCNow()
	finished := started.Add(120 * time.Millisecond)
	exec := models.Execution{
		JobID:      job.ID,
		WorkerID:   "w-1",
		Attempt:    job.Attempts + 1,
		StartedAt:  started,
		FinishedAt: finished,
		ExitCode:   0,
	}
	if err := s.MarkCompleted(exec); err != nil {
		t.Fatalf("MarkCompleted failed: %v", err)
	}

	got, err := s.GetJob("job1")
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if got.State != models.JobStateCompleted {
		t.Errorf("state = %q, want completed", got.State)
	}
	if got.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", got.Attempts)
	}
	if got.ExitCode == nil || *got.ExitCode != 0 {
		t.Errorf("exit_code = %v, want 0", got.ExitCode)
	}
	if !got.UpdatedAt.Equal(finished) {
		t.Errorf("updated_at = %v, want %v", got.UpdatedAt, finished)
	}

	// Settling twice must fail: the job is no longer processing.
	if err := s.MarkCompleted(exec); !errors.Is(err, ErrNotProcessing) {
		t.Errorf("second MarkCompleted error = %v, want ErrNotProcessing", err)
	}
}

func TestScheduleRetry(t *testing.T) {
	s := newTestSQLiteStore(t)
	if _, err := s.CreateJob("job1", "false"); err != nil {
		t.Fatalf("CreateJob failed: %v", err)
	}
	job := claimForTest(t, s, "job1")

	finished := models.UTCNow()
	runAt := finished.Add(2 * time.Second)
	exec := models.Execution{
		JobID:      job.ID,
		WorkerID:   "w-1",
		Attempt:    1,
		StartedAt:  finished.Add(-time.Second),
		FinishedAt: finished,
		ExitCode:   1,
	}
	if err := s.ScheduleRetry(exec, "exit status 1", runAt); err != nil {
		t.Fatalf("ScheduleRetry failed: %v", err)
	}

	got, err := s.GetJob("job1")
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if got.State != models.JobStatePending {
		t.Errorf("state = %q, want pending", got.State)
	}
	if got.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", got.Attempts)
	}
	if !got.RunAt.Equal(runAt) {
		t.Errorf("run_at = %v, want %v", got.RunAt, runAt)
	}
	if got.LastError != "exit status 1" {
		t.Errorf("last_error = %q, want %q", got.LastError, "exit status 1")
	}
	if got.ExitCode == nil || *got.ExitCode != 1 {
		t.Errorf("exit_code = %v, want 1", got.ExitCode)
	}

	// The retried job is claimable again once run_at arrives.
	reclaimed, err := s.ClaimNextJob(runAt.Add(time.Second))
	if err != nil {
		t.Fatalf("ClaimNextJob after retry failed: %v", err)
	}
	if reclaimed == nil || reclaimed.ID != "job1" || reclaimed.Attempts != 1 {
		t.Fatalf("reclaimed = %+v, want job1 with attempts 1", reclaimed)
	}
}

func TestMarkDead(t *testing.T) {
	s := newTestSQLiteStore(t)
	if _, err := s.CreateJob("job1", "false"); err != nil {
		t.Fatalf("CreateJob failed: %v", err)
	}
	job := claimForTest(t, s, "job1")

	exec := models.Execution{
		JobID:      job.ID,
		WorkerID:   "w-1",
		Attempt:    4,
		StartedAt:  models.UTCNow(),
		FinishedAt: models.UTCNow(),
		ExitCode:   1,
	}
	if err := s.MarkDead(exec, "exit status 1"); err != nil {
		t.Fatalf("MarkDead failed: %v", err)
	}

	got, err := s.GetJob("job1")
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if got.State != models.JobStateDead {
		t.Errorf("state = %q, want dead", got.State)
	}
	if got.Attempts != 4 {
		t.Errorf("attempts = %d, want 4", got.Attempts)
	}

	// Dead jobs are not claimable.
	job2, err := s.ClaimNextJob(models.UTCNow().Add(time.Hour))
	if err != nil {
		t.Fatalf("ClaimNextJob failed: %v", err)
	}
	if job2 != nil {
		t.Fatalf("ClaimNextJob = %+v, want nil", job2)
	}
}

func TestSettlementRequiresProcessing(t *testing.T) {
	s := newTestSQLiteStore(t)
	if _, err := s.CreateJob("job1", "true"); err != nil {
		t.Fatalf("CreateJob failed: %v", err)
	}
	exec := models.Execution{JobID: "job1", WorkerID: "w-1", Attempt: 1,
		StartedAt: models.UTCNow(), FinishedAt: models.UTCNow()}

	if err := s.MarkCompleted(exec); !errors.Is(err, ErrNotProcessing) {
		t.Errorf("MarkCompleted on pending job error = %v, want ErrNotProcessing", err)
	}
	if err := s.ScheduleRetry(exec, "boom", models.UTCNow()); !errors.Is(err, ErrNotProcessing) {
		t.Errorf("ScheduleRetry on pending job error = %v, want ErrNotProcessing", err)
	}
	if err := s.MarkDead(exec, "boom"); !errors.Is(err, ErrNotProcessing) {
		t.Errorf("MarkDead on pending job error = %v, want ErrNotProcessing", err)
	}

	// No audit rows may exist for settlements that failed the guard.
	execs, err := s.ListExecutions("job1")
	if err != nil {
		t.Fatalf("ListExecutions failed: %v", err)
	}
	if len(execs) != 0 {
		t.Errorf("found %d execution rows after failed settlements, want 0", len(execs))
	}
}

func TestRequeueDead(t *testing.T) {
	s := newTestSQLiteStore(t)
	if _, err := s.CreateJob("job1", "false"); err != nil {
		t.Fatalf("CreateJob failed: %v", err)
	}
	job := claimForTest(t, s, "job1")
	exec := models.Execution{JobID: job.ID, WorkerID: "w-1", Attempt: 4,
		StartedAt: models.UTCNow(), FinishedAt: models.UTCNow(), ExitCode: 1}
	if err := s.MarkDead(exec, "exit status 1"); err != nil {
		t.Fatalf("MarkDead failed: %v", err)
	}

	before := models.UTCNow()
	if err := s.RequeueDead("job1"); err != nil {
		t.Fatalf("RequeueDead failed: %v", err)
	}

	got, err := s.GetJob("job1")
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if got.State != models.JobStatePending {
		t.Errorf("state = %q, want pending", got.State)
	}
	if got.Attempts != 0 {
		t.Errorf("attempts = %d, want 0 after requeue", got.Attempts)
	}
	if got.LastError != "" {
		t.Errorf("last_error = %q, want cleared", got.LastError)
	}
	if got.ExitCode != nil {
		t.Errorf("exit_code = %v, want cleared", *got.ExitCode)
	}
	if got.RunAt.Before(before) {
		t.Errorf("run_at = %v, want >= %v", got.RunAt, before)
	}
}

func TestRequeueDeadErrors(t *testing.T) {
	s := newTestSQLiteStore(t)

	if err := s.RequeueDead("missing"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("RequeueDead(missing) error = %v, want ErrJobNotFound", err)
	}

	if _, err := s.CreateJob("job1", "true"); err != nil {
		t.Fatalf("CreateJob failed: %v", err)
	}
	if err := s.RequeueDead("job1"); !errors.Is(err, ErrNotDead) {
		t.Errorf("RequeueDead(pending job) error = %v, want ErrNotDead", err)
	}
}

func TestListJobsByState(t *testing.T) {
	s := newTestSQLiteStore(t)
	base := models.UTCNow().Add(-time.Hour)

	for i, id := range []string{"j1", "j2", "j3"} {
		if _, err := s.CreateJob(id, "true"); err != nil {
			t.Fatalf("CreateJob failed: %v", err)
		}
		mustExec(t, s, `UPDATE jobs SET enqueued_at = ?, run_at = ? WHERE id = ?`,
			base.Add(time.Duration(i)*time.Second), base, id)
	}
	claimForTest(t, s, "j1")

	pending, err := s.ListJobsByState(models.JobStatePending)
	if err != nil {
		t.Fatalf("ListJobsByState failed: %v", err)
	}
	if len(pending) != 2 || pending[0].ID != "j2" || pending[1].ID != "j3" {
		t.Errorf("pending = %v, want [j2 j3] in enqueue order", jobIDs(pending))
	}

	processing, err := s.ListJobsByState(models.JobStateProcessing)
	if err != nil {
		t.Fatalf("ListJobsByState failed: %v", err)
	}
	if len(processing) != 1 || processing[0].ID != "j1" {
		t.Errorf("processing = %v, want [j1]", jobIDs(processing))
	}

	dead, err := s.ListJobsByState(models.JobStateDead)
	if err != nil {
		t.Fatalf("ListJobsByState failed: %v", err)
	}
	if len(dead) != 0 {
		t.Errorf("dead = %v, want empty", jobIDs(dead))
	}
}

func jobIDs(jobs []models.Job) []string {
	ids := make([]string, len(jobs))
	for i, j := range jobs {
		ids[i] = j.ID
	}
	return ids
}

func TestSummary(t *testing.T) {
	s := newTestSQLiteStore(t)

	empty, err := s.Summary()
	if err != nil {
		t.Fatalf("Summary failed: %v", err)
	}
	if empty.Total() != 0 {
		t.Errorf("empty summary total = %d, want 0", empty.Total())
	}

	for _, id := range []string{"p1", "p2", "x1", "d1"} {
		if _, err := s.CreateJob(id, "true"); err != nil {
			t.Fatalf("CreateJob failed: %v", err)
		}
	}
	mustExec(t, s, `UPDATE jobs SET state = 'completed' WHERE id = 'x1'`)
	mustExec(t, s, `UPDATE jobs SET state = 'dead' WHERE id = 'd1'`)

	sum, err := s.Summary()
	if err != nil {
		t.Fatalf("Summary failed: %v", err)
	}
	want := models.Summary{Pending: 2, Completed: 1, Dead: 1}
	if sum != want {
		t.Errorf("Summary = %+v, want %+v", sum, want)
	}
}

func TestListExecutionsAuditTrail(t *testing.T) {
	s := newTestSQLiteStore(t)
	if _, err := s.CreateJob("job1", "flaky"); err != nil {
		t.Fatalf("CreateJob failed: %v", err)
	}

	base := models.UTCNow()
	// Two failures, then success.
	for attempt := 1; attempt <= 3; attempt++ {
		mustExec(t, s, `UPDATE jobs SET run_at = ? WHERE id = 'job1'`, base.Add(-time.Minute))
		job, err := s.ClaimNextJob(base)
		if err != nil || job == nil {
			t.Fatalf("ClaimNextJob attempt %d = %+v, %v", attempt, job, err)
		}
		exec := models.Execution{
			JobID:      "job1",
			WorkerID:   "w-1",
			Attempt:    attempt,
			StartedAt:  base.Add(time.Duration(attempt) * time.Minute),
			FinishedAt: base.Add(time.Duration(attempt)*time.Minute + time.Second),
			ExitCode:   1,
		}
		if attempt < 3 {
			if err := s.ScheduleRetry(exec, "exit status 1", base); err != nil {
				t.Fatalf("ScheduleRetry attempt %d failed: %v", attempt, err)
			}
		} else {
			exec.ExitCode = 0
			if err := s.MarkCompleted(exec); err != nil {
				t.Fatalf("MarkCompleted failed: %v", err)
			}
		}
	}

	execs, err := s.ListExecutions("job1")
	if err != nil {
		t.Fatalf("ListExecutions failed: %v", err)
	}
	if len(execs) != 3 {
		t.Fatalf("got %d executions, want 3", len(execs))
	}
	wantOutcomes := []string{models.OutcomeRetried, models.OutcomeRetried, models.OutcomeCompleted}
	for i, e := range execs {
		if e.Attempt != i+1 {
			t.Errorf("execution %d attempt = %d, want %d", i, e.Attempt, i+1)
		}
		if e.Outcome != wantOutcomes[i] {
			t.Errorf("execution %d outcome = %q, want %q", i, e.Outcome, wantOutcomes[i])
		}
		if e.ID == "" {
			t.Errorf("execution %d has empty id", i)
		}
		if e.WorkerID != "w-1" {
			t.Errorf("execution %d worker = %q, want w-1", i, e.WorkerID)
		}
	}
}

func TestRequeueStaleProcessing(t *testing.T) {
	s := newTestSQLiteStore(t)
	now := models.UTCNow()

	for _, id := range []string{"stale", "fresh"} {
		if _, err := s.CreateJob(id, "true"); err != nil {
			t.Fatalf("CreateJob failed: %v", err)
		}
	}
	mustExec(t, s, `UPDATE jobs SET state = 'processing', updated_at = ?`, now.Add(-time.Hour))
	mustExec(t, s, `UPDATE jobs SET updated_at = ? WHERE id = 'fresh'`, now)

	n, err := s.RequeueStaleProcessing(now.Add(-30 * time.Minute))
	if err != nil {
		t.Fatalf("RequeueStaleProcessing failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("requeued %d jobs, want 1", n)
	}

	stale, err := s.GetJob("stale")
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if stale.State != models.JobStatePending {
		t.Errorf("stale job state = %q, want pending", stale.State)
	}
	fresh, err := s.GetJob("fresh")
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if fresh.State != models.JobStateProcessing {
		t.Errorf("fresh job state = %q, want untouched processing", fresh.State)
	}
}

func TestConfigDefaultsSeeded(t *testing.T) {
	s := newTestSQLiteStore(t)

	got, err := s.GetConfig(models.ConfigKeyMaxRetries)
	if err != nil {
		t.Fatalf("GetConfig failed: %v", err)
	}
	if got != "3" {
		t.Errorf("max_retries = %q, want seeded default 3", got)
	}

	got, err = s.GetConfig(models.ConfigKeyBackoffBase)
	if err != nil {
		t.Fatalf("GetConfig failed: %v", err)
	}
	if got != "2" {
		t.Errorf("backoff_base = %q, want seeded default 2", got)
	}

	if _, err := s.GetConfig("retry_jitter"); !errors.Is(err, models.ErrUnknownConfigKey) {
		t.Errorf("GetConfig(unknown) error = %v, want ErrUnknownConfigKey", err)
	}
}

func TestConfigSeedDoesNotOverwrite(t *testing.T) {
	dir, err := os.MkdirTemp("", "queuectl_store_test_")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(dir)
	dbPath := filepath.Join(dir, "queue.db")

	s1, err := NewSQLiteStore(WithSQLiteDSN(dbPath))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	if err := s1.SetConfig(models.ConfigKeyMaxRetries, "9"); err != nil {
		t.Fatalf("SetConfig failed: %v", err)
	}
	s1.Close()

	// Reopening runs the migrations again; the operator's value must survive.
	s2, err := NewSQLiteStore(WithSQLiteDSN(dbPath))
	if err != nil {
		t.Fatalf("NewSQLiteStore reopen failed: %v", err)
	}
	defer s2.Close()

	got, err := s2.GetConfig(models.ConfigKeyMaxRetries)
	if err != nil {
		t.Fatalf("GetConfig failed: %v", err)
	}
	if got != "9" {
		t.Errorf("max_retries after reopen = %q, want 9", got)
	}
}

func TestSetConfigValidation(t *testing.T) {
	s := newTestSQLiteStore(t)

	if err := s.SetConfig(models.ConfigKeyMaxRetries, "-1"); !errors.Is(err, models.ErrInvalidConfigValue) {
		t.Errorf("SetConfig(max_retries, -1) error = %v, want ErrInvalidConfigValue", err)
	}
	if err := s.SetConfig(models.ConfigKeyBackoffBase, "0"); !errors.Is(err, models.ErrInvalidConfigValue) {
		t.Errorf("SetConfig(backoff_base, 0) error = %v, want ErrInvalidConfigValue", err)
	}
	if err := s.SetConfig("nope", "1"); !errors.Is(err, models.ErrUnknownConfigKey) {
		t.Errorf("SetConfig(nope) error = %v, want ErrUnknownConfigKey", err)
	}

	if err := s.SetConfig(models.ConfigKeyBackoffBase, "5"); err != nil {
		t.Fatalf("SetConfig failed: %v", err)
	}
	got, err := s.GetConfig(models.ConfigKeyBackoffBase)
	if err != nil {
		t.Fatalf("GetConfig failed: %v", err)
	}
	if got != "5" {
		t.Errorf("backoff_base = %q, want 5", got)
	}
}

func TestGetJobMissing(t *testing.T) {
	s := newTestSQLiteStore(t)
	got, err := s.GetJob("missing")
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if got != nil {
		t.Errorf("GetJob(missing) = %+v, want nil", got)
	}
}

func TestNewStoreFactorySelectsSQLite(t *testing.T) {
	dir, err := os.MkdirTemp("", "queuectl_store_test_")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(dir)

	st, err := NewStore(WithSQLiteDSN(filepath.Join(dir, "queue.db")))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	defer st.Close()

	if _, ok := st.(*SQLiteStore); !ok {
		t.Fatalf("NewStore returned %T, want *SQLiteStore", st)
	}
}
