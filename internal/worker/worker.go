package worker

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/yashwanth22122002/QueueCTL/internal/models"
	"github.com/yashwanth22122002/QueueCTL/internal/registry"
	"github.com/yashwanth22122002/QueueCTL/internal/store"
)

// DefaultIdleSleep is the pause between polls when no job is due.
const DefaultIdleSleep = time.Second

// maxBackoffSeconds caps the retry delay; base^attempt overflows quickly
// for generous config values.
const maxBackoffSeconds = int64(1) << 31

// Phase is the worker's lifecycle state.
type Phase int

const (
	// PhaseIdle means the worker is polling for due jobs.
	PhaseIdle Phase = iota
	// PhaseExecuting means the worker is running exactly one command.
	PhaseExecuting
	// PhaseDraining means stop was requested; the worker finishes and
	// settles its current command, then exits. Terminal.
	PhaseDraining
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseExecuting:
		return "executing"
	case PhaseDraining:
		return "draining"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Event advances the phase machine.
type Event int

const (
	// EventClaimed fires when a poll returned a job.
	EventClaimed Event = iota
	// EventNoJob fires when a poll found nothing due.
	EventNoJob
	// EventSettled fires when the running job's outcome was persisted.
	EventSettled
	// EventShutdown fires when stop was requested.
	EventShutdown
)

// nextPhase is the worker's transition function. It is pure so the
// lifecycle can be tested without a store or real commands.
func nextPhase(p Phase, e Event) Phase {
	switch p {
	case PhaseIdle:
		switch e {
		case EventClaimed:
			return PhaseExecuting
		case EventShutdown:
			return PhaseDraining
		}
	case PhaseExecuting:
		switch e {
		case EventSettled:
			return PhaseIdle
		case EventShutdown:
			return PhaseDraining
		}
	case PhaseDraining:
		// Terminal: late events cannot revive a draining worker.
	}
	return p
}

// Opts holds worker configuration options.
type Opts struct {
	Executor  Executor
	Registry  *registry.Registry
	ID        string
	IdleSleep time.Duration
}

// Option defines a configuration option for worker construction.
type Option func(*Opts)

// WithExecutor replaces the shell executor, mainly for tests.
func WithExecutor(e Executor) Option {
	return func(o *Opts) { o.Executor = e }
}

// WithRegistry makes the worker register its PID file on startup and remove
// it on clean exit.
func WithRegistry(r *registry.Registry) Option {
	return func(o *Opts) { o.Registry = r }
}

// WithID overrides the worker id recorded in execution audit rows.
func WithID(id string) Option {
	return func(o *Opts) { o.ID = id }
}

// WithIdleSleep overrides the pause between empty polls.
func WithIdleSleep(d time.Duration) Option {
	return func(o *Opts) { o.IdleSleep = d }
}

// Worker claims and executes jobs one at a time against a shared store.
// Concurrency comes from running multiple worker processes, not from
// goroutines inside one worker.
type Worker struct {
	store     store.Store
	executor  Executor
	registry  *registry.Registry
	id        string
	idleSleep time.Duration
}

// New creates a worker bound to st.
func New(st store.Store, opts ...Option) *Worker {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Executor == nil {
		cfg.Executor = ShellExecutor{}
	}
	if cfg.ID == "" {
		cfg.ID = fmt.Sprintf("worker-%d", os.Getpid())
	}
	if cfg.IdleSleep <= 0 {
		cfg.IdleSleep = DefaultIdleSleep
	}
	return &Worker{
		store:     st,
		executor:  cfg.Executor,
		registry:  cfg.Registry,
		id:        cfg.ID,
		idleSleep: cfg.IdleSleep,
	}
}

// ID returns the worker id recorded in execution audit rows.
func (w *Worker) ID() string { return w.id }

// Run executes the claim-execute-settle loop until ctx is cancelled. A
// cancellation that arrives during execution drains: the running command
// finishes and its outcome is settled before Run returns, so no execution
// is ever abandoned mid-flight.
func (w *Worker) Run(ctx context.Context) error {
	slog.Info("Worker starting", "worker_id", w.id, "idle_sleep", w.idleSleep)

	if w.registry != nil {
		if err := w.registry.Register(os.Getpid()); err != nil {
			return fmt.Errorf("register worker: %w", err)
		}
		defer func() {
			if err := w.registry.Deregister(os.Getpid()); err != nil {
				slog.Warn("Worker deregister failed", "worker_id", w.id, "error", err)
			}
		}()
	}

	phase := PhaseIdle
	for {
		if phase != PhaseDraining {
			select {
			case <-ctx.Done():
				phase = nextPhase(phase, EventShutdown)
			default:
			}
		}
		if phase == PhaseDraining {
			slog.Info("Worker stopped", "worker_id", w.id)
			return nil
		}

		job, err := w.store.ClaimNextJob(models.UTCNow())
		if err != nil {
			ClaimErrors.Inc()
			slog.Error("Worker claim failed", "worker_id", w.id, "error", err)
			w.sleep(ctx)
			continue
		}
		if job == nil {
			phase = nextPhase(phase, EventNoJob)
			w.sleep(ctx)
			continue
		}

		JobsClaimed.Inc()
		phase = nextPhase(phase, EventClaimed)
		w.runJob(job)

		select {
		case <-ctx.Done():
			phase = nextPhase(phase, EventShutdown)
		default:
			phase = nextPhase(phase, EventSettled)
		}
	}
}

// runJob executes one claimed job to completion and settles it. The command
// runs under context.Background() on purpose: a shutdown request drains the
// current job instead of killing the child process.
func (w *Worker) runJob(job *models.Job) {
	attempt := job.Attempts + 1
	slog.Info("Worker executing job",
		"worker_id", w.id, "id", job.ID, "attempt", attempt, "max_retries", job.MaxRetries)

	started := models.UTCNow()
	res := w.executor.Execute(context.Background(), job.Command)
	finished := models.UTCNow()
	JobDuration.Observe(finished.Sub(started).Seconds())

	exec := models.Execution{
		JobID:      job.ID,
		WorkerID:   w.id,
		Attempt:    attempt,
		StartedAt:  started,
		FinishedAt: finished,
		ExitCode:   res.ExitCode,
	}

	if res.Success() {
		if err := w.store.MarkCompleted(exec); err != nil {
			slog.Error("Worker settle failed", "worker_id", w.id, "id", job.ID, "error", err)
			return
		}
		JobsProcessed.WithLabelValues(models.OutcomeCompleted).Inc()
		slog.Info("Worker job completed", "worker_id", w.id, "id", job.ID, "attempt", attempt)
		return
	}

	lastError := res.ErrorText(fmt.Sprintf("exit status %d", res.ExitCode))

	if attempt <= job.MaxRetries {
		runAt := finished.Add(BackoffDelay(w.backoffBase(), attempt))
		if err := w.store.ScheduleRetry(exec, lastError, runAt); err != nil {
			slog.Error("Worker settle failed", "worker_id", w.id, "id", job.ID, "error", err)
			return
		}
		JobsProcessed.WithLabelValues(models.OutcomeRetried).Inc()
		slog.Warn("Worker job failed, retry scheduled",
			"worker_id", w.id, "id", job.ID, "attempt", attempt, "exit_code", res.ExitCode, "run_at", runAt)
		return
	}

	if err := w.store.MarkDead(exec, lastError); err != nil {
		slog.Error("Worker settle failed", "worker_id", w.id, "id", job.ID, "error", err)
		return
	}
	JobsProcessed.WithLabelValues(models.OutcomeDead).Inc()
	slog.Error("Worker job exhausted retries, moved to dead letter queue",
		"worker_id", w.id, "id", job.ID, "attempts", attempt, "exit_code", res.ExitCode)
}

// backoffBase reads the live backoff base from config, falling back to the
// default when the read fails or yields nonsense.
func (w *Worker) backoffBase() int {
	raw, err := w.store.GetConfig(models.ConfigKeyBackoffBase)
	if err != nil {
		return models.DefaultBackoffBase
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return models.DefaultBackoffBase
	}
	return n
}

// sleep pauses for the idle interval, returning early when ctx is cancelled.
func (w *Worker) sleep(ctx context.Context) {
	t := time.NewTimer(w.idleSleep)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// BackoffDelay returns base^attempt seconds, capped at maxBackoffSeconds.
// attempt is the 1-based number of the attempt that just failed.
func BackoffDelay(base, attempt int) time.Duration {
	if base < 1 {
		base = models.DefaultBackoffBase
	}
	secs := int64(1)
	for i := 0; i < attempt; i++ {
		secs *= int64(base)
		if secs >= maxBackoffSeconds || secs <= 0 {
			return time.Duration(maxBackoffSeconds) * time.Second
		}
	}
	return time.Duration(secs) * time.Second
}
