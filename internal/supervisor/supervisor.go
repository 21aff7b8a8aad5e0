// Package supervisor spawns and stops detached worker processes.
//
// worker start re-executes the current binary once per requested worker in
// a fresh session, so the children survive the supervisor process and its
// terminal. worker stop signals every registered worker with SIGTERM and
// unlinks the registry entries without waiting: a signaled worker drains
// its current job and exits on its own.
package supervisor

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"syscall"

	"github.com/yashwanth22122002/QueueCTL/internal/registry"
)

// Opts holds the functional options for a Supervisor.
type Opts struct {
	// Executable is the binary spawned for each worker. Defaults to the
	// currently running executable.
	Executable string
}

// Option configures a Supervisor.
type Option func(*Opts)

// WithExecutable overrides the binary used to spawn workers.
func WithExecutable(path string) Option {
	return func(o *Opts) { o.Executable = path }
}

// Supervisor starts and stops detached worker processes tracked in a
// shared PID registry.
type Supervisor struct {
	registry   *registry.Registry
	executable string
	args       []string
}

// New returns a Supervisor that spawns workers by running the executable
// with args, and that locates running workers through reg.
func New(reg *registry.Registry, args []string, options ...Option) (*Supervisor, error) {
	opts := &Opts{}
	for _, opt := range options {
		opt(opts)
	}

	exe := opts.Executable
	if exe == "" {
		path, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve current executable: %w", err)
		}
		exe = path
	}
	return &Supervisor{registry: reg, executable: exe, args: args}, nil
}

// StartWorkers spawns count detached worker processes, registers their PIDs,
// and returns the PIDs without waiting for the children.
func (s *Supervisor) StartWorkers(count int) ([]int, error) {
	if count < 1 {
		return nil, fmt.Errorf("worker count must be at least 1, got %d", count)
	}

	var pids []int
	for i := 0; i < count; i++ {
		cmd := exec.Command(s.executable, s.args...)
		// A fresh session detaches the child from the terminal, so an
		// interactive Ctrl+C on the CLI does not reach the workers.
		cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

		if err := cmd.Start(); err != nil {
			slog.Error("Failed to spawn worker process", "error", err, "executable", s.executable)
			return pids, fmt.Errorf("failed to spawn worker process: %w", err)
		}
		pid := cmd.Process.Pid
		pids = append(pids, pid)

		// The child re-registers when its run loop starts; writing the
		// file here makes the PID visible to stop before the child is up.
		if err := s.registry.Register(pid); err != nil {
			return pids, err
		}
		if err := cmd.Process.Release(); err != nil {
			slog.Warn("Failed to release worker process handle", "error", err, "pid", pid)
		}
		slog.Debug("Spawned worker process", "pid", pid, "executable", s.executable)
	}
	return pids, nil
}

// StopWorkers sends SIGTERM to every live registered worker and unlinks the
// registry entries. It does not wait for workers to exit. A PID whose
// process is already gone counts as stopped, and its entry is still removed.
func (s *Supervisor) StopWorkers() ([]int, error) {
	pids, err := s.registry.LiveWorkers()
	if err != nil {
		return nil, err
	}

	var stopped []int
	for _, pid := range pids {
		proc, err := os.FindProcess(pid)
		if err != nil {
			continue
		}
		err = proc.Signal(syscall.SIGTERM)
		switch {
		case err == nil:
			stopped = append(stopped, pid)
			slog.Debug("Signaled worker for shutdown", "pid", pid)
		case errors.Is(err, os.ErrProcessDone), errors.Is(err, syscall.ESRCH):
			// Exited between the liveness probe and the signal.
			stopped = append(stopped, pid)
		default:
			slog.Warn("Failed to signal worker", "error", err, "pid", pid)
		}
		if err := s.registry.Deregister(pid); err != nil {
			slog.Warn("Failed to remove registry entry", "error", err, "pid", pid)
		}
	}
	return stopped, nil
}
