// Package registry tracks worker processes through PID files.
//
// Every worker writes <pid>.pid into a shared registry directory at startup
// and removes it on clean exit. Supervisor commands and status reporting
// read the directory and probe each PID with signal 0, so files left behind
// by crashed workers are detected as stale and reaped instead of being
// counted as live.
package registry

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// DefaultDirName is the registry directory created under the system temp
// directory when no explicit path is configured.
const DefaultDirName = "queuectl_pids"

const (
	pidFileSuffix = ".pid"
	dirPerm       = 0755
	filePerm      = 0644
)

// DefaultDir returns the registry path under the system temp directory.
func DefaultDir() string {
	return filepath.Join(os.TempDir(), DefaultDirName)
}

// Entry describes one registered worker process.
type Entry struct {
	PID   int
	Path  string
	Alive bool
}

// Registry manages the PID files for the worker processes sharing a queue.
type Registry struct {
	dir string
}

// New returns a Registry rooted at dir, creating the directory if needed.
// An empty dir selects DefaultDir.
func New(dir string) (*Registry, error) {
	if dir == "" {
		dir = DefaultDir()
	}
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		slog.Error("Failed to create registry directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create registry directory %s: %w", dir, err)
	}
	return &Registry{dir: dir}, nil
}

// Dir returns the registry directory path.
func (r *Registry) Dir() string { return r.dir }

// PathFor returns the PID file path for pid.
func (r *Registry) PathFor(pid int) string {
	return filepath.Join(r.dir, strconv.Itoa(pid)+pidFileSuffix)
}

// Register writes the PID file for pid. The filename carries the PID; the
// key=value content is informational for operators inspecting the directory.
func (r *Registry) Register(pid int) error {
	path := r.PathFor(pid)
	info := fmt.Sprintf("pid=%d\nstarted_at=%s\n", pid, time.Now().UTC().Format(time.RFC3339))
	if err := os.WriteFile(path, []byte(info), filePerm); err != nil {
		slog.Error("Failed to write PID file", "error", err, "path", path)
		return fmt.Errorf("failed to write PID file %s: %w", path, err)
	}
	slog.Debug("Registered worker PID file", "path", path, "pid", pid)
	return nil
}

// Deregister removes the PID file for pid. A missing file is not an error:
// a stop command may have cleaned it up already.
func (r *Registry) Deregister(pid int) error {
	path := r.PathFor(pid)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		slog.Error("Failed to remove PID file", "error", err, "path", path)
		return fmt.Errorf("failed to remove PID file %s: %w", path, err)
	}
	slog.Debug("Deregistered worker PID file", "path", path, "pid", pid)
	return nil
}

// Entries returns every registry entry with its liveness, ordered by PID.
// Files whose names do not parse as PIDs are ignored.
func (r *Registry) Entries() ([]Entry, error) {
	dirEntries, err := os.ReadDir(r.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read registry directory %s: %w", r.dir, err)
	}

	var entries []Entry
	for _, de := range dirEntries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), pidFileSuffix) {
			continue
		}
		pid, err := strconv.Atoi(strings.TrimSuffix(de.Name(), pidFileSuffix))
		if err != nil || pid <= 0 {
			continue
		}
		entries = append(entries, Entry{
			PID:   pid,
			Path:  filepath.Join(r.dir, de.Name()),
			Alive: isProcessRunning(pid),
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].PID < entries[j].PID })
	return entries, nil
}

// LiveWorkers returns the PIDs of live registered workers in ascending
// order. Stale files left behind by workers that died without deregistering
// are removed on the way.
func (r *Registry) LiveWorkers() ([]int, error) {
	entries, err := r.Entries()
	if err != nil {
		return nil, err
	}
	var pids []int
	for _, e := range entries {
		if e.Alive {
			pids = append(pids, e.PID)
			continue
		}
		if err := os.Remove(e.Path); err != nil && !os.IsNotExist(err) {
			slog.Warn("Failed to remove stale PID file", "error", err, "path", e.Path)
			continue
		}
		slog.Debug("Reaped stale PID file", "path", e.Path, "pid", e.PID)
	}
	return pids, nil
}

// isProcessRunning checks if a process with the given PID is currently running
func isProcessRunning(pid int) bool {
	// Signal 0 checks whether the process can be signaled without actually
	// sending anything; it fails for PIDs that no longer exist.
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = process.Signal(syscall.Signal(0))
	return err == nil
}
