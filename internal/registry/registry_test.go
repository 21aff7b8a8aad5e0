package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// deadPID is far above any realistic pid_max, so no process can own it.
const deadPID = 1 << 30

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	tempDir, err := os.MkdirTemp("", "registry_test_")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	r, err := New(tempDir)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return r
}

func TestRegisterWritesPIDFile(t *testing.T) {
	r := newTestRegistry(t)
	pid := os.Getpid()

	if err := r.Register(pid); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	path := r.PathFor(pid)
	if filepath.Base(path) != fmt.Sprintf("%d.pid", pid) {
		t.Errorf("PID file name = %s, want %d.pid", filepath.Base(path), pid)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read PID file: %v", err)
	}
	if !strings.HasPrefix(string(content), fmt.Sprintf("pid=%d\n", pid)) {
		t.Errorf("PID file content = %q, want pid=%d prefix", string(content), pid)
	}
	if !strings.Contains(string(content), "started_at=") {
		t.Errorf("PID file content = %q, want started_at entry", string(content))
	}
}

func TestDeregisterRemovesFile(t *testing.T) {
	r := newTestRegistry(t)
	pid := os.Getpid()

	if err := r.Register(pid); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := r.Deregister(pid); err != nil {
		t.Fatalf("Deregister failed: %v", err)
	}
	if _, err := os.Stat(r.PathFor(pid)); !os.IsNotExist(err) {
		t.Errorf("PID file should be removed after Deregister")
	}

	// Deregistering again must be safe: stop may already have cleaned up.
	if err := r.Deregister(pid); err != nil {
		t.Errorf("second Deregister should be a no-op, got: %v", err)
	}
}

func TestLiveWorkersReapsStaleFiles(t *testing.T) {
	r := newTestRegistry(t)

	if err := r.Register(os.Getpid()); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := r.Register(deadPID); err != nil {
		t.Fatalf("Register(dead) failed: %v", err)
	}

	pids, err := r.LiveWorkers()
	if err != nil {
		t.Fatalf("LiveWorkers failed: %v", err)
	}
	if len(pids) != 1 || pids[0] != os.Getpid() {
		t.Fatalf("LiveWorkers = %v, want [%d]", pids, os.Getpid())
	}

	// The stale entry must be gone from disk.
	if _, err := os.Stat(r.PathFor(deadPID)); !os.IsNotExist(err) {
		t.Errorf("stale PID file should have been reaped")
	}
}

func TestEntriesIgnoresForeignFiles(t *testing.T) {
	r := newTestRegistry(t)

	for _, name := range []string{"notes.txt", "abc.pid", "-1.pid"} {
		if err := os.WriteFile(filepath.Join(r.Dir(), name), []byte("junk"), 0644); err != nil {
			t.Fatalf("WriteFile(%s) failed: %v", name, err)
		}
	}
	if err := r.Register(os.Getpid()); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	entries, err := r.Entries()
	if err != nil {
		t.Fatalf("Entries failed: %v", err)
	}
	if len(entries) != 1 || entries[0].PID != os.Getpid() {
		t.Fatalf("Entries = %+v, want only own PID", entries)
	}
	if !entries[0].Alive {
		t.Errorf("own process should be reported alive")
	}
}

func TestEntriesSortedByPID(t *testing.T) {
	r := newTestRegistry(t)

	// Filename order (lexicographic) differs from numeric order here.
	for _, pid := range []int{deadPID, deadPID + 1, deadPID + 10, deadPID + 2} {
		if err := r.Register(pid); err != nil {
			t.Fatalf("Register(%d) failed: %v", pid, err)
		}
	}

	entries, err := r.Entries()
	if err != nil {
		t.Fatalf("Entries failed: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("got %d entries, want 4", len(entries))
	}
	for i := 1; i < len(entries); i++ {
		if entries[i-1].PID >= entries[i].PID {
			t.Fatalf("entries not sorted by PID: %v then %v", entries[i-1].PID, entries[i].PID)
		}
	}
}

func TestNewCreatesDirectory(t *testing.T) {
	dir := filepath.Join(os.TempDir(), fmt.Sprintf("registry_test_%d", time.Now().UnixNano()), "pids")
	defer os.RemoveAll(filepath.Dir(dir))

	r, err := New(dir)
	if err != nil {
		t.Fatalf("New should create missing directories: %v", err)
	}
	if _, err := os.Stat(r.Dir()); os.IsNotExist(err) {
		t.Errorf("registry directory should have been created: %s", r.Dir())
	}
}

func TestDefaultDir(t *testing.T) {
	want := filepath.Join(os.TempDir(), DefaultDirName)
	if got := DefaultDir(); got != want {
		t.Errorf("DefaultDir() = %s, want %s", got, want)
	}
}

func TestIsProcessRunning(t *testing.T) {
	if !isProcessRunning(os.Getpid()) {
		t.Errorf("Our own process should be detected as running")
	}
	if isProcessRunning(deadPID) {
		t.Errorf("PID %d should not be running", deadPID)
	}
}
