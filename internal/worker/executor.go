// Package worker implements the claim-execute-settle loop that turns
// pending jobs into completed, retried, or dead ones.
package worker

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
)

const (
	// shellPath is the interpreter every job command runs under. Commands
	// are enqueued against this contract, so it is not configurable.
	shellPath = "/bin/sh"

	// stderrLimit bounds how much captured stderr is kept for last_error.
	stderrLimit = 4 * 1024

	// launchFailureExitCode is reported when the command could not be
	// started at all, mirroring the shell convention for command not found.
	launchFailureExitCode = 127
)

// Result describes one finished command execution.
type Result struct {
	ExitCode int
	Stderr   string
}

// Success reports whether the command exited with status zero.
func (r Result) Success() bool { return r.ExitCode == 0 }

// ErrorText returns the text recorded as last_error for a failed execution:
// the captured stderr, or the process error when stderr was empty.
func (r Result) ErrorText(fallback string) string {
	if r.Stderr != "" {
		return r.Stderr
	}
	return fallback
}

// Executor runs a job command and reports its outcome. Implementations
// never return an error: every failure mode is folded into the Result so
// the settlement path is uniform.
type Executor interface {
	Execute(ctx context.Context, command string) Result
}

// ShellExecutor runs commands through /bin/sh -c.
type ShellExecutor struct{}

// Compile-time check that ShellExecutor implements Executor.
var _ Executor = ShellExecutor{}

// Execute runs command under the shell and waits for it to finish. stdout
// is consumed and discarded; stderr is captured (truncated) for diagnostics.
// A command that cannot be started reports launchFailureExitCode.
func (ShellExecutor) Execute(ctx context.Context, command string) Result {
	cmd := exec.CommandContext(ctx, shellPath, "-c", command)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	captured := truncate(strings.TrimSpace(stderr.String()), stderrLimit)
	if err == nil {
		return Result{ExitCode: 0, Stderr: captured}
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res := Result{ExitCode: exitErr.ExitCode(), Stderr: captured}
		if res.Stderr == "" {
			res.Stderr = truncate(err.Error(), stderrLimit)
		}
		return res
	}

	// The command never ran: interpreter missing, fork failure, or a
	// cancelled context before start.
	return Result{ExitCode: launchFailureExitCode, Stderr: truncate(err.Error(), stderrLimit)}
}

// truncate caps s at limit bytes.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
