// Package models defines the core data structures for QueueCTL.
//
// It includes the job record, its lifecycle states, the execution audit
// entry, and the validation rules for user input shared across modules.
package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// JobState represents the lifecycle state of a job.
type JobState string

const (
	// JobStatePending marks a job waiting to be dispatched.
	JobStatePending JobState = "pending"
	// JobStateProcessing marks a job claimed by exactly one worker.
	JobStateProcessing JobState = "processing"
	// JobStateCompleted marks a job that finished with exit code 0. Terminal.
	JobStateCompleted JobState = "completed"
	// JobStateDead marks a job that exhausted its retry budget. Terminal
	// except for an explicit DLQ requeue.
	JobStateDead JobState = "dead"
)

// AllJobStates lists every state in the order human-facing listings use.
var AllJobStates = []JobState{JobStatePending, JobStateProcessing, JobStateCompleted, JobStateDead}

// IsValidJobState checks if the given state is one of the recognized states.
func IsValidJobState(s JobState) bool {
	switch s {
	case JobStatePending, JobStateProcessing, JobStateCompleted, JobStateDead:
		return true
	default:
		return false
	}
}

// ParseJobState converts a user-supplied string into a JobState.
func ParseJobState(s string) (JobState, error) {
	state := JobState(s)
	if !IsValidJobState(state) {
		return "", fmt.Errorf("%w: %q", ErrInvalidJobState, s)
	}
	return state, nil
}

// Recognized configuration keys.
const (
	// ConfigKeyMaxRetries is the retry budget snapshotted into each job at
	// enqueue time. Non-negative integer.
	ConfigKeyMaxRetries = "max_retries"
	// ConfigKeyBackoffBase is the base of the exponential retry backoff,
	// read live by workers at each failure. Integer >= 1.
	ConfigKeyBackoffBase = "backoff_base"
)

// Default configuration values seeded at schema installation.
const (
	DefaultMaxRetries  = 3
	DefaultBackoffBase = 2
)

// Error variables for better error handling and testability
var (
	ErrInvalidJobState    = errors.New("invalid job state")
	ErrUnknownConfigKey   = errors.New("unknown config key")
	ErrInvalidConfigValue = errors.New("invalid config value")
	ErrMissingJobID       = errors.New("job 'id' is required")
	ErrMissingJobCommand  = errors.New("job 'command' is required")
)

// Job represents a user-supplied unit of work: an id and a shell command,
// plus the lifecycle fields the queue maintains for it.
type Job struct {
	ID         string    `json:"id"`
	Command    string    `json:"command"`
	State      JobState  `json:"state"`
	Attempts   int       `json:"attempts"`
	MaxRetries int       `json:"max_retries"`
	RunAt      time.Time `json:"run_at"`
	EnqueuedAt time.Time `json:"enqueued_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	LastError  string    `json:"last_error,omitempty"`
	ExitCode   *int      `json:"exit_code,omitempty"`
}

// Terminal reports whether the job is in a terminal state.
func (j *Job) Terminal() bool {
	return j.State == JobStateCompleted || j.State == JobStateDead
}

// ExecutionOutcome values classify how a recorded execution attempt settled.
const (
	OutcomeCompleted = "completed"
	OutcomeRetried   = "retried"
	OutcomeDead      = "dead"
)

// Execution is one audited execution attempt of a job. Settlement operations
// persist it in the same transaction that updates the job row, so the audit
// trail and the job state can never disagree.
type Execution struct {
	ID         string    `json:"id"`
	JobID      string    `json:"job_id"`
	WorkerID   string    `json:"worker_id"`
	Attempt    int       `json:"attempt"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	ExitCode   int       `json:"exit_code"`
	// Outcome is assigned by the settlement operation that records the
	// execution; it is ignored on input.
	Outcome string `json:"outcome"`
}

// Summary holds per-state job counts for status reporting.
type Summary struct {
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Dead       int `json:"dead"`
}

// Total returns the number of jobs across all states.
func (s Summary) Total() int {
	return s.Pending + s.Processing + s.Completed + s.Dead
}

// EnqueueRequest is the JSON payload accepted by the enqueue command.
// Exactly two fields, both required; unknown fields are rejected.
type EnqueueRequest struct {
	ID      string `json:"id"`
	Command string `json:"command"`
}

// Validate checks that both required fields are present.
func (r *EnqueueRequest) Validate() error {
	if r.ID == "" {
		return ErrMissingJobID
	}
	if r.Command == "" {
		return ErrMissingJobCommand
	}
	return nil
}

// ParseEnqueueRequest decodes the enqueue JSON strictly: unknown fields,
// malformed JSON, and trailing content are all rejected.
func ParseEnqueueRequest(data []byte) (EnqueueRequest, error) {
	var req EnqueueRequest
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return EnqueueRequest{}, fmt.Errorf("invalid job JSON: %w", err)
	}
	if dec.More() {
		return EnqueueRequest{}, errors.New("invalid job JSON: trailing content after object")
	}
	if err := req.Validate(); err != nil {
		return EnqueueRequest{}, err
	}
	return req, nil
}

// ValidateConfigValue checks that key is recognized and that value parses to
// the form the key requires. Called before every config write.
func ValidateConfigValue(key, value string) error {
	switch key {
	case ConfigKeyMaxRetries:
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("%w: %s must be a non-negative integer, got %q", ErrInvalidConfigValue, key, value)
		}
	case ConfigKeyBackoffBase:
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			return fmt.Errorf("%w: %s must be an integer >= 1, got %q", ErrInvalidConfigValue, key, value)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownConfigKey, key)
	}
	return nil
}

// UTCNow returns the current time in UTC truncated to millisecond precision,
// the resolution every persisted timestamp uses.
func UTCNow() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
