// Package job provides the Job aggregate for one end-to-end clipping run:
// its tagged source and partition, its state machine, the take-once
// registry, and the orchestrator that drives ingest, split and enrichment.
package job

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/clipforge/clipforge-api/internal/job/id"
	"github.com/clipforge/clipforge-api/internal/segment"
)

// Static errors for the Job aggregate.
var (
	// ErrInvalidTransition is returned when an invalid state transition is attempted.
	ErrInvalidTransition = errors.New("job: invalid state transition")
	// ErrInvalidSource is returned when the source union does not populate
	// exactly one variant.
	ErrInvalidSource = errors.New("job: exactly one of uploaded key or fetch URL must be set")
)

// State represents the current state of a Job.
type State string

const (
	// StateCreated indicates the job exists but its stream has not been consumed.
	StateCreated State = "CREATED"
	// StateRunning indicates the pipeline is executing.
	StateRunning State = "RUNNING"
	// StateSucceeded indicates the run reached the success marker.
	StateSucceeded State = "SUCCEEDED"
	// StateFailed indicates the run stopped on a failure or cancellation.
	StateFailed State = "FAILED"
)

// validTransitions defines which state transitions are allowed.
// Both terminal states are final.
var validTransitions = map[State][]State{
	StateCreated:   {StateRunning},
	StateRunning:   {StateSucceeded, StateFailed},
	StateSucceeded: {},
	StateFailed:    {},
}

// canTransition checks if a transition from one state to another is valid.
func canTransition(from, to State) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Source is a tagged union naming where the video comes from.
// Exactly one field must be populated.
type Source struct {
	// UploadedKey is the storage key of an already-uploaded object.
	UploadedKey string
	// FetchURL is a remote URL to download the source from.
	FetchURL string
}

// Validate checks that exactly one source variant is populated.
func (s Source) Validate() error {
	if (s.UploadedKey == "") == (s.FetchURL == "") {
		return ErrInvalidSource
	}
	return nil
}

// String renders the source for progress lines.
func (s Source) String() string {
	if s.UploadedKey != "" {
		return "key " + s.UploadedKey
	}
	return "url " + s.FetchURL
}

// Job represents one end-to-end clipping run.
type Job struct {
	mu sync.RWMutex

	// ID is the unique identifier for this job, never reused.
	ID string
	// Source names where the video comes from.
	Source Source
	// Partition selects how the timeline is divided.
	Partition segment.Partition
	// State is the current job state.
	State State
	// Error contains the failure cause if the job failed.
	Error string
	// CreatedAt is when the job was created.
	CreatedAt time.Time
	// StartedAt is when its stream was first consumed.
	StartedAt time.Time
	// CompletedAt is when the run reached a terminal state.
	CompletedAt time.Time
}

// New creates a Job in Created state after validating both unions.
func New(source Source, partition segment.Partition) (*Job, error) {
	if err := source.Validate(); err != nil {
		return nil, err
	}
	if err := partition.Validate(); err != nil {
		return nil, err
	}
	return &Job{
		ID:        id.Generate(),
		Source:    source,
		Partition: partition,
		State:     StateCreated,
		CreatedAt: time.Now(),
	}, nil
}

// TransitionTo attempts to change the job state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (j *Job) TransitionTo(state State) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !canTransition(j.State, state) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.State, state)
	}

	j.State = state
	switch state {
	case StateRunning:
		j.StartedAt = time.Now()
	case StateSucceeded, StateFailed:
		j.CompletedAt = time.Now()
	}
	return nil
}

// Start transitions the job from Created to Running. It happens exactly
// once, on first consumption of the progress stream.
func (j *Job) Start() error {
	return j.TransitionTo(StateRunning)
}

// Succeed transitions the job to its terminal success state.
func (j *Job) Succeed() error {
	return j.TransitionTo(StateSucceeded)
}

// Fail transitions the job to its terminal failure state with a cause.
func (j *Job) Fail(cause string) error {
	j.mu.Lock()
	j.Error = cause
	j.mu.Unlock()
	return j.TransitionTo(StateFailed)
}

// CurrentState returns the job state (thread-safe).
func (j *Job) CurrentState() State {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.State
}

// IsTerminal reports whether the job reached a terminal state.
func (j *Job) IsTerminal() bool {
	s := j.CurrentState()
	return s == StateSucceeded || s == StateFailed
}
