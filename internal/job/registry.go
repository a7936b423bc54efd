package job

import (
	"context"
	"errors"
	"sync"
)

// ErrJobNotFound is returned when a job cannot be found by ID, including
// when its stream was already consumed once.
var ErrJobNotFound = errors.New("job: not found")

// Registry is the injectable in-memory job registry. Entries live from
// creation until the progress stream is first consumed: Take removes the
// entry, so a second consumption attempt reports not-found instead of
// resuming.
type Registry interface {
	// Put registers a created job.
	Put(ctx context.Context, j *Job) error

	// Take removes and returns the job with the given ID.
	// Returns ErrJobNotFound if it does not exist or was already taken.
	Take(ctx context.Context, id string) (*Job, error)
}

// Compile-time check that MemoryRegistry implements Registry.
var _ Registry = (*MemoryRegistry)(nil)

// MemoryRegistry is a mutex-guarded map. Entries are small and held
// briefly, so a single lock is sufficient.
type MemoryRegistry struct {
	mu   sync.Mutex
	jobs map[string]*Job
}

// NewMemoryRegistry creates an empty registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{jobs: make(map[string]*Job)}
}

// Put registers a created job.
func (r *MemoryRegistry) Put(_ context.Context, j *Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[j.ID] = j
	return nil
}

// Take removes and returns a job, enforcing at-most-once consumption.
func (r *MemoryRegistry) Take(_ context.Context, id string) (*Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	delete(r.jobs, id)
	return j, nil
}
