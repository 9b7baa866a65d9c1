package convert

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"vidconv/internal/domain/job"
)

// Registry is the sole owner of job records. Every access goes through one
// mutex and reads return value copies, so callers never observe a record
// mid-update. Progress writes are clamped to keep progress monotonic, and
// terminal records accept no further mutation besides deletion.
type Registry struct {
	mu   sync.Mutex
	jobs map[string]*job.Job
}

// NewRegistry creates an empty in-memory job registry.
func NewRegistry() *Registry {
	return &Registry{jobs: make(map[string]*job.Job)}
}

// Create allocates a new queued job with a fresh id.
func (r *Registry) Create() job.Job {
	record := &job.Job{
		ID:        uuid.NewString(),
		Status:    job.StatusQueued,
		CreatedAt: time.Now(),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[record.ID] = record
	return *record
}

// Get returns a snapshot of the job record.
func (r *Registry) Get(id string) (job.Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.jobs[id]
	if !ok {
		return job.Job{}, false
	}
	return *record, true
}

// SetArtifacts records the filesystem locations owned by the job.
func (r *Registry) SetArtifacts(id string, artifacts job.Artifacts) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.jobs[id]
	if !ok || record.Status.Terminal() {
		return
	}
	record.Artifacts = artifacts
}

// SetStatus advances the job to next and reports whether the transition
// was applied. Backward and post-terminal transitions are rejected.
func (r *Registry) SetStatus(id string, next job.Status) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.jobs[id]
	if !ok || !record.Status.CanTransition(next) {
		return false
	}
	record.Status = next
	return true
}

// SetDuration stores the probed container duration.
func (r *Registry) SetDuration(id string, seconds float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.jobs[id]
	if !ok || record.Status.Terminal() || seconds <= 0 {
		return
	}
	record.Duration = seconds
}

// SetProgress raises the job progress. Writes that would lower progress,
// or touch a terminal record, are dropped.
func (r *Registry) SetProgress(id string, value int) {
	if value < 0 {
		value = 0
	}
	if value > 100 {
		value = 100
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.jobs[id]
	if !ok || record.Status.Terminal() {
		return
	}
	if value > record.Progress {
		record.Progress = value
	}
}

// Finish marks the job done with full progress. Reports whether the
// transition was applied.
func (r *Registry) Finish(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.jobs[id]
	if !ok || !record.Status.CanTransition(job.StatusDone) {
		return false
	}
	record.Status = job.StatusDone
	record.Progress = 100
	return true
}

// Fail marks the job failed with a diagnostic message. Reports whether
// the transition was applied.
func (r *Registry) Fail(id, message string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.jobs[id]
	if !ok || !record.Status.CanTransition(job.StatusError) {
		return false
	}
	record.Status = job.StatusError
	record.Err = message
	return true
}

// Delete removes the job record and returns its final snapshot.
func (r *Registry) Delete(id string) (job.Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.jobs[id]
	if !ok {
		return job.Job{}, false
	}
	delete(r.jobs, id)
	return *record, true
}
