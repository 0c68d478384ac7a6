// Package jobs is the process-wide table of in-flight long operations
// (spec §4.6, entity UploadJob). It is deliberately separate from the
// upload orchestrator: this package only tracks state for lookup,
// cancellation, and progress reporting; internal/upload drives the
// actual state machine.
package jobs

import (
	"sync"
	"time"
)

// Phase is one state in the upload orchestrator's state machine (spec
// §4.3, "State machine").
type Phase string

const (
	PhaseInit       Phase = "init"
	PhasePurging    Phase = "purging"
	PhaseChunking   Phase = "chunking"
	PhaseUploading  Phase = "uploading"
	PhaseSweeping   Phase = "sweeping"
	PhaseFinalizing Phase = "finalizing"
	PhaseDone       Phase = "done"
	PhaseFailed     Phase = "failed"
)

// Terminal reports whether p is a terminal phase (spec §4.3: "Terminal:
// Done, Failed").
func (p Phase) Terminal() bool {
	return p == PhaseDone || p == PhaseFailed
}

// Progress is one progress event (spec §4.3, "Progress").
type Progress struct {
	Phase          Phase
	CompletedUnits int
	TotalUnits     int
	LastActivityAt time.Time
}

// Job is the in-memory record for one UploadJob (spec §3, entity
// UploadJob).
type Job struct {
	RequestID    string
	TargetPageID string
	Phase        Phase
	Progress     Progress
	Deadline     time.Time
	Warnings     []string
	FailureKind  string
	FailureMsg   string

	mu        sync.Mutex
	cancelled bool
}

// Cancelled reports whether cancel(request-id) has been called on this
// job (spec §4.6).
func (j *Job) Cancelled() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.cancelled
}

func (j *Job) markCancelled() {
	j.mu.Lock()
	j.cancelled = true
	j.mu.Unlock()
}

// Registry is the mapping request-id → Job, protected for concurrent
// access (spec §4.6; grounded on the teacher's eventbus's
// RWMutex-guarded subscriber map).
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]*Job
	ttl  time.Duration

	stopSweep chan struct{}
	sweepOnce sync.Once
}

// NewRegistry builds a Registry. ttl is how long a terminal job is kept
// before the background sweeper evicts it (spec §4.6, default 10 min).
func NewRegistry(ttl time.Duration) *Registry {
	return &Registry{
		jobs:      make(map[string]*Job),
		ttl:       ttl,
		stopSweep: make(chan struct{}),
	}
}

// Create registers a new Job for requestID. It is an error at the
// caller level to reuse a request id while a prior job with that id is
// still registered; Create overwrites unconditionally since the spec
// guarantees "exactly one job per (request id)" is the caller's
// responsibility to uphold.
func (r *Registry) Create(requestID, targetPageID string, deadline time.Time) *Job {
	job := &Job{
		RequestID:    requestID,
		TargetPageID: targetPageID,
		Phase:        PhaseInit,
		Deadline:     deadline,
		Progress:     Progress{Phase: PhaseInit, LastActivityAt: deadline},
	}
	r.mu.Lock()
	r.jobs[requestID] = job
	r.mu.Unlock()
	return job
}

// Get returns the job for requestID, if any.
func (r *Registry) Get(requestID string) (*Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[requestID]
	return job, ok
}

// Cancel flips requestID's cancellation flag (spec §4.6: "cancel(request
// id) ... flips the job's cancellation flag"). Cancelling one job never
// affects another (spec §3 invariant).
func (r *Registry) Cancel(requestID string) bool {
	job, ok := r.Get(requestID)
	if !ok {
		return false
	}
	job.markCancelled()
	return true
}

// StartSweeper launches the background goroutine that evicts terminal
// jobs older than ttl, checking every interval. Call Stop to halt it.
func (r *Registry) StartSweeper(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.sweep()
			case <-r.stopSweep:
				return
			}
		}
	}()
}

// Stop halts the background sweeper. Safe to call multiple times.
func (r *Registry) Stop() {
	r.sweepOnce.Do(func() { close(r.stopSweep) })
}

func (r *Registry) sweep() {
	cutoff := time.Now().Add(-r.ttl)
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, job := range r.jobs {
		job.mu.Lock()
		terminal := job.Phase.Terminal()
		lastActivity := job.Progress.LastActivityAt
		job.mu.Unlock()
		if terminal && lastActivity.Before(cutoff) {
			delete(r.jobs, id)
		}
	}
}

// Len reports how many jobs are currently registered (used by /api/status
// and tests).
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}

// UpdateProgress records a progress event on job and bumps its phase
// (spec §4.3, "Progress").
func (j *Job) UpdateProgress(phase Phase, completed, total int, at time.Time) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Phase = phase
	j.Progress = Progress{Phase: phase, CompletedUnits: completed, TotalUnits: total, LastActivityAt: at}
}

// Fail transitions job to Failed, recording the error kind and message
// (spec §4.3: "with transitions to Failed from any state").
func (j *Job) Fail(kind, msg string, at time.Time) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Phase = PhaseFailed
	j.FailureKind = kind
	j.FailureMsg = msg
	j.Progress.LastActivityAt = at
}

// AddWarning appends a non-fatal warning to the job record.
func (j *Job) AddWarning(w string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Warnings = append(j.Warnings, w)
}

// Snapshot returns a value copy of the job's externally-visible fields,
// safe to serialize without holding the job's lock.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	return JobSnapshot{
		RequestID:    j.RequestID,
		TargetPageID: j.TargetPageID,
		Phase:        j.Phase,
		Progress:     j.Progress,
		Deadline:     j.Deadline,
		Warnings:     append([]string(nil), j.Warnings...),
		FailureKind:  j.FailureKind,
		FailureMsg:   j.FailureMsg,
		Cancelled:    j.cancelled,
	}
}

// JobSnapshot is a torn-read-free view of a Job for handlers/serialization.
type JobSnapshot struct {
	RequestID    string
	TargetPageID string
	Phase        Phase
	Progress     Progress
	Deadline     time.Time
	Warnings     []string
	FailureKind  string
	FailureMsg   string
	Cancelled    bool
}
