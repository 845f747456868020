package handlers

import (
	"errors"
	"sync"
	"time"

	"github.com/kozaktomas/face-finder/internal/constants"
	"github.com/kozaktomas/face-finder/internal/facematch"
	"github.com/kozaktomas/face-finder/internal/progress"
	"github.com/kozaktomas/face-finder/internal/scan"
)

// JobStatus represents the status of an async scan job.
type JobStatus string

// JobStatus constants define the lifecycle states of a scan job.
const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// isJobTerminal returns true if the job status is a terminal state
func isJobTerminal(status JobStatus) bool {
	return status == JobStatusCompleted || status == JobStatusFailed || status == JobStatusCancelled
}

// JobSnapshot is the serializable state of a scan job.
type JobSnapshot struct {
	ID          string       `json:"id"`
	OwnerID     string       `json:"owner_id"`
	Status      JobStatus    `json:"status"`
	Total       int          `json:"total_photos"`
	Processed   int          `json:"processed_photos"`
	Matches     int          `json:"matches"`
	Errors      []string     `json:"errors,omitempty"`
	Error       string       `json:"error,omitempty"`
	StartedAt   time.Time    `json:"started_at"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
	Result      *scan.Result `json:"result,omitempty"`
}

// ScanJob is an async scan started over HTTP. It forwards scan events to SSE listeners
// and keeps a snapshot for status queries.
type ScanJob struct {
	*progress.Broadcaster

	ID      string
	OwnerID string

	state JobSnapshot
	token *scan.CancellationToken
	mu    sync.RWMutex
}

// Report updates the snapshot and forwards the event to listeners.
func (j *ScanJob) Report(e scan.Event) {
	j.mu.Lock()
	switch e.Type {
	case scan.EventInitializing:
		j.state.Status = JobStatusRunning
		j.state.Total = e.Total
	case scan.EventProcessing:
		j.state.Processed = e.Processed
	case scan.EventMatchFound:
		j.state.Matches++
	case scan.EventError:
		j.state.Errors = append(j.state.Errors, e.PhotoID+": "+e.Error)
	case scan.EventCompleted:
		j.state.Status = JobStatusCompleted
	case scan.EventCancelled:
		j.state.Status = JobStatusCancelled
	case scan.EventFailed:
		j.state.Status = JobStatusFailed
		j.state.Error = e.Error
	}
	if e.Type.Terminal() {
		now := time.Now()
		j.state.CompletedAt = &now
	}
	j.mu.Unlock()

	j.Broadcaster.Report(e)
}

// GetStatus returns the current job status.
func (j *ScanJob) GetStatus() JobStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.state.Status
}

// Cancel requests cooperative cancellation of the scan.
func (j *ScanJob) Cancel() {
	j.token.Cancel()
}

// Snapshot returns a copy safe to serialize while the scan runs.
func (j *ScanJob) Snapshot() JobSnapshot {
	j.mu.RLock()
	defer j.mu.RUnlock()
	s := j.state
	s.Errors = append([]string(nil), j.state.Errors...)
	return s
}

// finish records the scan outcome.
func (j *ScanJob) finish(res *scan.Result, err error) {
	j.mu.Lock()
	now := time.Now()
	j.state.CompletedAt = &now
	switch {
	case err == nil:
		j.state.Status = JobStatusCompleted
		j.state.Result = res
		j.state.Matches = len(res.Matches)
		j.state.Processed = res.Processed
		j.state.Total = res.Total
	case errors.Is(err, facematch.ErrScanCancelled):
		j.state.Status = JobStatusCancelled
	default:
		j.state.Status = JobStatusFailed
		j.state.Error = err.Error()
	}
	j.mu.Unlock()

	// precondition failures end the scan without a terminal event
	j.Broadcaster.Close()
}

// JobManager tracks scan jobs. Each owner has at most one running job.
type JobManager struct {
	jobs     map[string]*ScanJob
	active   map[string]string // owner ID -> job ID
	finished []string
	mu       sync.RWMutex
}

// NewJobManager creates a new job manager
func NewJobManager() *JobManager {
	return &JobManager{
		jobs:   make(map[string]*ScanJob),
		active: make(map[string]string),
	}
}

// CreateJob registers a pending job for the owner, or fails when one is already running.
func (m *JobManager) CreateJob(id, ownerID string) (*ScanJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.active[ownerID]; ok {
		return nil, facematch.ErrScanAlreadyRunning
	}

	job := &ScanJob{
		Broadcaster: progress.NewBroadcaster(),
		ID:          id,
		OwnerID:     ownerID,
		state: JobSnapshot{
			ID:        id,
			OwnerID:   ownerID,
			Status:    JobStatusPending,
			StartedAt: time.Now(),
		},
		token: scan.NewCancellationToken(),
	}
	m.jobs[id] = job
	m.active[ownerID] = id
	return job, nil
}

// GetJob returns a job by ID
func (m *JobManager) GetJob(id string) *ScanJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.jobs[id]
}

// ActiveJob returns the owner's running job, if any.
func (m *JobManager) ActiveJob(ownerID string) *ScanJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id, ok := m.active[ownerID]; ok {
		return m.jobs[id]
	}
	return nil
}

// FinishJob releases the owner slot and prunes old finished jobs.
func (m *JobManager) FinishJob(job *ScanJob) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active[job.OwnerID] == job.ID {
		delete(m.active, job.OwnerID)
	}
	m.finished = append(m.finished, job.ID)
	for len(m.finished) > constants.FinishedJobRetention {
		delete(m.jobs, m.finished[0])
		m.finished = m.finished[1:]
	}
}
