package mcp

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Sriram-PR/page-mirror/pkg/models"
)

// JobStatus represents the current state of a mirror job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// IsActive reports whether the job has not finished yet
func (s JobStatus) IsActive() bool {
	return s == JobStatusPending || s == JobStatusRunning
}

// Job represents a background page mirror
type Job struct {
	ID            string    `json:"id"`
	PageURL       string    `json:"page_url"`
	OutputDir     string    `json:"output_dir"`
	Status        JobStatus `json:"status"`
	StartedAt     time.Time `json:"started_at"`
	CompletedAt   time.Time `json:"completed_at,omitempty"`
	AssetsPlanned int64     `json:"assets_planned"`
	AssetsDone    int64     `json:"assets_done"`
	AssetsFailed  int64     `json:"assets_failed"`
	ErrorType     string    `json:"error_type,omitempty"`
	ErrorMessage  string    `json:"error_message,omitempty"`

	// Internal fields
	result *models.MirrorResult
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// JobManager manages background mirror jobs
type JobManager struct {
	jobs   map[string]*Job
	mu     sync.RWMutex
	byPage map[string]string // page key -> jobID for active jobs
}

// NewJobManager creates a new job manager
func NewJobManager() *JobManager {
	return &JobManager{
		jobs:   make(map[string]*Job),
		byPage: make(map[string]string),
	}
}

// CreateJob creates a job mirroring pageURL into outputDir.
// If a job for the same page and directory is still active it is returned
// instead, with created set to false.
func (m *JobManager) CreateJob(pageURL, outputDir string) (job *Job, created bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := pageKey(pageURL, outputDir)
	if existingJobID, exists := m.byPage[key]; exists {
		existingJob := m.jobs[existingJobID]
		if existingJob != nil && existingJob.Status.IsActive() {
			return existingJob, false
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	job = &Job{
		ID:        uuid.New().String(),
		PageURL:   pageURL,
		OutputDir: outputDir,
		Status:    JobStatusPending,
		StartedAt: time.Now(),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	m.jobs[job.ID] = job
	m.byPage[key] = job.ID
	return job, true
}

func pageKey(pageURL, outputDir string) string {
	return outputDir + "\x00" + pageURL
}

// GetJob returns a copy of the job, or nil if unknown
func (m *JobManager) GetJob(jobID string) *Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, exists := m.jobs[jobID]
	if !exists {
		return nil
	}
	snapshot := *job
	return &snapshot
}

// Result returns the mirror result of a completed job
func (m *JobManager) Result(jobID string) *models.MirrorResult {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if job, exists := m.jobs[jobID]; exists {
		return job.result
	}
	return nil
}

// Done returns a channel closed when the job's runner has finished
func (m *JobManager) Done(jobID string) <-chan struct{} {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if job, exists := m.jobs[jobID]; exists {
		return job.done
	}
	closed := make(chan struct{})
	close(closed)
	return closed
}

// Start marks a job as running
func (m *JobManager) Start(jobID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, exists := m.jobs[jobID]; exists && job.Status == JobStatusPending {
		job.Status = JobStatusRunning
	}
}

// Finish records the outcome of a job and releases its waiters.
// It must be called exactly once per job. A cancelled job stays cancelled.
func (m *JobManager) Finish(jobID string, result *models.MirrorResult, errType, errMsg string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, exists := m.jobs[jobID]
	if !exists {
		return
	}
	if job.Status.IsActive() {
		if errMsg != "" {
			job.Status = JobStatusFailed
		} else {
			job.Status = JobStatusCompleted
		}
		job.CompletedAt = time.Now()
	}
	job.result = result
	job.ErrorType = errType
	job.ErrorMessage = errMsg
	m.releasePage(job)
	job.cancel()
	close(job.done)
}

// releasePage frees the page slot if job still holds it. Caller holds m.mu.
func (m *JobManager) releasePage(job *Job) {
	key := pageKey(job.PageURL, job.OutputDir)
	if m.byPage[key] == job.ID {
		delete(m.byPage, key)
	}
}

// AddPlanned adds to the number of resources a job will fetch
func (m *JobManager) AddPlanned(jobID string, n int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, exists := m.jobs[jobID]; exists {
		job.AssetsPlanned += n
	}
}

// RecordAsset counts one finished resource fetch
func (m *JobManager) RecordAsset(jobID string, failed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, exists := m.jobs[jobID]; exists {
		job.AssetsDone++
		if failed {
			job.AssetsFailed++
		}
	}
}

// CancelJob cancels an active job
func (m *JobManager) CancelJob(jobID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if job, exists := m.jobs[jobID]; exists && job.Status.IsActive() {
		job.cancel()
		job.Status = JobStatusCancelled
		job.CompletedAt = time.Now()
		m.releasePage(job)
		return true
	}
	return false
}

// CancelAll cancels all active jobs
func (m *JobManager) CancelAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, job := range m.jobs {
		if job.Status.IsActive() {
			job.cancel()
			job.Status = JobStatusCancelled
			job.CompletedAt = time.Now()
		}
	}
	m.byPage = make(map[string]string)
}

// ListJobs returns a snapshot of all jobs
func (m *JobManager) ListJobs() []*Job {
	m.mu.RLock()
	defer m.mu.RUnlock()

	jobs := make([]*Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		snapshot := *job
		jobs = append(jobs, &snapshot)
	}
	return jobs
}

// GetContext returns the context for a job (for running the mirror)
func (m *JobManager) GetContext(jobID string) context.Context {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if job, exists := m.jobs[jobID]; exists {
		return job.ctx
	}
	return context.Background()
}

// jobObserver feeds rewriter progress into the job counters
type jobObserver struct {
	jobs  *JobManager
	jobID string
}

func (o jobObserver) AssetsPlanned(n int) { o.jobs.AddPlanned(o.jobID, int64(n)) }

func (o jobObserver) AssetDone(_ models.LocalAsset, err error) {
	o.jobs.RecordAsset(o.jobID, err != nil)
}
