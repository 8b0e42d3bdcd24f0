package interfaces

import (
	"context"
	"time"
)

// JobStatus represents the current status of a scheduled job
type JobStatus struct {
	Name        string     `json:"name"`
	Enabled     bool       `json:"enabled"`
	Schedule    string     `json:"schedule"`
	Description string     `json:"description"`
	LastRun     *time.Time `json:"lastRun,omitempty"`
	NextRun     *time.Time `json:"nextRun,omitempty"`
	IsRunning   bool       `json:"isRunning"`
	LastError   string     `json:"lastError,omitempty"`
	Runs        int64      `json:"runs"`
	Skipped     int64      `json:"skipped"`
}

// JobHandler is the work performed by a scheduled job
type JobHandler func(ctx context.Context) error

// SchedulerService manages cron-based background jobs (cache purge, market warm-up)
type SchedulerService interface {
	// Start the cron loop
	Start() error

	// Stop the cron loop and cancel running jobs
	Stop() error

	// IsRunning returns true if scheduler is active
	IsRunning() bool

	// RegisterJob registers a new job with the scheduler
	RegisterJob(name, schedule, description string, handler JobHandler) error

	// EnableJob enables a disabled job
	EnableJob(name string) error

	// DisableJob disables an enabled job
	DisableJob(name string) error

	// TriggerJob runs a job immediately in the background
	TriggerJob(name string) error

	// GetJobStatus returns the status of a specific job
	GetJobStatus(name string) (*JobStatus, error)

	// GetAllJobStatuses returns all job statuses
	GetAllJobStatuses() map[string]*JobStatus
}
