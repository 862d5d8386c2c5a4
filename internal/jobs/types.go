package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeWriteBack persists a recomputed derived value.
	JobTypeWriteBack JobType = "write_back"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting to be processed.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the job is currently being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the job completed successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job failed.
	JobStatusFailed JobStatus = "failed"
	// JobStatusRetrying indicates the job failed and is being retried.
	JobStatusRetrying JobStatus = "retrying"
)

// Entity names the derived field a write-back targets.
type Entity string

const (
	EntityAccountBalance       Entity = "account_balance"
	EntityCreditCardUsedAmount Entity = "credit_card_used_amount"
)

// Valid reports whether e is a known derived field.
func (e Entity) Valid() bool {
	return e == EntityAccountBalance || e == EntityCreditCardUsedAmount
}

// ErrQueueFull is returned by a non-blocking publish when the buffer is full.
var ErrQueueFull = errors.New("queue is full")

// ErrQueueClosed is returned when publishing to a stopped queue.
var ErrQueueClosed = errors.New("queue is closed")

// ErrJobNotFound is returned by a JobStore for an unknown job id.
var ErrJobNotFound = errors.New("job not found")

// WriteBackJob carries a corrected derived value to persist.
type WriteBackJob struct {
	// JobID is the unique identifier for this job.
	JobID string `json:"job_id"`

	// Entity is the derived field being corrected.
	Entity Entity `json:"entity"`

	// EntityID is the account or credit card id.
	EntityID string `json:"entity_id"`

	// Value is the recomputed value to store.
	Value decimal.Decimal `json:"value"`

	// Previous is the stored value that drifted.
	Previous decimal.Decimal `json:"previous"`

	// Status is the current status of the job.
	Status JobStatus `json:"status"`

	// CreatedAt is when the job was created.
	CreatedAt time.Time `json:"created_at"`

	// StartedAt is when the job started processing.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt is when the job completed (success or failure).
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error contains error details if the job failed.
	Error string `json:"error,omitempty"`

	// RetryCount is the number of times this job has been retried.
	RetryCount int `json:"retry_count"`

	// MaxRetries is the maximum number of retries allowed.
	MaxRetries int `json:"max_retries"`
}

// Job is a generic interface for all job types.
type Job interface {
	// GetID returns the unique job identifier.
	GetID() string

	// GetType returns the job type.
	GetType() JobType

	// GetStatus returns the current job status.
	GetStatus() JobStatus
}

// GetID implements the Job interface.
func (j *WriteBackJob) GetID() string {
	return j.JobID
}

// GetType implements the Job interface.
func (j *WriteBackJob) GetType() JobType {
	return JobTypeWriteBack
}

// GetStatus implements the Job interface.
func (j *WriteBackJob) GetStatus() JobStatus {
	return j.Status
}

// Publisher defines the interface for publishing jobs to a queue.
type Publisher interface {
	// PublishWriteBack enqueues a write-back job without waiting for it to run.
	PublishWriteBack(ctx context.Context, job *WriteBackJob) error

	// Close closes the publisher and releases resources.
	Close() error
}

// Consumer defines the interface for consuming jobs from a queue.
type Consumer interface {
	// Start begins consuming jobs from the queue.
	// The handler function is called for each job received.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for queued and in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler is a function that processes a job.
// It should return an error if the job failed and should be retried.
type JobHandler func(ctx context.Context, job Job) error

// JobStore defines the interface for storing and retrieving job status.
type JobStore interface {
	// SaveJob saves or updates a job's state.
	SaveJob(ctx context.Context, job *WriteBackJob) error

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID string) (*WriteBackJob, error)

	// ListJobs retrieves jobs with optional filtering.
	ListJobs(ctx context.Context, filter JobFilter) ([]*WriteBackJob, error)

	// UpdateJobStatus updates the status of a job.
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	// Entity filters jobs by derived field.
	Entity Entity

	// EntityID filters jobs by account or card id.
	EntityID string

	// Status filters jobs by status.
	Status JobStatus

	// Limit limits the number of results.
	Limit int

	// Offset for pagination.
	Offset int
}
