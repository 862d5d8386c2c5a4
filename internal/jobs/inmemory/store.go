package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dvloznov/finance-ledger/internal/jobs"
)

// DefaultRetention is how many finished write-back jobs a Store keeps.
const DefaultRetention = 1000

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithRetention caps the number of completed or failed jobs kept; the oldest
// finished jobs are evicted first. Zero keeps every job.
func WithRetention(n int) StoreOption {
	return func(s *Store) { s.retention = n }
}

// Store records write-back jobs in memory so the API can show which drift
// corrections ran. Every reconciled read can publish a job, so finished jobs
// are evicted past the retention limit. Safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	jobs      map[string]*jobs.WriteBackJob
	retention int
	now       func() time.Time
}

// NewStore creates an empty job store with DefaultRetention.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		jobs:      make(map[string]*jobs.WriteBackJob),
		retention: DefaultRetention,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SaveJob implements jobs.JobStore. A write-back must name a known entity
// kind and id.
func (s *Store) SaveJob(ctx context.Context, job *jobs.WriteBackJob) error {
	switch {
	case job.JobID == "":
		return fmt.Errorf("SaveJob: job id is required")
	case !job.Entity.Valid():
		return fmt.Errorf("SaveJob: job %s: unknown entity %q", job.JobID, job.Entity)
	case job.EntityID == "":
		return fmt.Errorf("SaveJob: job %s: entity id is required", job.JobID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *job
	s.jobs[job.JobID] = &cp
	if finished(cp.Status) {
		s.evict()
	}
	return nil
}

// GetJob implements jobs.JobStore.
func (s *Store) GetJob(ctx context.Context, jobID string) (*jobs.WriteBackJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", jobs.ErrJobNotFound, jobID)
	}
	cp := *job
	return &cp, nil
}

// ListJobs implements jobs.JobStore. Jobs come back oldest first.
func (s *Store) ListJobs(ctx context.Context, filter jobs.JobFilter) ([]*jobs.WriteBackJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*jobs.WriteBackJob
	for _, job := range s.jobs {
		if filter.Entity != "" && job.Entity != filter.Entity {
			continue
		}
		if filter.EntityID != "" && job.EntityID != filter.EntityID {
			continue
		}
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		cp := *job
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].JobID < result[j].JobID
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return []*jobs.WriteBackJob{}, nil
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}
	return result, nil
}

// UpdateJobStatus implements jobs.JobStore. Moving a job to completed or
// failed stamps CompletedAt when the queue has not already done so.
func (s *Store) UpdateJobStatus(ctx context.Context, jobID string, status jobs.JobStatus, errorMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return fmt.Errorf("%w: %s", jobs.ErrJobNotFound, jobID)
	}

	job.Status = status
	if errorMsg != "" {
		job.Error = errorMsg
	}
	if finished(status) {
		if job.CompletedAt == nil {
			now := s.now()
			job.CompletedAt = &now
		}
		s.evict()
	}
	return nil
}

// evict drops the oldest finished jobs beyond the retention limit. Callers
// hold s.mu.
func (s *Store) evict() {
	if s.retention <= 0 {
		return
	}

	var done []*jobs.WriteBackJob
	for _, job := range s.jobs {
		if finished(job.Status) {
			done = append(done, job)
		}
	}
	if len(done) <= s.retention {
		return
	}

	sort.Slice(done, func(i, j int) bool {
		ti, tj := finishedAt(done[i]), finishedAt(done[j])
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return done[i].JobID < done[j].JobID
	})
	for _, job := range done[:len(done)-s.retention] {
		delete(s.jobs, job.JobID)
	}
}

func finished(status jobs.JobStatus) bool {
	return status == jobs.JobStatusCompleted || status == jobs.JobStatusFailed
}

func finishedAt(job *jobs.WriteBackJob) time.Time {
	if job.CompletedAt != nil {
		return *job.CompletedAt
	}
	return job.CreatedAt
}

var _ jobs.JobStore = (*Store)(nil)
