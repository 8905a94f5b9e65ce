package badger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// ErrJobNotFound is returned when a job ID has no record
var ErrJobNotFound = fmt.Errorf("job not found")

// ErrIllegalTransition is returned for status changes outside
// pending -> running -> {completed, failed}
var ErrIllegalTransition = fmt.Errorf("illegal job status transition")

// JobStorage persists jobs in badgerhold. claimMu serializes the
// pending->running claim so concurrent workers never pick the same job.
type JobStorage struct {
	db      *BadgerDB
	logger  arbor.ILogger
	claimMu sync.Mutex
}

// NewJobStorage creates a badgerhold-backed job store
func NewJobStorage(db *BadgerDB, logger arbor.ILogger) interfaces.JobStorage {
	return &JobStorage{
		db:     db,
		logger: logger,
	}
}

// SaveJob inserts or updates a job record
func (s *JobStorage) SaveJob(ctx context.Context, job *models.Job) error {
	if err := job.Validate(); err != nil {
		return fmt.Errorf("invalid job: %w", err)
	}
	job.UpdatedAt = time.Now().UTC()
	if err := s.db.Store().Upsert(job.ID, job); err != nil {
		return fmt.Errorf("failed to save job %s: %w", job.ID, err)
	}
	return nil
}

// GetJob retrieves a job by ID
func (s *JobStorage) GetJob(ctx context.Context, id string) (*models.Job, error) {
	var job models.Job
	if err := s.db.Store().Get(id, &job); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job %s: %w", id, err)
	}
	return &job, nil
}

// UpdateStatus transitions a job, rejecting anything outside the legal
// lifecycle.
func (s *JobStorage) UpdateStatus(ctx context.Context, id string, status models.JobStatus) error {
	job, err := s.GetJob(ctx, id)
	if err != nil {
		return err
	}
	if !models.CanTransition(job.Status, status) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, job.Status, status)
	}
	job.Status = status
	return s.SaveJob(ctx, job)
}

// UpdateProgress sets the 0-100 progress value
func (s *JobStorage) UpdateProgress(ctx context.Context, id string, progress int) error {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	job, err := s.GetJob(ctx, id)
	if err != nil {
		return err
	}
	job.Progress = progress
	return s.SaveJob(ctx, job)
}

// CompleteJob writes the result and transitions to completed
func (s *JobStorage) CompleteJob(ctx context.Context, id string, result *models.JobResult) error {
	job, err := s.GetJob(ctx, id)
	if err != nil {
		return err
	}
	if !models.CanTransition(job.Status, models.JobStatusCompleted) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, job.Status, models.JobStatusCompleted)
	}
	job.Status = models.JobStatusCompleted
	job.Progress = 100
	job.Result = result
	return s.SaveJob(ctx, job)
}

// FailJob writes the error and transitions to failed
func (s *JobStorage) FailJob(ctx context.Context, id string, errMsg string) error {
	job, err := s.GetJob(ctx, id)
	if err != nil {
		return err
	}
	if !models.CanTransition(job.Status, models.JobStatusFailed) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, job.Status, models.JobStatusFailed)
	}
	job.Status = models.JobStatusFailed
	job.Error = errMsg
	return s.SaveJob(ctx, job)
}

// ClaimOldestPending atomically claims the oldest pending job. The mutex
// plus the re-check of status inside the critical section is the CAS.
func (s *JobStorage) ClaimOldestPending(ctx context.Context) (*models.Job, error) {
	s.claimMu.Lock()
	defer s.claimMu.Unlock()

	var jobs []*models.Job
	err := s.db.Store().Find(&jobs,
		badgerhold.Where("Status").Eq(models.JobStatusPending).SortBy("CreatedAt").Limit(1))
	if err != nil {
		return nil, fmt.Errorf("failed to query pending jobs: %w", err)
	}
	if len(jobs) == 0 {
		return nil, nil
	}

	job := jobs[0]
	if job.Status != models.JobStatusPending {
		return nil, nil
	}

	job.Status = models.JobStatusRunning
	if err := s.SaveJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to claim job %s: %w", job.ID, err)
	}

	s.logger.Debug().Str("job_id", job.ID).Str("type", string(job.Type)).Msg("Claimed pending job")
	return job, nil
}

// ListJobs returns jobs filtered by status ("" = all), newest first
func (s *JobStorage) ListJobs(ctx context.Context, status models.JobStatus, limit int) ([]*models.Job, error) {
	query := badgerhold.Where("ID").Ne("")
	if status != "" {
		query = badgerhold.Where("Status").Eq(status)
	}
	query = query.SortBy("CreatedAt").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}

	var jobs []*models.Job
	if err := s.db.Store().Find(&jobs, query); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return jobs, nil
}

// DeleteTerminalBefore removes completed/failed jobs last updated before the
// cutoff.
func (s *JobStorage) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int, error) {
	var jobs []*models.Job
	err := s.db.Store().Find(&jobs,
		badgerhold.Where("Status").In(models.JobStatusCompleted, models.JobStatusFailed))
	if err != nil {
		return 0, fmt.Errorf("failed to query terminal jobs: %w", err)
	}

	deleted := 0
	for _, job := range jobs {
		if job.UpdatedAt.After(cutoff) {
			continue
		}
		if err := s.db.Store().Delete(job.ID, &models.Job{}); err != nil {
			if err == badgerhold.ErrNotFound {
				continue
			}
			return deleted, fmt.Errorf("failed to delete job %s: %w", job.ID, err)
		}
		deleted++
	}
	return deleted, nil
}
