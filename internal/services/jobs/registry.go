package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
)

// Registry owns Job records. All job mutation flows through it so status
// transitions stay legal and observable.
type Registry struct {
	store  interfaces.JobStorage
	logger arbor.ILogger
}

// NewRegistry creates a job registry over the durable store
func NewRegistry(store interfaces.JobStorage, logger arbor.ILogger) *Registry {
	return &Registry{store: store, logger: logger}
}

var _ interfaces.JobCreator = (*Registry)(nil)

// CreateJob persists a new pending job for the given request
func (r *Registry) CreateJob(ctx context.Context, jobType models.JobType, request *models.CrawlRequest) (*models.Job, error) {
	job := models.NewJob(jobType, request)
	if err := r.store.SaveJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to persist job: %w", err)
	}
	r.logger.Info().Str("job_id", job.ID).Str("type", string(jobType)).Msg("Job created")
	return job, nil
}

// Get returns the job by ID
func (r *Registry) Get(ctx context.Context, id string) (*models.Job, error) {
	return r.store.GetJob(ctx, id)
}

// List returns jobs filtered by status ("" = all), newest first
func (r *Registry) List(ctx context.Context, status models.JobStatus, limit int) ([]*models.Job, error) {
	return r.store.ListJobs(ctx, status, limit)
}

// Claim atomically hands the oldest pending job to a worker
func (r *Registry) Claim(ctx context.Context) (*models.Job, error) {
	return r.store.ClaimOldestPending(ctx)
}

// Progress updates the 0-100 progress of a running job
func (r *Registry) Progress(ctx context.Context, id string, progress int) error {
	return r.store.UpdateProgress(ctx, id, progress)
}

// Complete writes the result and marks the job completed
func (r *Registry) Complete(ctx context.Context, id string, result *models.JobResult) error {
	if err := r.store.CompleteJob(ctx, id, result); err != nil {
		return err
	}
	r.logger.Info().Str("job_id", id).Msg("Job completed")
	return nil
}

// Fail writes the error and marks the job failed
func (r *Registry) Fail(ctx context.Context, id string, errMsg string) error {
	if err := r.store.FailJob(ctx, id, errMsg); err != nil {
		return err
	}
	r.logger.Warn().Str("job_id", id).Str("error", errMsg).Msg("Job failed")
	return nil
}

// DeleteTerminalBefore garbage-collects terminal jobs last touched before
// the cutoff and returns how many were removed
func (r *Registry) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int, error) {
	return r.store.DeleteTerminalBefore(ctx, cutoff)
}
