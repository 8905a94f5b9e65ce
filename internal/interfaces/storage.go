package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/colligo/internal/models"
)

// BlobStorage is the narrow blob interface crawl artifacts are written
// through. A filesystem implementation and a cloud object store must agree
// bit-for-bit on paths; retrieval URLs differ in prefix only.
type BlobStorage interface {
	// Save writes bytes under the given path, creating parents as needed
	Save(ctx context.Context, path string, data []byte) error

	// Get reads the bytes stored under path
	Get(ctx context.Context, path string) ([]byte, error)

	// Delete removes the object; deleting a missing object is not an error
	Delete(ctx context.Context, path string) error

	// List returns all stored paths under the given prefix
	List(ctx context.Context, prefix string) ([]string, error)

	// SignedURL returns a retrieval URL for the object
	SignedURL(path string) string
}

// JobStorage persists async jobs. Status transitions are enforced here so
// that no caller can move a job backwards.
type JobStorage interface {
	// SaveJob inserts or updates a job record
	SaveJob(ctx context.Context, job *models.Job) error

	// GetJob retrieves a job by ID, ErrJobNotFound if missing
	GetJob(ctx context.Context, id string) (*models.Job, error)

	// UpdateStatus transitions a job, rejecting illegal transitions
	UpdateStatus(ctx context.Context, id string, status models.JobStatus) error

	// UpdateProgress sets the 0-100 progress value
	UpdateProgress(ctx context.Context, id string, progress int) error

	// CompleteJob writes the result and transitions to completed
	CompleteJob(ctx context.Context, id string, result *models.JobResult) error

	// FailJob writes the error and transitions to failed
	FailJob(ctx context.Context, id string, errMsg string) error

	// ClaimOldestPending atomically selects the oldest pending job and
	// transitions it to running. Returns nil when no pending job exists.
	// The claim is a CAS: two concurrent workers never receive the same job.
	ClaimOldestPending(ctx context.Context) (*models.Job, error)

	// ListJobs returns jobs filtered by status ("" = all), newest first
	ListJobs(ctx context.Context, status models.JobStatus, limit int) ([]*models.Job, error)

	// DeleteTerminalBefore removes completed/failed jobs last updated before
	// the cutoff; returns the number removed
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// KeyValueStorage is a small durable KV store for runtime settings
type KeyValueStorage interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	GetAll(ctx context.Context) (map[string]string, error)
}

// StorageManager bundles the stores and owns the underlying connection
type StorageManager interface {
	JobStorage() JobStorage
	KVStorage() KeyValueStorage
	Close() error
}
