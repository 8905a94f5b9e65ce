package interfaces

import (
	"context"

	"github.com/ternarybob/colligo/internal/models"
)

// Crawler runs one URL through the full pipeline: navigate, optional script,
// capture, extract, store.
type Crawler interface {
	Crawl(ctx context.Context, request *models.CrawlRequest) *models.CrawlResult
}

// Dispatcher fronts the crawler: cheap requests run inline, expensive ones
// become jobs.
type Dispatcher interface {
	Dispatch(ctx context.Context, request *models.CrawlRequest) (*models.DispatchResponse, error)
}

// JobCreator is the slice of the job registry the dispatcher needs: create a
// pending job and hand back its record.
type JobCreator interface {
	CreateJob(ctx context.Context, jobType models.JobType, request *models.CrawlRequest) (*models.Job, error)
}

// ArtifactWriter persists crawl outputs and hands back references
type ArtifactWriter interface {
	Write(ctx context.Context, userID string, result *models.CrawlResult) []models.ArtifactReference
	Read(ctx context.Context, userID, filename string) ([]byte, error)
}
