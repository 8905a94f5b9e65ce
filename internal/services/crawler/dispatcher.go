package crawler

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
)

// Dispatcher fronts the orchestrator: requests estimated to finish under the
// threshold run inline, everything else becomes a job for the async worker.
// Batches of more than one URL are always async.
type Dispatcher struct {
	config    *common.DispatcherConfig
	estimator *Estimator
	crawler   interfaces.Crawler
	jobs      interfaces.JobCreator
	logger    arbor.ILogger
}

// NewDispatcher creates the sync/async dispatcher
func NewDispatcher(config *common.DispatcherConfig, estimator *Estimator, crawler interfaces.Crawler, jobs interfaces.JobCreator, logger arbor.ILogger) *Dispatcher {
	return &Dispatcher{
		config:    config,
		estimator: estimator,
		crawler:   crawler,
		jobs:      jobs,
		logger:    logger,
	}
}

var _ interfaces.Dispatcher = (*Dispatcher)(nil)

// Dispatch routes one request. Inline results come back on Result; async
// dispatch returns a job handle with the estimate and a polling path.
func (d *Dispatcher) Dispatch(ctx context.Context, request *models.CrawlRequest) (*models.DispatchResponse, error) {
	if request == nil {
		return nil, fmt.Errorf("request is nil")
	}
	if err := request.Validate(); err != nil {
		return nil, fmt.Errorf("invalid crawl request: %w", err)
	}

	// A one-element url list is a single crawl, not a batch.
	if request.URL == "" && len(request.URLs) == 1 {
		request.URL = request.URLs[0]
		request.URLs = nil
	}

	if request.IsBatch() {
		estimate := d.estimator.EstimateBatch(request.URLs, &request.Options)
		return d.enqueue(ctx, models.JobTypeBatchCrawl, request, estimate)
	}

	estimate := d.estimator.Estimate(request.URL, &request.Options)
	threshold := d.config.ThresholdSeconds
	if threshold <= 0 {
		threshold = 5.0
	}

	if request.Options.ForceSync || estimate < threshold {
		d.logger.Debug().
			Str("url", request.URL).
			Float64("estimate", estimate).
			Bool("force_sync", request.Options.ForceSync).
			Msg("Dispatching inline")
		return &models.DispatchResponse{
			Async:         false,
			Result:        d.crawler.Crawl(ctx, request),
			EstimatedTime: estimate,
		}, nil
	}

	return d.enqueue(ctx, models.JobTypeCrawl, request, estimate)
}

func (d *Dispatcher) enqueue(ctx context.Context, jobType models.JobType, request *models.CrawlRequest, estimate float64) (*models.DispatchResponse, error) {
	job, err := d.jobs.CreateJob(ctx, jobType, request)
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	d.logger.Info().
		Str("job_id", job.ID).
		Str("type", string(jobType)).
		Float64("estimate", estimate).
		Msg("Dispatching async")

	prefix := d.config.CheckURLPrefix
	if prefix == "" {
		prefix = "/jobs"
	}
	return &models.DispatchResponse{
		Async:         true,
		JobID:         job.ID,
		Status:        string(models.JobStatusPending),
		EstimatedTime: estimate,
		CheckURL:      strings.TrimRight(prefix, "/") + "/" + job.ID,
	}, nil
}
