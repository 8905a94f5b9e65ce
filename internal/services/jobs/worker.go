package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
	"github.com/ternarybob/colligo/internal/services/crawler"
)

// Worker drains the job registry: claim the oldest pending job, execute it,
// write the outcome back. A panic or error inside one job marks that job
// failed and never kills the loop.
type Worker struct {
	config   *common.WorkerConfig
	registry *Registry
	crawler  interfaces.Crawler
	batch    *crawler.BatchExecutor
	logger   arbor.ILogger

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewWorker creates an async worker over the registry
func NewWorker(config *common.WorkerConfig, registry *Registry, crawl interfaces.Crawler, batch *crawler.BatchExecutor, logger arbor.ILogger) *Worker {
	return &Worker{
		config:   config,
		registry: registry,
		crawler:  crawl,
		batch:    batch,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// Start launches the poll loop in the background
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.loop(ctx)
	w.logger.Info().Msg("Job worker started")
}

// Stop signals the loop and waits for the in-flight job to finish
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
	w.logger.Info().Msg("Job worker stopped")
}

func (w *Worker) loop(ctx context.Context) {
	defer w.wg.Done()

	interval := common.Duration(w.config.PollInterval, time.Second)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.drain(ctx)
		}
	}
}

// drain claims and executes pending jobs until the queue is empty
func (w *Worker) drain(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		default:
		}

		job, err := w.registry.Claim(ctx)
		if err != nil {
			w.logger.Error().Err(err).Msg("Failed to claim pending job")
			return
		}
		if job == nil {
			return
		}
		w.execute(ctx, job)
	}
}

// execute runs one claimed job and records the terminal state
func (w *Worker) execute(ctx context.Context, job *models.Job) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error().Str("job_id", job.ID).Msg(fmt.Sprintf("Job panicked: %v", r))
			if err := w.registry.Fail(ctx, job.ID, fmt.Sprintf("internal error: %v", r)); err != nil {
				w.logger.Error().Err(err).Str("job_id", job.ID).Msg("Failed to record job panic")
			}
		}
	}()

	w.logger.Info().Str("job_id", job.ID).Str("type", string(job.Type)).Msg("Executing job")

	if job.Metadata == nil {
		_ = w.registry.Fail(ctx, job.ID, "job has no request metadata")
		return
	}

	switch job.Type {
	case models.JobTypeCrawl:
		result := w.crawler.Crawl(ctx, job.Metadata)
		if !result.Success {
			_ = w.registry.Fail(ctx, job.ID, fmt.Sprintf("%s: %s", result.ErrorKind, result.ErrorMessage))
			return
		}
		if err := w.registry.Complete(ctx, job.ID, &models.JobResult{Crawl: result}); err != nil {
			w.logger.Error().Err(err).Str("job_id", job.ID).Msg("Failed to complete job")
		}

	case models.JobTypeBatchCrawl:
		batch := w.batch.Execute(ctx, job.Metadata, func(done, total int) {
			if total > 0 {
				if err := w.registry.Progress(ctx, job.ID, done*100/total); err != nil {
					w.logger.Debug().Err(err).Str("job_id", job.ID).Msg("Progress update failed")
				}
			}
		})
		if batch.Completed == 0 && batch.Failed > 0 {
			_ = w.registry.Fail(ctx, job.ID, fmt.Sprintf("all %d urls failed", batch.Failed))
			return
		}
		if err := w.registry.Complete(ctx, job.ID, &models.JobResult{Batch: batch}); err != nil {
			w.logger.Error().Err(err).Str("job_id", job.ID).Msg("Failed to complete job")
		}

	default:
		_ = w.registry.Fail(ctx, job.ID, fmt.Sprintf("unknown job type: %s", job.Type))
	}
}
