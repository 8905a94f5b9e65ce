package crawler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
	"github.com/ternarybob/colligo/internal/services/artifacts"
	"golang.org/x/time/rate"
)

// BatchExecutor fans a multi-URL request out over the crawler with bounded
// concurrency, per-host pacing and per-URL timeouts, then collates the
// outputs into batch-level documents.
type BatchExecutor struct {
	config  *common.WorkerConfig
	crawler interfaces.Crawler
	writer  *artifacts.Writer
	reports *artifacts.ReportBuilder
	logger  arbor.ILogger

	limiterMu sync.Mutex
	limiters  map[string]*rate.Limiter
}

// NewBatchExecutor creates a batch executor
func NewBatchExecutor(config *common.WorkerConfig, crawler interfaces.Crawler, writer *artifacts.Writer, logger arbor.ILogger) *BatchExecutor {
	return &BatchExecutor{
		config:   config,
		crawler:  crawler,
		writer:   writer,
		reports:  artifacts.NewReportBuilder(logger),
		logger:   logger,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Execute runs the batch and returns aggregated results. Per-URL failures
// are collected, not fatal, unless the request opted into stop-on-first-error.
// progress, when non-nil, is called after every finished URL.
func (b *BatchExecutor) Execute(ctx context.Context, request *models.CrawlRequest, progress func(done, total int)) *models.BatchResult {
	urls := request.URLs
	total := len(urls)
	batch := &models.BatchResult{
		Total: total,
		Pages: make([]models.PageOutcome, total),
	}
	if total == 0 {
		return batch
	}

	concurrency := b.config.BatchConcurrency
	if concurrency <= 0 {
		concurrency = 5
	}
	perURLTimeout := common.Duration(b.config.URLTimeout, 2*time.Minute)

	batchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	start := time.Now()
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	done := 0

	for i, url := range urls {
		wg.Add(1)
		go func(index int, pageURL string) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-batchCtx.Done():
				batch.Pages[index] = models.PageOutcome{
					URL: pageURL, Success: false,
					Error: "batch aborted", ErrorKind: models.ErrorKindFatal,
				}
				return
			}

			if err := b.waitForHost(batchCtx, pageURL); err != nil {
				batch.Pages[index] = models.PageOutcome{
					URL: pageURL, Success: false,
					Error: "batch aborted", ErrorKind: models.ErrorKindFatal,
				}
				return
			}

			urlCtx, urlCancel := context.WithTimeout(batchCtx, perURLTimeout)
			defer urlCancel()

			subOpts := request.Options
			subOpts.ContinueOnNavFailure = !request.StopOnFirstError
			result := b.crawler.Crawl(urlCtx, &models.CrawlRequest{
				URL:     pageURL,
				Options: subOpts,
				UserID:  request.UserID,
			})

			outcome := models.PageOutcome{
				URL:       pageURL,
				Success:   result.Success,
				Title:     result.Title,
				WordCount: result.WordCount,
				CharCount: result.CharCount,
				Duration:  result.Duration,
				Artifacts: result.Artifacts,
			}
			if !result.Success {
				outcome.Error = result.ErrorMessage
				outcome.ErrorKind = result.ErrorKind
				if request.StopOnFirstError {
					cancel()
				}
			}
			batch.Pages[index] = outcome

			mu.Lock()
			done++
			current := done
			mu.Unlock()
			if progress != nil {
				progress(current, total)
			}
		}(i, url)
	}
	wg.Wait()

	for _, page := range batch.Pages {
		if page.Success {
			batch.Completed++
			batch.TotalWords += page.WordCount
			batch.TotalChars += page.CharCount
		} else {
			batch.Failed++
		}
	}
	batch.TotalTime = time.Since(start)
	if total > 0 {
		batch.AverageTimePerURL = batch.TotalTime / time.Duration(total)
	}

	b.collate(ctx, request.UserID, batch)

	b.logger.Info().
		Int("total", batch.Total).
		Int("completed", batch.Completed).
		Int("failed", batch.Failed).
		Str("duration", batch.TotalTime.Round(time.Millisecond).String()).
		Msg("Batch crawl finished")
	return batch
}

// waitForHost applies the per-host rate limiter when one is configured
func (b *BatchExecutor) waitForHost(ctx context.Context, pageURL string) error {
	if b.config.HostRateLimit <= 0 {
		return nil
	}
	host := common.HostOf(pageURL)

	b.limiterMu.Lock()
	limiter, ok := b.limiters[host]
	if !ok {
		burst := b.config.HostRateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(b.config.HostRateLimit), burst)
		b.limiters[host] = limiter
	}
	b.limiterMu.Unlock()

	return limiter.Wait(ctx)
}

// collate reads the per-URL outputs back from blob storage and produces the
// batch-level documents: one collated markdown file, a summary report PDF,
// and a merge of the per-URL PDFs. Collation failures are logged, never fatal.
func (b *BatchExecutor) collate(ctx context.Context, userID string, batch *models.BatchResult) {
	if batch.Completed == 0 {
		return
	}

	bucket := common.UserBucket(userID)
	base := "batch_" + uuid.New().String()[:8]
	store := b.writer.Store()

	var collated strings.Builder
	var pdfInputs [][]byte
	for _, page := range batch.Pages {
		for _, ref := range page.Artifacts {
			switch ref.Kind {
			case models.ArtifactKindMarkdown:
				data, err := store.Get(ctx, ref.StoragePath)
				if err != nil {
					b.logger.Warn().Err(err).Str("path", ref.StoragePath).Msg("Failed to read markdown for collation")
					continue
				}
				fmt.Fprintf(&collated, "# %s\n\n%s\n\n---\n\n", page.URL, data)
			case models.ArtifactKindPDF:
				data, err := store.Get(ctx, ref.StoragePath)
				if err != nil {
					b.logger.Warn().Err(err).Str("path", ref.StoragePath).Msg("Failed to read pdf for merge")
					continue
				}
				pdfInputs = append(pdfInputs, data)
			}
		}
	}

	if collated.Len() > 0 {
		path := bucket + "/" + base + ".md"
		if err := store.Save(ctx, path, []byte(collated.String())); err != nil {
			b.logger.Warn().Err(err).Msg("Failed to save collated markdown")
		} else {
			batch.CollatedMarkdown = models.ArtifactReference{
				Kind:         models.ArtifactKindMarkdown,
				Filename:     base + ".md",
				StoragePath:  path,
				RetrievalURL: store.SignedURL(path),
				SizeBytes:    collated.Len(),
			}
		}
	}

	if report, err := b.reports.BuildBatchReport(batch, "Batch Crawl Report"); err != nil {
		b.logger.Warn().Err(err).Msg("Failed to build batch report")
	} else {
		path := bucket + "/" + base + "_report.pdf"
		if err := store.Save(ctx, path, report); err != nil {
			b.logger.Warn().Err(err).Msg("Failed to save batch report")
		} else {
			batch.Report = models.ArtifactReference{
				Kind:         models.ArtifactKindPDF,
				Filename:     base + "_report.pdf",
				StoragePath:  path,
				RetrievalURL: store.SignedURL(path),
				SizeBytes:    len(report),
			}
		}
	}

	if len(pdfInputs) > 1 {
		merged, err := b.reports.MergePDFs(pdfInputs)
		if err != nil {
			b.logger.Warn().Err(err).Msg("Failed to merge batch PDFs")
			return
		}
		path := bucket + "/" + base + "_merged.pdf"
		if err := store.Save(ctx, path, merged); err != nil {
			b.logger.Warn().Err(err).Msg("Failed to save merged PDF")
			return
		}
		batch.MergedPDF = models.ArtifactReference{
			Kind:         models.ArtifactKindPDF,
			Filename:     base + "_merged.pdf",
			StoragePath:  path,
			RetrievalURL: store.SignedURL(path),
			SizeBytes:    len(merged),
		}
	}
}
