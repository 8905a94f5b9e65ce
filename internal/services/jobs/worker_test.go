package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/models"
	"github.com/ternarybob/colligo/internal/services/artifacts"
	"github.com/ternarybob/colligo/internal/services/crawler"
	"github.com/ternarybob/colligo/internal/storage/badger"
	"github.com/ternarybob/colligo/internal/storage/blob"
)

// fakeCrawler returns canned results keyed by URL; unknown URLs succeed.
type fakeCrawler struct {
	failures map[string]string
	panics   bool
	calls    int
}

func (f *fakeCrawler) Crawl(ctx context.Context, request *models.CrawlRequest) *models.CrawlResult {
	f.calls++
	if f.panics {
		panic("crawler exploded")
	}
	if msg, ok := f.failures[request.URL]; ok {
		return &models.CrawlResult{
			Success:      false,
			URL:          request.URL,
			ErrorKind:    models.ErrorKindNavigationTimeout,
			ErrorMessage: msg,
		}
	}
	return &models.CrawlResult{
		Success:   true,
		URL:       request.URL,
		Title:     "page",
		WordCount: 100,
		CharCount: 600,
	}
}

func newTestWorker(t *testing.T, crawl *fakeCrawler) (*Worker, *Registry) {
	t.Helper()
	logger := arbor.NewLogger()

	manager, err := badger.NewInMemoryManager(logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = manager.Close() })

	store, err := blob.NewLocalStore(t.TempDir(), "/artifacts", logger)
	require.NoError(t, err)
	writer := artifacts.NewWriter(store, logger)

	registry := NewRegistry(manager.JobStorage(), logger)
	config := &common.WorkerConfig{PollInterval: "10ms", BatchConcurrency: 2}
	batch := crawler.NewBatchExecutor(config, crawl, writer, logger)
	return NewWorker(config, registry, crawl, batch, logger), registry
}

func TestWorkerCompletesCrawlJob(t *testing.T) {
	crawl := &fakeCrawler{}
	worker, registry := newTestWorker(t, crawl)
	ctx := context.Background()

	job, err := registry.CreateJob(ctx, models.JobTypeCrawl, &models.CrawlRequest{URL: "https://example.com"})
	require.NoError(t, err)

	worker.drain(ctx)

	got, err := registry.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, got.Status)
	assert.Equal(t, 100, got.Progress)
	require.NotNil(t, got.Result)
	require.NotNil(t, got.Result.Crawl)
	assert.True(t, got.Result.Crawl.Success)
	assert.Equal(t, 1, crawl.calls)
}

func TestWorkerFailsCrawlJobOnCrawlFailure(t *testing.T) {
	crawl := &fakeCrawler{failures: map[string]string{"https://down.example": "navigation timeout after 30s"}}
	worker, registry := newTestWorker(t, crawl)
	ctx := context.Background()

	job, err := registry.CreateJob(ctx, models.JobTypeCrawl, &models.CrawlRequest{URL: "https://down.example"})
	require.NoError(t, err)

	worker.drain(ctx)

	got, err := registry.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, got.Status)
	assert.Contains(t, got.Error, "navigation timeout")
}

func TestWorkerRecoversFromPanic(t *testing.T) {
	crawl := &fakeCrawler{panics: true}
	worker, registry := newTestWorker(t, crawl)
	ctx := context.Background()

	job, err := registry.CreateJob(ctx, models.JobTypeCrawl, &models.CrawlRequest{URL: "https://example.com"})
	require.NoError(t, err)

	worker.drain(ctx)

	got, err := registry.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, got.Status)
	assert.Contains(t, got.Error, "internal error")
}

func TestWorkerFailsJobWithoutMetadata(t *testing.T) {
	crawl := &fakeCrawler{}
	worker, registry := newTestWorker(t, crawl)
	ctx := context.Background()

	job, err := registry.CreateJob(ctx, models.JobTypeCrawl, nil)
	require.NoError(t, err)

	worker.drain(ctx)

	got, err := registry.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, got.Status)
	assert.Zero(t, crawl.calls)
}

func TestWorkerExecutesBatchJob(t *testing.T) {
	crawl := &fakeCrawler{failures: map[string]string{"https://bad.example": "boom"}}
	worker, registry := newTestWorker(t, crawl)
	ctx := context.Background()

	job, err := registry.CreateJob(ctx, models.JobTypeBatchCrawl, &models.CrawlRequest{
		URLs: []string{"https://a.example", "https://b.example", "https://bad.example"},
	})
	require.NoError(t, err)

	worker.drain(ctx)

	got, err := registry.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, got.Status, "partial failure still completes the batch")
	require.NotNil(t, got.Result)
	require.NotNil(t, got.Result.Batch)
	assert.Equal(t, 3, got.Result.Batch.Total)
	assert.Equal(t, 2, got.Result.Batch.Completed)
	assert.Equal(t, 1, got.Result.Batch.Failed)
}

func TestWorkerFailsBatchWhenEverythingFails(t *testing.T) {
	crawl := &fakeCrawler{failures: map[string]string{
		"https://a.example": "boom",
		"https://b.example": "boom",
	}}
	worker, registry := newTestWorker(t, crawl)
	ctx := context.Background()

	job, err := registry.CreateJob(ctx, models.JobTypeBatchCrawl, &models.CrawlRequest{
		URLs: []string{"https://a.example", "https://b.example"},
	})
	require.NoError(t, err)

	worker.drain(ctx)

	got, err := registry.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, got.Status)
	assert.Contains(t, got.Error, "all 2 urls failed")
}

func TestWorkerStartStop(t *testing.T) {
	crawl := &fakeCrawler{}
	worker, registry := newTestWorker(t, crawl)
	ctx := context.Background()

	job, err := registry.CreateJob(ctx, models.JobTypeCrawl, &models.CrawlRequest{URL: "https://example.com"})
	require.NoError(t, err)

	worker.Start(ctx)
	defer worker.Stop()

	require.Eventually(t, func() bool {
		got, err := registry.Get(ctx, job.ID)
		return err == nil && got.IsTerminal()
	}, 2*time.Second, 20*time.Millisecond, "poll loop must pick the job up")
}

func TestJanitorSweep(t *testing.T) {
	crawl := &fakeCrawler{}
	_, registry := newTestWorker(t, crawl)
	ctx := context.Background()

	job, err := registry.CreateJob(ctx, models.JobTypeCrawl, &models.CrawlRequest{URL: "https://example.com"})
	require.NoError(t, err)
	require.NoError(t, registry.store.UpdateStatus(ctx, job.ID, models.JobStatusRunning))
	require.NoError(t, registry.Complete(ctx, job.ID, &models.JobResult{}))

	janitor := NewJanitor(&common.JobsConfig{Retention: "0s"}, registry, arbor.NewLogger())
	janitor.sweep()

	_, err = registry.Get(ctx, job.ID)
	assert.ErrorIs(t, err, badger.ErrJobNotFound)
}
