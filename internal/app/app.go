package app

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/services/artifacts"
	"github.com/ternarybob/colligo/internal/services/crawler"
	"github.com/ternarybob/colligo/internal/services/jobs"
	"github.com/ternarybob/colligo/internal/services/llm"
	"github.com/ternarybob/colligo/internal/services/markdown"
	"github.com/ternarybob/colligo/internal/services/sessions"
	"github.com/ternarybob/colligo/internal/services/tools"
	"github.com/ternarybob/colligo/internal/services/workflows"
	"github.com/ternarybob/colligo/internal/storage/badger"
	"github.com/ternarybob/colligo/internal/storage/blob"
)

// App holds every wired component. Construction order follows the dependency
// graph: storage, then services, then the worker loop.
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	StorageManager interfaces.StorageManager
	BlobStore      interfaces.BlobStorage

	Pool       *sessions.Pool
	Pipeline   *markdown.Pipeline
	Writer     *artifacts.Writer
	LLMFactory *llm.Factory
	Crawler    *crawler.Orchestrator
	Estimator  *crawler.Estimator
	Batch      *crawler.BatchExecutor
	Dispatcher *crawler.Dispatcher

	JobRegistry *jobs.Registry
	Worker      *jobs.Worker
	Janitor     *jobs.Janitor

	ToolRegistry *tools.Registry
	Toolbag      *tools.Toolbag
	Workflows    *workflows.Service

	ctx    context.Context
	cancel context.CancelFunc
}

// New wires the application from configuration
func New(config *common.Config, logger arbor.ILogger) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())

	storageManager, err := badger.NewManager(logger, &config.Storage.Badger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	blobStore, err := blob.NewLocalStore(config.Storage.Artifacts.Dir, config.Storage.Artifacts.BaseURL, logger)
	if err != nil {
		cancel()
		storageManager.Close()
		return nil, fmt.Errorf("failed to initialize blob store: %w", err)
	}

	pool := sessions.NewPool(&config.Sessions, logger)
	pipeline := markdown.NewPipeline(logger)
	writer := artifacts.NewWriter(blobStore, logger)
	factory := llm.NewFactory(&config.LLM, storageManager.KVStorage(), logger)

	orchestrator := crawler.NewOrchestrator(&config.Crawler, pool, pipeline, writer, factory, logger)
	estimator := crawler.NewEstimator()
	batch := crawler.NewBatchExecutor(&config.Worker, orchestrator, writer, logger)

	jobRegistry := jobs.NewRegistry(storageManager.JobStorage(), logger)
	dispatcher := crawler.NewDispatcher(&config.Dispatcher, estimator, orchestrator, jobRegistry, logger)
	worker := jobs.NewWorker(&config.Worker, jobRegistry, orchestrator, batch, logger)
	janitor := jobs.NewJanitor(&config.Jobs, jobRegistry, logger)

	toolRegistry := tools.NewRegistry(logger)
	bundle := tools.NewBundle(&config.Crawler, orchestrator, pool, writer, factory, jobRegistry, logger)
	if err := bundle.RegisterAll(toolRegistry); err != nil {
		cancel()
		storageManager.Close()
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}
	toolbag := tools.NewToolbag(toolRegistry, factory, &config.Toolbag, logger)
	workflowService := workflows.NewService(&config.Workflows, toolbag, logger)

	return &App{
		Config:         config,
		Logger:         logger,
		StorageManager: storageManager,
		BlobStore:      blobStore,
		Pool:           pool,
		Pipeline:       pipeline,
		Writer:         writer,
		LLMFactory:     factory,
		Crawler:        orchestrator,
		Estimator:      estimator,
		Batch:          batch,
		Dispatcher:     dispatcher,
		JobRegistry:    jobRegistry,
		Worker:         worker,
		Janitor:        janitor,
		ToolRegistry:   toolRegistry,
		Toolbag:        toolbag,
		Workflows:      workflowService,
		ctx:            ctx,
		cancel:         cancel,
	}, nil
}

// Start launches the background loops: the async worker and the job janitor
func (a *App) Start() error {
	a.Worker.Start(a.ctx)
	if err := a.Janitor.Start(); err != nil {
		return fmt.Errorf("failed to start job janitor: %w", err)
	}
	a.Logger.Info().Msg("Application started")
	return nil
}

// Close shuts everything down in reverse dependency order
func (a *App) Close() {
	a.Logger.Info().Msg("Shutting down")

	a.cancel()
	a.Janitor.Stop()
	a.Worker.Stop()
	a.Pool.Stop()
	a.Pool.CloseAll()

	if err := a.StorageManager.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("Storage close failed")
	}
	a.Logger.Info().Msg("Shutdown complete")
}
