package tools

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
	"github.com/ternarybob/colligo/internal/services/artifacts"
	"github.com/ternarybob/colligo/internal/services/browser"
	"github.com/ternarybob/colligo/internal/services/crawler"
	"github.com/ternarybob/colligo/internal/services/jobs"
	"github.com/ternarybob/colligo/internal/services/llm"
	"github.com/ternarybob/colligo/internal/services/sessions"
)

// toolContentLimit caps how much page text a tool result feeds the model
const toolContentLimit = 4000

// Bundle wires the built-in crawl tools over the core services and registers
// them with the tool registry at startup.
type Bundle struct {
	crawlerConfig *common.CrawlerConfig
	crawler       interfaces.Crawler
	pool          *sessions.Pool
	writer        *artifacts.Writer
	reports       *artifacts.ReportBuilder
	factory       *llm.Factory
	jobs          *jobs.Registry
	logger        arbor.ILogger
}

// NewBundle creates the built-in tool bundle
func NewBundle(crawlerConfig *common.CrawlerConfig, crawl interfaces.Crawler, pool *sessions.Pool, writer *artifacts.Writer, factory *llm.Factory, jobRegistry *jobs.Registry, logger arbor.ILogger) *Bundle {
	return &Bundle{
		crawlerConfig: crawlerConfig,
		crawler:       crawl,
		pool:          pool,
		writer:        writer,
		reports:       artifacts.NewReportBuilder(logger),
		factory:       factory,
		jobs:          jobRegistry,
		logger:        logger,
	}
}

type crawlParams struct {
	URL                string `json:"url" jsonschema:"description=The URL to crawl"`
	JavaScript         bool   `json:"javascript,omitempty" jsonschema:"description=Enable JavaScript rendering"`
	MarkdownExtraction string `json:"markdown_extraction,omitempty" jsonschema:"description=Markdown mode: none, basic or enhanced (default enhanced)"`
	Screenshot         bool   `json:"screenshot,omitempty" jsonschema:"description=Capture a screenshot after load"`
	SessionID          string `json:"session_id,omitempty" jsonschema:"description=Reuse a named browser session"`
}

type startSessionParams struct {
	JavaScript bool `json:"javascript,omitempty" jsonschema:"description=Enable JavaScript in the session browser"`
}

type closeSessionParams struct {
	SessionID string `json:"session_id" jsonschema:"description=The session to close"`
}

type screenshotParams struct {
	URL       string `json:"url" jsonschema:"description=The URL to capture"`
	FullPage  bool   `json:"full_page,omitempty" jsonschema:"description=Capture the full scrollable page instead of the viewport"`
	SessionID string `json:"session_id,omitempty" jsonschema:"description=Reuse a named browser session"`
}

type analyzeParams struct {
	Content  string `json:"content" jsonschema:"description=The text or markdown to analyze"`
	Question string `json:"question" jsonschema:"description=What to determine about the content"`
}

type reportParams struct {
	Title   string `json:"title" jsonschema:"description=Report title"`
	Content string `json:"content" jsonschema:"description=Report body in markdown"`
}

type extractLinksParams struct {
	URL     string `json:"url" jsonschema:"description=The page to extract links from"`
	Pattern string `json:"pattern,omitempty" jsonschema:"description=Optional regular expression the links must match"`
}

type jobStatusParams struct {
	JobID string `json:"job_id" jsonschema:"description=The job to inspect"`
}

// RegisterAll adds every built-in tool to the registry
func (b *Bundle) RegisterAll(registry *Registry) error {
	descriptors := []Descriptor{
		{
			Name:        "crawl",
			Description: "Crawl a web page and return its content as markdown. Supports JavaScript rendering and session reuse.",
			Params:      crawlParams{},
			Execute:     b.crawl,
		},
		{
			Name:        "start_session",
			Description: "Start a persistent browser session and return its session_id for reuse by later tools.",
			Params:      startSessionParams{},
			Execute:     b.startSession,
		},
		{
			Name:        "close_session",
			Description: "Close a browser session created earlier.",
			Params:      closeSessionParams{},
			Execute:     b.closeSession,
		},
		{
			Name:        "capture_screenshot",
			Description: "Capture a screenshot of a web page and store it as an artifact.",
			Params:      screenshotParams{},
			Execute:     b.captureScreenshot,
		},
		{
			Name:        "analyze_content",
			Description: "Analyze previously crawled content with an AI model and answer a question about it.",
			Params:      analyzeParams{},
			Execute:     b.analyzeContent,
		},
		{
			Name:        "generate_report",
			Description: "Render a markdown report to PDF and store it as an artifact.",
			Params:      reportParams{},
			Execute:     b.generateReport,
		},
		{
			Name:        "extract_links",
			Description: "Crawl a page and return the links it contains, optionally filtered by a pattern.",
			Params:      extractLinksParams{},
			Execute:     b.extractLinks,
		},
		{
			Name:        "job_status",
			Description: "Look up the status and progress of an async crawl job.",
			Params:      jobStatusParams{},
			Execute:     b.jobStatus,
		},
	}

	for _, desc := range descriptors {
		if err := registry.Register(desc); err != nil {
			return err
		}
	}
	return nil
}

func argString(args map[string]interface{}, key string) string {
	v, _ := args[key].(string)
	return v
}

func argBool(args map[string]interface{}, key string) bool {
	v, _ := args[key].(bool)
	return v
}

func truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	return text[:limit] + "\n... (truncated)"
}

func (b *Bundle) crawl(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
	url := argString(args, "url")
	if url == "" {
		return nil, fmt.Errorf("url is required")
	}

	mode := models.MarkdownMode(argString(args, "markdown_extraction"))
	if mode == "" {
		mode = models.MarkdownModeEnhanced
	}

	result := b.crawler.Crawl(ctx, &models.CrawlRequest{
		URL: url,
		Options: models.CrawlOptions{
			JavaScript:   argBool(args, "javascript"),
			MarkdownMode: mode,
			Screenshot:   argBool(args, "screenshot"),
			SessionID:    argString(args, "session_id"),
		},
		UserID: common.AnonymousUser,
	})
	if !result.Success {
		return nil, fmt.Errorf("crawl failed: %s", result.ErrorMessage)
	}

	content := result.FilteredMarkdown
	if content == "" {
		content = result.Markdown
	}
	out := map[string]interface{}{
		"url":        result.URL,
		"title":      result.Title,
		"word_count": result.WordCount,
		"content":    truncate(content, toolContentLimit),
		"artifacts":  len(result.Artifacts),
	}
	if result.SessionID != "" {
		out["session_id"] = result.SessionID
	}
	return out, nil
}

func (b *Bundle) startSession(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
	driver := browser.NewDriver(b.crawlerConfig, b.logger)
	if err := driver.Start(ctx, argBool(args, "javascript")); err != nil {
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	id, err := b.pool.Create("", driver)
	if err != nil {
		driver.Close()
		return nil, err
	}
	return map[string]interface{}{"session_id": id}, nil
}

func (b *Bundle) closeSession(_ context.Context, args map[string]interface{}) (map[string]interface{}, error) {
	id := argString(args, "session_id")
	if id == "" {
		return nil, fmt.Errorf("session_id is required")
	}
	if err := b.pool.Close(id); err != nil {
		return nil, err
	}
	return map[string]interface{}{"session_id": id, "closed": true}, nil
}

func (b *Bundle) captureScreenshot(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
	url := argString(args, "url")
	if url == "" {
		return nil, fmt.Errorf("url is required")
	}

	mode := models.ScreenshotModeViewport
	if argBool(args, "full_page") {
		mode = models.ScreenshotModeFull
	}
	result := b.crawler.Crawl(ctx, &models.CrawlRequest{
		URL: url,
		Options: models.CrawlOptions{
			JavaScript:     true,
			Screenshot:     true,
			ScreenshotMode: mode,
			MarkdownMode:   models.MarkdownModeNone,
			SessionID:      argString(args, "session_id"),
		},
		UserID: common.AnonymousUser,
	})
	if !result.Success {
		return nil, fmt.Errorf("crawl failed: %s", result.ErrorMessage)
	}
	if result.ScreenshotError != "" {
		return nil, fmt.Errorf("screenshot failed: %s", result.ScreenshotError)
	}

	out := map[string]interface{}{"url": result.URL, "title": result.Title}
	for _, ref := range result.Artifacts {
		if ref.Kind == models.ArtifactKindScreenshot {
			out["filename"] = ref.Filename
			out["artifact_url"] = ref.RetrievalURL
			out["size_bytes"] = ref.SizeBytes
		}
	}
	return out, nil
}

func (b *Bundle) analyzeContent(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
	content := argString(args, "content")
	question := argString(args, "question")
	if content == "" {
		return nil, fmt.Errorf("content is required")
	}
	if question == "" {
		question = "Summarize the key points of this content."
	}

	provider, err := b.factory.Provider("", "")
	if err != nil {
		return nil, err
	}
	resp, err := provider.Generate(ctx, &interfaces.GenerateRequest{
		System: "You analyze web page content and answer questions about it concisely.",
		Messages: []interfaces.ProviderMessage{{
			Role: "user",
			Blocks: []interfaces.ContentBlock{{
				Type: interfaces.ContentBlockTypeText,
				Text: fmt.Sprintf("%s\n\n---\n\n%s", question, truncate(content, 12000)),
			}},
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("analysis failed: %w", err)
	}
	return map[string]interface{}{"analysis": strings.TrimSpace(resp.Text)}, nil
}

func (b *Bundle) generateReport(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
	title := argString(args, "title")
	content := argString(args, "content")
	if content == "" {
		return nil, fmt.Errorf("content is required")
	}
	if title == "" {
		title = "Report"
	}

	pdf, err := b.reports.RenderMarkdownPDF(fmt.Sprintf("# %s\n\n%s", title, content))
	if err != nil {
		return nil, err
	}

	store := b.writer.Store()
	filename := common.ArtifactFilename("report://"+title, title, "pdf")
	path := common.UserBucket(common.AnonymousUser) + "/" + filename
	if err := store.Save(ctx, path, pdf); err != nil {
		return nil, fmt.Errorf("failed to store report: %w", err)
	}
	return map[string]interface{}{
		"filename":     filename,
		"artifact_url": store.SignedURL(path),
		"size_bytes":   len(pdf),
	}, nil
}

func (b *Bundle) extractLinks(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
	url := argString(args, "url")
	if url == "" {
		return nil, fmt.Errorf("url is required")
	}

	var pattern *regexp.Regexp
	if p := argString(args, "pattern"); p != "" {
		var err error
		pattern, err = regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern: %w", err)
		}
	}

	result := b.crawler.Crawl(ctx, &models.CrawlRequest{
		URL: url,
		Options: models.CrawlOptions{
			MarkdownMode: models.MarkdownModeNone,
		},
		UserID: common.AnonymousUser,
	})
	if !result.Success {
		return nil, fmt.Errorf("crawl failed: %s", result.ErrorMessage)
	}

	links := crawler.ExtractLinks(result.HTML, result.URL, pattern, false)
	if len(links) > 100 {
		links = links[:100]
	}
	return map[string]interface{}{
		"url":   result.URL,
		"count": len(links),
		"links": links,
	}, nil
}

func (b *Bundle) jobStatus(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
	id := argString(args, "job_id")
	if id == "" {
		return nil, fmt.Errorf("job_id is required")
	}

	job, err := b.jobs.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	out := map[string]interface{}{
		"job_id":   job.ID,
		"type":     string(job.Type),
		"status":   string(job.Status),
		"progress": job.Progress,
	}
	if job.Error != "" {
		out["error"] = job.Error
	}
	return out, nil
}
