package crawler

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
	"github.com/ternarybob/colligo/internal/services/browser"
	"github.com/ternarybob/colligo/internal/services/llm"
	"github.com/ternarybob/colligo/internal/services/markdown"
	"github.com/ternarybob/colligo/internal/services/sessions"
)

// Orchestrator drives one crawl end to end: resolve a browser, navigate,
// run the optional user script, capture, extract, summarize, store.
type Orchestrator struct {
	config     *common.CrawlerConfig
	pool       *sessions.Pool
	pipeline   *markdown.Pipeline
	writer     interfaces.ArtifactWriter
	summarizer *llm.Summarizer
	ocr        *ocrService
	logger     arbor.ILogger
}

// NewOrchestrator wires the crawl orchestrator. factory may be nil; OCR and
// summarization are then skipped.
func NewOrchestrator(config *common.CrawlerConfig, pool *sessions.Pool, pipeline *markdown.Pipeline, writer interfaces.ArtifactWriter, factory *llm.Factory, logger arbor.ILogger) *Orchestrator {
	o := &Orchestrator{
		config:   config,
		pool:     pool,
		pipeline: pipeline,
		writer:   writer,
		logger:   logger,
	}
	if factory != nil {
		o.summarizer = llm.NewSummarizer(factory, logger)
		o.ocr = newOCRService(factory, logger)
	}
	return o
}

var _ interfaces.Crawler = (*Orchestrator)(nil)

// Crawl runs one URL through the full pipeline and returns a tagged result.
// Failures never escape as errors; they come back as Success=false results.
func (o *Orchestrator) Crawl(ctx context.Context, request *models.CrawlRequest) *models.CrawlResult {
	start := time.Now()

	if request == nil {
		return models.FailedCrawl("", models.ErrorKindInvalidInput, fmt.Errorf("request is nil"))
	}
	if err := request.Validate(); err != nil {
		return models.FailedCrawl(request.URL, models.ErrorKindInvalidInput, err)
	}
	pageURL, err := common.NormalizeURL(request.URL)
	if err != nil {
		return models.FailedCrawl(request.URL, models.ErrorKindInvalidInput, err)
	}
	opts := &request.Options

	sessionID := request.SessionID
	if sessionID == "" {
		sessionID = opts.SessionID
	}

	var driver *browser.Driver
	created := false
	if sessionID != "" {
		var release func()
		driver, release, err = o.pool.Acquire(sessionID)
		if err != nil {
			return models.FailedCrawl(pageURL, models.ErrorKindSessionGone, err)
		}
		defer release()
	} else {
		driver = browser.NewDriver(o.config, o.logger)
		if err := driver.Start(ctx, opts.JavaScript); err != nil {
			return models.FailedCrawl(pageURL, models.ErrorKindFatal, fmt.Errorf("failed to start browser: %w", err))
		}
		created = true
		defer driver.Close()
	}

	o.logger.Info().
		Str("url", pageURL).
		Bool("javascript", opts.JavaScript).
		Bool("session_reuse", !created).
		Msg("Crawl started")

	result := o.crawlPage(ctx, driver, pageURL, opts, sessionID)
	if !result.Success {
		result.Duration = time.Since(start)
		return result
	}

	var extraRefs []models.ArtifactReference
	if opts.Depth > 0 {
		extraRefs = o.followLinks(ctx, driver, result, opts, request.UserID)
	}

	if opts.LLMToken != "" || opts.LLMProvider != "" {
		o.summarize(ctx, result, opts)
	}

	result.Artifacts = append(o.writer.Write(ctx, request.UserID, result), extraRefs...)
	result.Duration = time.Since(start)

	shapeResponse(result, opts.ResponseFormat)

	o.logger.Info().
		Str("url", pageURL).
		Int("word_count", result.WordCount).
		Int("artifacts", len(result.Artifacts)).
		Str("duration", result.Duration.Round(time.Millisecond).String()).
		Msg("Crawl completed")
	return result
}

// crawlPage performs the navigate/script/capture/extract sequence on an
// already-resolved browser.
func (o *Orchestrator) crawlPage(ctx context.Context, driver *browser.Driver, pageURL string, opts *models.CrawlOptions, sessionID string) *models.CrawlResult {
	result := &models.CrawlResult{
		Success:   true,
		URL:       pageURL,
		SessionID: sessionID,
	}

	navTimeout := time.Duration(opts.TimeoutMs) * time.Millisecond
	if err := driver.Navigate(ctx, pageURL, navTimeout); err != nil {
		if errors.Is(err, browser.ErrNavigationTimeout) {
			// Synthetic error page is in place; the crawl continues over it.
			o.logger.Warn().Str("url", pageURL).Msg("Navigation timed out, continuing with error page")
		} else if !opts.ContinueOnNavFailure {
			return models.FailedCrawl(pageURL, models.ErrorKindNavigationTimeout, err)
		} else {
			o.logger.Warn().Err(err).Str("url", pageURL).Msg("Navigation failed, continuing per policy")
		}
	}

	if err := driver.Wait(ctx, settleDelay(pageURL, opts, common.Duration(o.config.SettleDelay, 2*time.Second))); err != nil {
		return models.FailedCrawl(pageURL, models.ErrorKindFatal, err)
	}

	if opts.JavaScriptPayload != "" && driver.JSEnabled() {
		o.runScript(ctx, driver, result, opts)
	}

	html, err := driver.Content(ctx)
	if err != nil {
		return models.FailedCrawl(pageURL, models.ErrorKindFatal, fmt.Errorf("failed to read page content: %w", err))
	}
	result.HTML = html

	if title, err := driver.Title(ctx); err == nil && title != "" {
		result.Title = title
	} else {
		result.Title = markdown.ExtractTitle(html)
	}

	if opts.Screenshot {
		fullPage := opts.ScreenshotMode == models.ScreenshotModeFull
		data, err := driver.Screenshot(ctx, fullPage)
		if err != nil {
			result.ScreenshotError = err.Error()
			o.logger.Warn().Err(err).Str("url", pageURL).Msg("Screenshot capture failed")
		} else {
			result.Screenshot = data
		}
	}

	if opts.PDF {
		o.capturePDF(ctx, driver, result, opts)
	}

	if opts.MarkdownMode != "" && opts.MarkdownMode != models.MarkdownModeNone {
		out, err := o.pipeline.Convert(html, pageURL, opts.MarkdownMode, opts.Filter)
		if err != nil {
			o.logger.Warn().Err(err).Str("url", pageURL).Msg("Markdown conversion failed")
		} else {
			result.Markdown = out.Markdown
			result.FilteredMarkdown = out.Filtered
		}
	}

	if opts.OCRExtraction && len(result.Screenshot) > 0 && o.ocr != nil {
		if text := o.ocr.extractText(ctx, opts.LLMProvider, opts.LLMToken, opts.LLMModel, result.Screenshot); text != "" {
			result.ExtractedText = text
		}
	}
	if result.ExtractedText == "" {
		result.ExtractedText = markdown.ExtractText(html)
	}

	countWords(result)
	return result
}

// runScript wraps the user payload in the harness and records its outcome.
// Script failures never fail the crawl.
func (o *Orchestrator) runScript(ctx context.Context, driver *browser.Driver, result *models.CrawlResult, opts *models.CrawlOptions) {
	if opts.WaitBeforeScriptMs > 0 {
		if err := driver.Wait(ctx, time.Duration(opts.WaitBeforeScriptMs)*time.Millisecond); err != nil {
			return
		}
	}

	timeoutMs := opts.ScriptTimeoutMs
	if timeoutMs <= 0 {
		timeoutMs = int(common.Duration(o.config.ScriptTimeout, 30*time.Second) / time.Millisecond)
	}

	raw, err := driver.Evaluate(ctx, browser.WrapScript(opts.JavaScriptPayload, timeoutMs))
	if err != nil {
		result.ScriptResult = &models.ScriptResult{Success: false, Error: err.Error()}
		o.logger.Warn().Err(err).Str("url", result.URL).Msg("Script evaluation failed")
	} else {
		result.ScriptResult = browser.ParseScriptResult(raw)
	}

	if opts.WaitAfterScriptMs > 0 {
		_ = driver.Wait(ctx, time.Duration(opts.WaitAfterScriptMs)*time.Millisecond)
	}
}

// capturePDF renders the page to PDF; failures land on PDFError only
func (o *Orchestrator) capturePDF(ctx context.Context, driver *browser.Driver, result *models.CrawlResult, opts *models.CrawlOptions) {
	pdfOpts := opts.PDFOptions
	if pdfOpts == nil {
		pdfOpts = &models.PDFOptions{}
	}
	if pdfOpts.WaitForMs > 0 {
		_ = driver.Wait(ctx, time.Duration(pdfOpts.WaitForMs)*time.Millisecond)
	}

	margin := [4]float64{pdfOpts.Margin.Top, pdfOpts.Margin.Right, pdfOpts.Margin.Bottom, pdfOpts.Margin.Left}
	data, err := driver.PDF(ctx, pdfOpts.Format, pdfOpts.Landscape, pdfOpts.PrintBackground, margin)
	if err != nil {
		result.PDFError = err.Error()
		o.logger.Warn().Err(err).Str("url", result.URL).Msg("PDF generation failed")
		return
	}
	result.PDF = data
}

// followLinks crawls same-host links from the root page, breadth-first up to
// the requested depth and page cap, on the same browser. Sub-pages capture
// markdown only; their artifacts are written per page and their content is
// appended to the root markdown as sections.
func (o *Orchestrator) followLinks(ctx context.Context, driver *browser.Driver, root *models.CrawlResult, opts *models.CrawlOptions, userID string) []models.ArtifactReference {
	maxPages := opts.MaxPages
	if maxPages <= 0 {
		maxPages = 10
	}

	var pattern *regexp.Regexp
	if opts.FollowPattern != "" {
		var err error
		pattern, err = regexp.Compile(opts.FollowPattern)
		if err != nil {
			o.logger.Warn().Err(err).Str("pattern", opts.FollowPattern).Msg("Invalid follow pattern, skipping link following")
			return nil
		}
	}

	subOpts := *opts
	subOpts.Screenshot = false
	subOpts.PDF = false
	subOpts.OCRExtraction = false
	subOpts.JavaScriptPayload = ""
	subOpts.Depth = 0

	visited := map[string]bool{root.URL: true}
	frontier := ExtractLinks(root.HTML, root.URL, pattern, true)

	var refs []models.ArtifactReference
	var sections strings.Builder
	crawled := 0

	for depth := 1; depth <= opts.Depth && crawled < maxPages; depth++ {
		var next []string
		for _, link := range frontier {
			if crawled >= maxPages {
				break
			}
			if visited[link] {
				continue
			}
			visited[link] = true

			sub := o.crawlPage(ctx, driver, link, &subOpts, "")
			crawled++
			if !sub.Success {
				o.logger.Warn().Str("url", link).Str("error", sub.ErrorMessage).Msg("Linked page crawl failed")
				continue
			}

			refs = append(refs, o.writer.Write(ctx, userID, sub)...)
			if md := sub.FilteredMarkdown; md != "" || sub.Markdown != "" {
				if md == "" {
					md = sub.Markdown
				}
				fmt.Fprintf(&sections, "\n\n---\n\n## %s\n\n%s", sub.URL, md)
			}
			if depth < opts.Depth {
				next = append(next, ExtractLinks(sub.HTML, sub.URL, pattern, true)...)
			}
		}
		frontier = next
	}

	if sections.Len() > 0 {
		root.Markdown += sections.String()
	}
	return refs
}

// summarize runs best-effort post-crawl summarization
func (o *Orchestrator) summarize(ctx context.Context, result *models.CrawlResult, opts *models.CrawlOptions) {
	if o.summarizer == nil {
		return
	}
	content := result.FilteredMarkdown
	if content == "" {
		content = result.Markdown
	}
	if content == "" {
		content = result.ExtractedText
	}
	result.Summary = o.summarizer.Summarize(ctx, opts.LLMProvider, opts.LLMToken, opts.LLMModel, content)
}

// countWords fills word and character counts from the best available text
func countWords(result *models.CrawlResult) {
	text := result.FilteredMarkdown
	if text == "" {
		text = result.Markdown
	}
	if text == "" {
		text = result.ExtractedText
	}
	result.WordCount = len(strings.Fields(text))
	result.CharCount = len(text)
}

// shapeResponse trims the result per the requested response format. Artifacts
// are already written from the full data; this only affects what goes back
// over the wire.
func shapeResponse(result *models.CrawlResult, format models.ResponseFormat) {
	switch format {
	case models.ResponseFormatContentOnly:
		result.HTML = ""
		result.Screenshot = nil
		result.PDF = nil
	case models.ResponseFormatMinimal:
		result.HTML = ""
		result.Markdown = ""
		result.FilteredMarkdown = ""
		result.ExtractedText = ""
		result.Screenshot = nil
		result.PDF = nil
	case models.ResponseFormatLLM:
		result.HTML = ""
		result.Screenshot = nil
		result.PDF = nil
		result.ExtractedText = ""
	}
}
