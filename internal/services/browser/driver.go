package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/common"
)

// ErrNavigationTimeout marks a navigation that hit its deadline. The page
// carries the synthetic error document and remains usable.
var ErrNavigationTimeout = errors.New("navigation timeout")

// navigationErrorDoc replaces the page body when navigation times out, so
// downstream capture always sees a well-formed document.
const navigationErrorDoc = `<html><head><title>Navigation Error</title></head>` +
	`<body><h1>Navigation Error</h1><p>The page did not finish loading within the allowed time: %s</p></body></html>`

// Driver owns one headless browser instance. All operations run against the
// same browser context in call order; Close is idempotent.
type Driver struct {
	config *common.CrawlerConfig
	logger arbor.ILogger

	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	jsEnabled bool
	closeOnce sync.Once
	closed    bool
	mu        sync.Mutex
}

// NewDriver prepares a driver; the browser process starts on Start.
func NewDriver(config *common.CrawlerConfig, logger arbor.ILogger) *Driver {
	return &Driver{
		config: config,
		logger: logger,
	}
}

// Start launches the browser. With jsEnabled=false script execution is
// disabled at the CDP level before any navigation happens.
func (d *Driver) Start(ctx context.Context, jsEnabled bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.browserCtx != nil {
		return fmt.Errorf("browser already started")
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, d.buildAllocatorOptions()...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(s string, i ...interface{}) {
			d.logger.Debug().Str("source", "chromedp").Msg(fmt.Sprintf(s, i...))
		}))

	// Prove the browser is alive before handing it out
	testCtx, testCancel := context.WithTimeout(browserCtx, 15*time.Second)
	defer testCancel()
	if err := chromedp.Run(testCtx, chromedp.Navigate("about:blank")); err != nil {
		browserCancel()
		allocCancel()
		return fmt.Errorf("failed to start browser: %w", err)
	}

	if !jsEnabled {
		err := chromedp.Run(browserCtx, chromedp.ActionFunc(func(ctx context.Context) error {
			return emulation.SetScriptExecutionDisabled(true).Do(ctx)
		}))
		if err != nil {
			browserCancel()
			allocCancel()
			return fmt.Errorf("failed to disable script execution: %w", err)
		}
	}

	d.allocCancel = allocCancel
	d.browserCtx = browserCtx
	d.browserCancel = browserCancel
	d.jsEnabled = jsEnabled

	d.logger.Debug().Bool("js_enabled", jsEnabled).Msg("Browser started")
	return nil
}

func (d *Driver) buildAllocatorOptions() []chromedp.ExecAllocatorOption {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.UserAgent(d.config.UserAgent),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("disable-popup-blocking", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.WindowSize(d.width(), d.height()),
	}
	if d.config.Headless {
		opts = append(opts, chromedp.Flag("headless", "new"))
	}
	if d.config.DisableImages {
		opts = append(opts, chromedp.Flag("blink-settings", "imagesEnabled=false"))
	}
	return opts
}

func (d *Driver) width() int {
	if d.config.WindowWidth > 0 {
		return d.config.WindowWidth
	}
	return 1280
}

func (d *Driver) height() int {
	if d.config.WindowHeight > 0 {
		return d.config.WindowHeight
	}
	return 900
}

// JSEnabled reports whether the browser was started with script execution
func (d *Driver) JSEnabled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.jsEnabled
}

func (d *Driver) run(ctx context.Context, actions ...chromedp.Action) error {
	d.mu.Lock()
	if d.closed || d.browserCtx == nil {
		d.mu.Unlock()
		return fmt.Errorf("browser is not running")
	}
	browserCtx := d.browserCtx
	d.mu.Unlock()

	runCtx, cancel := mergeContexts(browserCtx, ctx)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

// mergeContexts bounds the browser context by the caller's deadline and
// cancellation without detaching from the browser.
func mergeContexts(browserCtx, callerCtx context.Context) (context.Context, context.CancelFunc) {
	if deadline, ok := callerCtx.Deadline(); ok {
		ctx, cancel := context.WithDeadline(browserCtx, deadline)
		stop := context.AfterFunc(callerCtx, cancel)
		return ctx, func() { stop(); cancel() }
	}
	ctx, cancel := context.WithCancel(browserCtx)
	stop := context.AfterFunc(callerCtx, cancel)
	return ctx, func() { stop(); cancel() }
}

// Navigate loads a URL with a hard timeout. Its contract is "document ready
// or timeout": when the deadline expires the driver writes a synthetic error
// document so later capture operations have defined behavior, and reports
// the timeout to the caller.
func (d *Driver) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = common.Duration(d.config.NavTimeout, 30*time.Second)
	}

	navCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := d.run(navCtx, chromedp.Navigate(url))
	if err == nil {
		return nil
	}

	if navCtx.Err() != nil {
		doc := fmt.Sprintf(navigationErrorDoc, url)
		writeErr := d.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
			frameTree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(frameTree.Frame.ID, doc).Do(ctx)
		}))
		if writeErr != nil {
			d.logger.Warn().Err(writeErr).Str("url", url).Msg("Failed to install synthetic error page")
		}
		return fmt.Errorf("%w after %s", ErrNavigationTimeout, timeout)
	}
	return fmt.Errorf("navigation failed: %w", err)
}

// Wait pauses for the given duration on the browser's timeline
func (d *Driver) Wait(ctx context.Context, duration time.Duration) error {
	if duration <= 0 {
		return nil
	}
	return d.run(ctx, chromedp.Sleep(duration))
}

// Evaluate runs a script in the page and returns its JSON-encoded result.
// Promises are awaited. User scripts must be wrapped by the harness before
// reaching this point.
func (d *Driver) Evaluate(ctx context.Context, script string) (json.RawMessage, error) {
	var result json.RawMessage
	err := d.run(ctx, chromedp.Evaluate(script, &result,
		func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithAwaitPromise(true)
		}))
	if err != nil {
		return nil, fmt.Errorf("script evaluation failed: %w", err)
	}
	return result, nil
}

// Screenshot captures the viewport, or the full scrollable page
func (d *Driver) Screenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	var buf []byte
	var err error
	if fullPage {
		err = d.run(ctx, chromedp.FullScreenshot(&buf, 90))
	} else {
		err = d.run(ctx, chromedp.CaptureScreenshot(&buf))
	}
	if err != nil {
		return nil, fmt.Errorf("screenshot failed: %w", err)
	}
	return buf, nil
}

// paperSizes maps page formats to width x height in inches
var paperSizes = map[string][2]float64{
	"a4":     {8.27, 11.69},
	"a3":     {11.69, 16.54},
	"letter": {8.5, 11.0},
	"legal":  {8.5, 14.0},
}

// PDF renders the current page to PDF
func (d *Driver) PDF(ctx context.Context, format string, landscape, background bool, margin [4]float64) ([]byte, error) {
	size, ok := paperSizes[strings.ToLower(format)]
	if !ok {
		size = paperSizes["a4"]
	}

	var buf []byte
	err := d.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		data, _, err := page.PrintToPDF().
			WithPaperWidth(size[0]).
			WithPaperHeight(size[1]).
			WithLandscape(landscape).
			WithPrintBackground(background).
			WithMarginTop(margin[0]).
			WithMarginRight(margin[1]).
			WithMarginBottom(margin[2]).
			WithMarginLeft(margin[3]).
			Do(ctx)
		if err != nil {
			return err
		}
		buf = data
		return nil
	}))
	if err != nil {
		return nil, fmt.Errorf("pdf generation failed: %w", err)
	}
	return buf, nil
}

// Content returns the current serialized HTML document
func (d *Driver) Content(ctx context.Context) (string, error) {
	var html string
	if err := d.run(ctx, chromedp.OuterHTML("html", &html)); err != nil {
		return "", fmt.Errorf("failed to read page content: %w", err)
	}
	return html, nil
}

// Title returns the current document title
func (d *Driver) Title(ctx context.Context) (string, error) {
	var title string
	if err := d.run(ctx, chromedp.Title(&title)); err != nil {
		return "", fmt.Errorf("failed to read page title: %w", err)
	}
	return title, nil
}

// Close tears down the browser. Safe to call more than once and after
// failed operations; the underlying process is always released.
func (d *Driver) Close() {
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		browserCancel := d.browserCancel
		allocCancel := d.allocCancel
		d.mu.Unlock()

		if browserCancel != nil {
			browserCancel()
		}
		if allocCancel != nil {
			allocCancel()
		}
		d.logger.Debug().Msg("Browser closed")
	})
}
