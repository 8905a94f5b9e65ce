package crawler

import (
	"github.com/ternarybob/colligo/internal/models"
)

// Closed-form cost model for one crawl, in seconds. Factors are additive and
// the sum scales with crawl depth.
const (
	estimateBaseline   = 1.5
	estimateJavaScript = 2.0
	estimateScreenshot = 1.0
	estimateExtraction = 0.5
)

// Estimator predicts crawl duration so the dispatcher can route sync vs
// async without touching a browser.
type Estimator struct{}

// NewEstimator creates a cost estimator
func NewEstimator() *Estimator {
	return &Estimator{}
}

// Estimate returns the predicted duration in seconds for crawling one URL
// with the given options.
func (e *Estimator) Estimate(url string, opts *models.CrawlOptions) float64 {
	estimate := estimateBaseline
	if opts.JavaScript {
		estimate += estimateJavaScript
	}
	if opts.Screenshot {
		estimate += estimateScreenshot
	}
	if opts.MarkdownMode != "" && opts.MarkdownMode != models.MarkdownModeNone {
		estimate += estimateExtraction
	}
	return estimate * float64(opts.Depth+1)
}

// EstimateBatch sums the per-URL estimates for a batch request
func (e *Estimator) EstimateBatch(urls []string, opts *models.CrawlOptions) float64 {
	total := 0.0
	for _, url := range urls {
		total += e.Estimate(url, opts)
	}
	return total
}
