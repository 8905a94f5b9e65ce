package crawler

import (
	"strings"
	"time"

	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/models"
)

// settleHints lists hosts known to hydrate late. Values are the post-load
// delay needed before the DOM is worth reading.
var settleHints = map[string]time.Duration{
	"twitter.com":   5 * time.Second,
	"x.com":         5 * time.Second,
	"instagram.com": 5 * time.Second,
	"linkedin.com":  4 * time.Second,
	"facebook.com":  4 * time.Second,
	"youtube.com":   4 * time.Second,
	"notion.so":     4 * time.Second,
	"reddit.com":    3 * time.Second,
	"medium.com":    3 * time.Second,
	"bsky.app":      3 * time.Second,
}

// settleDelay returns the post-load stabilization wait for one crawl. An
// explicit wait_ms always wins; otherwise the per-host hint applies when the
// host is known, otherwise the configured default (JS pages get an extra
// second to hydrate).
func settleDelay(pageURL string, opts *models.CrawlOptions, configured time.Duration) time.Duration {
	if opts.WaitMs > 0 {
		return time.Duration(opts.WaitMs) * time.Millisecond
	}

	host := common.HostOf(pageURL)
	if hint, ok := settleHints[host]; ok {
		return hint
	}
	// subdomain match, e.g. mobile.twitter.com
	for known, hint := range settleHints {
		if strings.HasSuffix(host, "."+known) {
			return hint
		}
	}

	if configured <= 0 {
		configured = 2 * time.Second
	}
	if opts.JavaScript {
		return configured + time.Second
	}
	return configured
}
