package crawler

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/colligo/internal/common"
)

// ExtractLinks pulls anchor hrefs from the HTML, resolved against the page
// URL. Fragment-only, javascript: and mailto: links are skipped by the
// resolver. With sameHostOnly set, links leaving the page's host are dropped;
// pattern, when non-nil, must match the resolved URL.
func ExtractLinks(html, pageURL string, pattern *regexp.Regexp, sameHostOnly bool) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	host := common.HostOf(pageURL)
	seen := make(map[string]bool)
	var links []string

	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		resolved := common.ResolveURL(pageURL, href)
		if resolved == "" || seen[resolved] || resolved == pageURL {
			return
		}
		if sameHostOnly && common.HostOf(resolved) != host {
			return
		}
		if pattern != nil && !pattern.MatchString(resolved) {
			return
		}
		seen[resolved] = true
		links = append(links, resolved)
	})
	return links
}
