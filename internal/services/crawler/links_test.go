package crawler

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

const linksHTML = `<html><body>
<a href="/docs/intro">Intro</a>
<a href="https://example.com/docs/api">API</a>
<a href="https://other.example/external">External</a>
<a href="#top">Top</a>
<a href="javascript:void(0)">JS</a>
<a href="mailto:team@example.com">Mail</a>
<a href="/docs/intro">Intro again</a>
<a href="https://example.com/base">Self</a>
</body></html>`

func TestExtractLinks(t *testing.T) {
	links := ExtractLinks(linksHTML, "https://example.com/base", nil, false)

	assert.Equal(t, []string{
		"https://example.com/docs/intro",
		"https://example.com/docs/api",
		"https://other.example/external",
	}, links)
}

func TestExtractLinksSameHostOnly(t *testing.T) {
	links := ExtractLinks(linksHTML, "https://example.com/base", nil, true)

	assert.Contains(t, links, "https://example.com/docs/intro")
	assert.NotContains(t, links, "https://other.example/external")
}

func TestExtractLinksPattern(t *testing.T) {
	pattern := regexp.MustCompile(`/docs/`)
	links := ExtractLinks(linksHTML, "https://example.com/base", pattern, false)

	assert.Equal(t, []string{
		"https://example.com/docs/intro",
		"https://example.com/docs/api",
	}, links)
}

func TestExtractLinksDropsSelfAndDuplicates(t *testing.T) {
	links := ExtractLinks(linksHTML, "https://example.com/base", nil, false)

	seen := make(map[string]int)
	for _, link := range links {
		seen[link]++
		assert.NotEqual(t, "https://example.com/base", link, "the page itself is never a followable link")
	}
	for link, count := range seen {
		assert.Equal(t, 1, count, "duplicate link %s", link)
	}
}

func TestExtractLinksEmptyAndBroken(t *testing.T) {
	assert.Empty(t, ExtractLinks("", "https://example.com", nil, false))
	assert.Empty(t, ExtractLinks("<p>no links here</p>", "https://example.com", nil, false))
}
