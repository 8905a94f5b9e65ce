package markdown

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/models"
)

func testPipeline() *Pipeline {
	return NewPipeline(arbor.NewLogger())
}

const articleHTML = `<html><head><title>Test Article</title>
<script>console.log("tracking")</script>
<style>.x{color:red}</style>
</head><body>
<nav class="nav-menu"><a href="/a">A</a> <a href="/b">B</a> <a href="/c">C</a></nav>
<article>
<h1>Understanding Crawlers</h1>
<p>Web crawlers fetch pages, extract their content and follow links to
discover more pages. A good crawler is polite, rate limited and resilient
to broken markup on the sites it visits.</p>
<p>This article explains how content extraction works in practice, with a
<a href="https://example.com/guide">detailed guide</a> for reference.</p>
</article>
<footer class="footer">Copyright 2026 · <a href="/privacy">Privacy</a></footer>
</body></html>`

func TestConvertModeNone(t *testing.T) {
	out, err := testPipeline().Convert(articleHTML, "https://example.com/post", models.MarkdownModeNone, nil)
	require.NoError(t, err)
	assert.Empty(t, out.Markdown)
	assert.Empty(t, out.Filtered)

	out, err = testPipeline().Convert(articleHTML, "https://example.com/post", "", nil)
	require.NoError(t, err)
	assert.Empty(t, out.Markdown)
}

func TestConvertBasic(t *testing.T) {
	out, err := testPipeline().Convert(articleHTML, "https://example.com/post", models.MarkdownModeBasic, nil)
	require.NoError(t, err)

	assert.Contains(t, out.Markdown, "Understanding Crawlers")
	assert.Contains(t, out.Markdown, "Web crawlers fetch pages")
	assert.NotContains(t, out.Markdown, "console.log", "scripts are stripped")
	assert.NotContains(t, out.Markdown, "color:red", "styles are stripped")
	assert.Contains(t, out.Markdown, "https://example.com/guide")
	assert.Empty(t, out.Filtered, "basic mode without a filter produces no filtered output")
}

func TestConvertEnhancedPrunesFurniture(t *testing.T) {
	out, err := testPipeline().Convert(articleHTML, "https://example.com/post", models.MarkdownModeEnhanced, nil)
	require.NoError(t, err)

	require.NotEmpty(t, out.Filtered)
	assert.Contains(t, out.Filtered, "Web crawlers fetch pages")
	assert.NotContains(t, out.Filtered, "Privacy", "footer is pruned")
	// raw markdown is still available alongside the fit markdown
	assert.Contains(t, out.Markdown, "Understanding Crawlers")
}

func TestConvertEnhancedRewritesCitations(t *testing.T) {
	out, err := testPipeline().Convert(articleHTML, "https://example.com/post", models.MarkdownModeEnhanced, nil)
	require.NoError(t, err)

	assert.Contains(t, out.Filtered, "## References")
	assert.Contains(t, out.Filtered, "⟨1⟩ https://example.com/guide")
	assert.NotContains(t, out.Filtered, "](https://example.com/guide)", "in-body links become citation tokens")
}

func TestConvertInvalidHTMLDoesNotPanic(t *testing.T) {
	out, err := testPipeline().Convert("<div><p>unclosed", "https://example.com", models.MarkdownModeBasic, nil)
	require.NoError(t, err)
	assert.Contains(t, out.Markdown, "unclosed")
}

func TestExtractTitle(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{"title tag wins", `<html><head><title>From Title</title><meta property="og:title" content="From OG"></head><body><h1>From H1</h1></body></html>`, "From Title"},
		{"og title next", `<html><head><meta property="og:title" content="From OG"></head><body><h1>From H1</h1></body></html>`, "From OG"},
		{"h1 next", `<html><body><h1>From H1</h1></body></html>`, "From H1"},
		{"twitter title last", `<html><head><meta name="twitter:title" content="From Twitter"></head><body></body></html>`, "From Twitter"},
		{"nothing", `<html><body><p>text</p></body></html>`, ""},
		{"whitespace trimmed", `<html><head><title>  Padded  </title></head></html>`, "Padded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractTitle(tt.html))
		})
	}
}

func TestExtractText(t *testing.T) {
	text := ExtractText(`<html><body><script>skip()</script><p>Hello   world</p><p>again</p></body></html>`)
	assert.Equal(t, "Hello world again", text)
	assert.NotContains(t, text, "skip")
}
