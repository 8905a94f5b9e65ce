package markdown

import (
	"fmt"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/models"
)

var htmlCommentRe = regexp.MustCompile(`<!--[\s\S]*?-->`)

// strippedTags are removed in every mode before conversion
var strippedTags = []string{"script", "style", "noscript", "iframe", "object", "embed", "template"}

// Pipeline turns crawled HTML into markdown. Three modes: none, basic
// (absolute-link markdown), enhanced (pruning filter plus citation
// rewriting; the output is "fit markdown").
type Pipeline struct {
	logger arbor.ILogger
}

// NewPipeline creates a markdown pipeline
func NewPipeline(logger arbor.ILogger) *Pipeline {
	return &Pipeline{logger: logger}
}

// Output carries the pipeline results. Markdown is always populated for
// basic and enhanced; Filtered only for enhanced or when a filter ran.
type Output struct {
	Markdown string
	Filtered string
}

// Convert runs the pipeline for the requested mode. pageURL anchors
// relative links.
func (p *Pipeline) Convert(html, pageURL string, mode models.MarkdownMode, filter *models.FilterOptions) (*Output, error) {
	if mode == "" || mode == models.MarkdownModeNone {
		return &Output{}, nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlCommentRe.ReplaceAllString(html, "")))
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}
	stripUnwanted(doc)

	cleaned, err := doc.Html()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize cleaned html: %w", err)
	}

	converter := md.NewConverter(pageURL, true, nil)

	basic, err := converter.ConvertString(cleaned)
	if err != nil {
		return nil, fmt.Errorf("markdown conversion failed: %w", err)
	}
	basic = strings.TrimSpace(basic)

	out := &Output{Markdown: basic}
	if mode == models.MarkdownModeBasic {
		if filter != nil && filter.Kind == models.FilterKindBM25 {
			out.Filtered = FilterBM25(basic, filter.Query, filter.Threshold)
		}
		return out, nil
	}

	// Enhanced: prune low-score subtrees, reconvert, rewrite citations
	pruneOpts := PruneOptions{
		Threshold: 0.48,
		MinWords:  3,
	}
	if filter != nil && filter.Kind == models.FilterKindPruning {
		if filter.Threshold > 0 {
			pruneOpts.Threshold = filter.Threshold
		}
		if filter.MinWords > 0 {
			pruneOpts.MinWords = filter.MinWords
		}
		pruneOpts.Dynamic = filter.Dynamic
	}
	Prune(doc, pruneOpts)

	prunedHTML, err := doc.Html()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize pruned html: %w", err)
	}

	fit, err := converter.ConvertString(prunedHTML)
	if err != nil {
		return nil, fmt.Errorf("fit markdown conversion failed: %w", err)
	}
	fit = strings.TrimSpace(fit)

	if filter != nil && filter.Kind == models.FilterKindBM25 {
		fit = FilterBM25(fit, filter.Query, filter.Threshold)
	}

	out.Filtered = RewriteCitations(fit)
	return out, nil
}

// stripUnwanted removes non-content tags in place; comments were stripped
// from the raw HTML before parsing
func stripUnwanted(doc *goquery.Document) {
	for _, tag := range strippedTags {
		doc.Find(tag).Remove()
	}
}

// ExtractTitle pulls the best title candidate from an HTML document:
// title tag, og:title, first h1, twitter:title, in that order.
func ExtractTitle(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}

	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		return title
	}
	if og, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok {
		if og = strings.TrimSpace(og); og != "" {
			return og
		}
	}
	if h1 := strings.TrimSpace(doc.Find("h1").First().Text()); h1 != "" {
		return h1
	}
	if tw, ok := doc.Find(`meta[name="twitter:title"]`).Attr("content"); ok {
		if tw = strings.TrimSpace(tw); tw != "" {
			return tw
		}
	}
	return ""
}

// ExtractText returns the visible text of an HTML document, whitespace
// collapsed.
func ExtractText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	for _, tag := range strippedTags {
		doc.Find(tag).Remove()
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
