package markdown

import (
	"math"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// PruneOptions configures the pruning content filter
type PruneOptions struct {
	Threshold float64 // subtree score cutoff
	MinWords  int     // subtrees with fewer words are always pruned
	Dynamic   bool    // scale the cutoff by tag importance and text/link ratios
}

// tagWeights rank how likely a tag is to wrap real content
var tagWeights = map[string]float64{
	"article":    1.0,
	"main":       1.0,
	"section":    0.8,
	"p":          0.8,
	"pre":        0.7,
	"blockquote": 0.7,
	"td":         0.6,
	"div":        0.5,
	"ul":         0.5,
	"ol":         0.5,
	"span":       0.4,
	"header":     0.3,
	"aside":      0.2,
	"form":       0.2,
	"nav":        0.1,
	"footer":     0.1,
}

// negativePatterns penalize class/id tokens that mark page furniture
var negativePatterns = []string{
	"nav", "menu", "sidebar", "footer", "header", "banner",
	"ad", "ads", "advert", "promo", "sponsor",
	"comment", "share", "social", "related",
	"popup", "modal", "cookie", "newsletter", "subscribe",
}

// candidateTags are the subtree roots the pruner scores; everything else is
// left to its parent's fate
var candidateTags = "div, section, aside, nav, header, footer, article, ul, ol, table, form"

// Prune removes low-score subtrees from the document in place. Each
// candidate subtree gets a composite score: weighted sum of text density,
// inverse link density, tag weight, class/id negativity and log text
// length. Subtrees below the threshold are removed.
func Prune(doc *goquery.Document, opts PruneOptions) {
	if opts.Threshold <= 0 {
		opts.Threshold = 0.48
	}

	// Score bottom-up so removing a junk child improves the parent's shape.
	// goquery returns matches in document order; walk in reverse.
	selection := doc.Find(candidateTags)
	for i := selection.Length() - 1; i >= 0; i-- {
		node := selection.Eq(i)

		words := len(strings.Fields(node.Text()))
		if words < opts.MinWords {
			node.Remove()
			continue
		}

		score := subtreeScore(node)
		cutoff := opts.Threshold
		if opts.Dynamic {
			cutoff = dynamicCutoff(opts.Threshold, node)
		}
		if score < cutoff {
			node.Remove()
		}
	}
}

// subtreeScore computes the composite score for one subtree
func subtreeScore(node *goquery.Selection) float64 {
	text := strings.TrimSpace(node.Text())
	textLen := float64(len(text))

	html, err := goquery.OuterHtml(node)
	if err != nil || html == "" {
		return 0
	}
	htmlLen := float64(len(html))

	linkTextLen := 0.0
	node.Find("a").Each(func(_ int, a *goquery.Selection) {
		linkTextLen += float64(len(strings.TrimSpace(a.Text())))
	})

	textDensity := 0.0
	if htmlLen > 0 {
		textDensity = textLen / htmlLen
	}

	linkDensity := 0.0
	if textLen > 0 {
		linkDensity = math.Min(linkTextLen/textLen, 1.0)
	}

	tagWeight := 0.5
	if w, ok := tagWeights[goquery.NodeName(node)]; ok {
		tagWeight = w
	}

	negativity := classNegativity(node)

	// log-scaled length, normalized so ~1000 chars of text saturates
	lengthScore := math.Min(math.Log(1+textLen)/math.Log(1000), 1.0)

	score := 0.35*textDensity +
		0.25*(1.0-linkDensity) +
		0.20*tagWeight +
		0.20*lengthScore
	return score * (1.0 - negativity)
}

// classNegativity returns a 0..1 penalty from class and id tokens
func classNegativity(node *goquery.Selection) float64 {
	class, _ := node.Attr("class")
	id, _ := node.Attr("id")
	haystack := strings.ToLower(class + " " + id)
	if haystack == " " {
		return 0
	}

	penalty := 0.0
	for _, pattern := range negativePatterns {
		if strings.Contains(haystack, pattern) {
			penalty += 0.35
		}
	}
	return math.Min(penalty, 0.9)
}

// dynamicCutoff scales the base threshold per subtree: content-like tags
// with dense text get a lower bar, link farms a higher one.
func dynamicCutoff(base float64, node *goquery.Selection) float64 {
	tagWeight := 0.5
	if w, ok := tagWeights[goquery.NodeName(node)]; ok {
		tagWeight = w
	}

	text := strings.TrimSpace(node.Text())
	textLen := float64(len(text))
	linkTextLen := 0.0
	node.Find("a").Each(func(_ int, a *goquery.Selection) {
		linkTextLen += float64(len(strings.TrimSpace(a.Text())))
	})
	linkRatio := 0.0
	if textLen > 0 {
		linkRatio = math.Min(linkTextLen/textLen, 1.0)
	}

	cutoff := base
	cutoff -= 0.2 * (tagWeight - 0.5) // important tags lower the bar
	cutoff += 0.2 * linkRatio         // link-heavy subtrees raise it
	return math.Max(cutoff, 0.05)
}
