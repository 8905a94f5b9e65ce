package markdown

import (
	"math"
	"strings"
)

// BM25 tuning constants; the usual defaults.
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// FilterBM25 keeps only the markdown blocks relevant to the query. Blocks
// are paragraph-separated chunks; each is scored with BM25 against the
// query terms and blocks below the threshold are dropped. A zero threshold
// keeps every block with any term overlap.
func FilterBM25(markdown, query string, threshold float64) string {
	query = strings.TrimSpace(query)
	if query == "" {
		return markdown
	}

	blocks := splitBlocks(markdown)
	if len(blocks) == 0 {
		return markdown
	}

	queryTerms := tokenize(query)
	if len(queryTerms) == 0 {
		return markdown
	}

	docs := make([][]string, len(blocks))
	totalLen := 0
	for i, block := range blocks {
		docs[i] = tokenize(block)
		totalLen += len(docs[i])
	}
	avgLen := float64(totalLen) / float64(len(docs))
	if avgLen == 0 {
		return markdown
	}

	// document frequency per query term
	df := make(map[string]int, len(queryTerms))
	for _, doc := range docs {
		seen := make(map[string]bool, len(doc))
		for _, term := range doc {
			seen[term] = true
		}
		for _, term := range queryTerms {
			if seen[term] {
				df[term]++
			}
		}
	}

	n := float64(len(docs))
	var kept []string
	for i, block := range blocks {
		score := bm25Score(docs[i], queryTerms, df, n, avgLen)
		if score > threshold {
			kept = append(kept, block)
		}
	}

	if len(kept) == 0 {
		return ""
	}
	return strings.Join(kept, "\n\n")
}

func bm25Score(doc, queryTerms []string, df map[string]int, n, avgLen float64) float64 {
	if len(doc) == 0 {
		return 0
	}

	tf := make(map[string]int, len(doc))
	for _, term := range doc {
		tf[term]++
	}

	docLen := float64(len(doc))
	score := 0.0
	for _, term := range queryTerms {
		f := float64(tf[term])
		if f == 0 {
			continue
		}
		idf := math.Log(1 + (n-float64(df[term])+0.5)/(float64(df[term])+0.5))
		score += idf * (f * (bm25K1 + 1)) / (f + bm25K1*(1-bm25B+bm25B*docLen/avgLen))
	}
	return score
}

// splitBlocks divides markdown into paragraph blocks
func splitBlocks(markdown string) []string {
	var blocks []string
	for _, block := range strings.Split(markdown, "\n\n") {
		if strings.TrimSpace(block) != "" {
			blocks = append(blocks, block)
		}
	}
	return blocks
}

// tokenize lowercases and splits on non-alphanumeric runes
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
}
