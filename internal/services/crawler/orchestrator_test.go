package crawler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/ternarybob/colligo/internal/models"
)

func TestCountWords(t *testing.T) {
	result := &models.CrawlResult{Markdown: "one two three"}
	countWords(result)
	assert.Equal(t, 3, result.WordCount)
	assert.Equal(t, 13, result.CharCount)

	// filtered markdown wins over raw markdown
	result = &models.CrawlResult{Markdown: "one two three four", FilteredMarkdown: "one two"}
	countWords(result)
	assert.Equal(t, 2, result.WordCount)

	// extracted text is the last resort
	result = &models.CrawlResult{ExtractedText: "a b c d"}
	countWords(result)
	assert.Equal(t, 4, result.WordCount)

	result = &models.CrawlResult{}
	countWords(result)
	assert.Zero(t, result.WordCount)
	assert.Zero(t, result.CharCount)
}

func fullResult() *models.CrawlResult {
	return &models.CrawlResult{
		Success:          true,
		URL:              "https://example.com",
		Title:            "Example",
		HTML:             "<html></html>",
		Markdown:         "# md",
		FilteredMarkdown: "# fit",
		ExtractedText:    "text",
		Screenshot:       []byte{1},
		PDF:              []byte{2},
	}
}

func TestShapeResponse(t *testing.T) {
	full := fullResult()
	shapeResponse(full, models.ResponseFormatFull)
	assert.NotEmpty(t, full.HTML)
	assert.NotEmpty(t, full.Screenshot)

	contentOnly := fullResult()
	shapeResponse(contentOnly, models.ResponseFormatContentOnly)
	assert.Empty(t, contentOnly.HTML)
	assert.Empty(t, contentOnly.Screenshot)
	assert.Empty(t, contentOnly.PDF)
	assert.NotEmpty(t, contentOnly.Markdown)
	assert.NotEmpty(t, contentOnly.ExtractedText)

	minimal := fullResult()
	shapeResponse(minimal, models.ResponseFormatMinimal)
	assert.Empty(t, minimal.HTML)
	assert.Empty(t, minimal.Markdown)
	assert.Empty(t, minimal.FilteredMarkdown)
	assert.Empty(t, minimal.ExtractedText)
	assert.Empty(t, minimal.Screenshot)
	assert.Empty(t, minimal.PDF)
	assert.Equal(t, "Example", minimal.Title, "identity fields survive every format")

	llm := fullResult()
	shapeResponse(llm, models.ResponseFormatLLM)
	assert.Empty(t, llm.HTML)
	assert.Empty(t, llm.ExtractedText)
	assert.NotEmpty(t, llm.Markdown, "llm format keeps the markdown")
}
